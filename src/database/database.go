package database

import (
	"database/sql"
	stdlog "log"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/cryptotaxes/backend/src/logger"
	"github.com/username/cryptotaxes/backend/src/models"
	_ "modernc.org/sqlite"
)

var DB *sql.DB

// InitDB opens the on-disk spot-price cache. Histories fetched from the
// oracle are persisted here so repeated runs do not refetch five years of
// samples per asset.
func InitDB(databasePath string) {
	db, err := sql.Open("sqlite", databasePath)
	if err != nil {
		stdlog.Fatalf("failed to open price cache database at %s: %v", databasePath, err)
	}

	DB = db

	createTableStatement := `
	CREATE TABLE IF NOT EXISTS price_history (
		symbol TEXT NOT NULL,
		sampled_at INTEGER NOT NULL,
		price TEXT,
		PRIMARY KEY (symbol, sampled_at)
	);
	`
	if _, err = DB.Exec(createTableStatement); err != nil {
		if logger.L != nil {
			logger.L.Error("failed to create price cache tables", "error", err)
		}
		stdlog.Fatalf("failed to create price cache tables: %v", err)
	}
	if logger.L != nil {
		logger.L.Info("Price cache database ready", "databasePath", databasePath)
	} else {
		stdlog.Println("Price cache database ready:", databasePath)
	}
}

// PriceStore reads and writes cached oracle price histories.
type PriceStore struct {
	db *sql.DB
}

func NewPriceStore(db *sql.DB) *PriceStore {
	return &PriceStore{db: db}
}

// LoadHistory returns all cached samples for a symbol. Null prices are kept;
// the resolver skips them the same way it skips null oracle samples.
func (s *PriceStore) LoadHistory(symbol string) ([]models.PriceSample, error) {
	rows, err := s.db.Query(
		`SELECT sampled_at, price FROM price_history WHERE symbol = ? ORDER BY sampled_at DESC`, symbol)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []models.PriceSample
	for rows.Next() {
		var sampledAt int64
		var price sql.NullString
		if err := rows.Scan(&sampledAt, &price); err != nil {
			return nil, err
		}
		sample := models.PriceSample{Timestamp: time.Unix(sampledAt, 0).UTC()}
		if price.Valid {
			d, err := decimal.NewFromString(price.String)
			if err != nil {
				return nil, err
			}
			sample.Price = decimal.NewNullDecimal(d)
		}
		samples = append(samples, sample)
	}
	return samples, rows.Err()
}

// SaveHistory upserts a symbol's samples.
func (s *PriceStore) SaveHistory(symbol string, samples []models.PriceSample) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT OR REPLACE INTO price_history (symbol, sampled_at, price) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, sample := range samples {
		var price any
		if sample.Price.Valid {
			price = sample.Price.Decimal.String()
		}
		if _, err := stmt.Exec(symbol, sample.Timestamp.Unix(), price); err != nil {
			return err
		}
	}
	return tx.Commit()
}
