package blockfi

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/username/cryptotaxes/backend/src/logger"
	"github.com/username/cryptotaxes/backend/src/models"
	"github.com/username/cryptotaxes/backend/src/utils"
)

const dateLayout = "2006-01-02 15:04:05"

// BlockFiParser implements the parsers.Parser interface for BlockFi
// transaction report CSV files (Cryptocurrency, Amount, Transaction Type, ...,
// Confirmed At).
type BlockFiParser struct{}

func NewParser() *BlockFiParser {
	return &BlockFiParser{}
}

func (p *BlockFiParser) Parse(file io.Reader) ([]models.Transaction, error) {
	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read BlockFi CSV records: %w", err)
	}

	var txs []models.Transaction
	for _, record := range records {
		if len(record) < 4 || record[2] != "Trade" {
			continue
		}
		// DAI legs are the USD-stablecoin side of a trade, not a crypto position.
		if record[0] == "DAI" {
			continue
		}

		date, err := time.Parse(dateLayout, record[len(record)-1])
		if err != nil {
			logger.L.Warn("Skipping BlockFi row due to invalid date", "date", record[len(record)-1])
			continue
		}

		amount, err := utils.ParseDecimal(record[1])
		if err != nil {
			logger.L.Warn("Skipping BlockFi row due to invalid amount", "amount", record[1])
			continue
		}

		txs = append(txs, models.Transaction{
			Timestamp: date,
			Asset:     record[0],
			Amount:    amount,
			Source:    "BlockFi",
		})
	}

	return txs, nil
}
