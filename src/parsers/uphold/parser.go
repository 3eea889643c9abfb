package uphold

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/cryptotaxes/backend/src/models"
	parsers "github.com/username/cryptotaxes/backend/src/parsers/internal/parsers"
	"github.com/username/cryptotaxes/backend/src/utils"
)

const dateLayout = "Mon Jan 02 2006 15:04:05 GMT+0000"

// usdEquivalents are destination currencies that never open a crypto position.
var usdEquivalents = map[string]bool{
	"USD":  true,
	"USDC": true,
	"DAI":  true,
}

// UpholdParser implements the parsers.Parser interface for Uphold transaction
// history CSV files. Outbound withdrawals are dropped; "transfer" rows are
// currency conversions and emit a disposal of the origin leg plus, for crypto
// destinations, an acquisition of the destination leg; "in" rows are USD-funded
// purchases; same-currency BAT rows are browser earnings counted into basis.
type UpholdParser struct{}

func NewParser() *UpholdParser {
	return &UpholdParser{}
}

func (p *UpholdParser) Parse(file io.Reader) ([]models.Transaction, error) {
	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	if _, err := reader.Read(); err != nil {
		return nil, fmt.Errorf("failed to read Uphold CSV header: %w", err)
	}
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read Uphold CSV records: %w", err)
	}

	var txs []models.Transaction
	for _, record := range records {
		if len(record) < 10 {
			continue
		}
		rowType := record[len(record)-1]
		if rowType == "out" {
			continue
		}

		date, err := time.Parse(dateLayout, record[0])
		if err != nil {
			return nil, fmt.Errorf("%w: invalid Uphold timestamp %q: %v", parsers.ErrDataIntegrity, record[0], err)
		}

		destAmount, err := utils.ParseDecimal(record[2])
		if err != nil {
			return nil, fmt.Errorf("%w: invalid Uphold destination amount %q: %v", parsers.ErrDataIntegrity, record[2], err)
		}
		destCurrency := record[3]
		originAmount, err := utils.ParseDecimal(record[8])
		if err != nil {
			return nil, fmt.Errorf("%w: invalid Uphold origin amount %q: %v", parsers.ErrDataIntegrity, record[8], err)
		}
		originCurrency := record[9]

		switch {
		case destCurrency == originCurrency:
			// Same-currency rows are rewards; only BAT earnings enter the
			// cost-basis pool (at a zero basis until backfilled).
			if destCurrency == "BAT" {
				txs = append(txs, models.Transaction{
					Timestamp: date,
					Asset:     destCurrency,
					Amount:    destAmount,
					Source:    "Uphold",
				})
			}

		case rowType == "transfer":
			txs = append(txs, models.Transaction{
				Timestamp: date,
				Asset:     originCurrency,
				Amount:    originAmount.Neg(),
				Source:    "Uphold",
			})
			if !usdEquivalents[destCurrency] {
				txs = append(txs, models.Transaction{
					Timestamp: date,
					Asset:     destCurrency,
					Amount:    destAmount,
					Source:    "Uphold",
				})
			}

		case rowType == "in":
			if originCurrency != "USD" {
				return nil, fmt.Errorf("%w: %s origin currency %q not USD for 'in' row", parsers.ErrDataIntegrity, date.Format(time.RFC3339), originCurrency)
			}
			if destAmount.IsZero() {
				return nil, fmt.Errorf("%w: %s zero destination amount for 'in' row", parsers.ErrDataIntegrity, date.Format(time.RFC3339))
			}
			txs = append(txs, models.Transaction{
				Timestamp: date,
				Asset:     destCurrency,
				Amount:    destAmount,
				SpotPrice: decimal.NewNullDecimal(originAmount.Div(destAmount)),
				TotalCost: decimal.NewNullDecimal(originAmount),
				Source:    "Uphold",
			})
		}
	}

	return txs, nil
}
