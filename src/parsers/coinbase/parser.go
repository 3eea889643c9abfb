package coinbase

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/cryptotaxes/backend/src/models"
	parsers "github.com/username/cryptotaxes/backend/src/parsers/internal/parsers"
	"github.com/username/cryptotaxes/backend/src/utils"
)

const dateLayout = "2006-01-02T15:04:05Z"

// metadataLines is the number of preamble lines Coinbase prepends to the
// all-time transactions export before the header row.
const metadataLines = 7

var taxableEventTypes = map[string]bool{
	"Convert":             true,
	"Buy":                 true,
	"Advanced Trade Buy":  true,
	"Advanced Trade Sell": true,
	"CardSpend":           true,
	"Sell":                true,
	"Card Spend":          true,
	"Card Buy Back":       true,
	"CardBuyBack":         true,
}

var supportedAssets = map[string]bool{
	"BTC": true, "LTC": true, "BCH": true, "ETC": true, "ETH": true,
	"SHIB": true, "DOGE": true, "ADA": true, "ATOM": true, "SOL": true,
	"DOT": true, "MATIC": true, "FIL": true, "LINK": true, "ZEC": true,
}

// CoinbaseParser implements the parsers.Parser interface for Coinbase
// all-time transaction CSV exports.
type CoinbaseParser struct{}

func NewParser() *CoinbaseParser {
	return &CoinbaseParser{}
}

func (p *CoinbaseParser) Parse(file io.Reader) ([]models.Transaction, error) {
	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read Coinbase CSV records: %w", err)
	}
	if len(records) > metadataLines {
		records = records[metadataLines:]
	}

	var txs []models.Transaction
	for _, record := range records {
		if len(record) < 10 {
			continue
		}
		eventType, asset := record[1], record[2]
		if !taxableEventTypes[eventType] || !supportedAssets[asset] {
			continue
		}

		date, err := time.Parse(dateLayout, record[0])
		if err != nil {
			return nil, fmt.Errorf("invalid Coinbase timestamp %q: %w", record[0], err)
		}

		rowTxs, err := normalizeEvent(eventType, date, record)
		if err != nil {
			return nil, err
		}
		txs = append(txs, rowTxs...)
	}

	return txs, nil
}

// normalizeEvent maps one filtered Coinbase row onto its normalized records.
// Composite events (Convert) produce a disposal and an acquisition.
func normalizeEvent(eventType string, date time.Time, record []string) ([]models.Transaction, error) {
	asset := record[2]
	notes := record[9]

	switch eventType {
	case "Buy":
		// Quantity and consideration live in the notes column:
		// "Bought 0.00094589 BTC for $10.00 USD"
		words := strings.Fields(notes)
		if len(words) < 5 {
			return nil, fmt.Errorf("%w: unparseable Coinbase Buy notes %q", parsers.ErrDataIntegrity, notes)
		}
		amount, err := utils.ParseDecimal(words[1])
		if err != nil {
			return nil, fmt.Errorf("%w: Coinbase Buy amount %q: %v", parsers.ErrDataIntegrity, words[1], err)
		}
		cost, err := utils.ParseDecimal(strings.TrimPrefix(words[4], "$"))
		if err != nil {
			return nil, fmt.Errorf("%w: Coinbase Buy cost %q: %v", parsers.ErrDataIntegrity, words[4], err)
		}
		price, err := utils.ParseDecimal(record[5])
		if err != nil {
			return nil, fmt.Errorf("%w: Coinbase Buy spot price %q: %v", parsers.ErrDataIntegrity, record[5], err)
		}
		return []models.Transaction{{
			Timestamp: date,
			Asset:     words[2],
			Amount:    amount,
			SpotPrice: decimal.NewNullDecimal(price),
			TotalCost: decimal.NewNullDecimal(cost),
			Source:    "Coinbase",
		}}, nil

	case "Convert":
		// "Converted 10.00 LTC to 0.5 BTC" becomes a disposal of LTC and an
		// acquisition of BTC, both unpriced until backfill.
		words := strings.Fields(notes)
		if len(words) < 6 {
			return nil, fmt.Errorf("%w: unparseable Coinbase Convert notes %q", parsers.ErrDataIntegrity, notes)
		}
		fromAmount, err := utils.ParseDecimal(words[1])
		if err != nil {
			return nil, fmt.Errorf("%w: Coinbase Convert amount %q: %v", parsers.ErrDataIntegrity, words[1], err)
		}
		toAmount, err := utils.ParseDecimal(words[4])
		if err != nil {
			return nil, fmt.Errorf("%w: Coinbase Convert amount %q: %v", parsers.ErrDataIntegrity, words[4], err)
		}
		return []models.Transaction{
			{Timestamp: date, Asset: words[2], Amount: fromAmount.Neg(), Source: "Coinbase"},
			{Timestamp: date, Asset: words[5], Amount: toAmount, Source: "Coinbase"},
		}, nil

	case "CardSpend", "Card Spend":
		quantity, price, err := quantityAndSpot(record)
		if err != nil {
			return nil, err
		}
		amount := quantity.Neg()
		return []models.Transaction{{
			Timestamp: date,
			Asset:     asset,
			Amount:    amount,
			SpotPrice: decimal.NewNullDecimal(price),
			TotalCost: decimal.NewNullDecimal(amount.Mul(price)),
			Source:    "Coinbase",
		}}, nil

	case "CardBuyBack", "Card Buy Back":
		quantity, price, err := quantityAndSpot(record)
		if err != nil {
			return nil, err
		}
		return []models.Transaction{{
			Timestamp: date,
			Asset:     asset,
			Amount:    quantity,
			SpotPrice: decimal.NewNullDecimal(price),
			TotalCost: decimal.NewNullDecimal(quantity.Mul(price)),
			Source:    "Coinbase",
		}}, nil

	case "Advanced Trade Buy":
		quantity, price, err := quantityAndSpot(record)
		if err != nil {
			return nil, err
		}
		subtotal, err := utils.ParseDecimal(record[7])
		if err != nil {
			return nil, fmt.Errorf("%w: Coinbase subtotal %q: %v", parsers.ErrDataIntegrity, record[7], err)
		}
		return []models.Transaction{{
			Timestamp: date,
			Asset:     asset,
			Amount:    quantity,
			SpotPrice: decimal.NewNullDecimal(price),
			TotalCost: decimal.NewNullDecimal(subtotal),
			Source:    "Coinbase",
		}}, nil

	case "Advanced Trade Sell", "Sell":
		quantity, price, err := quantityAndSpot(record)
		if err != nil {
			return nil, err
		}
		subtotal, err := utils.ParseDecimal(record[7])
		if err != nil {
			return nil, fmt.Errorf("%w: Coinbase subtotal %q: %v", parsers.ErrDataIntegrity, record[7], err)
		}
		return []models.Transaction{{
			Timestamp: date,
			Asset:     asset,
			Amount:    quantity.Neg(),
			SpotPrice: decimal.NewNullDecimal(price),
			TotalCost: decimal.NewNullDecimal(subtotal.Neg()),
			Source:    "Coinbase",
		}}, nil

	default:
		// The event-type filter is exhaustive; reaching here means the filter
		// and this switch disagree.
		return nil, fmt.Errorf("%w: unhandled Coinbase event type %q", parsers.ErrDataIntegrity, eventType)
	}
}

func quantityAndSpot(record []string) (decimal.Decimal, decimal.Decimal, error) {
	quantity, err := utils.ParseDecimal(record[3])
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("%w: Coinbase quantity %q: %v", parsers.ErrDataIntegrity, record[3], err)
	}
	price, err := utils.ParseDecimal(record[5])
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("%w: Coinbase spot price %q: %v", parsers.ErrDataIntegrity, record[5], err)
	}
	return quantity, price, nil
}
