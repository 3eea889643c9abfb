package kraken

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/username/cryptotaxes/backend/src/models"
	parsers "github.com/username/cryptotaxes/backend/src/parsers/internal/parsers"
	"github.com/username/cryptotaxes/backend/src/utils"
)

const dateLayout = "2006-01-02 15:04:05"

// assetCodeMap translates Kraken's internal asset codes into canonical symbols.
var assetCodeMap = map[string]string{
	"XXBT":  "BTC",
	"XETH":  "ETH",
	"XXMR":  "XMR",
	"SOL":   "SOL",
	"ADA":   "ADA",
	"LTC":   "LTC",
	"XXDG":  "DOGE",
	"ATOM":  "ATOM",
	"DOT":   "DOT",
	"MATIC": "MATIC",
	"LUNA":  "LUNA",
	"APE":   "APE",
	"BCH":   "BCH",
	"UST":   "UST",
}

// excludedAssets are the USD-denominated ledger legs of a trade and assets with
// no price history worth tracking.
var excludedAssets = map[string]bool{
	"ZUSD":  true,
	"USDT":  true,
	"LUNA2": true,
}

// KrakenParser implements the parsers.Parser interface for Kraken ledger
// CSV exports.
type KrakenParser struct{}

func NewParser() *KrakenParser {
	return &KrakenParser{}
}

func (p *KrakenParser) Parse(file io.Reader) ([]models.Transaction, error) {
	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read Kraken CSV records: %w", err)
	}

	var txs []models.Transaction
	for _, record := range records {
		if len(record) < 8 || record[3] != "trade" || excludedAssets[record[6]] {
			continue
		}

		symbol, ok := assetCodeMap[record[6]]
		if !ok {
			return nil, fmt.Errorf("%w: unmapped Kraken asset code %q", parsers.ErrDataIntegrity, record[6])
		}

		date, err := time.Parse(dateLayout, record[2])
		if err != nil {
			return nil, fmt.Errorf("%w: invalid Kraken timestamp %q: %v", parsers.ErrDataIntegrity, record[2], err)
		}

		amount, err := utils.ParseDecimal(record[7])
		if err != nil {
			return nil, fmt.Errorf("%w: invalid Kraken amount %q: %v", parsers.ErrDataIntegrity, record[7], err)
		}

		txs = append(txs, models.Transaction{
			Timestamp: date,
			Asset:     symbol,
			Amount:    amount,
			Source:    "Kraken",
		})
	}

	return txs, nil
}
