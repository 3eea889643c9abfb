package coinbasepro

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/cryptotaxes/backend/src/logger"
	"github.com/username/cryptotaxes/backend/src/models"
	parsers "github.com/username/cryptotaxes/backend/src/parsers/internal/parsers"
	"github.com/username/cryptotaxes/backend/src/utils"
)

const dateLayout = "2006-01-02T15:04:05Z"

// matchLeg is one row of a matched order group.
type matchLeg struct {
	time   string
	amount decimal.Decimal
	unit   string
}

// CoinbaseProParser implements the parsers.Parser interface for Coinbase Pro
// account statement CSV files. Match legs are reconciled per order: a pair of
// USD legs with no crypto leg is a wash and is dropped; otherwise the USD
// consideration is reconciled 1:1 against the consolidated crypto leg.
type CoinbaseProParser struct{}

func NewParser() *CoinbaseProParser {
	return &CoinbaseProParser{}
}

func (p *CoinbaseProParser) Parse(file io.Reader) ([]models.Transaction, error) {
	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	if _, err := reader.Read(); err != nil {
		return nil, fmt.Errorf("failed to read Coinbase Pro CSV header: %w", err)
	}
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read Coinbase Pro CSV records: %w", err)
	}

	// Group match legs by order id, preserving first-seen order for
	// reproducible output.
	groups := make(map[string][]matchLeg)
	var orderIDs []string
	for _, record := range records {
		if len(record) < 9 || record[1] != "match" {
			continue
		}
		amount, err := utils.ParseDecimal(record[3])
		if err != nil {
			return nil, fmt.Errorf("%w: Coinbase Pro amount %q: %v", parsers.ErrDataIntegrity, record[3], err)
		}
		orderID := record[8]
		if _, seen := groups[orderID]; !seen {
			orderIDs = append(orderIDs, orderID)
		}
		groups[orderID] = append(groups[orderID], matchLeg{
			time:   record[2],
			amount: amount,
			unit:   record[5],
		})
	}

	var txs []models.Transaction
	for _, orderID := range orderIDs {
		groupTxs, err := reconcileOrder(orderID, groups[orderID])
		if err != nil {
			return nil, err
		}
		txs = append(txs, groupTxs...)
	}
	return txs, nil
}

func reconcileOrder(orderID string, legs []matchLeg) ([]models.Transaction, error) {
	var usdLegs, cryptoLegs []matchLeg
	for _, leg := range legs {
		if leg.unit == "USD" || leg.unit == "USDT" {
			usdLegs = append(usdLegs, leg)
		} else {
			cryptoLegs = append(cryptoLegs, leg)
		}
	}

	if len(usdLegs) == 2 && len(cryptoLegs) == 0 {
		logger.L.Info("Order is a wash, ignoring",
			"orderID", orderID,
			"leg1", usdLegs[0].amount.String()+" "+usdLegs[0].unit,
			"leg2", usdLegs[1].amount.String()+" "+usdLegs[1].unit)
		return nil, nil
	}
	if len(cryptoLegs) == 0 {
		return nil, fmt.Errorf("%w: order %s has %d USD legs and no crypto legs", parsers.ErrDataIntegrity, orderID, len(usdLegs))
	}

	// Match timestamps carry sub-second precision; truncate to whole seconds.
	date, err := time.Parse(dateLayout, strings.SplitN(legs[0].time, ".", 2)[0]+"Z")
	if err != nil {
		return nil, fmt.Errorf("%w: invalid Coinbase Pro timestamp %q: %v", parsers.ErrDataIntegrity, legs[0].time, err)
	}

	// Consolidate multiple partial fills per asset.
	consolidated := make(map[string]decimal.Decimal)
	var assetOrder []string
	for _, leg := range cryptoLegs {
		if _, seen := consolidated[leg.unit]; !seen {
			assetOrder = append(assetOrder, leg.unit)
		}
		consolidated[leg.unit] = consolidated[leg.unit].Add(leg.amount)
	}

	if len(usdLegs) == 0 {
		// Crypto-to-crypto order: emit unpriced records, backfilled later.
		var txs []models.Transaction
		for _, asset := range assetOrder {
			txs = append(txs, models.Transaction{
				Timestamp: date,
				Asset:     asset,
				Amount:    consolidated[asset],
				Source:    "Coinbase Pro",
			})
		}
		return txs, nil
	}

	if len(assetOrder) != 1 {
		return nil, fmt.Errorf("%w: order %s USD:crypto legs not 1:1 after consolidation", parsers.ErrDataIntegrity, orderID)
	}

	asset := assetOrder[0]
	amount := consolidated[asset]
	usdTotal := decimal.Zero
	for _, leg := range usdLegs {
		usdTotal = usdTotal.Add(leg.amount)
	}
	cost := usdTotal.Neg()
	if amount.IsZero() {
		return nil, fmt.Errorf("%w: order %s consolidates to zero %s", parsers.ErrDataIntegrity, orderID, asset)
	}

	return []models.Transaction{{
		Timestamp: date,
		Asset:     asset,
		Amount:    amount,
		SpotPrice: decimal.NewNullDecimal(cost.Abs().Div(amount.Abs())),
		TotalCost: decimal.NewNullDecimal(cost),
		Source:    "Coinbase Pro",
	}}, nil
}
