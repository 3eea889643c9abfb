package processors

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/username/cryptotaxes/backend/src/logger"
	"github.com/username/cryptotaxes/backend/src/models"
)

type TransactionProcessor struct{}

func NewTransactionProcessor() *TransactionProcessor { return &TransactionProcessor{} }

// Merge concatenates the per-source batches into one sequence ordered
// ascending by timestamp. The sort is stable, so records sharing a timestamp
// keep their source's own emission order. Zero-amount records are non-events
// and are dropped with a warning.
func (p *TransactionProcessor) Merge(batches ...[]models.Transaction) []models.Transaction {
	var merged []models.Transaction
	for _, batch := range batches {
		for _, tx := range batch {
			if tx.Amount.IsZero() {
				logger.L.Warn("Dropping zero-amount record",
					"asset", tx.Asset, "timestamp", tx.Timestamp, "source", tx.Source)
				continue
			}
			merged = append(merged, tx)
		}
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Timestamp.Before(merged[j].Timestamp)
	})
	return merged
}

// DeriveTotalCosts fills in total_cost = amount x spot_price for records that
// carry a spot price but no exchange-stated cost. Run after price backfill so
// every record ends up fully valued. Exchange-stated costs are left untouched;
// they may legitimately differ from amount x spot_price because of fees.
func (p *TransactionProcessor) DeriveTotalCosts(txs []models.Transaction) []models.Transaction {
	out := make([]models.Transaction, len(txs))
	for i, tx := range txs {
		if !tx.TotalCost.Valid && tx.SpotPrice.Valid {
			tx.TotalCost = decimal.NewNullDecimal(tx.Amount.Mul(tx.SpotPrice.Decimal))
		}
		out[i] = tx
	}
	return out
}
