package processors

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/username/cryptotaxes/backend/src/logger"
	"github.com/username/cryptotaxes/backend/src/models"
	"github.com/username/cryptotaxes/backend/src/utils"
)

// CostBasisLedger matches disposals against acquisition lots highest-in
// first-out. It owns the per-asset lot pools, the realized-event list and the
// unaccounted running total for the duration of one report run.
type CostBasisLedger struct {
	pools       map[string][]*models.Lot
	realized    []models.RealizedEvent
	unaccounted decimal.Decimal
}

func NewCostBasisLedger() *CostBasisLedger {
	return &CostBasisLedger{
		pools:       make(map[string][]*models.Lot),
		unaccounted: decimal.Zero,
	}
}

// Process walks the chronologically sorted record sequence once. Every record
// must be fully valued (spot price and total cost present); the price backfill
// and cost derivation steps guarantee that upstream.
func (l *CostBasisLedger) Process(txs []models.Transaction) error {
	for _, tx := range txs {
		if !tx.SpotPrice.Valid || !tx.TotalCost.Valid {
			return fmt.Errorf("record %s %s at %s is not fully valued", tx.Amount, tx.Asset, tx.Timestamp)
		}
		if tx.IsDisposal() {
			l.dispose(tx)
		} else {
			l.acquire(tx)
		}
	}

	for asset, pool := range l.pools {
		for _, lot := range pool {
			logger.L.Debug("Open lot after processing",
				"asset", asset,
				"acquiredAt", lot.AcquiredAt,
				"remainingQuantity", lot.RemainingQuantity.String(),
				"unitPrice", lot.UnitPrice.String())
		}
	}
	return nil
}

func (l *CostBasisLedger) acquire(tx models.Transaction) {
	l.pools[tx.Asset] = append(l.pools[tx.Asset], &models.Lot{
		AcquiredAt:        tx.Timestamp,
		RemainingQuantity: tx.Amount,
		UnitPrice:         tx.SpotPrice.Decimal,
	})
}

// dispose consumes lots for one disposal. Proceeds are apportioned pro-rata
// from the disposal's stated total cost by quantity fraction, so fees and
// slippage embedded in the exchange-stated value are preserved. Any quantity
// left when the pool runs out is valued at the disposal's own spot price and
// added to the unaccounted total; it never aborts the run.
func (l *CostBasisLedger) dispose(tx models.Transaction) {
	need := tx.Amount.Abs()
	totalQuantity := tx.Amount.Abs()
	totalProceeds := tx.TotalCost.Decimal.Abs()

	for need.IsPositive() {
		idx, ok := l.highestPricedLot(tx.Asset)
		if !ok {
			shortfall := need.Mul(tx.SpotPrice.Decimal)
			l.unaccounted = l.unaccounted.Add(shortfall)
			logger.L.Warn("No cost basis for disposal, skipping impact on pnl",
				"asset", tx.Asset,
				"date", tx.Timestamp,
				"unmatchedQuantity", need.String(),
				"unmatchedValue", shortfall.String())
			return
		}

		lot := l.pools[tx.Asset][idx]
		take := utils.MinDecimal(need, lot.RemainingQuantity)
		proceeds := take.Mul(totalProceeds).Div(totalQuantity)
		cost := take.Mul(lot.UnitPrice)

		l.realized = append(l.realized, models.RealizedEvent{
			Asset:           tx.Asset,
			QuantityMatched: take,
			LotAcquiredAt:   lot.AcquiredAt,
			DisposalDate:    tx.Timestamp,
			Proceeds:        proceeds,
			Cost:            cost,
			GainOrLoss:      proceeds.Sub(cost),
		})

		lot.RemainingQuantity = lot.RemainingQuantity.Sub(take)
		if lot.RemainingQuantity.IsZero() {
			l.removeLot(tx.Asset, idx)
		}
		need = need.Sub(take)
	}
}

// highestPricedLot returns the index of the open lot with the highest unit
// price. Lots of equal price tie-break on earliest acquisition date, which
// keeps matching deterministic across runs.
func (l *CostBasisLedger) highestPricedLot(asset string) (int, bool) {
	pool := l.pools[asset]
	if len(pool) == 0 {
		return 0, false
	}
	best := 0
	for i := 1; i < len(pool); i++ {
		switch pool[i].UnitPrice.Cmp(pool[best].UnitPrice) {
		case 1:
			best = i
		case 0:
			if pool[i].AcquiredAt.Before(pool[best].AcquiredAt) {
				best = i
			}
		}
	}
	return best, true
}

// removeLot deletes by index so two lots with identical price and quantity can
// never be confused.
func (l *CostBasisLedger) removeLot(asset string, idx int) {
	pool := l.pools[asset]
	l.pools[asset] = append(pool[:idx], pool[idx+1:]...)
}

// RealizedEvents returns the matches emitted so far, in processing order.
func (l *CostBasisLedger) RealizedEvents() []models.RealizedEvent {
	return l.realized
}

// Unaccounted returns the total value of disposals that found no cost basis.
func (l *CostBasisLedger) Unaccounted() decimal.Decimal {
	return l.unaccounted
}

// OpenLots returns a copy of the remaining per-asset lot pools.
func (l *CostBasisLedger) OpenLots() map[string][]models.Lot {
	open := make(map[string][]models.Lot, len(l.pools))
	for asset, pool := range l.pools {
		for _, lot := range pool {
			open[asset] = append(open[asset], *lot)
		}
	}
	return open
}
