package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is the unified, normalized representation of a single taxable
// event. Each parser is responsible for mapping its exchange's export rows
// into this shape; downstream stages never look at source-specific data again.
type Transaction struct {
	// Timestamp of the event, full precision, used for chronological ordering.
	Timestamp time.Time `json:"timestamp"`
	// Asset is the canonical symbol (exchange-internal codes are already mapped,
	// e.g. Kraken's XXBT becomes BTC).
	Asset string `json:"asset"`
	// Amount is the signed quantity: positive = acquisition, negative = disposal.
	// Never zero.
	Amount decimal.Decimal `json:"amount"`
	// SpotPrice is the USD unit price at Timestamp. Invalid until the parser
	// could derive it or the price resolver backfilled it.
	SpotPrice decimal.NullDecimal `json:"spot_price"`
	// TotalCost is the total USD value of the transaction. For exchange-provided
	// values it may differ from Amount*SpotPrice (fees, slippage).
	TotalCost decimal.NullDecimal `json:"total_cost"`
	// Source is the originating exchange, informational only.
	Source string `json:"source"`
}

// IsDisposal reports whether the transaction reduces the position.
func (t Transaction) IsDisposal() bool {
	return t.Amount.IsNegative()
}

// Lot is a remaining, unconsumed acquisition tracked by the cost-basis ledger.
type Lot struct {
	AcquiredAt        time.Time       `json:"acquired_at"`
	RemainingQuantity decimal.Decimal `json:"remaining_quantity"`
	// UnitPrice is fixed at acquisition and never changes.
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// RealizedEvent records a disposal (or part of one) matched against a lot.
type RealizedEvent struct {
	Asset           string          `json:"asset"`
	QuantityMatched decimal.Decimal `json:"quantity_matched"`
	LotAcquiredAt   time.Time       `json:"lot_acquired_at"`
	DisposalDate    time.Time       `json:"disposal_date"`
	Proceeds        decimal.Decimal `json:"proceeds"`
	Cost            decimal.Decimal `json:"cost"`
	GainOrLoss      decimal.Decimal `json:"gain_or_loss"`
}

// PriceSample is one point of an asset's oracle price history. Price may be
// null; the resolver skips such samples and keeps searching backward in time.
type PriceSample struct {
	Timestamp time.Time           `json:"timestamp"`
	Price     decimal.NullDecimal `json:"price"`
}

// LedgerSummary is the operator-facing result of a full ledger run.
type LedgerSummary struct {
	Year        int             `json:"year"`
	YearGain    decimal.Decimal `json:"year_gain"`
	Unaccounted decimal.Decimal `json:"unaccounted"`
	EventCount  int             `json:"event_count"`
}
