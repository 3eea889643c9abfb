package services

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/cryptotaxes/backend/src/models"
)

var (
	// ErrParsingFailed wraps adapter failures surfaced to the operator.
	ErrParsingFailed = errors.New("error parsing transaction file")
	// ErrPriceResolution marks an oracle that cannot map a symbol or has no
	// usable sample before a needed timestamp. Always fatal: there is no safe
	// default price.
	ErrPriceResolution = errors.New("price resolution failed")
)

// PriceService resolves an asset's USD spot price at a point in time from the
// historical price oracle.
type PriceService interface {
	ResolveSpotPrice(symbol string, at time.Time) (decimal.Decimal, error)
}

// ReportService persists the run's outputs and computes the operator summary.
type ReportService interface {
	WriteConsolidated(txs []models.Transaction) error
	WriteRealizedEvents(events []models.RealizedEvent) error
	Summarize(events []models.RealizedEvent, unaccounted decimal.Decimal, year int) models.LedgerSummary
}
