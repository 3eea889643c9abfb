package utils

import (
	"strings"

	"github.com/shopspring/decimal"
)

// QuantityPrecision is the display precision for matched quantities.
const QuantityPrecision = 8

// ParseDecimal parses a decimal from exchange CSV output, tolerating thousands
// separators. Returns an error for anything else malformed.
func ParseDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	return decimal.NewFromString(s)
}

// FormatQuantity renders a quantity rounded to 8 decimal places for display.
// Internal arithmetic stays unrounded; only reporting uses this.
func FormatQuantity(d decimal.Decimal) string {
	return d.Round(QuantityPrecision).String()
}

// MinDecimal returns the smaller of two decimals.
func MinDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThanOrEqual(b) {
		return a
	}
	return b
}
