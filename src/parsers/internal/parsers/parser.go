// Package parsers holds the definitions shared between the parsers package
// and the per-exchange adapter packages. It exists so the adapters can use
// the sentinel error without importing the factory that imports them.
package parsers

import (
	"errors"
	"io"

	"github.com/username/cryptotaxes/backend/src/models"
)

// ErrDataIntegrity marks a source file that violates an invariant the adapter
// relies on (deposit funded in a non-USD currency, an order group that cannot
// be reconciled, an unmapped asset code). It always aborts the run.
var ErrDataIntegrity = errors.New("data integrity violation")

// Parser maps one exchange's raw export into normalized transactions.
type Parser interface {
	Parse(file io.Reader) ([]models.Transaction, error)
}
