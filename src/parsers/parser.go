package parsers

import (
	internal "github.com/username/cryptotaxes/backend/src/parsers/internal/parsers"
)

// ErrDataIntegrity marks a source file that violates an invariant the adapter
// relies on (deposit funded in a non-USD currency, an order group that cannot
// be reconciled, an unmapped asset code). It always aborts the run.
var ErrDataIntegrity = internal.ErrDataIntegrity

// Parser maps one exchange's raw export into normalized transactions.
type Parser = internal.Parser
