package parsers

import (
	"fmt"

	"github.com/username/cryptotaxes/backend/src/parsers/blockfi"
	"github.com/username/cryptotaxes/backend/src/parsers/coinbase"
	"github.com/username/cryptotaxes/backend/src/parsers/coinbasepro"
	"github.com/username/cryptotaxes/backend/src/parsers/kraken"
	"github.com/username/cryptotaxes/backend/src/parsers/uphold"
)

func GetParser(source string) (Parser, error) {
	switch source {
	case "blockfi":
		return blockfi.NewParser(), nil
	case "coinbase":
		return coinbase.NewParser(), nil
	case "coinbasepro":
		return coinbasepro.NewParser(), nil
	case "kraken":
		return kraken.NewParser(), nil
	case "uphold":
		return uphold.NewParser(), nil
	default:
		return nil, fmt.Errorf("no parser available for source: %s", source)
	}
}
