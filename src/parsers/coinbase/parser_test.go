package coinbase

import (
	"os"
	"reflect"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/cryptotaxes/backend/src/logger"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	os.Exit(m.Run())
}

const preamble = `Transactions
User,someone@example.com
,,,,,,,,,
,,,,,,,,,
,,,,,,,,,
,,,,,,,,,
,,,,,,,,,
`

const header = "Timestamp,Transaction Type,Asset,Quantity Transacted,Spot Price Currency,Spot Price at Transaction,Subtotal,Total (inclusive of fees and/or spread),Fees and/or Spread,Notes\n"

func TestParseBuyDerivesAmountFromNotes(t *testing.T) {
	input := preamble + header +
		`2021-03-01T10:00:00Z,Buy,BTC,0.001,USD,50000.00,50.00,51.99,1.99,Bought 0.001 BTC for $51.99 USD` + "\n"

	txs, err := NewParser().Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, txs, 1)

	assert.Equal(t, "BTC", txs[0].Asset)
	assert.True(t, txs[0].Amount.Equal(decimal.NewFromFloat(0.001)))
	require.True(t, txs[0].SpotPrice.Valid)
	assert.True(t, txs[0].SpotPrice.Decimal.Equal(decimal.NewFromInt(50000)))
	require.True(t, txs[0].TotalCost.Valid)
	assert.True(t, txs[0].TotalCost.Decimal.Equal(decimal.NewFromFloat(51.99)))
	assert.Equal(t, "Coinbase", txs[0].Source)
}

func TestParseConvertEmitsDisposalAndAcquisition(t *testing.T) {
	input := preamble + header +
		`2021-04-01T10:00:00Z,Convert,LTC,10,USD,200.00,2000.00,2000.00,0,Converted 10 LTC to 0.5 BTC` + "\n"

	txs, err := NewParser().Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, txs, 2)

	assert.Equal(t, "LTC", txs[0].Asset)
	assert.True(t, txs[0].Amount.Equal(decimal.NewFromInt(-10)))
	assert.False(t, txs[0].SpotPrice.Valid)

	assert.Equal(t, "BTC", txs[1].Asset)
	assert.True(t, txs[1].Amount.Equal(decimal.NewFromFloat(0.5)))
	assert.False(t, txs[1].SpotPrice.Valid)
	assert.Equal(t, txs[0].Timestamp, txs[1].Timestamp)
}

func TestParseSellCarriesNegativeAmountAndProceeds(t *testing.T) {
	input := preamble + header +
		`2021-05-01T10:00:00Z,Sell,ETH,1.5,USD,3000.00,4500.00,4450.00,50,Sold 1.5 ETH for $4450.00 USD` + "\n"

	txs, err := NewParser().Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, txs, 1)

	assert.True(t, txs[0].Amount.Equal(decimal.NewFromFloat(-1.5)))
	require.True(t, txs[0].TotalCost.Valid)
	assert.True(t, txs[0].TotalCost.Decimal.Equal(decimal.NewFromInt(-4450)))
}

func TestParseCardSpendDerivesCostFromSpotPrice(t *testing.T) {
	input := preamble + header +
		`2021-06-01T10:00:00Z,CardSpend,BTC,0.002,USD,40000.00,,,,Card purchase` + "\n"

	txs, err := NewParser().Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, txs, 1)

	assert.True(t, txs[0].Amount.Equal(decimal.NewFromFloat(-0.002)))
	require.True(t, txs[0].TotalCost.Valid)
	assert.True(t, txs[0].TotalCost.Decimal.Equal(decimal.NewFromInt(-80)))
}

func TestParseFiltersNonTaxableAndUnsupportedRows(t *testing.T) {
	input := preamble + header +
		`2021-03-01T10:00:00Z,Rewards Income,BTC,0.0001,USD,50000.00,5.00,5.00,0,Reward` + "\n" +
		`2021-03-02T10:00:00Z,Buy,OBSCURECOIN,1,USD,1.00,1.00,1.00,0,Bought 1 OBSCURECOIN for $1.00 USD` + "\n"

	txs, err := NewParser().Parse(strings.NewReader(input))
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestParseIsIdempotent(t *testing.T) {
	input := preamble + header +
		`2021-03-01T10:00:00Z,Buy,BTC,0.001,USD,50000.00,50.00,51.99,1.99,Bought 0.001 BTC for $51.99 USD` + "\n" +
		`2021-04-01T10:00:00Z,Convert,LTC,10,USD,200.00,2000.00,2000.00,0,Converted 10 LTC to 0.5 BTC` + "\n"

	first, err := NewParser().Parse(strings.NewReader(input))
	require.NoError(t, err)
	second, err := NewParser().Parse(strings.NewReader(input))
	require.NoError(t, err)
	assert.True(t, reflect.DeepEqual(first, second))
}
