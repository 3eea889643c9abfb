package coinbasepro

import (
	"os"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/cryptotaxes/backend/src/logger"
	parsers "github.com/username/cryptotaxes/backend/src/parsers/internal/parsers"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	os.Exit(m.Run())
}

const header = "portfolio,type,time,amount,balance,amount/balance unit,transfer id,trade id,order id\n"

func TestParseReconcilesUSDAndCryptoLegs(t *testing.T) {
	input := header +
		`default,match,2021-06-01T00:00:00.000000Z,-500.0,0,USD,,t1,order-1` + "\n" +
		`default,match,2021-06-01T00:00:00.000000Z,0.01,0.01,BTC,,t2,order-1` + "\n"

	txs, err := NewParser().Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, txs, 1)

	assert.Equal(t, "BTC", txs[0].Asset)
	assert.True(t, txs[0].Amount.Equal(decimal.NewFromFloat(0.01)))
	require.True(t, txs[0].TotalCost.Valid)
	assert.True(t, txs[0].TotalCost.Decimal.Equal(decimal.NewFromInt(500)))
	require.True(t, txs[0].SpotPrice.Valid)
	assert.True(t, txs[0].SpotPrice.Decimal.Equal(decimal.NewFromInt(50000)))
	assert.Equal(t, "Coinbase Pro", txs[0].Source)
	assert.Equal(t, 2021, txs[0].Timestamp.Year())
}

func TestParseConsolidatesPartialFills(t *testing.T) {
	input := header +
		`default,match,2021-06-01T00:00:00.000000Z,-300.0,0,USD,,t1,order-1` + "\n" +
		`default,match,2021-06-01T00:00:00.000000Z,-200.0,0,USD,,t2,order-1` + "\n" +
		`default,match,2021-06-01T00:00:00.000000Z,0.006,0,BTC,,t3,order-1` + "\n" +
		`default,match,2021-06-01T00:00:00.000000Z,0.004,0,BTC,,t4,order-1` + "\n"

	txs, err := NewParser().Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.True(t, txs[0].Amount.Equal(decimal.NewFromFloat(0.01)))
	assert.True(t, txs[0].TotalCost.Decimal.Equal(decimal.NewFromInt(500)))
}

func TestParseSkipsWashOrders(t *testing.T) {
	input := header +
		`default,match,2021-06-01T00:00:00.000000Z,-500.0,0,USD,,t1,order-1` + "\n" +
		`default,match,2021-06-01T00:00:00.000000Z,500.0,0,USDT,,t2,order-1` + "\n"

	txs, err := NewParser().Parse(strings.NewReader(input))
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestParseEmitsUnpricedRecordsForCryptoToCryptoOrders(t *testing.T) {
	input := header +
		`default,match,2021-06-01T00:00:00.000000Z,-1.0,0,ETH,,t1,order-1` + "\n" +
		`default,match,2021-06-01T00:00:00.000000Z,0.07,0,BTC,,t2,order-1` + "\n"

	txs, err := NewParser().Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, "ETH", txs[0].Asset)
	assert.False(t, txs[0].SpotPrice.Valid)
	assert.Equal(t, "BTC", txs[1].Asset)
	assert.False(t, txs[1].SpotPrice.Valid)
}

func TestParseRejectsUnreconcilableOrders(t *testing.T) {
	tooManyUSDLegs := header +
		`default,match,2021-06-01T00:00:00.000000Z,-100.0,0,USD,,t1,order-1` + "\n" +
		`default,match,2021-06-01T00:00:00.000000Z,-100.0,0,USD,,t2,order-1` + "\n" +
		`default,match,2021-06-01T00:00:00.000000Z,-100.0,0,USD,,t3,order-1` + "\n"

	_, err := NewParser().Parse(strings.NewReader(tooManyUSDLegs))
	require.ErrorIs(t, err, parsers.ErrDataIntegrity)

	usdAgainstTwoAssets := header +
		`default,match,2021-06-01T00:00:00.000000Z,-500.0,0,USD,,t1,order-2` + "\n" +
		`default,match,2021-06-01T00:00:00.000000Z,0.01,0,BTC,,t2,order-2` + "\n" +
		`default,match,2021-06-01T00:00:00.000000Z,1.0,0,ETH,,t3,order-2` + "\n"

	_, err = NewParser().Parse(strings.NewReader(usdAgainstTwoAssets))
	require.ErrorIs(t, err, parsers.ErrDataIntegrity)
}

func TestParseIgnoresNonMatchRows(t *testing.T) {
	input := header +
		`default,deposit,2021-06-01T00:00:00.000000Z,1000.0,1000.0,USD,tr1,,` + "\n"

	txs, err := NewParser().Parse(strings.NewReader(input))
	require.NoError(t, err)
	assert.Empty(t, txs)
}
