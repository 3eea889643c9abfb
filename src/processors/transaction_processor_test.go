package processors

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/cryptotaxes/backend/src/models"
)

func TestMergeOrdersChronologicallyAcrossSources(t *testing.T) {
	processor := NewTransactionProcessor()

	exchangeA := []models.Transaction{
		valuedTx(t, "2021-03-01T00:00:00Z", "BTC", 1, 100, 100),
		valuedTx(t, "2021-01-01T00:00:00Z", "BTC", 1, 100, 100),
	}
	exchangeB := []models.Transaction{
		valuedTx(t, "2021-02-01T00:00:00Z", "ETH", 1, 100, 100),
	}

	merged := processor.Merge(exchangeA, exchangeB)
	require.Len(t, merged, 3)
	assert.Equal(t, "BTC", merged[0].Asset)
	assert.Equal(t, mustTime(t, "2021-01-01T00:00:00Z"), merged[0].Timestamp)
	assert.Equal(t, "ETH", merged[1].Asset)
	assert.Equal(t, mustTime(t, "2021-03-01T00:00:00Z"), merged[2].Timestamp)
}

func TestMergeKeepsSourceOrderOnTimestampTies(t *testing.T) {
	processor := NewTransactionProcessor()

	// A convert emits two records with identical timestamps; their relative
	// order from the adapter must survive the merge.
	convert := []models.Transaction{
		valuedTx(t, "2021-01-01T00:00:00Z", "LTC", -10, 20, -200),
		valuedTx(t, "2021-01-01T00:00:00Z", "BTC", 0.005, 40000, 200),
	}

	merged := processor.Merge(convert)
	require.Len(t, merged, 2)
	assert.Equal(t, "LTC", merged[0].Asset)
	assert.Equal(t, "BTC", merged[1].Asset)
}

func TestMergeDropsZeroAmountRecords(t *testing.T) {
	processor := NewTransactionProcessor()

	zero := valuedTx(t, "2021-01-01T00:00:00Z", "BTC", 0, 100, 0)
	kept := valuedTx(t, "2021-01-02T00:00:00Z", "BTC", 1, 100, 100)

	merged := processor.Merge([]models.Transaction{zero, kept})
	require.Len(t, merged, 1)
	assert.True(t, merged[0].Amount.Equal(decimal.NewFromInt(1)))
}

func TestDeriveTotalCostsFillsOnlyMissingValues(t *testing.T) {
	processor := NewTransactionProcessor()

	backfilled := models.Transaction{
		Timestamp: mustTime(t, "2021-01-01T00:00:00Z"),
		Asset:     "BTC",
		Amount:    decimal.NewFromInt(2),
		SpotPrice: decimal.NewNullDecimal(decimal.NewFromInt(30000)),
	}
	// Exchange-stated cost includes a fee and must not be recomputed.
	stated := valuedTx(t, "2021-02-01T00:00:00Z", "BTC", 1, 30000, 30100)

	out := processor.DeriveTotalCosts([]models.Transaction{backfilled, stated})
	require.Len(t, out, 2)
	require.True(t, out[0].TotalCost.Valid)
	assert.True(t, out[0].TotalCost.Decimal.Equal(decimal.NewFromInt(60000)))
	assert.True(t, out[1].TotalCost.Decimal.Equal(decimal.NewFromInt(30100)))
}

func TestDeriveTotalCostsKeepsDisposalSign(t *testing.T) {
	processor := NewTransactionProcessor()

	disposal := models.Transaction{
		Timestamp: mustTime(t, "2021-01-01T00:00:00Z"),
		Asset:     "ETH",
		Amount:    decimal.NewFromInt(-3),
		SpotPrice: decimal.NewNullDecimal(decimal.NewFromInt(2000)),
	}

	out := processor.DeriveTotalCosts([]models.Transaction{disposal})
	require.True(t, out[0].TotalCost.Valid)
	assert.True(t, out[0].TotalCost.Decimal.Equal(decimal.NewFromInt(-6000)))
}
