package signals

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/levtrader/internal/domain"
)

func records(opensA, opensB []float64) []domain.JointRecord {
	start := time.Date(2021, 1, 4, 0, 0, 0, 0, time.UTC)
	result := make([]domain.JointRecord, len(opensA))
	for i := range opensA {
		day := start.AddDate(0, 0, i)
		result[i] = domain.JointRecord{
			Date: day,
			A:    domain.PriceBar{Date: day, Open: decimal.NewFromFloat(opensA[i])},
			B:    domain.PriceBar{Date: day, Open: decimal.NewFromFloat(opensB[i])},
		}
	}
	return result
}

func TestCompute_WarmUpIsAbsent(t *testing.T) {
	opens := make([]float64, 40)
	for i := range opens {
		opens[i] = float64(100 + i)
	}

	rows, err := Compute(records(opens, opens), 30)
	require.NoError(t, err)
	require.Len(t, rows, 40)

	for i := 0; i < 30; i++ {
		assert.False(t, rows[i].SMA.Valid, "row %d", i)
		assert.False(t, rows[i].WMA.Valid, "row %d", i)
		assert.False(t, rows[i].Ready())
	}
	for i := 30; i < 40; i++ {
		assert.True(t, rows[i].Ready(), "row %d", i)
	}
}

func TestCompute_NoLookAhead(t *testing.T) {
	opensA := []float64{10, 20, 30, 40, 1000}
	opensB := []float64{1, 2, 3, 4, 1000}

	rows, err := Compute(records(opensA, opensB), 3)
	require.NoError(t, err)

	// row 3 sees rows 0..2 only
	assert.InDelta(t, 20.0, rows[3].SMA.Decimal.InexactFloat64(), 1e-9)
	assert.InDelta(t, (1*1+2*2+3*3)/6.0, rows[3].WMA.Decimal.InexactFloat64(), 1e-9)

	// row 4 sees rows 1..3, never its own 1000
	assert.InDelta(t, 30.0, rows[4].SMA.Decimal.InexactFloat64(), 1e-9)
	assert.InDelta(t, (2*1+3*2+4*3)/6.0, rows[4].WMA.Decimal.InexactFloat64(), 1e-9)
}

func TestCompute_WMAWeighsYesterdayMost(t *testing.T) {
	opensA := make([]float64, 31)
	opensB := make([]float64, 31)
	for i := range opensB {
		opensA[i] = 100
		opensB[i] = float64(i + 1)
	}

	rows, err := Compute(records(opensA, opensB), 30)
	require.NoError(t, err)

	// B opens 1..30 weighted 1..30: sum k*k / 465
	require.True(t, rows[30].WMA.Valid)
	assert.InDelta(t, 9455.0/465, rows[30].WMA.Decimal.InexactFloat64(), 1e-9)
}

func TestCompute_ShortHistory(t *testing.T) {
	rows, err := Compute(records([]float64{1, 2, 3}, []float64{1, 2, 3}), 3)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	for _, r := range rows {
		assert.False(t, r.Ready())
	}

	rows, err = Compute(nil, 3)
	require.NoError(t, err)
	assert.Empty(t, rows)

	_, err = Compute(nil, 0)
	require.Error(t, err)
}

func TestLagged(t *testing.T) {
	rows, err := Compute(records([]float64{1, 2, 3, 4, 5, 6}, []float64{1, 2, 3, 4, 5, 6}), 2)
	require.NoError(t, err)

	lagged, ok := Lagged(rows, 5, 4)
	require.True(t, ok)
	assert.Equal(t, rows[1].Date, lagged.Date)

	_, ok = Lagged(rows, 3, 4)
	assert.False(t, ok)

	latest, ok := Latest(rows)
	require.True(t, ok)
	assert.Equal(t, rows[5].Date, latest.Date)

	_, ok = Latest(nil)
	assert.False(t, ok)
}
