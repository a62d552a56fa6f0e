package backtest

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/levtrader/internal/domain"
	"go.uber.org/zap"
)

// businessDays returns n consecutive weekdays starting at a monday.
func businessDays(n int) []time.Time {
	days := make([]time.Time, 0, n)
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for len(days) < n {
		if domain.IsBusinessDay(day) {
			days = append(days, day)
		}
		day = day.AddDate(0, 0, 1)
	}
	return days
}

func series(symbol string, days []time.Time, opens []string) domain.Series {
	s := domain.Series{Symbol: symbol}
	for i, day := range days {
		s.Bars = append(s.Bars, domain.PriceBar{Date: day, Open: decimal.RequireFromString(opens[i])})
	}
	return s
}

// dipScenario is 31 days at 100 followed by a dip and a recovery.
func dipScenario() (domain.Series, domain.Series, []time.Time) {
	opensA := make([]string, 0, 37)
	for i := 0; i < 31; i++ {
		opensA = append(opensA, "100")
	}
	opensA = append(opensA, "74", "76", "78", "79.3", "70", "70")

	opensB := make([]string, len(opensA))
	for i := range opensB {
		opensB[i] = "20"
	}

	days := businessDays(len(opensA))
	return series("TECL", days, opensA), series("VIX", days, opensB), days
}

func newRunner(t *testing.T) *Runner {
	r, err := NewRunner(zap.NewNop(), domain.DefaultStrategyParams(), decimal.NewFromInt(10000))
	require.NoError(t, err)
	return r
}

func TestRunner_DipScenario(t *testing.T) {
	a, b, days := dipScenario()

	res, err := newRunner(t).Run(a, b)
	require.NoError(t, err)
	require.Len(t, res.Trades, 3)

	buy := res.Trades[0]
	assert.Equal(t, domain.ActionBuyImmediate, buy.Action)
	assert.Equal(t, days[31], buy.Date)
	assert.True(t, buy.Price.Equal(decimal.NewFromInt(74)))
	assert.False(t, buy.Bank.Valid)

	sell := res.Trades[1]
	assert.Equal(t, domain.ActionSell, sell.Action)
	assert.Equal(t, days[34], sell.Date)
	assert.True(t, sell.Price.Equal(decimal.RequireFromString("79.3")))
	assert.InDelta(t, 10716.216, sell.Fund.InexactFloat64(), 0.001)
	require.True(t, sell.Bank.Valid)
	assert.InDelta(t, 143.243, sell.Bank.Decimal.InexactFloat64(), 0.001)

	// day 36 is in cooldown even though 70 is below 0.75*SMA; day 37 buys
	rebuy := res.Trades[2]
	assert.Equal(t, domain.ActionBuyImmediate, rebuy.Action)
	assert.Equal(t, days[36], rebuy.Date)

	assert.True(t, res.FinalState.InPosition())
	assert.InDelta(t, 10716.216, res.FinalFund.InexactFloat64(), 0.001)
	assert.InDelta(t, 143.243, res.FinalBank.InexactFloat64(), 0.001)
	assert.InDelta(t, 10859.459, res.Total.InexactFloat64(), 0.001)

	assert.True(t, res.BuyAndHold.Shares.Equal(decimal.NewFromInt(100)))
	assert.True(t, res.BuyAndHold.Value.Equal(decimal.NewFromInt(7000)))
	assert.InDelta(t, -30, res.BuyAndHoldReturn, 1e-9)
	assert.True(t, res.Outperformance().GreaterThan(decimal.Zero))
	assert.Equal(t, days[0], res.Start)
	assert.Equal(t, days[36], res.End)
	assert.Equal(t, 37, res.Rows)
}

func flatOpens(n int, value string) []string {
	opens := make([]string, n)
	for i := range opens {
		opens[i] = value
	}
	return opens
}

func TestRunner_ConditionalBuyAfterVolatilitySpike(t *testing.T) {
	days := businessDays(40)
	opensA := flatOpens(40, "100")
	opensB := flatOpens(40, "20")
	opensB[34] = "30"

	res, err := newRunner(t).Run(series("TECL", days, opensA), series("VIX", days, opensB))
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)

	// the spike on row 34 is seen four rows later, against the WMA known on row 34
	buy := res.Trades[0]
	assert.Equal(t, domain.ActionBuyConditional, buy.Action)
	assert.Equal(t, days[38], buy.Date)
	assert.True(t, buy.Price.Equal(decimal.NewFromInt(100)))
}

func TestRunner_NoConditionalBuyWhenRecentVolatilityIsHigh(t *testing.T) {
	// B jumped from 10 to 30 long ago. With recent days weighted most the WMA stays
	// within 4% of 30; an oldest-weighted average would fall near 23 and trigger a buy.
	days := businessDays(40)
	opensA := flatOpens(40, "100")
	opensB := flatOpens(40, "30")
	for i := 0; i < 6; i++ {
		opensB[i] = "10"
	}

	res, err := newRunner(t).Run(series("TECL", days, opensA), series("VIX", days, opensB))
	require.NoError(t, err)
	assert.Empty(t, res.Trades)
}

func TestRunner_AtMostOnePosition(t *testing.T) {
	a, b, _ := dipScenario()

	res, err := newRunner(t).Run(a, b)
	require.NoError(t, err)

	open := false
	for _, trade := range res.Trades {
		if trade.Action.IsBuy() {
			assert.False(t, open, "buy while long on %s", trade.Date)
			open = true
			continue
		}
		assert.True(t, open, "sell while flat on %s", trade.Date)
		open = false
	}
}

func TestRunner_NoTradesDuringWarmUp(t *testing.T) {
	days := businessDays(30)
	opensA := make([]string, 30)
	opensB := make([]string, 30)
	for i := range opensA {
		opensA[i] = "1"
		opensB[i] = "90"
	}
	opensA[0] = "500"

	res, err := newRunner(t).Run(series("A", days, opensA), series("B", days, opensB))
	require.NoError(t, err)
	assert.Empty(t, res.Trades)
	assert.True(t, res.FinalFund.Equal(decimal.NewFromInt(10000)))
	assert.True(t, res.FinalBank.IsZero())
	assert.InDelta(t, 0, res.AnnualizedReturn, 1e-9)
}

func TestRunner_Errors(t *testing.T) {
	_, err := NewRunner(zap.NewNop(), domain.DefaultStrategyParams(), decimal.Zero)
	require.ErrorIs(t, err, domain.ErrNonPositiveCapital)

	params := domain.DefaultStrategyParams()
	params.Window = 0
	_, err = NewRunner(zap.NewNop(), params, decimal.NewFromInt(1))
	require.Error(t, err)

	days := businessDays(1)
	_, err = newRunner(t).Run(series("A", days, []string{"1"}), series("B", days, []string{"1"}))
	require.ErrorIs(t, err, ErrNotEnoughData)

	_, err = newRunner(t).Run(domain.Series{Symbol: "A", Bars: []domain.PriceBar{{Open: decimal.NewFromInt(1)}}}, series("B", days, []string{"1"}))
	require.Error(t, err)
	assert.True(t, domain.IsMissingColumn(err))
}

func TestWriteTradesCSV(t *testing.T) {
	a, b, _ := dipScenario()
	res, err := newRunner(t).Run(a, b)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteTradesCSV(&buf, res.Trades))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, tradeHeader, records[0])
	assert.Equal(t, "SELL", records[2][1])
	assert.Equal(t, "10716.22", records[2][4])
	assert.Equal(t, "143.24", records[2][5])
	assert.Empty(t, records[1][5])
}
