package marketdata

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAlpacaData struct {
	trade    *marketdata.Trade
	bars     []marketdata.Bar
	err      error
	symbols  []string
	barsReqs []marketdata.GetBarsRequest
}

func (f *fakeAlpacaData) GetLatestTrade(symbol string, _ marketdata.GetLatestTradeRequest) (*marketdata.Trade, error) {
	f.symbols = append(f.symbols, symbol)
	return f.trade, f.err
}

func (f *fakeAlpacaData) GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error) {
	f.symbols = append(f.symbols, symbol)
	f.barsReqs = append(f.barsReqs, req)
	return f.bars, f.err
}

func TestAlpacaSource_DailyBars(t *testing.T) {
	fake := &fakeAlpacaData{bars: []marketdata.Bar{
		// daily bars are stamped at midnight New York time
		{Timestamp: time.Date(2024, 3, 4, 5, 0, 0, 0, time.UTC), Open: 55.5, High: 56, Low: 54, Close: 55.9, Volume: 100},
	}}
	src := newAlpacaSource(fake, "", nil)

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars, err := src.DailyBars(context.Background(), "VIX", from, from.AddDate(0, 3, 0))
	require.NoError(t, err)
	require.Len(t, bars, 1)

	assert.Equal(t, []string{"VXX"}, fake.symbols)
	assert.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), bars[0].Date)
	assert.Equal(t, "55.5", bars[0].Open.String())
	assert.Equal(t, int64(100), bars[0].Volume)
	assert.Equal(t, from, fake.barsReqs[0].Start)
}

func TestAlpacaSource_LatestPrice(t *testing.T) {
	fake := &fakeAlpacaData{trade: &marketdata.Trade{Price: 61.02}}

	price, err := newAlpacaSource(fake, "iex", nil).LatestPrice(context.Background(), "TECL")
	require.NoError(t, err)
	assert.Equal(t, "61.02", price.String())
	assert.Equal(t, []string{"TECL"}, fake.symbols)
}

func TestAlpacaSource_RateLimit(t *testing.T) {
	fake := &fakeAlpacaData{err: &alpaca.APIError{StatusCode: http.StatusTooManyRequests, Message: "too many"}}

	_, err := newAlpacaSource(fake, "iex", nil).LatestPrice(context.Background(), "TECL")
	require.ErrorIs(t, err, ErrRateLimited)
}
