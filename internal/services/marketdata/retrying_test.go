package marketdata

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/levtrader/internal/domain"
	"github.com/vadiminshakov/levtrader/pkg/retrier"
	"go.uber.org/zap"
)

type mockSource struct {
	mock.Mock
}

func (m *mockSource) Name() string {
	return "mock"
}

func (m *mockSource) LatestPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *mockSource) DailyBars(ctx context.Context, symbol string, from, to time.Time) ([]domain.PriceBar, error) {
	args := m.Called(ctx, symbol, from, to)
	bars, _ := args.Get(0).([]domain.PriceBar)
	return bars, args.Error(1)
}

func TestRetryingSource(t *testing.T) {
	var waits []time.Duration
	sleep := retrier.WithSleep(func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	})

	src := &mockSource{}
	src.On("LatestPrice", mock.Anything, "TECL").Return(decimal.Zero, errors.Wrap(ErrRateLimited, "throttled")).Once()
	src.On("LatestPrice", mock.Anything, "TECL").Return(decimal.NewFromInt(42), nil).Once()

	retrying := NewRetryingSource(zap.NewNop(), src, retrier.WithJitter(0), retrier.WithInitialInterval(time.Second), sleep)

	price, err := retrying.LatestPrice(context.Background(), "TECL")
	require.NoError(t, err)
	assert.Equal(t, "42", price.String())
	assert.Equal(t, []time.Duration{3 * time.Second}, waits)
	assert.Equal(t, "mock", retrying.Name())
	src.AssertExpectations(t)
}

func TestRetryingSource_GivesUpAfterThreeAttempts(t *testing.T) {
	src := &mockSource{}
	src.On("DailyBars", mock.Anything, "VIX", mock.Anything, mock.Anything).Return(nil, errors.New("timeout")).Times(3)

	retrying := NewRetryingSource(zap.NewNop(), src, retrier.WithSleep(func(context.Context, time.Duration) error { return nil }))

	_, err := retrying.DailyBars(context.Background(), "VIX", time.Now().AddDate(0, 0, -5), time.Now())
	require.Error(t, err)
	src.AssertNumberOfCalls(t, "DailyBars", 3)
}

func TestHistory(t *testing.T) {
	now := time.Date(2024, 3, 4, 15, 0, 0, 0, time.UTC)
	bars := []domain.PriceBar{{Date: now, Open: decimal.NewFromInt(1)}}

	src := &mockSource{}
	src.On("DailyBars", mock.Anything, "TECL", now.AddDate(0, 0, -60), now).Return(bars, nil)

	series, err := History(context.Background(), src, "TECL", 60, now)
	require.NoError(t, err)
	assert.Equal(t, "TECL", series.Symbol)
	assert.Equal(t, bars, series.Bars)
}

func TestSymbolMap(t *testing.T) {
	m := SymbolMap{"VIX": "^VIX", "EMPTY": ""}
	assert.Equal(t, "^VIX", m.Resolve("VIX"))
	assert.Equal(t, "TECL", m.Resolve("TECL"))
	assert.Equal(t, "EMPTY", m.Resolve("EMPTY"))
}
