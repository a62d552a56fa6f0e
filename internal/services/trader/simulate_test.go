package trader

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/levtrader/internal/domain"
	"github.com/vadiminshakov/levtrader/internal/storage/simstate"
	"go.uber.org/zap"
)

// mockPricer is a simple mock for the Pricer interface.
type mockPricer struct {
	price decimal.Decimal
}

func (m *mockPricer) LatestPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	return m.price, nil
}

func newTestTrader(t *testing.T, dir string, pricer Pricer) *SimulateTrader {
	store, err := simstate.NewStore(dir, "test")
	require.NoError(t, err)

	trader, err := NewSimulateTrader(zap.NewNop(), pricer, store, decimal.NewFromInt(10000))
	require.NoError(t, err)
	return trader
}

func TestSimulateTrader_NewSimulateTrader(t *testing.T) {
	trader := newTestTrader(t, t.TempDir(), &mockPricer{price: decimal.NewFromInt(50)})

	acc, err := trader.Account(context.Background())
	require.NoError(t, err)
	assert.True(t, acc.Cash.Equal(decimal.NewFromInt(10000)))
	assert.True(t, acc.BuyingPower.Equal(decimal.NewFromInt(10000)))

	pos, err := trader.Position(context.Background(), "TECL")
	require.NoError(t, err)
	assert.Nil(t, pos)

	_, err = NewSimulateTrader(zap.NewNop(), nil, nil, decimal.Zero)
	require.Error(t, err)
}

func TestSimulateTrader_BuySell(t *testing.T) {
	pricer := &mockPricer{price: decimal.NewFromInt(50)}
	trader := newTestTrader(t, t.TempDir(), pricer)
	ctx := context.Background()

	order, err := trader.PlaceOrder(ctx, domain.OrderRequest{Symbol: "TECL", Side: domain.SideBuy, Quantity: decimal.NewFromInt(100), ClientOrderID: "buy-1"})
	require.NoError(t, err)
	assert.True(t, order.FilledPrice.Decimal.Equal(decimal.NewFromInt(50)))

	pos, err := trader.Position(ctx, "TECL")
	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.True(t, pos.Quantity.Equal(decimal.NewFromInt(100)))
	assert.True(t, pos.AvgEntryPrice.Equal(decimal.NewFromInt(50)))

	pricer.price = decimal.NewFromInt(60)
	acc, err := trader.Account(ctx)
	require.NoError(t, err)
	assert.True(t, acc.Cash.Equal(decimal.NewFromInt(5000)))
	assert.True(t, acc.PortfolioValue.Equal(decimal.NewFromInt(11000)))

	_, err = trader.PlaceOrder(ctx, domain.OrderRequest{Symbol: "TECL", Side: domain.SideSell, Quantity: decimal.NewFromInt(100), ClientOrderID: "sell-1"})
	require.NoError(t, err)

	pos, err = trader.Position(ctx, "TECL")
	require.NoError(t, err)
	assert.Nil(t, pos)

	acc, err = trader.Account(ctx)
	require.NoError(t, err)
	assert.True(t, acc.Cash.Equal(decimal.NewFromInt(11000)))
}

func TestSimulateTrader_Rejections(t *testing.T) {
	trader := newTestTrader(t, t.TempDir(), &mockPricer{price: decimal.NewFromInt(50)})
	ctx := context.Background()

	_, err := trader.PlaceOrder(ctx, domain.OrderRequest{Symbol: "TECL", Side: domain.SideBuy, Quantity: decimal.NewFromInt(201)})
	require.ErrorIs(t, err, ErrInsufficientFunds)

	_, err = trader.PlaceOrder(ctx, domain.OrderRequest{Symbol: "TECL", Side: domain.SideSell, Quantity: decimal.NewFromInt(1)})
	require.ErrorIs(t, err, ErrNoPosition)

	_, err = trader.PlaceOrder(ctx, domain.OrderRequest{Symbol: "TECL", Side: domain.SideBuy, Quantity: decimal.Zero})
	require.Error(t, err)
}

func TestSimulateTrader_IdempotentClientOrderID(t *testing.T) {
	trader := newTestTrader(t, t.TempDir(), &mockPricer{price: decimal.NewFromInt(50)})
	ctx := context.Background()
	req := domain.OrderRequest{Symbol: "TECL", Side: domain.SideBuy, Quantity: decimal.NewFromInt(10), ClientOrderID: "same"}

	_, err := trader.PlaceOrder(ctx, req)
	require.NoError(t, err)
	_, err = trader.PlaceOrder(ctx, req)
	require.NoError(t, err)

	pos, err := trader.Position(ctx, "TECL")
	require.NoError(t, err)
	assert.True(t, pos.Quantity.Equal(decimal.NewFromInt(10)))
}

func TestSimulateTrader_RestoresState(t *testing.T) {
	dir := t.TempDir()
	pricer := &mockPricer{price: decimal.NewFromInt(40)}

	first := newTestTrader(t, dir, pricer)
	_, err := first.PlaceOrder(context.Background(), domain.OrderRequest{Symbol: "TECL", Side: domain.SideBuy, Quantity: decimal.NewFromInt(5), ClientOrderID: "x"})
	require.NoError(t, err)

	second := newTestTrader(t, dir, pricer)
	pos, err := second.Position(context.Background(), "TECL")
	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.True(t, pos.Quantity.Equal(decimal.NewFromInt(5)))

	acc, err := second.Account(context.Background())
	require.NoError(t, err)
	assert.True(t, acc.Cash.Equal(decimal.NewFromInt(9800)))
}

func TestSimulateTrader_Clock(t *testing.T) {
	trader := newTestTrader(t, t.TempDir(), &mockPricer{price: decimal.NewFromInt(1)})

	trader.now = func() time.Time { return time.Date(2024, 3, 4, 10, 0, 0, 0, domain.MarketLocation) }
	clock, err := trader.Clock(context.Background())
	require.NoError(t, err)
	assert.True(t, clock.IsOpen)

	trader.now = func() time.Time { return time.Date(2024, 3, 9, 10, 0, 0, 0, domain.MarketLocation) }
	clock, err = trader.Clock(context.Background())
	require.NoError(t, err)
	assert.False(t, clock.IsOpen)
}
