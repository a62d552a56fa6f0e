package traderstate

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/levtrader/internal/domain"
)

func TestWALStore_SaveLoad(t *testing.T) {
	dir := t.TempDir()
	store, err := NewWALStore(dir)
	require.NoError(t, err)

	state, err := store.Load(domain.DefaultTraderID)
	require.NoError(t, err)
	assert.Nil(t, state)

	now := time.Date(2024, 3, 4, 15, 0, 0, 0, time.UTC)
	first := domain.TraderState{
		TraderID:       domain.DefaultTraderID,
		InPosition:     true,
		PurchasePrice:  decimal.RequireFromString("74.5"),
		PurchaseDate:   now,
		PositionSize:   decimal.NewFromInt(127),
		InitialCapital: decimal.NewNullDecimal(decimal.NewFromInt(10000)),
		LastUpdated:    now,
	}
	require.NoError(t, store.Save(first))

	second := first
	second.InPosition = false
	second.PurchasePrice = decimal.Zero
	second.LastSellDate = now.AddDate(0, 0, 3)
	require.NoError(t, store.Save(second))

	require.NoError(t, store.Save(domain.TraderState{TraderID: "other", InPosition: true}))
	require.NoError(t, store.Close())

	reopened, err := NewWALStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	loaded, err := reopened.Load(domain.DefaultTraderID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.False(t, loaded.InPosition)
	assert.True(t, loaded.LastSellDate.Equal(now.AddDate(0, 0, 3)))
	assert.True(t, loaded.InitialCapital.Valid)
	assert.True(t, loaded.InitialCapital.Decimal.Equal(decimal.NewFromInt(10000)))

	other, err := reopened.Load("other")
	require.NoError(t, err)
	assert.True(t, other.InPosition)
}

func TestWALStore_Intents(t *testing.T) {
	dir := t.TempDir()
	store, err := NewWALStore(dir)
	require.NoError(t, err)

	a := domain.TradeIntent{ID: "a", Status: domain.IntentPending, Side: domain.SideBuy, Symbol: "TECL", Quantity: decimal.NewFromInt(10)}
	b := domain.TradeIntent{ID: "b", Status: domain.IntentPending, Side: domain.SideSell, Symbol: "TECL", Quantity: decimal.NewFromInt(10)}
	require.NoError(t, store.SaveIntent(a))
	require.NoError(t, store.SaveIntent(b))

	a.Status = domain.IntentDone
	require.NoError(t, store.SaveIntent(a))
	require.NoError(t, store.Close())

	reopened, err := NewWALStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	intents := reopened.Intents()
	require.Len(t, intents, 2)
	assert.Equal(t, "a", intents[0].ID)
	assert.Equal(t, domain.IntentDone, intents[0].Status)
	assert.Equal(t, "b", intents[1].ID)
	assert.Equal(t, domain.IntentPending, intents[1].Status)
	assert.Equal(t, domain.SideSell, intents[1].Side)
}

func TestWALStore_Validation(t *testing.T) {
	store, err := NewWALStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	assert.Error(t, store.Save(domain.TraderState{}))
	assert.Error(t, store.SaveIntent(domain.TradeIntent{}))
}
