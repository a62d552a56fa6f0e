package events

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/levtrader/internal/domain"
)

func at(day, hour int) time.Time {
	return time.Date(2024, 3, day, hour, 0, 0, 0, domain.MarketLocation)
}

func seed(t *testing.T, store *WALStore) {
	t.Helper()

	events := []domain.LogEvent{
		{Timestamp: at(4, 10), Type: domain.EventSignalCheck, Symbol: "TECL", Price: decimal.NewNullDecimal(decimal.NewFromInt(70))},
		{Timestamp: at(4, 11), Type: domain.EventBuy, Symbol: "TECL", Quantity: decimal.NewNullDecimal(decimal.NewFromInt(12)), Details: map[string]string{"success": "true"}},
		{Timestamp: at(5, 10), Type: domain.EventSignalCheck, Symbol: "TECL"},
		{Timestamp: at(5, 16), Type: domain.EventDailyReport, Symbol: "TECL"},
		{Timestamp: at(6, 10), Type: domain.EventSignalCheck, Symbol: "TECL"},
	}
	for _, e := range events {
		_, err := store.Append(e)
		require.NoError(t, err)
	}
}

func TestWALStore_EventsByDate(t *testing.T) {
	store, err := NewWALStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()
	seed(t, store)

	events, err := store.EventsByDate("2024-03-04", Filter{})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, domain.EventSignalCheck, events[0].Type)
	assert.Equal(t, domain.EventBuy, events[1].Type)
	assert.Equal(t, "true", events[1].Details["success"])
	assert.True(t, events[1].Quantity.Decimal.Equal(decimal.NewFromInt(12)))
	assert.False(t, events[1].Price.Valid)

	events, err = store.EventsByDate("2024-03-05", Filter{Type: domain.EventDailyReport})
	require.NoError(t, err)
	require.Len(t, events, 1)

	_, err = store.EventsByDate("March 5", Filter{})
	require.Error(t, err)
}

func TestWALStore_Recent(t *testing.T) {
	store, err := NewWALStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()
	seed(t, store)

	events, err := store.Recent(Filter{Type: domain.EventSignalCheck, Limit: 2})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.True(t, events[0].Timestamp.Equal(at(6, 10)))
	assert.True(t, events[1].Timestamp.Equal(at(5, 10)))

	all, err := store.Recent(Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestWALStore_Since(t *testing.T) {
	store, err := NewWALStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()
	seed(t, store)

	events, err := store.Since(at(5, 0), Filter{})
	require.NoError(t, err)
	assert.Len(t, events, 3)

	events, err = store.Since(at(5, 0), Filter{Type: domain.EventSignalCheck, Limit: 1})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.True(t, events[0].Timestamp.Equal(at(6, 10)))
}

func TestWALStore_AppendAndReopen(t *testing.T) {
	dir := t.TempDir()
	store, err := NewWALStore(dir)
	require.NoError(t, err)

	fixed := at(7, 12)
	store.now = func() time.Time { return fixed }

	idx, err := store.Append(domain.LogEvent{Type: domain.EventSell, Symbol: "TECL"})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), idx)

	_, err = store.Append(domain.LogEvent{Type: "HOLD"})
	require.Error(t, err)
	require.NoError(t, store.Close())

	reopened, err := NewWALStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	records, err := reopened.EventsAfter(0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, uint64(1), records[0].Index)
	assert.True(t, records[0].Event.Timestamp.Equal(fixed))
	assert.Equal(t, uint64(1), reopened.CurrentIndex())

	records, err = reopened.EventsAfter(1)
	require.NoError(t, err)
	assert.Empty(t, records)
}
