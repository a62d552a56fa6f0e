package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventType classifies entries of the live event log.
type EventType string

const (
	EventBuy         EventType = "BUY"
	EventSell        EventType = "SELL"
	EventSignalCheck EventType = "SIGNAL_CHECK"
	EventDailyReport EventType = "DAILY_REPORT"
)

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	switch t {
	case EventBuy, EventSell, EventSignalCheck, EventDailyReport:
		return true
	}
	return false
}

// LogEvent is one entry of the live event log, keyed by date and timestamp.
type LogEvent struct {
	Timestamp time.Time           `json:"timestamp"`
	Type      EventType           `json:"event_type"`
	Symbol    string              `json:"symbol"`
	Price     decimal.NullDecimal `json:"price"`
	Quantity  decimal.NullDecimal `json:"quantity"`
	VIX       decimal.NullDecimal `json:"vix"`
	SMA       decimal.NullDecimal `json:"sma"`
	WMA       decimal.NullDecimal `json:"wma"`
	Details   map[string]string   `json:"details,omitempty"`
}

// EventDate returns the calendar date the event belongs to.
func (e LogEvent) EventDate() string {
	return e.Timestamp.In(MarketLocation).Format(DateLayout)
}

// LogEventRecord pairs an event with its position in the log.
type LogEventRecord struct {
	Index uint64   `json:"index"`
	Event LogEvent `json:"event"`
}

// NullDecimalFrom wraps a value into a valid NullDecimal.
func NullDecimalFrom(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NewNullDecimal(d)
}
