package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar date format used in files, keys and logs.
const DateLayout = "2006-01-02"

// PriceBar is one trading day of an instrument.
type PriceBar struct {
	Date   time.Time
	Open   decimal.Decimal
	High   decimal.Decimal
	Low    decimal.Decimal
	Close  decimal.Decimal
	Volume int64
}

// Series is the ordered daily history of one instrument.
type Series struct {
	Symbol string
	Bars   []PriceBar
}

// Day strips the clock part of t, keeping the calendar date as seen in t's location.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
