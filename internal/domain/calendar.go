package domain

import (
	"time"
	_ "time/tzdata"
)

// MarketLocation is the exchange time zone of the traded instruments.
var MarketLocation = mustLoadLocation("America/New_York")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

// IsBusinessDay reports whether d falls on Monday through Friday.
func IsBusinessDay(d time.Time) bool {
	wd := d.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// AddBusinessDays moves d forward by n weekdays. Holidays are not skipped.
func AddBusinessDays(d time.Time, n int) time.Time {
	day := Day(d)
	for n > 0 {
		day = day.AddDate(0, 0, 1)
		if IsBusinessDay(day) {
			n--
		}
	}
	return day
}

// InCooldown reports whether buying is suppressed on date after a sell on lastSell.
// The sell date itself and the next `days` business days are blocked.
func InCooldown(lastSell, date time.Time, days int) bool {
	if lastSell.IsZero() {
		return false
	}

	sold := Day(lastSell)
	today := Day(date)
	if today.Before(sold) {
		return false
	}

	return !today.After(AddBusinessDays(sold, days))
}

// MarketHours is the regular session of the exchange.
type MarketHours struct {
	Location *time.Location
	Open     time.Duration
	Close    time.Duration
}

// RegularSession returns the 09:30-16:00 New York session.
func RegularSession() MarketHours {
	return MarketHours{
		Location: MarketLocation,
		Open:     9*time.Hour + 30*time.Minute,
		Close:    16 * time.Hour,
	}
}

// IsOpen reports whether t falls inside the session on a weekday.
func (m MarketHours) IsOpen(t time.Time) bool {
	local := t.In(m.Location)
	if !IsBusinessDay(local) {
		return false
	}

	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, m.Location)
	offset := local.Sub(midnight)

	return offset >= m.Open && offset < m.Close
}

// TradingDay returns the exchange calendar date of t.
func (m MarketHours) TradingDay(t time.Time) time.Time {
	return Day(t.In(m.Location))
}
