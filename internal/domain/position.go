package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PositionStatus is either flat or long; there is never more than one open position.
type PositionStatus int

const (
	StatusFlat PositionStatus = iota
	StatusLong
)

func (s PositionStatus) String() string {
	switch s {
	case StatusFlat:
		return "FLAT"
	case StatusLong:
		return "LONG"
	default:
		return "unknown"
	}
}

// PositionState is the full state carried between decision steps.
type PositionState struct {
	Status        PositionStatus
	PurchasePrice decimal.Decimal
	PurchaseDate  time.Time
	Quantity      decimal.Decimal
	// LastSellDate is the cooldown marker, zero when nothing was sold yet.
	LastSellDate time.Time
}

// InPosition reports whether a position is open.
func (s PositionState) InPosition() bool {
	return s.Status == StatusLong
}

// Opened returns the state after a buy at price on date.
func (s PositionState) Opened(price decimal.Decimal, date time.Time, qty decimal.Decimal) PositionState {
	return PositionState{
		Status:        StatusLong,
		PurchasePrice: price,
		PurchaseDate:  date,
		Quantity:      qty,
		LastSellDate:  s.LastSellDate,
	}
}

// Closed returns the flat state after a sell on date.
func (s PositionState) Closed(date time.Time) PositionState {
	return PositionState{
		Status:       StatusFlat,
		LastSellDate: date,
	}
}
