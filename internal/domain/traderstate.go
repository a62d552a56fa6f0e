package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultTraderID is the id of the single live trader.
const DefaultTraderID = "main"

// TraderState is the persisted snapshot of a live trader.
type TraderState struct {
	TraderID       string              `json:"trader_id"`
	InPosition     bool                `json:"in_position"`
	PurchasePrice  decimal.Decimal     `json:"purchase_price"`
	PurchaseDate   time.Time           `json:"purchase_date"`
	PositionSize   decimal.Decimal     `json:"position_size"`
	LastSellDate   time.Time           `json:"last_sell_date"`
	InitialCapital decimal.NullDecimal `json:"initial_capital"`
	// InceptionDate is when InitialCapital was recorded.
	InceptionDate time.Time `json:"inception_date"`
	LastUpdated   time.Time `json:"last_updated"`
}

// NewTraderState builds a snapshot from the in-memory position.
func NewTraderState(id string, pos PositionState, initialCapital decimal.NullDecimal, now time.Time) TraderState {
	return TraderState{
		TraderID:       id,
		InPosition:     pos.InPosition(),
		PurchasePrice:  pos.PurchasePrice,
		PurchaseDate:   pos.PurchaseDate,
		PositionSize:   pos.Quantity,
		LastSellDate:   pos.LastSellDate,
		InitialCapital: initialCapital,
		LastUpdated:    now,
	}
}

// Position restores the decision state from the snapshot.
func (s TraderState) Position() PositionState {
	if !s.InPosition {
		return PositionState{Status: StatusFlat, LastSellDate: s.LastSellDate}
	}

	return PositionState{
		Status:        StatusLong,
		PurchasePrice: s.PurchasePrice,
		PurchaseDate:  s.PurchaseDate,
		Quantity:      s.PositionSize,
		LastSellDate:  s.LastSellDate,
	}
}
