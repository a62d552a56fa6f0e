package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderSide is the direction of a market order.
type OrderSide string

const (
	SideBuy  OrderSide = "buy"
	SideSell OrderSide = "sell"
)

// Account is a snapshot of the brokerage account.
type Account struct {
	Cash           decimal.Decimal
	BuyingPower    decimal.Decimal
	PortfolioValue decimal.Decimal
}

// Clock is the broker's view of the market session.
type Clock struct {
	Timestamp time.Time
	IsOpen    bool
	NextOpen  time.Time
	NextClose time.Time
}

// BrokerPosition is an open position as reported by the broker.
type BrokerPosition struct {
	Symbol        string
	Quantity      decimal.Decimal
	AvgEntryPrice decimal.Decimal
}

// OrderRequest is a full-size market order.
type OrderRequest struct {
	Symbol        string
	Side          OrderSide
	Quantity      decimal.Decimal
	ClientOrderID string
}

// Order is the broker acknowledgement of a submitted order.
type Order struct {
	ID            string
	ClientOrderID string
	Symbol        string
	Side          OrderSide
	Quantity      decimal.Decimal
	FilledPrice   decimal.NullDecimal
}

// DailyReport summarizes the live account once per trading day.
type DailyReport struct {
	Date             time.Time
	PortfolioValue   decimal.Decimal
	Cash             decimal.Decimal
	BuyingPower      decimal.Decimal
	InitialCapital   decimal.NullDecimal
	TotalReturn      float64
	AnnualizedReturn float64
	HasAnnualized    bool
	Position         PositionState
	MarketPrice      decimal.NullDecimal
	UnrealizedPL     decimal.NullDecimal
}
