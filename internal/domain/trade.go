package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeEvent records one executed buy or sell.
type TradeEvent struct {
	Date     time.Time       `json:"date"`
	Action   Action          `json:"action"`
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
	// Fund is the fund after the trade.
	Fund decimal.Decimal `json:"fund"`
	// Bank is only set on sells.
	Bank   decimal.NullDecimal `json:"bank"`
	Reason string              `json:"reason,omitempty"`
}
