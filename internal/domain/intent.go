package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// IntentStatus tracks an order from submission to persisted state.
type IntentStatus string

const (
	IntentPending IntentStatus = "pending"
	IntentDone    IntentStatus = "done"
	IntentFailed  IntentStatus = "failed"
)

// TradeIntent is written before an order is sent and closed once the resulting
// state is persisted. A pending intent found at startup marks an order whose
// outcome was never recorded.
type TradeIntent struct {
	ID       string          `json:"id"`
	Status   IntentStatus    `json:"status"`
	Side     OrderSide       `json:"side"`
	Action   Action          `json:"action"`
	Symbol   string          `json:"symbol"`
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Time     time.Time       `json:"time"`
	Error    string          `json:"error,omitempty"`
}
