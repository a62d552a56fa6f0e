package domain

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// FundLedger tracks the simulated fund and the bank reserve that is never reinvested.
type FundLedger struct {
	Initial decimal.Decimal
	Fund    decimal.Decimal
	Bank    decimal.Decimal
}

// NewFundLedger starts a ledger with the whole initial capital in the fund.
func NewFundLedger(initial decimal.Decimal) *FundLedger {
	return &FundLedger{
		Initial: initial,
		Fund:    initial,
		Bank:    decimal.Zero,
	}
}

// Sell applies a round trip from purchase to sell price and returns the realized profit.
// The fund compounds by the full price ratio and skim*profit is added to the bank on top,
// so Total counts the skimmed part twice.
func (l *FundLedger) Sell(purchase, sell, skim decimal.Decimal) decimal.Decimal {
	ratio := sell.Div(purchase)
	profit := l.Fund.Mul(ratio.Sub(decimal.NewFromInt(1)))

	l.Bank = l.Bank.Add(profit.Mul(skim))
	l.Fund = l.Fund.Mul(ratio)

	return profit
}

// Total returns fund plus bank.
func (l *FundLedger) Total() decimal.Decimal {
	return l.Fund.Add(l.Bank)
}

// BuyAndHold is the passive baseline: all capital into A at the first price, held to the end.
type BuyAndHold struct {
	Shares decimal.Decimal
	Value  decimal.Decimal
}

// NewBuyAndHold computes the baseline for initial capital between the first and last price.
func NewBuyAndHold(initial, first, last decimal.Decimal) (BuyAndHold, error) {
	if !first.IsPositive() {
		return BuyAndHold{}, errors.New("first price must be positive")
	}

	shares := initial.Div(first)
	return BuyAndHold{
		Shares: shares,
		Value:  shares.Mul(last),
	}, nil
}
