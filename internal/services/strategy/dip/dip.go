// Package dip implements the leveraged dip-buying position state machine.
//
// Evaluate is pure: it takes the current PositionState and one observation and
// returns the decision together with the state that follows if the decision is
// carried out. Callers that execute real orders commit Next only after the order
// succeeded.
package dip

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/levtrader/internal/domain"
	"github.com/vadiminshakov/levtrader/internal/services/signals"
)

// Outcome classifies a decision.
type Outcome int

const (
	// OutcomeHold means the rules were evaluated and nothing fired.
	OutcomeHold Outcome = iota
	// OutcomeWarmUp means an indicator is still absent.
	OutcomeWarmUp
	// OutcomeCooldown means buying was suppressed after a recent sell.
	OutcomeCooldown
	// OutcomeTrade means Action should be executed.
	OutcomeTrade
)

func (o Outcome) String() string {
	switch o {
	case OutcomeHold:
		return "hold"
	case OutcomeWarmUp:
		return "warm_up"
	case OutcomeCooldown:
		return "cooldown"
	case OutcomeTrade:
		return "trade"
	default:
		return "unknown"
	}
}

// Input is one observation of both instruments.
type Input struct {
	Date   time.Time
	PriceA decimal.Decimal
	PriceB decimal.Decimal
	SMA    decimal.NullDecimal
	WMA    decimal.NullDecimal
	// LaggedB and LaggedWMA come from the row ConditionalLag positions earlier.
	LaggedB   decimal.NullDecimal
	LaggedWMA decimal.NullDecimal
}

// InputAt builds the observation for rows[i] using the row opens as prices.
func InputAt(rows []signals.Row, i, lag int) Input {
	row := rows[i]
	in := Input{
		Date:   row.Date,
		PriceA: row.A.Open,
		PriceB: row.B.Open,
		SMA:    row.SMA,
		WMA:    row.WMA,
	}

	if lagged, ok := signals.Lagged(rows, i, lag); ok {
		in.LaggedB = decimal.NewNullDecimal(lagged.B.Open)
		in.LaggedWMA = lagged.WMA
	}

	return in
}

// Decision is the result of evaluating one observation.
type Decision struct {
	Outcome Outcome
	Action  domain.Action
	Price   decimal.Decimal
	Reason  string
	// Next is the state after the trade; equal to the input state unless Outcome is OutcomeTrade.
	Next domain.PositionState
}

// IsTrade reports whether the decision asks for an order.
func (d Decision) IsTrade() bool {
	return d.Outcome == OutcomeTrade
}

// Evaluate applies the strategy rules to one observation.
func Evaluate(state domain.PositionState, in Input, p domain.StrategyParams) Decision {
	hold := Decision{Outcome: OutcomeHold, Next: state}

	if !in.SMA.Valid || !in.WMA.Valid {
		hold.Outcome = OutcomeWarmUp
		hold.Reason = "insufficient indicator history"
		return hold
	}

	if state.InPosition() {
		target := state.PurchasePrice.Mul(p.SellMultiplier)
		if in.PriceA.GreaterThanOrEqual(target) {
			return Decision{
				Outcome: OutcomeTrade,
				Action:  domain.ActionSell,
				Price:   in.PriceA,
				Reason:  fmt.Sprintf("price %s reached target %s", in.PriceA.String(), target.String()),
				Next:    state.Closed(in.Date),
			}
		}

		hold.Reason = fmt.Sprintf("holding, target %s", target.String())
		return hold
	}

	if domain.InCooldown(state.LastSellDate, in.Date, p.CooldownDays) {
		hold.Outcome = OutcomeCooldown
		hold.Reason = fmt.Sprintf("cooldown after sell on %s", state.LastSellDate.Format(domain.DateLayout))
		return hold
	}

	sma := in.SMA.Decimal
	if low := sma.Mul(p.LowMultiplier); in.PriceA.LessThan(low) {
		return buy(state, in, domain.ActionBuyImmediate,
			fmt.Sprintf("price %s below %s (SMA %s)", in.PriceA.String(), low.String(), sma.String()))
	}

	high := sma.Mul(p.HighMultiplier)
	if in.PriceA.LessThan(high) && volatilitySpike(in, p) {
		return buy(state, in, domain.ActionBuyConditional,
			fmt.Sprintf("price %s below %s and lagged volatility %s above %s x WMA %s",
				in.PriceA.String(), high.String(), in.LaggedB.Decimal.String(),
				p.VolatilityMultiplier.String(), in.LaggedWMA.Decimal.String()))
	}

	hold.Reason = "no entry signal"
	return hold
}

// volatilitySpike is false whenever the lagged row or its WMA is absent.
func volatilitySpike(in Input, p domain.StrategyParams) bool {
	if !in.LaggedB.Valid || !in.LaggedWMA.Valid {
		return false
	}
	return in.LaggedB.Decimal.GreaterThan(in.LaggedWMA.Decimal.Mul(p.VolatilityMultiplier))
}

func buy(state domain.PositionState, in Input, action domain.Action, reason string) Decision {
	return Decision{
		Outcome: OutcomeTrade,
		Action:  action,
		Price:   in.PriceA,
		Reason:  reason,
		Next:    state.Opened(in.PriceA, in.Date, decimal.Zero),
	}
}
