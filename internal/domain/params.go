package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// StrategyParams holds the tunable thresholds of the dip-buying strategy.
type StrategyParams struct {
	// Window is the length N of both moving averages.
	Window int
	// SellMultiplier is the take-profit ratio over the purchase price.
	SellMultiplier decimal.Decimal
	// LowMultiplier triggers an immediate buy when price A falls below LowMultiplier*SMA.
	LowMultiplier decimal.Decimal
	// HighMultiplier caps the conditional buy at HighMultiplier*SMA.
	HighMultiplier decimal.Decimal
	// VolatilityMultiplier is the spike ratio of lagged B over its lagged WMA.
	VolatilityMultiplier decimal.Decimal
	// BankSkim is the share of each realized profit moved into the bank.
	BankSkim decimal.Decimal
	// PositionFraction is the share of buying power used for a live order.
	PositionFraction decimal.Decimal
	// ConditionalLag is how many rows back the volatility spike is looked up.
	ConditionalLag int
	// CooldownDays is the number of business days after a sell with no buys.
	CooldownDays int
}

// DefaultStrategyParams returns the canonical parameter set.
func DefaultStrategyParams() StrategyParams {
	return StrategyParams{
		Window:               30,
		SellMultiplier:       decimal.RequireFromString("1.058"),
		LowMultiplier:        decimal.RequireFromString("0.75"),
		HighMultiplier:       decimal.RequireFromString("1.25"),
		VolatilityMultiplier: decimal.RequireFromString("1.04"),
		BankSkim:             decimal.RequireFromString("0.2"),
		PositionFraction:     decimal.RequireFromString("0.95"),
		ConditionalLag:       4,
		CooldownDays:         1,
	}
}

// Validate rejects parameter sets that cannot drive the strategy.
func (p StrategyParams) Validate() error {
	if p.Window < 1 {
		return fmt.Errorf("window must be at least 1, got %d", p.Window)
	}
	if p.ConditionalLag < 1 {
		return fmt.Errorf("conditional lag must be at least 1, got %d", p.ConditionalLag)
	}
	if p.CooldownDays < 0 {
		return fmt.Errorf("cooldown days must not be negative, got %d", p.CooldownDays)
	}

	for name, v := range map[string]decimal.Decimal{
		"sell multiplier":       p.SellMultiplier,
		"low multiplier":        p.LowMultiplier,
		"high multiplier":       p.HighMultiplier,
		"volatility multiplier": p.VolatilityMultiplier,
	} {
		if !v.IsPositive() {
			return fmt.Errorf("%s must be positive, got %s", name, v.String())
		}
	}

	if p.BankSkim.IsNegative() || p.BankSkim.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("bank skim must be within [0, 1], got %s", p.BankSkim.String())
	}
	if !p.PositionFraction.IsPositive() || p.PositionFraction.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("position fraction must be within (0, 1], got %s", p.PositionFraction.String())
	}

	return nil
}
