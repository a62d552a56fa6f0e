package domain

import "fmt"

// Action is the kind of trade the strategy emits.
type Action int

const (
	ActionBuyImmediate Action = iota
	ActionBuyConditional
	ActionSell
)

const (
	actionStringBuyImmediate   = "BUY_IMMEDIATE"
	actionStringBuyConditional = "BUY_CONDITIONAL"
	actionStringSell           = "SELL"
)

// String returns the string representation of the action
func (a Action) String() string {
	switch a {
	case ActionBuyImmediate:
		return actionStringBuyImmediate
	case ActionBuyConditional:
		return actionStringBuyConditional
	case ActionSell:
		return actionStringSell
	default:
		return "unknown"
	}
}

// IsBuy reports whether the action opens a position.
func (a Action) IsBuy() bool {
	return a == ActionBuyImmediate || a == ActionBuyConditional
}

// MarshalText implements encoding.TextMarshaler.
func (a Action) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Action) UnmarshalText(text []byte) error {
	switch string(text) {
	case actionStringBuyImmediate:
		*a = ActionBuyImmediate
	case actionStringBuyConditional:
		*a = ActionBuyConditional
	case actionStringSell:
		*a = ActionSell
	default:
		return fmt.Errorf("unknown action %q", string(text))
	}
	return nil
}
