// Package trader contains brokerage adapters that place market orders and report
// account, clock and position state.
package trader

import "github.com/pkg/errors"

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNoPosition        = errors.New("no open position")
)
