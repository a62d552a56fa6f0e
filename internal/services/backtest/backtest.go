// Package backtest replays the dip strategy over historical daily series.
package backtest

import (
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/levtrader/internal/domain"
	"github.com/vadiminshakov/levtrader/internal/services/signals"
	"github.com/vadiminshakov/levtrader/internal/services/strategy/dip"
	"go.uber.org/zap"
)

// ErrNotEnoughData is returned when fewer than two joint rows are available.
var ErrNotEnoughData = errors.New("backtest needs at least two joint rows")

// Result is the outcome of one backtest run.
type Result struct {
	Start  time.Time
	End    time.Time
	Rows   int
	Trades []domain.TradeEvent

	InitialFund decimal.Decimal
	FinalFund   decimal.Decimal
	FinalBank   decimal.Decimal
	Total       decimal.Decimal
	// FinalState is the position left open at the end, if any. It is not marked to market.
	FinalState domain.PositionState

	TotalReturn float64
	// AnnualizedReturn is computed on the final fund only.
	AnnualizedReturn float64
	// TotalAnnualizedReturn is computed on fund plus bank.
	TotalAnnualizedReturn float64

	BuyAndHold           domain.BuyAndHold
	BuyAndHoldReturn     float64
	BuyAndHoldAnnualized float64
}

// Outperformance returns the combined total minus the buy-and-hold value.
func (r *Result) Outperformance() decimal.Decimal {
	return r.Total.Sub(r.BuyAndHold.Value)
}

// OutperformancePercent returns Outperformance relative to the buy-and-hold value.
func (r *Result) OutperformancePercent() float64 {
	if !r.BuyAndHold.Value.IsPositive() {
		return 0
	}
	return r.Outperformance().Div(r.BuyAndHold.Value).Mul(decimal.NewFromInt(100)).InexactFloat64()
}

// Runner executes backtests with a fixed parameter set.
type Runner struct {
	l           *zap.Logger
	params      domain.StrategyParams
	initialFund decimal.Decimal
}

// NewRunner validates the parameters and creates a Runner.
func NewRunner(l *zap.Logger, params domain.StrategyParams, initialFund decimal.Decimal) (*Runner, error) {
	if err := params.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid strategy params")
	}
	if !initialFund.IsPositive() {
		return nil, errors.Wrapf(domain.ErrNonPositiveCapital, "initial fund %s", initialFund.String())
	}

	return &Runner{l: l, params: params, initialFund: initialFund}, nil
}

// Run aligns both series, computes indicators and replays the strategy.
func (r *Runner) Run(a, b domain.Series) (*Result, error) {
	records, err := domain.Align(a, b)
	if err != nil {
		return nil, errors.Wrap(err, "align series")
	}

	rows, err := signals.Compute(records, r.params.Window)
	if err != nil {
		return nil, errors.Wrap(err, "compute indicators")
	}

	return r.RunRows(rows)
}

// RunRows replays the strategy over precomputed rows in a single pass.
func (r *Runner) RunRows(rows []signals.Row) (*Result, error) {
	if len(rows) < 2 {
		return nil, ErrNotEnoughData
	}

	state := domain.PositionState{}
	ledger := domain.NewFundLedger(r.initialFund)
	trades := make([]domain.TradeEvent, 0)

	for i := range rows {
		dec := dip.Evaluate(state, dip.InputAt(rows, i, r.params.ConditionalLag), r.params)
		if !dec.IsTrade() {
			continue
		}

		event := domain.TradeEvent{
			Date:   rows[i].Date,
			Action: dec.Action,
			Price:  dec.Price,
			Reason: dec.Reason,
		}

		if dec.Action == domain.ActionSell {
			profit := ledger.Sell(state.PurchasePrice, dec.Price, r.params.BankSkim)
			event.Quantity = state.Quantity
			event.Bank = decimal.NewNullDecimal(ledger.Bank)

			r.l.Info("sell",
				zap.String("date", event.Date.Format(domain.DateLayout)),
				zap.String("price", dec.Price.String()),
				zap.String("profit", profit.StringFixed(2)),
				zap.String("fund", ledger.Fund.StringFixed(2)),
				zap.String("bank", ledger.Bank.StringFixed(2)))
		} else {
			// whole fund goes in, quantity is notional
			dec.Next.Quantity = ledger.Fund.Div(dec.Price)
			event.Quantity = dec.Next.Quantity

			r.l.Info("buy",
				zap.String("date", event.Date.Format(domain.DateLayout)),
				zap.String("action", dec.Action.String()),
				zap.String("price", dec.Price.String()),
				zap.String("reason", dec.Reason))
		}

		event.Fund = ledger.Fund
		trades = append(trades, event)
		state = dec.Next
	}

	return r.summarize(rows, trades, ledger, state)
}

func (r *Runner) summarize(rows []signals.Row, trades []domain.TradeEvent, ledger *domain.FundLedger, state domain.PositionState) (*Result, error) {
	first, last := rows[0], rows[len(rows)-1]

	res := &Result{
		Start:       first.Date,
		End:         last.Date,
		Rows:        len(rows),
		Trades:      trades,
		InitialFund: ledger.Initial,
		FinalFund:   ledger.Fund,
		FinalBank:   ledger.Bank,
		Total:       ledger.Total(),
		FinalState:  state,
	}

	var err error
	if res.TotalReturn, err = domain.TotalReturn(ledger.Initial, res.Total); err != nil {
		return nil, errors.Wrap(err, "total return")
	}
	if res.AnnualizedReturn, err = domain.AnnualizedReturn(ledger.Initial, ledger.Fund, res.Start, res.End); err != nil {
		return nil, errors.Wrap(err, "annualized return")
	}
	if res.TotalAnnualizedReturn, err = domain.AnnualizedReturn(ledger.Initial, res.Total, res.Start, res.End); err != nil {
		return nil, errors.Wrap(err, "annualized total return")
	}

	if res.BuyAndHold, err = domain.NewBuyAndHold(ledger.Initial, first.A.Open, last.A.Open); err != nil {
		return nil, errors.Wrap(err, "buy and hold")
	}
	if res.BuyAndHoldReturn, err = domain.TotalReturn(ledger.Initial, res.BuyAndHold.Value); err != nil {
		return nil, errors.Wrap(err, "buy and hold return")
	}
	if res.BuyAndHoldAnnualized, err = domain.AnnualizedReturn(ledger.Initial, res.BuyAndHold.Value, res.Start, res.End); err != nil {
		return nil, errors.Wrap(err, "buy and hold annualized return")
	}

	return res, nil
}
