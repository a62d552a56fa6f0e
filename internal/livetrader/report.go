package livetrader

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/levtrader/internal/domain"
	"go.uber.org/zap"
)

// DailyReport summarizes the account since inception and logs it as an event.
func (t *LiveTrader) DailyReport(ctx context.Context) (domain.DailyReport, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	account, err := t.broker.Account(ctx)
	if err != nil {
		return domain.DailyReport{}, errors.Wrap(err, "get account")
	}

	now := t.now()
	report := domain.DailyReport{
		Date:           t.hours.TradingDay(now),
		PortfolioValue: account.PortfolioValue,
		Cash:           account.Cash,
		BuyingPower:    account.BuyingPower,
		InitialCapital: t.initialCapital,
		Position:       t.position,
	}

	if t.initialCapital.Valid {
		if r, err := domain.TotalReturn(t.initialCapital.Decimal, account.PortfolioValue); err == nil {
			report.TotalReturn = r
		}
		if r, err := annualizedSince(t.initialCapital.Decimal, account.PortfolioValue, t.inception, now); err == nil {
			report.AnnualizedReturn = r
			report.HasAnnualized = true
		}
	}

	if t.position.InPosition() {
		price, err := t.quotes.LatestPrice(ctx, t.cfg.SymbolA)
		if err != nil {
			t.l.Warn("no market price for daily report", zap.Error(err))
		} else {
			report.MarketPrice = domain.NullDecimalFrom(price)
			report.UnrealizedPL = domain.NullDecimalFrom(price.Sub(t.position.PurchasePrice).Mul(t.position.Quantity))
		}
	}

	t.l.Info("daily report",
		zap.String("portfolio_value", report.PortfolioValue.String()),
		zap.String("cash", report.Cash.String()),
		zap.String("buying_power", report.BuyingPower.String()),
		zap.Float64("total_return_pct", report.TotalReturn),
		zap.Float64("annualized_return_pct", report.AnnualizedReturn),
		zap.String("status", report.Position.Status.String()))

	t.appendEvent(domain.LogEvent{
		Timestamp: now,
		Type:      domain.EventDailyReport,
		Symbol:    t.cfg.SymbolA,
		Price:     report.MarketPrice,
		Quantity:  domain.NullDecimalFrom(t.position.Quantity),
		Details:   reportDetails(report),
	})

	return report, nil
}

func annualizedSince(start, end decimal.Decimal, from, to time.Time) (float64, error) {
	if from.IsZero() {
		return 0, domain.ErrNonPositivePeriod
	}
	return domain.AnnualizedReturn(start, end, from, to)
}

func reportDetails(r domain.DailyReport) map[string]string {
	details := map[string]string{
		"portfolio_value": r.PortfolioValue.String(),
		"cash":            r.Cash.String(),
		"buying_power":    r.BuyingPower.String(),
		"total_return":    decimal.NewFromFloat(r.TotalReturn).StringFixed(2),
		"position":        r.Position.Status.String(),
	}
	if r.InitialCapital.Valid {
		details["initial_capital"] = r.InitialCapital.Decimal.String()
	}
	if r.HasAnnualized {
		details["annualized_return"] = decimal.NewFromFloat(r.AnnualizedReturn).StringFixed(2)
	}
	if r.UnrealizedPL.Valid {
		details["unrealized_pl"] = r.UnrealizedPL.Decimal.StringFixed(2)
	}
	return details
}
