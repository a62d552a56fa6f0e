package internal

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/levtrader/internal/domain"
	"github.com/vadiminshakov/levtrader/internal/livetrader"
	"go.uber.org/zap"
)

type liveTrader interface {
	Initialize(ctx context.Context) error
	RunCycle(ctx context.Context) (livetrader.CycleResult, error)
	DailyReport(ctx context.Context) (domain.DailyReport, error)
}

// TradingBot runs the live trader on a fixed interval during regular market hours.
type TradingBot struct {
	trader   liveTrader
	interval time.Duration
	hours    domain.MarketHours
	now      func() time.Time
	l        *zap.Logger

	// trading day of the last daily report
	reportedDay time.Time
}

// NewTradingBot creates a new trading bot instance
func NewTradingBot(l *zap.Logger, trader liveTrader, interval time.Duration) (*TradingBot, error) {
	if trader == nil {
		return nil, errors.New("live trader is required")
	}
	if interval <= 0 {
		return nil, errors.Errorf("poll interval must be positive, got %s", interval)
	}

	return &TradingBot{
		trader:   trader,
		interval: interval,
		hours:    domain.RegularSession(),
		now:      time.Now,
		l:        l,
	}, nil
}

// Run initializes the trader, runs one cycle immediately and then one per interval
// until ctx is done.
func (b *TradingBot) Run(ctx context.Context) error {
	if err := b.trader.Initialize(ctx); err != nil {
		return errors.Wrap(err, "failed to initialize live trader")
	}

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	b.l.Info("Starting trading loop", zap.Duration("poll_interval", b.interval))
	b.Tick(ctx)

	for {
		select {
		case <-ctx.Done():
			b.l.Info("Context done, stopping trading bot run loop.")
			return ctx.Err()
		case <-ticker.C:
			b.Tick(ctx)
		}
	}
}

// Tick runs one scheduled step. Outside market hours it does nothing; the first step
// of each trading day also produces the daily report.
func (b *TradingBot) Tick(ctx context.Context) {
	now := b.now()
	if !b.hours.IsOpen(now) {
		b.l.Debug("outside market hours", zap.Time("now", now))
		return
	}

	day := b.hours.TradingDay(now)
	if !day.Equal(b.reportedDay) {
		if _, err := b.trader.DailyReport(ctx); err != nil {
			b.l.Error("daily report failed", zap.Error(err))
		} else {
			b.reportedDay = day
		}
	}

	result, err := b.trader.RunCycle(ctx)
	if err != nil {
		if errors.Is(err, livetrader.ErrInsufficientHistory) {
			b.l.Warn("not enough history for a signal, continuing", zap.Error(err))
		} else {
			b.l.Error("trading cycle failed", zap.Error(err))
		}
		return
	}

	if result.Order != nil {
		b.l.Info("Trade event occurred",
			zap.String("action", result.Decision.Action.String()),
			zap.String("quantity", result.Quantity.String()),
			zap.String("order_id", result.Order.ID))
	}
}
