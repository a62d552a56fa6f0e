package marketdata

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/levtrader/internal/domain"
	"github.com/vadiminshakov/levtrader/pkg/retrier"
	"go.uber.org/zap"
)

// RetryingSource retries every call of the wrapped source.
type RetryingSource struct {
	src     QuoteSource
	retrier *retrier.Retrier
	l       *zap.Logger
}

// NewRetryingSource wraps src. Rate limited failures are recognized by IsRateLimited.
func NewRetryingSource(l *zap.Logger, src QuoteSource, opts ...retrier.Option) *RetryingSource {
	opts = append([]retrier.Option{retrier.WithRateLimit(IsRateLimited, 3)}, opts...)

	return &RetryingSource{
		src:     src,
		retrier: retrier.New(opts...),
		l:       l,
	}
}

func (s *RetryingSource) Name() string {
	return s.src.Name()
}

func (s *RetryingSource) LatestPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	return retrier.DoWithData(s.retrier, ctx, func(ctx context.Context) (decimal.Decimal, error) {
		price, err := s.src.LatestPrice(ctx, symbol)
		if err != nil {
			s.l.Warn("latest price attempt failed", zap.String("source", s.src.Name()), zap.String("symbol", symbol), zap.Error(err))
		}
		return price, err
	})
}

func (s *RetryingSource) DailyBars(ctx context.Context, symbol string, from, to time.Time) ([]domain.PriceBar, error) {
	return retrier.DoWithData(s.retrier, ctx, func(ctx context.Context) ([]domain.PriceBar, error) {
		bars, err := s.src.DailyBars(ctx, symbol, from, to)
		if err != nil {
			s.l.Warn("daily bars attempt failed", zap.String("source", s.src.Name()), zap.String("symbol", symbol), zap.Error(err))
		}
		return bars, err
	})
}
