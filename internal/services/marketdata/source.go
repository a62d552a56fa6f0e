// Package marketdata provides quote sources for daily bars and latest prices.
package marketdata

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/levtrader/internal/domain"
)

// ErrRateLimited marks a throttled request; retries back off harder on it.
var ErrRateLimited = errors.New("rate limited")

// QuoteSource supplies latest prices and daily history for a symbol.
type QuoteSource interface {
	// Name identifies the source in logs.
	Name() string
	// LatestPrice returns the most recent traded price.
	LatestPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
	// DailyBars returns daily bars between from and to, oldest first.
	DailyBars(ctx context.Context, symbol string, from, to time.Time) ([]domain.PriceBar, error)
}

// IsRateLimited reports whether err is a throttling response.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") || strings.Contains(msg, "too many requests")
}

// History fetches a series covering the last days calendar days up to now.
func History(ctx context.Context, src QuoteSource, symbol string, days int, now time.Time) (domain.Series, error) {
	bars, err := src.DailyBars(ctx, symbol, now.AddDate(0, 0, -days), now)
	if err != nil {
		return domain.Series{}, errors.Wrapf(err, "fetch %s history from %s", symbol, src.Name())
	}

	return domain.Series{Symbol: symbol, Bars: bars}, nil
}

// SymbolMap translates logical instrument names into source tickers.
type SymbolMap map[string]string

// Resolve returns the source ticker for symbol, or symbol itself.
func (m SymbolMap) Resolve(symbol string) string {
	if mapped, ok := m[symbol]; ok && mapped != "" {
		return mapped
	}
	return symbol
}

func tradingDay(t time.Time) time.Time {
	return domain.Day(t.In(domain.MarketLocation))
}
