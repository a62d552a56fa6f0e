package marketdata

import (
	"context"
	"net/http"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/levtrader/internal/domain"
)

type alpacaDataClient interface {
	GetLatestTrade(symbol string, req marketdata.GetLatestTradeRequest) (*marketdata.Trade, error)
	GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error)
}

// AlpacaSource reads quotes from the Alpaca market data API.
type AlpacaSource struct {
	client  alpacaDataClient
	feed    string
	symbols SymbolMap
}

// NewAlpacaSource creates a source backed by the given market data client.
// feed is "iex" for free accounts or "sip".
func NewAlpacaSource(client *marketdata.Client, feed string, symbols SymbolMap) *AlpacaSource {
	return newAlpacaSource(client, feed, symbols)
}

func newAlpacaSource(client alpacaDataClient, feed string, symbols SymbolMap) *AlpacaSource {
	if feed == "" {
		feed = "iex"
	}
	if symbols == nil {
		// the volatility index itself is not tradable, VXX tracks it
		symbols = SymbolMap{"VIX": "VXX"}
	}

	return &AlpacaSource{client: client, feed: feed, symbols: symbols}
}

func (s *AlpacaSource) Name() string {
	return "alpaca"
}

// LatestPrice returns the price of the latest trade.
func (s *AlpacaSource) LatestPrice(_ context.Context, symbol string) (decimal.Decimal, error) {
	trade, err := s.client.GetLatestTrade(s.symbols.Resolve(symbol), marketdata.GetLatestTradeRequest{
		Feed: marketdata.Feed(s.feed),
	})
	if err != nil {
		return decimal.Zero, wrapAlpacaError(err, "latest trade "+symbol)
	}
	if trade == nil {
		return decimal.Zero, errors.Errorf("no latest trade for %s", symbol)
	}

	return decimal.NewFromFloat(trade.Price), nil
}

// DailyBars returns daily bars between from and to.
func (s *AlpacaSource) DailyBars(_ context.Context, symbol string, from, to time.Time) ([]domain.PriceBar, error) {
	bars, err := s.client.GetBars(s.symbols.Resolve(symbol), marketdata.GetBarsRequest{
		TimeFrame: marketdata.OneDay,
		Start:     from,
		End:       to,
		Feed:      marketdata.Feed(s.feed),
	})
	if err != nil {
		return nil, wrapAlpacaError(err, "bars "+symbol)
	}

	result := make([]domain.PriceBar, 0, len(bars))
	for _, b := range bars {
		result = append(result, domain.PriceBar{
			Date:   tradingDay(b.Timestamp),
			Open:   decimal.NewFromFloat(b.Open),
			High:   decimal.NewFromFloat(b.High),
			Low:    decimal.NewFromFloat(b.Low),
			Close:  decimal.NewFromFloat(b.Close),
			Volume: int64(b.Volume),
		})
	}

	return result, nil
}

func wrapAlpacaError(err error, what string) error {
	var apiErr *alpaca.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
		return errors.Wrap(ErrRateLimited, what)
	}
	return errors.Wrap(err, what)
}
