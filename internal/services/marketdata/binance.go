package marketdata

import (
	"context"
	"fmt"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/levtrader/internal/domain"
)

// binance error code for "too many requests"
const binanceRateLimitCode = -1003

// BinanceSource reads public Binance spot prices and daily klines.
type BinanceSource struct {
	client  *binance.Client
	symbols SymbolMap
}

// NewBinanceSource creates a Binance source. Public endpoints need no keys.
func NewBinanceSource(client *binance.Client, symbols SymbolMap) *BinanceSource {
	if client == nil {
		client = binance.NewClient("", "")
	}
	if symbols == nil {
		symbols = SymbolMap{}
	}

	return &BinanceSource{client: client, symbols: symbols}
}

func (s *BinanceSource) Name() string {
	return "binance"
}

// LatestPrice returns the last spot price of symbol.
func (s *BinanceSource) LatestPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	prices, err := s.client.NewListPricesService().Symbol(s.symbols.Resolve(symbol)).Do(ctx)
	if err != nil {
		return decimal.Zero, wrapBinanceError(err, "list prices "+symbol)
	}
	if len(prices) == 0 {
		return decimal.Zero, fmt.Errorf("binance returned no price for %s", symbol)
	}

	price, err := decimal.NewFromString(prices[0].Price)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "parse %s price", symbol)
	}

	return price, nil
}

// DailyBars returns 1d klines between from and to.
func (s *BinanceSource) DailyBars(ctx context.Context, symbol string, from, to time.Time) ([]domain.PriceBar, error) {
	klines, err := s.client.NewKlinesService().
		Symbol(s.symbols.Resolve(symbol)).
		Interval("1d").
		StartTime(from.UnixMilli()).
		EndTime(to.UnixMilli()).
		Limit(1000).
		Do(ctx)
	if err != nil {
		return nil, wrapBinanceError(err, "klines "+symbol)
	}

	bars := make([]domain.PriceBar, len(klines))
	for i, k := range klines {
		open, err := decimal.NewFromString(k.Open)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse open price at index %d", i)
		}
		high, err := decimal.NewFromString(k.High)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse high price at index %d", i)
		}
		low, err := decimal.NewFromString(k.Low)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse low price at index %d", i)
		}
		closePrice, err := decimal.NewFromString(k.Close)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse close price at index %d", i)
		}

		// crypto days roll over at UTC midnight
		bars[i] = domain.PriceBar{
			Date:  domain.Day(time.UnixMilli(k.OpenTime).UTC()),
			Open:  open,
			High:  high,
			Low:   low,
			Close: closePrice,
		}
	}

	return bars, nil
}

func wrapBinanceError(err error, what string) error {
	if common.IsAPIError(err) {
		if apiErr, ok := err.(*common.APIError); ok && apiErr.Code == binanceRateLimitCode {
			return errors.Wrap(ErrRateLimited, what)
		}
	}
	return errors.Wrap(err, what)
}
