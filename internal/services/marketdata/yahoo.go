package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/levtrader/internal/domain"
)

const (
	defaultYahooBaseURL = "https://query1.finance.yahoo.com"
	yahooUserAgent      = "Mozilla/5.0 (compatible; levtrader/1.0)"
)

// YahooSource reads the public Yahoo Finance chart API.
type YahooSource struct {
	baseURL string
	client  *http.Client
	symbols SymbolMap
}

// NewYahooSource creates a Yahoo source. An empty baseURL selects the public endpoint.
func NewYahooSource(baseURL string, client *http.Client, symbols SymbolMap) *YahooSource {
	if baseURL == "" {
		baseURL = defaultYahooBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if symbols == nil {
		symbols = SymbolMap{"VIX": "^VIX"}
	}

	return &YahooSource{baseURL: baseURL, client: client, symbols: symbols}
}

func (s *YahooSource) Name() string {
	return "yahoo"
}

type yahooChart struct {
	Chart struct {
		Result []struct {
			Meta struct {
				RegularMarketPrice   float64 `json:"regularMarketPrice"`
				ExchangeTimezoneName string  `json:"exchangeTimezoneName"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// LatestPrice returns the regular market price of symbol.
func (s *YahooSource) LatestPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	query := url.Values{}
	query.Set("range", "1d")
	query.Set("interval", "1d")

	chart, err := s.fetch(ctx, symbol, query)
	if err != nil {
		return decimal.Zero, err
	}

	price := chart.Chart.Result[0].Meta.RegularMarketPrice
	if price <= 0 {
		return decimal.Zero, fmt.Errorf("yahoo returned no price for %s", symbol)
	}

	return decimal.NewFromFloat(price), nil
}

// DailyBars returns daily bars between from and to. Days with a missing open are skipped.
func (s *YahooSource) DailyBars(ctx context.Context, symbol string, from, to time.Time) ([]domain.PriceBar, error) {
	query := url.Values{}
	query.Set("period1", strconv.FormatInt(from.Unix(), 10))
	query.Set("period2", strconv.FormatInt(to.Unix(), 10))
	query.Set("interval", "1d")

	chart, err := s.fetch(ctx, symbol, query)
	if err != nil {
		return nil, err
	}

	result := chart.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, nil
	}
	quote := result.Indicators.Quote[0]

	loc := domain.MarketLocation
	if result.Meta.ExchangeTimezoneName != "" {
		if exchangeLoc, err := time.LoadLocation(result.Meta.ExchangeTimezoneName); err == nil {
			loc = exchangeLoc
		}
	}

	bars := make([]domain.PriceBar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		open := valueAt(quote.Open, i)
		if open == nil {
			continue
		}

		bar := domain.PriceBar{
			Date: domain.Day(time.Unix(ts, 0).In(loc)),
			Open: decimal.NewFromFloat(*open),
		}
		if v := valueAt(quote.High, i); v != nil {
			bar.High = decimal.NewFromFloat(*v)
		}
		if v := valueAt(quote.Low, i); v != nil {
			bar.Low = decimal.NewFromFloat(*v)
		}
		if v := valueAt(quote.Close, i); v != nil {
			bar.Close = decimal.NewFromFloat(*v)
		}
		if v := valueAt(quote.Volume, i); v != nil {
			bar.Volume = *v
		}

		bars = append(bars, bar)
	}

	return bars, nil
}

func (s *YahooSource) fetch(ctx context.Context, symbol string, query url.Values) (*yahooChart, error) {
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?%s", s.baseURL, url.PathEscape(s.symbols.Resolve(symbol)), query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build yahoo request")
	}
	req.Header.Set("User-Agent", yahooUserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "yahoo request for %s", symbol)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, errors.Wrapf(ErrRateLimited, "yahoo %s", symbol)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("yahoo returned status %d for %s", resp.StatusCode, symbol)
	}

	var chart yahooChart
	if err := json.NewDecoder(resp.Body).Decode(&chart); err != nil {
		return nil, errors.Wrapf(err, "decode yahoo chart for %s", symbol)
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo error for %s: %s", symbol, chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 {
		return nil, fmt.Errorf("yahoo returned no data for %s", symbol)
	}

	return &chart, nil
}

func valueAt[T any](values []*T, i int) *T {
	if i >= len(values) {
		return nil
	}
	return values[i]
}
