package internal

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	alpacamd "github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/levtrader/config"
	"github.com/vadiminshakov/levtrader/internal/clients"
	"github.com/vadiminshakov/levtrader/internal/domain"
	"github.com/vadiminshakov/levtrader/internal/livetrader"
	"github.com/vadiminshakov/levtrader/internal/services/marketdata"
	"github.com/vadiminshakov/levtrader/internal/services/trader"
	"github.com/vadiminshakov/levtrader/internal/storage/events"
	"github.com/vadiminshakov/levtrader/internal/storage/simstate"
	"github.com/vadiminshakov/levtrader/internal/storage/traderstate"
	"go.uber.org/zap"
)

const dirPermissions = 0o755

// Broker places orders and reports the account.
type Broker interface {
	Account(ctx context.Context) (domain.Account, error)
	Clock(ctx context.Context) (domain.Clock, error)
	PlaceOrder(ctx context.Context, req domain.OrderRequest) (*domain.Order, error)
	Position(ctx context.Context, symbol string) (*domain.BrokerPosition, error)
}

// ServiceProvider builds the platform-specific services named in the configuration.
// This is the single point where quote sources and brokers are dispatched.
type ServiceProvider struct {
	conf config.Config
	l    *zap.Logger

	alpacaOnce    sync.Once
	alpacaTrading *alpaca.Client
	alpacaData    *alpacamd.Client
}

func NewServiceProvider(conf config.Config, l *zap.Logger) *ServiceProvider {
	return &ServiceProvider{conf: conf, l: l}
}

func (p *ServiceProvider) alpacaClients() (*alpaca.Client, *alpacamd.Client, error) {
	if err := p.conf.RequireAlpaca(); err != nil {
		return nil, nil, err
	}

	p.alpacaOnce.Do(func() {
		creds := p.conf.Alpaca
		p.alpacaTrading = clients.NewAlpacaClient(creds.APIKey, creds.SecretKey, creds.BaseURL)
		p.alpacaData = clients.NewAlpacaDataClient(creds.APIKey, creds.SecretKey)
	})

	return p.alpacaTrading, p.alpacaData, nil
}

// QuoteSource returns the configured source wrapped with the retry policy.
func (p *ServiceProvider) QuoteSource() (marketdata.QuoteSource, error) {
	symbols := marketdata.SymbolMap(p.conf.SourceSymbols(p.conf.Source))
	if len(symbols) == 0 {
		symbols = nil
	}

	var src marketdata.QuoteSource
	switch p.conf.Source {
	case config.SourceAlpaca:
		_, data, err := p.alpacaClients()
		if err != nil {
			return nil, err
		}
		src = marketdata.NewAlpacaSource(data, p.conf.Alpaca.Feed, symbols)
	case config.SourceYahoo:
		src = marketdata.NewYahooSource("", nil, symbols)
	case config.SourceBinance:
		src = marketdata.NewBinanceSource(clients.NewBinanceClient(p.conf.Binance.APIKey, p.conf.Binance.SecretKey), symbols)
	default:
		return nil, fmt.Errorf("unsupported quote source: %s", p.conf.Source)
	}

	return marketdata.NewRetryingSource(p.l.With(zap.String("source", src.Name())), src), nil
}

// Broker returns the configured broker. The simulated broker fills at quotes from quotes.
func (p *ServiceProvider) Broker(quotes marketdata.QuoteSource) (Broker, error) {
	switch p.conf.Broker {
	case config.BrokerAlpaca:
		tradingClient, _, err := p.alpacaClients()
		if err != nil {
			return nil, err
		}
		return trader.NewAlpacaTrader(tradingClient, p.l.Named("alpaca")), nil
	case config.BrokerSimulate:
		store, err := simstate.NewStore(filepath.Join(p.conf.DataDir, "simulate"), p.conf.TraderID)
		if err != nil {
			return nil, errors.Wrap(err, "open simulate wallet")
		}
		sim, err := trader.NewSimulateTrader(p.l.Named("simulate"), quotes, store, p.conf.SimulateCash)
		if err != nil {
			return nil, err
		}
		return sim, nil
	default:
		return nil, fmt.Errorf("unsupported broker: %s", p.conf.Broker)
	}
}

// Stores are the persistent logs of the live trader.
type Stores struct {
	State  *traderstate.WALStore
	Events *events.WALStore
}

// OpenStores opens the trader state and event logs under dataDir.
func OpenStores(dataDir string) (*Stores, error) {
	stateDir := filepath.Join(dataDir, "state")
	eventsDir := filepath.Join(dataDir, "events")
	for _, dir := range []string{stateDir, eventsDir} {
		if err := os.MkdirAll(dir, dirPermissions); err != nil {
			return nil, errors.Wrapf(err, "failed to ensure WAL directory %s", dir)
		}
	}

	state, err := traderstate.NewWALStore(stateDir)
	if err != nil {
		return nil, err
	}
	eventLog, err := events.NewWALStore(eventsDir)
	if err != nil {
		_ = state.Close()
		return nil, err
	}

	return &Stores{State: state, Events: eventLog}, nil
}

// Close closes both logs.
func (s *Stores) Close() error {
	stateErr := s.State.Close()
	eventsErr := s.Events.Close()
	if stateErr != nil {
		return stateErr
	}
	return eventsErr
}

// LiveTrader assembles a live trader from the configuration and opened stores.
func (p *ServiceProvider) LiveTrader(stores *Stores) (*livetrader.LiveTrader, error) {
	quotes, err := p.QuoteSource()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create quote source")
	}
	broker, err := p.Broker(quotes)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create broker")
	}

	return livetrader.New(p.l.Named("live"), livetrader.Config{
		TraderID:    p.conf.TraderID,
		SymbolA:     p.conf.SymbolA,
		SymbolB:     p.conf.SymbolB,
		Params:      p.conf.Params,
		HistoryDays: p.conf.HistoryDays,
	}, quotes, broker, stores.State, stores.Events)
}
