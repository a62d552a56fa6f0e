package trader

import (
	"context"
	"net/http"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/levtrader/internal/domain"
	"go.uber.org/zap"
)

type alpacaTradingClient interface {
	GetAccount() (*alpaca.Account, error)
	GetClock() (*alpaca.Clock, error)
	PlaceOrder(req alpaca.PlaceOrderRequest) (*alpaca.Order, error)
	GetPosition(symbol string) (*alpaca.Position, error)
}

// AlpacaTrader places orders through the Alpaca trading API.
type AlpacaTrader struct {
	client alpacaTradingClient
	l      *zap.Logger
}

// NewAlpacaTrader creates a trader for the given client. Paper or live trading is
// chosen by the client's base URL.
func NewAlpacaTrader(client *alpaca.Client, l *zap.Logger) *AlpacaTrader {
	return newAlpacaTrader(client, l)
}

func newAlpacaTrader(client alpacaTradingClient, l *zap.Logger) *AlpacaTrader {
	if l == nil {
		l = zap.NewNop()
	}
	return &AlpacaTrader{client: client, l: l}
}

// Account returns cash, buying power and equity.
func (t *AlpacaTrader) Account(_ context.Context) (domain.Account, error) {
	acc, err := t.client.GetAccount()
	if err != nil {
		return domain.Account{}, errors.Wrap(err, "get alpaca account")
	}

	return domain.Account{
		Cash:           acc.Cash,
		BuyingPower:    acc.BuyingPower,
		PortfolioValue: acc.Equity,
	}, nil
}

// Clock returns the exchange session state.
func (t *AlpacaTrader) Clock(_ context.Context) (domain.Clock, error) {
	clock, err := t.client.GetClock()
	if err != nil {
		return domain.Clock{}, errors.Wrap(err, "get alpaca clock")
	}

	return domain.Clock{
		Timestamp: clock.Timestamp,
		IsOpen:    clock.IsOpen,
		NextOpen:  clock.NextOpen,
		NextClose: clock.NextClose,
	}, nil
}

// PlaceOrder submits a day market order.
func (t *AlpacaTrader) PlaceOrder(_ context.Context, req domain.OrderRequest) (*domain.Order, error) {
	side := alpaca.Buy
	if req.Side == domain.SideSell {
		side = alpaca.Sell
	}

	qty := req.Quantity
	order, err := t.client.PlaceOrder(alpaca.PlaceOrderRequest{
		Symbol:        req.Symbol,
		Qty:           &qty,
		Side:          side,
		Type:          alpaca.Market,
		TimeInForce:   alpaca.Day,
		ClientOrderID: req.ClientOrderID,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "place %s order for %s %s", req.Side, qty.String(), req.Symbol)
	}

	t.l.Info("order placed",
		zap.String("order_id", order.ID),
		zap.String("client_order_id", req.ClientOrderID),
		zap.String("symbol", req.Symbol),
		zap.String("side", string(req.Side)),
		zap.String("qty", qty.String()),
		zap.String("status", string(order.Status)))

	result := &domain.Order{
		ID:            order.ID,
		ClientOrderID: order.ClientOrderID,
		Symbol:        req.Symbol,
		Side:          req.Side,
		Quantity:      qty,
	}
	if order.FilledAvgPrice != nil {
		result.FilledPrice = decimal.NewNullDecimal(*order.FilledAvgPrice)
	}

	return result, nil
}

// Position returns the open position in symbol, or nil when flat.
func (t *AlpacaTrader) Position(_ context.Context, symbol string) (*domain.BrokerPosition, error) {
	pos, err := t.client.GetPosition(symbol)
	if err != nil {
		var apiErr *alpaca.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "get alpaca position %s", symbol)
	}
	if pos == nil || !pos.Qty.IsPositive() {
		return nil, nil
	}

	return &domain.BrokerPosition{
		Symbol:        pos.Symbol,
		Quantity:      pos.Qty,
		AvgEntryPrice: pos.AvgEntryPrice,
	}, nil
}
