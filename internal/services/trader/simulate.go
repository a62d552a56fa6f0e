package trader

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/levtrader/internal/domain"
	"github.com/vadiminshakov/levtrader/internal/storage/simstate"
	"go.uber.org/zap"
)

// Pricer defines an interface for getting the latest price of a symbol.
type Pricer interface {
	LatestPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// SimulateTrader is a paper brokerage account that fills market orders at the latest quote.
type SimulateTrader struct {
	mu         sync.RWMutex
	logger     *zap.Logger
	pricer     Pricer
	state      simstate.State
	stateStore *simstate.Store
	hours      domain.MarketHours
	now        func() time.Time
}

// NewSimulateTrader creates a SimulateTrader, restoring a previous account from store if present.
func NewSimulateTrader(logger *zap.Logger, pricer Pricer, store *simstate.Store, initialCash decimal.Decimal) (*SimulateTrader, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pricer == nil {
		return nil, errors.New("pricer is required for SimulateTrader")
	}

	trader := &SimulateTrader{
		logger: logger,
		pricer: pricer,
		state: simstate.State{
			Cash:     initialCash,
			Holdings: make(map[string]simstate.StoredHolding),
			Orders:   make(map[string]simstate.StoredOrderFill),
		},
		stateStore: store,
		hours:      domain.RegularSession(),
		now:        time.Now,
	}
	if err := trader.restoreState(); err != nil {
		logger.Warn("failed to restore simulate state", zap.Error(err))
	}

	logger.Info("simulate init", zap.String("cash", trader.state.Cash.String()), zap.Int("holdings", len(trader.state.Holdings)))
	return trader, nil
}

// Account values holdings at the latest price.
func (t *SimulateTrader) Account(ctx context.Context) (domain.Account, error) {
	t.mu.RLock()
	cash := t.state.Cash
	holdings := make(map[string]simstate.StoredHolding, len(t.state.Holdings))
	for symbol, h := range t.state.Holdings {
		holdings[symbol] = h
	}
	t.mu.RUnlock()

	equity := cash
	for symbol, h := range holdings {
		price, err := t.pricer.LatestPrice(ctx, symbol)
		if err != nil {
			return domain.Account{}, errors.Wrapf(err, "price %s", symbol)
		}
		equity = equity.Add(h.Quantity.Mul(price))
	}

	return domain.Account{
		Cash:           cash,
		BuyingPower:    cash,
		PortfolioValue: equity,
	}, nil
}

// Clock reports the regular New York session.
func (t *SimulateTrader) Clock(_ context.Context) (domain.Clock, error) {
	now := t.now()
	return domain.Clock{Timestamp: now, IsOpen: t.hours.IsOpen(now)}, nil
}

// PlaceOrder fills the whole quantity at the latest price. Repeating a client order id
// returns the earlier fill.
func (t *SimulateTrader) PlaceOrder(ctx context.Context, req domain.OrderRequest) (*domain.Order, error) {
	if !req.Quantity.IsPositive() {
		return nil, fmt.Errorf("order quantity must be positive, got %s", req.Quantity.String())
	}

	t.mu.RLock()
	fill, seen := t.state.Orders[req.ClientOrderID]
	t.mu.RUnlock()
	if seen && req.ClientOrderID != "" {
		return fillToOrder(req.ClientOrderID, fill), nil
	}

	price, err := t.pricer.LatestPrice(ctx, req.Symbol)
	if err != nil {
		return nil, errors.Wrapf(err, "price %s", req.Symbol)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	switch req.Side {
	case domain.SideBuy:
		err = t.buy(req.Symbol, req.Quantity, price)
	case domain.SideSell:
		err = t.sell(req.Symbol, req.Quantity, price)
	default:
		err = fmt.Errorf("unknown side: %s", req.Side)
	}
	if err != nil {
		return nil, err
	}

	fill = simstate.StoredOrderFill{Symbol: req.Symbol, Side: string(req.Side), Quantity: req.Quantity, Price: price}
	if req.ClientOrderID != "" {
		t.state.Orders[req.ClientOrderID] = fill
	}
	t.persist()

	t.logger.Info("simulated fill",
		zap.String("symbol", req.Symbol),
		zap.String("side", string(req.Side)),
		zap.String("qty", req.Quantity.String()),
		zap.String("price", price.String()),
		zap.String("cash", t.state.Cash.String()))

	return fillToOrder(req.ClientOrderID, fill), nil
}

// Position returns the holding in symbol, or nil when flat.
func (t *SimulateTrader) Position(_ context.Context, symbol string) (*domain.BrokerPosition, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	h, ok := t.state.Holdings[symbol]
	if !ok || !h.Quantity.IsPositive() {
		return nil, nil
	}

	return &domain.BrokerPosition{Symbol: symbol, Quantity: h.Quantity, AvgEntryPrice: h.AvgEntryPrice}, nil
}

func (t *SimulateTrader) buy(symbol string, qty, price decimal.Decimal) error {
	cost := qty.Mul(price)
	if cost.GreaterThan(t.state.Cash) {
		return errors.Wrapf(ErrInsufficientFunds, "need %s, have %s", cost.String(), t.state.Cash.String())
	}

	h := t.state.Holdings[symbol]
	total := h.Quantity.Add(qty)
	h.AvgEntryPrice = h.Quantity.Mul(h.AvgEntryPrice).Add(cost).Div(total)
	h.Quantity = total

	t.state.Holdings[symbol] = h
	t.state.Cash = t.state.Cash.Sub(cost)
	return nil
}

func (t *SimulateTrader) sell(symbol string, qty, price decimal.Decimal) error {
	h, ok := t.state.Holdings[symbol]
	if !ok || h.Quantity.LessThan(qty) {
		return errors.Wrapf(ErrNoPosition, "sell %s %s", qty.String(), symbol)
	}

	h.Quantity = h.Quantity.Sub(qty)
	if h.Quantity.IsZero() {
		delete(t.state.Holdings, symbol)
	} else {
		t.state.Holdings[symbol] = h
	}
	t.state.Cash = t.state.Cash.Add(qty.Mul(price))
	return nil
}

func (t *SimulateTrader) restoreState() error {
	if t.stateStore == nil {
		return nil
	}

	state, err := t.stateStore.Load()
	if err != nil {
		return err
	}
	if state == nil {
		return nil
	}

	if state.Holdings == nil {
		state.Holdings = make(map[string]simstate.StoredHolding)
	}
	if state.Orders == nil {
		state.Orders = make(map[string]simstate.StoredOrderFill)
	}
	t.state = *state
	return nil
}

// persist must be called with mu held.
func (t *SimulateTrader) persist() {
	if t.stateStore == nil {
		return
	}
	if err := t.stateStore.Save(t.state); err != nil {
		t.logger.Warn("failed to persist simulate state", zap.Error(err))
	}
}

func fillToOrder(clientOrderID string, fill simstate.StoredOrderFill) *domain.Order {
	return &domain.Order{
		ID:            "sim-" + clientOrderID,
		ClientOrderID: clientOrderID,
		Symbol:        fill.Symbol,
		Side:          domain.OrderSide(fill.Side),
		Quantity:      fill.Quantity,
		FilledPrice:   decimal.NewNullDecimal(fill.Price),
	}
}
