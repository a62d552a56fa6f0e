// Package livetrader runs the dip strategy against a brokerage account, one cycle at a time.
package livetrader

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/levtrader/internal/domain"
	"github.com/vadiminshakov/levtrader/internal/services/marketdata"
	"github.com/vadiminshakov/levtrader/internal/services/signals"
	"github.com/vadiminshakov/levtrader/internal/services/strategy/dip"
	"go.uber.org/zap"
)

const defaultHistoryDays = 60

var (
	ErrInsufficientHistory = errors.New("insufficient history for indicators")
	ErrNotInitialized      = errors.New("live trader is not initialized")
)

type broker interface {
	Account(ctx context.Context) (domain.Account, error)
	Clock(ctx context.Context) (domain.Clock, error)
	PlaceOrder(ctx context.Context, req domain.OrderRequest) (*domain.Order, error)
	// Position returns nil when nothing is held.
	Position(ctx context.Context, symbol string) (*domain.BrokerPosition, error)
}

type stateStore interface {
	Load(traderID string) (*domain.TraderState, error)
	Save(state domain.TraderState) error
	SaveIntent(intent domain.TradeIntent) error
	Intents() []domain.TradeIntent
}

type eventLog interface {
	Append(event domain.LogEvent) (uint64, error)
}

// Config selects the instruments and parameters of a live trader.
type Config struct {
	TraderID string
	// SymbolA is traded, SymbolB is the volatility gauge.
	SymbolA     string
	SymbolB     string
	Params      domain.StrategyParams
	HistoryDays int
}

// CycleResult describes what one cycle did.
type CycleResult struct {
	// Skipped is set when the cycle ended before or instead of trading.
	Skipped  string
	Decision dip.Decision
	Order    *domain.Order
	Quantity decimal.Decimal
}

// LiveTrader holds the position state for the process lifetime. The persisted snapshot
// is written after every transition but the in-memory state stays authoritative.
type LiveTrader struct {
	l      *zap.Logger
	cfg    Config
	quotes marketdata.QuoteSource
	broker broker
	store  stateStore
	events eventLog
	hours  domain.MarketHours
	now    func() time.Time
	newID  func() string

	mu             sync.Mutex
	initialized    bool
	position       domain.PositionState
	initialCapital decimal.NullDecimal
	inception      time.Time
}

// New returns a live trader. Initialize must be called before the first cycle.
func New(l *zap.Logger, cfg Config, quotes marketdata.QuoteSource, broker broker, store stateStore, events eventLog) (*LiveTrader, error) {
	if err := cfg.Params.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid strategy parameters")
	}
	if cfg.SymbolA == "" || cfg.SymbolB == "" {
		return nil, errors.New("both instrument symbols are required")
	}
	if quotes == nil || broker == nil || store == nil || events == nil {
		return nil, errors.New("quotes, broker, state store and event log are required")
	}
	if cfg.TraderID == "" {
		cfg.TraderID = domain.DefaultTraderID
	}
	if cfg.HistoryDays <= 0 {
		cfg.HistoryDays = defaultHistoryDays
	}

	return &LiveTrader{
		l:      l.With(zap.String("trader_id", cfg.TraderID), zap.String("symbol", cfg.SymbolA)),
		cfg:    cfg,
		quotes: quotes,
		broker: broker,
		store:  store,
		events: events,
		hours:  domain.RegularSession(),
		now:    time.Now,
		newID:  func() string { return uuid.New().String() },
	}, nil
}

// Position returns the current in-memory position.
func (t *LiveTrader) Position() domain.PositionState {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.position
}

// RunCycle checks the market, evaluates the strategy on the latest quotes and places at
// most one order. A failed order leaves the position untouched.
func (t *LiveTrader) RunCycle(ctx context.Context) (CycleResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.initialized {
		return CycleResult{}, ErrNotInitialized
	}

	clock, err := t.broker.Clock(ctx)
	if err != nil {
		return CycleResult{}, errors.Wrap(err, "get market clock")
	}
	if !clock.IsOpen {
		t.l.Info("market is closed", zap.Time("next_open", clock.NextOpen))
		return CycleResult{Skipped: "market closed"}, nil
	}

	account, err := t.broker.Account(ctx)
	if err != nil {
		return CycleResult{}, errors.Wrap(err, "get account")
	}
	t.l.Info("account snapshot",
		zap.String("portfolio_value", account.PortfolioValue.String()),
		zap.String("buying_power", account.BuyingPower.String()),
		zap.String("cash", account.Cash.String()))

	in, err := t.observe(ctx)
	if err != nil {
		t.l.Warn("no signal this cycle", zap.Error(err))
		return CycleResult{}, err
	}

	decision := dip.Evaluate(t.position, in, t.cfg.Params)
	t.recordSignalCheck(in, decision)

	result := CycleResult{Decision: decision}
	if !decision.IsTrade() {
		t.l.Info("no trade", zap.String("outcome", decision.Outcome.String()), zap.String("reason", decision.Reason))
		return result, nil
	}

	return t.execute(ctx, account, decision, result)
}

// observe builds today's observation: history up to yesterday plus the live quotes as
// today's row, so the indicators never include the current price.
func (t *LiveTrader) observe(ctx context.Context) (dip.Input, error) {
	now := t.now()
	today := t.hours.TradingDay(now)

	priceA, err := t.quotes.LatestPrice(ctx, t.cfg.SymbolA)
	if err != nil {
		return dip.Input{}, errors.Wrapf(err, "latest %s price", t.cfg.SymbolA)
	}
	priceB, err := t.quotes.LatestPrice(ctx, t.cfg.SymbolB)
	if err != nil {
		return dip.Input{}, errors.Wrapf(err, "latest %s price", t.cfg.SymbolB)
	}

	seriesA, err := marketdata.History(ctx, t.quotes, t.cfg.SymbolA, t.cfg.HistoryDays, now)
	if err != nil {
		return dip.Input{}, err
	}
	seriesB, err := marketdata.History(ctx, t.quotes, t.cfg.SymbolB, t.cfg.HistoryDays, now)
	if err != nil {
		return dip.Input{}, err
	}

	records, err := domain.Align(seriesA, seriesB)
	if err != nil {
		return dip.Input{}, errors.Wrap(err, "align history")
	}
	records = before(records, today)

	if len(records) < t.cfg.Params.Window {
		return dip.Input{}, errors.Wrapf(ErrInsufficientHistory, "%d joint rows, need %d", len(records), t.cfg.Params.Window)
	}

	records = append(records, domain.JointRecord{
		Date: today,
		A:    domain.PriceBar{Date: today, Open: priceA, Close: priceA},
		B:    domain.PriceBar{Date: today, Open: priceB, Close: priceB},
	})

	rows, err := signals.Compute(records, t.cfg.Params.Window)
	if err != nil {
		return dip.Input{}, errors.Wrap(err, "compute indicators")
	}

	return dip.InputAt(rows, len(rows)-1, t.cfg.Params.ConditionalLag), nil
}

func (t *LiveTrader) execute(ctx context.Context, account domain.Account, d dip.Decision, result CycleResult) (CycleResult, error) {
	side := domain.SideBuy
	var qty decimal.Decimal

	if d.Action == domain.ActionSell {
		side = domain.SideSell
		qty = t.position.Quantity
		if !qty.IsPositive() {
			held, err := t.broker.Position(ctx, t.cfg.SymbolA)
			if err != nil {
				return result, errors.Wrap(err, "get broker position")
			}
			if held == nil || !held.Quantity.IsPositive() {
				return result, errors.Errorf("sell signal without a %s position", t.cfg.SymbolA)
			}
			qty = held.Quantity
		}
	} else {
		qty = PositionSize(account.BuyingPower, t.cfg.Params.PositionFraction, d.Price)
		if qty.LessThan(decimal.NewFromInt(1)) {
			t.l.Warn("insufficient buying power for one share",
				zap.String("buying_power", account.BuyingPower.String()),
				zap.String("price", d.Price.String()))
			result.Skipped = "insufficient buying power"
			return result, nil
		}
	}
	result.Quantity = qty

	intent := domain.TradeIntent{
		ID:       t.newID(),
		Status:   domain.IntentPending,
		Side:     side,
		Action:   d.Action,
		Symbol:   t.cfg.SymbolA,
		Quantity: qty,
		Price:    d.Price,
		Time:     t.now(),
	}
	t.saveIntent(intent)

	order, err := t.broker.PlaceOrder(ctx, domain.OrderRequest{
		Symbol:        t.cfg.SymbolA,
		Side:          side,
		Quantity:      qty,
		ClientOrderID: intent.ID,
	})
	if err != nil {
		intent.Status = domain.IntentFailed
		intent.Error = err.Error()
		t.saveIntent(intent)
		t.recordTrade(d, qty, nil, err)

		return result, errors.Wrapf(err, "place %s order", side)
	}
	result.Order = order

	previous := t.position
	next := d.Next
	if d.Action.IsBuy() {
		next.Quantity = qty
	}
	t.position = next
	t.persist()

	intent.Status = domain.IntentDone
	t.saveIntent(intent)

	if d.Action == domain.ActionSell {
		t.l.Info("sold",
			zap.String("quantity", qty.String()),
			zap.String("price", d.Price.String()),
			zap.String("purchase_price", previous.PurchasePrice.String()))
	} else {
		t.l.Info("bought",
			zap.String("action", d.Action.String()),
			zap.String("quantity", qty.String()),
			zap.String("price", d.Price.String()),
			zap.String("reason", d.Reason))
	}
	t.recordTrade(d, qty, order, nil)

	return result, nil
}

// PositionSize returns the whole number of shares that fraction of buyingPower buys at price.
func PositionSize(buyingPower, fraction, price decimal.Decimal) decimal.Decimal {
	if !price.IsPositive() || !buyingPower.IsPositive() {
		return decimal.Zero
	}
	return buyingPower.Mul(fraction).Div(price).Floor()
}

func (t *LiveTrader) today() time.Time {
	return t.hours.TradingDay(t.now())
}

// State returns the snapshot that would be persisted now.
func (t *LiveTrader) State() domain.TraderState {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.snapshot()
}

func (t *LiveTrader) snapshot() domain.TraderState {
	state := domain.NewTraderState(t.cfg.TraderID, t.position, t.initialCapital, t.now())
	state.InceptionDate = t.inception
	return state
}

func (t *LiveTrader) persist() {
	if err := t.store.Save(t.snapshot()); err != nil {
		t.l.Error("failed to persist trader state, continuing with in-memory state", zap.Error(err))
	}
}

func (t *LiveTrader) saveIntent(intent domain.TradeIntent) {
	if err := t.store.SaveIntent(intent); err != nil {
		t.l.Error("failed to save trade intent",
			zap.String("intent_id", intent.ID),
			zap.String("status", string(intent.Status)),
			zap.Error(err))
	}
}

func (t *LiveTrader) appendEvent(event domain.LogEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = t.now()
	}
	if _, err := t.events.Append(event); err != nil {
		t.l.Error("failed to append event", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}

func (t *LiveTrader) recordSignalCheck(in dip.Input, d dip.Decision) {
	details := map[string]string{
		"outcome":     d.Outcome.String(),
		"reason":      d.Reason,
		"in_position": strconv.FormatBool(t.position.InPosition()),
		"gauge":       t.cfg.SymbolB,
	}
	if d.IsTrade() {
		details["action"] = d.Action.String()
	}

	t.appendEvent(domain.LogEvent{
		Type:    domain.EventSignalCheck,
		Symbol:  t.cfg.SymbolA,
		Price:   domain.NullDecimalFrom(in.PriceA),
		VIX:     domain.NullDecimalFrom(in.PriceB),
		SMA:     in.SMA,
		WMA:     in.WMA,
		Details: details,
	})
}

func (t *LiveTrader) recordTrade(d dip.Decision, qty decimal.Decimal, order *domain.Order, orderErr error) {
	eventType := domain.EventBuy
	if d.Action == domain.ActionSell {
		eventType = domain.EventSell
	}

	details := map[string]string{
		"action":  d.Action.String(),
		"reason":  d.Reason,
		"success": strconv.FormatBool(orderErr == nil),
	}
	if orderErr != nil {
		details["error"] = orderErr.Error()
	}
	if order != nil {
		details["order_id"] = order.ID
		if order.FilledPrice.Valid {
			details["filled_price"] = order.FilledPrice.Decimal.String()
		}
	}

	t.appendEvent(domain.LogEvent{
		Type:     eventType,
		Symbol:   t.cfg.SymbolA,
		Price:    domain.NullDecimalFrom(d.Price),
		Quantity: domain.NullDecimalFrom(qty),
		Details:  details,
	})
}

func before(records []domain.JointRecord, day time.Time) []domain.JointRecord {
	out := records[:0:0]
	for _, r := range records {
		if r.Date.Before(day) {
			out = append(out, r)
		}
	}
	return out
}
