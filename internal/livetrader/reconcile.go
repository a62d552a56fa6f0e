package livetrader

import (
	"context"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/levtrader/internal/domain"
	"go.uber.org/zap"
)

// Initialize restores the persisted state and reconciles it with the broker. The broker
// position is ground truth; trade intents left pending by an interrupted cycle supply
// the dates the snapshot is missing and are closed as done or failed.
func (t *LiveTrader) Initialize(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, err := t.store.Load(t.cfg.TraderID)
	if err != nil {
		return errors.Wrap(err, "load trader state")
	}
	if state != nil {
		t.position = state.Position()
		t.initialCapital = state.InitialCapital
		t.inception = state.InceptionDate
	}

	held, err := t.broker.Position(ctx, t.cfg.SymbolA)
	if err != nil {
		return errors.Wrap(err, "get broker position")
	}

	intents := t.ownIntents()
	t.reconcilePosition(held, intents)
	t.resolvePending(held != nil && held.Quantity.IsPositive(), intents)

	if !t.initialCapital.Valid {
		account, err := t.broker.Account(ctx)
		if err != nil {
			return errors.Wrap(err, "get account")
		}
		t.initialCapital = domain.NullDecimalFrom(account.PortfolioValue)
		t.inception = t.now()
		t.l.Info("initial capital recorded", zap.String("initial_capital", account.PortfolioValue.String()))
	}

	t.persist()
	t.initialized = true

	t.l.Info("trader state restored",
		zap.String("status", t.position.Status.String()),
		zap.String("purchase_price", t.position.PurchasePrice.String()),
		zap.String("quantity", t.position.Quantity.String()),
		zap.Time("last_sell_date", t.position.LastSellDate))

	return nil
}

func (t *LiveTrader) reconcilePosition(held *domain.BrokerPosition, intents []domain.TradeIntent) {
	brokerLong := held != nil && held.Quantity.IsPositive()

	switch {
	case brokerLong && !t.position.InPosition():
		date := t.today()
		price := held.AvgEntryPrice
		if buy, ok := latestIntent(intents, domain.SideBuy); ok {
			date = t.hours.TradingDay(buy.Time)
			if !price.IsPositive() {
				price = buy.Price
			}
		}

		t.l.Warn("broker holds a position missing from state, adopting it",
			zap.String("quantity", held.Quantity.String()),
			zap.String("avg_entry_price", price.String()))
		t.position = t.position.Opened(price, date, held.Quantity)

	case brokerLong:
		if !held.Quantity.Equal(t.position.Quantity) {
			t.l.Warn("position size differs from broker, using broker quantity",
				zap.String("state_quantity", t.position.Quantity.String()),
				zap.String("broker_quantity", held.Quantity.String()))
			t.position.Quantity = held.Quantity
		}

	case t.position.InPosition():
		date := t.today()
		if sell, ok := latestIntent(intents, domain.SideSell); ok {
			date = t.hours.TradingDay(sell.Time)
		}

		t.l.Warn("state shows a position the broker does not hold, closing it",
			zap.String("purchase_price", t.position.PurchasePrice.String()),
			zap.Time("last_sell_date", date))
		t.position = t.position.Closed(date)
	}
}

func (t *LiveTrader) resolvePending(brokerLong bool, intents []domain.TradeIntent) {
	for _, intent := range intents {
		if intent.Status != domain.IntentPending {
			continue
		}

		filled := brokerLong
		if intent.Side == domain.SideSell {
			filled = !brokerLong
		}

		if filled {
			intent.Status = domain.IntentDone
		} else {
			intent.Status = domain.IntentFailed
			intent.Error = "order not reflected in broker position"
		}

		t.l.Info("resolved pending trade intent",
			zap.String("intent_id", intent.ID),
			zap.String("side", string(intent.Side)),
			zap.String("status", string(intent.Status)))
		t.saveIntent(intent)
	}
}

func (t *LiveTrader) ownIntents() []domain.TradeIntent {
	all := t.store.Intents()
	own := make([]domain.TradeIntent, 0, len(all))
	for _, intent := range all {
		if intent.Symbol == t.cfg.SymbolA {
			own = append(own, intent)
		}
	}
	return own
}

// latestIntent returns the most recent intent on side that did not fail.
func latestIntent(intents []domain.TradeIntent, side domain.OrderSide) (domain.TradeIntent, bool) {
	for i := len(intents) - 1; i >= 0; i-- {
		if intents[i].Side == side && intents[i].Status != domain.IntentFailed {
			return intents[i], true
		}
	}
	return domain.TradeIntent{}, false
}
