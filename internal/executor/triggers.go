package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/camuig/coin-sim/internal/trading"
	"github.com/camuig/coin-sim/internal/triggers"
)

const commitAttempts = 3

// PlaceTrigger stores a pending conditional order for a quoted ticker.
func (e *Executor) PlaceTrigger(ctx context.Context, userID, ticker string, dir trading.Action, price decimal.Decimal, amount trading.AmountSpec) (triggers.Order, error) {
	q, err := e.quote(ctx)
	if err != nil {
		return triggers.Order{}, err
	}
	if _, ok := q.Price(ticker); !ok {
		return triggers.Order{}, &trading.Rejection{Reason: trading.ReasonUnknownTicker, Msg: "unknown ticker " + ticker}
	}

	o, err := triggers.NewOrder(userID, ticker, dir, price, amount, e.now())
	if err != nil {
		return triggers.Order{}, err
	}

	unlock := e.lock(userID)
	defer unlock()
	if err := e.store.SaveTriggerOrder(ctx, o); err != nil {
		return triggers.Order{}, fmt.Errorf("place trigger: %w", err)
	}
	e.logger.Info("trigger placed",
		"user", userID, "order", o.ID, "ticker", ticker, "direction", dir,
		"trigger_price", price.String(), "amount", amount.String())
	return o, nil
}

// PlaceGainTrigger sells the whole holding once it is gainPct above its average cost.
func (e *Executor) PlaceGainTrigger(ctx context.Context, userID, ticker string, gainPct decimal.Decimal) (triggers.Order, error) {
	unlock := e.lock(userID)
	defer unlock()

	p, err := e.loadPortfolio(ctx, userID)
	if err != nil {
		return triggers.Order{}, err
	}
	o, err := triggers.NewGainTrigger(p, ticker, gainPct, e.now())
	if err != nil {
		return triggers.Order{}, err
	}
	if err := e.store.SaveTriggerOrder(ctx, o); err != nil {
		return triggers.Order{}, fmt.Errorf("place gain trigger: %w", err)
	}
	e.logger.Info("gain trigger placed",
		"user", userID, "order", o.ID, "ticker", ticker, "gain_pct", gainPct.String(), "trigger_price", o.TriggerPrice.String())
	return o, nil
}

// CancelTrigger takes the user lock, so it never interleaves with a pass
// evaluating the same user's orders.
func (e *Executor) CancelTrigger(ctx context.Context, userID, orderID string) error {
	unlock := e.lock(userID)
	defer unlock()

	ok, err := e.store.CancelTriggerOrder(ctx, userID, orderID)
	if err != nil {
		return fmt.Errorf("cancel trigger: %w", err)
	}
	if !ok {
		return ErrOrderNotFound
	}
	e.logger.Info("trigger cancelled", "user", userID, "order", orderID)
	return nil
}

func (e *Executor) Triggers(ctx context.Context, userID string, statuses ...triggers.Status) ([]triggers.Order, error) {
	orders, err := e.store.LoadTriggerOrders(ctx, userID, statuses...)
	if err != nil {
		return nil, fmt.Errorf("list triggers: %w", err)
	}
	return orders, nil
}

// MarketTriggers summarizes every pending order across all users, per ticker.
func (e *Executor) MarketTriggers(ctx context.Context) ([]triggers.Summary, error) {
	orders, err := e.store.ActiveTriggerOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("active triggers: %w", err)
	}
	return triggers.Summarize(orders), nil
}

// ProcessTriggers evaluates every user with pending orders against q. The
// same snapshot is used for the whole pass.
func (e *Executor) ProcessTriggers(ctx context.Context, q trading.Quote) ([]triggers.Fill, error) {
	users, err := e.store.PendingTriggerUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("pending trigger users: %w", err)
	}

	var (
		mu    sync.Mutex
		wg    sync.WaitGroup
		sem   = make(chan struct{}, e.opts.TriggerConcurrency)
		fills []triggers.Fill
		errs  []error
	)

	for _, userID := range users {
		wg.Add(1)
		sem <- struct{}{}

		go func(u string) {
			defer wg.Done()
			defer func() { <-sem }()

			got, err := e.processUser(ctx, u, q)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				e.logger.Error("process triggers", "user", u, "error", err)
				errs = append(errs, fmt.Errorf("user %s: %w", u, err))
				return
			}
			fills = append(fills, got...)
		}(userID)
	}

	wg.Wait()
	return fills, errors.Join(errs...)
}

func (e *Executor) processUser(ctx context.Context, userID string, q trading.Quote) ([]triggers.Fill, error) {
	unlock := e.lock(userID)
	defer unlock()

	var fills []triggers.Fill
	err := e.retry(userID, func() error {
		var err error
		fills, err = e.evaluateUser(ctx, userID, q)
		return err
	})
	if err != nil {
		return nil, err
	}
	return fills, nil
}

// evaluateUser reads the orders only after the user lock is held, so a
// cancellation that got there first is already visible.
func (e *Executor) evaluateUser(ctx context.Context, userID string, q trading.Quote) ([]triggers.Fill, error) {
	log := e.logger.ForUser(userID)

	orders, err := e.store.LoadTriggerOrders(ctx, userID, triggers.StatusPending)
	if err != nil {
		return nil, fmt.Errorf("load orders: %w", err)
	}
	if len(orders) == 0 {
		return nil, nil
	}
	p, err := e.loadPortfolio(ctx, userID)
	if err != nil {
		return nil, err
	}

	pass := e.evaluator.Evaluate(p, orders, q)
	for id, reason := range pass.Skipped {
		log.Debug("trigger eligible but not executable, kept pending", "order", id, "reason", reason)
	}
	if len(pass.Fired) == 0 {
		return nil, nil
	}

	txs := make([]trading.Transaction, len(pass.Fired))
	executed := make([]triggers.Order, len(pass.Fired))
	for i, f := range pass.Fired {
		txs[i] = f.Transaction
		executed[i] = f.Order
	}
	if err := e.store.CommitTrade(ctx, pass.Portfolio, txs, executed); err != nil {
		return nil, fmt.Errorf("commit fills: %w", err)
	}

	for _, f := range pass.Fired {
		e.executed(f.Transaction, "trigger")
		if e.metrics != nil {
			e.metrics.TriggerFill.Inc()
		}
		e.notifier.NotifyTriggerFill(f)
		log.Info("trigger executed",
			"order", f.Order.ID, "ticker", f.Order.Ticker, "direction", f.Order.Direction,
			"amount", f.Trade.Amount.String(), "price", f.Trade.Price.String())
	}
	return pass.Fired, nil
}
