package executor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/camuig/coin-sim/internal/logger"
	"github.com/camuig/coin-sim/internal/metrics"
	"github.com/camuig/coin-sim/internal/trading"
	"github.com/camuig/coin-sim/internal/triggers"
)

// PriceSource supplies the most recent known prices.
type PriceSource interface {
	Prices(ctx context.Context) (trading.Quote, error)
}

// Store is the persistence the executor needs. CommitTrade must apply the
// portfolio, the transactions and the executed orders atomically.
type Store interface {
	LoadPortfolio(ctx context.Context, userID string) (*trading.Portfolio, bool, error)
	SavePortfolio(ctx context.Context, p trading.Portfolio) error
	CommitTrade(ctx context.Context, p trading.Portfolio, txs []trading.Transaction, executed []triggers.Order) error
	RecentTransactions(ctx context.Context, userID string, limit int) ([]trading.Transaction, error)
	Portfolios(ctx context.Context) ([]trading.Portfolio, error)

	LoadTriggerOrders(ctx context.Context, userID string, statuses ...triggers.Status) ([]triggers.Order, error)
	SaveTriggerOrder(ctx context.Context, o triggers.Order) error
	CancelTriggerOrder(ctx context.Context, userID, orderID string) (bool, error)
	PendingTriggerUsers(ctx context.Context) ([]string, error)
	ActiveTriggerOrders(ctx context.Context) ([]triggers.Order, error)
}

type Notifier interface {
	NotifyTrade(tx trading.Transaction)
	NotifyTriggerFill(f triggers.Fill)
}

var (
	ErrOrderNotFound  = errors.New("trigger order not found or already processed")
	ErrInvalidDeposit = errors.New("deposit must be positive")
)

type Options struct {
	StartingCash       decimal.Decimal
	TriggerConcurrency int
}

// Executor is the single entry point that mutates user state. Operations on
// one user are serialized; different users proceed in parallel.
type Executor struct {
	store     Store
	prices    PriceSource
	validator trading.Validator
	ledger    trading.Ledger
	evaluator *triggers.Evaluator
	notifier  Notifier
	metrics   *metrics.Metrics
	opts      Options
	logger    *logger.Logger
	now       func() time.Time

	locks sync.Map // userID -> *sync.Mutex
}

func NewExecutor(
	store Store,
	prices PriceSource,
	validator trading.Validator,
	ledger trading.Ledger,
	notifier Notifier,
	m *metrics.Metrics,
	opts Options,
	log *logger.Logger,
) *Executor {
	if opts.TriggerConcurrency <= 0 {
		opts.TriggerConcurrency = 1
	}
	return &Executor{
		store:     store,
		prices:    prices,
		validator: validator,
		ledger:    ledger,
		evaluator: triggers.NewEvaluator(validator, ledger),
		notifier:  notifier,
		metrics:   m,
		opts:      opts,
		logger:    log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (e *Executor) lock(userID string) func() {
	v, _ := e.locks.LoadOrStore(userID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// loadPortfolio must be called with the user lock held.
func (e *Executor) loadPortfolio(ctx context.Context, userID string) (trading.Portfolio, error) {
	p, ok, err := e.store.LoadPortfolio(ctx, userID)
	if err != nil {
		return trading.Portfolio{}, fmt.Errorf("load portfolio: %w", err)
	}
	if !ok {
		return trading.NewPortfolio(userID, e.opts.StartingCash), nil
	}
	return *p, nil
}

// retry runs fn again when another writer changed the portfolio or its
// orders between load and commit. Must be called with the user lock held.
func (e *Executor) retry(userID string, fn func() error) error {
	var err error
	for attempt := 0; attempt < commitAttempts; attempt++ {
		err = fn()
		if !errors.Is(err, trading.ErrStalePortfolio) && !errors.Is(err, triggers.ErrNotPending) {
			return err
		}
		e.logger.Warn("state changed before commit, re-evaluating", "user", userID, "attempt", attempt+1, "error", err)
	}
	return err
}

func (e *Executor) quote(ctx context.Context) (trading.Quote, error) {
	q, err := e.prices.Prices(ctx)
	if err != nil {
		return trading.Quote{}, fmt.Errorf("get prices: %w", err)
	}
	return q, nil
}

// Trade validates and applies one manual trade against the current prices.
func (e *Executor) Trade(ctx context.Context, userID, ticker string, action trading.Action, amount trading.AmountSpec) (*trading.Transaction, error) {
	unlock := e.lock(userID)
	defer unlock()

	var tx trading.Transaction
	err := e.retry(userID, func() error {
		q, err := e.quote(ctx)
		if err != nil {
			return err
		}
		p, err := e.loadPortfolio(ctx, userID)
		if err != nil {
			return err
		}

		trade, err := e.validator.Validate(p, ticker, action, amount, q)
		if err != nil {
			e.rejected(err)
			e.logger.Info("trade rejected", "user", userID, "ticker", ticker, "action", action, "amount", amount.String(), "reason", err)
			return err
		}

		next, t := e.ledger.Apply(p, trade)
		if err := e.store.CommitTrade(ctx, next, []trading.Transaction{t}, nil); err != nil {
			return fmt.Errorf("commit trade: %w", err)
		}
		tx = t
		return nil
	})
	if err != nil {
		var rej *trading.Rejection
		if !errors.As(err, &rej) {
			e.logger.Error("trade failed", "user", userID, "ticker", ticker, "error", err)
		}
		return nil, err
	}

	e.executed(tx, "manual")
	e.notifier.NotifyTrade(tx)
	e.logger.Info("trade executed",
		"user", userID, "ticker", tx.Ticker, "action", tx.Action,
		"amount", tx.Amount.String(), "price", tx.Price.String(), "total", tx.Total.String())
	return &tx, nil
}

// SellAll liquidates every holding that has a price, in one atomic commit.
// Holdings without a quote are left untouched.
func (e *Executor) SellAll(ctx context.Context, userID string) ([]trading.Transaction, error) {
	unlock := e.lock(userID)
	defer unlock()

	var txs []trading.Transaction
	err := e.retry(userID, func() error {
		txs = nil
		q, err := e.quote(ctx)
		if err != nil {
			return err
		}
		p, err := e.loadPortfolio(ctx, userID)
		if err != nil {
			return err
		}

		for _, ticker := range p.Tickers() {
			if !p.Holding(ticker).Amount.IsPositive() {
				continue
			}
			if _, ok := q.Price(ticker); !ok {
				e.logger.Warn("sell all: no price, keeping holding", "user", userID, "ticker", ticker)
				continue
			}
			trade, err := e.validator.Validate(p, ticker, trading.Sell, trading.All(), q)
			if err != nil {
				e.rejected(err)
				e.logger.Info("sell all: holding skipped", "user", userID, "ticker", ticker, "reason", err)
				continue
			}
			var tx trading.Transaction
			p, tx = e.ledger.Apply(p, trade)
			txs = append(txs, tx)
		}
		if len(txs) == 0 {
			return nil
		}
		if err := e.store.CommitTrade(ctx, p, txs, nil); err != nil {
			return fmt.Errorf("commit sell all: %w", err)
		}
		return nil
	})
	if err != nil || len(txs) == 0 {
		return nil, err
	}

	for _, tx := range txs {
		e.executed(tx, "manual")
		e.notifier.NotifyTrade(tx)
	}
	e.logger.Info("sold all holdings", "user", userID, "count", len(txs))
	return txs, nil
}

// Deposit credits cash to a user, creating the portfolio if needed.
func (e *Executor) Deposit(ctx context.Context, userID string, amount decimal.Decimal) (trading.Portfolio, error) {
	if !amount.IsPositive() {
		return trading.Portfolio{}, fmt.Errorf("%w, got %s", ErrInvalidDeposit, amount)
	}
	unlock := e.lock(userID)
	defer unlock()

	var p trading.Portfolio
	err := e.retry(userID, func() error {
		var err error
		p, err = e.loadPortfolio(ctx, userID)
		if err != nil {
			return err
		}
		p.Cash = p.Cash.Add(amount)
		if err := e.store.SavePortfolio(ctx, p); err != nil {
			return fmt.Errorf("save portfolio: %w", err)
		}
		return nil
	})
	if err != nil {
		return trading.Portfolio{}, err
	}
	p.Revision++
	e.logger.Info("cash deposited", "user", userID, "amount", amount.String(), "cash", p.Cash.String())
	return p, nil
}

// View is a portfolio valued at the current prices.
type View struct {
	Portfolio trading.Portfolio `json:"portfolio"`
	PnL       trading.PnL       `json:"pnl"`
	AllTime   trading.PnL       `json:"all_time"`
}

func (e *Executor) Portfolio(ctx context.Context, userID string) (View, error) {
	unlock := e.lock(userID)
	defer unlock()

	q, err := e.quote(ctx)
	if err != nil {
		return View{}, err
	}
	p, err := e.loadPortfolio(ctx, userID)
	if err != nil {
		return View{}, err
	}
	return View{Portfolio: p, PnL: trading.ProfitLoss(p, q), AllTime: trading.AllTimeProfitLoss(p, q)}, nil
}

func (e *Executor) History(ctx context.Context, userID string, limit int) ([]trading.Transaction, error) {
	txs, err := e.store.RecentTransactions(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	return txs, nil
}

type LeaderboardEntry struct {
	UserID   string      `json:"user_id"`
	AllTime  trading.PnL `json:"all_time"`
	Holdings int         `json:"holdings"`
}

// Leaderboard ranks users that ever invested by all-time P/L, best first.
func (e *Executor) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	q, err := e.quote(ctx)
	if err != nil {
		return nil, err
	}
	all, err := e.store.Portfolios(ctx)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}

	entries := make([]LeaderboardEntry, 0, len(all))
	for _, p := range all {
		if !p.Invested.IsPositive() {
			continue
		}
		held := 0
		for _, h := range p.Holdings {
			if h.Amount.IsPositive() {
				held++
			}
		}
		entries = append(entries, LeaderboardEntry{UserID: p.UserID, AllTime: trading.AllTimeProfitLoss(p, q), Holdings: held})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].AllTime.Unrealized.GreaterThan(entries[j].AllTime.Unrealized)
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (e *Executor) rejected(err error) {
	var rej *trading.Rejection
	if e.metrics != nil && errors.As(err, &rej) {
		e.metrics.Rejections.WithLabelValues(string(rej.Reason)).Inc()
	}
}

func (e *Executor) executed(tx trading.Transaction, source string) {
	if e.metrics != nil {
		e.metrics.Trades.WithLabelValues(string(tx.Action), source).Inc()
	}
}
