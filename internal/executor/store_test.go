package executor

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/camuig/coin-sim/internal/trading"
	"github.com/camuig/coin-sim/internal/triggers"
)

// memStore is an in-memory Store. CommitTrade is all or nothing.
type memStore struct {
	mu         sync.Mutex
	portfolios map[string]trading.Portfolio
	txs        []trading.Transaction
	orders     map[string]triggers.Order

	commitErr    error
	beforeCommit func(s *memStore)
	commits      int
}

func newMemStore() *memStore {
	return &memStore{
		portfolios: make(map[string]trading.Portfolio),
		orders:     make(map[string]triggers.Order),
	}
}

func (s *memStore) LoadPortfolio(_ context.Context, userID string) (*trading.Portfolio, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.portfolios[userID]
	if !ok {
		return nil, false, nil
	}
	c := p.Clone()
	return &c, true, nil
}

func (s *memStore) SavePortfolio(_ context.Context, p trading.Portfolio) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkRevision(p); err != nil {
		return err
	}
	s.put(p)
	return nil
}

// checkRevision must be called with s.mu held.
func (s *memStore) checkRevision(p trading.Portfolio) error {
	if cur := s.portfolios[p.UserID]; cur.Revision != p.Revision {
		return fmt.Errorf("account %s at revision %d, have %d: %w", p.UserID, cur.Revision, p.Revision, trading.ErrStalePortfolio)
	}
	return nil
}

func (s *memStore) put(p trading.Portfolio) {
	c := p.Clone()
	c.Revision = p.Revision + 1
	s.portfolios[p.UserID] = c
}

// bump simulates a write by another process.
func (s *memStore) bump(userID string, mutate func(p *trading.Portfolio)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.portfolios[userID]
	mutate(&p)
	s.put(p)
}

func (s *memStore) CommitTrade(_ context.Context, p trading.Portfolio, txs []trading.Transaction, executed []triggers.Order) error {
	if s.beforeCommit != nil {
		hook := s.beforeCommit
		s.beforeCommit = nil
		hook(s)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.commits++
	if s.commitErr != nil {
		return s.commitErr
	}
	if err := s.checkRevision(p); err != nil {
		return err
	}
	for _, o := range executed {
		if cur, ok := s.orders[o.ID]; !ok || !cur.Pending() {
			return fmt.Errorf("order %s: %w", o.ID, triggers.ErrNotPending)
		}
	}
	for _, o := range executed {
		s.orders[o.ID] = o
	}
	s.put(p)
	s.txs = append(s.txs, txs...)
	return nil
}

func (s *memStore) RecentTransactions(_ context.Context, userID string, limit int) ([]trading.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []trading.Transaction
	for i := len(s.txs) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if s.txs[i].UserID == userID {
			out = append(out, s.txs[i])
		}
	}
	return out, nil
}

func (s *memStore) Portfolios(_ context.Context) ([]trading.Portfolio, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]trading.Portfolio, 0, len(s.portfolios))
	for _, p := range s.portfolios {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (s *memStore) LoadTriggerOrders(_ context.Context, userID string, statuses ...triggers.Status) ([]triggers.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []triggers.Order
	for _, o := range s.orders {
		if o.UserID != userID {
			continue
		}
		if len(statuses) > 0 && !hasStatus(statuses, o.Status) {
			continue
		}
		out = append(out, o)
	}
	return triggers.Sorted(out), nil
}

func hasStatus(statuses []triggers.Status, st triggers.Status) bool {
	for _, s := range statuses {
		if s == st {
			return true
		}
	}
	return false
}

func (s *memStore) SaveTriggerOrder(_ context.Context, o triggers.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ID] = o
	return nil
}

func (s *memStore) CancelTriggerOrder(_ context.Context, userID, orderID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok || o.UserID != userID || !o.Pending() {
		return false, nil
	}
	o.Status = triggers.StatusCancelled
	s.orders[orderID] = o
	return true, nil
}

func (s *memStore) PendingTriggerUsers(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]bool)
	var out []string
	for _, o := range s.orders {
		if o.Pending() && !seen[o.UserID] {
			seen[o.UserID] = true
			out = append(out, o.UserID)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *memStore) ActiveTriggerOrders(_ context.Context) ([]triggers.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []triggers.Order
	for _, o := range s.orders {
		if o.Pending() {
			out = append(out, o)
		}
	}
	return triggers.Sorted(out), nil
}

func (s *memStore) order(id string) triggers.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orders[id]
}

type fixedPrices struct {
	mu sync.Mutex
	q  trading.Quote
}

func (f *fixedPrices) set(q trading.Quote) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.q = q
}

func (f *fixedPrices) Prices(context.Context) (trading.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.q, nil
}

type countingNotifier struct {
	mu     sync.Mutex
	trades int
	fills  int
}

func (n *countingNotifier) NotifyTrade(trading.Transaction) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.trades++
}

func (n *countingNotifier) NotifyTriggerFill(triggers.Fill) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.fills++
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }
