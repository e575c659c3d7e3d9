package triggers

import (
	"sort"

	"github.com/camuig/coin-sim/internal/trading"
)

// Fill is an order that fired during a pass.
type Fill struct {
	Order       Order                  `json:"order"`
	Trade       trading.ValidatedTrade `json:"trade"`
	Transaction trading.Transaction    `json:"transaction"`
}

// Pass is the outcome of evaluating one user's orders against one quote.
// Skipped holds eligible orders that failed re-validation and stay pending.
type Pass struct {
	Portfolio trading.Portfolio
	Fired     []Fill
	Skipped   map[string]error
}

type Evaluator struct {
	Validator trading.Validator
	Ledger    trading.Ledger
}

func NewEvaluator(v trading.Validator, l trading.Ledger) *Evaluator {
	return &Evaluator{Validator: v, Ledger: l}
}

// Evaluate fires eligible pending orders oldest first. Every order is
// validated against the portfolio left by the fills before it, so funds
// consumed earlier in the pass are not granted twice.
func (e *Evaluator) Evaluate(p trading.Portfolio, orders []Order, quote trading.Quote) Pass {
	pass := Pass{Portfolio: p, Skipped: make(map[string]error)}

	for _, o := range Sorted(orders) {
		if !o.Pending() || o.UserID != p.UserID {
			continue
		}
		price, ok := quote.Price(o.Ticker)
		if !ok || !o.Eligible(price) {
			continue
		}

		trade, err := e.Validator.Validate(pass.Portfolio, o.Ticker, o.Direction, o.Amount, quote)
		if err != nil {
			pass.Skipped[o.ID] = err
			continue
		}

		next, tx := e.Ledger.Apply(pass.Portfolio, trade)
		tx.OrderID = o.ID
		pass.Portfolio = next

		executedAt := tx.Timestamp
		o.Status = StatusExecuted
		o.ExecutedAt = &executedAt
		o.ExecutionPrice.Decimal = price
		o.ExecutionPrice.Valid = true
		pass.Fired = append(pass.Fired, Fill{Order: o, Trade: trade, Transaction: tx})
	}

	return pass
}

// Sorted returns orders by creation time, oldest first, ties broken by ID.
func Sorted(orders []Order) []Order {
	out := make([]Order, len(orders))
	copy(out, orders)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
