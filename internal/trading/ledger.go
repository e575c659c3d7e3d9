package trading

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Ledger applies validated trades to portfolios and values them.
type Ledger struct {
	FeeRate decimal.Decimal
	Now     func() time.Time
	NewID   func() string
}

func NewLedger(feeRate decimal.Decimal) Ledger {
	return Ledger{
		FeeRate: feeRate,
		Now:     func() time.Time { return time.Now().UTC() },
		NewID:   uuid.NewString,
	}
}

// Apply returns the updated portfolio and the transaction describing the change.
// The input portfolio is left untouched.
func (l Ledger) Apply(p Portfolio, t ValidatedTrade) (Portfolio, Transaction) {
	out := p.Clone()
	h := out.Holdings[t.Ticker]
	notional := t.Notional()
	charge := fee(l.FeeRate, notional)

	var total decimal.Decimal
	switch t.Action {
	case Buy:
		h.Amount = h.Amount.Add(t.Amount)
		h.CostBasis = h.CostBasis.Add(notional)
		total = notional.Add(charge)
		out.Cash = out.Cash.Sub(total)
		out.Invested = out.Invested.Add(total)
	case Sell:
		if t.Amount.GreaterThanOrEqual(h.Amount) {
			h = Holding{Amount: decimal.Zero, CostBasis: decimal.Zero}
		} else {
			removed := h.CostBasis.Mul(t.Amount).Div(h.Amount).Round(MoneyPlaces)
			h.CostBasis = h.CostBasis.Sub(removed)
			h.Amount = h.Amount.Sub(t.Amount)
		}
		total = notional.Sub(charge)
		out.Cash = out.Cash.Add(total)
		out.Returned = out.Returned.Add(total)
	}
	if h.Amount.IsZero() {
		h.CostBasis = decimal.Zero
	}
	out.Holdings[t.Ticker] = h

	return out, Transaction{
		ID:        l.newID(),
		UserID:    p.UserID,
		Ticker:    t.Ticker,
		Action:    t.Action,
		Amount:    t.Amount,
		Price:     t.Price,
		Fee:       charge,
		Total:     total,
		Timestamp: l.now(),
	}
}

func (l Ledger) now() time.Time {
	if l.Now == nil {
		return time.Now().UTC()
	}
	return l.Now()
}

func (l Ledger) newID() string {
	if l.NewID == nil {
		return uuid.NewString()
	}
	return l.NewID()
}

// Valuation is the market value of a portfolio. Missing lists held tickers
// that had no price and were left out of Total.
type Valuation struct {
	Total   decimal.Decimal `json:"total"`
	Missing []string        `json:"missing,omitempty"`
}

func (v Valuation) Partial() bool { return len(v.Missing) > 0 }

type PnL struct {
	Value      Valuation       `json:"value"`
	CostBasis  decimal.Decimal `json:"cost_basis"`
	Unrealized decimal.Decimal `json:"unrealized"`
	Percent    decimal.Decimal `json:"percent"`
}

func Value(p Portfolio, q Quote) Valuation {
	v := Valuation{Total: decimal.Zero}
	for _, ticker := range p.Tickers() {
		h := p.Holdings[ticker]
		if h.Amount.IsZero() {
			continue
		}
		price, ok := q.Price(ticker)
		if !ok {
			v.Missing = append(v.Missing, ticker)
			continue
		}
		v.Total = v.Total.Add(h.Amount.Mul(price))
	}
	return v
}

func ProfitLoss(p Portfolio, q Quote) PnL {
	v := Value(p, q)
	cost := p.TotalCostBasis()
	pl := v.Total.Sub(cost)
	return PnL{Value: v, CostBasis: cost, Unrealized: pl, Percent: percent(pl, cost)}
}

// AllTimeProfitLoss compares everything returned plus what is still held
// against everything ever invested.
func AllTimeProfitLoss(p Portfolio, q Quote) PnL {
	v := Value(p, q)
	pl := p.Returned.Add(v.Total).Sub(p.Invested)
	return PnL{Value: v, CostBasis: p.Invested, Unrealized: pl, Percent: percent(pl, p.Invested)}
}

func percent(pl, base decimal.Decimal) decimal.Decimal {
	if !base.IsPositive() {
		return decimal.Zero
	}
	return pl.Div(base).Mul(decimal.NewFromInt(100)).Round(4)
}
