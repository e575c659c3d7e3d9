package trading

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Action string

const (
	Buy  Action = "buy"
	Sell Action = "sell"
)

// ParseAction accepts "buy" or "sell" in any case.
func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToLower(strings.TrimSpace(s))); a {
	case Buy, Sell:
		return a, nil
	default:
		return "", fmt.Errorf("unknown action %q", s)
	}
}

type Holding struct {
	Amount    decimal.Decimal `json:"amount"`
	CostBasis decimal.Decimal `json:"cost_basis"`
}

// AveragePrice is the cost basis per unit, zero for an empty holding.
func (h Holding) AveragePrice() decimal.Decimal {
	if h.Amount.IsZero() {
		return decimal.Zero
	}
	return h.CostBasis.Div(h.Amount)
}

type Portfolio struct {
	UserID   string             `json:"user_id"`
	Cash     decimal.Decimal    `json:"cash"`
	Invested decimal.Decimal    `json:"invested"`
	Returned decimal.Decimal    `json:"returned"`
	Holdings map[string]Holding `json:"holdings"`

	// Revision is the stored version this portfolio was loaded at; zero for
	// one that was never saved.
	Revision int64 `json:"-"`
}

func NewPortfolio(userID string, cash decimal.Decimal) Portfolio {
	return Portfolio{
		UserID:   userID,
		Cash:     cash,
		Holdings: make(map[string]Holding),
	}
}

// Holding returns the holding for ticker, zero if none.
func (p Portfolio) Holding(ticker string) Holding {
	return p.Holdings[ticker]
}

// Clone returns a deep copy so ledger operations never alias the caller's map.
func (p Portfolio) Clone() Portfolio {
	c := p
	c.Holdings = make(map[string]Holding, len(p.Holdings))
	for t, h := range p.Holdings {
		c.Holdings[t] = h
	}
	return c
}

// Tickers returns held tickers in lexical order.
func (p Portfolio) Tickers() []string {
	out := make([]string, 0, len(p.Holdings))
	for t := range p.Holdings {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// TotalCostBasis sums the cost basis of every holding.
func (p Portfolio) TotalCostBasis() decimal.Decimal {
	total := decimal.Zero
	for _, h := range p.Holdings {
		total = total.Add(h.CostBasis)
	}
	return total
}

type Transaction struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Ticker    string          `json:"ticker"`
	Action    Action          `json:"action"`
	Amount    decimal.Decimal `json:"amount"`
	Price     decimal.Decimal `json:"price"`
	Fee       decimal.Decimal `json:"fee"`
	Total     decimal.Decimal `json:"total"`
	OrderID   string          `json:"order_id,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Quote is a read-only price snapshot. Build it with NewQuote.
type Quote struct {
	prices map[string]decimal.Decimal
}

// NewQuote copies prices and rejects non-positive entries.
func NewQuote(prices map[string]decimal.Decimal) (Quote, error) {
	q := Quote{prices: make(map[string]decimal.Decimal, len(prices))}
	for t, p := range prices {
		if !p.IsPositive() {
			return Quote{}, fmt.Errorf("price for %s must be positive, got %s", t, p)
		}
		q.prices[t] = p
	}
	return q, nil
}

func (q Quote) Price(ticker string) (decimal.Decimal, bool) {
	p, ok := q.prices[ticker]
	return p, ok
}

func (q Quote) Len() int { return len(q.prices) }

// Tickers returns quoted tickers in lexical order.
func (q Quote) Tickers() []string {
	out := make([]string, 0, len(q.prices))
	for t := range q.prices {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Map returns a copy of the snapshot.
func (q Quote) Map() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(q.prices))
	for t, p := range q.prices {
		out[t] = p
	}
	return out
}

type AmountKind int

const (
	AmountExact AmountKind = iota
	AmountAll
)

// AmountSpec is either an exact quantity or the whole available amount.
type AmountSpec struct {
	Kind  AmountKind
	Value decimal.Decimal
}

func Exact(v decimal.Decimal) AmountSpec { return AmountSpec{Kind: AmountExact, Value: v} }

func All() AmountSpec { return AmountSpec{Kind: AmountAll} }

func (a AmountSpec) IsAll() bool { return a.Kind == AmountAll }

func (a AmountSpec) String() string {
	if a.IsAll() {
		return "all"
	}
	return a.Value.String()
}

// ParseAmount reads "all" or a positive decimal.
func ParseAmount(s string) (AmountSpec, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "all") {
		return All(), nil
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return AmountSpec{}, reject(ReasonInvalidAmount, "amount %q is not a number", s)
	}
	if !v.IsPositive() {
		return AmountSpec{}, reject(ReasonInvalidAmount, "amount must be positive, got %s", v)
	}
	return Exact(v), nil
}

type ValidatedTrade struct {
	Ticker string          `json:"ticker"`
	Action Action          `json:"action"`
	Amount decimal.Decimal `json:"amount"`
	Price  decimal.Decimal `json:"price"`
}

// Notional is amount times price, before fees.
func (t ValidatedTrade) Notional() decimal.Decimal {
	return t.Amount.Mul(t.Price)
}

func (a AmountSpec) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

func (a *AmountSpec) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	parsed, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
