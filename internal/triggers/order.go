package triggers

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/camuig/coin-sim/internal/trading"
)

// ErrNotPending reports that an order was cancelled or executed elsewhere
// before a fill could be recorded.
var ErrNotPending = errors.New("trigger order is no longer pending")

type Status string

const (
	StatusPending   Status = "pending"
	StatusExecuted  Status = "executed"
	StatusCancelled Status = "cancelled"
)

// Order is a conditional trade. Buy orders fire when the price falls to or
// below TriggerPrice, sell orders when it rises to or above it.
type Order struct {
	ID             string              `json:"id"`
	UserID         string              `json:"user_id"`
	Ticker         string              `json:"ticker"`
	Direction      trading.Action      `json:"direction"`
	TriggerPrice   decimal.Decimal     `json:"trigger_price"`
	Amount         trading.AmountSpec  `json:"amount"`
	Status         Status              `json:"status"`
	CreatedAt      time.Time           `json:"created_at"`
	ExecutedAt     *time.Time          `json:"executed_at,omitempty"`
	ExecutionPrice decimal.NullDecimal `json:"execution_price"`
}

func NewOrder(userID, ticker string, dir trading.Action, triggerPrice decimal.Decimal, amount trading.AmountSpec, now time.Time) (Order, error) {
	if dir != trading.Buy && dir != trading.Sell {
		return Order{}, fmt.Errorf("unknown direction %q", dir)
	}
	if !triggerPrice.IsPositive() {
		return Order{}, fmt.Errorf("trigger price must be positive, got %s", triggerPrice)
	}
	if !amount.IsAll() && !amount.Value.IsPositive() {
		return Order{}, fmt.Errorf("trigger amount must be positive, got %s", amount.Value)
	}
	return Order{
		ID:           uuid.NewString(),
		UserID:       userID,
		Ticker:       ticker,
		Direction:    dir,
		TriggerPrice: triggerPrice,
		Amount:       amount,
		Status:       StatusPending,
		CreatedAt:    now,
	}, nil
}

// NewGainTrigger builds a sell-all order that fires once the price is
// gainPct percent above the holding's average purchase price.
func NewGainTrigger(p trading.Portfolio, ticker string, gainPct decimal.Decimal, now time.Time) (Order, error) {
	if !gainPct.IsPositive() {
		return Order{}, fmt.Errorf("target gain must be positive, got %s%%", gainPct)
	}
	h := p.Holding(ticker)
	if !h.Amount.IsPositive() {
		return Order{}, fmt.Errorf("no %s holding to set a trigger for", ticker)
	}
	if !h.CostBasis.IsPositive() {
		return Order{}, fmt.Errorf("no cost basis for %s", ticker)
	}
	factor := decimal.NewFromInt(1).Add(gainPct.Div(decimal.NewFromInt(100)))
	target := h.AveragePrice().Mul(factor).Round(trading.MoneyPlaces)
	return NewOrder(p.UserID, ticker, trading.Sell, target, trading.All(), now)
}

// Eligible reports whether price meets the order's condition.
func (o Order) Eligible(price decimal.Decimal) bool {
	switch o.Direction {
	case trading.Buy:
		return price.LessThanOrEqual(o.TriggerPrice)
	case trading.Sell:
		return price.GreaterThanOrEqual(o.TriggerPrice)
	}
	return false
}

func (o Order) Pending() bool { return o.Status == StatusPending }
