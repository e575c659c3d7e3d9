package storage

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/camuig/coin-sim/internal/market"
	"github.com/camuig/coin-sim/internal/trading"
	"github.com/camuig/coin-sim/internal/triggers"
)

// Decimal columns are text so sqlite keeps the exact value.

type Account struct {
	UserID    string    `gorm:"primaryKey" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Cash     decimal.Decimal `gorm:"type:text;not null" json:"cash"`
	Invested decimal.Decimal `gorm:"type:text;not null" json:"invested"`
	Returned decimal.Decimal `gorm:"type:text;not null" json:"returned"`
	Revision int64           `gorm:"not null;default:0" json:"revision"`
}

type Holding struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID    string          `gorm:"uniqueIndex:idx_holding_user_ticker;not null" json:"user_id"`
	Ticker    string          `gorm:"uniqueIndex:idx_holding_user_ticker;not null" json:"ticker"`
	Amount    decimal.Decimal `gorm:"type:text;not null" json:"amount"`
	CostBasis decimal.Decimal `gorm:"type:text;not null" json:"cost_basis"`
}

type Transaction struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	UserID    string    `gorm:"index;not null" json:"user_id"`
	Timestamp time.Time `gorm:"index;not null" json:"timestamp"`

	Ticker  string          `gorm:"not null" json:"ticker"`
	Action  string          `gorm:"not null" json:"action"` // buy or sell
	Amount  decimal.Decimal `gorm:"type:text;not null" json:"amount"`
	Price   decimal.Decimal `gorm:"type:text;not null" json:"price"`
	Fee     decimal.Decimal `gorm:"type:text;not null" json:"fee"`
	Total   decimal.Decimal `gorm:"type:text;not null" json:"total"`
	OrderID string          `json:"order_id"`
}

type TriggerOrder struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	UserID    string    `gorm:"index;not null" json:"user_id"`
	CreatedAt time.Time `gorm:"index;not null" json:"created_at"`

	Ticker       string          `gorm:"not null" json:"ticker"`
	Direction    string          `gorm:"not null" json:"direction"`
	TriggerPrice decimal.Decimal `gorm:"type:text;not null" json:"trigger_price"`
	Amount       decimal.Decimal `gorm:"type:text;not null" json:"amount"`
	AmountAll    bool            `gorm:"not null;default:false" json:"amount_all"`
	Status       string          `gorm:"index;not null;default:'pending'" json:"status"` // pending, executed, cancelled

	ExecutedAt     *time.Time          `json:"executed_at"`
	ExecutionPrice decimal.NullDecimal `gorm:"type:text" json:"execution_price"`
}

type MarketEvent struct {
	ID       uint      `gorm:"primarykey" json:"id"`
	Message  string    `gorm:"not null" json:"message"`
	Impact   float64   `gorm:"not null" json:"impact"`
	Affected string    `gorm:"not null" json:"affected"` // comma separated tickers
	At       time.Time `gorm:"index;not null" json:"at"`
}

type PricePoint struct {
	ID        uint            `gorm:"primarykey" json:"id"`
	Ticker    string          `gorm:"index;not null" json:"ticker"`
	Price     decimal.Decimal `gorm:"type:text;not null" json:"price"`
	Timestamp time.Time       `gorm:"index;not null" json:"timestamp"`
}

func newMarketEvent(ev market.Event) *MarketEvent {
	return &MarketEvent{Message: ev.Message, Impact: ev.Impact, Affected: strings.Join(ev.Affected, ","), At: ev.At}
}

func (m MarketEvent) toDomain() market.Event {
	ev := market.Event{Message: m.Message, Impact: m.Impact, At: m.At}
	if m.Affected != "" {
		ev.Affected = strings.Split(m.Affected, ",")
	}
	return ev
}

func newTransaction(tx trading.Transaction) *Transaction {
	return &Transaction{
		ID:        tx.ID,
		UserID:    tx.UserID,
		Timestamp: tx.Timestamp,
		Ticker:    tx.Ticker,
		Action:    string(tx.Action),
		Amount:    tx.Amount,
		Price:     tx.Price,
		Fee:       tx.Fee,
		Total:     tx.Total,
		OrderID:   tx.OrderID,
	}
}

func (t Transaction) toDomain() trading.Transaction {
	return trading.Transaction{
		ID:        t.ID,
		UserID:    t.UserID,
		Ticker:    t.Ticker,
		Action:    trading.Action(t.Action),
		Amount:    t.Amount,
		Price:     t.Price,
		Fee:       t.Fee,
		Total:     t.Total,
		OrderID:   t.OrderID,
		Timestamp: t.Timestamp,
	}
}

func newTriggerOrder(o triggers.Order) *TriggerOrder {
	return &TriggerOrder{
		ID:             o.ID,
		UserID:         o.UserID,
		CreatedAt:      o.CreatedAt,
		Ticker:         o.Ticker,
		Direction:      string(o.Direction),
		TriggerPrice:   o.TriggerPrice,
		Amount:         o.Amount.Value,
		AmountAll:      o.Amount.IsAll(),
		Status:         string(o.Status),
		ExecutedAt:     o.ExecutedAt,
		ExecutionPrice: o.ExecutionPrice,
	}
}

func (t TriggerOrder) toDomain() triggers.Order {
	amount := trading.Exact(t.Amount)
	if t.AmountAll {
		amount = trading.All()
	}
	return triggers.Order{
		ID:             t.ID,
		UserID:         t.UserID,
		Ticker:         t.Ticker,
		Direction:      trading.Action(t.Direction),
		TriggerPrice:   t.TriggerPrice,
		Amount:         amount,
		Status:         triggers.Status(t.Status),
		CreatedAt:      t.CreatedAt,
		ExecutedAt:     t.ExecutedAt,
		ExecutionPrice: t.ExecutionPrice,
	}
}
