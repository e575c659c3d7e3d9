package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/camuig/coin-sim/internal/market"
	"github.com/camuig/coin-sim/internal/trading"
	"github.com/camuig/coin-sim/internal/triggers"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Portfolios

// LoadPortfolio returns the stored portfolio; ok is false when the user never traded.
func (r *Repository) LoadPortfolio(ctx context.Context, userID string) (*trading.Portfolio, bool, error) {
	return loadPortfolio(r.db.WithContext(ctx), userID)
}

func loadPortfolio(db *gorm.DB, userID string) (*trading.Portfolio, bool, error) {
	var acct Account
	err := db.Where("user_id = ?", userID).First(&acct).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load account %s: %w", userID, err)
	}

	var rows []Holding
	if err := db.Where("user_id = ?", userID).Find(&rows).Error; err != nil {
		return nil, false, fmt.Errorf("load holdings %s: %w", userID, err)
	}

	p := trading.NewPortfolio(userID, acct.Cash)
	p.Invested = acct.Invested
	p.Returned = acct.Returned
	p.Revision = acct.Revision
	for _, h := range rows {
		p.Holdings[h.Ticker] = trading.Holding{Amount: h.Amount, CostBasis: h.CostBasis}
	}
	return &p, true, nil
}

func (r *Repository) SavePortfolio(ctx context.Context, p trading.Portfolio) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return savePortfolio(tx, p)
	})
}

// savePortfolio writes p only if the stored account is still at p.Revision,
// so a writer in another process cannot be silently overwritten.
func savePortfolio(tx *gorm.DB, p trading.Portfolio) error {
	if p.Revision == 0 {
		acct := Account{UserID: p.UserID, Cash: p.Cash, Invested: p.Invested, Returned: p.Returned, Revision: 1}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&acct)
		if res.Error != nil {
			return fmt.Errorf("create account %s: %w", p.UserID, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("account %s: %w", p.UserID, trading.ErrStalePortfolio)
		}
	} else {
		res := tx.Model(&Account{}).
			Where("user_id = ? AND revision = ?", p.UserID, p.Revision).
			Updates(map[string]any{
				"cash":     p.Cash,
				"invested": p.Invested,
				"returned": p.Returned,
				"revision": p.Revision + 1,
			})
		if res.Error != nil {
			return fmt.Errorf("save account %s: %w", p.UserID, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("account %s: %w", p.UserID, trading.ErrStalePortfolio)
		}
	}

	for _, ticker := range p.Tickers() {
		h := p.Holdings[ticker]
		if h.Amount.IsZero() {
			if err := tx.Where("user_id = ? AND ticker = ?", p.UserID, ticker).Delete(&Holding{}).Error; err != nil {
				return fmt.Errorf("delete holding %s/%s: %w", p.UserID, ticker, err)
			}
			continue
		}
		row := Holding{UserID: p.UserID, Ticker: ticker, Amount: h.Amount, CostBasis: h.CostBasis}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "ticker"}},
			DoUpdates: clause.AssignmentColumns([]string{"amount", "cost_basis", "updated_at"}),
		}).Create(&row).Error
		if err != nil {
			return fmt.Errorf("save holding %s/%s: %w", p.UserID, ticker, err)
		}
	}
	return nil
}

// Portfolios returns every stored portfolio, for leaderboards.
func (r *Repository) Portfolios(ctx context.Context) ([]trading.Portfolio, error) {
	db := r.db.WithContext(ctx)

	var accts []Account
	if err := db.Order("user_id").Find(&accts).Error; err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	var rows []Holding
	if err := db.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list holdings: %w", err)
	}

	byUser := make(map[string]int, len(accts))
	out := make([]trading.Portfolio, 0, len(accts))
	for i, a := range accts {
		p := trading.NewPortfolio(a.UserID, a.Cash)
		p.Invested = a.Invested
		p.Returned = a.Returned
		p.Revision = a.Revision
		out = append(out, p)
		byUser[a.UserID] = i
	}
	for _, h := range rows {
		if i, ok := byUser[h.UserID]; ok {
			out[i].Holdings[h.Ticker] = trading.Holding{Amount: h.Amount, CostBasis: h.CostBasis}
		}
	}
	return out, nil
}

// Transactions

func (r *Repository) RecentTransactions(ctx context.Context, userID string, limit int) ([]trading.Transaction, error) {
	var rows []Transaction
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("timestamp DESC").Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("recent transactions %s: %w", userID, err)
	}
	out := make([]trading.Transaction, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out, nil
}

// CommitTrade stores the portfolio, its new transactions and the orders that
// produced them in one database transaction. Any failure rolls back all of it.
func (r *Repository) CommitTrade(ctx context.Context, p trading.Portfolio, txs []trading.Transaction, executed []triggers.Order) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, o := range executed {
			res := tx.Model(&TriggerOrder{}).
				Where("id = ? AND status = ?", o.ID, string(triggers.StatusPending)).
				Updates(map[string]any{
					"status":          string(triggers.StatusExecuted),
					"executed_at":     o.ExecutedAt,
					"execution_price": o.ExecutionPrice,
				})
			if res.Error != nil {
				return fmt.Errorf("mark order %s executed: %w", o.ID, res.Error)
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("order %s: %w", o.ID, triggers.ErrNotPending)
			}
		}

		if err := savePortfolio(tx, p); err != nil {
			return err
		}

		for _, t := range txs {
			if err := tx.Create(newTransaction(t)).Error; err != nil {
				return fmt.Errorf("append transaction %s: %w", t.ID, err)
			}
		}
		return nil
	})
}

// Trigger orders

// LoadTriggerOrders returns the user's orders, oldest first, optionally filtered by status.
func (r *Repository) LoadTriggerOrders(ctx context.Context, userID string, statuses ...triggers.Status) ([]triggers.Order, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if len(statuses) > 0 {
		names := make([]string, len(statuses))
		for i, s := range statuses {
			names[i] = string(s)
		}
		q = q.Where("status IN ?", names)
	}

	var rows []TriggerOrder
	if err := q.Order("created_at ASC").Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load trigger orders %s: %w", userID, err)
	}
	out := make([]triggers.Order, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out, nil
}

func (r *Repository) SaveTriggerOrder(ctx context.Context, o triggers.Order) error {
	if err := r.db.WithContext(ctx).Save(newTriggerOrder(o)).Error; err != nil {
		return fmt.Errorf("save trigger order %s: %w", o.ID, err)
	}
	return nil
}

// CancelTriggerOrder flips a pending order to cancelled. ok is false when no
// pending order with that ID belongs to the user.
func (r *Repository) CancelTriggerOrder(ctx context.Context, userID, orderID string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&TriggerOrder{}).
		Where("id = ? AND user_id = ? AND status = ?", orderID, userID, string(triggers.StatusPending)).
		Update("status", string(triggers.StatusCancelled))
	if res.Error != nil {
		return false, fmt.Errorf("cancel trigger order %s: %w", orderID, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// ActiveTriggerOrders returns every pending order across all users, oldest first.
func (r *Repository) ActiveTriggerOrders(ctx context.Context) ([]triggers.Order, error) {
	var rows []TriggerOrder
	err := r.db.WithContext(ctx).Where("status = ?", string(triggers.StatusPending)).
		Order("created_at ASC").Order("id ASC").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("active trigger orders: %w", err)
	}
	out := make([]triggers.Order, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out, nil
}

// PendingTriggerUsers lists users that have at least one pending order.
func (r *Repository) PendingTriggerUsers(ctx context.Context) ([]string, error) {
	var users []string
	err := r.db.WithContext(ctx).Model(&TriggerOrder{}).
		Where("status = ?", string(triggers.StatusPending)).
		Distinct().Order("user_id").Pluck("user_id", &users).Error
	if err != nil {
		return nil, fmt.Errorf("pending trigger users: %w", err)
	}
	return users, nil
}

// PruneTriggerOrders deletes executed and cancelled orders created before cutoff.
func (r *Repository) PruneTriggerOrders(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("status <> ? AND created_at < ?", string(triggers.StatusPending), cutoff).
		Delete(&TriggerOrder{})
	if res.Error != nil {
		return 0, fmt.Errorf("prune trigger orders: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Price history

func (r *Repository) SavePrices(ctx context.Context, q trading.Quote, at time.Time) error {
	if q.Len() == 0 {
		return nil
	}
	rows := make([]PricePoint, 0, q.Len())
	for _, ticker := range q.Tickers() {
		price, _ := q.Price(ticker)
		rows = append(rows, PricePoint{Ticker: ticker, Price: price, Timestamp: at})
	}
	if err := r.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return fmt.Errorf("save prices: %w", err)
	}
	return nil
}

// LatestPrices returns the most recent stored price per ticker.
func (r *Repository) LatestPrices(ctx context.Context) (map[string]decimal.Decimal, error) {
	latest := r.db.Model(&PricePoint{}).Select("MAX(id)").Group("ticker")

	var rows []PricePoint
	if err := r.db.WithContext(ctx).Where("id IN (?)", latest).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("latest prices: %w", err)
	}
	out := make(map[string]decimal.Decimal, len(rows))
	for _, row := range rows {
		out[row.Ticker] = row.Price
	}
	return out, nil
}

func (r *Repository) PriceHistory(ctx context.Context, ticker string, since time.Time) ([]PricePoint, error) {
	var rows []PricePoint
	err := r.db.WithContext(ctx).Where("ticker = ? AND timestamp >= ?", ticker, since).
		Order("timestamp ASC").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("price history %s: %w", ticker, err)
	}
	return rows, nil
}

// Market events

func (r *Repository) RecordEvent(ctx context.Context, ev market.Event) error {
	if err := r.db.WithContext(ctx).Create(newMarketEvent(ev)).Error; err != nil {
		return fmt.Errorf("record market event: %w", err)
	}
	return nil
}

// RecentEvents returns events since the given time, newest first.
func (r *Repository) RecentEvents(ctx context.Context, since time.Time, limit int) ([]market.Event, error) {
	var rows []MarketEvent
	err := r.db.WithContext(ctx).Where("at >= ?", since).
		Order("at DESC").Order("id DESC").Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("recent market events: %w", err)
	}
	out := make([]market.Event, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out, nil
}
