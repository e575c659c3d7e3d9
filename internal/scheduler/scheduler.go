package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/camuig/coin-sim/internal/config"
	"github.com/camuig/coin-sim/internal/logger"
	"github.com/camuig/coin-sim/internal/market"
	"github.com/camuig/coin-sim/internal/metrics"
	"github.com/camuig/coin-sim/internal/trading"
	"github.com/camuig/coin-sim/internal/triggers"
)

type Market interface {
	Step() (trading.Quote, *market.Event, error)
	TriggerEvent(name, ticker string) (trading.Quote, *market.Event, error)
}

type TriggerProcessor interface {
	ProcessTriggers(ctx context.Context, q trading.Quote) ([]triggers.Fill, error)
}

type Store interface {
	SavePrices(ctx context.Context, q trading.Quote, at time.Time) error
	PruneTriggerOrders(ctx context.Context, cutoff time.Time) (int64, error)
	RecordEvent(ctx context.Context, ev market.Event) error
}

// Headliner rewrites event headlines. It must return a usable headline even
// when rewriting fails.
type Headliner interface {
	Headline(ctx context.Context, ev market.Event) string
}

type Notifier interface {
	NotifyEvent(e market.Event)
	NotifyError(context string, err error)
}

// Scheduler advances the market and evaluates trigger orders once per
// interval. Every pass uses the quote produced by the same step.
type Scheduler struct {
	market    Market
	triggers  TriggerProcessor
	repo      Store
	headlines Headliner
	notifier  Notifier
	metrics   *metrics.Metrics
	config    *config.Config
	logger    *logger.Logger
	now       func() time.Time
	lastPrune time.Time
}

// NewScheduler wires a scheduler. headlines may be nil.
func NewScheduler(
	m Market,
	tp TriggerProcessor,
	repo Store,
	headlines Headliner,
	notifier Notifier,
	mt *metrics.Metrics,
	cfg *config.Config,
	log *logger.Logger,
) *Scheduler {
	return &Scheduler{
		market:    m,
		triggers:  tp,
		repo:      repo,
		headlines: headlines,
		notifier:  notifier,
		metrics:   mt,
		config:    cfg,
		logger:    log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *Scheduler) Run(ctx context.Context) {
	interval := s.config.UpdateInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("scheduler started", "interval", interval.String())

	s.runCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.runCycle(ctx)
		}
	}
}

func (s *Scheduler) runCycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic in scheduler cycle", "panic", fmt.Sprint(r))
			s.notifier.NotifyError("scheduler panic", fmt.Errorf("%v", r))
		}
	}()

	// 1. Move prices
	q, event, err := s.market.Step()
	if err != nil {
		s.logger.Error("market step", "error", err)
		return
	}
	if s.metrics != nil {
		s.metrics.PriceSteps.Inc()
	}
	now := s.now()
	fills := s.publish(ctx, q, event, now)
	s.logger.Debug("cycle completed", "coins", q.Len(), "fills", len(fills))

	// 2. Drop old finished orders once a day
	if now.Sub(s.lastPrune) >= 24*time.Hour {
		s.prune(ctx, now)
	}
}

// ForceEvent applies a named market event out of cycle and publishes it the
// same way a random one is. An empty ticker picks a random coin.
func (s *Scheduler) ForceEvent(ctx context.Context, name, ticker string) (*market.Event, error) {
	q, event, err := s.market.TriggerEvent(name, ticker)
	if err != nil {
		return nil, fmt.Errorf("trigger event: %w", err)
	}
	s.logger.Info("admin market event", "event", name, "ticker", ticker, "impact", event.Impact)
	s.publish(ctx, q, event, s.now())
	return event, nil
}

// publish persists q, announces event if any and runs a trigger pass.
func (s *Scheduler) publish(ctx context.Context, q trading.Quote, event *market.Event, now time.Time) []triggers.Fill {
	if err := s.repo.SavePrices(ctx, q, now); err != nil {
		// non-fatal, triggers still run against the in-memory quote
		s.logger.Error("save prices", "error", err)
	}
	if event != nil {
		if s.headlines != nil {
			event.Message = s.headlines.Headline(ctx, *event)
		}
		if err := s.repo.RecordEvent(ctx, *event); err != nil {
			s.logger.Error("record market event", "error", err)
		}
		s.logger.Info("market event", "message", event.Message, "impact", event.Impact, "affected", len(event.Affected))
		s.notifier.NotifyEvent(*event)
	}

	// Evaluate trigger orders
	fills, err := s.triggers.ProcessTriggers(ctx, q)
	if err != nil {
		s.logger.Error("process triggers", "error", err)
		s.notifier.NotifyError("triggers", err)
	}
	return fills
}

func (s *Scheduler) prune(ctx context.Context, now time.Time) {
	n, err := s.repo.PruneTriggerOrders(ctx, now.Add(-s.config.Retention()))
	if err != nil {
		s.logger.Error("prune trigger orders", "error", err)
		return
	}
	s.lastPrune = now
	if n > 0 {
		s.logger.Info("pruned finished trigger orders", "count", n)
	}
}
