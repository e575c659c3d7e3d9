package market

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func testSimulator(seed int64, clock *fakeClock, events []EventKind) *Simulator {
	return newSimulator(DefaultCoins, events, rand.New(rand.NewSource(seed)), clock.now)
}

func TestSimulator_PricesStayPositive(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)}
	s := testSimulator(42, clock, DefaultEvents)

	for i := 0; i < 500; i++ {
		clock.t = clock.t.Add(time.Minute)
		q, _, err := s.Step()
		if err != nil {
			t.Fatalf("Step() error = %v", err)
		}
		if q.Len() != len(DefaultCoins) {
			t.Fatalf("quote has %d tickers, want %d", q.Len(), len(DefaultCoins))
		}
		for _, ticker := range q.Tickers() {
			if p, _ := q.Price(ticker); p.LessThan(minPrice) {
				t.Fatalf("step %d: %s price %s below floor", i, ticker, p)
			}
		}
	}
}

func TestSimulator_Deterministic(t *testing.T) {
	start := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	a := testSimulator(7, &fakeClock{t: start}, DefaultEvents)
	b := testSimulator(7, &fakeClock{t: start}, DefaultEvents)

	for i := 0; i < 20; i++ {
		qa, _, _ := a.Step()
		qb, _, _ := b.Step()
		for _, ticker := range qa.Tickers() {
			pa, _ := qa.Price(ticker)
			pb, _ := qb.Price(ticker)
			if !pa.Equal(pb) {
				t.Fatalf("step %d: %s diverged %s vs %s", i, ticker, pa, pb)
			}
		}
	}
}

func TestSimulator_EventCooldown(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)}
	always := []EventKind{{Message: "everything moves", Impact: 0.1, Probability: 1, Scope: ScopeAll}}
	s := testSimulator(1, clock, always)

	if _, ev, _ := s.Step(); ev != nil {
		t.Fatalf("event fired inside the initial cooldown: %+v", ev)
	}
	clock.t = clock.t.Add(eventCooldown)
	_, ev, _ := s.Step()
	if ev == nil || len(ev.Affected) != len(DefaultCoins) {
		t.Fatalf("expected a market-wide event, got %+v", ev)
	}
	clock.t = clock.t.Add(time.Minute)
	if _, ev, _ := s.Step(); ev != nil {
		t.Fatalf("second event within cooldown: %+v", ev)
	}
}

func TestSimulator_SeedAndPrices(t *testing.T) {
	s := testSimulator(3, &fakeClock{t: time.Now()}, nil)
	s.Seed(map[string]decimal.Decimal{
		"MEME":    decimal.RequireFromString("1.25"),
		"UNKNOWN": decimal.RequireFromString("3"),
		"HODL":    decimal.Zero,
	})

	q, err := s.Prices(context.Background())
	if err != nil {
		t.Fatalf("Prices() error = %v", err)
	}
	if p, _ := q.Price("MEME"); !p.Equal(decimal.RequireFromString("1.25")) {
		t.Errorf("MEME = %s, want 1.25", p)
	}
	if _, ok := q.Price("UNKNOWN"); ok {
		t.Error("unknown ticker was added by Seed")
	}
	if p, _ := q.Price("HODL"); !p.IsPositive() {
		t.Errorf("HODL = %s, want the random start price", p)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Prices(ctx); err == nil {
		t.Error("Prices() with a cancelled context should fail")
	}
}

func TestSimulator_TriggerEvent(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)}
	always := []EventKind{
		{Name: "elon", Message: "Elon tweets", Impact: 0.25, Probability: 1, Scope: ScopeSingle},
		{Name: "hack", Message: "Hack", Impact: -0.15, Probability: 1, Scope: ScopeAll},
	}
	s := testSimulator(5, clock, always)
	s.Seed(map[string]decimal.Decimal{"MEME": decimal.NewFromInt(10), "DOGE2": decimal.NewFromInt(4)})

	q, ev, err := s.TriggerEvent("ELON", "meme")
	if err != nil {
		t.Fatalf("TriggerEvent(elon) error = %v", err)
	}
	if ev.Message != "[ADMIN] Elon tweets" || len(ev.Affected) != 1 || ev.Affected[0] != "MEME" {
		t.Errorf("event = %+v", ev)
	}
	if p, _ := q.Price("MEME"); !p.Equal(decimal.RequireFromString("12.5")) {
		t.Errorf("MEME = %s, want 12.5", p)
	}
	if p, _ := q.Price("DOGE2"); !p.Equal(decimal.NewFromInt(4)) {
		t.Errorf("DOGE2 = %s, want untouched 4", p)
	}

	q, ev, err = s.TriggerEvent("hack", "")
	if err != nil {
		t.Fatalf("TriggerEvent(hack) error = %v", err)
	}
	if len(ev.Affected) != len(DefaultCoins) {
		t.Errorf("hack hit %d coins, want all %d", len(ev.Affected), len(DefaultCoins))
	}
	if p, _ := q.Price("DOGE2"); !p.Equal(decimal.RequireFromString("3.4")) {
		t.Errorf("DOGE2 = %s, want 3.4", p)
	}

	if _, _, err := s.TriggerEvent("aliens", ""); !errors.Is(err, ErrUnknownEvent) {
		t.Errorf("TriggerEvent(aliens) error = %v, want ErrUnknownEvent", err)
	}
	if _, _, err := s.TriggerEvent("elon", "NOPE"); !errors.Is(err, ErrUnknownCoin) {
		t.Errorf("TriggerEvent(elon, NOPE) error = %v, want ErrUnknownCoin", err)
	}
	if _, ev, _ := s.TriggerEvent("random", ""); ev == nil {
		t.Error("TriggerEvent(random) returned no event")
	}

	if _, ev, _ := s.Step(); ev != nil {
		t.Errorf("Step() right after a forced event fired %q, want cooldown", ev.Message)
	}
}

func TestEventNames(t *testing.T) {
	names := EventNames(DefaultEvents)
	if len(names) != len(DefaultEvents)+1 || names[0] != "hack" || names[len(names)-1] != "random" {
		t.Errorf("EventNames() = %v", names)
	}
}
