package market

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/camuig/coin-sim/internal/trading"
)

const (
	pricePlaces   = 6
	eventCooldown = 10 * time.Minute
	megaChance    = 0.15
)

var (
	ErrUnknownEvent = errors.New("unknown market event")
	ErrUnknownCoin  = errors.New("unknown coin")
)

var (
	minPrice      = decimal.New(1, -4)
	minStartPrice = 0.01
	maxStartPrice = 50.0
)

// Event is a headline that moved one or more coins during a step.
type Event struct {
	Message  string    `json:"message"`
	Impact   float64   `json:"impact"`
	Affected []string  `json:"affected"`
	At       time.Time `json:"at"`
}

type coinState struct {
	price      decimal.Decimal
	volatility float64
}

// Simulator is an in-process price source producing wild random walks.
type Simulator struct {
	mu        sync.RWMutex
	rng       *rand.Rand
	now       func() time.Time
	coins     []Coin
	events    []EventKind
	state     map[string]*coinState
	lastEvent time.Time
	volDay    string
}

// NewSimulator starts every coin at a random price. A zero seed uses the clock.
func NewSimulator(coins []Coin, seed int64) *Simulator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return newSimulator(coins, DefaultEvents, rand.New(rand.NewSource(seed)), func() time.Time { return time.Now().UTC() })
}

func newSimulator(coins []Coin, events []EventKind, rng *rand.Rand, now func() time.Time) *Simulator {
	s := &Simulator{
		rng:    rng,
		now:    now,
		coins:  coins,
		events: events,
		state:  make(map[string]*coinState, len(coins)),
	}
	start := now()
	s.lastEvent = start
	s.volDay = start.Format(time.DateOnly)
	for _, c := range coins {
		s.state[c.Ticker] = &coinState{
			price:      s.startingPrice(),
			volatility: s.dailyVolatility(),
		}
	}
	return s
}

func (s *Simulator) Coins() []Coin {
	out := make([]Coin, len(s.coins))
	copy(out, s.coins)
	return out
}

// Seed restores persisted prices; unknown tickers and non-positive prices are ignored.
func (s *Simulator) Seed(prices map[string]decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ticker, p := range prices {
		if st, ok := s.state[ticker]; ok && p.IsPositive() {
			st.price = p
		}
	}
}

// Prices returns the latest snapshot.
func (s *Simulator) Prices(ctx context.Context) (trading.Quote, error) {
	if err := ctx.Err(); err != nil {
		return trading.Quote{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot()
}

// Step moves every price once and returns the new snapshot plus any event that fired.
func (s *Simulator) Step() (trading.Quote, *Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if day := now.Format(time.DateOnly); day != s.volDay {
		s.volDay = day
		for _, c := range s.coins {
			s.state[c.Ticker].volatility = s.dailyVolatility()
		}
	}

	event := s.rollEvent(now)
	impacted := make(map[string]float64)
	if event != nil {
		for _, t := range event.Affected {
			impacted[t] = event.Impact
		}
	}

	for _, c := range s.coins {
		st := s.state[c.Ticker]
		change := s.movement(st.volatility) + impacted[c.Ticker]
		next := st.price.Mul(decimal.NewFromFloat(1 + change)).Round(pricePlaces)
		if next.LessThan(minPrice) {
			next = minPrice
		}
		st.price = next
	}

	q, err := s.snapshot()
	return q, event, err
}

// TriggerEvent forces a market event by name ("random" or empty picks one).
// Single-coin events hit ticker, or a random coin when ticker is empty. The
// impact is applied at once, without the usual jitter, and restarts the
// event cooldown.
func (s *Simulator) TriggerEvent(name, ticker string) (trading.Quote, *Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.events) == 0 || len(s.coins) == 0 {
		return trading.Quote{}, nil, ErrUnknownEvent
	}

	var kind *EventKind
	name = strings.ToLower(name)
	if name == "" || name == "random" {
		kind = &s.events[s.rng.Intn(len(s.events))]
	} else {
		for i := range s.events {
			if s.events[i].Name == name {
				kind = &s.events[i]
				break
			}
		}
	}
	if kind == nil {
		return trading.Quote{}, nil, fmt.Errorf("%w %q", ErrUnknownEvent, name)
	}

	ticker = strings.ToUpper(ticker)
	if ticker == "" {
		ticker = s.coins[s.rng.Intn(len(s.coins))].Ticker
	} else if _, ok := s.state[ticker]; !ok {
		return trading.Quote{}, nil, fmt.Errorf("%w %q", ErrUnknownCoin, ticker)
	}

	now := s.now()
	s.lastEvent = now
	ev := &Event{Message: "[ADMIN] " + kind.Message, Impact: kind.Impact, At: now}
	if kind.Scope == ScopeAll {
		for _, c := range s.coins {
			ev.Affected = append(ev.Affected, c.Ticker)
		}
	} else {
		ev.Affected = []string{ticker}
	}

	factor := decimal.NewFromFloat(1 + kind.Impact)
	for _, t := range ev.Affected {
		st := s.state[t]
		next := st.price.Mul(factor).Round(pricePlaces)
		if next.LessThan(minPrice) {
			next = minPrice
		}
		st.price = next
	}

	q, err := s.snapshot()
	return q, ev, err
}

func (s *Simulator) snapshot() (trading.Quote, error) {
	prices := make(map[string]decimal.Decimal, len(s.state))
	for t, st := range s.state {
		prices[t] = st.price
	}
	return trading.NewQuote(prices)
}

func (s *Simulator) movement(volatility float64) float64 {
	direction := 1.0
	if s.rng.Float64() <= 0.5 {
		direction = -1
	}
	change := direction * s.uniform(0.10, 0.40) * (1 + volatility/10)

	if s.rng.Float64() < megaChance {
		mega := 1.0
		if s.rng.Float64() <= 0.5 {
			mega = -1
		}
		change = mega * s.uniform(0.50, 1.50)
	}
	return change
}

// rollEvent fires at most one event per cooldown window.
func (s *Simulator) rollEvent(now time.Time) *Event {
	if now.Sub(s.lastEvent) < eventCooldown || len(s.coins) == 0 {
		return nil
	}
	for _, ev := range s.events {
		if s.rng.Float64() >= ev.Probability {
			continue
		}
		s.lastEvent = now
		e := &Event{
			Message: ev.Message,
			Impact:  ev.Impact * s.uniform(0.8, 1.2),
			At:      now,
		}
		if ev.Scope == ScopeAll {
			for _, c := range s.coins {
				e.Affected = append(e.Affected, c.Ticker)
			}
		} else {
			e.Affected = []string{s.coins[s.rng.Intn(len(s.coins))].Ticker}
		}
		return e
	}
	return nil
}

func (s *Simulator) startingPrice() decimal.Decimal {
	base := s.uniform(minStartPrice, maxStartPrice)
	randomness := s.uniform(0.3, 2.5) * s.uniform(0.7, 1.4)
	p := base * randomness
	if p < minStartPrice*0.1 {
		p = minStartPrice * 0.1
	}
	if p > maxStartPrice*2 {
		p = maxStartPrice * 2
	}
	return decimal.NewFromFloat(p).Round(pricePlaces)
}

// dailyVolatility favours the extreme band three to one.
func (s *Simulator) dailyVolatility() float64 {
	if s.rng.Intn(4) == 0 {
		return s.uniform(1.3, 2.0)
	}
	return s.uniform(2.1, 3.0)
}

func (s *Simulator) uniform(lo, hi float64) float64 {
	return lo + s.rng.Float64()*(hi-lo)
}
