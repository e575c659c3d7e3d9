package trading

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestValidate_Rejections(t *testing.T) {
	p := NewPortfolio("u1", d("100"))
	p.Holdings["MEME"] = Holding{Amount: d("2"), CostBasis: d("20")}
	q := quote(t, "MEME", "10", "HODL", "40")
	v := testValidator()

	tests := []struct {
		name   string
		ticker string
		action Action
		spec   AmountSpec
		want   error
	}{
		{"unknown ticker", "NOPE", Buy, Exact(d("1")), ErrUnknownTicker},
		{"zero amount", "MEME", Buy, Exact(d("0")), ErrInvalidAmount},
		{"negative amount", "MEME", Sell, Exact(d("-1")), ErrInvalidAmount},
		{"bad action", "MEME", Action("hold"), Exact(d("1")), ErrInvalidAmount},
		{"below minimum", "MEME", Buy, Exact(d("0.0004")), ErrBelowMinimum},
		{"insufficient funds", "HODL", Buy, Exact(d("2.6")), ErrInsufficientFunds},
		{"insufficient holdings", "MEME", Sell, Exact(d("2.001")), ErrInsufficientHoldings},
		{"sell all with nothing held", "HODL", Sell, All(), ErrBelowMinimum},
		{"buy all fits cash", "HODL", Buy, All(), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Validate(p, tt.ticker, tt.action, tt.spec, q)
			if tt.want == nil {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("Validate() error = %v, want %v", err, tt.want)
			}
			var rej *Rejection
			if !errors.As(err, &rej) || rej.Msg == "" {
				t.Fatalf("Validate() error %v should be a *Rejection with a message", err)
			}
		})
	}
}

func TestValidate_BuyAllScenario(t *testing.T) {
	p := NewPortfolio("u1", d("1000"))
	got, err := testValidator().Validate(p, "X", Buy, All(), quote(t, "X", "50"))
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if !got.Amount.Equal(d("20")) || !got.Price.Equal(d("50")) {
		t.Fatalf("Validate() = %+v, want 20 @ 50", got)
	}
}

func TestValidate_BuyAllNeverExceedsCash(t *testing.T) {
	cases := []struct{ cash, price, fee string }{
		{"1000", "50", "0"},
		{"100", "3", "0"},
		{"100", "0.0007", "0"},
		{"99.99", "33.333333", "0"},
		{"1", "0.333333", "0.001"},
		{"12345.678", "7.654321", "0.001"},
		{"0.5", "1", "0"},
	}
	for _, c := range cases {
		v := NewValidator(DefaultMinAmount, DefaultAmountPlaces, d(c.fee))
		p := NewPortfolio("u1", d(c.cash))
		got, err := v.Validate(p, "X", Buy, All(), quote(t, "X", c.price))
		if err != nil {
			t.Fatalf("cash %s price %s: Validate() error = %v", c.cash, c.price, err)
		}
		if cost := v.Cost(got.Amount, got.Price); cost.GreaterThan(p.Cash) {
			t.Errorf("cash %s price %s: cost %s exceeds cash", c.cash, c.price, cost)
		}
		// one more unit must not fit, otherwise "all" left money on the table
		if more := got.Amount.Add(v.Unit()); v.Cost(more, got.Price).LessThanOrEqual(p.Cash) {
			t.Errorf("cash %s price %s: resolved %s but %s also fits", c.cash, c.price, got.Amount, more)
		}
	}
}

func TestValidate_SellAllResolvesHolding(t *testing.T) {
	p := NewPortfolio("u1", decimal.Zero)
	p.Holdings["X"] = Holding{Amount: d("12.345"), CostBasis: d("100")}
	got, err := testValidator().Validate(p, "X", Sell, All(), quote(t, "X", "1"))
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if !got.Amount.Equal(d("12.345")) {
		t.Fatalf("resolved amount = %s, want 12.345", got.Amount)
	}
}

func TestValidate_ExactAmountFlooredToUnit(t *testing.T) {
	p := NewPortfolio("u1", d("100"))
	got, err := testValidator().Validate(p, "X", Buy, Exact(d("1.23456")), quote(t, "X", "1"))
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if !got.Amount.Equal(d("1.234")) {
		t.Fatalf("resolved amount = %s, want 1.234", got.Amount)
	}
}

func TestValidate_DoesNotMutate(t *testing.T) {
	p := NewPortfolio("u1", d("100"))
	p.Holdings["X"] = Holding{Amount: d("1"), CostBasis: d("5")}
	if _, err := testValidator().Validate(p, "X", Sell, All(), quote(t, "X", "5")); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if !p.Cash.Equal(d("100")) || !p.Holdings["X"].Amount.Equal(d("1")) {
		t.Fatalf("portfolio changed: %+v", p)
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    AmountSpec
		wantErr error
	}{
		{"all", All(), nil},
		{" ALL ", All(), nil},
		{"1.5", Exact(d("1.5")), nil},
		{"0", AmountSpec{}, ErrInvalidAmount},
		{"-3", AmountSpec{}, ErrInvalidAmount},
		{"lots", AmountSpec{}, ErrInvalidAmount},
	}
	for _, tt := range tests {
		got, err := ParseAmount(tt.in)
		if tt.wantErr != nil {
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ParseAmount(%q) error = %v, want %v", tt.in, err, tt.wantErr)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseAmount(%q) error = %v", tt.in, err)
			continue
		}
		if got.Kind != tt.want.Kind || !got.Value.Equal(tt.want.Value) {
			t.Errorf("ParseAmount(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewQuote_RejectsNonPositive(t *testing.T) {
	if _, err := NewQuote(map[string]decimal.Decimal{"X": decimal.Zero}); err == nil {
		t.Fatal("NewQuote() accepted a zero price")
	}
}
