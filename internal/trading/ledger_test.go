package trading

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestLedger_BuyAddsExactly(t *testing.T) {
	l := testLedger()
	p := NewPortfolio("u1", d("500"))
	p.Holdings["X"] = Holding{Amount: d("1.5"), CostBasis: d("7.25")}

	got, tx := l.Apply(p, ValidatedTrade{Ticker: "X", Action: Buy, Amount: d("3.333"), Price: d("12.5")})

	h := got.Holdings["X"]
	if !h.Amount.Equal(d("4.833")) {
		t.Errorf("amount = %s, want 4.833", h.Amount)
	}
	if !h.CostBasis.Equal(d("7.25").Add(d("3.333").Mul(d("12.5")))) {
		t.Errorf("cost basis = %s, want %s", h.CostBasis, d("7.25").Add(d("41.6625")))
	}
	if !got.Cash.Equal(d("458.3375")) {
		t.Errorf("cash = %s, want 458.3375", got.Cash)
	}
	if tx.Action != Buy || tx.Ticker != "X" || !tx.Total.Equal(d("41.6625")) || tx.ID != "tx-1" {
		t.Errorf("transaction = %+v", tx)
	}
	if !p.Holdings["X"].Amount.Equal(d("1.5")) || !p.Cash.Equal(d("500")) {
		t.Errorf("input portfolio mutated: %+v", p)
	}
}

func TestLedger_Scenario(t *testing.T) {
	l := testLedger()
	v := testValidator()
	p := NewPortfolio("u1", d("1000"))

	buy, err := v.Validate(p, "X", Buy, All(), quote(t, "X", "50"))
	if err != nil {
		t.Fatalf("Validate(buy) error = %v", err)
	}
	p, _ = l.Apply(p, buy)
	if h := p.Holdings["X"]; !h.Amount.Equal(d("20")) || !h.CostBasis.Equal(d("1000")) {
		t.Fatalf("after buy holding = %+v, want {20 1000}", h)
	}
	if !p.Cash.IsZero() {
		t.Fatalf("after buy cash = %s, want 0", p.Cash)
	}

	sell, err := v.Validate(p, "X", Sell, Exact(d("10")), quote(t, "X", "60"))
	if err != nil {
		t.Fatalf("Validate(sell) error = %v", err)
	}
	p, tx := l.Apply(p, sell)
	if h := p.Holdings["X"]; !h.Amount.Equal(d("10")) || !h.CostBasis.Equal(d("500")) {
		t.Fatalf("after sell holding = %+v, want {10 500}", h)
	}
	if tx.Ticker != "X" || tx.Action != Sell || !tx.Amount.Equal(d("10")) || !tx.Price.Equal(d("60")) {
		t.Fatalf("sell transaction = %+v, want {X sell 10 60}", tx)
	}
	if !p.Cash.Equal(d("600")) || !p.Returned.Equal(d("600")) || !p.Invested.Equal(d("1000")) {
		t.Fatalf("cash/returned/invested = %s/%s/%s", p.Cash, p.Returned, p.Invested)
	}
}

func TestLedger_FullSellLeavesNoResidue(t *testing.T) {
	l := testLedger()
	p := NewPortfolio("u1", d("100"))
	for _, price := range []string{"3", "7", "0.333333"} {
		next, _ := l.Apply(p, ValidatedTrade{Ticker: "X", Action: Buy, Amount: d("1.111"), Price: d(price)})
		p = next
	}
	// a partial sell introduces rounding in the remaining basis
	p, _ = l.Apply(p, ValidatedTrade{Ticker: "X", Action: Sell, Amount: d("1"), Price: d("2")})

	held := p.Holdings["X"].Amount
	p, _ = l.Apply(p, ValidatedTrade{Ticker: "X", Action: Sell, Amount: held, Price: d("2")})
	h := p.Holdings["X"]
	if !h.Amount.IsZero() || !h.CostBasis.IsZero() {
		t.Fatalf("after full sell holding = %+v, want zero", h)
	}
}

func TestLedger_Fees(t *testing.T) {
	l := testLedger()
	l.FeeRate = d("0.001")
	p := NewPortfolio("u1", d("1000"))

	p, buy := l.Apply(p, ValidatedTrade{Ticker: "X", Action: Buy, Amount: d("10"), Price: d("50")})
	if !buy.Fee.Equal(d("0.5")) || !buy.Total.Equal(d("500.5")) || !p.Cash.Equal(d("499.5")) {
		t.Fatalf("buy fee/total/cash = %s/%s/%s", buy.Fee, buy.Total, p.Cash)
	}
	if !p.Holdings["X"].CostBasis.Equal(d("500")) {
		t.Fatalf("cost basis = %s, want 500", p.Holdings["X"].CostBasis)
	}

	p, sell := l.Apply(p, ValidatedTrade{Ticker: "X", Action: Sell, Amount: d("10"), Price: d("60")})
	if !sell.Total.Equal(d("599.4")) || !p.Cash.Equal(d("1098.9")) {
		t.Fatalf("sell total/cash = %s/%s", sell.Total, p.Cash)
	}
}

func TestValue(t *testing.T) {
	p := NewPortfolio("u1", d("5"))
	if v := Value(p, quote(t, "X", "1")); !v.Total.IsZero() || v.Partial() {
		t.Fatalf("empty portfolio value = %+v, want 0", v)
	}

	p.Holdings["X"] = Holding{Amount: d("2"), CostBasis: d("10")}
	p.Holdings["Y"] = Holding{Amount: d("1"), CostBasis: d("4")}
	p.Holdings["Z"] = Holding{Amount: decimal.Zero, CostBasis: decimal.Zero}

	v := Value(p, quote(t, "X", "6"))
	if !v.Total.Equal(d("12")) {
		t.Errorf("total = %s, want 12", v.Total)
	}
	if !v.Partial() || len(v.Missing) != 1 || v.Missing[0] != "Y" {
		t.Errorf("missing = %v, want [Y]", v.Missing)
	}
	if v.Total.IsNegative() {
		t.Errorf("negative valuation %s", v.Total)
	}
}

func TestProfitLoss(t *testing.T) {
	p := NewPortfolio("u1", d("0"))
	pl := ProfitLoss(p, quote(t, "X", "1"))
	if !pl.Percent.IsZero() || !pl.Unrealized.IsZero() {
		t.Fatalf("zero basis P/L = %+v, want zeros", pl)
	}

	p.Holdings["X"] = Holding{Amount: d("10"), CostBasis: d("500")}
	pl = ProfitLoss(p, quote(t, "X", "60"))
	if !pl.Unrealized.Equal(d("100")) || !pl.Percent.Equal(d("20")) {
		t.Fatalf("P/L = %s (%s%%), want 100 (20%%)", pl.Unrealized, pl.Percent)
	}
}

func TestAllTimeProfitLoss(t *testing.T) {
	p := NewPortfolio("u1", d("600"))
	p.Invested = d("1000")
	p.Returned = d("600")
	p.Holdings["X"] = Holding{Amount: d("10"), CostBasis: d("500")}

	pl := AllTimeProfitLoss(p, quote(t, "X", "30"))
	if !pl.Unrealized.Equal(d("-100")) || !pl.Percent.Equal(d("-10")) {
		t.Fatalf("all-time P/L = %s (%s%%), want -100 (-10%%)", pl.Unrealized, pl.Percent)
	}
}
