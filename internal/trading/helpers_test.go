package trading

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func quote(t *testing.T, kv ...string) Quote {
	t.Helper()
	m := make(map[string]decimal.Decimal)
	for i := 0; i+1 < len(kv); i += 2 {
		m[kv[i]] = d(kv[i+1])
	}
	q, err := NewQuote(m)
	if err != nil {
		t.Fatalf("NewQuote() error = %v", err)
	}
	return q
}

func testLedger() Ledger {
	n := 0
	return Ledger{
		Now: func() time.Time { return time.Unix(1700000000, 0).UTC() },
		NewID: func() string {
			n++
			return "tx-" + decimal.NewFromInt(int64(n)).String()
		},
	}
}

func testValidator() Validator {
	return NewValidator(DefaultMinAmount, DefaultAmountPlaces, decimal.Zero)
}
