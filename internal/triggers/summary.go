package triggers

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/camuig/coin-sim/internal/trading"
)

// Summary aggregates pending orders for one ticker. TotalAmount only sums
// exact amounts; "all" orders are counted in AllCount instead.
type Summary struct {
	Ticker          string          `json:"ticker"`
	Count           int             `json:"count"`
	Buys            int             `json:"buys"`
	Sells           int             `json:"sells"`
	AllCount        int             `json:"all_count"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	AvgTriggerPrice decimal.Decimal `json:"avg_trigger_price"`
}

// Summarize groups pending orders by ticker, in lexical ticker order.
// Orders in any other status are ignored.
func Summarize(orders []Order) []Summary {
	byTicker := make(map[string]*Summary)
	priceSum := make(map[string]decimal.Decimal)
	for _, o := range orders {
		if !o.Pending() {
			continue
		}
		s, ok := byTicker[o.Ticker]
		if !ok {
			s = &Summary{Ticker: o.Ticker}
			byTicker[o.Ticker] = s
		}
		s.Count++
		if o.Direction == trading.Buy {
			s.Buys++
		} else {
			s.Sells++
		}
		if o.Amount.IsAll() {
			s.AllCount++
		} else {
			s.TotalAmount = s.TotalAmount.Add(o.Amount.Value)
		}
		priceSum[o.Ticker] = priceSum[o.Ticker].Add(o.TriggerPrice)
	}

	out := make([]Summary, 0, len(byTicker))
	for t, s := range byTicker {
		s.AvgTriggerPrice = priceSum[t].Div(decimal.NewFromInt(int64(s.Count)))
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out
}
