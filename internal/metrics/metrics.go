package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the counters the executor and scheduler update.
type Metrics struct {
	Trades      *prometheus.CounterVec
	Rejections  *prometheus.CounterVec
	TriggerFill prometheus.Counter
	PriceSteps  prometheus.Counter

	gatherer prometheus.Gatherer
}

// New registers the counters on reg. Pass prometheus.NewRegistry() in tests.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		Trades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coinsim", Name: "trades_total", Help: "executed trades",
		}, []string{"action", "source"}),
		Rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coinsim", Name: "rejections_total", Help: "trades refused by the validator",
		}, []string{"reason"}),
		TriggerFill: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "coinsim", Name: "trigger_fills_total", Help: "trigger orders executed",
		}),
		PriceSteps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "coinsim", Name: "price_steps_total", Help: "market simulator updates",
		}),
		gatherer: reg,
	}
	reg.MustRegister(m.Trades, m.Rejections, m.TriggerFill, m.PriceSteps)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
