package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Decisions     *prometheus.CounterVec
	StoreErrors   prometheus.Counter
	FallbackState prometheus.Gauge
}

func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tiptap_ratelimit_decisions_total",
			Help: "Rate limit decisions by endpoint class and outcome",
		}, []string{"class", "outcome"}),
		StoreErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "tiptap_ratelimit_store_errors_total",
			Help: "Failures of the shared rate limit store",
		}),
		FallbackState: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tiptap_ratelimit_fallback_active",
			Help: "1 while checks are served by the in-process fallback store",
		}),
	}
}

func (m *Metrics) IncDecision(class string, allowed bool) {
	if m == nil {
		return
	}
	outcome := "allowed"
	if !allowed {
		outcome = "limited"
	}
	m.Decisions.WithLabelValues(class, outcome).Inc()
}

func (m *Metrics) IncStoreError() {
	if m == nil {
		return
	}
	m.StoreErrors.Inc()
}

func (m *Metrics) SetFallbackActive(active bool) {
	if m == nil {
		return
	}
	v := 0.0
	if active {
		v = 1
	}
	m.FallbackState.Set(v)
}
