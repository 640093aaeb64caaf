package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks scan outcomes and lookup latency on the terminal.
type Metrics struct {
	Outcomes       *prometheus.CounterVec
	Suppressed     prometheus.Counter
	LookupDuration prometheus.Histogram
}

// New registers scan metrics on the default registerer.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers scan metrics on reg.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Outcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tiptap_scan_outcomes_total",
			Help: "Scan resolutions by outcome state",
		}, []string{"outcome"}),
		Suppressed: factory.NewCounter(prometheus.CounterOpts{
			Name: "tiptap_scan_suppressed_total",
			Help: "Reads dropped by the duplicate-scan window",
		}),
		LookupDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "tiptap_scan_lookup_duration_seconds",
			Help:    "Catalog lookup latency as seen by the scan session",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
	}
}

// IncOutcome counts one resolution outcome. Safe on a nil receiver.
func (m *Metrics) IncOutcome(outcome string) {
	if m == nil {
		return
	}
	m.Outcomes.WithLabelValues(outcome).Inc()
}

// IncSuppressed counts a read dropped by dedup. Safe on a nil receiver.
func (m *Metrics) IncSuppressed() {
	if m == nil {
		return
	}
	m.Suppressed.Inc()
}

// ObserveLookup records lookup latency. Safe on a nil receiver.
func (m *Metrics) ObserveLookup(start time.Time) {
	if m == nil {
		return
	}
	m.LookupDuration.Observe(time.Since(start).Seconds())
}
