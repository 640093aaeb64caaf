package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Lookup results recorded by the remote catalog client.
const (
	LookupHit      = "hit"
	LookupNotFound = "not_found"
	LookupError    = "error"
	LookupFallback = "fallback"
)

// Metrics provides observability for the catalog module.
// Server side tracks catalog mutations; client side tracks remote lookups
// and the fallback breaker.
type Metrics struct {
	ProductsCreated prometheus.Counter
	ProductsDeleted prometheus.Counter
	StockUpdates    prometheus.Counter
	CatalogSeeded   prometheus.Counter
	Lookups         *prometheus.CounterVec
	LookupDuration  prometheus.Histogram
	BreakerOpen     prometheus.Gauge
}

// New creates catalog metrics registered on the default registerer.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates catalog metrics registered on reg.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ProductsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "tiptap_products_created_total",
			Help: "Total number of products added to the catalog",
		}),
		ProductsDeleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "tiptap_products_deleted_total",
			Help: "Total number of products removed from the catalog",
		}),
		StockUpdates: factory.NewCounter(prometheus.CounterOpts{
			Name: "tiptap_product_stock_updates_total",
			Help: "Total number of stock level updates",
		}),
		CatalogSeeded: factory.NewCounter(prometheus.CounterOpts{
			Name: "tiptap_catalog_seeded_total",
			Help: "Total number of times the sample catalog was loaded",
		}),
		Lookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tiptap_catalog_lookups_total",
			Help: "Remote catalog lookups by result",
		}, []string{"result"}),
		LookupDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "tiptap_catalog_lookup_duration_seconds",
			Help:    "Duration of remote catalog lookups",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		BreakerOpen: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tiptap_catalog_fallback_active",
			Help: "1 while the remote catalog breaker is open and the local table serves lookups",
		}),
	}
}

func (m *Metrics) IncProductsCreated() {
	if m == nil {
		return
	}
	m.ProductsCreated.Inc()
}

func (m *Metrics) IncProductsDeleted() {
	if m == nil {
		return
	}
	m.ProductsDeleted.Inc()
}

func (m *Metrics) IncStockUpdates() {
	if m == nil {
		return
	}
	m.StockUpdates.Inc()
}

func (m *Metrics) IncSeeded() {
	if m == nil {
		return
	}
	m.CatalogSeeded.Inc()
}

// ObserveLookup records a remote lookup result and its duration.
// Call with time.Now() at the start of the lookup.
func (m *Metrics) ObserveLookup(result string, start time.Time) {
	if m == nil {
		return
	}
	m.Lookups.WithLabelValues(result).Inc()
	m.LookupDuration.Observe(time.Since(start).Seconds())
}

// SetFallbackActive records the breaker position.
func (m *Metrics) SetFallbackActive(active bool) {
	if m == nil {
		return
	}
	if active {
		m.BreakerOpen.Set(1)
		return
	}
	m.BreakerOpen.Set(0)
}
