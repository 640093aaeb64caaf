package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the order module.
type Metrics struct {
	OrdersCreated     *prometheus.CounterVec
	StatusTransitions *prometheus.CounterVec
	EventsPublished   *prometheus.CounterVec
	CreateDuration    prometheus.Histogram
}

// New creates order metrics registered on the default registerer.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates order metrics registered on reg.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		OrdersCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tiptap_orders_created_total",
			Help: "Total number of orders recorded, by payment method",
		}, []string{"payment_method"}),
		StatusTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tiptap_order_status_transitions_total",
			Help: "Order status changes by target status",
		}, []string{"status"}),
		EventsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tiptap_order_events_published_total",
			Help: "Order events handed to the broker, by result",
		}, []string{"result"}),
		CreateDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "tiptap_order_create_duration_seconds",
			Help:    "Duration of order creation including persistence",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

func (m *Metrics) IncOrderCreated(paymentMethod string) {
	if m == nil {
		return
	}
	m.OrdersCreated.WithLabelValues(paymentMethod).Inc()
}

func (m *Metrics) IncStatusTransition(status string) {
	if m == nil {
		return
	}
	m.StatusTransitions.WithLabelValues(status).Inc()
}

// IncEventPublished records a publish attempt; ok is false on broker failure.
func (m *Metrics) IncEventPublished(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.EventsPublished.WithLabelValues(result).Inc()
}

// ObserveCreate records order creation duration.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveCreate(start time.Time) {
	if m == nil {
		return
	}
	m.CreateDuration.Observe(time.Since(start).Seconds())
}
