// Package service records checkout orders and manages their status.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"tiptap/internal/order/events"
	"tiptap/internal/order/metrics"
	"tiptap/internal/order/models"
	dErrors "tiptap/pkg/domain-errors"
	"tiptap/pkg/platform/sentinel"
	"tiptap/pkg/requestcontext"
)

type OrderStore interface {
	Create(ctx context.Context, o *models.Order) error
	FindByID(ctx context.Context, id string) (*models.Order, error)
	List(ctx context.Context, limit int) ([]*models.Order, error)
	UpdateStatus(ctx context.Context, id string, next models.Status) (*models.Order, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, e events.Event) error
}

// Service orchestrates order creation and status changes.
type Service struct {
	orders    OrderStore
	taxRate   decimal.Decimal
	publisher EventPublisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithEventPublisher enables order events. Publishing is best effort: a
// broker failure is logged and counted but never fails the request.
func WithEventPublisher(p EventPublisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

// New constructs a Service that prices orders at taxRate.
func New(orders OrderStore, taxRate decimal.Decimal, opts ...Option) *Service {
	s := &Service{
		orders:  orders,
		taxRate: taxRate,
		logger:  slog.Default(),
		tracer:  otel.Tracer("tiptap/internal/order/service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create records an order. Totals are recomputed from the lines; totals sent
// by the client must match.
func (s *Service) Create(ctx context.Context, req *models.CreateOrderRequest) (*models.Order, error) {
	start := time.Now()
	defer s.metrics.ObserveCreate(start)

	ctx, span := s.tracer.Start(ctx, "order.create")
	defer span.End()

	status, err := models.ParseStatus(req.Status)
	if err != nil {
		return nil, s.fail(span, err)
	}
	lines := req.Lines()
	subtotal := models.SumLines(lines)
	tax := models.ComputeTax(subtotal, s.taxRate)
	total := subtotal.Add(tax)
	if mismatch(req.Subtotal, subtotal) || mismatch(req.Tax, tax) || mismatch(req.Total, total) {
		return nil, s.fail(span, dErrors.New(dErrors.CodeValidation, "order totals do not match items"))
	}

	id := req.ID
	if id == "" {
		id = models.NewID()
	}
	o := &models.Order{
		ID:            id,
		Lines:         lines,
		Subtotal:      subtotal,
		Tax:           tax,
		Total:         total,
		PaymentMethod: req.PaymentMethod,
		Status:        status,
		CreatedAt:     requestcontext.Now(ctx).UTC(),
	}
	span.SetAttributes(
		attribute.String("order.id", o.ID),
		attribute.Int("order.lines", len(o.Lines)),
		attribute.String("order.total", o.Total.String()),
	)

	if err := s.orders.Create(ctx, o); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, s.fail(span, dErrors.New(dErrors.CodeConflict, "Order with this ID already exists"))
		}
		return nil, s.fail(span, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create order"))
	}

	s.logger.InfoContext(ctx, "order created",
		"request_id", requestcontext.RequestID(ctx),
		"order_id", o.ID,
		"total", o.Total.String(),
		"payment_method", o.PaymentMethod,
	)
	s.metrics.IncOrderCreated(o.PaymentMethod)
	s.publish(ctx, events.TypeOrderCreated, o)
	return o, nil
}

// Get fetches one order by ID.
func (s *Service) Get(ctx context.Context, id string) (*models.Order, error) {
	o, err := s.orders.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "Order not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to fetch order")
	}
	return o, nil
}

// List returns orders newest first. limit <= 0 returns every order.
func (s *Service) List(ctx context.Context, limit int) ([]*models.Order, error) {
	orders, err := s.orders.List(ctx, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to fetch orders")
	}
	return orders, nil
}

// UpdateStatus settles a pending order. Completed and failed orders are final.
func (s *Service) UpdateStatus(ctx context.Context, id string, status string) (*models.Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.update_status", trace.WithAttributes(attribute.String("order.id", id)))
	defer span.End()

	next, err := models.ParseStatus(status)
	if err != nil {
		return nil, s.fail(span, err)
	}
	o, err := s.orders.UpdateStatus(ctx, id, next)
	if err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, s.fail(span, dErrors.New(dErrors.CodeNotFound, "Order not found"))
		case errors.Is(err, sentinel.ErrInvalidState):
			return nil, s.fail(span, dErrors.New(dErrors.CodeConflict, "order status is final"))
		}
		return nil, s.fail(span, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update order status"))
	}
	s.metrics.IncStatusTransition(string(next))
	s.publish(ctx, events.TypeOrderStatusChanged, o)
	return o, nil
}

func (s *Service) publish(ctx context.Context, eventType string, o *models.Order) {
	if s.publisher == nil {
		return
	}
	e := events.NewEvent(eventType, o, requestcontext.RequestID(ctx), requestcontext.Now(ctx))
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.logger.WarnContext(ctx, "failed to publish order event",
			"request_id", requestcontext.RequestID(ctx),
			"order_id", o.ID,
			"event_type", eventType,
			"error", err,
		)
		s.metrics.IncEventPublished(false)
		return
	}
	s.metrics.IncEventPublished(true)
}

func (s *Service) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
	return err
}

func mismatch(claimed *decimal.Decimal, actual decimal.Decimal) bool {
	return claimed != nil && !claimed.Equal(actual)
}
