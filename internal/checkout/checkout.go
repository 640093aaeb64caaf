package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"tiptap/internal/cart"
	"tiptap/internal/order/models"
)

var (
	// ErrPersistPending is returned by Checkout while a paid order still
	// awaits RetryPersist.
	ErrPersistPending = errors.New("a paid order has not been recorded yet")
	// ErrNothingToRetry is returned by RetryPersist when no order is pending.
	ErrNothingToRetry = errors.New("no order awaiting persistence")
)

// OrderStore records completed orders.
type OrderStore interface {
	Create(ctx context.Context, o *models.Order) error
}

// OrderLookup reads back a recorded order. When the OrderStore also
// implements it, a conflict on retry is only accepted if the stored order
// matches the one that was paid for.
type OrderLookup interface {
	Get(ctx context.Context, id string) (*models.Order, error)
}

// PersistError reports that payment succeeded but the order could not be
// recorded. The cart is untouched and RetryPersist can be called.
type PersistError struct {
	OrderID string
	Err     error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("record order %s: %v", e.OrderID, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}

// Pipeline runs checkout: price, pay, record, remember, clear.
type Pipeline struct {
	orders   OrderStore
	slot     LastOrderSlot
	taxRate  decimal.Decimal
	currency string
	logger   *slog.Logger
	tracer   trace.Tracer
	now      func() time.Time
	newID    func() string

	mu      sync.Mutex
	pending *models.Order
	// sent is set once Create has been attempted with the pending order's ID.
	sent bool
}

type Option func(*Pipeline)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(p *Pipeline) {
		p.tracer = t
	}
}

func WithNow(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

// WithIDGenerator replaces models.NewID as the source of order IDs.
func WithIDGenerator(gen func() string) Option {
	return func(p *Pipeline) {
		p.newID = gen
	}
}

func WithCurrency(currency string) Option {
	return func(p *Pipeline) {
		p.currency = currency
	}
}

// New constructs a Pipeline.
func New(orders OrderStore, slot LastOrderSlot, taxRate decimal.Decimal, opts ...Option) *Pipeline {
	p := &Pipeline{
		orders:   orders,
		slot:     slot,
		taxRate:  taxRate,
		currency: "INR",
		logger:   slog.Default(),
		tracer:   otel.Tracer("tiptap/internal/checkout"),
		now:      time.Now,
		newID:    models.NewID,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Quote prices the cart without paying.
func (p *Pipeline) Quote(c *cart.Cart) (Totals, error) {
	return ComputeTotals(c, p.taxRate)
}

// Checkout charges the cart through method and records the order.
//
// An empty cart fails with ErrEmptyCart before method is called. A declined
// payment leaves the cart as it was. If recording fails after a successful
// payment the error is a *PersistError, the cart is kept and RetryPersist
// finishes the job without charging again.
func (p *Pipeline) Checkout(ctx context.Context, c *cart.Cart, method PaymentMethod) (*models.Order, error) {
	ctx, span := p.tracer.Start(ctx, "checkout", trace.WithAttributes(attribute.String("payment.method", method.Name())))
	defer span.End()

	p.mu.Lock()
	pending := p.pending != nil
	p.mu.Unlock()
	if pending {
		return nil, fail(span, ErrPersistPending)
	}

	totals, err := ComputeTotals(c, p.taxRate)
	if err != nil {
		return nil, fail(span, err)
	}

	now := p.now()
	o := &models.Order{
		ID:            p.newID(),
		Lines:         totals.Lines,
		Subtotal:      totals.Subtotal,
		Tax:           totals.Tax,
		Total:         totals.Total,
		PaymentMethod: method.Name(),
		Status:        models.StatusCompleted,
		CreatedAt:     now.UTC(),
	}
	span.SetAttributes(
		attribute.String("order.id", o.ID),
		attribute.String("order.total", o.Total.String()),
		attribute.Int("order.items", totals.ItemCount),
	)

	req := PaymentRequest{
		OrderID:  o.ID,
		Amount:   o.Total,
		Currency: p.currency,
		Note:     "TipTap Purchase - Order " + o.ID,
	}
	if err := method.Pay(ctx, req); err != nil {
		p.logger.InfoContext(ctx, "payment not completed",
			"order_id", o.ID,
			"payment_method", method.Name(),
			"error", err,
		)
		if !errors.Is(err, ErrPaymentDeclined) {
			err = fmt.Errorf("%w: %w", ErrPaymentDeclined, err)
		}
		return nil, fail(span, err)
	}
	span.AddEvent("payment.completed")

	p.mu.Lock()
	p.pending = o
	p.sent = false
	p.mu.Unlock()
	return p.persist(ctx, span, c, o)
}

// RetryPersist records the order left behind by a failed Checkout. Only the
// lines of that order are taken out of c; anything scanned since stays.
func (p *Pipeline) RetryPersist(ctx context.Context, c *cart.Cart) (*models.Order, error) {
	ctx, span := p.tracer.Start(ctx, "checkout.retry_persist")
	defer span.End()

	p.mu.Lock()
	o := p.pending
	p.mu.Unlock()
	if o == nil {
		return nil, fail(span, ErrNothingToRetry)
	}
	span.SetAttributes(attribute.String("order.id", o.ID))
	return p.persist(ctx, span, c, o)
}

// Pending returns the paid order awaiting persistence, if any.
func (p *Pipeline) Pending() *models.Order {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending.Clone()
}

func (p *Pipeline) persist(ctx context.Context, span trace.Span, c *cart.Cart, o *models.Order) (*models.Order, error) {
	p.mu.Lock()
	resent := p.sent
	p.sent = true
	p.mu.Unlock()

	err := p.orders.Create(ctx, o)
	if errors.Is(err, ErrOrderExists) && resent {
		// An earlier attempt with this ID may have landed before failing.
		err = p.confirmRecorded(ctx, o)
	}
	if err != nil {
		id := o.ID
		if errors.Is(err, ErrOrderExists) {
			id = p.rekey(o)
		}
		p.logger.ErrorContext(ctx, "failed to record order",
			"order_id", o.ID,
			"pending_order_id", id,
			"error", err,
		)
		return nil, fail(span, &PersistError{OrderID: id, Err: err})
	}

	p.mu.Lock()
	p.pending = nil
	p.sent = false
	p.mu.Unlock()

	if err := p.slot.Save(ctx, o); err != nil {
		p.logger.WarnContext(ctx, "failed to remember last order",
			"order_id", o.ID,
			"error", err,
		)
	}
	settle(c, o)
	p.logger.InfoContext(ctx, "checkout completed",
		"order_id", o.ID,
		"total", o.Total.String(),
		"payment_method", o.PaymentMethod,
	)
	return o.Clone(), nil
}

// confirmRecorded checks that the order stored under o.ID is o. Without an
// OrderLookup the conflict is taken as our own earlier write.
func (p *Pipeline) confirmRecorded(ctx context.Context, o *models.Order) error {
	lookup, ok := p.orders.(OrderLookup)
	if !ok {
		return nil
	}
	stored, err := lookup.Get(ctx, o.ID)
	if err != nil {
		return fmt.Errorf("confirm order %s: %w", o.ID, err)
	}
	if !sameOrder(stored, o) {
		return fmt.Errorf("%w: stored order %s differs from the paid order", ErrOrderExists, o.ID)
	}
	return nil
}

// rekey gives the pending order a fresh ID after its ID turned out to
// belong to another order, so RetryPersist records it under the new one.
func (p *Pipeline) rekey(o *models.Order) string {
	next := o.Clone()
	next.ID = p.newID()
	p.mu.Lock()
	p.pending = next
	p.sent = false
	p.mu.Unlock()
	return next.ID
}

func sameOrder(a, b *models.Order) bool {
	if !a.Total.Equal(b.Total) || len(a.Lines) != len(b.Lines) {
		return false
	}
	for i := range a.Lines {
		x, y := a.Lines[i], b.Lines[i]
		if !strings.EqualFold(x.ProductID, y.ProductID) || x.Quantity != y.Quantity || !x.Price.Equal(y.Price) {
			return false
		}
	}
	return true
}

// settle takes the order's lines out of the cart, leaving anything added
// after payment.
func settle(c *cart.Cart, o *models.Order) {
	for _, l := range o.Lines {
		c.Subtract(l.ProductID, l.Quantity)
	}
}

// LastOrder returns the most recent completed order.
func (p *Pipeline) LastOrder(ctx context.Context) (*models.Order, error) {
	return p.slot.Load(ctx)
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
