package checkout

//go:generate mockgen -source=checkout.go -destination=mocks/mocks.go -package=mocks OrderStore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/mock/gomock"

	"tiptap/internal/cart"
	"tiptap/internal/checkout/mocks"
	"tiptap/internal/order/models"
)

type fakePayment struct {
	name  string
	err   error
	calls []PaymentRequest
}

func (f *fakePayment) Name() string { return f.name }

func (f *fakePayment) Pay(_ context.Context, req PaymentRequest) error {
	f.calls = append(f.calls, req)
	return f.err
}

type failingSlot struct{}

func (failingSlot) Save(context.Context, *models.Order) error {
	return errors.New("redis down")
}

func (failingSlot) Load(context.Context) (*models.Order, error) {
	return nil, ErrNoLastOrder
}

// orderBook is an OrderStore with OrderLookup that rejects duplicate IDs
// like the API does.
type orderBook struct {
	mu     sync.Mutex
	orders map[string]*models.Order
	// lostReply stores the next order but reports a timeout.
	lostReply bool
	failNext  error
}

func newOrderBook() *orderBook {
	return &orderBook{orders: make(map[string]*models.Order)}
}

func (b *orderBook) Create(_ context.Context, o *models.Order) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.failNext; err != nil {
		b.failNext = nil
		return err
	}
	if _, ok := b.orders[o.ID]; ok {
		return ErrOrderExists
	}
	b.orders[o.ID] = o.Clone()
	if b.lostReply {
		b.lostReply = false
		return context.DeadlineExceeded
	}
	return nil
}

func (b *orderBook) Get(_ context.Context, id string) (*models.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return o.Clone(), nil
}

func sequentialIDs() func() string {
	var n int
	return func() string {
		n++
		return fmt.Sprintf("ORD-%012d", n)
	}
}

type PipelineSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	orders   *mocks.MockOrderStore
	slot     *MemorySlot
	payment  *fakePayment
	pipeline *Pipeline
	cart     *cart.Cart
	now      time.Time
}

func TestPipelineSuite(t *testing.T) {
	suite.Run(t, new(PipelineSuite))
}

func (s *PipelineSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.orders = mocks.NewMockOrderStore(s.ctrl)
	s.slot = NewMemorySlot()
	s.payment = &fakePayment{name: "Demo Payment"}
	s.now = time.UnixMilli(1740000000000)
	s.pipeline = New(s.orders, s.slot, taxRate,
		WithTracer(noop.NewTracerProvider().Tracer("test")),
		WithNow(func() time.Time { return s.now }),
		WithIDGenerator(sequentialIDs()),
	)
	s.cart = fullCart(s.T())
}

func (s *PipelineSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *PipelineSuite) TestEmptyCartNeverCharges() {
	_, err := s.pipeline.Checkout(context.Background(), cart.New(), s.payment)
	s.ErrorIs(err, ErrEmptyCart)
	s.Empty(s.payment.calls)
}

func (s *PipelineSuite) TestSuccess() {
	var recorded *models.Order
	s.orders.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, o *models.Order) error {
			recorded = o
			return nil
		})

	o, err := s.pipeline.Checkout(context.Background(), s.cart, s.payment)
	s.Require().NoError(err)

	s.Equal("ORD-000000000001", o.ID)
	s.True(decimal.NewFromInt(136).Equal(o.Total))
	s.Equal("Demo Payment", o.PaymentMethod)
	s.Equal(models.StatusCompleted, o.Status)
	s.Equal(o.ID, recorded.ID)

	s.Require().Len(s.payment.calls, 1)
	req := s.payment.calls[0]
	s.True(decimal.NewFromInt(136).Equal(req.Amount))
	s.Equal("INR", req.Currency)
	s.Equal("TipTap Purchase - Order ORD-000000000001", req.Note)

	s.Zero(s.cart.Len())
	last, err := s.pipeline.LastOrder(context.Background())
	s.Require().NoError(err)
	s.Equal(o.ID, last.ID)
	s.Nil(s.pipeline.Pending())
}

func (s *PipelineSuite) TestDeclineLeavesCart() {
	s.payment.err = errors.New("card rejected")

	_, err := s.pipeline.Checkout(context.Background(), s.cart, s.payment)
	s.ErrorIs(err, ErrPaymentDeclined)
	s.Equal(2, s.cart.Len())
	s.Equal(3, s.cart.Quantity("FOOD001"))

	_, err = s.pipeline.LastOrder(context.Background())
	s.ErrorIs(err, ErrNoLastOrder)
}

func (s *PipelineSuite) TestPersistFailureThenRetry() {
	ctx := context.Background()
	gomock.InOrder(
		s.orders.EXPECT().Create(gomock.Any(), gomock.Any()).Return(errors.New("connection refused")),
		s.orders.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil),
	)

	_, err := s.pipeline.Checkout(ctx, s.cart, s.payment)
	var persistErr *PersistError
	s.Require().ErrorAs(err, &persistErr)
	s.Equal("ORD-000000000001", persistErr.OrderID)
	s.Equal(2, s.cart.Len())
	s.NotNil(s.pipeline.Pending())

	_, err = s.pipeline.Checkout(ctx, s.cart, s.payment)
	s.ErrorIs(err, ErrPersistPending)
	s.Len(s.payment.calls, 1, "a pending order must not be charged twice")

	o, err := s.pipeline.RetryPersist(ctx, s.cart)
	s.Require().NoError(err)
	s.Equal("ORD-000000000001", o.ID)
	s.Len(s.payment.calls, 1)
	s.Zero(s.cart.Len())
	s.Nil(s.pipeline.Pending())
}

func (s *PipelineSuite) TestRetryTreatsExistingOrderAsRecorded() {
	ctx := context.Background()
	gomock.InOrder(
		s.orders.EXPECT().Create(gomock.Any(), gomock.Any()).Return(context.DeadlineExceeded),
		s.orders.EXPECT().Create(gomock.Any(), gomock.Any()).Return(ErrOrderExists),
	)

	_, err := s.pipeline.Checkout(ctx, s.cart, s.payment)
	s.Require().Error(err)

	_, err = s.pipeline.RetryPersist(ctx, s.cart)
	s.NoError(err)
	s.Zero(s.cart.Len())
}

func (s *PipelineSuite) TestConflictOnFirstAttemptIsNotRecorded() {
	ctx := context.Background()
	gomock.InOrder(
		s.orders.EXPECT().Create(gomock.Any(), gomock.Any()).Return(ErrOrderExists),
		s.orders.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, o *models.Order) error {
				s.Equal("ORD-000000000002", o.ID)
				return nil
			}),
	)

	_, err := s.pipeline.Checkout(ctx, s.cart, s.payment)
	var persistErr *PersistError
	s.Require().ErrorAs(err, &persistErr)
	s.ErrorIs(err, ErrOrderExists)
	s.Equal("ORD-000000000002", persistErr.OrderID)
	s.Equal(2, s.cart.Len(), "an order that was not recorded keeps its cart")
	s.Require().NotNil(s.pipeline.Pending())
	s.Equal("ORD-000000000002", s.pipeline.Pending().ID)
	_, err = s.pipeline.LastOrder(ctx)
	s.ErrorIs(err, ErrNoLastOrder)

	o, err := s.pipeline.RetryPersist(ctx, s.cart)
	s.Require().NoError(err)
	s.Equal("ORD-000000000002", o.ID)
	s.Len(s.payment.calls, 1)
	s.Zero(s.cart.Len())
}

func (s *PipelineSuite) TestTerminalsCheckingOutTogetherBothRecord() {
	ctx := context.Background()
	book := newOrderBook()
	clock := func() time.Time { return s.now }
	tracer := WithTracer(noop.NewTracerProvider().Tracer("test"))
	first := New(book, NewMemorySlot(), taxRate, tracer, WithNow(clock))
	second := New(book, NewMemorySlot(), taxRate, tracer, WithNow(clock))

	other := cart.New()
	s.Require().NoError(other.AddOnce(product("ELEC002", "999")))

	a, err := first.Checkout(ctx, s.cart, s.payment)
	s.Require().NoError(err)
	b, err := second.Checkout(ctx, other, s.payment)
	s.Require().NoError(err)

	s.NotEqual(a.ID, b.ID)
	s.Len(book.orders, 2)
	stored, err := book.Get(ctx, b.ID)
	s.Require().NoError(err)
	s.Equal("ELEC002", stored.Lines[0].ProductID)
}

func (s *PipelineSuite) TestRetryConfirmsOrderThatLandedBeforeTimeout() {
	ctx := context.Background()
	book := newOrderBook()
	book.lostReply = true
	p := New(book, s.slot, taxRate, WithTracer(noop.NewTracerProvider().Tracer("test")), WithIDGenerator(sequentialIDs()))

	_, err := p.Checkout(ctx, s.cart, s.payment)
	s.Require().ErrorIs(err, context.DeadlineExceeded)

	o, err := p.RetryPersist(ctx, s.cart)
	s.Require().NoError(err)
	s.Equal("ORD-000000000001", o.ID)
	s.Len(book.orders, 1)
	s.Zero(s.cart.Len())
}

func (s *PipelineSuite) TestRetryRejectsConflictWithAnotherOrder() {
	ctx := context.Background()
	book := newOrderBook()
	book.orders["ORD-000000000001"] = &models.Order{
		ID:    "ORD-000000000001",
		Lines: []models.Line{{ProductID: "BOOK001", Price: decimal.NewFromInt(300), Quantity: 1}},
		Total: decimal.NewFromInt(354),
	}
	book.failNext = context.DeadlineExceeded
	p := New(book, s.slot, taxRate, WithTracer(noop.NewTracerProvider().Tracer("test")), WithIDGenerator(sequentialIDs()))

	_, err := p.Checkout(ctx, s.cart, s.payment)
	s.Require().Error(err)

	_, err = p.RetryPersist(ctx, s.cart)
	var persistErr *PersistError
	s.Require().ErrorAs(err, &persistErr)
	s.ErrorIs(err, ErrOrderExists)
	s.Equal("ORD-000000000002", persistErr.OrderID)
	s.Equal(2, s.cart.Len())

	o, err := p.RetryPersist(ctx, s.cart)
	s.Require().NoError(err)
	s.Equal("ORD-000000000002", o.ID)
	s.Equal("BOOK001", book.orders["ORD-000000000001"].Lines[0].ProductID)
	s.Zero(s.cart.Len())
}

func (s *PipelineSuite) TestRetryKeepsItemsScannedAfterPayment() {
	ctx := context.Background()
	gomock.InOrder(
		s.orders.EXPECT().Create(gomock.Any(), gomock.Any()).Return(errors.New("connection refused")),
		s.orders.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil),
	)

	_, err := s.pipeline.Checkout(ctx, s.cart, s.payment)
	s.Require().Error(err)

	s.Require().NoError(s.cart.AddOnce(product("FOOD003", "45")))
	s.Require().NoError(s.cart.Increment("FOOD001"))

	o, err := s.pipeline.RetryPersist(ctx, s.cart)
	s.Require().NoError(err)
	s.Equal(3, o.Lines[0].Quantity)

	s.Equal(2, s.cart.Len())
	s.Equal(1, s.cart.Quantity("FOOD001"))
	s.False(s.cart.Has("FOOD002"))
	s.Equal(1, s.cart.Quantity("FOOD003"))
}

func (s *PipelineSuite) TestRetryWithoutPending() {
	_, err := s.pipeline.RetryPersist(context.Background(), s.cart)
	s.ErrorIs(err, ErrNothingToRetry)
}

func (s *PipelineSuite) TestSlotFailureDoesNotFailCheckout() {
	p := New(s.orders, failingSlot{}, taxRate, WithTracer(noop.NewTracerProvider().Tracer("test")))
	s.orders.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)

	_, err := p.Checkout(context.Background(), s.cart, s.payment)
	s.NoError(err)
	s.Zero(s.cart.Len())
}

func (s *PipelineSuite) TestQuote() {
	totals, err := s.pipeline.Quote(s.cart)
	s.Require().NoError(err)
	s.True(decimal.NewFromInt(21).Equal(totals.Tax))
	s.Equal(2, s.cart.Len())
}
