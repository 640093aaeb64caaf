package scan

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"tiptap/internal/cart"
	"tiptap/internal/catalog"
	"tiptap/internal/catalog/models"
	"tiptap/internal/scan/metrics"
	"tiptap/internal/tag"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock *fakeClock
	at    time.Time
	fn    func()
	done  bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), fn: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves time forward and runs due timers synchronously.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []func()
	for _, t := range c.timers {
		if !t.done && !t.at.After(c.now) {
			t.done = true
			due = append(due, t.fn)
		}
	}
	c.mu.Unlock()
	for _, f := range due {
		f()
	}
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	was := !t.done
	t.done = true
	return was
}

// stubResolver serves products from a map. When gate is set, Resolve blocks
// until it is closed and ignores context cancellation.
type stubResolver struct {
	mu       sync.Mutex
	products map[string]*models.Product
	err      error
	gate     chan struct{}
	calls    int
}

func (r *stubResolver) Resolve(_ context.Context, id string) (*models.Product, error) {
	r.mu.Lock()
	r.calls++
	gate, err := r.gate, r.err
	p, ok := r.products[id]
	r.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return p.Clone(), nil
}

func (r *stubResolver) block() chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gate = make(chan struct{})
	return r.gate
}

func (r *stubResolver) unblock() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gate != nil {
		close(r.gate)
		r.gate = nil
	}
}

func (r *stubResolver) fail(err error) {
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
}

type recorder struct {
	ch chan Feedback
}

func (r *recorder) listen(fb Feedback) {
	r.ch <- fb
}

// waitFor drains feedback until one in state arrives.
func (r *recorder) waitFor(t *testing.T, state State) Feedback {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case fb := <-r.ch:
			if fb.State == state {
				return fb
			}
		case <-timeout:
			t.Fatalf("timed out waiting for state %s", state)
			return Feedback{}
		}
	}
}

// drain returns whatever feedback is already buffered.
func (r *recorder) drain() []Feedback {
	var out []Feedback
	for {
		select {
		case fb := <-r.ch:
			out = append(out, fb)
		default:
			return out
		}
	}
}

type harness struct {
	source   *ChannelSource
	clock    *fakeClock
	resolver *stubResolver
	cart     *cart.Cart
	rec      *recorder
	session  *Session

	mu    sync.Mutex
	added []*models.Product
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		source: NewChannelSource(8),
		clock:  newFakeClock(),
		resolver: &stubResolver{products: map[string]*models.Product{
			"FOOD001": {ID: "FOOD001", Name: "Vada Pav", Price: decimal.NewFromInt(25)},
			"FOOD002": {ID: "FOOD002", Name: "Pav Bhaji", Price: decimal.NewFromInt(60)},
			"ELEC002": {ID: "ELEC002", Name: "USB-C Cable", Price: decimal.RequireFromString("12.99")},
		}},
		cart: cart.New(),
		rec:  &recorder{ch: make(chan Feedback, 128)},
	}
	decoder := tag.NewDecoder(tag.MustGrammar([]string{"FOOD", "ELEC", "CLTH", "BOOK", "HOME", "SPRT"}))
	base := []Option{
		WithClock(h.clock),
		WithListener(h.rec.listen),
		WithMetrics(metrics.NewWithRegisterer(prometheus.NewRegistry())),
		WithDedupWindow(2 * time.Second),
		WithDisplayInterval(3 * time.Second),
		WithOnAdded(func(p *models.Product) {
			h.mu.Lock()
			h.added = append(h.added, p)
			h.mu.Unlock()
		}),
	}
	h.session = New(h.source, decoder, h.resolver, h.cart, append(base, opts...)...)
	t.Cleanup(func() {
		h.resolver.unblock()
		h.session.Disarm()
		h.session.Wait()
	})
	return h
}

func (h *harness) arm(t *testing.T) {
	t.Helper()
	if err := h.session.Arm(context.Background()); err != nil {
		t.Fatalf("arm: %v", err)
	}
	h.rec.waitFor(t, StateArmed)
}

func (h *harness) addedIDs() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var ids []string
	for _, p := range h.added {
		ids = append(ids, p.ID)
	}
	return ids
}

// racingCart reports products as absent but loses every AddOnce race.
type racingCart struct{}

func (racingCart) Has(string) bool               { return false }
func (racingCart) AddOnce(*models.Product) error { return cart.ErrDuplicate }
