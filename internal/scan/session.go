// Package scan sequences reader input into cart mutations.
//
// A Session owns the reader for one terminal. Every accepted read moves the
// session through resolving into exactly one outcome state, and a display
// timer returns it to armed. A generation counter is bumped on every
// transition that invalidates in-flight work; lookup results and timers
// carry the generation they were started under and discard themselves when
// it no longer matches.
package scan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"tiptap/internal/cart"
	"tiptap/internal/catalog"
	"tiptap/internal/catalog/models"
	"tiptap/internal/scan/metrics"
	"tiptap/internal/tag"
)

const (
	DefaultDedupWindow     = 2 * time.Second
	DefaultDisplayInterval = 3 * time.Second
	DefaultLookupTimeout   = 5 * time.Second
)

// User-facing messages. Duplicate and not-found are specific; transport and
// reader failures stay generic.
const (
	msgAdded         = "%s added to cart"
	msgAlreadyInCart = "%s is already in your cart. Use +/- to change quantity."
	msgNotFound      = "Product %s not found"
	msgUnavailable   = "Could not reach the product catalog. Please try again."
	msgInvalidTag    = "Invalid tag: no product identifier found"
	msgReader        = "Scanner unavailable. Check permissions and try again."
	msgStopped       = "Scanner stopped"
)

// Decoder turns raw reads into identifiers.
type Decoder interface {
	Decode(raw string) (tag.Identifier, error)
	DecodeNDEF(records []tag.Record) (tag.Identifier, error)
}

// Resolver looks up a product by identifier.
type Resolver interface {
	Resolve(ctx context.Context, id string) (*models.Product, error)
}

// Cart is the subset of the cart the session mutates.
type Cart interface {
	Has(id string) bool
	AddOnce(p *models.Product) error
}

// Feedback is emitted on every state change.
type Feedback struct {
	State     State
	Message   string
	ProductID string
	Product   *models.Product
	Source    SourceKind
	Err       error
	At        time.Time
}

// Session is a single-terminal scan state machine.
type Session struct {
	source  Source
	decoder Decoder
	catalog Resolver
	cart    Cart

	clock           Clock
	logger          *slog.Logger
	metrics         *metrics.Metrics
	listener        func(Feedback)
	onAdded         func(*models.Product)
	dedupWindow     time.Duration
	displayInterval time.Duration
	lookupTimeout   time.Duration

	mu         sync.Mutex
	state      State
	gen        uint64
	activation uint64
	ctx        context.Context
	cancel     context.CancelFunc
	stream     Stream
	timer      Timer
	lastID     tag.Identifier
	lastAt     time.Time

	wg sync.WaitGroup
}

// Option configures a Session.
type Option func(*Session)

func WithClock(c Clock) Option {
	return func(s *Session) { s.clock = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithListener receives every Feedback. It is called without session locks
// held and may call back into the session.
func WithListener(fn func(Feedback)) Option {
	return func(s *Session) { s.listener = fn }
}

// WithOnAdded is called with each product the session adds to the cart.
func WithOnAdded(fn func(*models.Product)) Option {
	return func(s *Session) { s.onAdded = fn }
}

func WithDedupWindow(d time.Duration) Option {
	return func(s *Session) { s.dedupWindow = d }
}

func WithDisplayInterval(d time.Duration) Option {
	return func(s *Session) { s.displayInterval = d }
}

func WithLookupTimeout(d time.Duration) Option {
	return func(s *Session) { s.lookupTimeout = d }
}

// New creates an idle session.
func New(source Source, decoder Decoder, resolver Resolver, c Cart, opts ...Option) *Session {
	s := &Session{
		source:          source,
		decoder:         decoder,
		catalog:         resolver,
		cart:            c,
		clock:           RealClock(),
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		dedupWindow:     DefaultDedupWindow,
		displayInterval: DefaultDisplayInterval,
		lookupTimeout:   DefaultLookupTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Arm acquires the reader and starts accepting reads. Arming an active
// session is a no-op. Open failures are returned as *ResourceError and the
// session stays where it was.
func (s *Session) Arm(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateIdle && s.state != StateDisarmed {
		s.mu.Unlock()
		return nil
	}

	sessCtx, cancel := context.WithCancel(ctx)
	stream, err := s.source.Open(sessCtx)
	if err != nil {
		cancel()
		s.mu.Unlock()
		rerr := asResourceError("open", err)
		s.logger.WarnContext(ctx, "scan reader unavailable", "error", rerr)
		s.emit(Feedback{State: StateError, Message: msgReader, Err: rerr, At: s.clock.Now()})
		return rerr
	}

	s.gen++
	s.activation++
	act := s.activation
	s.state = StateArmed
	s.ctx, s.cancel, s.stream = sessCtx, cancel, stream
	s.lastID, s.lastAt = "", time.Time{}
	s.wg.Add(1)
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "scan session armed", "activation", act)
	s.emit(Feedback{State: StateArmed, At: s.clock.Now()})
	go s.loop(sessCtx, act, stream.Events())
	return nil
}

// Disarm stops accepting reads, cancels outstanding lookups and timers and
// releases the reader. Results that arrive afterwards are discarded.
func (s *Session) Disarm() {
	s.mu.Lock()
	if s.state == StateIdle || s.state == StateDisarmed {
		s.mu.Unlock()
		return
	}
	cancel, stream := s.teardownLocked()
	s.mu.Unlock()

	s.release(cancel, stream)
	s.logger.Info("scan session disarmed")
	s.emit(Feedback{State: StateDisarmed, At: s.clock.Now()})
}

// Wait blocks until the event loop and all lookups have returned. Call it
// after Disarm.
func (s *Session) Wait() {
	s.wg.Wait()
}

// Submit feeds a typed identifier through the same path as reader input.
func (s *Session) Submit(ctx context.Context, raw string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.accept(Event{Raw: raw, Source: SourceManual, At: s.clock.Now()})
}

func (s *Session) loop(ctx context.Context, act uint64, events <-chan Event) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				s.streamEnded(act)
				return
			}
			if err := s.accept(ev); err != nil {
				s.logger.Debug("scan read not accepted", "source", ev.Source, "error", err)
			}
		}
	}
}

func (s *Session) decode(ev Event) (tag.Identifier, error) {
	if len(ev.Records) > 0 {
		return s.decoder.DecodeNDEF(ev.Records)
	}
	return s.decoder.Decode(ev.Raw)
}

func (s *Session) accept(ev Event) error {
	id, decErr := s.decode(ev)
	now := s.clock.Now()

	s.mu.Lock()
	if !s.state.accepting() {
		state := s.state
		s.mu.Unlock()
		if state == StateResolving {
			return ErrBusy
		}
		return ErrNotArmed
	}

	if decErr != nil {
		fb := s.settleLocked(StateError, Feedback{Message: msgInvalidTag, Source: ev.Source, Err: decErr})
		s.mu.Unlock()
		s.metrics.IncOutcome("invalid_tag")
		s.emit(fb)
		return decErr
	}

	if id == s.lastID && now.Sub(s.lastAt) < s.dedupWindow {
		s.mu.Unlock()
		s.metrics.IncSuppressed()
		return ErrSuppressed
	}

	s.lastID, s.lastAt = id, now
	s.stopTimerLocked()
	s.gen++
	gen := s.gen
	s.state = StateResolving
	ctx := s.ctx
	s.wg.Add(1)
	s.mu.Unlock()

	s.emit(Feedback{State: StateResolving, ProductID: string(id), Source: ev.Source, At: now})
	go s.resolve(ctx, gen, id, ev.Source)
	return nil
}

func (s *Session) resolve(ctx context.Context, gen uint64, id tag.Identifier, src SourceKind) {
	defer s.wg.Done()

	start := time.Now()
	lookupCtx, cancel := context.WithTimeout(ctx, s.lookupTimeout)
	product, err := s.catalog.Resolve(lookupCtx, string(id))
	cancel()
	s.metrics.ObserveLookup(start)

	s.mu.Lock()
	if s.gen != gen || ctx.Err() != nil {
		s.mu.Unlock()
		s.logger.Debug("discarding stale lookup", "product_id", id)
		return
	}

	base := Feedback{ProductID: string(id), Source: src}
	var fb Feedback
	added := false
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		// Release dedup so a corrected catalog entry can be rescanned at once.
		s.lastID = ""
		base.Message = fmt.Sprintf(msgNotFound, id)
		base.Err = err
		fb = s.settleLocked(StateNotFound, base)
	case err != nil:
		base.Message = msgUnavailable
		base.Err = err
		fb = s.settleLocked(StateError, base)
	case s.cart.Has(product.ID):
		base.Product = product
		base.Message = fmt.Sprintf(msgAlreadyInCart, product.Name)
		base.Err = cart.ErrDuplicate
		fb = s.settleLocked(StateAlreadyInCart, base)
	default:
		base.Product = product
		switch addErr := s.cart.AddOnce(product); {
		case errors.Is(addErr, cart.ErrDuplicate):
			base.Message = fmt.Sprintf(msgAlreadyInCart, product.Name)
			base.Err = addErr
			fb = s.settleLocked(StateAlreadyInCart, base)
		case addErr != nil:
			base.Message = msgUnavailable
			base.Err = addErr
			fb = s.settleLocked(StateError, base)
		default:
			base.Message = fmt.Sprintf(msgAdded, product.Name)
			fb = s.settleLocked(StateSuccess, base)
			added = true
		}
	}
	s.mu.Unlock()

	s.metrics.IncOutcome(fb.State.String())
	if fb.State == StateError {
		s.logger.Warn("scan lookup failed", "product_id", id, "error", fb.Err)
	} else {
		s.logger.Info("scan resolved", "product_id", id, "outcome", fb.State.String())
	}
	s.emit(fb)
	if added && s.onAdded != nil {
		s.onAdded(product)
	}
}

// settleLocked enters an outcome state and schedules the return to armed.
func (s *Session) settleLocked(state State, fb Feedback) Feedback {
	s.stopTimerLocked()
	s.gen++
	gen := s.gen
	s.state = state
	s.timer = s.clock.AfterFunc(s.displayInterval, func() { s.rearm(gen) })
	fb.State = state
	fb.At = s.clock.Now()
	return fb
}

func (s *Session) rearm(gen uint64) {
	s.mu.Lock()
	if s.gen != gen || !s.state.IsOutcome() {
		s.mu.Unlock()
		return
	}
	s.state = StateArmed
	s.timer = nil
	s.mu.Unlock()
	s.emit(Feedback{State: StateArmed, At: s.clock.Now()})
}

func (s *Session) streamEnded(act uint64) {
	s.mu.Lock()
	if s.activation != act || s.state == StateIdle || s.state == StateDisarmed {
		s.mu.Unlock()
		return
	}
	cancel, stream := s.teardownLocked()
	s.mu.Unlock()

	s.release(cancel, stream)
	s.logger.Info("scan reader stream ended", "activation", act)
	s.emit(Feedback{State: StateDisarmed, Message: msgStopped, At: s.clock.Now()})
}

func (s *Session) teardownLocked() (context.CancelFunc, Stream) {
	s.gen++
	s.state = StateDisarmed
	s.stopTimerLocked()
	cancel, stream := s.cancel, s.stream
	s.ctx, s.cancel, s.stream = nil, nil, nil
	s.lastID, s.lastAt = "", time.Time{}
	return cancel, stream
}

// release cancels the session context and always closes the stream.
func (s *Session) release(cancel context.CancelFunc, stream Stream) {
	if cancel != nil {
		cancel()
	}
	if stream != nil {
		if err := stream.Close(); err != nil {
			s.logger.Warn("closing scan reader failed", "error", err)
		}
	}
}

func (s *Session) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Session) emit(fb Feedback) {
	if s.listener != nil {
		s.listener(fb)
	}
}
