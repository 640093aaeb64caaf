package events

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Sink delivers a single event; *Publisher satisfies it.
type Sink interface {
	Publish(ctx context.Context, e Event) error
}

// RingBuffer is a bounded, thread-safe FIFO of events.
// When full, the oldest event is dropped to make room.
type RingBuffer struct {
	mu       sync.Mutex
	events   []Event
	head     int // next write position
	tail     int // next read position
	count    int
	capacity int

	dropped int64
}

// NewRingBuffer creates a ring buffer with the given capacity.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = 1024
	}
	return &RingBuffer{
		events:   make([]Event, capacity),
		capacity: capacity,
	}
}

// Enqueue adds an event, dropping the oldest if necessary. It reports
// whether an event was dropped.
func (b *RingBuffer) Enqueue(e Event) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	dropped := false
	if b.count >= b.capacity {
		b.tail = (b.tail + 1) % b.capacity
		b.count--
		b.dropped++
		dropped = true
	}

	b.events[b.head] = e
	b.head = (b.head + 1) % b.capacity
	b.count++
	return dropped
}

// DequeueBatch removes up to n events in arrival order.
func (b *RingBuffer) DequeueBatch(n int) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 {
		return nil
	}
	if n > b.count {
		n = b.count
	}

	out := make([]Event, n)
	for i := range n {
		out[i] = b.events[b.tail]
		b.events[b.tail] = Event{}
		b.tail = (b.tail + 1) % b.capacity
	}
	b.count -= n
	return out
}

func (b *RingBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Dropped returns the total number of events evicted by Enqueue.
func (b *RingBuffer) Dropped() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// Dispatcher decouples order requests from broker latency: Publish only
// buffers, and Run drains the buffer into the sink in batches.
type Dispatcher struct {
	sink          Sink
	buf           *RingBuffer
	batchSize     int
	flushInterval time.Duration
	drainTimeout  time.Duration
	logger        *slog.Logger
	wake          chan struct{}
}

type DispatcherOption func(*Dispatcher)

func WithBatchSize(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.batchSize = n
		}
	}
}

func WithFlushInterval(interval time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if interval > 0 {
			d.flushInterval = interval
		}
	}
}

func WithDrainTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		d.drainTimeout = timeout
	}
}

func WithDispatcherLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// NewDispatcher buffers up to capacity events in front of sink.
func NewDispatcher(sink Sink, capacity int, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		sink:          sink,
		buf:           NewRingBuffer(capacity),
		batchSize:     64,
		flushInterval: 500 * time.Millisecond,
		drainTimeout:  5 * time.Second,
		logger:        slog.Default(),
		wake:          make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Publish enqueues e and never blocks on the broker.
func (d *Dispatcher) Publish(ctx context.Context, e Event) error {
	if d.buf.Enqueue(e) {
		d.logger.WarnContext(ctx, "order event buffer full, dropped oldest event",
			"dropped_total", d.buf.Dropped(),
		)
	}
	if d.buf.Len() >= d.batchSize {
		select {
		case d.wake <- struct{}{}:
		default:
		}
	}
	return nil
}

// Pending returns the number of buffered events.
func (d *Dispatcher) Pending() int {
	return d.buf.Len()
}

// Run flushes the buffer until ctx is cancelled, then makes a final drain
// bounded by the drain timeout. It always returns nil.
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			drainCtx, cancel := context.WithTimeout(context.Background(), d.drainTimeout)
			defer cancel()
			d.Flush(drainCtx)
			if n := d.buf.Len(); n > 0 {
				d.logger.Warn("order events left undelivered at shutdown", "count", n)
			}
			return nil
		case <-ticker.C:
			d.Flush(ctx)
		case <-d.wake:
			d.Flush(ctx)
		}
	}
}

// Flush delivers buffered events until the buffer is empty or ctx ends.
// Delivery failures are logged and the event is discarded.
func (d *Dispatcher) Flush(ctx context.Context) {
	for ctx.Err() == nil {
		batch := d.buf.DequeueBatch(d.batchSize)
		if len(batch) == 0 {
			return
		}
		for _, e := range batch {
			if err := d.sink.Publish(ctx, e); err != nil {
				d.logger.WarnContext(ctx, "failed to deliver order event",
					"order_id", e.OrderID,
					"event_type", e.Type,
					"error", err,
				)
			}
		}
	}
}
