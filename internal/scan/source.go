package scan

import (
	"context"
	"sync"
	"time"

	"tiptap/internal/tag"
)

// SourceKind names where a read came from.
type SourceKind string

const (
	SourceQR     SourceKind = "qr"
	SourceNFC    SourceKind = "nfc"
	SourceManual SourceKind = "manual"
)

// Event is one raw read. NFC reads carry Records; QR and manual reads carry Raw.
type Event struct {
	Raw     string
	Records []tag.Record
	Source  SourceKind
	At      time.Time
}

// Source acquires the reader. Each Open starts a new activation whose
// stream ends when the reader stops or Close is called.
type Source interface {
	Open(ctx context.Context) (Stream, error)
}

// Stream delivers the reads of one activation. Close releases the reader and
// must be safe to call more than once.
type Stream interface {
	Events() <-chan Event
	Close() error
}

// ChannelSource is a Source fed by Push. It backs manual entry and
// line-oriented readers.
type ChannelSource struct {
	buffer int

	mu      sync.Mutex
	current *channelStream
	openErr error
	opens   int
	closes  int
}

// NewChannelSource creates a source whose activations buffer up to buffer reads.
func NewChannelSource(buffer int) *ChannelSource {
	if buffer < 1 {
		buffer = 1
	}
	return &ChannelSource{buffer: buffer}
}

// FailOpen makes subsequent Open calls return err. Pass nil to clear.
func (c *ChannelSource) FailOpen(err error) {
	c.mu.Lock()
	c.openErr = err
	c.mu.Unlock()
}

func (c *ChannelSource) Open(_ context.Context) (Stream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.openErr != nil {
		return nil, c.openErr
	}
	c.opens++
	s := &channelStream{ch: make(chan Event, c.buffer), owner: c}
	c.current = s
	return s, nil
}

// Push delivers ev to the active stream. It reports false when no stream is
// open or the buffer is full.
func (c *ChannelSource) Push(ev Event) bool {
	c.mu.Lock()
	s := c.current
	c.mu.Unlock()
	if s == nil {
		return false
	}
	return s.send(ev)
}

// End finishes the current activation as if the reader stopped on its own.
func (c *ChannelSource) End() {
	c.mu.Lock()
	s := c.current
	c.mu.Unlock()
	if s != nil {
		s.finish()
	}
}

// Opens and Closes count reader acquisitions and releases.
func (c *ChannelSource) Opens() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opens
}

func (c *ChannelSource) Closes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

type channelStream struct {
	ch    chan Event
	owner *ChannelSource

	mu       sync.Mutex
	finished bool
	closed   bool
}

func (s *channelStream) Events() <-chan Event {
	return s.ch
}

func (s *channelStream) send(ev Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return false
	}
	select {
	case s.ch <- ev:
		return true
	default:
		return false
	}
}

func (s *channelStream) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.finished {
		s.finished = true
		close(s.ch)
	}
}

func (s *channelStream) Close() error {
	s.finish()
	s.mu.Lock()
	first := !s.closed
	s.closed = true
	s.mu.Unlock()
	if first {
		s.owner.mu.Lock()
		s.owner.closes++
		if s.owner.current == s {
			s.owner.current = nil
		}
		s.owner.mu.Unlock()
	}
	return nil
}

// Camera produces raw frames until stopped.
type Camera interface {
	Start(ctx context.Context) (<-chan []byte, error)
	Stop() error
}

// QRSource turns camera frames into scan events through a QRStream.
type QRSource struct {
	camera Camera
	qr     *tag.QRStream
	clock  Clock
}

// NewQRSource creates a QR source. clock may be nil for the wall clock.
func NewQRSource(camera Camera, qr *tag.QRStream, clock Clock) *QRSource {
	if clock == nil {
		clock = RealClock()
	}
	return &QRSource{camera: camera, qr: qr, clock: clock}
}

func (q *QRSource) Open(ctx context.Context) (Stream, error) {
	frames, err := q.camera.Start(ctx)
	if err != nil {
		return nil, err
	}
	q.qr.Reset()

	ctx, cancel := context.WithCancel(ctx)
	s := &qrStream{camera: q.camera, cancel: cancel, out: make(chan Event), done: make(chan struct{})}
	go func() {
		defer close(s.done)
		defer close(s.out)
		for {
			select {
			case <-ctx.Done():
				return
			case frame, ok := <-frames:
				if !ok {
					return
				}
				payload, emit := q.qr.Feed(frame)
				if !emit {
					continue
				}
				select {
				case s.out <- Event{Raw: payload, Source: SourceQR, At: q.clock.Now()}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return s, nil
}

type qrStream struct {
	camera Camera
	cancel context.CancelFunc
	out    chan Event
	done   chan struct{}
	once   sync.Once
	err    error
}

func (s *qrStream) Events() <-chan Event {
	return s.out
}

func (s *qrStream) Close() error {
	s.once.Do(func() {
		s.cancel()
		s.err = s.camera.Stop()
		<-s.done
	})
	return s.err
}
