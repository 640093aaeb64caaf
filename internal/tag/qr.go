package tag

import (
	"strings"
	"sync"
	"time"
)

// FrameDecoder extracts a QR payload from a camera frame. ok is false when
// the frame holds no readable code.
type FrameDecoder interface {
	DecodeFrame(frame []byte) (payload string, ok bool, err error)
}

// QRStream suppresses identical consecutive payloads until the payload
// changes or the cooldown elapses.
type QRStream struct {
	decoder  FrameDecoder
	cooldown time.Duration
	now      func() time.Time

	mu     sync.Mutex
	last   string
	lastAt time.Time
}

// QROption configures a QRStream.
type QROption func(*QRStream)

// WithNow overrides the time source.
func WithNow(now func() time.Time) QROption {
	return func(q *QRStream) {
		q.now = now
	}
}

// NewQRStream creates a stream over decoder.
func NewQRStream(decoder FrameDecoder, cooldown time.Duration, opts ...QROption) *QRStream {
	q := &QRStream{decoder: decoder, cooldown: cooldown, now: time.Now}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Feed decodes one frame and returns the payload when it should be emitted.
// Decoder errors are treated as unreadable frames.
func (q *QRStream) Feed(frame []byte) (string, bool) {
	payload, ok, err := q.decoder.DecodeFrame(frame)
	if err != nil || !ok {
		return "", false
	}
	return q.Offer(payload)
}

// Offer applies suppression to an already decoded payload.
func (q *QRStream) Offer(payload string) (string, bool) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return "", false
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	now := q.now()
	if payload == q.last && now.Sub(q.lastAt) < q.cooldown {
		return "", false
	}
	q.last = payload
	q.lastAt = now
	return payload, true
}

// Reset forgets the last payload. Call on every new activation.
func (q *QRStream) Reset() {
	q.mu.Lock()
	q.last = ""
	q.lastAt = time.Time{}
	q.mu.Unlock()
}
