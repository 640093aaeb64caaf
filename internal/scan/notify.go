package scan

import (
	"sync"
	"time"
)

// NoticeKind styles a notice on the terminal.
type NoticeKind string

const (
	NoticeInfo    NoticeKind = "info"
	NoticeSuccess NoticeKind = "success"
	NoticeWarning NoticeKind = "warning"
	NoticeError   NoticeKind = "error"
)

// KindFor maps a session state onto a notice kind.
func KindFor(s State) NoticeKind {
	switch s {
	case StateSuccess:
		return NoticeSuccess
	case StateAlreadyInCart:
		return NoticeWarning
	case StateNotFound, StateError:
		return NoticeError
	default:
		return NoticeInfo
	}
}

// Notice is a visible user message.
type Notice struct {
	Message string
	Kind    NoticeKind
	At      time.Time
}

const (
	DefaultNoticeDedupWindow = time.Second
	DefaultNoticeLifetime    = 4 * time.Second
	DefaultMaxNotices        = 3
)

// Notifier keeps the short list of visible notices. Identical messages of
// the same kind within the dedup window are dropped, and the oldest notice
// is evicted beyond the limit.
type Notifier struct {
	clock    Clock
	window   time.Duration
	lifetime time.Duration
	max      int

	mu      sync.Mutex
	notices []Notice
}

// NewNotifier creates a Notifier with the default limits.
func NewNotifier(clock Clock) *Notifier {
	if clock == nil {
		clock = RealClock()
	}
	return &Notifier{
		clock:    clock,
		window:   DefaultNoticeDedupWindow,
		lifetime: DefaultNoticeLifetime,
		max:      DefaultMaxNotices,
	}
}

// Push adds a notice and reports whether it was shown.
func (n *Notifier) Push(message string, kind NoticeKind) bool {
	if message == "" {
		return false
	}
	now := n.clock.Now()
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pruneLocked(now)
	for _, existing := range n.notices {
		if existing.Message == message && existing.Kind == kind && now.Sub(existing.At) < n.window {
			return false
		}
	}
	n.notices = append(n.notices, Notice{Message: message, Kind: kind, At: now})
	if len(n.notices) > n.max {
		n.notices = append([]Notice(nil), n.notices[len(n.notices)-n.max:]...)
	}
	return true
}

// PushFeedback pushes fb's message with the kind matching its state.
func (n *Notifier) PushFeedback(fb Feedback) bool {
	return n.Push(fb.Message, KindFor(fb.State))
}

// Visible returns unexpired notices, oldest first.
func (n *Notifier) Visible() []Notice {
	now := n.clock.Now()
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pruneLocked(now)
	return append([]Notice(nil), n.notices...)
}

func (n *Notifier) pruneLocked(now time.Time) {
	kept := n.notices[:0]
	for _, notice := range n.notices {
		if now.Sub(notice.At) < n.lifetime {
			kept = append(kept, notice)
		}
	}
	n.notices = kept
}
