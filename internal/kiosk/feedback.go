package kiosk

import (
	"fmt"
	"io"
	"sync"

	"tiptap/internal/scan"
)

// Printer serializes terminal output. Scan feedback arrives from session
// goroutines while the command loop is printing.
type Printer struct {
	mu       sync.Mutex
	w        io.Writer
	notifier *scan.Notifier
}

// NewPrinter writes to w. notifier may be nil to print every notice.
func NewPrinter(w io.Writer, notifier *scan.Notifier) *Printer {
	return &Printer{w: w, notifier: notifier}
}

func (p *Printer) Printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, format, args...)
}

// Write lets renderers such as the invoice share the lock.
func (p *Printer) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.w.Write(b)
}

// Notice prints the message carried by fb unless the notifier suppresses it.
func (p *Printer) Notice(fb scan.Feedback) bool {
	if fb.Message == "" {
		return false
	}
	kind := scan.KindFor(fb.State)
	if p.notifier != nil && !p.notifier.Push(fb.Message, kind) {
		return false
	}
	p.Printf("[%s] %s\n", kind, fb.Message)
	return true
}
