// Package kiosk is the console front end of a scanning terminal. It turns
// typed lines into scans, cart edits and checkout commands.
package kiosk

import (
	"bufio"
	"context"
	"io"
	"strings"
	"sync"
)

// Prompt reads input lines in the background so both the command loop and
// payment prompts can wait on them with a context.
type Prompt struct {
	lines  chan string
	done   chan struct{}
	exited chan struct{}
	once   sync.Once

	mu  sync.Mutex
	err error
}

// NewPrompt starts reading r. The reader goroutine exits at EOF or, once
// Close has been called, as soon as it has a line nobody will take.
func NewPrompt(r io.Reader) *Prompt {
	p := &Prompt{
		lines:  make(chan string),
		done:   make(chan struct{}),
		exited: make(chan struct{}),
	}
	go p.read(r)
	return p
}

// Close stops delivering lines. Next returns io.EOF afterwards.
func (p *Prompt) Close() {
	p.once.Do(func() { close(p.done) })
}

func (p *Prompt) read(r io.Reader) {
	defer close(p.exited)
	defer close(p.lines)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		select {
		case p.lines <- strings.TrimSpace(sc.Text()):
		case <-p.done:
			return
		}
	}
	if err := sc.Err(); err != nil {
		p.mu.Lock()
		p.err = err
		p.mu.Unlock()
	}
}

// Next returns the next line, io.EOF when input is exhausted, or ctx.Err().
func (p *Prompt) Next(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-p.done:
		return "", io.EOF
	case line, ok := <-p.lines:
		if !ok {
			p.mu.Lock()
			defer p.mu.Unlock()
			if p.err != nil {
				return "", p.err
			}
			return "", io.EOF
		}
		return line, nil
	}
}
