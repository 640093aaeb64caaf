package kiosk

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tiptap/internal/cart"
	"tiptap/internal/catalog"
	"tiptap/internal/scan"
	"tiptap/internal/tag"
	"tiptap/pkg/testutil"
)

func TestPromptNext(t *testing.T) {
	p := NewPrompt(strings.NewReader("  arm \nquit\n"))
	ctx := context.Background()

	line, err := p.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "arm", line)
	line, err = p.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "quit", line)
	_, err = p.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestPromptNextCancelled(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()
	p := NewPrompt(r)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPromptCloseReleasesReader(t *testing.T) {
	p := NewPrompt(strings.NewReader("FOOD001\nFOOD002\nFOOD003\n"))

	p.Close()
	p.Close()

	select {
	case <-p.exited:
	case <-time.After(time.Second):
		t.Fatal("reader goroutine still blocked after Close")
	}
	_, err := p.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestRunClosesPrompt(t *testing.T) {
	r, w := io.Pipe()
	p := NewPrompt(r)
	term := New(Config{
		Prompt:  p,
		Printer: NewPrinter(io.Discard, nil),
		Source:  scan.NewChannelSource(1),
		Decoder: tag.NewDecoder(tag.MustGrammar([]string{"FOOD"})),
		Catalog: catalog.NewLocal(nil),
		Cart:    cart.New(),
		Logger:  testutil.DiscardLogger(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- term.Run(ctx) }()
	cancel()
	require.NoError(t, <-done)

	// a line typed after Run returned must not pin the reader goroutine
	go func() { _, _ = w.Write([]byte("arm\n")) }()
	select {
	case <-p.exited:
	case <-time.After(time.Second):
		t.Fatal("reader goroutine leaked after Run returned")
	}
	_ = w.Close()
}
