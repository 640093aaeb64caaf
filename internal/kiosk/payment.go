package kiosk

import (
	"context"
	"strings"
	"time"

	"tiptap/internal/checkout"
)

// ConsoleLauncher shows the payment link for the customer to open on a phone.
type ConsoleLauncher struct {
	printer *Printer
}

func NewConsoleLauncher(printer *Printer) *ConsoleLauncher {
	return &ConsoleLauncher{printer: printer}
}

func (l *ConsoleLauncher) Launch(_ context.Context, uri string) error {
	l.printer.Printf("Open this link in your UPI app to pay:\n  %s\n", uri)
	return nil
}

// PromptConfirmer waits for the customer to finish in their UPI app, then
// asks whether the payment went through.
type PromptConfirmer struct {
	prompt  *Prompt
	printer *Printer
	delay   time.Duration
}

// NewPromptConfirmer asks after delay has passed.
func NewPromptConfirmer(prompt *Prompt, printer *Printer, delay time.Duration) *PromptConfirmer {
	return &PromptConfirmer{prompt: prompt, printer: printer, delay: delay}
}

func (c *PromptConfirmer) Confirm(ctx context.Context, req checkout.PaymentRequest) (bool, error) {
	if c.delay > 0 {
		t := time.NewTimer(c.delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
	c.printer.Printf("Did the payment of %s %s for order %s succeed? [y/N] ",
		req.Currency, req.Amount.StringFixed(2), req.OrderID)
	answer, err := c.prompt.Next(ctx)
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
