package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrPaymentDeclined is returned when payment fails or the customer cancels.
var ErrPaymentDeclined = errors.New("payment declined")

// PaymentRequest describes one charge.
type PaymentRequest struct {
	OrderID  string
	Amount   decimal.Decimal
	Currency string
	Note     string
}

// PaymentMethod charges the customer. Pay returns nil on success and an
// error wrapping ErrPaymentDeclined on decline or cancellation.
type PaymentMethod interface {
	Name() string
	Pay(ctx context.Context, req PaymentRequest) error
}

// Mock approves every payment after a fixed delay.
type Mock struct {
	delay time.Duration
}

// NewMock returns a demo payment method.
func NewMock(delay time.Duration) *Mock {
	return &Mock{delay: delay}
}

func (m *Mock) Name() string {
	return "Demo Payment"
}

// Pay waits for the simulated processing delay. Cancelling ctx declines.
func (m *Mock) Pay(ctx context.Context, _ PaymentRequest) error {
	if m.delay <= 0 {
		return nil
	}
	t := time.NewTimer(m.delay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrPaymentDeclined, ctx.Err())
	}
}

// Launcher hands a payment URI to the device (browser, UPI app, QR display).
type Launcher interface {
	Launch(ctx context.Context, uri string) error
}

// Confirmer asks the customer whether an unverifiable payment went through.
type Confirmer interface {
	Confirm(ctx context.Context, req PaymentRequest) (bool, error)
}

// UPIConfig names the merchant receiving UPI payments.
type UPIConfig struct {
	Payee     string
	PayeeName string
	Currency  string
}

// UPIDeepLink launches a upi://pay intent. The terminal cannot observe the
// outcome, so success is whatever the customer reports.
type UPIDeepLink struct {
	cfg       UPIConfig
	launcher  Launcher
	confirmer Confirmer
}

func NewUPIDeepLink(cfg UPIConfig, launcher Launcher, confirmer Confirmer) *UPIDeepLink {
	if cfg.Currency == "" {
		cfg.Currency = "INR"
	}
	return &UPIDeepLink{cfg: cfg, launcher: launcher, confirmer: confirmer}
}

func (u *UPIDeepLink) Name() string {
	return "UPI Payment"
}

// URI builds the payment intent for req.
func (u *UPIDeepLink) URI(req PaymentRequest) string {
	currency := req.Currency
	if currency == "" {
		currency = u.cfg.Currency
	}
	params := [][2]string{
		{"pa", u.cfg.Payee},
		{"pn", u.cfg.PayeeName},
		{"am", req.Amount.StringFixed(2)},
		{"tn", req.Note},
		{"cu", currency},
	}
	parts := make([]string, 0, len(params))
	for _, p := range params {
		parts = append(parts, p[0]+"="+escape(p[1]))
	}
	return "upi://pay?" + strings.Join(parts, "&")
}

func escape(v string) string {
	return strings.ReplaceAll(url.QueryEscape(v), "+", "%20")
}

// Pay launches the intent and waits for the customer's answer.
func (u *UPIDeepLink) Pay(ctx context.Context, req PaymentRequest) error {
	if err := u.launcher.Launch(ctx, u.URI(req)); err != nil {
		return fmt.Errorf("%w: launch upi intent: %w", ErrPaymentDeclined, err)
	}
	ok, err := u.confirmer.Confirm(ctx, req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPaymentDeclined, err)
	}
	if !ok {
		return ErrPaymentDeclined
	}
	return nil
}
