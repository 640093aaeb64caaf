package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	dErrors "tiptap/pkg/domain-errors"
)

// Status is the order lifecycle position.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// ParseStatus normalizes s into a known Status.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusPending, StatusCompleted, StatusFailed:
		return st, nil
	default:
		return "", dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown order status %q", s))
	}
}

// CanTransitionTo reports whether an order in s may move to next. Pending
// orders settle once; setting the current status again is a no-op.
func (s Status) CanTransitionTo(next Status) bool {
	if s == next {
		return true
	}
	return s == StatusPending && (next == StatusCompleted || next == StatusFailed)
}

// Line is one purchased product, priced at checkout time.
type Line struct {
	ProductID string          `json:"productId" db:"product_id"`
	Name      string          `json:"name" db:"name"`
	Price     decimal.Decimal `json:"price" db:"price"`
	Quantity  int             `json:"quantity" db:"quantity"`
}

// Subtotal is price × quantity.
func (l Line) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Order is an immutable record of a completed checkout; only Status changes.
type Order struct {
	ID            string          `json:"id"`
	Lines         []Line          `json:"items"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Tax           decimal.Decimal `json:"tax"`
	Total         decimal.Decimal `json:"total"`
	PaymentMethod string          `json:"paymentMethod"`
	Status        Status          `json:"status"`
	CreatedAt     time.Time       `json:"date"`
}

// Clone returns a copy with its own line slice.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	c.Lines = append([]Line(nil), o.Lines...)
	return &c
}

// ItemCount is the total quantity across lines.
func (o *Order) ItemCount() int {
	n := 0
	for _, l := range o.Lines {
		n += l.Quantity
	}
	return n
}

// SumLines adds up line subtotals.
func SumLines(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// ComputeTax applies rate to subtotal and rounds to whole currency units,
// half away from zero.
func ComputeTax(subtotal, rate decimal.Decimal) decimal.Decimal {
	return subtotal.Mul(rate).Round(0)
}

// NewID returns a fresh order identifier. Terminals and the server draw
// from the same random space, so IDs minted on different terminals in the
// same instant do not collide.
func NewID() string {
	return "ORD-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
}
