package models

import (
	"strings"

	"github.com/shopspring/decimal"

	dErrors "tiptap/pkg/domain-errors"
)

// LineRequest is one item of an order submission.
type LineRequest struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

// CreateOrderRequest is the body of POST /api/orders. Subtotal, Tax and
// Total are optional; when present they must agree with the items.
type CreateOrderRequest struct {
	ID            string           `json:"id"`
	Items         []LineRequest    `json:"items"`
	Subtotal      *decimal.Decimal `json:"subtotal,omitempty"`
	Tax           *decimal.Decimal `json:"tax,omitempty"`
	Total         *decimal.Decimal `json:"total,omitempty"`
	PaymentMethod string           `json:"paymentMethod"`
	Status        string           `json:"status"`
}

// Validate normalizes identifiers and checks every line.
func (r *CreateOrderRequest) Validate() error {
	r.ID = strings.ToUpper(r.ID)
	if len(r.Items) == 0 {
		return dErrors.New(dErrors.CodeValidation, "order must contain at least one item")
	}
	for i := range r.Items {
		item := &r.Items[i]
		item.ID = strings.ToUpper(strings.TrimSpace(item.ID))
		item.Name = strings.TrimSpace(item.Name)
		if item.ID == "" {
			return dErrors.New(dErrors.CodeValidation, "item id is required")
		}
		if item.Quantity < 1 {
			return dErrors.New(dErrors.CodeValidation, "item quantity must be at least 1")
		}
		if item.Price.IsNegative() {
			return dErrors.New(dErrors.CodeValidation, "item price must not be negative")
		}
	}
	if r.PaymentMethod == "" {
		r.PaymentMethod = "unknown"
	}
	if r.Status == "" {
		r.Status = string(StatusCompleted)
	}
	_, err := ParseStatus(r.Status)
	return err
}

// Lines converts the items into order lines.
func (r *CreateOrderRequest) Lines() []Line {
	lines := make([]Line, len(r.Items))
	for i, item := range r.Items {
		lines[i] = Line{ProductID: item.ID, Name: item.Name, Price: item.Price, Quantity: item.Quantity}
	}
	return lines
}

// UpdateStatusRequest is the body of PUT /api/order/{id}/status.
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

func (r *UpdateStatusRequest) Validate() error {
	_, err := ParseStatus(r.Status)
	return err
}
