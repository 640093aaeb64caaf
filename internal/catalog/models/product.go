package models

import (
	"strings"

	"github.com/shopspring/decimal"

	dErrors "tiptap/pkg/domain-errors"
)

// Product is a catalog entry. Price is in whole currency units with up to
// two decimal places; Stock is nil when inventory is not tracked.
type Product struct {
	ID          string          `json:"id" db:"id"`
	Name        string          `json:"name" db:"name"`
	Price       decimal.Decimal `json:"price" db:"price"`
	Category    string          `json:"category,omitempty" db:"category"`
	Description string          `json:"description,omitempty" db:"description"`
	Image       string          `json:"image,omitempty" db:"image"`
	Stock       *int            `json:"stock,omitempty" db:"stock"`
}

// Clone returns a deep copy so callers can't mutate shared entries.
func (p *Product) Clone() *Product {
	if p == nil {
		return nil
	}
	c := *p
	if p.Stock != nil {
		s := *p.Stock
		c.Stock = &s
	}
	return &c
}

// Validate checks the fields every stored product must satisfy.
func (p *Product) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return dErrors.New(dErrors.CodeValidation, "id is required")
	}
	if strings.TrimSpace(p.Name) == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if p.Price.IsNegative() {
		return dErrors.New(dErrors.CodeValidation, "price must not be negative")
	}
	if p.Stock != nil && *p.Stock < 0 {
		return dErrors.New(dErrors.CodeValidation, "stock must not be negative")
	}
	return nil
}

// Filter narrows a product listing. Empty fields match everything.
type Filter struct {
	Category string
	Query    string
}

// IsZero reports whether the filter matches everything.
func (f Filter) IsZero() bool {
	return strings.TrimSpace(f.Category) == "" && strings.TrimSpace(f.Query) == ""
}

// Matches applies a case-insensitive category equality and a substring
// search over ID, name and description.
func (f Filter) Matches(p *Product) bool {
	if c := strings.TrimSpace(f.Category); c != "" && !strings.EqualFold(c, p.Category) {
		return false
	}
	q := strings.ToLower(strings.TrimSpace(f.Query))
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(p.ID), q) ||
		strings.Contains(strings.ToLower(p.Name), q) ||
		strings.Contains(strings.ToLower(p.Description), q)
}
