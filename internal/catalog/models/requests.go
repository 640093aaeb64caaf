package models

import (
	"strings"

	"github.com/shopspring/decimal"

	dErrors "tiptap/pkg/domain-errors"
)

// CreateProductRequest is the body of POST /api/products.
type CreateProductRequest struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Image       string          `json:"image"`
	Stock       *int            `json:"stock"`
}

// Validate normalizes the ID and checks required fields.
func (r *CreateProductRequest) Validate() error {
	r.ID = strings.ToUpper(r.ID)
	return r.Product().Validate()
}

// Product converts the request into a Product.
func (r *CreateProductRequest) Product() *Product {
	return &Product{
		ID:          r.ID,
		Name:        r.Name,
		Price:       r.Price,
		Category:    r.Category,
		Description: r.Description,
		Image:       r.Image,
		Stock:       r.Stock,
	}
}

// UpdateStockRequest is the body of PUT /api/product/{id}/stock.
type UpdateStockRequest struct {
	Stock *int `json:"stock"`
}

// Validate requires a non-negative stock value.
func (r *UpdateStockRequest) Validate() error {
	if r.Stock == nil {
		return dErrors.New(dErrors.CodeValidation, "stock is required")
	}
	if *r.Stock < 0 {
		return dErrors.New(dErrors.CodeValidation, "stock must not be negative")
	}
	return nil
}
