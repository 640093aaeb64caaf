// Package checkout turns a cart into a paid, recorded order.
package checkout

import (
	"errors"

	"github.com/shopspring/decimal"

	"tiptap/internal/cart"
	"tiptap/internal/order/models"
)

// ErrEmptyCart is returned when checkout is attempted with nothing in the cart.
var ErrEmptyCart = errors.New("cart is empty")

// Totals is the priced view of a cart.
type Totals struct {
	Subtotal  decimal.Decimal
	Tax       decimal.Decimal
	Total     decimal.Decimal
	ItemCount int
	Lines     []models.Line
}

// ComputeTotals prices one snapshot of c. Tax is rounded to whole currency
// units once, before it is added to the subtotal.
func ComputeTotals(c *cart.Cart, taxRate decimal.Decimal) (Totals, error) {
	items := c.Items()
	if len(items) == 0 {
		return Totals{}, ErrEmptyCart
	}
	lines := make([]models.Line, len(items))
	count := 0
	for i, it := range items {
		lines[i] = models.Line{
			ProductID: it.Product.ID,
			Name:      it.Product.Name,
			Price:     it.Product.Price,
			Quantity:  it.Quantity,
		}
		count += it.Quantity
	}
	subtotal := models.SumLines(lines)
	tax := models.ComputeTax(subtotal, taxRate)
	return Totals{
		Subtotal:  subtotal,
		Tax:       tax,
		Total:     subtotal.Add(tax),
		ItemCount: count,
		Lines:     lines,
	}, nil
}
