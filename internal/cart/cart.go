// Package cart holds the terminal's add-once shopping cart.
package cart

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"tiptap/internal/catalog/models"
)

var (
	// ErrDuplicate is returned by AddOnce when the product is already in the cart.
	ErrDuplicate = errors.New("product already in cart")
	// ErrNotInCart is returned by quantity operations on an absent product.
	ErrNotInCart = errors.New("product not in cart")
	// ErrInvalidQuantity is returned for negative quantities.
	ErrInvalidQuantity = errors.New("quantity must not be negative")
)

// Line is one product and its quantity. Quantity is always at least 1.
type Line struct {
	Product  *models.Product
	Quantity int
}

// Subtotal is price × quantity.
func (l Line) Subtotal() decimal.Decimal {
	return l.Product.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart holds at most one line per product ID in insertion order.
// All methods are safe for concurrent use.
type Cart struct {
	mu    sync.Mutex
	lines []*Line
	index map[string]int
}

// New returns an empty cart.
func New() *Cart {
	return &Cart{index: make(map[string]int)}
}

func key(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// AddOnce appends the product with quantity 1, or returns ErrDuplicate and
// leaves the cart unchanged if it is already present.
func (c *Cart) AddOnce(p *models.Product) error {
	if p == nil {
		return fmt.Errorf("add to cart: nil product")
	}
	k := key(p.ID)
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.index[k]; ok {
		return ErrDuplicate
	}
	c.index[k] = len(c.lines)
	c.lines = append(c.lines, &Line{Product: p, Quantity: 1})
	return nil
}

// SetQuantity sets an explicit quantity; 0 removes the line.
func (c *Cart) SetQuantity(id string, n int) error {
	if n < 0 {
		return ErrInvalidQuantity
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	i, ok := c.index[key(id)]
	if !ok {
		return ErrNotInCart
	}
	if n == 0 {
		c.removeAt(i)
		return nil
	}
	c.lines[i].Quantity = n
	return nil
}

// Increment adds one to the line's quantity.
func (c *Cart) Increment(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	i, ok := c.index[key(id)]
	if !ok {
		return ErrNotInCart
	}
	c.lines[i].Quantity++
	return nil
}

// Decrement subtracts one; reaching zero removes the line.
func (c *Cart) Decrement(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	i, ok := c.index[key(id)]
	if !ok {
		return ErrNotInCart
	}
	if c.lines[i].Quantity <= 1 {
		c.removeAt(i)
		return nil
	}
	c.lines[i].Quantity--
	return nil
}

// Subtract takes n units off the line, removing it when nothing is left.
// Subtracting from an absent product is a no-op.
func (c *Cart) Subtract(id string, n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i, ok := c.index[key(id)]
	if !ok || n <= 0 {
		return
	}
	if c.lines[i].Quantity <= n {
		c.removeAt(i)
		return
	}
	c.lines[i].Quantity -= n
}

// Remove deletes the line. Removing an absent product is a no-op.
func (c *Cart) Remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i, ok := c.index[key(id)]; ok {
		c.removeAt(i)
	}
}

// removeAt must be called with mu held.
func (c *Cart) removeAt(i int) {
	delete(c.index, key(c.lines[i].Product.ID))
	c.lines = append(c.lines[:i], c.lines[i+1:]...)
	for j := i; j < len(c.lines); j++ {
		c.index[key(c.lines[j].Product.ID)] = j
	}
}

// Has reports whether the product is in the cart.
func (c *Cart) Has(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.index[key(id)]
	return ok
}

// Quantity returns the line quantity, or 0 when absent.
func (c *Cart) Quantity(id string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i, ok := c.index[key(id)]; ok {
		return c.lines[i].Quantity
	}
	return 0
}

// Items returns a snapshot of the lines in insertion order.
func (c *Cart) Items() []Line {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Line, len(c.lines))
	for i, l := range c.lines {
		out[i] = *l
	}
	return out
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.mu.Lock()
	c.lines = nil
	c.index = make(map[string]int)
	c.mu.Unlock()
}

// Total is the sum of price × quantity over all lines.
func (c *Cart) Total() decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := decimal.Zero
	for _, l := range c.lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// ItemCount is the sum of quantities.
func (c *Cart) ItemCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, l := range c.lines {
		n += l.Quantity
	}
	return n
}

// Len is the number of distinct products.
func (c *Cart) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lines)
}
