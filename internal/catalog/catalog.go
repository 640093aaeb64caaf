// Package catalog resolves product identifiers for the scanning terminal.
//
// Catalog is the single lookup surface: the remote HTTP client, the local
// fallback table and test doubles all implement it.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"tiptap/internal/catalog/models"
)

// ErrNotFound is returned by Resolve when the identifier is unknown.
var ErrNotFound = errors.New("product not found")

// Catalog looks up products by identifier and lists or searches the catalog.
type Catalog interface {
	Resolve(ctx context.Context, id string) (*models.Product, error)
	ListAll(ctx context.Context) ([]*models.Product, error)
	Search(ctx context.Context, filter models.Filter) ([]*models.Product, error)
}

// TransportError wraps failures reaching the catalog backend. It never
// wraps ErrNotFound.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("catalog %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransport reports whether err is a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// Local is an in-memory Catalog backed by a fixed product table.
type Local struct {
	mu       sync.RWMutex
	products map[string]*models.Product
}

// NewLocal builds a Local catalog from products. IDs are matched
// case-insensitively.
func NewLocal(products []*models.Product) *Local {
	l := &Local{products: make(map[string]*models.Product, len(products))}
	for _, p := range products {
		l.products[strings.ToUpper(p.ID)] = p.Clone()
	}
	return l
}

// Resolve returns a copy of the product or ErrNotFound.
func (l *Local) Resolve(_ context.Context, id string) (*models.Product, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, ok := l.products[strings.ToUpper(strings.TrimSpace(id))]
	if !ok {
		return nil, ErrNotFound
	}
	return p.Clone(), nil
}

// ListAll returns every product ordered by ID.
func (l *Local) ListAll(ctx context.Context) ([]*models.Product, error) {
	return l.Search(ctx, models.Filter{})
}

// Search returns products matching filter ordered by ID.
func (l *Local) Search(_ context.Context, filter models.Filter) ([]*models.Product, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*models.Product, 0, len(l.products))
	for _, p := range l.products {
		if filter.Matches(p) {
			out = append(out, p.Clone())
		}
	}
	SortByID(out)
	return out, nil
}

// Replace swaps the whole table, e.g. after a successful remote listing.
func (l *Local) Replace(products []*models.Product) {
	next := make(map[string]*models.Product, len(products))
	for _, p := range products {
		next[strings.ToUpper(p.ID)] = p.Clone()
	}
	l.mu.Lock()
	l.products = next
	l.mu.Unlock()
}

// SortByID orders products by identifier.
func SortByID(products []*models.Product) {
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
}
