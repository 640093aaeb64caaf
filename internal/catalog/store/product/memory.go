package product

import (
	"context"
	"sort"
	"strings"
	"sync"

	"tiptap/internal/catalog/models"
	"tiptap/pkg/platform/sentinel"
)

// InMemory is a map-backed product store used when no database is configured.
type InMemory struct {
	mu       sync.RWMutex
	products map[string]*models.Product
}

// NewInMemory returns an empty store.
func NewInMemory() *InMemory {
	return &InMemory{products: make(map[string]*models.Product)}
}

func normalizeID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// Create stores p, failing with sentinel.ErrAlreadyUsed when the ID exists.
func (s *InMemory) Create(_ context.Context, p *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := normalizeID(p.ID)
	if _, ok := s.products[id]; ok {
		return sentinel.ErrAlreadyUsed
	}
	c := p.Clone()
	c.ID = id
	s.products[id] = c
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id string) (*models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[normalizeID(id)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return p.Clone(), nil
}

// List returns matching products ordered by ID.
func (s *InMemory) List(_ context.Context, filter models.Filter) ([]*models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Product, 0, len(s.products))
	for _, p := range s.products {
		if filter.Matches(p) {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *InMemory) UpdateStock(_ context.Context, id string, stock int) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[normalizeID(id)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	p.Stock = &stock
	return p.Clone(), nil
}

func (s *InMemory) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := normalizeID(id)
	if _, ok := s.products[key]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.products, key)
	return nil
}

// ReplaceAll drops every product and stores products in their place.
func (s *InMemory) ReplaceAll(_ context.Context, products []*models.Product) error {
	next := make(map[string]*models.Product, len(products))
	for _, p := range products {
		c := p.Clone()
		c.ID = normalizeID(c.ID)
		next[c.ID] = c
	}
	s.mu.Lock()
	s.products = next
	s.mu.Unlock()
	return nil
}

// Count returns the number of stored products.
func (s *InMemory) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.products), nil
}
