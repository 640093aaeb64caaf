package order

import (
	"context"
	"sort"
	"strings"
	"sync"

	"tiptap/internal/order/models"
	"tiptap/pkg/platform/sentinel"
)

// InMemory keeps orders in a map. Listing is newest first.
type InMemory struct {
	mu     sync.RWMutex
	orders map[string]*models.Order
}

func NewInMemory() *InMemory {
	return &InMemory{orders: make(map[string]*models.Order)}
}

func normalizeID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// Create stores o, failing with sentinel.ErrAlreadyUsed when the ID exists.
func (s *InMemory) Create(_ context.Context, o *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := normalizeID(o.ID)
	if _, ok := s.orders[id]; ok {
		return sentinel.ErrAlreadyUsed
	}
	c := o.Clone()
	c.ID = id
	s.orders[id] = c
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id string) (*models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[normalizeID(id)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return o.Clone(), nil
}

// List returns up to limit orders, newest first. limit <= 0 returns all.
func (s *InMemory) List(_ context.Context, limit int) ([]*models.Order, error) {
	s.mu.RLock()
	out := make([]*models.Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, o.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// UpdateStatus moves the order to next, returning sentinel.ErrInvalidState
// when the transition is not allowed.
func (s *InMemory) UpdateStatus(_ context.Context, id string, next models.Status) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[normalizeID(id)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if !o.Status.CanTransitionTo(next) {
		return nil, sentinel.ErrInvalidState
	}
	o.Status = next
	return o.Clone(), nil
}
