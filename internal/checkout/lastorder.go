package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"tiptap/internal/order/models"
)

// ErrNoLastOrder is returned by Load before any checkout has completed.
var ErrNoLastOrder = errors.New("no completed order")

// LastOrderSlot keeps the most recent completed order for invoice display.
// It holds one order; Save replaces the previous one.
type LastOrderSlot interface {
	Save(ctx context.Context, o *models.Order) error
	Load(ctx context.Context) (*models.Order, error)
}

// MemorySlot is a process-local LastOrderSlot.
type MemorySlot struct {
	mu    sync.RWMutex
	order *models.Order
}

func NewMemorySlot() *MemorySlot {
	return &MemorySlot{}
}

func (s *MemorySlot) Save(_ context.Context, o *models.Order) error {
	s.mu.Lock()
	s.order = o.Clone()
	s.mu.Unlock()
	return nil
}

func (s *MemorySlot) Load(_ context.Context) (*models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.order == nil {
		return nil, ErrNoLastOrder
	}
	return s.order.Clone(), nil
}

const lastOrderKeyPrefix = "tiptap:last_order:"

// slotClient is the subset of *redis.Client the slot needs.
type slotClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// RedisSlot persists the last order under one key per terminal so it
// survives kiosk restarts.
type RedisSlot struct {
	client slotClient
	key    string
}

// NewRedisSlot stores the slot for terminalID.
func NewRedisSlot(client slotClient, terminalID string) *RedisSlot {
	return &RedisSlot{client: client, key: lastOrderKeyPrefix + terminalID}
}

func (s *RedisSlot) Save(ctx context.Context, o *models.Order) error {
	data, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("marshal last order: %w", err)
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("save last order: %w", err)
	}
	return nil
}

func (s *RedisSlot) Load(ctx context.Context) (*models.Order, error) {
	raw, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoLastOrder
	}
	if err != nil {
		return nil, fmt.Errorf("load last order: %w", err)
	}
	var o models.Order
	if err := json.Unmarshal(raw, &o); err != nil {
		return nil, fmt.Errorf("decode last order: %w", err)
	}
	return &o, nil
}
