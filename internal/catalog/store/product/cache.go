package product

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"tiptap/internal/catalog/models"
)

const keyPrefix = "tiptap:product:"

// Store is the persistence surface the cache decorates.
type Store interface {
	Create(ctx context.Context, p *models.Product) error
	FindByID(ctx context.Context, id string) (*models.Product, error)
	List(ctx context.Context, filter models.Filter) ([]*models.Product, error)
	UpdateStock(ctx context.Context, id string, stock int) (*models.Product, error)
	Delete(ctx context.Context, id string) error
	ReplaceAll(ctx context.Context, products []*models.Product) error
	Count(ctx context.Context) (int, error)
}

// cacheClient is the subset of *redis.Client the cache needs.
type cacheClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
}

// CachedStore serves FindByID from Redis and invalidates on writes.
// Redis failures are logged and fall through to the wrapped store.
type CachedStore struct {
	next   Store
	client cacheClient
	ttl    time.Duration
	logger *slog.Logger
}

// CacheOption configures a CachedStore.
type CacheOption func(*CachedStore)

// WithCacheTTL sets the entry lifetime.
func WithCacheTTL(ttl time.Duration) CacheOption {
	return func(c *CachedStore) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithCacheLogger sets the logger for degraded-cache warnings.
func WithCacheLogger(logger *slog.Logger) CacheOption {
	return func(c *CachedStore) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCached wraps next with a Redis read-through cache.
func NewCached(next Store, client cacheClient, opts ...CacheOption) *CachedStore {
	c := &CachedStore{
		next:   next,
		client: client,
		ttl:    5 * time.Minute,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func cacheKey(id string) string {
	return keyPrefix + normalizeID(id)
}

func (c *CachedStore) FindByID(ctx context.Context, id string) (*models.Product, error) {
	key := cacheKey(id)
	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var p models.Product
		if jsonErr := json.Unmarshal(raw, &p); jsonErr == nil {
			return &p, nil
		}
		c.logger.WarnContext(ctx, "discarding corrupt product cache entry", "key", key)
	case !errors.Is(err, redis.Nil):
		c.logger.WarnContext(ctx, "product cache read failed", "key", key, "error", err)
	}

	p, err := c.next.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.store(ctx, p)
	return p, nil
}

func (c *CachedStore) store(ctx context.Context, p *models.Product) {
	data, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, cacheKey(p.ID), data, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "product cache write failed", "id", p.ID, "error", err)
	}
}

func (c *CachedStore) evict(ctx context.Context, ids ...string) {
	if len(ids) == 0 {
		return
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = cacheKey(id)
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.WarnContext(ctx, "product cache evict failed", "keys", keys, "error", err)
	}
}

func (c *CachedStore) Create(ctx context.Context, p *models.Product) error {
	if err := c.next.Create(ctx, p); err != nil {
		return err
	}
	c.evict(ctx, p.ID)
	return nil
}

func (c *CachedStore) List(ctx context.Context, filter models.Filter) ([]*models.Product, error) {
	return c.next.List(ctx, filter)
}

func (c *CachedStore) UpdateStock(ctx context.Context, id string, stock int) (*models.Product, error) {
	p, err := c.next.UpdateStock(ctx, id, stock)
	if err != nil {
		return nil, err
	}
	c.evict(ctx, id)
	return p, nil
}

func (c *CachedStore) Delete(ctx context.Context, id string) error {
	if err := c.next.Delete(ctx, id); err != nil {
		return err
	}
	c.evict(ctx, id)
	return nil
}

// ReplaceAll replaces the backing store and then clears every cached product.
func (c *CachedStore) ReplaceAll(ctx context.Context, products []*models.Product) error {
	if err := c.next.ReplaceAll(ctx, products); err != nil {
		return err
	}
	c.flush(ctx)
	return nil
}

func (c *CachedStore) Count(ctx context.Context) (int, error) {
	return c.next.Count(ctx)
}

func (c *CachedStore) flush(ctx context.Context) {
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, keyPrefix+"*", 100).Result()
		if err != nil {
			c.logger.WarnContext(ctx, "product cache scan failed", "error", err)
			return
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				c.logger.WarnContext(ctx, "product cache flush failed", "error", err)
				return
			}
		}
		if next == 0 {
			return
		}
		cursor = next
	}
}
