package product

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tiptap/pkg/platform/sentinel"
)

// fakeRedis is an in-process cacheClient. When down is set every call fails.
type fakeRedis struct {
	mu   sync.Mutex
	data map[string]string
	down bool
	gets int
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: make(map[string]string)}
}

var errRedisDown = errors.New("connection refused")

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if f.down {
		return redis.NewStringResult("", errRedisDown)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return redis.NewStatusResult("", errRedisDown)
	}
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	case string:
		f.data[key] = v
	}
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return redis.NewIntResult(0, errRedisDown)
	}
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (f *fakeRedis) Scan(_ context.Context, _ uint64, match string, _ int64) *redis.ScanCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return redis.NewScanCmdResult(nil, 0, errRedisDown)
	}
	prefix := strings.TrimSuffix(match, "*")
	var keys []string
	for k := range f.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return redis.NewScanCmdResult(keys, 0, nil)
}

func (f *fakeRedis) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.data[key]
	return ok
}

func newCachedFixture(t *testing.T) (*CachedStore, *InMemory, *fakeRedis) {
	t.Helper()
	inner := NewInMemory()
	require.NoError(t, inner.Create(context.Background(), newProduct("FOOD001", "Coca Cola", "Beverages")))
	client := newFakeRedis()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewCached(inner, client, WithCacheTTL(time.Minute), WithCacheLogger(logger)), inner, client
}

func TestCachedStoreReadThrough(t *testing.T) {
	ctx := context.Background()
	store, inner, client := newCachedFixture(t)

	p, err := store.FindByID(ctx, "food001")
	require.NoError(t, err)
	assert.Equal(t, "Coca Cola", p.Name)
	assert.True(t, client.has("tiptap:product:FOOD001"))

	// A cached entry is served even after the backing row changes.
	_, err = inner.UpdateStock(ctx, "FOOD001", 3)
	require.NoError(t, err)
	cached, err := store.FindByID(ctx, "FOOD001")
	require.NoError(t, err)
	assert.Nil(t, cached.Stock)
}

func TestCachedStoreEvictsOnWrite(t *testing.T) {
	ctx := context.Background()
	store, _, client := newCachedFixture(t)

	_, err := store.FindByID(ctx, "FOOD001")
	require.NoError(t, err)

	updated, err := store.UpdateStock(ctx, "FOOD001", 7)
	require.NoError(t, err)
	assert.Equal(t, 7, *updated.Stock)
	assert.False(t, client.has("tiptap:product:FOOD001"))

	fresh, err := store.FindByID(ctx, "FOOD001")
	require.NoError(t, err)
	require.NotNil(t, fresh.Stock)
	assert.Equal(t, 7, *fresh.Stock)

	require.NoError(t, store.Delete(ctx, "FOOD001"))
	_, err = store.FindByID(ctx, "FOOD001")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestCachedStoreReplaceAllFlushes(t *testing.T) {
	ctx := context.Background()
	store, _, client := newCachedFixture(t)

	_, err := store.FindByID(ctx, "FOOD001")
	require.NoError(t, err)
	require.NoError(t, store.ReplaceAll(ctx, nil))

	assert.False(t, client.has("tiptap:product:FOOD001"))
	_, err = store.FindByID(ctx, "FOOD001")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestCachedStoreDegradesWhenRedisDown(t *testing.T) {
	ctx := context.Background()
	store, _, client := newCachedFixture(t)
	client.down = true

	p, err := store.FindByID(ctx, "FOOD001")
	require.NoError(t, err)
	assert.Equal(t, "Coca Cola", p.Name)

	_, err = store.UpdateStock(ctx, "FOOD001", 1)
	require.NoError(t, err)
}

func TestCachedStoreDiscardsCorruptEntry(t *testing.T) {
	ctx := context.Background()
	store, _, client := newCachedFixture(t)
	client.data["tiptap:product:FOOD001"] = "{not json"

	p, err := store.FindByID(ctx, "FOOD001")
	require.NoError(t, err)
	assert.Equal(t, "Coca Cola", p.Name)

	var stored map[string]any
	require.NoError(t, json.Unmarshal([]byte(client.data["tiptap:product:FOOD001"]), &stored))
	assert.Equal(t, "FOOD001", stored["id"])
}
