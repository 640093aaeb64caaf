//go:build integration

package containers

import (
	"context"
	"os"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

const defaultRedisImage = "redis:7-alpine"

// RedisContainer is a throwaway Redis for the product cache, rate limiter
// and last-order slot integration tests.
type RedisContainer struct {
	Container testcontainers.Container
	URL       string
	Client    *redis.Client
}

// NewRedisContainer starts Redis. TEST_REDIS_IMAGE overrides the image.
func NewRedisContainer(t *testing.T) *RedisContainer {
	t.Helper()
	ctx := context.Background()

	image := os.Getenv("TEST_REDIS_IMAGE")
	if image == "" {
		image = defaultRedisImage
	}
	container, err := tcredis.Run(ctx, image)
	if err != nil {
		t.Fatalf("start redis container (%s): %v", image, err)
	}

	url, err := container.ConnectionString(ctx)
	if err == nil {
		var opts *redis.Options
		if opts, err = redis.ParseURL(url); err == nil {
			client := redis.NewClient(opts)
			if err = client.Ping(ctx).Err(); err == nil {
				return &RedisContainer{Container: container, URL: url, Client: client}
			}
			_ = client.Close()
		}
	}
	_ = container.Terminate(ctx)
	t.Fatalf("connect to redis container: %v", err)
	return nil
}

// FlushAll removes every key. Suites call it from SetupTest.
func (r *RedisContainer) FlushAll(ctx context.Context) error {
	return r.Client.FlushAll(ctx).Err()
}

// Keys lists keys matching pattern, for assertions on key layout.
func (r *RedisContainer) Keys(ctx context.Context, pattern string) ([]string, error) {
	return r.Client.Keys(ctx, pattern).Result()
}
