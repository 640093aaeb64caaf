package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tiptap/internal/platform/config"
)

func TestOptionsOverlaysConfig(t *testing.T) {
	opts, err := Options(config.RedisConfig{
		URL:          "redis://:secret@cache.internal:6380/2",
		PoolSize:     20,
		MinIdleConns: 4,
		DialTimeout:  time.Second,
		ReadTimeout:  2 * time.Second,
	})
	require.NoError(t, err)

	assert.Equal(t, "cache.internal:6380", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 20, opts.PoolSize)
	assert.Equal(t, 4, opts.MinIdleConns)
	assert.Equal(t, time.Second, opts.DialTimeout)
	assert.Equal(t, 2*time.Second, opts.ReadTimeout)
}

func TestOptionsRejectsBadURL(t *testing.T) {
	_, err := Options(config.RedisConfig{URL: "http://cache.internal"})
	assert.Error(t, err)
}

func TestNewWithoutURLIsDisabled(t *testing.T) {
	c, err := New(context.Background(), config.RedisConfig{})
	assert.NoError(t, err)
	assert.Nil(t, c)
}
