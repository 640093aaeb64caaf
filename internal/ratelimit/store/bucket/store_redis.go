package bucket

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"tiptap/internal/ratelimit/models"
)

const redisKeyPrefix = "tiptap:ratelimit:"

// slidingWindowScript trims the sorted set to the window, then admits the
// request when there is room. Returns {allowed, count, oldest_ms}.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
local allowed = 0
if count < limit then
  redis.call('ZADD', key, now, ARGV[4])
  count = count + 1
  allowed = 1
end
redis.call('PEXPIRE', key, window)

local oldest = now
local first = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
if #first == 2 then
  oldest = tonumber(first[2])
end
return {allowed, count, oldest}
`)

// RedisBucketStore shares sliding windows between server instances.
type RedisBucketStore struct {
	client redis.Scripter
	now    func() time.Time
}

func NewRedis(client redis.Scripter) *RedisBucketStore {
	return &RedisBucketStore{client: client, now: time.Now}
}

// Allow records one request against key if the window has room.
func (s *RedisBucketStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.Result, error) {
	now := s.now()
	vals, err := slidingWindowScript.Run(ctx, s.client,
		[]string{redisKeyPrefix + key},
		now.UnixMilli(), window.Milliseconds(), limit, uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("rate limit script: %w", err)
	}
	if len(vals) != 3 {
		return nil, fmt.Errorf("rate limit script: unexpected reply length %d", len(vals))
	}

	resetAt := time.UnixMilli(vals[2]).Add(window)
	if vals[0] == 1 {
		return &models.Result{
			Allowed:   true,
			Limit:     limit,
			Remaining: limit - int(vals[1]),
			ResetAt:   resetAt,
		}, nil
	}
	return &models.Result{
		Allowed:    false,
		Limit:      limit,
		Remaining:  0,
		ResetAt:    resetAt,
		RetryAfter: retryAfter(now, resetAt),
	}, nil
}
