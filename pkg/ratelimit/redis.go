package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// slidingWindowScript trims the sorted set to the window, then admits and
// records the hit only when the remaining count is under the limit. Running
// as one script keeps read-check-append atomic across replicas.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local max = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '-inf', '(' .. (now - window))
local count = redis.call('ZCARD', key)
if count >= max then
  return 0
end

redis.call('ZADD', key, now, member)
redis.call('PEXPIRE', key, window)
return 1
`)

// RedisSlidingWindow is a Redis-backed limiter with the same admission
// predicate as SlidingWindow, shared by every instance using the same Redis.
type RedisSlidingWindow struct {
	redis  *redis.Client
	config Config
	prefix string
	now    func() time.Time
}

// NewRedisSlidingWindow creates a new Redis-backed limiter
func NewRedisSlidingWindow(client *redis.Client, config Config, prefix string) *RedisSlidingWindow {
	if prefix == "" {
		prefix = "ratelimit:share-entry"
	}
	return &RedisSlidingWindow{
		redis:  client,
		config: config.withDefaults(),
		prefix: prefix,
		now:    time.Now,
	}
}

// Allow records a hit for key if it is under the limit. Redis errors are
// returned to the caller, which rejects the request.
func (l *RedisSlidingWindow) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := fmt.Sprintf("%s:%s", l.prefix, key)
	nowMs := l.now().UnixMilli()

	result, err := slidingWindowScript.Run(ctx, l.redis,
		[]string{redisKey},
		nowMs,
		l.config.Window.Milliseconds(),
		l.config.MaxRequests,
		fmt.Sprintf("%d-%s", nowMs, uuid.NewString()),
	).Int()
	if err != nil {
		return false, fmt.Errorf("redis rate limit failed: %w", err)
	}

	return result == 1, nil
}

// Reset clears the window for a key
func (l *RedisSlidingWindow) Reset(ctx context.Context, key string) error {
	return l.redis.Del(ctx, fmt.Sprintf("%s:%s", l.prefix, key)).Err()
}
