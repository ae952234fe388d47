package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vibeai/backend/internal/cache"
)

const redisKeyPrefix = "ratelimit:"

// incrementScript applies the fixed-window algorithm in one round trip.
// Returns {count, pttl, allowed}.
var incrementScript = redis.NewScript(`
local max = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local count = redis.call('GET', KEYS[1])
local ttl = redis.call('PTTL', KEYS[1])
if (not count) or ttl < 0 then
  redis.call('SET', KEYS[1], 1, 'PX', window)
  return {1, window, 1}
end
count = tonumber(count)
if count >= max then
  return {count, ttl, 0}
end
count = redis.call('INCR', KEYS[1])
return {count, ttl, 1}
`)

// RedisStore keeps counters in Redis so every instance shares them
type RedisStore struct {
	client *cache.RedisClient
	now    func() time.Time
}

// NewRedisStore creates a store on top of the shared Redis client
func NewRedisStore(client *cache.RedisClient) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

// Increment implements Store
func (s *RedisStore) Increment(ctx context.Context, key string, max int, window time.Duration) (Record, bool, error) {
	res, err := s.client.RunScript(ctx, incrementScript, []string{redisKeyPrefix + key}, max, window.Milliseconds())
	if err != nil {
		return Record{}, false, fmt.Errorf("rate limit increment %q: %w", key, err)
	}

	vals, ok := res.([]interface{})
	if !ok || len(vals) != 3 {
		return Record{}, false, fmt.Errorf("rate limit increment %q: unexpected reply %v", key, res)
	}
	count, _ := vals[0].(int64)
	ttl, _ := vals[1].(int64)
	allowed, _ := vals[2].(int64)

	return Record{
		Key:     key,
		Count:   int(count),
		ResetAt: s.now().Add(time.Duration(ttl) * time.Millisecond),
	}, allowed == 1, nil
}

// Get implements Store
func (s *RedisStore) Get(ctx context.Context, key string) (Record, bool, error) {
	raw, err := s.client.Get(ctx, redisKeyPrefix+key)
	if errors.Is(err, cache.ErrNil) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("rate limit get %q: %w", key, err)
	}

	var count int
	if _, err := fmt.Sscan(raw, &count); err != nil {
		return Record{}, false, fmt.Errorf("rate limit get %q: %w", key, err)
	}

	ttl, err := s.client.PTTL(ctx, redisKeyPrefix+key)
	if err != nil {
		return Record{}, false, fmt.Errorf("rate limit ttl %q: %w", key, err)
	}
	if ttl <= 0 {
		return Record{}, false, nil
	}

	return Record{Key: key, Count: count, ResetAt: s.now().Add(ttl)}, true, nil
}

// Expire implements Store
func (s *RedisStore) Expire(ctx context.Context, key string) error {
	return s.client.Del(ctx, redisKeyPrefix+key)
}
