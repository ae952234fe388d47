package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vibeai/backend/internal/logger"
	"github.com/vibeai/backend/internal/metrics"
	"go.uber.org/zap"
)

// ErrNil is returned when a key does not exist
var ErrNil = redis.Nil

// RedisClient wraps the redis.Client shared by the counter, history and
// replay stores
type RedisClient struct {
	client *redis.Client
}

// NewRedisClient creates and initializes a Redis client with connection pooling
func NewRedisClient(host string, port string, password string) (*RedisClient, error) {
	if host == "" {
		host = "localhost"
	}
	if port == "" {
		port = "6379"
	}

	addr := fmt.Sprintf("%s:%s", host, port)

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           0,
		MaxRetries:   3,
		PoolSize:     10,
		MinIdleConns: 5,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		DialTimeout:  5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.ErrorWithFields("Failed to connect to Redis", err)
		return nil, err
	}

	rc := &RedisClient{client: client}

	logger.Log.Info("Redis client connected",
		zap.String("address", addr),
	)

	return rc, nil
}

// Wrap adapts an existing client, used by tests against an in-process server
func Wrap(client *redis.Client) *RedisClient {
	return &RedisClient{client: client}
}

// Close closes the Redis connection gracefully
func (rc *RedisClient) Close() error {
	if rc == nil || rc.client == nil {
		return nil
	}
	return rc.client.Close()
}

// Ping tests the Redis connection
func (rc *RedisClient) Ping(ctx context.Context) error {
	return rc.client.Ping(ctx).Err()
}

// Get retrieves a value from Redis
func (rc *RedisClient) Get(ctx context.Context, key string) (string, error) {
	start := time.Now()
	v, err := rc.client.Get(ctx, key).Result()
	observe("get", start, err)
	return v, err
}

// SetNX stores a value only if the key is absent and reports whether it did
func (rc *RedisClient) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	start := time.Now()
	ok, err := rc.client.SetNX(ctx, key, value, ttl).Result()
	observe("setnx", start, err)
	return ok, err
}

// Del deletes one or more keys from Redis
func (rc *RedisClient) Del(ctx context.Context, keys ...string) error {
	start := time.Now()
	err := rc.client.Del(ctx, keys...).Err()
	observe("del", start, err)
	return err
}

// PTTL returns the remaining time-to-live for a key
func (rc *RedisClient) PTTL(ctx context.Context, key string) (time.Duration, error) {
	start := time.Now()
	ttl, err := rc.client.PTTL(ctx, key).Result()
	observe("pttl", start, err)
	return ttl, err
}

// LRange retrieves a range from a list
func (rc *RedisClient) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	t := time.Now()
	v, err := rc.client.LRange(ctx, key, start, stop).Result()
	observe("lrange", t, err)
	return v, err
}

// PushCapped prepends value to a list, keeps only the newest max entries and
// refreshes the list's expiry, all in one transaction
func (rc *RedisClient) PushCapped(ctx context.Context, key string, value interface{}, max int64, ttl time.Duration) error {
	start := time.Now()
	_, err := rc.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, value)
		pipe.LTrim(ctx, key, 0, max-1)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	observe("push_capped", start, err)
	return err
}

// RunScript executes a Lua script atomically
func (rc *RedisClient) RunScript(ctx context.Context, script *redis.Script, keys []string, args ...interface{}) (interface{}, error) {
	start := time.Now()
	v, err := script.Run(ctx, rc.client, keys, args...).Result()
	observe("script", start, err)
	return v, err
}

func observe(op string, start time.Time, err error) {
	m := metrics.Get()
	status := "success"
	if err != nil && !errors.Is(err, redis.Nil) {
		status = "error"
	}
	m.RedisOperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	m.RedisOperationsTotal.WithLabelValues(op, status).Inc()
}
