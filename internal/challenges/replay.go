package challenges

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vibeai/backend/internal/cache"
)

// ReplayGuard remembers consumed challenge identifiers for a while.
// Consume returns true the first time an id is seen and false afterwards.
type ReplayGuard interface {
	Consume(ctx context.Context, id string, ttl time.Duration) (bool, error)
}

// MemoryReplayGuard is a single-instance ReplayGuard
type MemoryReplayGuard struct {
	mu   sync.Mutex
	seen map[string]time.Time
	now  func() time.Time
}

// NewMemoryReplayGuard creates an empty guard
func NewMemoryReplayGuard() *MemoryReplayGuard {
	return &MemoryReplayGuard{seen: make(map[string]time.Time), now: time.Now}
}

// Consume implements ReplayGuard
func (g *MemoryReplayGuard) Consume(_ context.Context, id string, ttl time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if until, ok := g.seen[id]; ok && now.Before(until) {
		return false, nil
	}
	g.seen[id] = now.Add(ttl)
	return true, nil
}

// Sweep forgets ids whose ttl has passed
func (g *MemoryReplayGuard) Sweep() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	removed := 0
	for id, until := range g.seen {
		if !now.Before(until) {
			delete(g.seen, id)
			removed++
		}
	}
	return removed
}

// RedisReplayGuard shares consumed ids between instances using SET NX
type RedisReplayGuard struct {
	client *cache.RedisClient
}

// NewRedisReplayGuard creates a Redis-backed guard
func NewRedisReplayGuard(client *cache.RedisClient) *RedisReplayGuard {
	return &RedisReplayGuard{client: client}
}

// Consume implements ReplayGuard
func (g *RedisReplayGuard) Consume(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	fresh, err := g.client.SetNX(ctx, "replay:"+id, 1, ttl)
	if err != nil {
		return false, fmt.Errorf("consume challenge: %w", err)
	}
	return fresh, nil
}
