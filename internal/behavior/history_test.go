package behavior

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vibeai/backend/internal/cache"
)

func exerciseHistory(t *testing.T, h History) {
	ctx := context.Background()
	start := time.Now().Truncate(time.Millisecond)

	_, ok, err := h.FirstSeen(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, ok)

	for i := 0; i < HistoryLimit+5; i++ {
		require.NoError(t, h.Record(ctx, "s1", Entry{
			At:      start.Add(time.Duration(i) * time.Second),
			PostID:  "post-1",
			Outcome: "admitted",
			Liked:   i%2 == 0,
		}))
	}

	recent, err := h.Recent(ctx, "s1", 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.True(t, recent[0].At.After(recent[1].At), "newest first")

	all, err := h.Recent(ctx, "s1", HistoryLimit*2)
	require.NoError(t, err)
	assert.Len(t, all, HistoryLimit)

	other, err := h.Recent(ctx, "s2", 10)
	require.NoError(t, err)
	assert.Empty(t, other)

	_, ok, err = h.FirstSeen(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryHistory(t *testing.T) {
	exerciseHistory(t, NewMemoryHistory(time.Hour))
}

func TestMemoryHistoryForgetsIdleSessions(t *testing.T) {
	h := NewMemoryHistory(time.Minute)
	now := time.Now()
	h.now = func() time.Time { return now }

	require.NoError(t, h.Record(context.Background(), "s1", Entry{At: now}))
	now = now.Add(2 * time.Minute)

	recent, err := h.Recent(context.Background(), "s1", 10)
	require.NoError(t, err)
	assert.Empty(t, recent)
	assert.Equal(t, 1, h.Sweep())
}

func TestRedisHistory(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	h := NewRedisHistory(cache.Wrap(client), time.Hour)
	exerciseHistory(t, h)

	first, ok, err := h.FirstSeen(context.Background(), "s1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.WithinDuration(t, time.Now(), first, time.Minute)
	assert.True(t, mr.TTL("behavior:history:s1") > 0)
}
