package challenges

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vibeai/backend/internal/cache"
	"github.com/vibeai/backend/internal/config"
)

func newTimeIssuer(now *time.Time) *TimeIssuer {
	issuer := NewTimeIssuer([]byte("secret"), config.TimeChallengePolicy{
		MinDwell: 2 * time.Second,
		TTL:      30 * time.Second,
	})
	issuer.now = func() time.Time { return *now }
	return issuer
}

func TestTimeChallengeLifecycle(t *testing.T) {
	now := time.UnixMilli(1_760_000_000_000)
	issuer := newTimeIssuer(&now)

	tc, err := issuer.Issue()
	require.NoError(t, err)
	assert.Equal(t, now.UnixMilli(), tc.IssuedAt)
	assert.Equal(t, now.Add(30*time.Second).UnixMilli(), tc.ExpiresAt)

	// too fast
	now = now.Add(500 * time.Millisecond)
	_, err = issuer.Verify(tc.Token, now)
	assert.ErrorIs(t, err, ErrTooFast)

	// inside the window
	now = now.Add(2 * time.Second)
	id, err := issuer.Verify(tc.Token, now)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	// exactly the minimum dwell is enough
	_, err = issuer.Verify(tc.Token, time.UnixMilli(tc.IssuedAt).Add(2*time.Second))
	assert.NoError(t, err)

	// after expiry
	now = time.UnixMilli(tc.ExpiresAt).Add(time.Millisecond)
	_, err = issuer.Verify(tc.Token, now)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestTimeChallengeForgery(t *testing.T) {
	now := time.UnixMilli(1_760_000_000_000)
	issuer := newTimeIssuer(&now)

	tc, err := issuer.Issue()
	require.NoError(t, err)

	parts := strings.Split(tc.Token, ".")
	require.Len(t, parts, 4)

	// push expiry a day out without re-signing
	parts[2] = "9999999999999"
	_, err = issuer.Verify(strings.Join(parts, "."), now.Add(5*time.Second))
	assert.ErrorIs(t, err, ErrForged)

	_, err = issuer.Verify("garbage", now)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestChallengeKindsDoNotCrossVerify(t *testing.T) {
	now := time.UnixMilli(1_760_000_000_000)
	secret := []byte("secret")
	times := newTimeIssuer(&now)
	pows := NewPowIssuer(secret, config.ProofOfWorkPolicy{Difficulty: 1, TTL: time.Hour, MaxAttempts: 1000})
	pows.now = func() time.Time { return now }

	pow, err := pows.Issue(0)
	require.NoError(t, err)
	_, err = times.Verify(pow.Challenge, now.Add(5*time.Second))
	assert.ErrorIs(t, err, ErrForged)

	tc, err := times.Issue()
	require.NoError(t, err)
	_, err = pows.Validate(tc.Token, "0")
	assert.ErrorIs(t, err, ErrForged)

	sealed := signer{secret: secret, kind: kindProofOfWork}.seal("a", "b")
	_, err = signer{secret: secret, kind: kindTime}.open(sealed, 2)
	assert.ErrorIs(t, err, ErrForged)
	fields, err := signer{secret: secret, kind: kindProofOfWork}.open(sealed, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, fields)
}

func TestMemoryReplayGuard(t *testing.T) {
	ctx := context.Background()
	g := NewMemoryReplayGuard()
	now := time.Now()
	g.now = func() time.Time { return now }

	fresh, err := g.Consume(ctx, "abc", time.Minute)
	require.NoError(t, err)
	assert.True(t, fresh)

	fresh, err = g.Consume(ctx, "abc", time.Minute)
	require.NoError(t, err)
	assert.False(t, fresh)

	now = now.Add(2 * time.Minute)
	assert.Equal(t, 1, g.Sweep())

	fresh, err = g.Consume(ctx, "abc", time.Minute)
	require.NoError(t, err)
	assert.True(t, fresh)
}

func TestRedisReplayGuard(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	g := NewRedisReplayGuard(cache.Wrap(client))

	fresh, err := g.Consume(ctx, "nonce-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, fresh)

	fresh, err = g.Consume(ctx, "nonce-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, fresh)

	mr.FastForward(time.Minute)
	fresh, err = g.Consume(ctx, "nonce-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, fresh)
}

func TestSweeper(t *testing.T) {
	s := NewSweeper(time.Hour)
	calls := 0
	s.Register("counter", func() int { calls++; return 2 })

	removed := s.SweepOnce()
	assert.Equal(t, 2, removed["counter"])
	assert.Equal(t, 1, calls)

	s.Start()
	s.Stop()
}

func TestSweeperStopWithoutStart(t *testing.T) {
	stopped := make(chan struct{})
	go func() {
		NewSweeper(time.Hour).Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop blocked on a sweeper that never started")
	}

	s := NewSweeper(time.Hour)
	s.Start()
	s.Start()
	s.Stop()
	s.Stop()
}
