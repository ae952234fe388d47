package ratelimit

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidLimit is returned for a non-positive max or window
var ErrInvalidLimit = errors.New("rate limit max and window must be positive")

// Result is the outcome of one Check
type Result struct {
	Allowed   bool
	Remaining int
	ResetTime time.Time
}

// RetryAfter is how long the caller should wait, relative to now
func (r Result) RetryAfter(now time.Time) time.Duration {
	if d := r.ResetTime.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Limiter applies fixed-window limits on top of a Store
type Limiter struct {
	store Store
}

// NewLimiter creates a limiter backed by store
func NewLimiter(store Store) *Limiter {
	return &Limiter{store: store}
}

// Check counts one request against key. The first max calls in a window are
// allowed; later calls are refused without advancing the counter.
func (l *Limiter) Check(ctx context.Context, key string, max int, window time.Duration) (Result, error) {
	if key == "" {
		return Result{}, errors.New("rate limit key must not be empty")
	}
	if max <= 0 || window <= 0 {
		return Result{}, ErrInvalidLimit
	}

	rec, allowed, err := l.store.Increment(ctx, key, max, window)
	if err != nil {
		return Result{}, err
	}

	if !allowed {
		return Result{Allowed: false, Remaining: 0, ResetTime: rec.ResetAt}, nil
	}
	return Result{Allowed: true, Remaining: max - rec.Count, ResetTime: rec.ResetAt}, nil
}

// Reset clears the counter for key
func (l *Limiter) Reset(ctx context.Context, key string) error {
	return l.store.Expire(ctx, key)
}
