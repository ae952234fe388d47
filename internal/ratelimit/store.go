// Package ratelimit implements fixed-window counters keyed by arbitrary
// strings such as "ip:<hash>" or "session:<id>".
package ratelimit

import (
	"context"
	"time"
)

// Record is the counter state of one key for its current window
type Record struct {
	Key     string
	Count   int
	ResetAt time.Time
}

// Store holds counters. Increment must be atomic per key: it starts a new
// window (count=1) when none is active, refuses to count past max, and
// otherwise increments. The bool result reports whether the call was allowed.
type Store interface {
	Increment(ctx context.Context, key string, max int, window time.Duration) (Record, bool, error)
	Get(ctx context.Context, key string) (Record, bool, error)
	Expire(ctx context.Context, key string) error
}
