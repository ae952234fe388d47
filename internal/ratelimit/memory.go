package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps counters in process memory. It is only correct for a
// single-instance deployment; use RedisStore when running several replicas.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*Record
	now     func() time.Time
}

// MemoryOption configures a MemoryStore
type MemoryOption func(*MemoryStore)

// WithClock replaces time.Now, used by tests to move across windows
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		s.now = now
	}
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		records: make(map[string]*Record),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Increment implements Store
func (s *MemoryStore) Increment(_ context.Context, key string, max int, window time.Duration) (Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	rec, ok := s.records[key]
	if !ok || !now.Before(rec.ResetAt) {
		rec = &Record{Key: key, Count: 1, ResetAt: now.Add(window)}
		s.records[key] = rec
		return *rec, true, nil
	}

	if rec.Count >= max {
		return *rec, false, nil
	}

	rec.Count++
	return *rec, true, nil
}

// Get implements Store. Expired records are reported as absent.
func (s *MemoryStore) Get(_ context.Context, key string) (Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok || !s.now().Before(rec.ResetAt) {
		return Record{}, false, nil
	}
	return *rec, true, nil
}

// Expire implements Store
func (s *MemoryStore) Expire(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}

// Sweep drops every expired record and returns how many were removed
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, rec := range s.records {
		if !now.Before(rec.ResetAt) {
			delete(s.records, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys, expired or not
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
