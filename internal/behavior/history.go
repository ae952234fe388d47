package behavior

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vibeai/backend/internal/cache"
)

// Entry is one admitted or rejected vote remembered for a session
type Entry struct {
	At       time.Time `json:"at"`
	PostID   string    `json:"postId"`
	Outcome  string    `json:"outcome"`
	Liked    bool      `json:"liked"`
	BotScore int       `json:"botScore"`
	Flagged  bool      `json:"flagged"`
}

// History is the per-session side channel consulted by reputation scoring
type History interface {
	Record(ctx context.Context, sessionID string, e Entry) error
	// Recent returns up to n entries, newest first
	Recent(ctx context.Context, sessionID string, n int) ([]Entry, error)
	// FirstSeen is the time of the first entry ever recorded for the session
	FirstSeen(ctx context.Context, sessionID string) (time.Time, bool, error)
}

// HistoryLimit is how many entries are kept per session
const HistoryLimit = 100

// MemoryHistory keeps history in process memory
type MemoryHistory struct {
	mu       sync.RWMutex
	sessions map[string]*sessionHistory
	ttl      time.Duration
	now      func() time.Time
}

type sessionHistory struct {
	firstSeen time.Time
	lastSeen  time.Time
	entries   []Entry // newest first
}

// NewMemoryHistory creates a history that forgets sessions idle for ttl
func NewMemoryHistory(ttl time.Duration) *MemoryHistory {
	return &MemoryHistory{
		sessions: make(map[string]*sessionHistory),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Record implements History
func (h *MemoryHistory) Record(_ context.Context, sessionID string, e Entry) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.now()
	s, ok := h.sessions[sessionID]
	if !ok || now.Sub(s.lastSeen) > h.ttl {
		s = &sessionHistory{firstSeen: now}
		h.sessions[sessionID] = s
	}
	s.lastSeen = now
	s.entries = append([]Entry{e}, s.entries...)
	if len(s.entries) > HistoryLimit {
		s.entries = s.entries[:HistoryLimit]
	}
	return nil
}

// Recent implements History
func (h *MemoryHistory) Recent(_ context.Context, sessionID string, n int) ([]Entry, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	s, ok := h.sessions[sessionID]
	if !ok || h.now().Sub(s.lastSeen) > h.ttl {
		return nil, nil
	}
	if n > len(s.entries) {
		n = len(s.entries)
	}
	out := make([]Entry, n)
	copy(out, s.entries[:n])
	return out, nil
}

// FirstSeen implements History
func (h *MemoryHistory) FirstSeen(_ context.Context, sessionID string) (time.Time, bool, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	s, ok := h.sessions[sessionID]
	if !ok || h.now().Sub(s.lastSeen) > h.ttl {
		return time.Time{}, false, nil
	}
	return s.firstSeen, true, nil
}

// Sweep forgets idle sessions
func (h *MemoryHistory) Sweep() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.now()
	removed := 0
	for id, s := range h.sessions {
		if now.Sub(s.lastSeen) > h.ttl {
			delete(h.sessions, id)
			removed++
		}
	}
	return removed
}

// RedisHistory keeps history in Redis lists shared by all instances
type RedisHistory struct {
	client *cache.RedisClient
	ttl    time.Duration
}

// NewRedisHistory creates a Redis-backed history
func NewRedisHistory(client *cache.RedisClient, ttl time.Duration) *RedisHistory {
	return &RedisHistory{client: client, ttl: ttl}
}

func historyKey(sessionID string) string   { return "behavior:history:" + sessionID }
func firstSeenKey(sessionID string) string { return "behavior:first:" + sessionID }

// Record implements History
func (h *RedisHistory) Record(ctx context.Context, sessionID string, e Entry) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode history entry: %w", err)
	}
	if _, err := h.client.SetNX(ctx, firstSeenKey(sessionID), e.At.UnixMilli(), h.ttl); err != nil {
		return fmt.Errorf("record first seen: %w", err)
	}
	if err := h.client.PushCapped(ctx, historyKey(sessionID), payload, HistoryLimit, h.ttl); err != nil {
		return fmt.Errorf("record history: %w", err)
	}
	return nil
}

// Recent implements History
func (h *RedisHistory) Recent(ctx context.Context, sessionID string, n int) ([]Entry, error) {
	if n <= 0 {
		return nil, nil
	}
	raw, err := h.client.LRange(ctx, historyKey(sessionID), 0, int64(n-1))
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	out := make([]Entry, 0, len(raw))
	for _, r := range raw {
		var e Entry
		if err := json.Unmarshal([]byte(r), &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// FirstSeen implements History
func (h *RedisHistory) FirstSeen(ctx context.Context, sessionID string) (time.Time, bool, error) {
	raw, err := h.client.Get(ctx, firstSeenKey(sessionID))
	if errors.Is(err, cache.ErrNil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("read first seen: %w", err)
	}
	var ms int64
	if _, err := fmt.Sscan(raw, &ms); err != nil {
		return time.Time{}, false, fmt.Errorf("parse first seen: %w", err)
	}
	return time.UnixMilli(ms), true, nil
}
