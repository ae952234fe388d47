// Package audit ships vote decisions to best-effort sinks off the request path.
package audit

import (
	"context"
	"time"
)

// Event describes one admission decision
type Event struct {
	ID              string    `json:"id"`
	At              time.Time `json:"at"`
	RequestID       string    `json:"request_id,omitempty"`
	PostID          string    `json:"post_id"`
	SessionID       string    `json:"session_id"`
	Authenticated   bool      `json:"authenticated"`
	IPHash          string    `json:"ip_hash,omitempty"`
	FingerprintHash string    `json:"fingerprint_hash,omitempty"`
	Outcome         string    `json:"outcome"`
	Stage           string    `json:"stage"`
	Status          int       `json:"status"`
	Liked           bool      `json:"liked"`
	BehaviorScore   int       `json:"behavior_score"`
	Reasons         []string  `json:"reasons,omitempty"`
}

// Sink persists or forwards events
type Sink interface {
	Name() string
	Write(ctx context.Context, e Event) error
}
