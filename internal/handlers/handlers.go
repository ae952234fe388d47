// Package handlers exposes the vote pipeline and challenge issuers over HTTP.
package handlers

import (
	"context"

	"github.com/vibeai/backend/internal/challenges"
	"github.com/vibeai/backend/internal/voting"
)

// LikeReader answers read-only questions about the like ledger
type LikeReader interface {
	IsLiked(ctx context.Context, postID, sessionID string) (bool, error)
	CountLikes(ctx context.Context, postID string) (int64, error)
}

// HealthCheck reports whether a dependency is usable
type HealthCheck func(ctx context.Context) error

// Handlers contains all HTTP handlers for the API
type Handlers struct {
	pipeline *voting.Pipeline
	likes    LikeReader
	pow      *challenges.PowIssuer
	time     *challenges.TimeIssuer
	maxTier  int
	checks   map[string]HealthCheck
}

// NewHandlers creates a new handlers instance
func NewHandlers(pipeline *voting.Pipeline, likes LikeReader, pow *challenges.PowIssuer, timeIssuer *challenges.TimeIssuer, maxTier int) *Handlers {
	return &Handlers{
		pipeline: pipeline,
		likes:    likes,
		pow:      pow,
		time:     timeIssuer,
		maxTier:  maxTier,
		checks:   make(map[string]HealthCheck),
	}
}

// AddHealthCheck registers a dependency probe reported by /health
func (h *Handlers) AddHealthCheck(name string, check HealthCheck) {
	h.checks[name] = check
}
