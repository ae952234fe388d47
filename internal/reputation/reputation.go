// Package reputation derives a 0-100 trust score for a session from its
// behavioral history.
package reputation

import (
	"context"
	"fmt"
	"time"

	"github.com/vibeai/backend/internal/behavior"
)

const (
	baseScore = 100
	day       = 24 * time.Hour
)

// Score applies the flag-rate penalty and the longevity bonus
func Score(age time.Duration, flagRate float64) int {
	score := baseScore

	switch {
	case flagRate > 0.5:
		score -= 50
	case flagRate > 0.3:
		score -= 30
	case flagRate > 0.1:
		score -= 10
	}

	if age > 30*day {
		score += 10
	}
	if age > 90*day {
		score += 10
	}

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// Scorer reads a session's history and scores it
type Scorer struct {
	history behavior.History
	now     func() time.Time
}

// NewScorer creates a scorer over history
func NewScorer(history behavior.History) *Scorer {
	return &Scorer{history: history, now: time.Now}
}

// Score returns the session's current score. Unknown sessions score 100.
func (s *Scorer) Score(ctx context.Context, sessionID string) (int, error) {
	entries, err := s.history.Recent(ctx, sessionID, behavior.HistoryLimit)
	if err != nil {
		return 0, fmt.Errorf("failed to read history: %w", err)
	}

	var flagRate float64
	if len(entries) > 0 {
		flagged := 0
		for _, e := range entries {
			if e.Flagged {
				flagged++
			}
		}
		flagRate = float64(flagged) / float64(len(entries))
	}

	var age time.Duration
	first, ok, err := s.history.FirstSeen(ctx, sessionID)
	if err != nil {
		return 0, fmt.Errorf("failed to read first-seen time: %w", err)
	}
	if ok {
		age = s.now().Sub(first)
	}

	return Score(age, flagRate), nil
}
