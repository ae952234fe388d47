// Package anomaly flags posts receiving a burst of votes from few sources.
package anomaly

import (
	"context"
	"fmt"
	"time"

	"github.com/vibeai/backend/internal/config"
	"github.com/vibeai/backend/internal/logger"
	"github.com/vibeai/backend/internal/metrics"
	"github.com/vibeai/backend/internal/repository"
	"go.uber.org/zap"
)

// StatsSource reports recent vote volume for a post
type StatsSource interface {
	RecentVoteStats(ctx context.Context, postID string, since time.Time) (repository.VoteStats, error)
}

// Verdict is the result of one check
type Verdict struct {
	Suspicious  bool
	Votes       int64
	DistinctIPs int64
}

// Detector applies the burst and diversity thresholds
type Detector struct {
	source StatsSource
	policy config.AnomalyPolicy
	now    func() time.Time
}

// NewDetector creates a detector over source
func NewDetector(source StatsSource, policy config.AnomalyPolicy) *Detector {
	return &Detector{source: source, policy: policy, now: time.Now}
}

// Check classifies the post's recent traffic. A burst is suspicious only when
// volume is above the threshold and the sources are below the diversity floor.
func (d *Detector) Check(ctx context.Context, postID string) (Verdict, error) {
	stats, err := d.source.RecentVoteStats(ctx, postID, d.now().Add(-d.policy.Window))
	if err != nil {
		return Verdict{}, fmt.Errorf("anomaly check failed: %w", err)
	}

	v := Verdict{
		Votes:       stats.Votes,
		DistinctIPs: stats.DistinctIPs,
		Suspicious:  stats.Votes > int64(d.policy.BurstThreshold) && stats.DistinctIPs < int64(d.policy.MinDistinctIPs),
	}
	if v.Suspicious {
		metrics.Get().AnomalousPostsTotal.Inc()
		logger.Log.Warn("Suspicious vote burst",
			logger.WithPostID(postID),
			zap.Int64("votes", v.Votes),
			zap.Int64("distinct_ips", v.DistinctIPs),
		)
	}
	return v, nil
}
