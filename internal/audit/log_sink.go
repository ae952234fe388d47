package audit

import (
	"context"

	"github.com/vibeai/backend/internal/logger"
	"go.uber.org/zap"
)

// LogSink writes events to the structured log
type LogSink struct{}

func (LogSink) Name() string { return "log" }

func (LogSink) Write(_ context.Context, e Event) error {
	logger.Log.Info("vote decision",
		zap.String("event_id", e.ID),
		logger.WithRequestID(e.RequestID),
		logger.WithPostID(e.PostID),
		logger.WithSessionID(e.SessionID),
		logger.WithFingerprint(e.FingerprintHash),
		logger.WithStage(e.Stage),
		logger.WithStatus(e.Status),
		zap.String("outcome", e.Outcome),
		zap.Bool("liked", e.Liked),
		zap.Int("behavior_score", e.BehaviorScore),
		zap.Strings("reasons", e.Reasons),
	)
	return nil
}
