package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var voteTracer = otel.Tracer("vote-admission")

// TraceVoteSubmission starts the span covering one pass through the pipeline
func TraceVoteSubmission(ctx context.Context, postID string, authenticated bool) (context.Context, trace.Span) {
	return voteTracer.Start(ctx, "vote.submit",
		trace.WithAttributes(
			attribute.String("post.id", postID),
			attribute.Bool("caller.authenticated", authenticated),
		),
	)
}

// TraceVoteStage starts a child span for one admission stage
func TraceVoteStage(ctx context.Context, stage string) (context.Context, trace.Span) {
	return voteTracer.Start(ctx, "vote.stage."+stage,
		trace.WithAttributes(attribute.String("vote.stage", stage)),
	)
}

// RecordVoteDecision annotates the submission span with the final outcome
func RecordVoteDecision(span trace.Span, outcome, stage string, status int) {
	span.SetAttributes(
		attribute.String("vote.outcome", outcome),
		attribute.String("vote.decided_at", stage),
		attribute.Int("http.status_code", status),
	)
	if status >= 500 {
		span.SetStatus(codes.Error, outcome)
	}
}
