// Package voting runs the ordered admission stages for anonymous likes and
// commits admitted votes to the ledger.
package voting

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/vibeai/backend/internal/anomaly"
	"github.com/vibeai/backend/internal/audit"
	"github.com/vibeai/backend/internal/behavior"
	"github.com/vibeai/backend/internal/captcha"
	"github.com/vibeai/backend/internal/challenges"
	"github.com/vibeai/backend/internal/config"
	"github.com/vibeai/backend/internal/fingerprint"
	"github.com/vibeai/backend/internal/logger"
	"github.com/vibeai/backend/internal/metrics"
	"github.com/vibeai/backend/internal/models"
	"github.com/vibeai/backend/internal/ratelimit"
	"github.com/vibeai/backend/internal/repository"
	"github.com/vibeai/backend/internal/telemetry"
	"go.uber.org/zap"
)

const maxIDLength = 128

// LikeStore performs the atomic toggle
type LikeStore interface {
	ToggleLike(ctx context.Context, in repository.LikeInput) (bool, error)
}

// DeviceIndex counts sessions seen from one device
type DeviceIndex interface {
	DistinctSessionsForFingerprint(ctx context.Context, fingerprintHash string, since time.Time) (int, error)
}

// AnomalyChecker inspects the target post's recent traffic
type AnomalyChecker interface {
	Check(ctx context.Context, postID string) (anomaly.Verdict, error)
}

// ReputationScorer returns a 0-100 trust score for a session
type ReputationScorer interface {
	Score(ctx context.Context, sessionID string) (int, error)
}

// AuditQueue accepts decisions without blocking
type AuditQueue interface {
	Enqueue(e audit.Event) bool
}

// Deps are the collaborators of a Pipeline. Reputation and Audit may be nil.
type Deps struct {
	Limiter    *ratelimit.Limiter
	Likes      LikeStore
	Devices    DeviceIndex
	Analyzer   *behavior.Analyzer
	Pow        *challenges.PowIssuer
	Time       *challenges.TimeIssuer
	Replay     challenges.ReplayGuard
	Captcha    captcha.Verifier
	Anomaly    AnomalyChecker
	History    behavior.History
	Reputation ReputationScorer
	Audit      AuditQueue
}

// Pipeline is the vote admission gate
type Pipeline struct {
	policy config.Policy
	ip     *IPHasher
	deps   Deps
	now    func() time.Time
}

// NewPipeline creates a pipeline
func NewPipeline(policy config.Policy, ipSalt string, deps Deps) *Pipeline {
	return &Pipeline{
		policy: policy,
		ip:     NewIPHasher(ipSalt),
		deps:   deps,
		now:    time.Now,
	}
}

// submission carries per-request state between stages
type submission struct {
	req             *Request
	caller          Caller
	sessionID       string
	ipHash          string
	fingerprintHash string
	ipLimit         ratelimit.Result
	sessionLimit    ratelimit.Result
	analysis        behavior.Analysis
	powCompleted    bool
	timeVerified    bool
	captchaVerified bool
}

// Submit runs every stage in order and stops at the first refusal. The
// returned error is set only for infrastructure failures; the decision is
// then a generic 500.
func (p *Pipeline) Submit(ctx context.Context, req *Request, caller Caller) (*Decision, error) {
	if caller.ReceivedAt.IsZero() {
		caller.ReceivedAt = p.now()
	}
	if caller.IP == "" {
		caller.IP = "unknown"
	}

	ctx, span := telemetry.TraceVoteSubmission(ctx, req.PostID, caller.PrincipalID != "")
	defer span.End()

	s := &submission{req: req, caller: caller}
	d, err := p.run(ctx, s)

	if err != nil {
		logger.Log.Error("Vote pipeline failure",
			logger.WithRequestID(caller.RequestID),
			logger.WithPostID(req.PostID),
			logger.WithIP(PartialIP(caller.IP)),
			logger.WithStage(d.Stage),
			zap.Error(err),
		)
	}

	telemetry.RecordVoteDecision(span, string(d.Outcome), d.Stage, d.Status)
	metrics.Get().VoteDecisionsTotal.WithLabelValues(string(d.Outcome), d.Stage).Inc()
	p.record(ctx, s, d)
	return d, err
}

func (p *Pipeline) run(ctx context.Context, s *submission) (*Decision, error) {
	req := s.req

	// 1. validation
	if d := p.validate(s); d != nil {
		return d, nil
	}

	// 2. honeypot: pretend it worked
	if !challenges.ValidateHoneypot(req.honeypotValue()) {
		logger.Log.Warn("Honeypot triggered",
			logger.WithRequestID(s.caller.RequestID),
			logger.WithSessionID(s.sessionID),
			logger.WithPostID(req.PostID),
		)
		return &Decision{Outcome: OutcomeDeceived, Stage: StageHoneypot, Status: http.StatusOK, Liked: true}, nil
	}

	s.ipHash = p.ip.Hash(s.caller.IP)
	s.fingerprintHash = fingerprint.Generate(*req.Fingerprint)

	// 3. ip limit
	if d, err := p.checkLimit(ctx, StageIPLimit, "ip:"+s.ipHash, p.policy.IPLimit, "Too many requests from this IP", &s.ipLimit); d != nil || err != nil {
		return d, err
	}

	// 4. session limit
	if d, err := p.checkLimit(ctx, StageSessionLimit, "session:"+s.sessionID, p.policy.SessionLimit, "Too many requests", &s.sessionLimit); d != nil || err != nil {
		return d, err
	}

	// 5. device reuse
	if d, err := p.checkDevice(ctx, s); d != nil || err != nil {
		return d, err
	}

	// 6. behavior
	if d, err := p.checkBehavior(ctx, s); d != nil || err != nil {
		return d, err
	}

	// 7. time challenge
	if d, err := p.checkTimeChallenge(ctx, s); d != nil || err != nil {
		return d, err
	}

	// 8. captcha
	if d := p.checkCaptcha(ctx, s); d != nil {
		return d, nil
	}

	// 9. anomaly
	if d, err := p.checkAnomaly(ctx, s); d != nil || err != nil {
		return d, err
	}

	// 10. commit
	liked, err := p.commit(ctx, s)
	if err != nil {
		return failed(StageCommit), fmt.Errorf("toggle like: %w", err)
	}

	// 12. respond with the tighter of the two limits
	rl := &RateLimitState{
		Remaining: min(s.ipLimit.Remaining, s.sessionLimit.Remaining),
		ResetTime: max(s.ipLimit.ResetTime.UnixMilli(), s.sessionLimit.ResetTime.UnixMilli()),
	}
	d := admitted(liked, rl)
	d.BehaviorScore = s.analysis.Confidence
	d.Reasons = s.analysis.Reasons
	return d, nil
}

func (p *Pipeline) validate(s *submission) *Decision {
	req := s.req
	req.PostID = strings.TrimSpace(req.PostID)
	req.SessionID = strings.TrimSpace(req.SessionID)

	switch {
	case req.PostID == "":
		return invalid("postId", "Missing required fields")
	case len(req.PostID) > maxIDLength:
		return invalid("postId", "postId is too long")
	case s.caller.PrincipalID == "" && req.SessionID == "":
		return invalid("sessionId", "Missing required fields")
	case len(req.SessionID) > maxIDLength:
		return invalid("sessionId", "sessionId is too long")
	case req.Fingerprint == nil:
		return invalid("fingerprint", "Missing required fields")
	}
	if err := req.Fingerprint.Validate(); err != nil {
		return invalid("fingerprint", "fingerprint has no attributes")
	}

	s.sessionID = req.SessionID
	if s.caller.PrincipalID != "" {
		s.sessionID = "user:" + s.caller.PrincipalID
	}
	req.ActionLog = behavior.Trim(req.ActionLog)
	return nil
}

func (p *Pipeline) stage(ctx context.Context, name string) (context.Context, func()) {
	ctx, span := telemetry.TraceVoteStage(ctx, name)
	start := time.Now()
	return ctx, func() {
		metrics.Get().VoteStageDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
		span.End()
	}
}

func (p *Pipeline) checkLimit(ctx context.Context, stage, key string, limit config.Limit, message string, out *ratelimit.Result) (*Decision, error) {
	ctx, done := p.stage(ctx, stage)
	defer done()

	res, err := p.deps.Limiter.Check(ctx, key, limit.Max, limit.Window)
	if err != nil {
		return failed(stage), fmt.Errorf("rate limit %s: %w", stage, err)
	}
	*out = res
	if res.Allowed {
		return nil, nil
	}

	metrics.Get().RateLimitExceededTotal.WithLabelValues(stage).Inc()
	d := rateLimited(stage, message)
	d.Rejection.RetryAfter = res.ResetTime.UnixMilli()
	return d, nil
}

func (p *Pipeline) checkDevice(ctx context.Context, s *submission) (*Decision, error) {
	ctx, done := p.stage(ctx, StageFingerprint)
	defer done()

	since := s.caller.ReceivedAt.Add(-p.policy.Fingerprint.Window)
	sessions, err := p.deps.Devices.DistinctSessionsForFingerprint(ctx, s.fingerprintHash, since)
	if err != nil {
		return failed(StageFingerprint), err
	}

	suspicious := sessions > p.policy.Fingerprint.MaxSessions
	if suspicious {
		logger.Log.Warn("Multiple sessions from same device",
			logger.WithFingerprint(s.fingerprintHash),
			zap.Int("sessions", sessions),
		)
	}

	if !suspicious && p.deps.Reputation != nil && p.policy.Reputation.Enabled {
		score, err := p.deps.Reputation.Score(ctx, s.sessionID)
		if err != nil {
			return failed(StageFingerprint), fmt.Errorf("reputation: %w", err)
		}
		suspicious = score < p.policy.Reputation.MinScore
	}

	if suspicious && s.req.CaptchaToken == "" {
		d := verificationRequired(StageFingerprint, "Verification required")
		d.Rejection.RequireCaptcha = true
		return d, nil
	}
	return nil, nil
}

func (p *Pipeline) checkBehavior(ctx context.Context, s *submission) (*Decision, error) {
	if len(s.req.ActionLog) == 0 {
		return nil, nil
	}

	s.analysis = p.deps.Analyzer.Analyze(s.req.ActionLog)
	metrics.Get().BehaviorScore.Observe(float64(s.analysis.Confidence))
	if !s.analysis.IsBot {
		return nil, nil
	}

	logger.Log.Warn("Bot behavior detected",
		logger.WithSessionID(s.sessionID),
		zap.Int("confidence", s.analysis.Confidence),
		zap.Strings("reasons", s.analysis.Labels()),
	)

	sub := s.req.ProofOfWork
	if sub == nil {
		return p.demandProofOfWork(s, "Verification required")
	}

	id, err := p.deps.Pow.Check(*sub)
	if err != nil {
		metrics.Get().ChallengeVerificationsTotal.WithLabelValues("pow", "invalid").Inc()
		return p.demandProofOfWork(s, "Proof of work rejected")
	}

	fresh, err := p.deps.Replay.Consume(ctx, "pow:"+id, p.policy.ProofOfWork.TTL)
	if err != nil {
		return failed(StageBehavior), fmt.Errorf("consume pow: %w", err)
	}
	if !fresh {
		metrics.Get().ChallengeVerificationsTotal.WithLabelValues("pow", "replayed").Inc()
		return p.demandProofOfWork(s, "Proof of work already used")
	}

	metrics.Get().ChallengeVerificationsTotal.WithLabelValues("pow", "valid").Inc()
	s.powCompleted = true
	return nil, nil
}

// demandProofOfWork issues a fresh puzzle, harder for high-confidence bots
func (p *Pipeline) demandProofOfWork(s *submission, message string) (*Decision, error) {
	tier := 0
	if s.analysis.Confidence >= p.policy.Behavior.EscalateConfidence {
		tier = 1
	}
	pow, err := p.deps.Pow.Issue(tier)
	if err != nil {
		return failed(StageBehavior), fmt.Errorf("issue pow: %w", err)
	}
	metrics.Get().ChallengesIssuedTotal.WithLabelValues("pow").Inc()

	d := verificationRequired(StageBehavior, message)
	d.Rejection.RequireProofOfWork = true
	d.Rejection.Challenge = &pow
	d.BehaviorScore = s.analysis.Confidence
	d.Reasons = s.analysis.Reasons
	return d, nil
}

func (p *Pipeline) checkTimeChallenge(ctx context.Context, s *submission) (*Decision, error) {
	answer := s.req.TimeChallenge
	if answer == nil {
		return nil, nil
	}

	m := metrics.Get()
	id, err := p.deps.Time.Verify(answer.Token, s.caller.ReceivedAt)
	if err != nil {
		result := "invalid"
		switch {
		case errors.Is(err, challenges.ErrTooFast):
			result = "too_fast"
		case errors.Is(err, challenges.ErrExpired):
			result = "expired"
		}
		m.ChallengeVerificationsTotal.WithLabelValues("time", result).Inc()
		logger.Log.Warn("Time challenge failed", logger.WithSessionID(s.sessionID), zap.Error(err))
		return verificationFailed(StageTimeChallenge, "Invalid request timing"), nil
	}

	fresh, err := p.deps.Replay.Consume(ctx, "time:"+id, p.policy.TimeChallenge.TTL)
	if err != nil {
		return failed(StageTimeChallenge), fmt.Errorf("consume time challenge: %w", err)
	}
	if !fresh {
		m.ChallengeVerificationsTotal.WithLabelValues("time", "replayed").Inc()
		return verificationFailed(StageTimeChallenge, "Invalid request timing"), nil
	}

	m.ChallengeVerificationsTotal.WithLabelValues("time", "valid").Inc()
	s.timeVerified = true
	return nil, nil
}

// checkCaptcha verifies any supplied token. Verifier errors count as failure.
func (p *Pipeline) checkCaptcha(ctx context.Context, s *submission) *Decision {
	if s.req.CaptchaToken == "" {
		return nil
	}

	ctx, done := p.stage(ctx, StageCaptcha)
	defer done()

	ok, err := p.deps.Captcha.Verify(ctx, s.req.CaptchaToken, s.caller.IP)
	if err != nil {
		logger.Log.Warn("Captcha verification error", logger.WithRequestID(s.caller.RequestID), zap.Error(err))
	}
	if !ok {
		return verificationFailed(StageCaptcha, "CAPTCHA verification failed")
	}
	s.captchaVerified = true
	return nil
}

func (p *Pipeline) checkAnomaly(ctx context.Context, s *submission) (*Decision, error) {
	// a human just proved themselves for this request
	if s.captchaVerified {
		return nil, nil
	}

	ctx, done := p.stage(ctx, StageAnomaly)
	defer done()

	verdict, err := p.deps.Anomaly.Check(ctx, s.req.PostID)
	if err != nil {
		return failed(StageAnomaly), err
	}
	if verdict.Suspicious {
		d := verificationRequired(StageAnomaly, "Unusual voting pattern detected")
		d.Rejection.RequireCaptcha = true
		return d, nil
	}
	return nil, nil
}

func (p *Pipeline) commit(ctx context.Context, s *submission) (bool, error) {
	ctx, done := p.stage(ctx, StageCommit)
	defer done()

	return p.deps.Likes.ToggleLike(ctx, repository.LikeInput{
		PostID:          s.req.PostID,
		SessionID:       s.sessionID,
		IPHash:          s.ipHash,
		FingerprintHash: s.fingerprintHash,
		Metadata: models.VoteMetadata{
			Timestamp:             s.caller.ReceivedAt.UnixMilli(),
			ClientIP:              PartialIP(s.caller.IP),
			CaptchaVerified:       s.captchaVerified,
			ProofOfWorkCompleted:  s.powCompleted,
			TimeChallengeVerified: s.timeVerified,
			BehaviorScore:         s.analysis.Confidence,
		},
	})
}

// record writes the session history entry and the audit event. Both are
// best effort and never change the decision.
func (p *Pipeline) record(ctx context.Context, s *submission, d *Decision) {
	if s.sessionID != "" && d.Outcome != OutcomeFailed && p.deps.History != nil {
		entry := behavior.Entry{
			At:       s.caller.ReceivedAt,
			PostID:   s.req.PostID,
			Outcome:  string(d.Outcome),
			Liked:    d.Liked,
			BotScore: s.analysis.Confidence,
			Flagged:  d.Outcome == OutcomeDeceived || (d.Outcome == OutcomeRejected && d.Status == http.StatusForbidden),
		}
		if err := p.deps.History.Record(context.WithoutCancel(ctx), s.sessionID, entry); err != nil {
			logger.Log.Warn("Failed to record behavior history", logger.WithSessionID(s.sessionID), zap.Error(err))
		}
	}

	if p.deps.Audit == nil {
		return
	}
	e := audit.Event{
		At:              s.caller.ReceivedAt.UTC(),
		RequestID:       s.caller.RequestID,
		PostID:          s.req.PostID,
		SessionID:       s.sessionID,
		Authenticated:   s.caller.PrincipalID != "",
		IPHash:          s.ipHash,
		FingerprintHash: s.fingerprintHash,
		Outcome:         string(d.Outcome),
		Stage:           d.Stage,
		Status:          d.Status,
		Liked:           d.Liked,
		BehaviorScore:   s.analysis.Confidence,
		Reasons:         s.analysis.Reasons,
	}
	p.deps.Audit.Enqueue(e)
}
