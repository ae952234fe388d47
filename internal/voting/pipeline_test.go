package voting

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vibeai/backend/internal/anomaly"
	"github.com/vibeai/backend/internal/audit"
	"github.com/vibeai/backend/internal/behavior"
	"github.com/vibeai/backend/internal/captcha"
	"github.com/vibeai/backend/internal/challenges"
	"github.com/vibeai/backend/internal/config"
	"github.com/vibeai/backend/internal/database"
	"github.com/vibeai/backend/internal/fingerprint"
	"github.com/vibeai/backend/internal/models"
	"github.com/vibeai/backend/internal/ratelimit"
	"github.com/vibeai/backend/internal/repository"
	"github.com/vibeai/backend/internal/reputation"
	"gorm.io/gorm"
)

// countingLikes wraps the real repository so tests can see toggle calls
type countingLikes struct {
	repository.LikeRepository
	mu      sync.Mutex
	toggles int
	err     error
}

func (c *countingLikes) ToggleLike(ctx context.Context, in repository.LikeInput) (bool, error) {
	c.mu.Lock()
	c.toggles++
	c.mu.Unlock()
	if c.err != nil {
		return false, c.err
	}
	return c.LikeRepository.ToggleLike(ctx, in)
}

type recordingAudit struct {
	mu     sync.Mutex
	events []audit.Event
}

func (r *recordingAudit) Enqueue(e audit.Event) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return true
}

type fixedScore int

func (f fixedScore) Score(context.Context, string) (int, error) { return int(f), nil }

type harness struct {
	pipeline *Pipeline
	db       *gorm.DB
	likes    *countingLikes
	history  *behavior.MemoryHistory
	audit    *recordingAudit
	policy   config.Policy
	pow      *challenges.PowIssuer
	time     *challenges.TimeIssuer
}

func newHarness(t *testing.T, mutate ...func(*config.Policy, *Deps)) *harness {
	t.Helper()

	db, err := database.Open("sqlite", ":memory:")
	require.NoError(t, err)
	require.NoError(t, database.MigrateDB(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	policy := config.DefaultPolicy()
	policy.ProofOfWork.Difficulty = 2
	policy.ProofOfWork.MaxTier = 1

	repo := repository.NewLikeRepository(db)
	likes := &countingLikes{LikeRepository: repo}
	history := behavior.NewMemoryHistory(time.Hour)
	rec := &recordingAudit{}
	secret := []byte("test-challenge-secret")

	deps := Deps{
		Limiter:  ratelimit.NewLimiter(ratelimit.NewMemoryStore()),
		Likes:    likes,
		Devices:  repo,
		Analyzer: behavior.NewAnalyzer(policy.Behavior),
		Replay:   challenges.NewMemoryReplayGuard(),
		Captcha:  captcha.Static(true),
		History:  history,
		Audit:    rec,
	}
	for _, m := range mutate {
		m(&policy, &deps)
	}
	deps.Pow = challenges.NewPowIssuer(secret, policy.ProofOfWork)
	deps.Time = challenges.NewTimeIssuer(secret, policy.TimeChallenge)
	if deps.Anomaly == nil {
		deps.Anomaly = anomaly.NewDetector(repo, policy.Anomaly)
	}

	return &harness{
		pipeline: NewPipeline(policy, "salt", deps),
		db:       db,
		likes:    likes,
		history:  history,
		audit:    rec,
		policy:   policy,
		pow:      deps.Pow,
		time:     deps.Time,
	}
}

func device(ua string) *fingerprint.DeviceFingerprint {
	return &fingerprint.DeviceFingerprint{
		UserAgent:        ua,
		ScreenResolution: "1920x1080",
		Timezone:         "Europe/Berlin",
		Language:         "de-DE",
		Platform:         "MacIntel",
	}
}

func vote(post, session string) *Request {
	return &Request{PostID: post, SessionID: session, Fingerprint: device("Mozilla/5.0 test")}
}

func anon(ip string) Caller {
	return Caller{IP: ip, RequestID: "req-1"}
}

func (h *harness) submit(t *testing.T, req *Request, caller Caller) *Decision {
	t.Helper()
	d, err := h.pipeline.Submit(context.Background(), req, caller)
	require.NoError(t, err)
	return d
}

func botLog() []behavior.ActionEvent {
	events := make([]behavior.ActionEvent, 20)
	for i := range events {
		events[i] = behavior.ActionEvent{Timestamp: 1_700_000_000_000 + int64(i)*50, Action: behavior.ActionClickLike}
	}
	return events
}

func TestScenarioA_ToggleRoundTrip(t *testing.T) {
	h := newHarness(t)

	d := h.submit(t, vote("post-1", "anon_1_a"), anon("198.51.100.7"))
	assert.Equal(t, http.StatusOK, d.Status)
	assert.Equal(t, OutcomeAdmitted, d.Outcome)
	assert.True(t, d.Liked)
	require.NotNil(t, d.RateLimit)
	assert.Equal(t, 9, d.RateLimit.Remaining)

	d = h.submit(t, vote("post-1", "anon_1_a"), anon("198.51.100.7"))
	assert.Equal(t, http.StatusOK, d.Status)
	assert.False(t, d.Liked)
	assert.Equal(t, 8, d.RateLimit.Remaining)

	body, ok := d.Body().(SuccessResponse)
	require.True(t, ok)
	assert.True(t, body.Success)
	assert.False(t, body.Liked)
}

func TestScenarioB_SessionRateLimit(t *testing.T) {
	h := newHarness(t)

	var first *Decision
	for i := 0; i < 10; i++ {
		d := h.submit(t, vote(fmt.Sprintf("post-%d", i), "anon_busy"), anon("198.51.100.8"))
		require.Equal(t, http.StatusOK, d.Status, "vote %d", i)
		if first == nil {
			first = d
		}
	}

	d := h.submit(t, vote("post-x", "anon_busy"), anon("198.51.100.8"))
	assert.Equal(t, http.StatusTooManyRequests, d.Status)
	assert.Equal(t, StageSessionLimit, d.Stage)
	require.NotNil(t, d.Rejection)
	assert.Equal(t, KindRateLimited, d.Rejection.Kind)
	assert.Equal(t, "RATE_LIMITED", d.Body().(ErrorResponse).Code)

	// the session window is shorter than the ip window, so its reset is the
	// smaller one reported on the first admitted vote
	sessionReset := first.RateLimit.ResetTime - h.policy.IPLimit.Window.Milliseconds() + h.policy.SessionLimit.Window.Milliseconds()
	assert.InDelta(t, sessionReset, d.Rejection.RetryAfter, 1000)
	assert.Equal(t, 10, h.likes.toggles)
}

func TestIPRateLimit(t *testing.T) {
	h := newHarness(t, func(p *config.Policy, _ *Deps) {
		p.IPLimit = config.Limit{Max: 2, Window: time.Minute}
	})

	for i := 0; i < 2; i++ {
		d := h.submit(t, vote("p", fmt.Sprintf("s%d", i)), anon("203.0.113.1"))
		require.Equal(t, http.StatusOK, d.Status)
	}
	d := h.submit(t, vote("p", "s9"), anon("203.0.113.1"))
	assert.Equal(t, http.StatusTooManyRequests, d.Status)
	assert.Equal(t, StageIPLimit, d.Stage)
	assert.Positive(t, d.Rejection.RetryAfter)

	d = h.submit(t, vote("p", "s9"), anon("203.0.113.2"))
	assert.Equal(t, http.StatusOK, d.Status)
}

func TestScenarioC_HoneypotFakesSuccess(t *testing.T) {
	h := newHarness(t)

	req := vote("post-1", "anon_bot")
	req.Honeypot = "bot@example.com"
	d := h.submit(t, req, anon("198.51.100.9"))

	assert.Equal(t, http.StatusOK, d.Status)
	assert.Equal(t, OutcomeDeceived, d.Outcome)
	assert.Equal(t, SuccessResponse{Success: true, Liked: true}, d.Body())
	assert.Zero(t, h.likes.toggles)

	alias := vote("post-1", "anon_bot")
	alias.EmailConfirm = "x"
	d = h.submit(t, alias, anon("198.51.100.9"))
	assert.Equal(t, OutcomeDeceived, d.Outcome)
	assert.Zero(t, h.likes.toggles)

	entries, err := h.history.Recent(context.Background(), "anon_bot", 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.True(t, entries[0].Flagged)
}

func TestScenarioD_SharedDeviceNeedsCaptcha(t *testing.T) {
	h := newHarness(t)

	for i := 0; i < 4; i++ {
		d := h.submit(t, vote("post-1", fmt.Sprintf("anon_%d", i)), anon(fmt.Sprintf("198.51.100.%d", i)))
		require.Equal(t, http.StatusOK, d.Status, "session %d", i)
	}

	d := h.submit(t, vote("post-1", "anon_5"), anon("198.51.100.50"))
	assert.Equal(t, http.StatusForbidden, d.Status)
	assert.Equal(t, StageFingerprint, d.Stage)
	require.NotNil(t, d.Rejection)
	assert.True(t, d.Rejection.RequireCaptcha)
	assert.Equal(t, KindVerificationRequired, d.Rejection.Kind)

	body := d.Body().(ErrorResponse)
	assert.True(t, body.RequireCaptcha)
	assert.Equal(t, "VERIFICATION_REQUIRED", body.Code)

	withCaptcha := vote("post-1", "anon_5")
	withCaptcha.CaptchaToken = "solved"
	d = h.submit(t, withCaptcha, anon("198.51.100.50"))
	assert.Equal(t, http.StatusOK, d.Status)
}

func TestValidation(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name  string
		req   *Request
		field string
	}{
		{"missing post", &Request{SessionID: "s", Fingerprint: device("ua")}, "postId"},
		{"missing session", &Request{PostID: "p", Fingerprint: device("ua")}, "sessionId"},
		{"missing fingerprint", &Request{PostID: "p", SessionID: "s"}, "fingerprint"},
		{"empty fingerprint", &Request{PostID: "p", SessionID: "s", Fingerprint: &fingerprint.DeviceFingerprint{}}, "fingerprint"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := h.submit(t, tt.req, anon("1.2.3.4"))
			assert.Equal(t, http.StatusBadRequest, d.Status)
			assert.Equal(t, tt.field, d.Rejection.Field)
		})
	}
	assert.Zero(t, h.likes.toggles)
}

func TestAuthenticatedPrincipalReplacesSession(t *testing.T) {
	h := newHarness(t)

	req := &Request{PostID: "p1", Fingerprint: device("ua")}
	d := h.submit(t, req, Caller{IP: "10.0.0.1", PrincipalID: "42"})
	require.Equal(t, http.StatusOK, d.Status)

	liked, err := h.likes.IsLiked(context.Background(), "p1", "user:42")
	require.NoError(t, err)
	assert.True(t, liked)
	assert.True(t, h.audit.events[0].Authenticated)
}

func TestBotBehaviorRequiresProofOfWork(t *testing.T) {
	h := newHarness(t)

	req := vote("post-1", "anon_script")
	req.ActionLog = botLog()
	d := h.submit(t, req, anon("198.51.100.10"))

	require.Equal(t, http.StatusForbidden, d.Status)
	assert.Equal(t, StageBehavior, d.Stage)
	require.True(t, d.Rejection.RequireProofOfWork)
	require.NotNil(t, d.Rejection.Challenge)
	assert.Contains(t, d.Reasons, behavior.ReasonConsistentTiming)
	assert.Contains(t, d.Reasons, behavior.ReasonRepetitive)
	// confidence 100 escalates one tier
	assert.Equal(t, h.policy.ProofOfWork.Difficulty+1, d.Rejection.Challenge.Difficulty)

	pow := d.Rejection.Challenge
	solution, err := challenges.Solve(context.Background(), pow.Challenge, pow.Prefix, 1_000_000)
	require.NoError(t, err)

	solved := vote("post-1", "anon_script")
	solved.ActionLog = botLog()
	solved.ProofOfWork = &challenges.Submission{Challenge: pow.Challenge, Solution: solution, ExpectedPrefix: pow.Prefix}
	d = h.submit(t, solved, anon("198.51.100.10"))
	require.Equal(t, http.StatusOK, d.Status)
	assert.True(t, d.Liked)

	var row models.AnonymousLike
	require.NoError(t, h.db.First(&row, "session_id = ?", "anon_script").Error)
	assert.True(t, row.Metadata.ProofOfWorkCompleted)
	assert.Equal(t, "198***", row.Metadata.ClientIP)
	assert.Equal(t, 100, row.Metadata.BehaviorScore)

	// the same solution cannot be spent twice
	replay := vote("post-2", "anon_script")
	replay.ActionLog = botLog()
	replay.ProofOfWork = solved.ProofOfWork
	d = h.submit(t, replay, anon("198.51.100.10"))
	assert.Equal(t, http.StatusForbidden, d.Status)
	assert.True(t, d.Rejection.RequireProofOfWork)
}

func TestBotBehaviorRejectsWrongSolution(t *testing.T) {
	h := newHarness(t)
	pow, err := h.pow.Issue(0)
	require.NoError(t, err)

	req := vote("post-1", "anon_script")
	req.ActionLog = botLog()
	req.ProofOfWork = &challenges.Submission{Challenge: pow.Challenge, Solution: "nope", ExpectedPrefix: "0"}
	d := h.submit(t, req, anon("198.51.100.11"))
	assert.Equal(t, http.StatusForbidden, d.Status)
	assert.True(t, d.Rejection.RequireProofOfWork)
	assert.NotEqual(t, pow.Challenge, d.Rejection.Challenge.Challenge)
}

func TestHumanBehaviorPasses(t *testing.T) {
	h := newHarness(t)

	req := vote("post-1", "anon_human")
	req.ActionLog = []behavior.ActionEvent{
		{Timestamp: 1000, Action: behavior.ActionMouseMove},
		{Timestamp: 1900, Action: behavior.ActionScroll},
		{Timestamp: 4200, Action: behavior.ActionMouseMove},
		{Timestamp: 5100, Action: behavior.ActionClickLike},
	}
	d := h.submit(t, req, anon("198.51.100.12"))
	assert.Equal(t, http.StatusOK, d.Status)
}

func TestTimeChallenge(t *testing.T) {
	h := newHarness(t)

	tc, err := h.time.Issue()
	require.NoError(t, err)

	tooFast := vote("post-1", "anon_t")
	tooFast.TimeChallenge = &TimeAnswer{Token: tc.Token}
	d := h.submit(t, tooFast, anon("198.51.100.13"))
	assert.Equal(t, http.StatusForbidden, d.Status)
	assert.Equal(t, StageTimeChallenge, d.Stage)
	assert.Equal(t, KindVerificationFailed, d.Rejection.Kind)
	assert.Equal(t, "VERIFICATION_FAILED", d.Body().(ErrorResponse).Code)

	patient := vote("post-1", "anon_t")
	patient.TimeChallenge = &TimeAnswer{Token: tc.Token}
	caller := anon("198.51.100.13")
	caller.ReceivedAt = time.UnixMilli(tc.IssuedAt).Add(3 * time.Second)
	d = h.submit(t, patient, caller)
	require.Equal(t, http.StatusOK, d.Status)

	d = h.submit(t, patient, caller)
	assert.Equal(t, http.StatusForbidden, d.Status, "token is single use")

	forged := vote("post-1", "anon_t2")
	forged.TimeChallenge = &TimeAnswer{Token: "abc.1.2.deadbeef"}
	d = h.submit(t, forged, caller)
	assert.Equal(t, http.StatusForbidden, d.Status)
}

func TestCaptchaFailure(t *testing.T) {
	h := newHarness(t, func(_ *config.Policy, d *Deps) {
		d.Captcha = captcha.Static(false)
	})

	req := vote("post-1", "anon_c")
	req.CaptchaToken = "whatever"
	d := h.submit(t, req, anon("198.51.100.14"))
	assert.Equal(t, http.StatusForbidden, d.Status)
	assert.Equal(t, StageCaptcha, d.Stage)
	assert.Zero(t, h.likes.toggles)
}

func TestAnomalyBurstRequiresCaptcha(t *testing.T) {
	h := newHarness(t)

	for i := 0; i < 51; i++ {
		require.NoError(t, h.db.Create(&models.VoteEvent{
			PostID:          "hot",
			SessionID:       fmt.Sprintf("farm-%d", i),
			IPHash:          fmt.Sprintf("ip-%d", i%3),
			FingerprintHash: fmt.Sprintf("fp-%d", i),
			Liked:           true,
		}).Error)
	}

	d := h.submit(t, vote("hot", "anon_late"), anon("198.51.100.15"))
	assert.Equal(t, http.StatusForbidden, d.Status)
	assert.Equal(t, StageAnomaly, d.Stage)
	assert.True(t, d.Rejection.RequireCaptcha)

	req := vote("hot", "anon_late")
	req.CaptchaToken = "solved"
	d = h.submit(t, req, anon("198.51.100.15"))
	assert.Equal(t, http.StatusOK, d.Status)

	var row models.AnonymousLike
	require.NoError(t, h.db.First(&row, "session_id = ?", "anon_late").Error)
	assert.True(t, row.Metadata.CaptchaVerified)
}

func TestReputationCanDemandCaptcha(t *testing.T) {
	h := newHarness(t, func(p *config.Policy, d *Deps) {
		p.Reputation.Enabled = true
		d.Reputation = fixedScore(10)
	})

	d := h.submit(t, vote("p", "anon_r"), anon("198.51.100.16"))
	assert.Equal(t, http.StatusForbidden, d.Status)
	assert.True(t, d.Rejection.RequireCaptcha)
}

func TestReputationScorerFlagsRepeatOffender(t *testing.T) {
	h := newHarness(t, func(p *config.Policy, d *Deps) {
		p.Reputation.Enabled = true
		d.Reputation = reputation.NewScorer(d.History)
	})
	require.NoError(t, h.policy.Validate())

	ctx := context.Background()
	for i := 0; i < 20; i++ {
		require.NoError(t, h.history.Record(ctx, "anon_flagged", behavior.Entry{At: time.Now(), Outcome: "rejected", Flagged: true}))
	}

	d := h.submit(t, vote("p", "anon_flagged"), anon("198.51.100.30"))
	assert.Equal(t, http.StatusForbidden, d.Status)
	assert.Equal(t, StageFingerprint, d.Stage)
	assert.True(t, d.Rejection.RequireCaptcha)

	d = h.submit(t, vote("p", "anon_clean"), anon("198.51.100.31"))
	assert.Equal(t, http.StatusOK, d.Status)

	// a passed captcha still gets through
	req := vote("p", "anon_flagged")
	req.CaptchaToken = "token"
	d = h.submit(t, req, anon("198.51.100.30"))
	assert.Equal(t, http.StatusOK, d.Status)
}

func TestStorageFailureIsGeneric(t *testing.T) {
	h := newHarness(t)
	h.likes.err = errors.New("connection reset by peer")

	d, err := h.pipeline.Submit(context.Background(), vote("p", "s"), anon("198.51.100.17"))
	require.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, d.Status)
	assert.Equal(t, OutcomeFailed, d.Outcome)
	body := d.Body().(ErrorResponse)
	assert.Equal(t, "Failed to process vote", body.Error)
	assert.Equal(t, "STORAGE_FAILURE", body.Code)
	assert.NotContains(t, body.Error, "connection")
}

func TestAuditAndHistoryRecorded(t *testing.T) {
	h := newHarness(t)

	h.submit(t, vote("p", "anon_a"), anon("198.51.100.18"))
	require.Len(t, h.audit.events, 1)
	e := h.audit.events[0]
	assert.Equal(t, "admitted", e.Outcome)
	assert.Equal(t, StageComplete, e.Stage)
	assert.Len(t, e.IPHash, 64)
	assert.Equal(t, "req-1", e.RequestID)

	entries, err := h.history.Recent(context.Background(), "anon_a", 5)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Liked)
	assert.False(t, entries[0].Flagged)
}

func TestMalformedDecision(t *testing.T) {
	d := Malformed()
	assert.Equal(t, http.StatusBadRequest, d.Status)
	assert.Equal(t, OutcomeRejected, d.Outcome)
	body := d.Body().(ErrorResponse)
	assert.Equal(t, "Invalid request body", body.Error)
	assert.Equal(t, "BAD_REQUEST", body.Code)
}

func TestIPHasher(t *testing.T) {
	a := NewIPHasher("salt-a").Hash("203.0.113.5")
	b := NewIPHasher("salt-b").Hash("203.0.113.5")
	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, NewIPHasher("salt-a").Hash("203.0.113.5"))

	long := NewIPHasher(string(make([]byte, 100)))
	assert.Len(t, long.Hash("x"), 64)

	assert.Equal(t, "203***", PartialIP("203.0.113.5"))
	assert.Equal(t, "::1***", PartialIP("::1"))
}
