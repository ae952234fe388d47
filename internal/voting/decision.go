package voting

import (
	"net/http"

	"github.com/vibeai/backend/internal/challenges"
	apierrors "github.com/vibeai/backend/internal/errors"
)

// Outcome classifies a decision for metrics and audit
type Outcome string

const (
	OutcomeAdmitted Outcome = "admitted"
	OutcomeDeceived Outcome = "honeypot"
	OutcomeRejected Outcome = "rejected"
	OutcomeFailed   Outcome = "failed"
)

// Stage names, in execution order
const (
	StageValidation    = "validation"
	StageHoneypot      = "honeypot"
	StageIPLimit       = "ip_rate_limit"
	StageSessionLimit  = "session_rate_limit"
	StageFingerprint   = "fingerprint"
	StageBehavior      = "behavior"
	StageTimeChallenge = "time_challenge"
	StageCaptcha       = "captcha"
	StageAnomaly       = "anomaly"
	StageCommit        = "commit"
	StageComplete      = "complete"
)

// RejectionKind is the machine-readable class of a refusal
type RejectionKind string

const (
	KindValidation           RejectionKind = "validation"
	KindRateLimited          RejectionKind = "rate_limited"
	KindVerificationRequired RejectionKind = "verification_required"
	KindVerificationFailed   RejectionKind = "verification_failed"
	KindStorageFailure       RejectionKind = "storage_failure"
)

// RateLimitState is reported with every admitted vote
type RateLimitState struct {
	Remaining int   `json:"remaining"`
	ResetTime int64 `json:"resetTime"`
}

// Rejection explains a refusal and how to get past it
type Rejection struct {
	Kind               RejectionKind
	Code               apierrors.ErrorCode
	Message            string
	Field              string
	RequireCaptcha     bool
	RequireProofOfWork bool
	Challenge          *challenges.ProofOfWork
	RetryAfter         int64 // unix millis
}

// Decision is the result of one pass through the pipeline
type Decision struct {
	Outcome       Outcome
	Stage         string
	Status        int
	Liked         bool
	RateLimit     *RateLimitState
	Rejection     *Rejection
	BehaviorScore int
	Reasons       []string
}

// SuccessResponse is the body of an admitted (or deceived) vote
type SuccessResponse struct {
	Success   bool            `json:"success"`
	Liked     bool            `json:"liked"`
	RateLimit *RateLimitState `json:"rateLimit,omitempty"`
}

// ErrorResponse is the body of a refused vote
type ErrorResponse struct {
	Error              string `json:"error"`
	Code               string `json:"code,omitempty"`
	Field              string `json:"field,omitempty"`
	RequireCaptcha     bool   `json:"requireCaptcha,omitempty"`
	RequireProofOfWork bool   `json:"requireProofOfWork,omitempty"`
	Challenge          string `json:"challenge,omitempty"`
	Prefix             string `json:"prefix,omitempty"`
	Difficulty         int    `json:"difficulty,omitempty"`
	ExpiresAt          int64  `json:"expiresAt,omitempty"`
	RetryAfter         int64  `json:"retryAfter,omitempty"`
}

// Body returns the JSON body to send with d.Status
func (d *Decision) Body() interface{} {
	if d.Rejection == nil {
		return SuccessResponse{Success: true, Liked: d.Liked, RateLimit: d.RateLimit}
	}
	r := d.Rejection
	body := ErrorResponse{
		Error:              r.Message,
		Code:               string(r.Code),
		Field:              r.Field,
		RequireCaptcha:     r.RequireCaptcha,
		RequireProofOfWork: r.RequireProofOfWork,
		RetryAfter:         r.RetryAfter,
	}
	if r.Challenge != nil {
		body.Challenge = r.Challenge.Challenge
		body.Prefix = r.Challenge.Prefix
		body.Difficulty = r.Challenge.Difficulty
		body.ExpiresAt = r.Challenge.ExpiresAt
	}
	return body
}

func admitted(liked bool, rl *RateLimitState) *Decision {
	return &Decision{Outcome: OutcomeAdmitted, Stage: StageComplete, Status: http.StatusOK, Liked: liked, RateLimit: rl}
}

// rejected takes the status and code from e
func rejected(stage string, kind RejectionKind, e *apierrors.APIError) *Decision {
	return &Decision{
		Outcome: OutcomeRejected,
		Stage:   stage,
		Status:  e.Status,
		Rejection: &Rejection{
			Kind:    kind,
			Code:    e.Code,
			Message: e.Message,
			Field:   e.Field,
		},
	}
}

func invalid(field, message string) *Decision {
	return rejected(StageValidation, KindValidation, apierrors.InvalidField(field, message))
}

// Malformed is the decision for a body that could not be decoded
func Malformed() *Decision {
	return rejected(StageValidation, KindValidation, apierrors.BadRequest("Invalid request body"))
}

func rateLimited(stage, message string) *Decision {
	return rejected(stage, KindRateLimited, apierrors.RateLimited(message))
}

func verificationRequired(stage, message string) *Decision {
	return rejected(stage, KindVerificationRequired, apierrors.VerificationRequired(message))
}

func verificationFailed(stage, message string) *Decision {
	return rejected(stage, KindVerificationFailed, apierrors.VerificationFailed(message))
}

// failed keeps storage detail out of the body
func failed(stage string) *Decision {
	d := rejected(stage, KindStorageFailure, apierrors.StorageFailure())
	d.Outcome = OutcomeFailed
	d.Rejection.Message = "Failed to process vote"
	return d
}
