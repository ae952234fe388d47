package challenges

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/vibeai/backend/internal/config"
)

// ErrTooFast means the token came back before the minimum dwell time
var ErrTooFast = errors.New("time challenge answered too quickly")

// TimeChallenge is a signed token binding its issue and expiry times
type TimeChallenge struct {
	Token     string `json:"token"`
	IssuedAt  int64  `json:"issuedAt"`
	ExpiresAt int64  `json:"expiresAt"`
}

// TimeIssuer creates and verifies time challenges.
// Token format: nonce.issuedAtMs.expiresAtMs.mac
type TimeIssuer struct {
	signer signer
	policy config.TimeChallengePolicy
	now    func() time.Time
}

// NewTimeIssuer creates an issuer
func NewTimeIssuer(secret []byte, policy config.TimeChallengePolicy) *TimeIssuer {
	return &TimeIssuer{signer: signer{secret: secret, kind: kindTime}, policy: policy, now: time.Now}
}

// Issue creates a token valid from now until now+TTL
func (t *TimeIssuer) Issue() (TimeChallenge, error) {
	nonce, err := randomNonce()
	if err != nil {
		return TimeChallenge{}, fmt.Errorf("generate nonce: %w", err)
	}
	issued := t.now()
	expires := issued.Add(t.policy.TTL)
	issuedMs := strconv.FormatInt(issued.UnixMilli(), 10)
	expiresMs := strconv.FormatInt(expires.UnixMilli(), 10)

	return TimeChallenge{
		Token:     t.signer.seal(nonce, issuedMs, expiresMs),
		IssuedAt:  issued.UnixMilli(),
		ExpiresAt: expires.UnixMilli(),
	}, nil
}

// Verify checks the token signature, rejects it after expiry, and rejects
// a submission made less than the minimum dwell after issuance.
// It returns the token nonce as its single-use identifier.
func (t *TimeIssuer) Verify(token string, submittedAt time.Time) (string, error) {
	fields, err := t.signer.open(token, 3)
	if err != nil {
		return "", err
	}
	issuedMs, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return "", ErrMalformed
	}
	expiresMs, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return "", ErrMalformed
	}

	if t.now().UnixMilli() > expiresMs {
		return "", ErrExpired
	}
	if submittedAt.UnixMilli()-issuedMs < t.policy.MinDwell.Milliseconds() {
		return "", ErrTooFast
	}
	return fields[0], nil
}
