package challenges

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/vibeai/backend/internal/config"
)

// Proof-of-work errors
var (
	ErrTooDifficult    = errors.New("proof of work: attempt ceiling reached")
	ErrWeakPrefix      = errors.New("proof of work: prefix is easier than required")
	ErrInvalidSolution = errors.New("proof of work: solution does not match prefix")
)

// ProofOfWork is an issued puzzle: find s with sha256(Challenge+s) starting with Prefix
type ProofOfWork struct {
	Challenge  string `json:"challenge"`
	Prefix     string `json:"prefix"`
	Difficulty int    `json:"difficulty"`
	ExpiresAt  int64  `json:"expiresAt"`
}

// Submission is a client's answer to a ProofOfWork
type Submission struct {
	Challenge      string `json:"challenge"`
	Solution       string `json:"solution"`
	ExpectedPrefix string `json:"expectedPrefix"`
}

// Prefix returns the hex prefix for a difficulty (number of leading zeros)
func Prefix(difficulty int) string {
	return strings.Repeat("0", difficulty)
}

// Verify reports whether sha256(challenge+solution) starts with prefix.
// It is pure: the same inputs always give the same answer.
func Verify(challenge, solution, prefix string) bool {
	sum := sha256.Sum256([]byte(challenge + solution))
	return strings.HasPrefix(hex.EncodeToString(sum[:]), prefix)
}

// Solve searches decimal nonces from 0 upward. It gives up with
// ErrTooDifficult after maxAttempts and honours ctx cancellation.
func Solve(ctx context.Context, challenge, prefix string, maxAttempts int) (string, error) {
	for n := 0; n < maxAttempts; n++ {
		if n&0xfff == 0 {
			if err := ctx.Err(); err != nil {
				return "", err
			}
		}
		candidate := strconv.Itoa(n)
		if Verify(challenge, candidate, prefix) {
			return candidate, nil
		}
	}
	return "", ErrTooDifficult
}

// PowIssuer creates signed puzzles so no server-side state is needed to
// validate them later. Format: nonce.expiresAtMs.difficulty.mac
type PowIssuer struct {
	signer signer
	policy config.ProofOfWorkPolicy
	now    func() time.Time
}

// NewPowIssuer creates an issuer
func NewPowIssuer(secret []byte, policy config.ProofOfWorkPolicy) *PowIssuer {
	return &PowIssuer{signer: signer{secret: secret, kind: kindProofOfWork}, policy: policy, now: time.Now}
}

// Issue creates a puzzle. Each tier above zero adds one hex zero to the
// prefix, capped at the configured maximum tier.
func (p *PowIssuer) Issue(tier int) (ProofOfWork, error) {
	if tier < 0 {
		tier = 0
	}
	if tier > p.policy.MaxTier {
		tier = p.policy.MaxTier
	}
	difficulty := p.policy.Difficulty + tier

	nonce, err := randomNonce()
	if err != nil {
		return ProofOfWork{}, fmt.Errorf("generate nonce: %w", err)
	}
	expiresAt := p.now().Add(p.policy.TTL).UnixMilli()

	return ProofOfWork{
		Challenge:  p.signer.seal(nonce, strconv.FormatInt(expiresAt, 10), strconv.Itoa(difficulty)),
		Prefix:     Prefix(difficulty),
		Difficulty: difficulty,
		ExpiresAt:  expiresAt,
	}, nil
}

// Validate checks that challenge was issued here, is unexpired, and that
// expectedPrefix is at least as hard as the issued difficulty.
// It returns the challenge nonce, used as its single-use identifier.
func (p *PowIssuer) Validate(challenge, expectedPrefix string) (string, error) {
	fields, err := p.signer.open(challenge, 3)
	if err != nil {
		return "", err
	}
	expiresAt, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return "", ErrMalformed
	}
	difficulty, err := strconv.Atoi(fields[2])
	if err != nil {
		return "", ErrMalformed
	}
	if p.now().UnixMilli() > expiresAt {
		return "", ErrExpired
	}
	if len(expectedPrefix) < difficulty || strings.Trim(expectedPrefix, "0") != "" {
		return "", ErrWeakPrefix
	}
	return fields[0], nil
}

// Check validates the challenge and then the solution, returning the
// challenge identifier on success
func (p *PowIssuer) Check(s Submission) (string, error) {
	id, err := p.Validate(s.Challenge, s.ExpectedPrefix)
	if err != nil {
		return "", err
	}
	if !Verify(s.Challenge, s.Solution, s.ExpectedPrefix) {
		return "", ErrInvalidSolution
	}
	return id, nil
}
