package challenges

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vibeai/backend/internal/config"
)

func TestVerify(t *testing.T) {
	assert.True(t, Verify("abc", "1322", "000"))
	assert.True(t, Verify("abc", "1322", "000"), "verification is pure and repeatable")
	assert.False(t, Verify("abc", "1321", "000"))
	assert.True(t, Verify("abc", "0", "56ab"))
	assert.True(t, Verify("anything", "x", ""), "empty prefix always matches")
}

func TestSolveFindsFirstSolution(t *testing.T) {
	solution, err := Solve(context.Background(), "vote-challenge-fixed", "0000", 1_000_000)
	require.NoError(t, err)
	assert.Equal(t, "35298", solution)
	assert.True(t, Verify("vote-challenge-fixed", solution, "0000"))
}

func TestSolveGivesUp(t *testing.T) {
	_, err := Solve(context.Background(), "abc", "000", 1000)
	assert.ErrorIs(t, err, ErrTooDifficult)
}

func TestSolveHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Solve(ctx, "abc", strings.Repeat("0", 12), 1_000_000)
	assert.ErrorIs(t, err, context.Canceled)
}

func testPowPolicy() config.ProofOfWorkPolicy {
	return config.ProofOfWorkPolicy{Difficulty: 3, MaxTier: 1, TTL: time.Minute, MaxAttempts: 1_000_000}
}

func TestIssueAndCheck(t *testing.T) {
	issuer := NewPowIssuer([]byte("secret"), testPowPolicy())

	pow, err := issuer.Issue(0)
	require.NoError(t, err)
	assert.Equal(t, "000", pow.Prefix)
	assert.Equal(t, 3, pow.Difficulty)

	solution, err := Solve(context.Background(), pow.Challenge, pow.Prefix, 1_000_000)
	require.NoError(t, err)

	id, err := issuer.Check(Submission{Challenge: pow.Challenge, Solution: solution, ExpectedPrefix: pow.Prefix})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	// checking again still succeeds; single use is enforced by a ReplayGuard
	again, err := issuer.Check(Submission{Challenge: pow.Challenge, Solution: solution, ExpectedPrefix: pow.Prefix})
	require.NoError(t, err)
	assert.Equal(t, id, again)
}

func TestIssueTiers(t *testing.T) {
	issuer := NewPowIssuer([]byte("secret"), testPowPolicy())

	pow, err := issuer.Issue(1)
	require.NoError(t, err)
	assert.Equal(t, 4, pow.Difficulty)

	pow, err = issuer.Issue(5)
	require.NoError(t, err)
	assert.Equal(t, 4, pow.Difficulty, "tier is capped")

	pow, err = issuer.Issue(-1)
	require.NoError(t, err)
	assert.Equal(t, 3, pow.Difficulty)
}

func TestValidateRejections(t *testing.T) {
	issuer := NewPowIssuer([]byte("secret"), testPowPolicy())
	pow, err := issuer.Issue(0)
	require.NoError(t, err)

	_, err = issuer.Validate(pow.Challenge, "00")
	assert.ErrorIs(t, err, ErrWeakPrefix)

	_, err = issuer.Validate(pow.Challenge, "00a")
	assert.ErrorIs(t, err, ErrWeakPrefix)

	_, err = issuer.Validate(pow.Challenge, "0000")
	assert.NoError(t, err, "a harder prefix is accepted")

	_, err = issuer.Validate("not-a-challenge", "000")
	assert.ErrorIs(t, err, ErrMalformed)

	tampered := strings.Replace(pow.Challenge, ".3.", ".1.", 1)
	_, err = issuer.Validate(tampered, "0")
	assert.ErrorIs(t, err, ErrForged)

	other := NewPowIssuer([]byte("other-secret"), testPowPolicy())
	_, err = other.Validate(pow.Challenge, "000")
	assert.ErrorIs(t, err, ErrForged)

	issuer.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = issuer.Validate(pow.Challenge, "000")
	assert.ErrorIs(t, err, ErrExpired)
}

func TestCheckRejectsWrongSolution(t *testing.T) {
	issuer := NewPowIssuer([]byte("secret"), testPowPolicy())
	pow, err := issuer.Issue(0)
	require.NoError(t, err)

	var wrong string
	for n := 0; ; n++ {
		candidate := string(rune('a' + n%26))
		if !Verify(pow.Challenge, candidate, pow.Prefix) {
			wrong = candidate
			break
		}
	}

	_, err = issuer.Check(Submission{Challenge: pow.Challenge, Solution: wrong, ExpectedPrefix: pow.Prefix})
	assert.ErrorIs(t, err, ErrInvalidSolution)
}

func TestHardestDefaultTierSolvableWithinCeiling(t *testing.T) {
	policy := config.DefaultPolicy().ProofOfWork
	issuer := NewPowIssuer([]byte("secret"), policy)

	for i := 0; i < 20; i++ {
		pow, err := issuer.Issue(policy.MaxTier)
		require.NoError(t, err)
		assert.Equal(t, policy.Difficulty+policy.MaxTier, pow.Difficulty)

		solution, err := Solve(context.Background(), pow.Challenge, pow.Prefix, policy.MaxAttempts)
		require.NoError(t, err, "puzzle %d", i)
		_, err = issuer.Check(Submission{Challenge: pow.Challenge, Solution: solution, ExpectedPrefix: pow.Prefix})
		require.NoError(t, err)
	}
}

func TestHoneypot(t *testing.T) {
	assert.True(t, ValidateHoneypot(""))
	assert.False(t, ValidateHoneypot("anything-nonempty"))
	assert.False(t, ValidateHoneypot(" "))
}
