package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "development")

	cfg, err := Load()
	require.NoError(t, err)

	p := cfg.Policy
	assert.Equal(t, Limit{Max: 30, Window: 5 * time.Minute}, p.IPLimit)
	assert.Equal(t, Limit{Max: 10, Window: time.Minute}, p.SessionLimit)
	assert.Equal(t, 3, p.Fingerprint.MaxSessions)
	assert.Equal(t, 10*time.Minute, p.Fingerprint.Window)
	assert.Equal(t, 50, p.Behavior.BotThreshold)
	assert.Equal(t, 3, p.ProofOfWork.Difficulty)
	assert.Equal(t, 1, p.ProofOfWork.MaxTier)
	assert.Equal(t, 1_000_000, p.ProofOfWork.MaxAttempts)
	assert.Equal(t, 2*time.Second, p.TimeChallenge.MinDwell)
	assert.Equal(t, 30*time.Second, p.TimeChallenge.TTL)
	assert.Equal(t, 50, p.Anomaly.BurstThreshold)
	assert.Equal(t, 10, p.Anomaly.MinDistinctIPs)
	assert.False(t, p.Reputation.Enabled)
	assert.Equal(t, 60, p.Reputation.MinScore)
	assert.Greater(t, p.Reputation.Retention, 90*24*time.Hour)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("RATE_LIMIT_SESSION_MAX", "5")
	t.Setenv("RATE_LIMIT_SESSION_WINDOW", "90s")
	t.Setenv("POW_DIFFICULTY", "2")
	t.Setenv("POW_MAX_ATTEMPTS", "500000")
	t.Setenv("CAPTCHA_ALLOW_UNCONFIGURED", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Policy.SessionLimit.Max)
	assert.Equal(t, 90*time.Second, cfg.Policy.SessionLimit.Window)
	assert.Equal(t, 2, cfg.Policy.ProofOfWork.Difficulty)
	assert.Equal(t, 500_000, cfg.Policy.ProofOfWork.MaxAttempts)
	assert.True(t, cfg.Policy.Captcha.AllowUnconfigured)
}

func TestLoadRejectsBadNumber(t *testing.T) {
	t.Setenv("RATE_LIMIT_IP_MAX", "lots")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RATE_LIMIT_IP_MAX")
}

func TestLoadPolicyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
ip_limit:
  max: 100
  window: 10m
anomaly:
  window: 1m
  burst_threshold: 20
  min_distinct_ips: 4
`), 0o600))
	t.Setenv("VOTE_POLICY_FILE", path)
	t.Setenv("ANOMALY_MIN_DISTINCT_IPS", "6")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Limit{Max: 100, Window: 10 * time.Minute}, cfg.Policy.IPLimit)
	assert.Equal(t, time.Minute, cfg.Policy.Anomaly.Window)
	assert.Equal(t, 20, cfg.Policy.Anomaly.BurstThreshold)
	// env wins over file
	assert.Equal(t, 6, cfg.Policy.Anomaly.MinDistinctIPs)
	// untouched sections keep defaults
	assert.Equal(t, 10, cfg.Policy.SessionLimit.Max)
}

func TestLoadMissingPolicyFile(t *testing.T) {
	t.Setenv("VOTE_POLICY_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := Load()
	assert.Error(t, err)
}

func TestProductionRules(t *testing.T) {
	base := func() *Config {
		return &Config{
			Environment:     "production",
			ChallengeSecret: "s",
			IPHashSalt:      "salt",
			Policy:          DefaultPolicy(),
		}
	}

	cfg := base()
	cfg.Policy.Captcha.Secret = "secret"
	assert.NoError(t, cfg.Validate())

	cfg = base()
	assert.Error(t, cfg.Validate(), "captcha secret required")

	cfg = base()
	cfg.Policy.Captcha.Secret = "secret"
	cfg.Policy.Captcha.AllowUnconfigured = true
	assert.Error(t, cfg.Validate(), "fail-open refused in production")

	cfg = base()
	cfg.Policy.Captcha.Secret = "secret"
	cfg.ChallengeSecret = ""
	assert.Error(t, cfg.Validate())
}

func TestPolicyValidate(t *testing.T) {
	p := DefaultPolicy()
	p.SessionLimit.Max = 0
	assert.Error(t, p.Validate())

	p = DefaultPolicy()
	p.TimeChallenge.TTL = time.Second
	assert.Error(t, p.Validate())

	p = DefaultPolicy()
	p.ProofOfWork.Difficulty = 40
	assert.Error(t, p.Validate())
}

func TestPolicyValidateProofOfWorkCeiling(t *testing.T) {
	p := DefaultPolicy()
	require.NoError(t, p.Validate())
	assert.LessOrEqual(t, ExpectedAttempts(p.ProofOfWork.Difficulty+p.ProofOfWork.MaxTier), float64(p.ProofOfWork.MaxAttempts))

	// 16^5 is just over a million
	p.ProofOfWork.MaxTier = 2
	assert.Error(t, p.Validate())

	p = DefaultPolicy()
	p.ProofOfWork.Difficulty = 5
	p.ProofOfWork.MaxTier = 0
	assert.Error(t, p.Validate())

	p.ProofOfWork.MaxAttempts = 2_000_000
	assert.NoError(t, p.Validate())

	p.ProofOfWork.MaxAttempts = 0
	assert.Error(t, p.Validate())
}

func TestPolicyValidateReputation(t *testing.T) {
	p := DefaultPolicy()
	p.Reputation.Enabled = true
	require.NoError(t, p.Validate())

	p.Reputation.MinScore = LowestReputation
	assert.Error(t, p.Validate(), "a threshold at the floor never fires")

	p.Reputation.MinScore = 101
	assert.Error(t, p.Validate())

	p = DefaultPolicy()
	p.Reputation.Enabled = true
	p.Reputation.Retention = 0
	assert.Error(t, p.Validate())

	// disabled scoring is not checked
	p.Reputation.Enabled = false
	p.Reputation.MinScore = 0
	assert.NoError(t, p.Validate())
}
