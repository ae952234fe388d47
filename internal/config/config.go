// Package config loads vote admission settings from defaults, an optional
// YAML policy file and environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds process-level settings plus the tunable admission policy
type Config struct {
	Environment string
	Port        string
	LogLevel    string
	LogFile     string

	Redis         RedisConfig
	Elasticsearch ElasticsearchConfig
	Telemetry     TelemetryConfig

	// JWTSecret enables bearer-token identity when non-empty
	JWTSecret string
	// ChallengeSecret signs proof-of-work and time challenges
	ChallengeSecret string
	// IPHashSalt keys the IP hash stored in the ledger
	IPHashSalt string

	// UseRedisStores moves counters, history and the replay set into Redis
	UseRedisStores bool

	Policy Policy
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     string
	Password string
}

// ElasticsearchConfig enables the audit index when URL is set
type ElasticsearchConfig struct {
	URL   string
	Index string
}

// TelemetryConfig mirrors telemetry.Config
type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	SamplingRate float64
}

// Limit is a fixed-window rate limit
type Limit struct {
	Max    int           `yaml:"max"`
	Window time.Duration `yaml:"window"`
}

// Policy is every admission threshold that operators may tune at runtime
type Policy struct {
	IPLimit        Limit `yaml:"ip_limit"`
	SessionLimit   Limit `yaml:"session_limit"`
	ChallengeLimit Limit `yaml:"challenge_limit"`

	Fingerprint   FingerprintPolicy   `yaml:"fingerprint"`
	Behavior      BehaviorPolicy      `yaml:"behavior"`
	ProofOfWork   ProofOfWorkPolicy   `yaml:"proof_of_work"`
	TimeChallenge TimeChallengePolicy `yaml:"time_challenge"`
	Anomaly       AnomalyPolicy       `yaml:"anomaly"`
	Captcha       CaptchaPolicy       `yaml:"captcha"`
	Reputation    ReputationPolicy    `yaml:"reputation"`
}

// FingerprintPolicy controls the shared-device check
type FingerprintPolicy struct {
	Window      time.Duration `yaml:"window"`
	MaxSessions int           `yaml:"max_sessions"`
}

// BehaviorPolicy holds the heuristic thresholds of the behavioral analyzer
type BehaviorPolicy struct {
	BotThreshold        int     `yaml:"bot_threshold"`
	MinStdDevMs         float64 `yaml:"min_stddev_ms"`
	MinActionsForTiming int     `yaml:"min_actions_for_timing"`
	FastDeltaMs         int64   `yaml:"fast_delta_ms"`
	PatternMinActions   int     `yaml:"pattern_min_actions"`
	MinDistinctKinds    int     `yaml:"min_distinct_kinds"`
	// EscalateConfidence raises the proof-of-work tier
	EscalateConfidence int `yaml:"escalate_confidence"`
}

// ProofOfWorkPolicy controls puzzle difficulty and lifetime. MaxAttempts is
// the solver ceiling; the hardest tier must stay solvable within it.
type ProofOfWorkPolicy struct {
	Difficulty  int           `yaml:"difficulty"`
	MaxTier     int           `yaml:"max_tier"`
	TTL         time.Duration `yaml:"ttl"`
	MaxAttempts int           `yaml:"max_attempts"`
}

// ExpectedAttempts is the mean number of nonces needed to solve a puzzle of
// the given difficulty (16^difficulty)
func ExpectedAttempts(difficulty int) float64 {
	return math.Pow(16, float64(difficulty))
}

// TimeChallengePolicy bounds the dwell window
type TimeChallengePolicy struct {
	MinDwell time.Duration `yaml:"min_dwell"`
	TTL      time.Duration `yaml:"ttl"`
}

// AnomalyPolicy describes a suspicious burst on one post
type AnomalyPolicy struct {
	Window         time.Duration `yaml:"window"`
	BurstThreshold int           `yaml:"burst_threshold"`
	MinDistinctIPs int           `yaml:"min_distinct_ips"`
}

// CaptchaPolicy configures the external verifier
type CaptchaPolicy struct {
	Secret            string        `yaml:"-"`
	VerifyURL         string        `yaml:"verify_url"`
	Timeout           time.Duration `yaml:"timeout"`
	AllowUnconfigured bool          `yaml:"allow_unconfigured"`
}

// ReputationPolicy enables the optional per-session trust score. Retention
// is how long an idle session's history is kept while scoring is enabled.
type ReputationPolicy struct {
	Enabled   bool          `yaml:"enabled"`
	MinScore  int           `yaml:"min_score"`
	Retention time.Duration `yaml:"retention"`
}

// LowestReputation is the floor of the reputation score: a session whose
// history is mostly flagged
const LowestReputation = 50

// DefaultPolicy returns production thresholds
func DefaultPolicy() Policy {
	return Policy{
		IPLimit:        Limit{Max: 30, Window: 5 * time.Minute},
		SessionLimit:   Limit{Max: 10, Window: time.Minute},
		ChallengeLimit: Limit{Max: 60, Window: time.Minute},
		Fingerprint: FingerprintPolicy{
			Window:      10 * time.Minute,
			MaxSessions: 3,
		},
		Behavior: BehaviorPolicy{
			BotThreshold:        50,
			MinStdDevMs:         100,
			MinActionsForTiming: 6,
			FastDeltaMs:         500,
			PatternMinActions:   10,
			MinDistinctKinds:    3,
			EscalateConfidence:  80,
		},
		ProofOfWork: ProofOfWorkPolicy{
			Difficulty:  3,
			MaxTier:     1,
			TTL:         5 * time.Minute,
			MaxAttempts: 1_000_000,
		},
		TimeChallenge: TimeChallengePolicy{
			MinDwell: 2 * time.Second,
			TTL:      30 * time.Second,
		},
		Anomaly: AnomalyPolicy{
			Window:         5 * time.Minute,
			BurstThreshold: 50,
			MinDistinctIPs: 10,
		},
		Captcha: CaptchaPolicy{
			VerifyURL: "https://hcaptcha.com/siteverify",
			Timeout:   5 * time.Second,
		},
		Reputation: ReputationPolicy{
			Enabled:   false,
			MinScore:  60,
			Retention: 120 * 24 * time.Hour,
		},
	}
}

// Load builds the configuration. VOTE_POLICY_FILE, when set, must point at a
// readable YAML file; individual env vars override values from it.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Port:        getEnv("PORT", "8787"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFile:     getEnv("LOG_FILE", "voting.log"),
		Redis: RedisConfig{
			Host:     os.Getenv("REDIS_HOST"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
		},
		Elasticsearch: ElasticsearchConfig{
			URL:   os.Getenv("ELASTICSEARCH_URL"),
			Index: getEnv("AUDIT_INDEX", "vote-audit"),
		},
		Telemetry: TelemetryConfig{
			OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
		},
		JWTSecret:       os.Getenv("JWT_SECRET"),
		ChallengeSecret: os.Getenv("CHALLENGE_SECRET"),
		IPHashSalt:      os.Getenv("IP_HASH_SALT"),
		Policy:          DefaultPolicy(),
	}

	if path := os.Getenv("VOTE_POLICY_FILE"); path != "" {
		if err := cfg.Policy.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (p *Policy) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read policy file: %w", err)
	}
	if err := yaml.Unmarshal(data, p); err != nil {
		return fmt.Errorf("failed to parse policy file: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	r := &envReader{}

	c.UseRedisStores = r.bool("USE_REDIS_STORES", c.Redis.Host != "")
	c.Telemetry.Enabled = r.bool("OTEL_ENABLED", false)
	c.Telemetry.SamplingRate = r.float("OTEL_SAMPLING_RATE", 1.0)

	p := &c.Policy
	p.IPLimit.Max = r.int("RATE_LIMIT_IP_MAX", p.IPLimit.Max)
	p.IPLimit.Window = r.duration("RATE_LIMIT_IP_WINDOW", p.IPLimit.Window)
	p.SessionLimit.Max = r.int("RATE_LIMIT_SESSION_MAX", p.SessionLimit.Max)
	p.SessionLimit.Window = r.duration("RATE_LIMIT_SESSION_WINDOW", p.SessionLimit.Window)
	p.ChallengeLimit.Max = r.int("RATE_LIMIT_CHALLENGE_MAX", p.ChallengeLimit.Max)
	p.ChallengeLimit.Window = r.duration("RATE_LIMIT_CHALLENGE_WINDOW", p.ChallengeLimit.Window)

	p.Fingerprint.MaxSessions = r.int("FINGERPRINT_MAX_SESSIONS", p.Fingerprint.MaxSessions)
	p.Fingerprint.Window = r.duration("FINGERPRINT_WINDOW", p.Fingerprint.Window)

	p.Behavior.BotThreshold = r.int("BEHAVIOR_BOT_THRESHOLD", p.Behavior.BotThreshold)
	p.Behavior.EscalateConfidence = r.int("BEHAVIOR_ESCALATE_CONFIDENCE", p.Behavior.EscalateConfidence)

	p.ProofOfWork.Difficulty = r.int("POW_DIFFICULTY", p.ProofOfWork.Difficulty)
	p.ProofOfWork.MaxTier = r.int("POW_MAX_TIER", p.ProofOfWork.MaxTier)
	p.ProofOfWork.TTL = r.duration("POW_TTL", p.ProofOfWork.TTL)
	p.ProofOfWork.MaxAttempts = r.int("POW_MAX_ATTEMPTS", p.ProofOfWork.MaxAttempts)

	p.TimeChallenge.MinDwell = r.duration("TIME_CHALLENGE_MIN_DWELL", p.TimeChallenge.MinDwell)
	p.TimeChallenge.TTL = r.duration("TIME_CHALLENGE_TTL", p.TimeChallenge.TTL)

	p.Anomaly.Window = r.duration("ANOMALY_WINDOW", p.Anomaly.Window)
	p.Anomaly.BurstThreshold = r.int("ANOMALY_BURST_THRESHOLD", p.Anomaly.BurstThreshold)
	p.Anomaly.MinDistinctIPs = r.int("ANOMALY_MIN_DISTINCT_IPS", p.Anomaly.MinDistinctIPs)

	p.Captcha.Secret = os.Getenv("HCAPTCHA_SECRET")
	p.Captcha.VerifyURL = getEnv("HCAPTCHA_VERIFY_URL", p.Captcha.VerifyURL)
	p.Captcha.Timeout = r.duration("CAPTCHA_TIMEOUT", p.Captcha.Timeout)
	p.Captcha.AllowUnconfigured = r.bool("CAPTCHA_ALLOW_UNCONFIGURED", p.Captcha.AllowUnconfigured)

	p.Reputation.Enabled = r.bool("REPUTATION_ENABLED", p.Reputation.Enabled)
	p.Reputation.MinScore = r.int("REPUTATION_MIN_SCORE", p.Reputation.MinScore)
	p.Reputation.Retention = r.duration("REPUTATION_RETENTION", p.Reputation.Retention)

	return r.err
}

// IsProduction reports whether ENVIRONMENT=production
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// Validate checks thresholds and production-only requirements
func (c *Config) Validate() error {
	if err := c.Policy.Validate(); err != nil {
		return err
	}
	if c.IsProduction() {
		if c.Policy.Captcha.AllowUnconfigured {
			return errors.New("CAPTCHA_ALLOW_UNCONFIGURED cannot be enabled in production")
		}
		if c.Policy.Captcha.Secret == "" {
			return errors.New("HCAPTCHA_SECRET is required in production")
		}
		if c.ChallengeSecret == "" {
			return errors.New("CHALLENGE_SECRET is required in production")
		}
		if c.IPHashSalt == "" {
			return errors.New("IP_HASH_SALT is required in production")
		}
	}
	return nil
}

// Validate checks that every threshold is usable
func (p Policy) Validate() error {
	limits := map[string]Limit{
		"ip_limit":        p.IPLimit,
		"session_limit":   p.SessionLimit,
		"challenge_limit": p.ChallengeLimit,
	}
	for name, l := range limits {
		if l.Max <= 0 || l.Window <= 0 {
			return fmt.Errorf("%s must have a positive max and window", name)
		}
	}
	switch {
	case p.Fingerprint.MaxSessions <= 0 || p.Fingerprint.Window <= 0:
		return errors.New("fingerprint policy must be positive")
	case p.Behavior.BotThreshold <= 0:
		return errors.New("behavior bot_threshold must be positive")
	case p.ProofOfWork.Difficulty <= 0 || p.ProofOfWork.Difficulty > 16:
		return errors.New("proof_of_work difficulty must be between 1 and 16")
	case p.ProofOfWork.MaxTier < 0 || p.ProofOfWork.TTL <= 0:
		return errors.New("proof_of_work max_tier and ttl must be non-negative and positive")
	case p.ProofOfWork.MaxAttempts <= 0:
		return errors.New("proof_of_work max_attempts must be positive")
	case ExpectedAttempts(p.ProofOfWork.Difficulty+p.ProofOfWork.MaxTier) > float64(p.ProofOfWork.MaxAttempts):
		return fmt.Errorf("proof_of_work difficulty %d at max_tier %d cannot be solved within %d attempts",
			p.ProofOfWork.Difficulty, p.ProofOfWork.MaxTier, p.ProofOfWork.MaxAttempts)
	case p.TimeChallenge.MinDwell < 0 || p.TimeChallenge.TTL <= p.TimeChallenge.MinDwell:
		return errors.New("time_challenge ttl must exceed min_dwell")
	case p.Anomaly.Window <= 0 || p.Anomaly.BurstThreshold <= 0 || p.Anomaly.MinDistinctIPs <= 0:
		return errors.New("anomaly policy must be positive")
	case p.Captcha.Timeout <= 0:
		return errors.New("captcha timeout must be positive")
	case p.Reputation.Enabled && (p.Reputation.MinScore <= LowestReputation || p.Reputation.MinScore > 100):
		return fmt.Errorf("reputation min_score must be between %d and 100", LowestReputation+1)
	case p.Reputation.Enabled && p.Reputation.Retention <= 0:
		return errors.New("reputation retention must be positive")
	}
	return nil
}

// envReader keeps the first parse error so applyEnv reads linearly
type envReader struct {
	err error
}

func (r *envReader) fail(key string, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("invalid %s: %w", key, err)
	}
}

func (r *envReader) int(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		r.fail(key, err)
		return fallback
	}
	return v
}

func (r *envReader) float(key string, fallback float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		r.fail(key, err)
		return fallback
	}
	return v
}

func (r *envReader) bool(key string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		r.fail(key, err)
		return fallback
	}
	return v
}

// duration accepts Go duration strings ("90s", "5m")
func (r *envReader) duration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		r.fail(key, err)
		return fallback
	}
	return v
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}
