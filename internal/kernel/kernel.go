// Package kernel wires the vote service's dependencies from configuration
// and owns their shutdown order.
package kernel

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/vibeai/backend/internal/anomaly"
	"github.com/vibeai/backend/internal/audit"
	"github.com/vibeai/backend/internal/auth"
	"github.com/vibeai/backend/internal/behavior"
	"github.com/vibeai/backend/internal/cache"
	"github.com/vibeai/backend/internal/captcha"
	"github.com/vibeai/backend/internal/challenges"
	"github.com/vibeai/backend/internal/config"
	"github.com/vibeai/backend/internal/logger"
	"github.com/vibeai/backend/internal/ratelimit"
	"github.com/vibeai/backend/internal/reputation"
	"github.com/vibeai/backend/internal/repository"
	"github.com/vibeai/backend/internal/validation"
	"github.com/vibeai/backend/internal/voting"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	auditBuffer  = 1024
	auditWorkers = 2
	sweepEvery   = time.Minute
)

// Kernel holds all application dependencies
type Kernel struct {
	cfg *config.Config

	db    *gorm.DB
	cache *cache.RedisClient

	limiter  *ratelimit.Limiter
	likes    repository.LikeRepository
	pow      *challenges.PowIssuer
	time     *challenges.TimeIssuer
	tokens   *auth.TokenValidator
	audit    *audit.Dispatcher
	elastic  *audit.ElasticSink
	sweeper  *challenges.Sweeper
	pipeline *voting.Pipeline

	// Lifecycle hooks
	cleanupFuncs []func(context.Context) error
	mu           sync.Mutex
}

// Build assembles the pipeline on db. redisClient may be nil, in which case
// every store is in-process.
func Build(ctx context.Context, cfg *config.Config, db *gorm.DB, redisClient *cache.RedisClient) (*Kernel, error) {
	k := &Kernel{
		cfg:          cfg,
		db:           db,
		cache:        redisClient,
		likes:        repository.NewLikeRepository(db),
		sweeper:      challenges.NewSweeper(sweepEvery),
		cleanupFuncs: make([]func(context.Context) error, 0),
	}
	policy := cfg.Policy

	secret := []byte(cfg.ChallengeSecret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("generate challenge secret: %w", err)
		}
		logger.Log.Warn("CHALLENGE_SECRET not set - using an ephemeral secret; issued challenges will not survive a restart")
	}
	k.pow = challenges.NewPowIssuer(secret, policy.ProofOfWork)
	k.time = challenges.NewTimeIssuer(secret, policy.TimeChallenge)
	k.tokens = auth.NewTokenValidator([]byte(cfg.JWTSecret))

	retention := policy.Fingerprint.Window * 6
	if policy.Reputation.Enabled {
		retention = policy.Reputation.Retention
	}

	var (
		store   ratelimit.Store
		history behavior.History
		replay  challenges.ReplayGuard
	)
	if cfg.UseRedisStores && redisClient != nil {
		store = ratelimit.NewRedisStore(redisClient)
		history = behavior.NewRedisHistory(redisClient, retention)
		replay = challenges.NewRedisReplayGuard(redisClient)
		logger.Log.Info("Using Redis-backed admission stores")
	} else {
		memStore := ratelimit.NewMemoryStore()
		memHistory := behavior.NewMemoryHistory(retention)
		memReplay := challenges.NewMemoryReplayGuard()
		k.sweeper.Register("rate_limits", memStore.Sweep)
		k.sweeper.Register("behavior_history", memHistory.Sweep)
		k.sweeper.Register("replay", memReplay.Sweep)
		store, history, replay = memStore, memHistory, memReplay
		logger.Log.Info("Using in-memory admission stores")
	}
	k.limiter = ratelimit.NewLimiter(store)

	sinks := []audit.Sink{audit.LogSink{}}
	if cfg.Elasticsearch.URL != "" {
		es, err := audit.NewElasticSink(cfg.Elasticsearch.URL, cfg.Elasticsearch.Index)
		if err != nil {
			return nil, fmt.Errorf("create audit index client: %w", err)
		}
		if err := es.EnsureIndex(ctx); err != nil {
			logger.Log.Warn("Audit index not ready - events will be retried per write", zap.Error(err))
		}
		k.elastic = es
		sinks = append(sinks, es)
	}
	k.audit = audit.NewDispatcher(auditBuffer, auditWorkers, sinks...)

	deps := voting.Deps{
		Limiter:  k.limiter,
		Likes:    k.likes,
		Devices:  k.likes,
		Analyzer: behavior.NewAnalyzer(policy.Behavior),
		Pow:      k.pow,
		Time:     k.time,
		Replay:   replay,
		Captcha:  captcha.NewHCaptcha(policy.Captcha),
		Anomaly:  anomaly.NewDetector(k.likes, policy.Anomaly),
		History:  history,
		Audit:    k.audit,
	}
	if policy.Reputation.Enabled {
		deps.Reputation = reputation.NewScorer(history)
	}
	k.pipeline = voting.NewPipeline(policy, cfg.IPHashSalt, deps)

	return k, nil
}

// Start launches background workers and registers their shutdown
func (k *Kernel) Start() {
	k.audit.Start()
	k.OnCleanup(k.audit.Stop)

	k.sweeper.Start()
	k.OnCleanup(func(context.Context) error {
		k.sweeper.Stop()
		return nil
	})
}

// Config returns the loaded configuration
func (k *Kernel) Config() *config.Config { return k.cfg }

// DB returns the database connection
func (k *Kernel) DB() *gorm.DB { return k.db }

// Cache returns the Redis client, or nil when Redis is not configured
func (k *Kernel) Cache() *cache.RedisClient { return k.cache }

// Limiter returns the shared rate limiter
func (k *Kernel) Limiter() *ratelimit.Limiter { return k.limiter }

// Likes returns the like ledger
func (k *Kernel) Likes() repository.LikeRepository { return k.likes }

// Pow returns the proof-of-work issuer
func (k *Kernel) Pow() *challenges.PowIssuer { return k.pow }

// TimeChallenges returns the time challenge issuer
func (k *Kernel) TimeChallenges() *challenges.TimeIssuer { return k.time }

// Tokens returns the bearer token validator; it may be disabled
func (k *Kernel) Tokens() *auth.TokenValidator { return k.tokens }

// Elastic returns the audit index sink, or nil when not configured
func (k *Kernel) Elastic() *audit.ElasticSink { return k.elastic }

// Pipeline returns the vote admission pipeline
func (k *Kernel) Pipeline() *voting.Pipeline { return k.pipeline }

// HealthChecks returns a probe per configured backing service
func (k *Kernel) HealthChecks() map[string]validation.Check {
	checks := map[string]validation.Check{
		"database": func(ctx context.Context) error {
			sqlDB, err := k.db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if k.cache != nil {
		checks["redis"] = k.cache.Ping
	}
	if k.elastic != nil {
		checks["elasticsearch"] = k.elastic.Ping
	}
	return checks
}

// OnCleanup registers a cleanup function to be called during shutdown.
// Cleanup functions are called in LIFO order.
func (k *Kernel) OnCleanup(fn func(context.Context) error) *Kernel {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.cleanupFuncs = append(k.cleanupFuncs, fn)
	return k
}

// Cleanup runs every registered cleanup function, newest first, and
// returns the first error seen.
func (k *Kernel) Cleanup(ctx context.Context) error {
	k.mu.Lock()
	funcs := k.cleanupFuncs
	k.cleanupFuncs = nil
	k.mu.Unlock()

	var first error
	for i := len(funcs) - 1; i >= 0; i-- {
		if err := funcs[i](ctx); err != nil {
			logger.Log.Error("Cleanup function failed", zap.Int("index", i), zap.Error(err))
			if first == nil {
				first = err
			}
		}
	}
	return first
}
