package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vibeai/backend/internal/cache"
	"github.com/vibeai/backend/internal/config"
	"github.com/vibeai/backend/internal/database"
	"github.com/vibeai/backend/internal/handlers"
	"github.com/vibeai/backend/internal/kernel"
	"github.com/vibeai/backend/internal/logger"
	"github.com/vibeai/backend/internal/metrics"
	"github.com/vibeai/backend/internal/middleware"
	"github.com/vibeai/backend/internal/telemetry"
	"github.com/vibeai/backend/internal/validation"
	"go.uber.org/zap"
)

const serviceName = "vibeai-voting"

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logger.Initialize(cfg.LogLevel, cfg.LogFile); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Close()

	logger.Log.Info("Vote service starting",
		zap.String("environment", cfg.Environment),
		zap.String("port", cfg.Port),
	)

	metrics.Initialize()

	ctx := context.Background()
	tp, err := telemetry.InitTracer(ctx, telemetry.Config{
		ServiceName:  serviceName,
		Environment:  cfg.Environment,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		Enabled:      cfg.Telemetry.Enabled,
		SamplingRate: cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		logger.Log.Warn("Tracing disabled - failed to initialize exporter", zap.Error(err))
	}

	// Initialize database
	if err := database.Initialize(); err != nil {
		logger.FatalWithFields("Failed to initialize database", err)
	}
	if err := database.Migrate(); err != nil {
		logger.FatalWithFields("Failed to run migrations", err)
	}

	var redisClient *cache.RedisClient
	if cfg.Redis.Host != "" {
		redisClient, err = cache.NewRedisClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password)
		if err != nil {
			if cfg.UseRedisStores {
				logger.FatalWithFields("Redis stores requested but Redis is unreachable", err)
			}
			logger.Log.Warn("Redis unavailable - continuing with in-memory stores", zap.Error(err))
			redisClient = nil
		}
	}

	k, err := kernel.Build(ctx, cfg, database.DB, redisClient)
	if err != nil {
		logger.FatalWithFields("Failed to build service", err)
	}

	// registered first so they run last
	k.OnCleanup(func(context.Context) error { return database.Close() })
	if redisClient != nil {
		k.OnCleanup(func(context.Context) error { return redisClient.Close() })
	}
	if tp != nil {
		k.OnCleanup(tp.Shutdown)
	}

	validator := validation.NewServiceValidator(k.HealthChecks())
	if err := validator.ValidateServices(ctx); err != nil {
		logger.FatalWithFields("Service validation failed", err)
	}

	k.Start()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "Retry-After", "X-RateLimit-Remaining"}
	r.Use(cors.New(corsConfig))
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.TracingMiddleware(serviceName))
	r.Use(middleware.GinLoggerMiddleware())
	r.Use(middleware.MetricsMiddleware())
	if k.Tokens().Enabled() {
		r.Use(middleware.OptionalIdentity(k.Tokens()))
	}

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	h := handlers.NewHandlers(k.Pipeline(), k.Likes(), k.Pow(), k.TimeChallenges(), cfg.Policy.ProofOfWork.MaxTier)
	for name, check := range k.HealthChecks() {
		h.AddHealthCheck(name, handlers.HealthCheck(check))
	}
	h.Register(r, middleware.RateLimit(k.Limiter(), "challenge", cfg.Policy.ChallengeLimit, middleware.ByClientIP))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Log.Info("Vote service listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.FatalWithFields("Failed to start server", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := k.Cleanup(shutdownCtx); err != nil {
		logger.Log.Warn("Shutdown finished with errors", zap.Error(err))
	}

	logger.Log.Info("Server exited")
}
