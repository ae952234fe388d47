package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal     prometheus.CounterVec
	HTTPRequestDuration   prometheus.HistogramVec
	HTTPRequestSize       prometheus.HistogramVec
	HTTPResponseSize      prometheus.HistogramVec
	HTTPActiveConnections prometheus.GaugeVec

	// Admission pipeline metrics
	VoteDecisionsTotal          prometheus.CounterVec
	VoteStageDuration           prometheus.HistogramVec
	RateLimitExceededTotal      prometheus.CounterVec
	BehaviorScore               prometheus.Histogram
	ChallengesIssuedTotal       prometheus.CounterVec
	ChallengeVerificationsTotal prometheus.CounterVec
	CaptchaRequestsTotal        prometheus.CounterVec
	AnomalousPostsTotal         prometheus.Counter

	// Audit pipeline metrics
	AuditEventsTotal  prometheus.CounterVec
	AuditDroppedTotal prometheus.Counter

	// Database metrics
	DatabaseQueryDuration prometheus.HistogramVec
	DatabaseQueriesTotal  prometheus.CounterVec

	// Redis metrics
	RedisOperationDuration prometheus.HistogramVec
	RedisOperationsTotal   prometheus.CounterVec

	// Error metrics
	ErrorsTotal prometheus.CounterVec
}

var (
	instance *Metrics
	once     sync.Once
)

// Initialize creates and registers all Prometheus metrics
func Initialize() *Metrics {
	once.Do(func() {
		instance = &Metrics{
			// HTTP metrics
			HTTPRequestsTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "http_requests_total",
					Help: "Total number of HTTP requests",
				},
				[]string{"method", "path", "status"},
			),
			HTTPRequestDuration: *promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "http_request_duration_seconds",
					Help:    "HTTP request latency in seconds",
					Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
				},
				[]string{"method", "path", "status"},
			),
			HTTPRequestSize: *promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "http_request_size_bytes",
					Help:    "HTTP request body size in bytes",
					Buckets: prometheus.ExponentialBuckets(100, 10, 7),
				},
				[]string{"method", "path"},
			),
			HTTPResponseSize: *promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "http_response_size_bytes",
					Help:    "HTTP response size in bytes",
					Buckets: prometheus.ExponentialBuckets(100, 10, 7),
				},
				[]string{"method", "path", "status"},
			),
			HTTPActiveConnections: *promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "http_active_connections",
					Help: "Number of currently active HTTP connections",
				},
				[]string{"method", "path"},
			),

			// Admission pipeline metrics
			VoteDecisionsTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "vote_decisions_total",
					Help: "Vote admission decisions by outcome and deciding stage",
				},
				[]string{"outcome", "stage"},
			),
			VoteStageDuration: *promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "vote_stage_duration_seconds",
					Help:    "Time spent in each admission stage",
					Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5},
				},
				[]string{"stage"},
			),
			RateLimitExceededTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "rate_limit_exceeded_total",
					Help: "Total number of rate limit rejections",
				},
				[]string{"scope"},
			),
			BehaviorScore: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "vote_behavior_score",
					Help:    "Bot confidence produced by the behavioral analyzer",
					Buckets: []float64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
				},
			),
			ChallengesIssuedTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "vote_challenges_issued_total",
					Help: "Challenges issued to clients",
				},
				[]string{"kind"},
			),
			ChallengeVerificationsTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "vote_challenge_verifications_total",
					Help: "Challenge verification attempts by result",
				},
				[]string{"kind", "result"},
			),
			CaptchaRequestsTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "captcha_requests_total",
					Help: "Calls to the CAPTCHA provider by result",
				},
				[]string{"result"},
			),
			AnomalousPostsTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "vote_anomalies_detected_total",
					Help: "Votes rejected because the post showed a low-diversity burst",
				},
			),

			// Audit pipeline metrics
			AuditEventsTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "vote_audit_events_total",
					Help: "Audit events written per sink",
				},
				[]string{"sink", "status"},
			),
			AuditDroppedTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "vote_audit_dropped_total",
					Help: "Audit events dropped because the queue was full",
				},
			),

			// Database metrics
			DatabaseQueryDuration: *promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "database_query_duration_seconds",
					Help:    "Database query latency in seconds",
					Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
				},
				[]string{"operation"},
			),
			DatabaseQueriesTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "database_queries_total",
					Help: "Total number of database queries",
				},
				[]string{"operation", "status"},
			),

			// Redis metrics
			RedisOperationDuration: *promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "redis_operation_duration_seconds",
					Help:    "Redis operation latency in seconds",
					Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1},
				},
				[]string{"operation"},
			),
			RedisOperationsTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "redis_operations_total",
					Help: "Total number of Redis operations",
				},
				[]string{"operation", "status"},
			),

			// Error metrics
			ErrorsTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "errors_total",
					Help: "Total number of errors",
				},
				[]string{"error_type", "endpoint"},
			),
		}
	})
	return instance
}

// Get returns the global metrics instance
func Get() *Metrics {
	return Initialize()
}
