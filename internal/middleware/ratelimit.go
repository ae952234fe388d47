package middleware

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vibeai/backend/internal/config"
	"github.com/vibeai/backend/internal/errors"
	"github.com/vibeai/backend/internal/logger"
	"github.com/vibeai/backend/internal/metrics"
	"github.com/vibeai/backend/internal/ratelimit"
	"github.com/vibeai/backend/internal/util"
	"go.uber.org/zap"
)

// KeyFunc picks the identifier a request is counted against
type KeyFunc func(c *gin.Context) string

// ByClientIP counts requests per client address
func ByClientIP(c *gin.Context) string {
	return c.ClientIP()
}

// RateLimit applies a fixed-window limit through the shared limiter. Store
// failures reject the request rather than letting it through unmetered.
func RateLimit(limiter *ratelimit.Limiter, scope string, limit config.Limit, key KeyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := limiter.Check(c.Request.Context(), scope+":"+key(c), limit.Max, limit.Window)
		if err != nil {
			logger.Log.Error("Rate limit check failed - rejecting request",
				logger.WithRequestID(c.GetString(RequestIDKey)),
				zap.String("scope", scope),
				zap.Error(err),
			)
			util.RespondWithAPIError(c, errors.ServiceUnavailable("rate limiter"))
			c.Abort()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limit.Max))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(res.ResetTime.Unix(), 10))

		if !res.Allowed {
			metrics.Get().RateLimitExceededTotal.WithLabelValues(scope).Inc()
			retryAfter := int(res.RetryAfter(time.Now()).Seconds()) + 1
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			util.RespondWithAPIError(c, errors.RateLimited("").WithDetails(fmt.Sprintf("retry after %ds", retryAfter)))
			c.Abort()
			return
		}
		c.Next()
	}
}
