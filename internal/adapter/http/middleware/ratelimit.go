package middleware

import (
	"strconv"

	"pmc-orchestrator/internal/core/ports"
	"pmc-orchestrator/internal/metrics"
	"pmc-orchestrator/pkg/apperror"
	"pmc-orchestrator/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RateLimit applies the per-identity token bucket. A limiter failure
// allows the request through (degraded mode) rather than failing closed.
func RateLimit(limiter ports.RateLimiter, m *metrics.Metrics, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := c.GetString(CtxIdentity)
		if identity == "" {
			identity = c.ClientIP()
		}

		result, err := limiter.Allow(c.Request.Context(), identity)
		if err != nil {
			log.Warn().Err(err).Msg("rate limiter unavailable, allowing request")
			c.Next()
			return
		}

		c.Header("RateLimit-Limit", strconv.FormatInt(result.Limit, 10))
		c.Header("RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
		c.Header("RateLimit-Reset", strconv.FormatInt(result.ResetSeconds, 10))

		if !result.Allowed {
			retryAfter := result.RetryAfterSeconds
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
			if m != nil {
				m.RateLimitRejectionsTotal.Inc()
			}
			response.Error(c, apperror.ErrRateLimitExceeded())
			c.Abort()
			return
		}

		c.Next()
	}
}
