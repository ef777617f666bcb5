package ratelimit

import (
	"math"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mailgate/gmailapi/internal/httpx"
	"github.com/mailgate/gmailapi/internal/logger"
	"github.com/mailgate/gmailapi/internal/metrics"
	"go.uber.org/zap"
)

// Middleware applies limiter per client IP and reports quota in the
// X-RateLimit-* headers. Limiter errors let the request through.
func Middleware(limiter Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		d, err := limiter.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			logger.FromContext(c).Warn("rate limiter unavailable", zap.Error(err))
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		c.Header("X-RateLimit-Reset", d.ResetAt.UTC().Format(time.RFC3339))

		if err == nil && !d.Allowed {
			retryAfter := int(math.Ceil(time.Until(d.ResetAt).Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			metrics.RateLimited("gmail")
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(httpx.RateLimitExceeded.Status(), gin.H{
				"success":    false,
				"error":      httpx.RateLimitExceeded,
				"message":    "Too many requests, please try again later",
				"retryAfter": retryAfter,
			})
			return
		}

		c.Next()
	}
}
