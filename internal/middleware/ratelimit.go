package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/car-marketplace-api/internal/ratelimit"
	"github.com/noah-isme/car-marketplace-api/pkg/response"
)

type rateLimitRecorder interface {
	RecordRateLimited(route string)
}

// RateLimit throttles a route per client IP. Limiter failures let the request through.
func RateLimit(limiter ratelimit.Limiter, recorder rateLimitRecorder, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		res, err := limiter.Allow(c.Request.Context(), c.ClientIP()+"|"+route)
		if err != nil {
			logger.Warn("rate limiter unavailable", zap.String("route", route), zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
		if !res.Allowed {
			if recorder != nil {
				recorder.RecordRateLimited(route)
			}
			response.TooManyRequests(c, res.RetryAfter)
			return
		}
		c.Next()
	}
}
