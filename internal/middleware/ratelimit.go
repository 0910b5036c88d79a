package middleware

import (
	"strconv"

	"github.com/eaglebank/swiftpay/internal/apperr"
	"github.com/eaglebank/swiftpay/internal/ratelimit"
	"github.com/gin-gonic/gin"
)

// RateLimit caps requests per client IP. A failing limiter backend lets the
// request through.
func RateLimit(limiter ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := limiter.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			LoggerFrom(c).Warn("rate limiter unavailable, allowing request", "error", err)
			c.Next()
			return
		}

		c.Header("RateLimit-Limit", strconv.Itoa(res.Limit))
		c.Header("RateLimit-Remaining", strconv.Itoa(res.Remaining))
		if !res.Allowed {
			RespondWithAppError(c, apperr.RateLimited("Too many requests, please try again later.", res.RetryAfter))
			return
		}
		c.Next()
	}
}
