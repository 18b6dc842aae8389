package middleware

import (
	"context"
	"net/http"
	"strconv"

	"socialhub/internal/metrics"
	"socialhub/internal/redis"
	"socialhub/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

// HandshakeLimiter throttles connection attempts per remote address.
type HandshakeLimiter interface {
	AllowHandshake(ctx context.Context, ip string) (*redis.RateLimitResult, error)
}

// WebSocketRateLimitMiddleware limits upgrade attempts per client IP. A
// limiter failure lets the request through.
func WebSocketRateLimitMiddleware(limiter HandshakeLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := limiter.AllowHandshake(c.Request.Context(), c.ClientIP())
		if err != nil {
			c.Next()
			return
		}

		setRateLimitHeaders(c, result)

		if !result.Allowed {
			metrics.WSHandshakesTotal.WithLabelValues("rate_limited").Inc()
			c.JSON(http.StatusTooManyRequests, httpdto.NewErrorResponse("connection rate limit exceeded", "RATE_LIMITED"))
			c.Abort()
			return
		}

		c.Next()
	}
}

// setRateLimitHeaders sets standard rate limit response headers
func setRateLimitHeaders(c *gin.Context, result *redis.RateLimitResult) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(int64(result.ResetIn.Seconds()), 10))
}
