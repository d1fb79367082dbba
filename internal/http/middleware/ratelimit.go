// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// RateLimit enforces per-caller token buckets from internal/ratelimit. Callers
// are keyed by X-User-ID when present and by client IP otherwise. Requests
// that replay a stored idempotent outcome are not limited.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/sales-leaderboard-bot/internal/ratelimit"
)

// KeyFunc selects the identity used to key a rate-limit bucket.
type KeyFunc func(*gin.Context) string

// KeyByUserOrIP prefers the caller identity and falls back to the client IP.
// Keys are prefixed so the two namespaces cannot collide.
func KeyByUserOrIP() KeyFunc {
	return func(c *gin.Context) string {
		if uid := UserID(c); uid != "" {
			return "user:" + uid
		}
		return "ip:" + c.ClientIP()
	}
}

// IsRateBypass reports whether IdempotencyValidator marked this request as a
// replay.
func IsRateBypass(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyRateBypass)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// RateLimit returns a middleware answering 429 when key's bucket is empty.
// A nil limiter disables limiting.
func RateLimit(l *ratelimit.Limiter, key KeyFunc) gin.HandlerFunc {
	if key == nil {
		key = KeyByUserOrIP()
	}
	return func(c *gin.Context) {
		if IsRateBypass(c) || l.Allow(key(c)) {
			c.Next()
			return
		}
		c.Header("Retry-After", "1")
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": c.Writer.Header().Get(requestIDHeader),
			"code":       "too_many_requests",
			"message":    "rate limit exceeded",
		})
	}
}
