package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// KeyFunc selects the bucket a request is counted against.
type KeyFunc func(c *gin.Context) string

// ClientIPKey counts requests per client IP.
func ClientIPKey(c *gin.Context) string {
	return "ip:" + c.ClientIP()
}

// TenantKey counts requests per authenticated tenant, falling back to the
// client IP.
func TenantKey(c *gin.Context) string {
	if tenant := GetTenant(c); tenant != "" {
		return "tenant:" + tenant
	}
	return ClientIPKey(c)
}

// RateLimiter implements a fixed window rate limiter
type RateLimiter struct {
	mu        sync.Mutex
	tokens    map[string]int
	lastReset time.Time
	rate      int           // requests per window
	window    time.Duration // time window
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(rate int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		tokens:    make(map[string]int),
		lastReset: time.Now(),
		rate:      rate,
		window:    window,
	}
}

// Allow counts one request for key and reports whether it is within the
// limit, plus the time left in the current window.
func (l *RateLimiter) Allow(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	// Reset if window has passed
	if time.Since(l.lastReset) > l.window {
		l.tokens = make(map[string]int)
		l.lastReset = time.Now()
	}

	remaining := l.window - time.Since(l.lastReset)
	count := l.tokens[key]
	if count >= l.rate {
		return false, remaining
	}
	l.tokens[key] = count + 1
	return true, remaining
}

// RateLimit middleware limits requests per IP
func RateLimit(rate int, window time.Duration) gin.HandlerFunc {
	return RateLimitBy(rate, window, ClientIPKey)
}

// RateLimitBy limits requests per key. Batch uploads use TenantKey so one
// tenant cannot flood the pipeline.
func RateLimitBy(rate int, window time.Duration, keyFn KeyFunc) gin.HandlerFunc {
	limiter := NewRateLimiter(rate, window)

	return func(c *gin.Context) {
		key := keyFn(c)

		ok, retryAfter := limiter.Allow(key)
		if !ok {
			slog.Warn("rate limit exceeded",
				"key", key,
				"request_id", GetRequestID(c),
			)

			c.Header("Retry-After", strconv.Itoa(int(retryAfter.Seconds())+1))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Rate limit exceeded. Please try again later.",
			})
			return
		}

		c.Next()
	}
}
