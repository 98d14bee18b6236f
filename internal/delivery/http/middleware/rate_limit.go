package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"portfolio-backend/internal/delivery/http/response"
	"portfolio-backend/pkg/redis"
	"portfolio-backend/pkg/security"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
)

// RateLimitConfig describes one fixed-window limiter.
type RateLimitConfig struct {
	Limit  int
	Window time.Duration
	// KeyFunc identifies the caller; defaults to the client IP.
	KeyFunc   func(*gin.Context) string
	KeyPrefix string
	// FailClosed rejects requests when Redis errors instead of falling back
	// to the local window.
	FailClosed bool

	fallback *memoryWindow
}

// GlobalRateLimitConfig limits every request per client IP. It fails open.
func GlobalRateLimitConfig(limit int, window time.Duration) RateLimitConfig {
	return RateLimitConfig{Limit: limit, Window: window, KeyPrefix: "rl:ip:"}
}

// LoginRateLimitConfig guards the sign-in endpoints and fails closed.
func LoginRateLimitConfig(limit int, window time.Duration) RateLimitConfig {
	return RateLimitConfig{Limit: limit, Window: window, KeyPrefix: "rl:login:", FailClosed: true}
}

// ContactRateLimitConfig throttles public contact submissions per IP.
func ContactRateLimitConfig(limit int, window time.Duration) RateLimitConfig {
	return RateLimitConfig{Limit: limit, Window: window, KeyPrefix: "rl:contact:"}
}

// windowScript increments the counter and starts its TTL on the first hit.
// Returns {count, ttl_seconds}.
var windowScript = goredis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
    redis.call('EXPIRE', KEYS[1], ARGV[1])
end
return {count, redis.call('TTL', KEYS[1])}
`)

func hitRedis(ctx context.Context, client *goredis.Client, key string, window time.Duration) (int, time.Time, error) {
	res, err := windowScript.Run(ctx, client, []string{key}, int(window.Seconds())).Int64Slice()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("rate limit script: %w", err)
	}
	if len(res) < 2 {
		return 0, time.Time{}, fmt.Errorf("rate limit script: unexpected reply %v", res)
	}
	return int(res[0]), time.Now().Add(time.Duration(res[1]) * time.Second), nil
}

type windowEntry struct {
	count   int
	resetAt time.Time
}

// memoryWindow is the per-process fallback used when Redis is absent.
type memoryWindow struct {
	mu      sync.Mutex
	entries map[string]*windowEntry
	hits    int
}

func newMemoryWindow() *memoryWindow {
	return &memoryWindow{entries: make(map[string]*windowEntry)}
}

const sweepEvery = 1024

func (m *memoryWindow) hit(key string, window time.Duration, now time.Time) (int, time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.hits++
	if m.hits%sweepEvery == 0 {
		for k, e := range m.entries {
			if now.After(e.resetAt) {
				delete(m.entries, k)
			}
		}
	}

	e, ok := m.entries[key]
	if !ok || now.After(e.resetAt) {
		e = &windowEntry{resetAt: now.Add(window)}
		m.entries[key] = e
	}
	e.count++
	return e.count, e.resetAt
}

// RateLimitMiddleware counts requests in Redis when it is connected and in
// process memory otherwise.
func RateLimitMiddleware(config RateLimitConfig) gin.HandlerFunc {
	if config.KeyFunc == nil {
		config.KeyFunc = func(c *gin.Context) string { return c.ClientIP() }
	}
	if config.fallback == nil {
		config.fallback = newMemoryWindow()
	}

	return func(c *gin.Context) {
		key := config.KeyPrefix + config.KeyFunc(c)

		var (
			count   int
			resetAt time.Time
			err     error
		)
		if client := redis.Client(); client != nil {
			count, resetAt, err = hitRedis(c.Request.Context(), client, key, config.Window)
		}
		if redis.Client() == nil || err != nil {
			if err != nil && config.FailClosed {
				logRateLimitError(c, err)
				response.Abort(c, http.StatusServiceUnavailable, "Service temporarily unavailable. Please try again.", "unavailable")
				return
			}
			count, resetAt = config.fallback.hit(key, config.Window, time.Now())
		}

		remaining := config.Limit - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(config.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", resetAt.Format(time.RFC3339))

		if count > config.Limit {
			retryAfter := int(time.Until(resetAt).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			if sl := security.DefaultLogger(); sl != nil {
				sl.LogRateLimitTriggered(c.Request.Context(), c.ClientIP(), c.GetHeader("User-Agent"), c.GetString(response.RequestIDKey), c.FullPath())
			}
			response.Abort(c, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.", "rate_limited")
			return
		}

		c.Next()
	}
}

func logRateLimitError(c *gin.Context, err error) {
	sl := security.DefaultLogger()
	if sl == nil {
		return
	}
	sl.Log(c.Request.Context(), security.SecurityEvent{
		Event:       security.EventRateLimitTriggered,
		SubjectType: "system",
		IP:          c.ClientIP(),
		RequestID:   c.GetString(response.RequestIDKey),
		Details:     map[string]interface{}{"error": err.Error()},
	})
}
