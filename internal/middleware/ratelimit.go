package middleware

import (
	"sync"
	"time"

	"brickshare-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"
)

// RateLimitConfig configures the per-caller token bucket.
type RateLimitConfig struct {
	PerSecond float64
	Burst     int
	// KeyFunc picks the bucket; defaults to the client IP.
	KeyFunc func(c *fiber.Ctx) string
	// IdleTTL drops buckets not used for this long.
	IdleTTL time.Duration
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimit throttles callers with one token bucket per key. Requests over the
// limit get 429 in the standard error format.
func RateLimit(cfg RateLimitConfig) fiber.Handler {
	if cfg.PerSecond <= 0 {
		cfg.PerSecond = 2
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 5
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = func(c *fiber.Ctx) string { return c.IP() }
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 10 * time.Minute
	}

	var (
		mu      sync.Mutex
		buckets = map[string]*bucket{}
		swept   = time.Now()
	)
	get := func(key string) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()
		now := time.Now()
		if now.Sub(swept) > cfg.IdleTTL {
			for k, b := range buckets {
				if now.Sub(b.lastSeen) > cfg.IdleTTL {
					delete(buckets, k)
				}
			}
			swept = now
		}
		b, ok := buckets[key]
		if !ok {
			b = &bucket{limiter: rate.NewLimiter(rate.Limit(cfg.PerSecond), cfg.Burst)}
			buckets[key] = b
		}
		b.lastSeen = now
		return b.limiter
	}

	return func(c *fiber.Ctx) error {
		if !get(cfg.KeyFunc(c)).Allow() {
			return response.Error(c, "Too many requests", fiber.StatusTooManyRequests, nil)
		}
		return c.Next()
	}
}
