package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

// RateLimitConfig controls the per-client token bucket limiter.
type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
}

// DefaultRateLimitConfig returns limits suitable for a small clinic: generous
// enough for a dashboard polling, tight enough to blunt credential stuffing.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 50,
		BurstSize:         100,
	}
}

// staleAfter is how long an idle client keeps its bucket before it is swept.
const staleAfter = 10 * time.Minute

type clientBucket struct {
	tokens   float64
	lastSeen time.Time
}

type rateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientBucket
	cfg     RateLimitConfig
}

// take refills the client's bucket for the time elapsed since its last
// request and spends one token. It reports whether the request may proceed
// and, when it may not, the whole seconds until a token becomes available.
func (rl *rateLimiter) take(key string) (ok bool, retryAfter int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	b, exists := rl.clients[key]
	if !exists {
		if len(rl.clients) > 1024 {
			rl.sweep(now)
		}
		b = &clientBucket{tokens: float64(rl.cfg.BurstSize), lastSeen: now}
		rl.clients[key] = b
	} else {
		b.tokens += now.Sub(b.lastSeen).Seconds() * rl.cfg.RequestsPerSecond
		if max := float64(rl.cfg.BurstSize); b.tokens > max {
			b.tokens = max
		}
		b.lastSeen = now
	}

	if b.tokens < 1 {
		wait := 1
		if rl.cfg.RequestsPerSecond > 0 {
			wait = int((1-b.tokens)/rl.cfg.RequestsPerSecond) + 1
		}
		return false, wait
	}
	b.tokens--
	return true, 0
}

// sweep drops buckets idle long enough to have refilled completely. Caller
// holds the lock.
func (rl *rateLimiter) sweep(now time.Time) {
	for key, b := range rl.clients {
		if now.Sub(b.lastSeen) > staleAfter {
			delete(rl.clients, key)
		}
	}
}

// RateLimit returns middleware that limits each client IP to a token bucket
// of cfg.BurstSize requests refilling at cfg.RequestsPerSecond.
func RateLimit(cfg RateLimitConfig) echo.MiddlewareFunc {
	rl := &rateLimiter{clients: make(map[string]*clientBucket), cfg: cfg}
	limit := strconv.FormatFloat(cfg.RequestsPerSecond, 'f', 0, 64)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ok, retryAfter := rl.take(c.RealIP())
			c.Response().Header().Set("X-RateLimit-Limit", limit)
			if !ok {
				c.Response().Header().Set("Retry-After", strconv.Itoa(retryAfter))
				c.Response().Header().Set("X-RateLimit-Remaining", "0")
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}
