package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimitConfig defines rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int
	Burst             int
	// StaleAfter is how long a per-IP bucket can sit idle before RateLimit
	// drops it. Zero disables cleanup.
	StaleAfter time.Duration
}

// DefaultRenderRateLimitConfig returns the rate-limit configuration sized
// for /render callers. A render holds a sandbox VM context for the
// duration of the call (internal/render.Limiter caps that separately),
// so the HTTP-layer limit just needs to absorb bursty client retries
// without starving internal/render.Limiter's own concurrency budget.
func DefaultRenderRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 20,
		Burst:             40,
		StaleAfter:        10 * time.Minute,
	}
}

// RateLimit creates a per-IP rate limiting middleware. Buckets idle
// longer than cfg.StaleAfter are dropped the next time RateLimit sweeps,
// the same last-used eviction internal/cache.FlushUnused uses for
// package cache entries, so a long-running render service doesn't grow
// one *rate.Limiter per client IP forever.
func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	type client struct {
		limiter  *rate.Limiter
		lastSeen time.Time
	}

	var (
		mu          sync.Mutex
		clients     = make(map[string]*client)
		lastSweep   = time.Now()
		sweepPeriod = cfg.StaleAfter
	)
	if sweepPeriod <= 0 {
		sweepPeriod = 0
	}

	return func(c *gin.Context) {
		ip := c.ClientIP()
		now := time.Now()

		mu.Lock()
		cl, exists := clients[ip]
		if !exists {
			cl = &client{limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)}
			clients[ip] = cl
		}
		cl.lastSeen = now

		if sweepPeriod > 0 && now.Sub(lastSweep) > sweepPeriod {
			for otherIP, other := range clients {
				if now.Sub(other.lastSeen) > sweepPeriod {
					delete(clients, otherIP)
				}
			}
			lastSweep = now
		}
		limiter := cl.limiter
		mu.Unlock()

		if !limiter.Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// GlobalRateLimit creates a rate limiter shared across all callers,
// suited to /flush: a single cache-wide operation that every caller
// should be throttled against together rather than per-IP.
func GlobalRateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	limiter := rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)

	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
