// Package middleware holds transport-agnostic request guards.
package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimiter applies a per-client token bucket keyed by client IP.
// Idle buckets are dropped after an hour.
type RateLimiter struct {
	mu       sync.Mutex
	clients  map[string]*clientBucket
	rpm      int
	lastSeen time.Duration
}

type clientBucket struct {
	limiter *rate.Limiter
	seen    time.Time
}

func NewRateLimiter(rpm int) *RateLimiter {
	rl := &RateLimiter{
		clients:  make(map[string]*clientBucket),
		rpm:      rpm,
		lastSeen: time.Hour,
	}
	go rl.sweep()
	return rl
}

// Handler returns the gin middleware. A zero rpm disables limiting.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.rpm <= 0 {
			c.Next()
			return
		}
		if !rl.allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":             "rate_limited",
				"error_description": "too many requests",
			})
			return
		}
		c.Next()
	}
}

func (rl *RateLimiter) allow(key string) bool {
	rl.mu.Lock()
	bucket, ok := rl.clients[key]
	if !ok {
		bucket = &clientBucket{limiter: rate.NewLimiter(rate.Limit(float64(rl.rpm)/60.0), rl.rpm)}
		rl.clients[key] = bucket
	}
	bucket.seen = time.Now()
	rl.mu.Unlock()
	return bucket.limiter.Allow()
}

func (rl *RateLimiter) sweep() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-rl.lastSeen)
		rl.mu.Lock()
		for key, bucket := range rl.clients {
			if bucket.seen.Before(cutoff) {
				delete(rl.clients, key)
			}
		}
		rl.mu.Unlock()
	}
}
