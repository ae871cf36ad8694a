// Package security contains the gateway's request throttling.
package security

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/promptveil/promptveil/internal/config"
)

// RateLimiter throttles clients by IP using a token bucket per client.
type RateLimiter struct {
	config   *config.RateLimitConfig
	mu       sync.Mutex
	limiters map[string]*clientLimiter
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a limiter from configuration.
func NewRateLimiter(cfg *config.RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		config:   cfg,
		limiters: make(map[string]*clientLimiter),
	}
}

// Allow reports whether a request from the client IP may proceed.
func (r *RateLimiter) Allow(clientIP string) bool {
	if !r.config.Enabled {
		return true
	}
	return r.get(clientIP).Allow()
}

func (r *RateLimiter) get(clientIP string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	cl, ok := r.limiters[clientIP]
	if !ok {
		limit := rate.Limit(float64(r.config.RequestsPerMinute) / 60.0)
		burst := r.config.Burst
		if burst <= 0 {
			burst = r.config.RequestsPerMinute
		}
		cl = &clientLimiter{limiter: rate.NewLimiter(limit, burst)}
		r.limiters[clientIP] = cl
	}
	cl.lastSeen = time.Now()
	return cl.limiter
}

// Cleanup removes limiters idle for more than an hour.
func (r *RateLimiter) Cleanup() {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-time.Hour)
	for ip, cl := range r.limiters {
		if cl.lastSeen.Before(cutoff) {
			delete(r.limiters, ip)
		}
	}
}

// StartCleanupRoutine periodically evicts idle client limiters.
func (r *RateLimiter) StartCleanupRoutine() {
	go func() {
		ticker := time.NewTicker(30 * time.Minute)
		defer ticker.Stop()

		for range ticker.C {
			r.Cleanup()
		}
	}()
}
