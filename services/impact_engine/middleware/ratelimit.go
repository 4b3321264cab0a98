// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package middleware

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// =============================================================================
// Rate Limiting
// =============================================================================

// Default rate limit for run triggers. One run per published model
// version is the expected cadence.
const (
	DefaultRunsPerSecond = 1.0
	DefaultRunBurst      = 5
)

// ClientRateLimiter applies a per-client token bucket to run triggers.
//
// # Description
//
// Each client (keyed by IP) gets its own rate.Limiter, created on first
// use. Buckets are never evicted, so the caller set must stay small
// (model-store instances, operator hosts).
//
// # Thread Safety
//
// Safe for concurrent use.
type ClientRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	r        rate.Limit
	burst    int
}

// NewClientRateLimiter creates a limiter with the given refill rate and
// burst size per client.
//
// # Inputs
//
//   - r: Sustained requests per second each client may make.
//   - burst: Requests a client may make in a burst.
//
// # Outputs
//
//   - *ClientRateLimiter: The limiter instance.
func NewClientRateLimiter(r rate.Limit, burst int) *ClientRateLimiter {
	return &ClientRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		r:        r,
		burst:    burst,
	}
}

// SetRate replaces the refill rate and burst size for all clients.
//
// # Description
//
// Existing buckets are discarded so every client picks up the new
// budget on its next request. Used when the service reloads its
// configuration without restarting.
//
// # Thread Safety
//
// Safe to call while the middleware is serving requests.
func (l *ClientRateLimiter) SetRate(r rate.Limit, burst int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.r = r
	l.burst = burst
	l.limiters = make(map[string]*rate.Limiter)
}

// limiterFor returns the client's bucket, creating it on first use.
func (l *ClientRateLimiter) limiterFor(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, exists := l.limiters[key]
	if !exists {
		limiter = rate.NewLimiter(l.r, l.burst)
		l.limiters[key] = limiter
	}
	return limiter
}

// Middleware returns a Gin middleware that rejects clients over their
// budget with 429.
//
// # Examples
//
//	limiter := middleware.NewClientRateLimiter(
//	    middleware.DefaultRunsPerSecond,
//	    middleware.DefaultRunBurst,
//	)
//	v1.Use(limiter.Middleware())
//
// # Thread Safety
//
// Thread-safe. The returned middleware can be used concurrently.
func (l *ClientRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.limiterFor(c.ClientIP()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}
