/*
 * file: ratelimit.go
 * package: services
 * description:
 *     Per-user token-bucket rate limiting in front of the GameEngine,
 *     one golang.org/x/time/rate.Limiter per from_id, created lazily.
 */

package services

import (
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiterRegistry hands out a per-user rate.Limiter, creating one
// on first use. Capacity and refill are fixed for the registry's
// lifetime; callers never see partial state across users.
type RateLimiterRegistry struct {
	mu       sync.Mutex
	limiters map[int64]*rate.Limiter
	capacity int
	refill   rate.Limit
}

// NewRateLimiterRegistry builds a registry with the given bucket
// capacity (burst) and refill rate in tokens/sec.
func NewRateLimiterRegistry(capacity int, refillPerSecond float64) *RateLimiterRegistry {
	return &RateLimiterRegistry{
		limiters: make(map[int64]*rate.Limiter),
		capacity: capacity,
		refill:   rate.Limit(refillPerSecond),
	}
}

// Allow reports whether an update from fromID may proceed right now,
// consuming a token if so.
func (r *RateLimiterRegistry) Allow(fromID int64) bool {
	return r.limiterFor(fromID).Allow()
}

func (r *RateLimiterRegistry) limiterFor(fromID int64) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.limiters[fromID]
	if !ok {
		l = rate.NewLimiter(r.refill, r.capacity)
		r.limiters[fromID] = l
	}
	return l
}
