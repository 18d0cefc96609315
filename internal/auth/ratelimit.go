package auth

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const limiterIdleTTL = 5 * time.Minute

// RateLimiter throttles authentication attempts with an independent token
// bucket per client key. Idle buckets are evicted so the map stays bounded.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*limiterBucket
	limit   rate.Limit
	burst   int
	now     func() time.Time

	lastSweep time.Time
}

type limiterBucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// NewRateLimiter allows perMinute sustained attempts per key with the given
// burst headroom.
func NewRateLimiter(perMinute, burst int) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		buckets: make(map[string]*limiterBucket),
		limit:   rate.Limit(float64(perMinute) / 60.0),
		burst:   burst,
		now:     time.Now,
	}
}

// Allow reports whether the key may attempt another authentication now.
// Counters for distinct keys never interfere.
func (r *RateLimiter) Allow(key string) bool {
	if key == "" {
		key = "unknown"
	}
	r.mu.Lock()
	now := r.now()
	if now.Sub(r.lastSweep) > time.Minute {
		r.sweepLocked(now)
		r.lastSweep = now
	}
	b, ok := r.buckets[key]
	if !ok {
		b = &limiterBucket{lim: rate.NewLimiter(r.limit, r.burst)}
		r.buckets[key] = b
	}
	b.seen = now
	r.mu.Unlock()
	return b.lim.Allow()
}

func (r *RateLimiter) sweepLocked(now time.Time) {
	for k, b := range r.buckets {
		if now.Sub(b.seen) > limiterIdleTTL {
			delete(r.buckets, k)
		}
	}
}
