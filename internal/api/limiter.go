package api

import (
	"sync"

	"venuebook/internal/config"

	"golang.org/x/time/rate"
)

// rateLimiter keeps one token bucket per client key. A zero rps disables limiting.
type rateLimiter struct {
	limit   rate.Limit
	burst   int
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

func newRateLimiter(cfg config.APIRateLimitConfig) *rateLimiter {
	burst := cfg.Burst
	if burst <= 0 {
		burst = 5
	}
	return &rateLimiter{
		limit:   rate.Limit(cfg.RPS),
		burst:   burst,
		buckets: make(map[string]*rate.Limiter),
	}
}

func (l *rateLimiter) allow(key string) bool {
	if l.limit <= 0 {
		return true
	}

	l.mu.Lock()
	bucket, ok := l.buckets[key]
	if !ok {
		bucket = rate.NewLimiter(l.limit, l.burst)
		l.buckets[key] = bucket
	}
	l.mu.Unlock()

	return bucket.Allow()
}
