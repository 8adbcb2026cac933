package handler

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

const (
	limiterCacheSize = 1024
	limiterIdleTTL   = time.Hour
)

// RateLimiter bounds webhook deliveries per installation. Limiters of idle
// installations are evicted.
type RateLimiter struct {
	limit    rate.Limit
	burst    int
	mu       sync.Mutex
	limiters *expirable.LRU[int64, *rate.Limiter]
}

// NewRateLimiter allows perMinute deliveries per installation with the given
// burst. A zero perMinute disables limiting and returns nil.
func NewRateLimiter(perMinute, burst int) *RateLimiter {
	if perMinute <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    burst,
		limiters: expirable.NewLRU[int64, *rate.Limiter](limiterCacheSize, nil, limiterIdleTTL),
	}
}

// Allow reports whether a delivery for installationID may proceed. A nil
// limiter allows everything.
func (l *RateLimiter) Allow(installationID int64) bool {
	if l == nil {
		return true
	}
	l.mu.Lock()
	limiter, ok := l.limiters.Get(installationID)
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters.Add(installationID, limiter)
	}
	l.mu.Unlock()
	return limiter.Allow()
}
