package limiter

import (
	"sync"
	"time"
)

// SkippingRateLimiter admits at most limit calls per interval and tells the
// caller to skip the rest, instead of queueing them. Suited for best-effort
// work like info-record refreshes, where a dropped call is cheaper than a
// backlog.
type SkippingRateLimiter struct {
	mu       sync.Mutex
	interval time.Duration
	limit    int
	pool     []time.Time

	now func() time.Time // stubbed in tests
}

// NewSkippingRateLimiter returns a limiter admitting limit calls per
// interval.
func NewSkippingRateLimiter(interval time.Duration, limit int) *SkippingRateLimiter {
	return &SkippingRateLimiter{interval: interval, limit: limit, now: time.Now}
}

// Allow reports whether a call may proceed now, consuming a slot if so.
func (r *SkippingRateLimiter) Allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if len(r.pool) >= r.limit {
		if now.Sub(r.pool[0]) < r.interval {
			return false
		}
		r.pool = r.pool[1:]
	}
	r.pool = append(r.pool, now)
	return true
}

// TryCall runs fn if the limiter admits it and reports whether it ran.
func (r *SkippingRateLimiter) TryCall(fn func()) bool {
	if !r.Allow() {
		return false
	}
	fn()
	return true
}
