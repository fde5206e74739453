// Package limiter provides the adaptive rate-control primitives shared by
// the metadata extractor and the watchers.
package limiter

import (
	"context"
	"sync"
	"time"
)

// ExpBackoff is a shared exponential-backoff cooldown. Backoff doubles the
// wait (starting at 1 s), Cooldown decays it geometrically, so sustained
// success slowly releases the pressure a rate limit built up.
type ExpBackoff struct {
	mu             sync.Mutex
	backoffFactor  float64
	cooldownFactor float64
	currentWait    time.Duration
	lastBackoff    time.Time
	// notBefore is an absolute gate derived from server-provided
	// Retry-After style hints.
	notBefore time.Time
}

// NewExpBackoff returns a backoff with the given factors. Zero values select
// the defaults of 2 (backoff) and 0.9 (cooldown).
func NewExpBackoff(backoff, cooldown float64) *ExpBackoff {
	if backoff == 0 {
		backoff = 2
	}
	if cooldown == 0 {
		cooldown = 0.9
	}
	return &ExpBackoff{backoffFactor: backoff, cooldownFactor: cooldown}
}

// Backoff records a failure, growing the current wait.
func (b *ExpBackoff) Backoff() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastBackoff = time.Now()
	if b.currentWait == 0 {
		b.currentWait = time.Second
	} else {
		b.currentWait = time.Duration(float64(b.currentWait) * b.backoffFactor)
	}
}

// Cooldown records a success, decaying the current wait.
func (b *ExpBackoff) Cooldown() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.currentWait = time.Duration(float64(b.currentWait) * b.cooldownFactor)
}

// SetNotBefore installs an absolute earliest-next-request time, typically
// from a Retry-After or X-RateLimit-Reset header.
func (b *ExpBackoff) SetNotBefore(t time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if t.After(b.notBefore) {
		b.notBefore = t
	}
}

// CurrentWait returns the remaining wait, which shrinks as wall time passes
// since the last backoff.
func (b *ExpBackoff) CurrentWait() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentWaitLocked()
}

func (b *ExpBackoff) currentWaitLocked() time.Duration {
	wait := b.currentWait - time.Since(b.lastBackoff)
	if gate := time.Until(b.notBefore); gate > wait {
		wait = gate
	}
	if wait < 0 {
		return 0
	}
	return wait
}

// Wait sleeps out the current backoff, returning early with the context's
// error if it is cancelled.
func (b *ExpBackoff) Wait(ctx context.Context) error {
	wait := b.CurrentWait()
	if wait == 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
