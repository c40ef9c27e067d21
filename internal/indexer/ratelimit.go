package indexer

import (
	"context"
	"sync"
	"time"
)

// RateLimiter enforces a minimum interval between outbound requests across
// all callers. The lock is held while waiting, so requests are serialized.
type RateLimiter struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
}

// NewRateLimiter creates a limiter. A non-positive interval disables waiting.
func NewRateLimiter(interval time.Duration) *RateLimiter {
	return &RateLimiter{interval: interval}
}

// Wait blocks until interval has passed since the previous request.
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.interval > 0 && !r.last.IsZero() {
		if wait := r.interval - time.Since(r.last); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
	r.last = time.Now()
	return nil
}
