package verify

import (
	"sync"
	"time"
)

// rateLimiter counts messages per user inside a fixed window. All counters
// reset together on the interval rather than sliding per user: bounded and
// cheap, at the cost of letting a burst straddle a reset boundary.
type rateLimiter struct {
	mu     sync.Mutex
	counts map[string]int
	limit  int
}

func newRateLimiter(limit int) *rateLimiter {
	return &rateLimiter{counts: make(map[string]int), limit: limit}
}

// allow records one message for the user and reports whether it is within
// the current window's budget.
func (r *rateLimiter) allow(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counts[userID] >= r.limit {
		return false
	}
	r.counts[userID]++
	return true
}

func (r *rateLimiter) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts = make(map[string]int)
}

// startResetLoop clears all counters every interval until stop is closed.
func (r *rateLimiter) startResetLoop(interval time.Duration, stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.reset()
			case <-stop:
				return
			}
		}
	}()
}
