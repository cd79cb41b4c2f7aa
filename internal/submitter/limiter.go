// Package submitter supervises web page generation jobs: per-user admission
// under a global concurrency cap, retries with exponential backoff, progress
// feedback, and terminal error classification.
package submitter

import (
	"sync"

	"webgen-bot/internal/common/metrics"
)

// Limiter caps how many generation jobs run at once. One slot per user: a
// user with a job in flight cannot be admitted again until it releases.
type Limiter struct {
	mu       sync.Mutex
	capacity int
	inFlight map[string]bool
}

func NewLimiter(capacity int) *Limiter {
	if capacity <= 0 {
		capacity = 3
	}
	return &Limiter{
		capacity: capacity,
		inFlight: make(map[string]bool),
	}
}

// TryAcquire claims a slot for the user. The returned release func is
// idempotent; it must be called on every exit path of an admitted job.
func (l *Limiter) TryAcquire(userID string) (release func(), ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.inFlight[userID] || len(l.inFlight) >= l.capacity {
		return nil, false
	}

	l.inFlight[userID] = true
	metrics.GenerationSlotsActive.Set(float64(len(l.inFlight)))

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			delete(l.inFlight, userID)
			metrics.GenerationSlotsActive.Set(float64(len(l.inFlight)))
		})
	}, true
}

// InFlight returns the number of slots currently held.
func (l *Limiter) InFlight() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.inFlight)
}

// Holds reports whether the user currently holds a slot.
func (l *Limiter) Holds(userID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inFlight[userID]
}

// Capacity returns the configured concurrency cap.
func (l *Limiter) Capacity() int {
	return l.capacity
}
