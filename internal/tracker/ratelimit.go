package tracker

import (
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// RateLimiter enforces a per-user sliding window on tracked events.
type RateLimiter struct {
	mu        sync.Mutex
	events    map[snowflake.ID][]time.Time
	maxEvents int
	window    time.Duration
}

// NewRateLimiter creates a limiter allowing maxEvents per user per window.
func NewRateLimiter(maxEvents int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		events:    make(map[snowflake.ID][]time.Time),
		maxEvents: maxEvents,
		window:    window,
	}
}

// Allow reports whether an event for the user may be tracked now and
// records it when allowed.
func (r *RateLimiter) Allow(userID snowflake.ID, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := now.Add(-r.window)

	// Drop events that fell out of the window
	recent := r.events[userID][:0]
	for _, at := range r.events[userID] {
		if at.After(cutoff) {
			recent = append(recent, at)
		}
	}

	if len(recent) >= r.maxEvents {
		r.events[userID] = recent
		return false
	}

	r.events[userID] = append(recent, now)

	return true
}

// Prune removes users whose events have all expired.
func (r *RateLimiter) Prune(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := now.Add(-r.window)

	for userID, events := range r.events {
		live := false

		for _, at := range events {
			if at.After(cutoff) {
				live = true
				break
			}
		}

		if !live {
			delete(r.events, userID)
		}
	}
}

// TrackedUsers returns the number of users with recorded events.
func (r *RateLimiter) TrackedUsers() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.events)
}
