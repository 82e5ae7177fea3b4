package tracker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestRateLimiterAllowsWithinWindow(t *testing.T) {
	t.Parallel()

	limiter := NewRateLimiter(3, time.Minute)
	now := time.Now()

	for range 3 {
		assert.True(t, limiter.Allow(1, now))
	}

	assert.False(t, limiter.Allow(1, now))

	// Other users have their own budget
	assert.True(t, limiter.Allow(2, now))
}

func TestRateLimiterSlidesWindow(t *testing.T) {
	t.Parallel()

	limiter := NewRateLimiter(2, time.Minute)
	now := time.Now()

	assert.True(t, limiter.Allow(1, now))
	assert.True(t, limiter.Allow(1, now.Add(30*time.Second)))
	assert.False(t, limiter.Allow(1, now.Add(45*time.Second)))

	// The first event expired, freeing one slot
	assert.True(t, limiter.Allow(1, now.Add(70*time.Second)))
}

func TestRateLimiterPrune(t *testing.T) {
	t.Parallel()

	limiter := NewRateLimiter(5, time.Minute)
	now := time.Now()

	limiter.Allow(1, now)
	limiter.Allow(2, now.Add(30*time.Second))
	assert.Equal(t, 2, limiter.TrackedUsers())

	limiter.Prune(now.Add(90 * time.Second))
	assert.Equal(t, 1, limiter.TrackedUsers())

	limiter.Prune(now.Add(5 * time.Minute))
	assert.Equal(t, 0, limiter.TrackedUsers())
}

func TestPruneLoopDropsIdleUsers(t *testing.T) {
	t.Parallel()

	tr := &Tracker{
		limiter: NewRateLimiter(5, time.Minute),
		logger:  zap.NewNop(),
		stop:    make(chan struct{}),
	}

	tr.limiter.Allow(1, time.Now().Add(-time.Hour))
	assert.Equal(t, 1, tr.limiter.TrackedUsers())

	go tr.pruneLoop(5 * time.Millisecond)
	defer close(tr.stop)

	assert.Eventually(t, func() bool {
		return tr.limiter.TrackedUsers() == 0
	}, time.Second, 10*time.Millisecond)
}
