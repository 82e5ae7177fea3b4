package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestVoiceSessionCurrentTotal(t *testing.T) {
	t.Parallel()

	now := time.Now()

	closed := &VoiceSession{TotalTime: 120}
	assert.False(t, closed.Active())
	assert.Equal(t, int64(120), closed.CurrentTotal(now))

	joined := now.Add(-90 * time.Second)
	open := &VoiceSession{TotalTime: 120, JoinTime: &joined}
	assert.True(t, open.Active())
	assert.Equal(t, int64(210), open.CurrentTotal(now))

	// A join timestamp in the future contributes nothing
	future := now.Add(time.Minute)
	skewed := &VoiceSession{TotalTime: 120, JoinTime: &future}
	assert.Equal(t, int64(120), skewed.CurrentTotal(now))
}

func TestCachedUserDisplayName(t *testing.T) {
	t.Parallel()

	withGlobal := &CachedUser{Username: "user123", GlobalName: "Display"}
	assert.Equal(t, "Display", withGlobal.DisplayName())

	withoutGlobal := &CachedUser{Username: "user123"}
	assert.Equal(t, "user123", withoutGlobal.DisplayName())
}
