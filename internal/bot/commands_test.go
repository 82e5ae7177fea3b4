package bot

import (
	"testing"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/json"
	"github.com/pulsekit/pulseboard/internal/leaderboard"
	"github.com/pulsekit/pulseboard/internal/worker/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsEmbed(t *testing.T) {
	t.Parallel()

	embed := statsEmbed("alpha", &leaderboard.UserStats{
		Messages:     1500,
		MessageRank:  2,
		VoiceSeconds: 3720,
		VoiceRank:    5,
	})

	assert.Equal(t, "📊 Activity for alpha", embed.Title)
	require.Len(t, embed.Fields, 2)
	assert.Equal(t, "1,500 (rank #2)", embed.Fields[0].Value)
	assert.Equal(t, "1h 2m (rank #5)", embed.Fields[1].Value)
}

func TestUserDisplayName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Alpha", userDisplayName(discord.User{
		Username:   "alpha_raw",
		GlobalName: json.Ptr("Alpha"),
	}))

	// Fall back to the username when no global name is set
	assert.Equal(t, "alpha_raw", userDisplayName(discord.User{Username: "alpha_raw"}))
	assert.Equal(t, "alpha_raw", userDisplayName(discord.User{
		Username:   "alpha_raw",
		GlobalName: json.Ptr(""),
	}))
}

func TestWorkerStatusLine(t *testing.T) {
	t.Parallel()

	now := time.Now()

	healthy := core.Status{
		WorkerType:  "maintenance",
		LastSeen:    now.Add(-5 * time.Second),
		CurrentTask: "Checking reset schedule",
		IsHealthy:   true,
	}
	assert.Equal(t, "✅ Checking reset schedule (seen 5s ago)", workerStatusLine(healthy, now))

	unhealthy := healthy
	unhealthy.IsHealthy = false
	assert.Contains(t, workerStatusLine(unhealthy, now), "❌")

	// A worker past the stale threshold is flagged regardless of health
	stale := healthy
	stale.LastSeen = now.Add(-2 * time.Minute)
	assert.Contains(t, workerStatusLine(stale, now), "⚠️ stale")

	idle := healthy
	idle.CurrentTask = ""
	assert.Contains(t, workerStatusLine(idle, now), "idle")
}
