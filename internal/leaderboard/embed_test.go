package leaderboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildEmbedMessages(t *testing.T) {
	t.Parallel()

	rows := []Row{
		{Rank: 1, UserID: 1, Name: "alpha", Value: 1500},
		{Rank: 2, UserID: 2, Name: "beta", Value: 900},
		{Rank: 3, UserID: 3, Name: "gamma", Value: 80},
		{Rank: 4, UserID: 4, Name: "delta", Value: 12},
	}

	embed := BuildEmbed(KindMessages, rows, 30)

	assert.Equal(t, "💬 Message Activity Leaderboard", embed.Title)
	assert.Equal(t, messageBoardColor, embed.Color)
	require.NotNil(t, embed.Footer)
	assert.Equal(t, "Counters reset every 30 days", embed.Footer.Text)

	assert.Contains(t, embed.Description, "🥇 **alpha** — 1,500 messages")
	assert.Contains(t, embed.Description, "🥈 **beta** — 900 messages")
	assert.Contains(t, embed.Description, "🥉 **gamma** — 80 messages")
	assert.Contains(t, embed.Description, "` 4.` **delta** — 12 messages")
}

func TestBuildEmbedVoice(t *testing.T) {
	t.Parallel()

	rows := []Row{
		{Rank: 1, UserID: 1, Name: "alpha", Value: 3*3600 + 24*60},
	}

	embed := BuildEmbed(KindVoice, rows, 30)

	assert.Equal(t, "🎙️ Voice Activity Leaderboard", embed.Title)
	assert.Equal(t, voiceBoardColor, embed.Color)
	assert.Contains(t, embed.Description, "🥇 **alpha** — 3h 24m")
}

func TestBuildEmbedEmpty(t *testing.T) {
	t.Parallel()

	embed := BuildEmbed(KindMessages, nil, 30)

	assert.Equal(t, "No activity recorded yet.", embed.Description)
}
