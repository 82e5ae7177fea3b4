package types

import (
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/uptrace/bun"
)

// MessageCount tracks how many messages a user has sent in a guild.
// A row is created on the first tracked message and incremented afterwards;
// rows are only removed by the periodic full reset.
type MessageCount struct {
	bun.BaseModel `bun:"table:message_counts"`

	UserID      snowflake.ID `bun:",pk"`
	GuildID     snowflake.ID `bun:",pk"`
	ChannelID   snowflake.ID `bun:",nullzero"`
	Count       int64        `bun:",notnull,default:0"`
	LastUpdated time.Time    `bun:",notnull"`
}

// VoiceSession tracks accumulated voice-channel time for a user in a guild.
// JoinTime is set while the user is in a voice channel and cleared on leave;
// TotalTime only advances when a session is finalized.
type VoiceSession struct {
	bun.BaseModel `bun:"table:voice_sessions"`

	UserID      snowflake.ID `bun:",pk"`
	GuildID     snowflake.ID `bun:",pk"`
	TotalTime   int64        `bun:",notnull,default:0"`
	JoinTime    *time.Time   `bun:",nullzero"`
	LastUpdated time.Time    `bun:",notnull"`
}

// Active reports whether the user is currently in a voice channel.
func (s *VoiceSession) Active() bool {
	return s.JoinTime != nil
}

// CurrentTotal returns the accumulated time in seconds including the
// session in progress, if any.
func (s *VoiceSession) CurrentTotal(now time.Time) int64 {
	if s.JoinTime == nil {
		return s.TotalTime
	}

	elapsed := int64(now.Sub(*s.JoinTime).Seconds())
	if elapsed < 0 {
		elapsed = 0
	}

	return s.TotalTime + elapsed
}

// Entry is a single ranked leaderboard row as produced by the ranking queries.
type Entry struct {
	UserID snowflake.ID `bun:"user_id"`
	Value  int64        `bun:"value"`
}
