package types

import (
	"fmt"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/uptrace/bun"
)

// Setting stores a small piece of persisted state as a key/value pair,
// such as the ID of the last posted leaderboard message.
type Setting struct {
	bun.BaseModel `bun:"table:settings"`

	Key       string    `bun:",pk"`
	Value     string    `bun:",notnull,default:''"`
	UpdatedAt time.Time `bun:",notnull"`
}

// LastResetKey is the settings key recording when counters were last wiped.
const LastResetKey = "last_reset"

// MessageBoardKey returns the settings key holding the ID of the currently
// posted message leaderboard for a guild.
func MessageBoardKey(guildID snowflake.ID) string {
	return fmt.Sprintf("message_board_id:%d", guildID)
}

// VoiceBoardKey returns the settings key holding the ID of the currently
// posted voice leaderboard for a guild.
func VoiceBoardKey(guildID snowflake.ID) string {
	return fmt.Sprintf("voice_board_id:%d", guildID)
}
