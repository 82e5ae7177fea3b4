package leaderboard

import (
	"fmt"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/pulsekit/pulseboard/pkg/utils"
)

// Embed colors per board kind.
const (
	messageBoardColor = 0x5865F2
	voiceBoardColor   = 0x57F287
)

var rankMedals = []string{"🥇", "🥈", "🥉"}

// BuildEmbed renders board rows into a Discord embed.
func BuildEmbed(kind Kind, rows []Row, refreshDays int) discord.Embed {
	builder := discord.NewEmbedBuilder().
		SetTimestamp(time.Now())

	switch kind {
	case KindVoice:
		builder.SetTitle("🎙️ Voice Activity Leaderboard").
			SetColor(voiceBoardColor)
	case KindMessages:
		builder.SetTitle("💬 Message Activity Leaderboard").
			SetColor(messageBoardColor)
	}

	if len(rows) == 0 {
		builder.SetDescription("No activity recorded yet.")
	} else {
		var sb strings.Builder

		for _, row := range rows {
			sb.WriteString(formatRow(kind, row))
			sb.WriteByte('\n')
		}

		builder.SetDescription(sb.String())
	}

	builder.SetFooterText(fmt.Sprintf("Counters reset every %d days", refreshDays))

	return builder.Build()
}

func formatRow(kind Kind, row Row) string {
	marker := fmt.Sprintf("`%2d.`", row.Rank)
	if row.Rank <= len(rankMedals) {
		marker = rankMedals[row.Rank-1]
	}

	value := utils.FormatCount(row.Value) + " messages"
	if kind == KindVoice {
		value = utils.FormatDuration(row.Value)
	}

	return fmt.Sprintf("%s **%s** — %s", marker, row.Name, value)
}
