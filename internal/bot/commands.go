package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/json"
	"github.com/disgoorg/snowflake/v2"
	"github.com/pulsekit/pulseboard/internal/leaderboard"
	"github.com/pulsekit/pulseboard/internal/metrics"
	"github.com/pulsekit/pulseboard/internal/worker/core"
	"github.com/pulsekit/pulseboard/pkg/utils"
	"go.uber.org/zap"
)

// Command and subcommand names.
const (
	commandName = "leaderboard"

	subcommandMessages = "messages"
	subcommandVoice    = "voice"
	subcommandStats    = "stats"
	subcommandPing     = "ping"
	subcommandSettings = "settings"
	subcommandHealth   = "health"
	subcommandRefresh  = "refresh"
)

const commandTimeout = 30 * time.Second

var leaderboardCommand = discord.SlashCommandCreate{
	Name:        commandName,
	Description: "View activity leaderboards and tracking status",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionSubCommand{
			Name:        subcommandMessages,
			Description: "Show the message activity leaderboard",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionInt{
					Name:        "size",
					Description: "Number of entries to show",
					MinValue:    json.Ptr(1),
					MaxValue:    json.Ptr(10),
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        subcommandVoice,
			Description: "Show the voice activity leaderboard",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionInt{
					Name:        "size",
					Description: "Number of entries to show",
					MinValue:    json.Ptr(1),
					MaxValue:    json.Ptr(10),
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        subcommandStats,
			Description: "Show activity stats",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionUser{
					Name:        "user",
					Description: "User to look up (defaults to you)",
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        subcommandPing,
			Description: "Show gateway latency",
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        subcommandSettings,
			Description: "Show tracking configuration (admin only)",
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        subcommandHealth,
			Description: "Show system health (admin only)",
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        subcommandRefresh,
			Description: "Force a leaderboard refresh (admin only)",
		},
	},
}

// onCommandInteraction dispatches the leaderboard subcommands. Responses
// are deferred so slow database or API calls never hit the interaction
// timeout.
func (b *Bot) onCommandInteraction(event *events.ApplicationCommandInteractionCreate) {
	data := event.SlashCommandInteractionData()
	if data.CommandName() != commandName || data.SubCommandName == nil {
		return
	}

	subcommand := *data.SubCommandName

	go func() {
		if err := event.DeferCreateMessage(true); err != nil {
			b.logger.Error("Failed to defer interaction response", zap.Error(err))
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()

		switch subcommand {
		case subcommandMessages:
			b.handleBoard(ctx, event, leaderboard.KindMessages)
		case subcommandVoice:
			b.handleBoard(ctx, event, leaderboard.KindVoice)
		case subcommandStats:
			b.handleStats(ctx, event)
		case subcommandPing:
			b.handlePing(event)
		case subcommandSettings:
			b.handleAdmin(event, func() { b.handleSettings(ctx, event) })
		case subcommandHealth:
			b.handleAdmin(event, func() { b.handleHealth(ctx, event) })
		case subcommandRefresh:
			b.handleAdmin(event, func() { b.handleRefresh(ctx, event) })
		}
	}()
}

// handleAdmin runs fn only for configured admin users.
func (b *Bot) handleAdmin(event *events.ApplicationCommandInteractionCreate, fn func()) {
	if !b.config.Discord.IsAdmin(uint64(event.User().ID)) {
		b.respondError(event, "You are not allowed to use this command.")
		return
	}

	fn()
}

func (b *Bot) handleBoard(
	ctx context.Context, event *events.ApplicationCommandInteractionCreate, kind leaderboard.Kind,
) {
	size := b.config.Leaderboard.Size
	if v, ok := event.SlashCommandInteractionData().OptInt("size"); ok {
		size = v
	}

	rows, err := b.boards.Top(ctx, kind, b.eventGuildID(event), size)
	if err != nil {
		b.logger.Error("Failed to build leaderboard",
			zap.String("kind", string(kind)),
			zap.Error(err))
		b.respondError(event, "Failed to load the leaderboard. Please try again.")

		return
	}

	b.respondEmbed(event, leaderboard.BuildEmbed(kind, rows, b.config.Leaderboard.RefreshDays))
}

func (b *Bot) handleStats(ctx context.Context, event *events.ApplicationCommandInteractionCreate) {
	target := event.User()
	if user, ok := event.SlashCommandInteractionData().OptUser("user"); ok {
		target = user
	}

	stats, err := b.boards.UserStats(ctx, target.ID, b.eventGuildID(event))
	if err != nil {
		b.logger.Error("Failed to get user stats", zap.Error(err))
		b.respondError(event, "Failed to load the stats. Please try again.")

		return
	}

	b.respondEmbed(event, statsEmbed(userDisplayName(target), stats))
}

// statsEmbed renders one user's counters and board positions.
func statsEmbed(name string, stats *leaderboard.UserStats) discord.Embed {
	return discord.NewEmbedBuilder().
		SetTitle(fmt.Sprintf("📊 Activity for %s", name)).
		SetColor(0x5865F2).
		AddField("Messages", fmt.Sprintf("%s (rank #%d)",
			utils.FormatCount(stats.Messages), stats.MessageRank), true).
		AddField("Voice", fmt.Sprintf("%s (rank #%d)",
			utils.FormatDuration(stats.VoiceSeconds), stats.VoiceRank), true).
		SetTimestamp(time.Now()).
		Build()
}

func userDisplayName(user discord.User) string {
	if user.GlobalName != nil && *user.GlobalName != "" {
		return *user.GlobalName
	}

	return user.Username
}

func (b *Bot) handlePing(event *events.ApplicationCommandInteractionCreate) {
	latency := b.client.Gateway().Latency().Round(time.Millisecond)
	b.respondText(event, fmt.Sprintf("🏓 Pong! Gateway latency: %s", latency))
}

func (b *Bot) handleSettings(ctx context.Context, event *events.ApplicationCommandInteractionCreate) {
	cacheStats := b.boards.CacheStats()

	builder := discord.NewEmbedBuilder().
		SetTitle("⚙️ Tracking Configuration").
		SetColor(0x5865F2).
		AddField("Message tracking", onOff(b.config.Tracking.Messages), true).
		AddField("Voice tracking", onOff(b.config.Tracking.Voice), true).
		AddField("Board size", fmt.Sprintf("%d", b.config.Leaderboard.Size), true).
		AddField("Update interval", fmt.Sprintf("%ds", b.config.Leaderboard.UpdateInterval), true).
		AddField("Reset cycle", fmt.Sprintf("%d days", b.config.Leaderboard.RefreshDays), true).
		AddField("Cache", fmt.Sprintf("%d hits / %d misses", cacheStats.Hits, cacheStats.Misses), true).
		SetTimestamp(time.Now())

	if summary, err := b.stats.GetDailySummary(ctx); err == nil {
		builder.AddField("Today", fmt.Sprintf("%s messages, %s voice updates",
			utils.FormatCount(summary.MessagesTracked),
			utils.FormatCount(summary.VoiceUpdates)), false)
	}

	b.respondEmbed(event, builder.Build())
}

func (b *Bot) handleHealth(ctx context.Context, event *events.ApplicationCommandInteractionCreate) {
	report := b.health.Run(ctx)

	color := 0x57F287
	switch report.Status {
	case metrics.StatusDegraded:
		color = 0xFEE75C
	case metrics.StatusUnhealthy:
		color = 0xED4245
	}

	builder := discord.NewEmbedBuilder().
		SetTitle("🩺 System Health").
		SetDescription("Status: **" + report.Status + "**").
		SetColor(color).
		SetTimestamp(report.CheckedAt)

	for _, check := range report.Checks {
		value := fmt.Sprintf("✅ %s", check.Latency.Round(time.Millisecond))
		if !check.Healthy {
			value = fmt.Sprintf("❌ %s", check.Error)
		}

		builder.AddField(check.Name, value, true)
	}

	if statuses, err := b.workers.GetAllStatuses(ctx); err == nil {
		for _, status := range statuses {
			builder.AddField("worker: "+status.WorkerType, workerStatusLine(status, time.Now()), true)
		}
	} else {
		b.logger.Warn("Failed to list worker statuses", zap.Error(err))
	}

	b.respondEmbed(event, builder.Build())
}

// workerStatusLine renders one worker heartbeat for the health embed.
func workerStatusLine(status core.Status, now time.Time) string {
	marker := "✅"

	switch {
	case now.Sub(status.LastSeen) > core.StaleThreshold:
		marker = "⚠️ stale"
	case !status.IsHealthy:
		marker = "❌"
	}

	task := status.CurrentTask
	if task == "" {
		task = "idle"
	}

	return fmt.Sprintf("%s %s (seen %s ago)", marker, task, now.Sub(status.LastSeen).Round(time.Second))
}

func (b *Bot) handleRefresh(ctx context.Context, event *events.ApplicationCommandInteractionCreate) {
	b.boards.InvalidateAll()
	b.refresher.RefreshAll(ctx)

	b.respondText(event, "Leaderboards refreshed.")
}

// eventGuildID resolves the guild an interaction belongs to, falling back
// to the configured guild for DM usage.
func (b *Bot) eventGuildID(event *events.ApplicationCommandInteractionCreate) snowflake.ID {
	if event.GuildID() != nil {
		return *event.GuildID()
	}

	return snowflake.ID(b.config.Discord.GuildID)
}

func (b *Bot) respondEmbed(event *events.ApplicationCommandInteractionCreate, embed discord.Embed) {
	_, err := event.Client().Rest().UpdateInteractionResponse(
		event.ApplicationID(), event.Token(),
		discord.NewMessageUpdateBuilder().SetEmbeds(embed).Build())
	if err != nil {
		b.logger.Error("Failed to update interaction response", zap.Error(err))
	}
}

func (b *Bot) respondText(event *events.ApplicationCommandInteractionCreate, content string) {
	_, err := event.Client().Rest().UpdateInteractionResponse(
		event.ApplicationID(), event.Token(),
		discord.NewMessageUpdateBuilder().SetContent(content).Build())
	if err != nil {
		b.logger.Error("Failed to update interaction response", zap.Error(err))
	}
}

func (b *Bot) respondError(event *events.ApplicationCommandInteractionCreate, message string) {
	b.respondText(event, "❌ "+message)
}

func onOff(enabled bool) string {
	if enabled {
		return "enabled"
	}

	return "disabled"
}
