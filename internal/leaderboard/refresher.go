package leaderboard

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"github.com/pulsekit/pulseboard/internal/database"
	"github.com/pulsekit/pulseboard/internal/database/types"
	"github.com/pulsekit/pulseboard/internal/metrics"
	"github.com/pulsekit/pulseboard/internal/setup/config"
	"go.uber.org/zap"
)

// BoardPublisher posts and removes leaderboard messages. Satisfied by
// disgo's rest client.
type BoardPublisher interface {
	CreateMessage(channelID snowflake.ID, message discord.MessageCreate, opts ...rest.RequestOpt) (*discord.Message, error)
	DeleteMessage(channelID, messageID snowflake.ID, opts ...rest.RequestOpt) error
}

// Refresher periodically re-renders the pinned leaderboard messages. Each
// cycle deletes the previous board message and posts a fresh one, storing
// the new message ID for the next cycle.
type Refresher struct {
	service   *Service
	db        database.Client
	publisher BoardPublisher
	stats     *metrics.Client
	config    *config.BotConfig
	logger    *zap.Logger
}

// NewRefresher creates a Refresher.
func NewRefresher(
	service *Service, db database.Client, publisher BoardPublisher,
	stats *metrics.Client, config *config.BotConfig, logger *zap.Logger,
) *Refresher {
	return &Refresher{
		service:   service,
		db:        db,
		publisher: publisher,
		stats:     stats,
		config:    config,
		logger:    logger.Named("refresher"),
	}
}

// Start runs the refresh loop until the context is canceled. The first
// refresh happens immediately.
func (r *Refresher) Start(ctx context.Context) {
	interval := time.Duration(r.config.Leaderboard.UpdateInterval) * time.Second

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.logger.Info("Starting leaderboard refresher", zap.Duration("interval", interval))

	for {
		r.RefreshAll(ctx)

		select {
		case <-ctx.Done():
			r.logger.Info("Leaderboard refresher stopped")
			return
		case <-ticker.C:
		}
	}
}

// RefreshAll re-renders both boards for the configured guild. The reset
// schedule is checked by the board fetch itself.
func (r *Refresher) RefreshAll(ctx context.Context) {
	guildID := snowflake.ID(r.config.Discord.GuildID)

	if r.config.Discord.MessageChannelID != 0 {
		if err := r.refreshBoard(ctx, KindMessages, guildID, snowflake.ID(r.config.Discord.MessageChannelID)); err != nil {
			r.logger.Error("Failed to refresh message board", zap.Error(err))
		}
	}

	if r.config.Discord.VoiceChannelID != 0 {
		if err := r.refreshBoard(ctx, KindVoice, guildID, snowflake.ID(r.config.Discord.VoiceChannelID)); err != nil {
			r.logger.Error("Failed to refresh voice board", zap.Error(err))
		}
	}
}

// refreshBoard replaces the rendered board message in a channel.
func (r *Refresher) refreshBoard(ctx context.Context, kind Kind, guildID, channelID snowflake.ID) error {
	rows, err := r.service.Top(ctx, kind, guildID, r.config.Leaderboard.Size)
	if err != nil {
		return err
	}

	settingKey := types.MessageBoardKey(guildID)
	if kind == KindVoice {
		settingKey = types.VoiceBoardKey(guildID)
	}

	r.deletePrevious(ctx, settingKey, channelID)

	embed := BuildEmbed(kind, rows, r.config.Leaderboard.RefreshDays)

	message, err := r.publisher.CreateMessage(channelID, discord.NewMessageCreateBuilder().
		SetEmbeds(embed).
		Build(), rest.WithCtx(ctx))
	if err != nil {
		return err
	}

	if err := r.db.Model().Setting().Set(ctx, settingKey, message.ID.String()); err != nil {
		r.logger.Error("Failed to store board message ID",
			zap.String("key", settingKey),
			zap.Error(err))
	}

	r.stats.Record(ctx, metrics.FieldBoardRefreshes, 1)
	r.logger.Debug("Refreshed leaderboard",
		zap.String("kind", string(kind)),
		zap.Uint64("messageID", uint64(message.ID)))

	return nil
}

// deletePrevious removes the previous board message if one is recorded.
// Missing messages and permission errors are tolerated since the message
// may have been deleted by hand.
func (r *Refresher) deletePrevious(ctx context.Context, settingKey string, channelID snowflake.ID) {
	stored, err := r.db.Model().Setting().Get(ctx, settingKey)
	if err != nil || stored == "" {
		return
	}

	messageID, err := strconv.ParseUint(stored, 10, 64)
	if err != nil {
		r.logger.Warn("Invalid stored board message ID", zap.String("value", stored))
		return
	}

	err = r.publisher.DeleteMessage(channelID, snowflake.ID(messageID), rest.WithCtx(ctx))
	if err != nil {
		var restErr *rest.Error
		if errors.As(err, &restErr) && restErr.Response != nil &&
			(restErr.Response.StatusCode == http.StatusNotFound || restErr.Response.StatusCode == http.StatusForbidden) {
			r.logger.Debug("Previous board message already gone",
				zap.Uint64("messageID", messageID))
			return
		}

		r.logger.Warn("Failed to delete previous board message",
			zap.Uint64("messageID", messageID),
			zap.Error(err))
	}
}
