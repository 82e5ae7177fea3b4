// Package tracker turns raw gateway events into queued activity operations.
package tracker

import (
	"context"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/pulsekit/pulseboard/internal/cache"
	"github.com/pulsekit/pulseboard/internal/database"
	"github.com/pulsekit/pulseboard/internal/database/batch"
	"github.com/pulsekit/pulseboard/internal/database/types"
	"github.com/pulsekit/pulseboard/internal/metrics"
	"github.com/pulsekit/pulseboard/internal/setup/config"
	"go.uber.org/zap"
)

// userRefreshTTL throttles how often a user's cached name is rewritten.
const userRefreshTTL = 6 * time.Hour

// limiterPruneInterval bounds how long idle users keep rate limiter entries.
const limiterPruneInterval = time.Minute

// BoardInvalidator drops cached leaderboard results for a guild after its
// counters change. Implemented by leaderboard.Service.
type BoardInvalidator interface {
	InvalidateGuild(guildID snowflake.ID)
}

// MessageEvent carries the fields of a gateway message relevant to tracking.
type MessageEvent struct {
	UserID     snowflake.ID
	GuildID    snowflake.ID
	ChannelID  snowflake.ID
	Username   string
	GlobalName string
	Bot        bool
	At         time.Time
}

// VoiceEvent carries a voice state transition. A nil channel ID means the
// user is not connected on that side of the transition.
type VoiceEvent struct {
	UserID       snowflake.ID
	GuildID      snowflake.ID
	OldChannelID *snowflake.ID
	NewChannelID *snowflake.ID
	Username     string
	GlobalName   string
	Bot          bool
	At           time.Time
}

// Tracker records chat and voice activity through the batch writer. Events
// from bots and rate-limited users are dropped.
type Tracker struct {
	db        database.Client
	writer    *batch.Writer
	stats     *metrics.Client
	boards    BoardInvalidator
	limiter   *RateLimiter
	refreshed *cache.Cache[snowflake.ID, struct{}]
	config    *config.BotConfig
	logger    *zap.Logger
	stop      chan struct{}
}

// New creates a Tracker wired to the batch writer and metrics client.
func New(
	db database.Client, writer *batch.Writer, stats *metrics.Client,
	boards BoardInvalidator, config *config.BotConfig, logger *zap.Logger,
) *Tracker {
	t := &Tracker{
		db:        db,
		writer:    writer,
		stats:     stats,
		boards:    boards,
		limiter:   NewRateLimiter(config.RateLimit.MaxEvents, time.Duration(config.RateLimit.Window)*time.Second),
		refreshed: cache.New[snowflake.ID, struct{}](4096, userRefreshTTL),
		config:    config,
		logger:    logger.Named("tracker"),
		stop:      make(chan struct{}),
	}

	go t.pruneLoop(limiterPruneInterval)

	return t
}

// Close stops the prune loop and the refresh throttle cache.
func (t *Tracker) Close() {
	close(t.stop)
	t.refreshed.Close()
}

// pruneLoop periodically drops rate limiter entries for users whose events
// have all left the window, so quiet users never pin memory.
func (t *Tracker) pruneLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			t.limiter.Prune(time.Now())
			t.logger.Debug("Pruned rate limiter",
				zap.Int("trackedUsers", t.limiter.TrackedUsers()))
		}
	}
}

// TrackMessage queues a message counter increment for the author.
func (t *Tracker) TrackMessage(ctx context.Context, event MessageEvent) {
	if !t.config.Tracking.Messages || event.Bot || event.GuildID == 0 {
		return
	}

	if !t.limiter.Allow(event.UserID, event.At) {
		t.stats.Record(ctx, metrics.FieldEventsDropped, 1)
		return
	}

	t.writer.Queue(batch.Op{
		Kind:      batch.OpMessageIncrement,
		UserID:    event.UserID,
		GuildID:   event.GuildID,
		ChannelID: event.ChannelID,
		At:        event.At,
	})

	t.stats.Record(ctx, metrics.FieldMessagesTracked, 1)
	t.boards.InvalidateGuild(event.GuildID)
	t.refreshUser(event.UserID, event.Username, event.GlobalName)
}

// HandleVoiceState queues join and leave operations for a voice transition.
// Moving between channels closes the running session and opens a new one so
// no elapsed time is lost if a later disconnect event goes missing.
func (t *Tracker) HandleVoiceState(ctx context.Context, event VoiceEvent) {
	if !t.config.Tracking.Voice || event.Bot || event.GuildID == 0 {
		return
	}

	joined := event.NewChannelID != nil
	left := event.OldChannelID != nil

	if !joined && !left {
		return
	}

	if !t.limiter.Allow(event.UserID, event.At) {
		t.stats.Record(ctx, metrics.FieldEventsDropped, 1)
		return
	}

	if left {
		t.writer.Queue(batch.Op{
			Kind:    batch.OpVoiceLeave,
			UserID:  event.UserID,
			GuildID: event.GuildID,
			At:      event.At,
		})
	}

	if joined {
		t.writer.Queue(batch.Op{
			Kind:    batch.OpVoiceJoin,
			UserID:  event.UserID,
			GuildID: event.GuildID,
			At:      event.At,
		})
	}

	t.stats.Record(ctx, metrics.FieldVoiceUpdates, 1)
	t.boards.InvalidateGuild(event.GuildID)
	t.refreshUser(event.UserID, event.Username, event.GlobalName)
}

// refreshUser opportunistically rewrites the user's cached name so the
// leaderboard can render users who later leave the guild. Writes are
// throttled per user and never block the event handler.
func (t *Tracker) refreshUser(userID snowflake.ID, username, globalName string) {
	if username == "" {
		return
	}

	if _, recent := t.refreshed.Get(userID); recent {
		return
	}

	t.refreshed.Set(userID, struct{}{})

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		err := t.db.Model().UserCache().Upsert(ctx, &types.CachedUser{
			UserID:     userID,
			Username:   username,
			GlobalName: globalName,
			CachedAt:   time.Now(),
		})
		if err != nil {
			t.logger.Warn("Failed to refresh cached user",
				zap.Uint64("userID", uint64(userID)),
				zap.Error(err))
		}
	}()
}
