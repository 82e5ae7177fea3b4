// Package bot wires the Discord gateway to activity tracking and the
// leaderboard commands.
package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/disgoorg/disgo"
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/cache"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/gateway"
	"github.com/disgoorg/snowflake/v2"
	"github.com/pulsekit/pulseboard/internal/database"
	"github.com/pulsekit/pulseboard/internal/database/batch"
	"github.com/pulsekit/pulseboard/internal/leaderboard"
	"github.com/pulsekit/pulseboard/internal/metrics"
	"github.com/pulsekit/pulseboard/internal/setup/config"
	"github.com/pulsekit/pulseboard/internal/tracker"
	"github.com/pulsekit/pulseboard/internal/worker/core"
	"go.uber.org/zap"
)

// Bot owns the Discord client and the tracking pipeline behind it. Gateway
// events feed the tracker, slash commands read from the leaderboard service,
// and the refresher re-renders the pinned boards in the background.
type Bot struct {
	db        database.Client
	client    bot.Client
	tracker   *tracker.Tracker
	boards    *leaderboard.Service
	refresher *leaderboard.Refresher
	stats     *metrics.Client
	health    *metrics.HealthChecker
	workers   *core.Monitor
	config    *config.BotConfig
	logger    *zap.Logger

	stopRefresher context.CancelFunc
	refresherDone chan struct{}
}

// New initializes a Bot instance with its Discord client, tracker,
// leaderboard service, and refresher.
func New(
	cfg *config.BotConfig, db database.Client, writer *batch.Writer,
	stats *metrics.Client, health *metrics.HealthChecker, workers *core.Monitor,
	logger *zap.Logger,
) (*Bot, error) {
	b := &Bot{
		db:      db,
		stats:   stats,
		health:  health,
		workers: workers,
		config:  cfg,
		logger:  logger.Named("bot"),
	}

	// Configure Discord client with required gateway intents and event handlers
	client, err := disgo.New(cfg.Discord.Token,
		bot.WithGatewayConfigOpts(
			gateway.WithIntents(
				gateway.IntentGuilds,
				gateway.IntentGuildMessages,
				gateway.IntentGuildVoiceStates,
				gateway.IntentGuildMembers,
			),
		),
		bot.WithCacheConfigOpts(
			cache.WithCaches(cache.FlagVoiceStates, cache.FlagMembers),
		),
		bot.WithEventListeners(&events.ListenerAdapter{
			OnMessageCreate:                 b.onMessageCreate,
			OnGuildVoiceStateUpdate:         b.onVoiceStateUpdate,
			OnApplicationCommandInteraction: b.onCommandInteraction,
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord client: %w", err)
	}

	b.client = client
	b.boards = leaderboard.New(db, client.Rest(), stats, cfg, logger)
	b.tracker = tracker.New(db, writer, stats, b.boards, cfg, logger)
	b.refresher = leaderboard.NewRefresher(b.boards, db, client.Rest(), stats, cfg, logger)

	// A full buffer means events are already being dropped
	health.Register("batch_queue", false, func(_ context.Context) error {
		depth, capacity := writer.QueueDepth()
		if depth >= capacity {
			return fmt.Errorf("operation buffer full (%d/%d)", depth, capacity)
		}

		return nil
	})

	return b, nil
}

// Start registers the leaderboard command and opens the gateway connection,
// then launches the background board refresher.
func (b *Bot) Start(ctx context.Context) error {
	if err := b.registerCommands(); err != nil {
		return err
	}

	b.logger.Info("Starting bot")

	if err := b.client.OpenGateway(ctx); err != nil {
		return fmt.Errorf("failed to open gateway: %w", err)
	}

	refresherCtx, cancel := context.WithCancel(context.Background())
	b.stopRefresher = cancel
	b.refresherDone = make(chan struct{})

	go func() {
		defer close(b.refresherDone)
		b.refresher.Start(refresherCtx)
	}()

	return nil
}

// Close stops the refresher and gracefully shuts down the gateway connection.
func (b *Bot) Close() {
	b.logger.Info("Closing bot")

	if b.stopRefresher != nil {
		b.stopRefresher()
		<-b.refresherDone
	}

	b.tracker.Close()
	b.boards.Close()
	b.client.Close(context.Background())
}

// registerCommands registers the leaderboard command. When a guild is
// configured the command is registered there for instant availability,
// otherwise it is registered globally.
func (b *Bot) registerCommands() error {
	commands := []discord.ApplicationCommandCreate{leaderboardCommand}

	var err error
	if b.config.Discord.GuildID != 0 {
		_, err = b.client.Rest().SetGuildCommands(
			b.client.ApplicationID(), snowflake.ID(b.config.Discord.GuildID), commands)
	} else {
		_, err = b.client.Rest().SetGlobalCommands(b.client.ApplicationID(), commands)
	}

	if err != nil {
		return fmt.Errorf("failed to register commands: %w", err)
	}

	return nil
}

// onMessageCreate feeds guild messages into the tracker.
func (b *Bot) onMessageCreate(event *events.MessageCreate) {
	if event.GuildID == nil {
		return
	}

	author := event.Message.Author

	globalName := ""
	if author.GlobalName != nil {
		globalName = *author.GlobalName
	}

	b.tracker.TrackMessage(context.Background(), tracker.MessageEvent{
		UserID:     author.ID,
		GuildID:    *event.GuildID,
		ChannelID:  event.ChannelID,
		Username:   author.Username,
		GlobalName: globalName,
		Bot:        author.Bot,
		At:         time.Now(),
	})
}

// onVoiceStateUpdate feeds voice transitions into the tracker.
func (b *Bot) onVoiceStateUpdate(event *events.GuildVoiceStateUpdate) {
	user := event.Member.User

	globalName := ""
	if user.GlobalName != nil {
		globalName = *user.GlobalName
	}

	b.tracker.HandleVoiceState(context.Background(), tracker.VoiceEvent{
		UserID:       event.VoiceState.UserID,
		GuildID:      event.VoiceState.GuildID,
		OldChannelID: event.OldVoiceState.ChannelID,
		NewChannelID: event.VoiceState.ChannelID,
		Username:     user.Username,
		GlobalName:   globalName,
		Bot:          user.Bot,
		At:           time.Now(),
	})
}
