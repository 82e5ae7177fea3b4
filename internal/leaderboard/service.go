// Package leaderboard builds ranked activity boards from stored counters.
package leaderboard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"github.com/pulsekit/pulseboard/internal/cache"
	"github.com/pulsekit/pulseboard/internal/database"
	"github.com/pulsekit/pulseboard/internal/database/types"
	"github.com/pulsekit/pulseboard/internal/metrics"
	"github.com/pulsekit/pulseboard/internal/setup/config"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// UnknownUserName is rendered for users whose name cannot be resolved.
const UnknownUserName = "Unknown User"

// resetUserCacheRetention keeps a week of cached names across cycle resets.
const resetUserCacheRetention = 7 * 24 * time.Hour

// Kind selects which activity board to build.
type Kind string

const (
	// KindMessages ranks users by message count.
	KindMessages Kind = "messages"
	// KindVoice ranks users by accumulated voice time.
	KindVoice Kind = "voice"
)

// Row is one rendered leaderboard line.
type Row struct {
	Rank   int
	UserID snowflake.ID
	Name   string
	Value  int64
}

// UserFetcher resolves live Discord users. Satisfied by disgo's rest client.
type UserFetcher interface {
	GetUser(userID snowflake.ID, opts ...rest.RequestOpt) (*discord.User, error)
}

// cycleResetter checks and performs the periodic counter wipe. Satisfied by
// the activity service.
type cycleResetter interface {
	ShouldReset(ctx context.Context, refreshDays int, now time.Time) (bool, error)
	ResetCycle(ctx context.Context, userCacheRetention time.Duration, now time.Time) error
}

// Service builds leaderboards with an in-memory result cache in front of
// the database and resolves entry names concurrently.
type Service struct {
	db      database.Client
	users   UserFetcher
	stats   *metrics.Client
	resets  cycleResetter
	results *cache.Cache[string, []Row]
	config  *config.BotConfig
	logger  *zap.Logger
}

// New creates a leaderboard Service.
func New(
	db database.Client, users UserFetcher, stats *metrics.Client,
	config *config.BotConfig, logger *zap.Logger,
) *Service {
	s := &Service{
		db:      db,
		users:   users,
		stats:   stats,
		results: cache.New[string, []Row](config.Cache.MaxSize, time.Duration(config.Cache.TTL)*time.Second),
		config:  config,
		logger:  logger.Named("leaderboard"),
	}

	if svc := db.Service(); svc != nil {
		s.resets = svc.Activity()
	}

	return s
}

// Close stops the result cache.
func (s *Service) Close() {
	s.results.Close()
}

// Top returns the ranked board of the given kind for a guild. Results are
// served from the cache when fresh. The limit is clamped to the configured
// maximum.
func (s *Service) Top(ctx context.Context, kind Kind, guildID snowflake.ID, limit int) ([]Row, error) {
	s.ensureCycle(ctx)

	if limit <= 0 {
		limit = s.config.Leaderboard.Size
	}

	if limit > s.config.Leaderboard.MaxSize {
		limit = s.config.Leaderboard.MaxSize
	}

	key := fmt.Sprintf("%s:%d:%d", kind, guildID, limit)
	if rows, ok := s.results.Get(key); ok {
		s.stats.Record(ctx, metrics.FieldCacheHits, 1)
		return rows, nil
	}

	s.stats.Record(ctx, metrics.FieldCacheMisses, 1)

	entries, err := s.fetchEntries(ctx, kind, guildID, limit)
	if err != nil {
		return nil, err
	}

	rows := s.resolveRows(ctx, entries)

	// Voice boards age faster because open sessions keep accruing time
	ttl := time.Duration(s.config.Cache.TTL) * time.Second
	if kind == KindVoice {
		ttl = time.Duration(s.config.Cache.VoiceTTL) * time.Second
	}

	s.results.SetTTL(key, rows, ttl)

	return rows, nil
}

// UserStats returns a user's own counters and board positions in a guild.
func (s *Service) UserStats(ctx context.Context, userID, guildID snowflake.ID) (*UserStats, error) {
	now := time.Now()

	messages, err := s.db.Model().Message().UserCount(ctx, userID, guildID)
	if err != nil {
		return nil, err
	}

	messageRank, err := s.db.Model().Message().UserRank(ctx, userID, guildID)
	if err != nil {
		return nil, err
	}

	voiceSeconds, err := s.db.Model().Voice().UserTotal(ctx, userID, guildID, now)
	if err != nil {
		return nil, err
	}

	voiceRank, err := s.db.Model().Voice().UserRank(ctx, userID, guildID, now)
	if err != nil {
		return nil, err
	}

	return &UserStats{
		Messages:     messages,
		MessageRank:  messageRank,
		VoiceSeconds: voiceSeconds,
		VoiceRank:    voiceRank,
	}, nil
}

// UserStats holds a single user's activity totals and ranks.
type UserStats struct {
	Messages     int64
	MessageRank  int
	VoiceSeconds int64
	VoiceRank    int
}

// InvalidateGuild drops all cached boards for a guild, including the global
// boards the guild's counters feed into.
func (s *Service) InvalidateGuild(guildID snowflake.ID) {
	guilds := []snowflake.ID{guildID}
	if guildID != 0 {
		guilds = append(guilds, 0)
	}

	for _, g := range guilds {
		for _, kind := range []Kind{KindMessages, KindVoice} {
			for limit := 1; limit <= s.config.Leaderboard.MaxSize; limit++ {
				s.results.Delete(fmt.Sprintf("%s:%d:%d", kind, g, limit))
			}
		}
	}
}

// InvalidateAll drops every cached board. Used after a cycle reset.
func (s *Service) InvalidateAll() {
	s.results.Clear()
}

// CacheStats returns the result cache hit and miss counters.
func (s *Service) CacheStats() cache.Stats {
	return s.results.Stats()
}

// ensureCycle runs the periodic counter reset when the current cycle has run
// its course, so an overdue board is never served from pre-reset data. Reset
// failures are logged and the fetch proceeds on the old cycle.
func (s *Service) ensureCycle(ctx context.Context) {
	if s.resets == nil {
		return
	}

	now := time.Now()

	due, err := s.resets.ShouldReset(ctx, s.config.Leaderboard.RefreshDays, now)
	if err != nil {
		s.logger.Warn("Failed to check reset schedule", zap.Error(err))
		return
	}

	if !due {
		return
	}

	if err := s.resets.ResetCycle(ctx, resetUserCacheRetention, now); err != nil {
		s.logger.Error("Failed to reset activity cycle", zap.Error(err))
		return
	}

	s.results.Clear()
	s.logger.Info("Activity counters reset for new cycle")
}

func (s *Service) fetchEntries(ctx context.Context, kind Kind, guildID snowflake.ID, limit int) ([]types.Entry, error) {
	switch kind {
	case KindVoice:
		return s.db.Model().Voice().Top(ctx, guildID, limit, time.Now())
	case KindMessages:
		return s.db.Model().Message().Top(ctx, guildID, limit)
	default:
		return nil, fmt.Errorf("unknown leaderboard kind %q", kind)
	}
}

// resolveRows turns raw entries into display rows, resolving names through
// the live API first and falling back to the database name cache.
func (s *Service) resolveRows(ctx context.Context, entries []types.Entry) []Row {
	rows := make([]Row, len(entries))

	userIDs := make([]snowflake.ID, len(entries))
	for i, entry := range entries {
		userIDs[i] = entry.UserID
		rows[i] = Row{
			Rank:   i + 1,
			UserID: entry.UserID,
			Name:   UnknownUserName,
			Value:  entry.Value,
		}
	}

	cached, err := s.db.Model().UserCache().GetBatch(ctx, userIDs)
	if err != nil {
		s.logger.Warn("Failed to load cached names", zap.Error(err))
		cached = map[snowflake.ID]*types.CachedUser{}
	}

	var (
		p  = pool.New().WithContext(ctx).WithMaxGoroutines(4)
		mu sync.Mutex
	)

	for i := range rows {
		p.Go(func(ctx context.Context) error {
			name := s.resolveName(ctx, rows[i].UserID, cached)

			mu.Lock()
			rows[i].Name = name
			mu.Unlock()

			return nil
		})
	}

	// Name resolution is best effort, rows keep their fallback on error
	_ = p.Wait()

	return rows
}

func (s *Service) resolveName(ctx context.Context, userID snowflake.ID, cached map[snowflake.ID]*types.CachedUser) string {
	if user, err := s.users.GetUser(userID, rest.WithCtx(ctx)); err == nil {
		if user.GlobalName != nil && *user.GlobalName != "" {
			return *user.GlobalName
		}

		return user.Username
	}

	if entry, ok := cached[userID]; ok {
		return entry.DisplayName()
	}

	return UnknownUserName
}
