package tracker_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/disgoorg/snowflake/v2"
	"github.com/pulsekit/pulseboard/internal/database"
	"github.com/pulsekit/pulseboard/internal/database/batch"
	"github.com/pulsekit/pulseboard/internal/database/service"
	"github.com/pulsekit/pulseboard/internal/database/types"
	"github.com/pulsekit/pulseboard/internal/metrics"
	"github.com/pulsekit/pulseboard/internal/setup/config"
	"github.com/pulsekit/pulseboard/internal/tracker"
	"github.com/redis/rueidis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

type fakeDB struct{}

func (fakeDB) Model() *database.Repository { return nil }
func (fakeDB) Service() *service.Service   { return nil }
func (fakeDB) Close() error                { return nil }
func (fakeDB) DB() *bun.DB                 { return nil }

type fakeApplier struct {
	mu     sync.Mutex
	counts []*types.MessageCount
	joins  []*types.VoiceSession
	leaves [][]snowflake.ID
}

func (f *fakeApplier) ApplyMessageIncrements(_ context.Context, rows []*types.MessageCount) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts = append(f.counts, rows...)

	return nil
}

func (f *fakeApplier) ApplyVoiceJoins(_ context.Context, rows []*types.VoiceSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.joins = append(f.joins, rows...)

	return nil
}

func (f *fakeApplier) ApplyVoiceLeaves(_ context.Context, keys [][]snowflake.ID, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leaves = append(f.leaves, keys...)

	return nil
}

type fakeBoards struct {
	mu          sync.Mutex
	invalidated []snowflake.ID
}

func (f *fakeBoards) InvalidateGuild(guildID snowflake.ID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, guildID)
}

func setupTest(t *testing.T, cfg *config.BotConfig) (*tracker.Tracker, *fakeApplier, *fakeBoards, *batch.Writer, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{mr.Addr()},
		DisableCache: true,
	})
	require.NoError(t, err)

	applier := &fakeApplier{}
	writer := batch.NewWriter(applier, &config.Batch{FlushInterval: 3600}, zap.NewNop())
	boards := &fakeBoards{}
	stats := metrics.NewClient(client, zap.NewNop())

	tr := tracker.New(fakeDB{}, writer, stats, boards, cfg, zap.NewNop())

	cleanup := func() {
		tr.Close()
		mr.Close()
		client.Close()
	}

	return tr, applier, boards, writer, cleanup
}

func testConfig() *config.BotConfig {
	return &config.BotConfig{
		Tracking:  config.Tracking{Messages: true, Voice: true},
		RateLimit: config.RateLimit{MaxEvents: 100, Window: 60},
		Cache:     config.Cache{MaxSize: 16, TTL: 60, VoiceTTL: 30},
	}
}

func TestTrackMessage(t *testing.T) {
	t.Parallel()

	tr, applier, boards, writer, cleanup := setupTest(t, testConfig())
	defer cleanup()

	now := time.Now()
	for range 3 {
		tr.TrackMessage(context.Background(), tracker.MessageEvent{
			UserID: 1, GuildID: 10, ChannelID: 100, At: now,
		})
	}

	// Bot messages are ignored
	tr.TrackMessage(context.Background(), tracker.MessageEvent{
		UserID: 2, GuildID: 10, Bot: true, At: now,
	})

	writer.Close()

	require.Len(t, applier.counts, 1)
	assert.Equal(t, snowflake.ID(1), applier.counts[0].UserID)
	assert.Equal(t, int64(3), applier.counts[0].Count)

	boards.mu.Lock()
	defer boards.mu.Unlock()
	assert.Len(t, boards.invalidated, 3)
}

func TestTrackMessageDisabled(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Tracking.Messages = false

	tr, applier, _, writer, cleanup := setupTest(t, cfg)
	defer cleanup()

	tr.TrackMessage(context.Background(), tracker.MessageEvent{
		UserID: 1, GuildID: 10, At: time.Now(),
	})

	writer.Close()
	assert.Empty(t, applier.counts)
}

func TestTrackMessageRateLimited(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.RateLimit.MaxEvents = 2

	tr, applier, _, writer, cleanup := setupTest(t, cfg)
	defer cleanup()

	now := time.Now()
	for range 5 {
		tr.TrackMessage(context.Background(), tracker.MessageEvent{
			UserID: 1, GuildID: 10, At: now,
		})
	}

	writer.Close()

	require.Len(t, applier.counts, 1)
	assert.Equal(t, int64(2), applier.counts[0].Count)
}

func TestHandleVoiceState(t *testing.T) {
	t.Parallel()

	tr, applier, _, writer, cleanup := setupTest(t, testConfig())
	defer cleanup()

	channelA := snowflake.ID(100)
	channelB := snowflake.ID(200)
	now := time.Now()

	// Join
	tr.HandleVoiceState(context.Background(), tracker.VoiceEvent{
		UserID: 1, GuildID: 10, NewChannelID: &channelA, At: now,
	})

	// Switch closes the session and opens a new one
	tr.HandleVoiceState(context.Background(), tracker.VoiceEvent{
		UserID: 1, GuildID: 10, OldChannelID: &channelA, NewChannelID: &channelB, At: now.Add(time.Minute),
	})

	// Leave
	tr.HandleVoiceState(context.Background(), tracker.VoiceEvent{
		UserID: 1, GuildID: 10, OldChannelID: &channelB, At: now.Add(2 * time.Minute),
	})

	writer.Close()

	assert.Len(t, applier.joins, 2)
	assert.Len(t, applier.leaves, 2)
}
