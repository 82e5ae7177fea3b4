package leaderboard

import (
	"context"
	"testing"
	"time"

	"github.com/pulsekit/pulseboard/internal/database"
	"github.com/pulsekit/pulseboard/internal/database/service"
	"github.com/pulsekit/pulseboard/internal/setup/config"
	"github.com/stretchr/testify/assert"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

type fakeClient struct{}

func (fakeClient) Model() *database.Repository { return nil }
func (fakeClient) Service() *service.Service   { return nil }
func (fakeClient) Close() error                { return nil }
func (fakeClient) DB() *bun.DB                 { return nil }

type fakeResetter struct {
	due    bool
	resets int
}

func (f *fakeResetter) ShouldReset(_ context.Context, _ int, _ time.Time) (bool, error) {
	return f.due, nil
}

func (f *fakeResetter) ResetCycle(_ context.Context, _ time.Duration, _ time.Time) error {
	f.resets++
	return nil
}

func newTestService(t *testing.T) *Service {
	t.Helper()

	cfg := &config.BotConfig{
		Leaderboard: config.Leaderboard{Size: 10, MaxSize: 10, RefreshDays: 30},
		Cache:       config.Cache{MaxSize: 64, TTL: 60, VoiceTTL: 30},
	}

	s := New(fakeClient{}, nil, nil, cfg, zap.NewNop())
	t.Cleanup(s.Close)

	return s
}

func TestEnsureCycleResetsWhenOverdue(t *testing.T) {
	t.Parallel()

	s := newTestService(t)
	resetter := &fakeResetter{due: true}
	s.resets = resetter

	s.results.Set("messages:10:10", []Row{{Rank: 1, UserID: 1, Name: "alpha", Value: 5}})

	s.ensureCycle(context.Background())

	assert.Equal(t, 1, resetter.resets)

	// Boards from the previous cycle must not survive the reset
	_, exists := s.results.Get("messages:10:10")
	assert.False(t, exists)
}

func TestEnsureCycleKeepsCacheMidCycle(t *testing.T) {
	t.Parallel()

	s := newTestService(t)
	resetter := &fakeResetter{due: false}
	s.resets = resetter

	s.results.Set("messages:10:10", []Row{{Rank: 1, UserID: 1, Name: "alpha", Value: 5}})

	s.ensureCycle(context.Background())

	assert.Zero(t, resetter.resets)

	_, exists := s.results.Get("messages:10:10")
	assert.True(t, exists)
}

func TestInvalidateGuildDropsGlobalBoards(t *testing.T) {
	t.Parallel()

	s := newTestService(t)

	s.results.Set("messages:10:10", []Row{{Rank: 1, UserID: 1, Name: "alpha", Value: 5}})
	s.results.Set("messages:0:10", []Row{{Rank: 1, UserID: 1, Name: "alpha", Value: 5}})
	s.results.Set("voice:20:10", []Row{{Rank: 1, UserID: 2, Name: "beta", Value: 60}})

	s.InvalidateGuild(10)

	_, exists := s.results.Get("messages:10:10")
	assert.False(t, exists)

	// Global boards aggregate this guild's counters
	_, exists = s.results.Get("messages:0:10")
	assert.False(t, exists)

	// Other guilds keep their boards
	_, exists = s.results.Get("voice:20:10")
	assert.True(t, exists)
}
