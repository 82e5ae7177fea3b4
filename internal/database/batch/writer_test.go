package batch_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/pulsekit/pulseboard/internal/database/batch"
	"github.com/pulsekit/pulseboard/internal/database/types"
	"github.com/pulsekit/pulseboard/internal/setup/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeApplier struct {
	mu       sync.Mutex
	messages [][]*types.MessageCount
	joins    [][]*types.VoiceSession
	leaves   [][][]snowflake.ID
	leaveAt  time.Time
}

func (f *fakeApplier) ApplyMessageIncrements(_ context.Context, rows []*types.MessageCount) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, rows)

	return nil
}

func (f *fakeApplier) ApplyVoiceJoins(_ context.Context, rows []*types.VoiceSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.joins = append(f.joins, rows)

	return nil
}

func (f *fakeApplier) ApplyVoiceLeaves(_ context.Context, keys [][]snowflake.ID, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leaves = append(f.leaves, keys)
	f.leaveAt = now

	return nil
}

func newTestWriter(applier *fakeApplier, flushSize int) *batch.Writer {
	return batch.NewWriter(applier, &config.Batch{
		FlushSize:     flushSize,
		FlushInterval: 3600,
		BufferSize:    256,
	}, zap.NewNop())
}

func TestWriterAggregatesMessageIncrements(t *testing.T) {
	t.Parallel()

	applier := &fakeApplier{}
	writer := newTestWriter(applier, 100)

	now := time.Now()
	for range 5 {
		writer.Queue(batch.Op{
			Kind:      batch.OpMessageIncrement,
			UserID:    1,
			GuildID:   10,
			ChannelID: 100,
			At:        now,
		})
	}

	writer.Queue(batch.Op{
		Kind:      batch.OpMessageIncrement,
		UserID:    2,
		GuildID:   10,
		ChannelID: 100,
		At:        now,
	})

	writer.Close()

	require.Len(t, applier.messages, 1)

	rows := applier.messages[0]
	require.Len(t, rows, 2)
	assert.Equal(t, snowflake.ID(1), rows[0].UserID)
	assert.Equal(t, int64(5), rows[0].Count)
	assert.Equal(t, snowflake.ID(2), rows[1].UserID)
	assert.Equal(t, int64(1), rows[1].Count)
}

func TestWriterFlushesOnSizeThreshold(t *testing.T) {
	t.Parallel()

	applier := &fakeApplier{}
	writer := newTestWriter(applier, 3)

	now := time.Now()
	for i := range 3 {
		writer.Queue(batch.Op{
			Kind:    batch.OpMessageIncrement,
			UserID:  snowflake.ID(i + 1),
			GuildID: 10,
			At:      now,
		})
	}

	assert.Eventually(t, func() bool {
		applier.mu.Lock()
		defer applier.mu.Unlock()

		return len(applier.messages) == 1
	}, time.Second, 10*time.Millisecond)

	writer.Close()
}

func TestWriterPreservesJoinLeaveOrder(t *testing.T) {
	t.Parallel()

	applier := &fakeApplier{}
	writer := newTestWriter(applier, 100)

	joinAt := time.Now()
	leaveAt := joinAt.Add(time.Minute)
	rejoinAt := joinAt.Add(2 * time.Minute)

	writer.Queue(batch.Op{Kind: batch.OpVoiceJoin, UserID: 1, GuildID: 10, At: joinAt})
	writer.Queue(batch.Op{Kind: batch.OpVoiceLeave, UserID: 1, GuildID: 10, At: leaveAt})
	writer.Queue(batch.Op{Kind: batch.OpVoiceJoin, UserID: 1, GuildID: 10, At: rejoinAt})

	writer.Close()

	// Two join runs split by the leave in between.
	require.Len(t, applier.joins, 2)
	require.Len(t, applier.leaves, 1)

	require.NotNil(t, applier.joins[0][0].JoinTime)
	assert.Equal(t, joinAt, *applier.joins[0][0].JoinTime)
	assert.Equal(t, leaveAt, applier.leaveAt)
	assert.Equal(t, rejoinAt, *applier.joins[1][0].JoinTime)

	require.Len(t, applier.leaves[0], 1)
	assert.Equal(t, []snowflake.ID{1, 10}, applier.leaves[0][0])
}

func TestWriterQueueAfterClose(t *testing.T) {
	t.Parallel()

	applier := &fakeApplier{}
	writer := newTestWriter(applier, 100)

	writer.Queue(batch.Op{Kind: batch.OpMessageIncrement, UserID: 1, GuildID: 10, At: time.Now()})
	writer.Close()

	// Late events are dropped instead of panicking on the closed channel
	writer.Queue(batch.Op{Kind: batch.OpMessageIncrement, UserID: 2, GuildID: 10, At: time.Now()})
	writer.Close()

	require.Len(t, applier.messages, 1)
	require.Len(t, applier.messages[0], 1)
	assert.Equal(t, snowflake.ID(1), applier.messages[0][0].UserID)
}

func TestWriterCloseFlushesPending(t *testing.T) {
	t.Parallel()

	applier := &fakeApplier{}
	writer := newTestWriter(applier, 100)

	writer.Queue(batch.Op{Kind: batch.OpMessageIncrement, UserID: 1, GuildID: 10, At: time.Now()})
	writer.Close()

	require.Len(t, applier.messages, 1)
	assert.Equal(t, int64(1), applier.messages[0][0].Count)
}
