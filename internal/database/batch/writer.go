// Package batch coalesces high-frequency activity events into grouped
// database writes so gateway handlers never block on Postgres.
package batch

import (
	"context"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/pulsekit/pulseboard/internal/database/types"
	"github.com/pulsekit/pulseboard/internal/setup/config"
	"go.uber.org/zap"
)

// OpKind identifies the type of a queued activity operation.
type OpKind int

const (
	// OpMessageIncrement adds one to a user's message counter.
	OpMessageIncrement OpKind = iota
	// OpVoiceJoin opens a voice session.
	OpVoiceJoin
	// OpVoiceLeave closes a voice session and folds its elapsed time.
	OpVoiceLeave
)

// Op is a single queued activity operation.
type Op struct {
	Kind      OpKind
	UserID    snowflake.ID
	GuildID   snowflake.ID
	ChannelID snowflake.ID
	At        time.Time
}

// Applier persists grouped operations. Implemented by database.Repository.
type Applier interface {
	ApplyMessageIncrements(ctx context.Context, rows []*types.MessageCount) error
	ApplyVoiceJoins(ctx context.Context, rows []*types.VoiceSession) error
	ApplyVoiceLeaves(ctx context.Context, keys [][]snowflake.ID, now time.Time) error
}

const (
	defaultFlushSize     = 100
	defaultFlushInterval = 5 * time.Second
	defaultBufferSize    = 1024
)

// Writer queues activity operations and flushes them in grouped batches on
// a timer or when enough operations accumulate. Failed batches are logged
// and dropped.
type Writer struct {
	applier       Applier
	ops           chan Op
	flushSize     int
	flushInterval time.Duration
	logger        *zap.Logger
	done          chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewWriter creates a Writer and starts its flush loop.
func NewWriter(applier Applier, cfg *config.Batch, logger *zap.Logger) *Writer {
	flushSize := cfg.FlushSize
	if flushSize <= 0 {
		flushSize = defaultFlushSize
	}

	flushInterval := time.Duration(cfg.FlushInterval) * time.Second
	if flushInterval <= 0 {
		flushInterval = defaultFlushInterval
	}

	bufferSize := cfg.BufferSize
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}

	w := &Writer{
		applier:       applier,
		ops:           make(chan Op, bufferSize),
		flushSize:     flushSize,
		flushInterval: flushInterval,
		logger:        logger.Named("batch_writer"),
		done:          make(chan struct{}),
	}

	go w.run()

	return w
}

// Queue adds an operation to the pending batch. When the buffer is full the
// operation is dropped with a warning instead of blocking the caller.
// Operations queued after Close are dropped.
func (w *Writer) Queue(op Op) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.closed {
		w.logger.Warn("Writer closed, dropping event",
			zap.Int("kind", int(op.Kind)),
			zap.Uint64("userID", uint64(op.UserID)))

		return
	}

	select {
	case w.ops <- op:
	default:
		w.logger.Warn("Operation buffer full, dropping event",
			zap.Int("kind", int(op.Kind)),
			zap.Uint64("userID", uint64(op.UserID)))
	}
}

// QueueDepth returns the number of queued operations and the buffer capacity.
func (w *Writer) QueueDepth() (int, int) {
	return len(w.ops), cap(w.ops)
}

// Close flushes all pending operations and stops the flush loop. It is safe
// to call more than once.
func (w *Writer) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}

	w.closed = true
	w.mu.Unlock()

	close(w.ops)
	<-w.done
}

func (w *Writer) run() {
	defer close(w.done)

	ticker := time.NewTicker(w.flushInterval)
	defer ticker.Stop()

	pending := make([]Op, 0, w.flushSize)

	for {
		select {
		case op, ok := <-w.ops:
			if !ok {
				w.flush(pending)
				return
			}

			pending = append(pending, op)
			if len(pending) >= w.flushSize {
				w.flush(pending)
				pending = pending[:0]
			}

		case <-ticker.C:
			if len(pending) > 0 {
				w.flush(pending)
				pending = pending[:0]
			}
		}
	}
}

// flush applies pending operations as consecutive same-kind runs so that
// interleaved joins and leaves for the same user keep their event order.
func (w *Writer) flush(pending []Op) {
	if len(pending) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	start := 0
	for i := 1; i <= len(pending); i++ {
		if i == len(pending) || pending[i].Kind != pending[start].Kind {
			w.applyRun(ctx, pending[start:i])
			start = i
		}
	}
}

func (w *Writer) applyRun(ctx context.Context, run []Op) {
	var err error

	switch run[0].Kind {
	case OpMessageIncrement:
		err = w.applier.ApplyMessageIncrements(ctx, groupMessageIncrements(run))
	case OpVoiceJoin:
		err = w.applier.ApplyVoiceJoins(ctx, groupVoiceJoins(run))
	case OpVoiceLeave:
		keys, now := groupVoiceLeaves(run)
		err = w.applier.ApplyVoiceLeaves(ctx, keys, now)
	}

	if err != nil {
		w.logger.Error("Failed to flush operation batch, dropping",
			zap.Error(err),
			zap.Int("kind", int(run[0].Kind)),
			zap.Int("ops", len(run)))
	}
}

type opKey struct {
	userID  snowflake.ID
	guildID snowflake.ID
}

func groupMessageIncrements(run []Op) []*types.MessageCount {
	grouped := make(map[opKey]*types.MessageCount, len(run))
	order := make([]opKey, 0, len(run))

	for _, op := range run {
		key := opKey{op.UserID, op.GuildID}

		row, ok := grouped[key]
		if !ok {
			row = &types.MessageCount{
				UserID:  op.UserID,
				GuildID: op.GuildID,
			}
			grouped[key] = row
			order = append(order, key)
		}

		row.Count++
		row.ChannelID = op.ChannelID
		row.LastUpdated = op.At
	}

	rows := make([]*types.MessageCount, 0, len(order))
	for _, key := range order {
		rows = append(rows, grouped[key])
	}

	return rows
}

func groupVoiceJoins(run []Op) []*types.VoiceSession {
	grouped := make(map[opKey]*types.VoiceSession, len(run))
	order := make([]opKey, 0, len(run))

	for _, op := range run {
		key := opKey{op.UserID, op.GuildID}

		row, ok := grouped[key]
		if !ok {
			row = &types.VoiceSession{
				UserID:  op.UserID,
				GuildID: op.GuildID,
			}
			grouped[key] = row
			order = append(order, key)
		}

		joinTime := op.At
		row.JoinTime = &joinTime
		row.LastUpdated = op.At
	}

	rows := make([]*types.VoiceSession, 0, len(order))
	for _, key := range order {
		rows = append(rows, grouped[key])
	}

	return rows
}

func groupVoiceLeaves(run []Op) ([][]snowflake.ID, time.Time) {
	seen := make(map[opKey]struct{}, len(run))
	keys := make([][]snowflake.ID, 0, len(run))

	var latest time.Time

	for _, op := range run {
		key := opKey{op.UserID, op.GuildID}
		if _, ok := seen[key]; !ok {
			seen[key] = struct{}{}
			keys = append(keys, []snowflake.ID{op.UserID, op.GuildID})
		}

		if op.At.After(latest) {
			latest = op.At
		}
	}

	return keys, latest
}
