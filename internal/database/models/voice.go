package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/pulsekit/pulseboard/internal/database/dbretry"
	"github.com/pulsekit/pulseboard/internal/database/types"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// VoiceModel handles database operations for voice session durations.
type VoiceModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewVoice creates a VoiceModel with database access.
func NewVoice(db *bun.DB, logger *zap.Logger) *VoiceModel {
	return &VoiceModel{
		db:     db,
		logger: logger.Named("db_voice"),
	}
}

// ApplyJoins records session start times for a batch of users.
// Existing accumulated totals are preserved, only join_time moves.
func (r *VoiceModel) ApplyJoins(ctx context.Context, rows []*types.VoiceSession) error {
	if len(rows) == 0 {
		return nil
	}

	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := r.db.NewInsert().Model(&rows).
			On("CONFLICT (user_id, guild_id) DO UPDATE").
			Set("join_time = EXCLUDED.join_time").
			Set("last_updated = EXCLUDED.last_updated").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to apply voice joins: %w (rows=%d)", err, len(rows))
		}

		return nil
	})
}

// ApplyLeaves folds the elapsed time of open sessions into their totals and
// clears join_time. Keys are (userID, guildID) pairs. Rows without an open
// session are left untouched.
func (r *VoiceModel) ApplyLeaves(ctx context.Context, keys [][]snowflake.ID, now time.Time) error {
	if len(keys) == 0 {
		return nil
	}

	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := r.db.NewUpdate().Model((*types.VoiceSession)(nil)).
			Set("total_time = total_time + GREATEST(0, CAST(EXTRACT(EPOCH FROM (?::timestamptz - join_time)) AS bigint))", now).
			Set("join_time = NULL").
			Set("last_updated = ?", now).
			Where("join_time IS NOT NULL").
			Where("(user_id, guild_id) IN (?)", bun.In(keys)).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to apply voice leaves: %w (rows=%d)", err, len(keys))
		}

		return nil
	})
}

// Top returns the longest voice totals in descending order. Open sessions
// count their elapsed time up to now so users currently in a channel are
// ranked fairly. A zero guildID aggregates totals across all guilds.
func (r *VoiceModel) Top(ctx context.Context, guildID snowflake.ID, limit int, now time.Time) ([]types.Entry, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]types.Entry, error) {
		var entries []types.Entry

		liveTotal := "CASE WHEN join_time IS NOT NULL " +
			"THEN total_time + GREATEST(0, CAST(EXTRACT(EPOCH FROM (?::timestamptz - join_time)) AS bigint)) " +
			"ELSE total_time END"

		q := r.db.NewSelect().Model((*types.VoiceSession)(nil))

		if guildID != 0 {
			q = q.ColumnExpr("user_id").
				ColumnExpr(liveTotal+" AS value", now).
				Where("guild_id = ?", guildID)
		} else {
			q = q.ColumnExpr("user_id").
				ColumnExpr("SUM("+liveTotal+") AS value", now).
				GroupExpr("user_id")
		}

		err := q.OrderExpr("value DESC, user_id").Limit(limit).Scan(ctx, &entries)
		if err != nil {
			return nil, fmt.Errorf("failed to get voice leaderboard: %w (guildID=%d)", err, guildID)
		}

		return entries, nil
	})
}

// UserTotal returns the voice total for a single user in a guild, including
// the elapsed time of an open session.
func (r *VoiceModel) UserTotal(ctx context.Context, userID, guildID snowflake.ID, now time.Time) (int64, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (int64, error) {
		var session types.VoiceSession

		err := r.db.NewSelect().Model(&session).
			Where("user_id = ?", userID).
			Where("guild_id = ?", guildID).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return 0, nil
			}

			return 0, fmt.Errorf("failed to get voice total: %w (userID=%d)", err, userID)
		}

		return session.CurrentTotal(now), nil
	})
}

// UserRank returns the 1-based position of a user on the guild voice board.
func (r *VoiceModel) UserRank(ctx context.Context, userID, guildID snowflake.ID, now time.Time) (int, error) {
	total, err := r.UserTotal(ctx, userID, guildID, now)
	if err != nil {
		return 0, err
	}

	return dbretry.Operation(ctx, func(ctx context.Context) (int, error) {
		liveTotal := "CASE WHEN join_time IS NOT NULL " +
			"THEN total_time + GREATEST(0, CAST(EXTRACT(EPOCH FROM (?::timestamptz - join_time)) AS bigint)) " +
			"ELSE total_time END"

		ahead, err := r.db.NewSelect().Model((*types.VoiceSession)(nil)).
			Where("guild_id = ?", guildID).
			Where(liveTotal+" > ?", now, total).
			Count(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed to get voice rank: %w (userID=%d)", err, userID)
		}

		return ahead + 1, nil
	})
}

// ResetAll deletes every voice session. Used by the periodic reset cycle.
func (r *VoiceModel) ResetAll(ctx context.Context, tx bun.IDB) error {
	_, err := tx.NewDelete().Model((*types.VoiceSession)(nil)).
		Where("TRUE").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to reset voice sessions: %w", err)
	}

	return nil
}
