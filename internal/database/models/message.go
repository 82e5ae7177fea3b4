package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/disgoorg/snowflake/v2"
	"github.com/pulsekit/pulseboard/internal/database/dbretry"
	"github.com/pulsekit/pulseboard/internal/database/types"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// MessageModel handles database operations for per-user message counters.
type MessageModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewMessage creates a MessageModel with database access.
func NewMessage(db *bun.DB, logger *zap.Logger) *MessageModel {
	return &MessageModel{
		db:     db,
		logger: logger.Named("db_message"),
	}
}

// ApplyIncrements upserts a batch of pre-aggregated message increments.
// Each row's Count holds the number of messages to add for its key.
func (r *MessageModel) ApplyIncrements(ctx context.Context, rows []*types.MessageCount) error {
	if len(rows) == 0 {
		return nil
	}

	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := r.db.NewInsert().Model(&rows).
			On("CONFLICT (user_id, guild_id) DO UPDATE").
			Set("count = message_count.count + EXCLUDED.count").
			Set("channel_id = EXCLUDED.channel_id").
			Set("last_updated = EXCLUDED.last_updated").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to apply message increments: %w (rows=%d)", err, len(rows))
		}

		return nil
	})
}

// Top returns the highest message counters in descending order.
// A zero guildID aggregates counts across all guilds.
func (r *MessageModel) Top(ctx context.Context, guildID snowflake.ID, limit int) ([]types.Entry, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]types.Entry, error) {
		var entries []types.Entry

		q := r.db.NewSelect().Model((*types.MessageCount)(nil))

		if guildID != 0 {
			q = q.ColumnExpr("user_id").
				ColumnExpr("count AS value").
				Where("guild_id = ?", guildID).
				OrderExpr("count DESC, user_id")
		} else {
			q = q.ColumnExpr("user_id").
				ColumnExpr("SUM(count) AS value").
				GroupExpr("user_id").
				OrderExpr("value DESC, user_id")
		}

		err := q.Limit(limit).Scan(ctx, &entries)
		if err != nil {
			return nil, fmt.Errorf("failed to get message leaderboard: %w (guildID=%d)", err, guildID)
		}

		return entries, nil
	})
}

// UserCount returns the message count for a single user in a guild.
// Users with no tracked messages have a count of zero.
func (r *MessageModel) UserCount(ctx context.Context, userID, guildID snowflake.ID) (int64, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (int64, error) {
		var count int64

		err := r.db.NewSelect().Model((*types.MessageCount)(nil)).
			Column("count").
			Where("user_id = ?", userID).
			Where("guild_id = ?", guildID).
			Scan(ctx, &count)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return 0, nil
			}

			return 0, fmt.Errorf("failed to get message count: %w (userID=%d)", err, userID)
		}

		return count, nil
	})
}

// UserRank returns the 1-based position of a user on the guild message board.
func (r *MessageModel) UserRank(ctx context.Context, userID, guildID snowflake.ID) (int, error) {
	count, err := r.UserCount(ctx, userID, guildID)
	if err != nil {
		return 0, err
	}

	return dbretry.Operation(ctx, func(ctx context.Context) (int, error) {
		ahead, err := r.db.NewSelect().Model((*types.MessageCount)(nil)).
			Where("guild_id = ?", guildID).
			Where("count > ?", count).
			Count(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed to get message rank: %w (userID=%d)", err, userID)
		}

		return ahead + 1, nil
	})
}

// ResetAll deletes every message counter. Used by the periodic reset cycle.
func (r *MessageModel) ResetAll(ctx context.Context, tx bun.IDB) error {
	_, err := tx.NewDelete().Model((*types.MessageCount)(nil)).
		Where("TRUE").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to reset message counts: %w", err)
	}

	return nil
}
