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

// ErrUserNotCached is returned when a user has no cached name entry.
var ErrUserNotCached = errors.New("user not cached")

// UserCacheModel handles database operations for cached Discord usernames.
type UserCacheModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewUserCache creates a UserCacheModel with database access.
func NewUserCache(db *bun.DB, logger *zap.Logger) *UserCacheModel {
	return &UserCacheModel{
		db:     db,
		logger: logger.Named("db_user_cache"),
	}
}

// Upsert stores or refreshes a cached user entry.
func (r *UserCacheModel) Upsert(ctx context.Context, user *types.CachedUser) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := r.db.NewInsert().Model(user).
			On("CONFLICT (user_id) DO UPDATE").
			Set("username = EXCLUDED.username").
			Set("global_name = EXCLUDED.global_name").
			Set("cached_at = EXCLUDED.cached_at").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to upsert cached user: %w (userID=%d)", err, user.UserID)
		}

		return nil
	})
}

// Get returns the cached entry for a user, or ErrUserNotCached.
func (r *UserCacheModel) Get(ctx context.Context, userID snowflake.ID) (*types.CachedUser, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (*types.CachedUser, error) {
		var user types.CachedUser

		err := r.db.NewSelect().Model(&user).
			Where("user_id = ?", userID).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, ErrUserNotCached
			}

			return nil, fmt.Errorf("failed to get cached user: %w (userID=%d)", err, userID)
		}

		return &user, nil
	})
}

// GetBatch returns cached entries for the given users keyed by user ID.
// Missing users are simply absent from the result.
func (r *UserCacheModel) GetBatch(ctx context.Context, userIDs []snowflake.ID) (map[snowflake.ID]*types.CachedUser, error) {
	if len(userIDs) == 0 {
		return map[snowflake.ID]*types.CachedUser{}, nil
	}

	return dbretry.Operation(ctx, func(ctx context.Context) (map[snowflake.ID]*types.CachedUser, error) {
		var users []*types.CachedUser

		err := r.db.NewSelect().Model(&users).
			Where("user_id IN (?)", bun.In(userIDs)).
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get cached users: %w (count=%d)", err, len(userIDs))
		}

		result := make(map[snowflake.ID]*types.CachedUser, len(users))
		for _, user := range users {
			result[user.UserID] = user
		}

		return result, nil
	})
}

// PurgeOlderThan removes cached entries not refreshed since cutoff and
// returns the number of rows deleted.
func (r *UserCacheModel) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (int64, error) {
		res, err := r.db.NewDelete().Model((*types.CachedUser)(nil)).
			Where("cached_at < ?", cutoff).
			Exec(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed to purge cached users: %w", err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to get purge row count: %w", err)
		}

		return affected, nil
	})
}

// PurgeOlderThanTx removes stale cached entries inside an existing transaction.
func (r *UserCacheModel) PurgeOlderThanTx(ctx context.Context, tx bun.IDB, cutoff time.Time) (int64, error) {
	res, err := tx.NewDelete().Model((*types.CachedUser)(nil)).
		Where("cached_at < ?", cutoff).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to purge cached users: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get purge row count: %w", err)
	}

	return affected, nil
}
