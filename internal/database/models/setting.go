package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pulsekit/pulseboard/internal/database/dbretry"
	"github.com/pulsekit/pulseboard/internal/database/types"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// SettingModel handles database operations for persisted key/value settings.
type SettingModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewSetting creates a SettingModel with database access.
func NewSetting(db *bun.DB, logger *zap.Logger) *SettingModel {
	return &SettingModel{
		db:     db,
		logger: logger.Named("db_setting"),
	}
}

// Get returns the value stored under key, or an empty string when the key
// has never been set.
func (r *SettingModel) Get(ctx context.Context, key string) (string, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (string, error) {
		var setting types.Setting

		err := r.db.NewSelect().Model(&setting).
			Where("key = ?", key).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return "", nil
			}

			return "", fmt.Errorf("failed to get setting: %w (key=%s)", err, key)
		}

		return setting.Value, nil
	})
}

// Set stores a value under key, replacing any previous value.
func (r *SettingModel) Set(ctx context.Context, key, value string) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		setting := &types.Setting{
			Key:       key,
			Value:     value,
			UpdatedAt: time.Now(),
		}

		_, err := r.db.NewInsert().Model(setting).
			On("CONFLICT (key) DO UPDATE").
			Set("value = EXCLUDED.value").
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to set setting: %w (key=%s)", err, key)
		}

		return nil
	})
}

// SetTx stores a value under key inside an existing transaction.
func (r *SettingModel) SetTx(ctx context.Context, tx bun.IDB, key, value string) error {
	setting := &types.Setting{
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now(),
	}

	_, err := tx.NewInsert().Model(setting).
		On("CONFLICT (key) DO UPDATE").
		Set("value = EXCLUDED.value").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to set setting: %w (key=%s)", err, key)
	}

	return nil
}

// Delete removes a key. Deleting a missing key is not an error.
func (r *SettingModel) Delete(ctx context.Context, key string) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := r.db.NewDelete().Model((*types.Setting)(nil)).
			Where("key = ?", key).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to delete setting: %w (key=%s)", err, key)
		}

		return nil
	})
}
