package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pulsekit/pulseboard/internal/database/models"
	"github.com/pulsekit/pulseboard/internal/database/types"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// ActivityService handles the periodic wipe of activity counters.
type ActivityService struct {
	db        *bun.DB
	message   *models.MessageModel
	voice     *models.VoiceModel
	setting   *models.SettingModel
	userCache *models.UserCacheModel
	logger    *zap.Logger
}

// NewActivity creates an ActivityService with database access.
func NewActivity(db *bun.DB, logger *zap.Logger) *ActivityService {
	return &ActivityService{
		db:        db,
		message:   models.NewMessage(db, logger),
		voice:     models.NewVoice(db, logger),
		setting:   models.NewSetting(db, logger),
		userCache: models.NewUserCache(db, logger),
		logger:    logger.Named("activity_service"),
	}
}

// ShouldReset reports whether the current tracking cycle is older than
// refreshDays. A missing last reset marker is initialized to now so a fresh
// deployment starts a full cycle instead of wiping immediately.
func (s *ActivityService) ShouldReset(ctx context.Context, refreshDays int, now time.Time) (bool, error) {
	value, err := s.setting.Get(ctx, types.LastResetKey)
	if err != nil {
		return false, fmt.Errorf("failed to get last reset time: %w", err)
	}

	if value == "" {
		if err := s.setting.Set(ctx, types.LastResetKey, now.UTC().Format(time.RFC3339)); err != nil {
			return false, fmt.Errorf("failed to initialize last reset time: %w", err)
		}

		return false, nil
	}

	lastReset, err := time.Parse(time.RFC3339, value)
	if err != nil {
		s.logger.Warn("Unparsable last reset time, reinitializing", zap.String("value", value))

		if err := s.setting.Set(ctx, types.LastResetKey, now.UTC().Format(time.RFC3339)); err != nil {
			return false, fmt.Errorf("failed to reinitialize last reset time: %w", err)
		}

		return false, nil
	}

	return now.Sub(lastReset) >= time.Duration(refreshDays)*24*time.Hour, nil
}

// ResetCycle wipes all message and voice counters, trims stale cached
// usernames, and records the start of the new cycle. Everything happens in
// one transaction so a failure leaves the previous cycle intact.
func (s *ActivityService) ResetCycle(ctx context.Context, userCacheRetention time.Duration, now time.Time) error {
	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if err := s.message.ResetAll(ctx, tx); err != nil {
			return err
		}

		if err := s.voice.ResetAll(ctx, tx); err != nil {
			return err
		}

		purged, err := s.userCache.PurgeOlderThanTx(ctx, tx, now.Add(-userCacheRetention))
		if err != nil {
			return err
		}

		s.logger.Debug("Trimmed user cache during reset", zap.Int64("purged", purged))

		return s.setting.SetTx(ctx, tx, types.LastResetKey, now.UTC().Format(time.RFC3339))
	})
	if err != nil {
		return fmt.Errorf("failed to reset activity cycle: %w", err)
	}

	s.logger.Info("Activity cycle reset", zap.Time("newCycleStart", now))

	return nil
}
