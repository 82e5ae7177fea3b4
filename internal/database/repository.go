package database

import (
	"context"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/pulsekit/pulseboard/internal/database/models"
	"github.com/pulsekit/pulseboard/internal/database/types"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// Repository provides access to all database models.
type Repository struct {
	message   *models.MessageModel
	voice     *models.VoiceModel
	setting   *models.SettingModel
	userCache *models.UserCacheModel
}

// NewRepository creates a new repository instance with all models.
func NewRepository(db *bun.DB, logger *zap.Logger) *Repository {
	return &Repository{
		message:   models.NewMessage(db, logger),
		voice:     models.NewVoice(db, logger),
		setting:   models.NewSetting(db, logger),
		userCache: models.NewUserCache(db, logger),
	}
}

// Message returns the message count model repository.
func (r *Repository) Message() *models.MessageModel {
	return r.message
}

// Voice returns the voice session model repository.
func (r *Repository) Voice() *models.VoiceModel {
	return r.voice
}

// Setting returns the setting model repository.
func (r *Repository) Setting() *models.SettingModel {
	return r.setting
}

// UserCache returns the cached user model repository.
func (r *Repository) UserCache() *models.UserCacheModel {
	return r.userCache
}

// ApplyMessageIncrements satisfies batch.Applier.
func (r *Repository) ApplyMessageIncrements(ctx context.Context, rows []*types.MessageCount) error {
	return r.message.ApplyIncrements(ctx, rows)
}

// ApplyVoiceJoins satisfies batch.Applier.
func (r *Repository) ApplyVoiceJoins(ctx context.Context, rows []*types.VoiceSession) error {
	return r.voice.ApplyJoins(ctx, rows)
}

// ApplyVoiceLeaves satisfies batch.Applier.
func (r *Repository) ApplyVoiceLeaves(ctx context.Context, keys [][]snowflake.ID, now time.Time) error {
	return r.voice.ApplyLeaves(ctx, keys, now)
}
