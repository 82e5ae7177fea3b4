package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		indexes := []string{
			"CREATE INDEX IF NOT EXISTS idx_message_counts_guild_count ON message_counts (guild_id, count DESC)",
			"CREATE INDEX IF NOT EXISTS idx_voice_sessions_guild_total ON voice_sessions (guild_id, total_time DESC)",
			"CREATE INDEX IF NOT EXISTS idx_voice_sessions_join_time ON voice_sessions (join_time) WHERE join_time IS NOT NULL",
			"CREATE INDEX IF NOT EXISTS idx_cached_users_cached_at ON cached_users (cached_at)",
		}

		for _, index := range indexes {
			_, err := db.NewRaw(index).Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to create index: %w", err)
			}
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		indexes := []string{
			"DROP INDEX IF EXISTS idx_message_counts_guild_count",
			"DROP INDEX IF EXISTS idx_voice_sessions_guild_total",
			"DROP INDEX IF EXISTS idx_voice_sessions_join_time",
			"DROP INDEX IF EXISTS idx_cached_users_cached_at",
		}

		for _, index := range indexes {
			_, err := db.NewRaw(index).Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to drop index: %w", err)
			}
		}

		return nil
	})
}
