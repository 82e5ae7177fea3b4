// Package maintenance implements the background upkeep worker. It trims
// stale cached usernames and runs the periodic counter reset when the bot
// is offline for long stretches.
package maintenance

import (
	"context"
	"time"

	"github.com/pulsekit/pulseboard/internal/database"
	"github.com/pulsekit/pulseboard/internal/setup/config"
	"github.com/pulsekit/pulseboard/internal/worker/core"
	"go.uber.org/zap"
)

// Worker runs periodic maintenance against the database.
type Worker struct {
	db       database.Client
	reporter *core.StatusReporter
	config   *config.Config
	logger   *zap.Logger
}

// New creates a maintenance worker.
func New(db database.Client, reporter *core.StatusReporter, cfg *config.Config, logger *zap.Logger) *Worker {
	return &Worker{
		db:       db,
		reporter: reporter,
		config:   cfg,
		logger:   logger.Named("maintenance"),
	}
}

// Start begins the maintenance loop. It runs one cycle immediately and
// then once per configured interval until the context is canceled.
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("Maintenance worker started", zap.String("workerID", w.reporter.GetWorkerID()))
	w.reporter.Start(ctx)
	defer w.reporter.Stop()

	interval := time.Duration(w.config.Worker.MaintenanceInterval) * time.Second
	if interval <= 0 {
		interval = time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		w.runCycle(ctx)

		select {
		case <-ctx.Done():
			w.logger.Info("Maintenance worker stopped")
			return
		case <-ticker.C:
		}
	}
}

// runCycle executes a single maintenance pass.
func (w *Worker) runCycle(ctx context.Context) {
	w.reporter.SetHealthy(true)
	now := time.Now()

	// Step 1: Purge stale cached usernames
	w.reporter.UpdateStatus("Purging stale cached users")

	retention := time.Duration(w.config.Worker.UserCacheRetentionDays) * 24 * time.Hour
	if retention <= 0 {
		retention = 7 * 24 * time.Hour
	}

	purged, err := w.db.Model().UserCache().PurgeOlderThan(ctx, now.Add(-retention))
	if err != nil {
		w.logger.Error("Failed to purge cached users", zap.Error(err))
		w.reporter.SetHealthy(false)
	} else if purged > 0 {
		w.logger.Info("Purged stale cached users", zap.Int64("purged", purged))
	}

	// Step 2: Run the cycle reset if it is overdue
	w.reporter.UpdateStatus("Checking reset schedule")

	due, err := w.db.Service().Activity().ShouldReset(ctx, w.config.Bot.Leaderboard.RefreshDays, now)
	if err != nil {
		w.logger.Error("Failed to check reset schedule", zap.Error(err))
		w.reporter.SetHealthy(false)

		return
	}

	if due {
		w.reporter.UpdateStatus("Resetting activity cycle")

		if err := w.db.Service().Activity().ResetCycle(ctx, retention, now); err != nil {
			w.logger.Error("Failed to reset activity cycle", zap.Error(err))
			w.reporter.SetHealthy(false)

			return
		}
	}

	w.reporter.UpdateStatus("Idle")
}
