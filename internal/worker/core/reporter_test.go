package core_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/pulsekit/pulseboard/internal/worker/core"
	"github.com/redis/rueidis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTest(t *testing.T) (rueidis.Client, func()) {
	t.Helper()
	// Start miniredis server
	mr, err := miniredis.Run()
	require.NoError(t, err)

	// Create Redis client
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{mr.Addr()},
		DisableCache: true,
	})
	require.NoError(t, err)

	cleanup := func() {
		mr.Close()
		client.Close()
	}

	return client, cleanup
}

func TestMonitorReportAndQuery(t *testing.T) {
	t.Parallel()

	client, cleanup := setupTest(t)
	defer cleanup()

	monitor := core.NewMonitor(client, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, monitor.ReportStatus(ctx, core.Status{
		WorkerID:    "worker-1",
		WorkerType:  "maintenance",
		CurrentTask: "purging user cache",
		IsHealthy:   true,
	}))

	statuses, err := monitor.GetAllStatuses(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, 1)

	status := statuses[0]
	assert.Equal(t, "worker-1", status.WorkerID)
	assert.Equal(t, "maintenance", status.WorkerType)
	assert.Equal(t, "purging user cache", status.CurrentTask)
	assert.True(t, status.IsHealthy)
	assert.WithinDuration(t, time.Now(), status.LastSeen, 5*time.Second)
}

func TestStatusReporterHeartbeat(t *testing.T) {
	t.Parallel()

	client, cleanup := setupTest(t)
	defer cleanup()

	reporter := core.NewStatusReporter(client, "maintenance", zap.NewNop())
	assert.NotEmpty(t, reporter.GetWorkerID())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reporter.Start(ctx)
	reporter.UpdateStatus("running cycle")

	monitor := core.NewMonitor(client, zap.NewNop())

	assert.Eventually(t, func() bool {
		statuses, err := monitor.GetAllStatuses(ctx)
		return err == nil && len(statuses) == 1
	}, 2*time.Second, 50*time.Millisecond)

	reporter.Stop()
	// Stop is idempotent
	reporter.Stop()
}
