package metrics_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pulsekit/pulseboard/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHealthCheckerAllHealthy(t *testing.T) {
	t.Parallel()

	checker := metrics.NewHealthChecker(time.Second, zap.NewNop())
	checker.Register("database", true, func(context.Context) error { return nil })
	checker.Register("redis", false, func(context.Context) error { return nil })

	report := checker.Run(context.Background())

	assert.Equal(t, metrics.StatusHealthy, report.Status)
	require.Len(t, report.Checks, 2)
	assert.True(t, report.Checks[0].Healthy)
	assert.True(t, report.Checks[1].Healthy)
}

func TestHealthCheckerDegraded(t *testing.T) {
	t.Parallel()

	checker := metrics.NewHealthChecker(time.Second, zap.NewNop())
	checker.Register("database", true, func(context.Context) error { return nil })
	checker.Register("redis", false, func(context.Context) error {
		return errors.New("connection refused")
	})

	report := checker.Run(context.Background())

	assert.Equal(t, metrics.StatusDegraded, report.Status)
	assert.Equal(t, "connection refused", report.Checks[1].Error)
}

func TestHealthCheckerUnhealthy(t *testing.T) {
	t.Parallel()

	checker := metrics.NewHealthChecker(time.Second, zap.NewNop())
	checker.Register("database", true, func(context.Context) error {
		return errors.New("no reachable servers")
	})
	checker.Register("redis", false, func(context.Context) error {
		return errors.New("connection refused")
	})

	report := checker.Run(context.Background())

	assert.Equal(t, metrics.StatusUnhealthy, report.Status)
}

func TestHealthCheckerTimeout(t *testing.T) {
	t.Parallel()

	checker := metrics.NewHealthChecker(50*time.Millisecond, zap.NewNop())
	checker.Register("slow", true, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	report := checker.Run(context.Background())

	assert.Equal(t, metrics.StatusUnhealthy, report.Status)
	assert.False(t, report.Checks[0].Healthy)
}
