package metrics

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Overall health states reported by the checker.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// CheckFunc probes a single dependency.
type CheckFunc func(ctx context.Context) error

// CheckResult holds the outcome of one registered check.
type CheckResult struct {
	Name    string        `json:"name"`
	Healthy bool          `json:"healthy"`
	Latency time.Duration `json:"latency"`
	Error   string        `json:"error,omitempty"`
}

// Report summarizes a full health check run.
type Report struct {
	Status    string        `json:"status"`
	Checks    []CheckResult `json:"checks"`
	CheckedAt time.Time     `json:"checkedAt"`
}

type namedCheck struct {
	name     string
	critical bool
	fn       CheckFunc
}

// HealthChecker runs registered dependency checks and classifies the
// overall state. A failing critical check makes the system unhealthy, a
// failing non-critical check only degrades it.
type HealthChecker struct {
	mu      sync.RWMutex
	checks  []namedCheck
	timeout time.Duration
	logger  *zap.Logger
}

// NewHealthChecker creates a HealthChecker with a per-check timeout.
func NewHealthChecker(timeout time.Duration, logger *zap.Logger) *HealthChecker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &HealthChecker{
		timeout: timeout,
		logger:  logger.Named("health"),
	}
}

// Register adds a named dependency check.
func (h *HealthChecker) Register(name string, critical bool, fn CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.checks = append(h.checks, namedCheck{name: name, critical: critical, fn: fn})
}

// Run executes all registered checks and returns the combined report.
func (h *HealthChecker) Run(ctx context.Context) *Report {
	h.mu.RLock()
	checks := make([]namedCheck, len(h.checks))
	copy(checks, h.checks)
	h.mu.RUnlock()

	report := &Report{
		Status:    StatusHealthy,
		Checks:    make([]CheckResult, 0, len(checks)),
		CheckedAt: time.Now().UTC(),
	}

	for _, check := range checks {
		result := h.runCheck(ctx, check)
		report.Checks = append(report.Checks, result)

		if result.Healthy {
			continue
		}

		if check.critical {
			report.Status = StatusUnhealthy
		} else if report.Status == StatusHealthy {
			report.Status = StatusDegraded
		}
	}

	return report
}

func (h *HealthChecker) runCheck(ctx context.Context, check namedCheck) CheckResult {
	checkCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	start := time.Now()
	err := check.fn(checkCtx)
	latency := time.Since(start)

	result := CheckResult{
		Name:    check.name,
		Healthy: err == nil,
		Latency: latency,
	}

	if err != nil {
		result.Error = err.Error()
		h.logger.Warn("Health check failed",
			zap.String("check", check.name),
			zap.Duration("latency", latency),
			zap.Error(err))
	}

	return result
}
