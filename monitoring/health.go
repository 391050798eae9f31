// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package monitoring

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Health statuses, from best to worst.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// CheckFunc probes one dependency. A nil error means healthy.
type CheckFunc func(ctx context.Context) error

// CheckResult is the outcome of one check.
type CheckResult struct {
	Status   string        `json:"status"`
	Critical bool          `json:"critical"`
	Error    string        `json:"error,omitempty"`
	Latency  time.Duration `json:"latency_ns"`
}

// Report aggregates every check. A failing critical check makes the report unhealthy, any
// other failure makes it degraded.
type Report struct {
	Status    string                 `json:"status"`
	Checks    map[string]CheckResult `json:"checks"`
	Timestamp time.Time              `json:"timestamp"`
}

// Healthy reports whether the aggregate status is not unhealthy.
func (r *Report) Healthy() bool {
	return r.Status != StatusUnhealthy
}

type check struct {
	fn       CheckFunc
	critical bool
}

// HealthChecker runs named checks concurrently, each bounded by a timeout.
type HealthChecker struct {
	mu      sync.RWMutex
	checks  map[string]check
	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

// NewHealthChecker returns a HealthChecker. A non-positive timeout defaults to five seconds.
func NewHealthChecker(timeout time.Duration, logger *slog.Logger) *HealthChecker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthChecker{
		checks:  make(map[string]check),
		timeout: timeout,
		logger:  logger,
		now:     time.Now,
	}
}

// Register adds or replaces a check. Critical checks turn the report unhealthy when they fail.
func (h *HealthChecker) Register(name string, critical bool, fn CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check{fn: fn, critical: critical}
}

// Names returns the registered check names, sorted.
func (h *HealthChecker) Names() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return slices.Sorted(maps.Keys(h.checks))
}

// Run executes every check and aggregates the results.
func (h *HealthChecker) Run(ctx context.Context) *Report {
	h.mu.RLock()
	checks := maps.Clone(h.checks)
	h.mu.RUnlock()

	var mu sync.Mutex
	results := make(map[string]CheckResult, len(checks))
	var g errgroup.Group
	for name, c := range checks {
		g.Go(func() error {
			res := h.runOne(ctx, c)
			mu.Lock()
			results[name] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	report := &Report{Status: StatusHealthy, Checks: results, Timestamp: h.now().UTC()}
	for name, res := range results {
		if res.Status == StatusHealthy {
			continue
		}
		h.logger.WarnContext(ctx, "health check failed",
			slog.String("check", name),
			slog.Bool("critical", res.Critical),
			slog.String("error", res.Error),
		)
		if res.Critical {
			report.Status = StatusUnhealthy
		} else if report.Status == StatusHealthy {
			report.Status = StatusDegraded
		}
	}
	return report
}

func (h *HealthChecker) runOne(ctx context.Context, c check) (res CheckResult) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	start := h.now()
	defer func() {
		res.Latency = h.now().Sub(start)
	}()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("check panicked: %v", r)
			}
		}()
		done <- c.fn(ctx)
	}()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = fmt.Errorf("check timed out after %s", h.timeout)
	}
	if err != nil {
		return CheckResult{Status: StatusUnhealthy, Critical: c.critical, Error: err.Error()}
	}
	return CheckResult{Status: StatusHealthy, Critical: c.critical}
}
