// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrMonitorRunning is returned by [Monitor.Start] when the monitor is already running.
var ErrMonitorRunning = errors.New("monitor already running")

const (
	defaultSampleInterval = 100 * time.Millisecond
	defaultHistorySize    = 100
)

// MonitorOption configures a [Monitor].
type MonitorOption func(*Monitor)

// WithInterval sets the polling interval.
func WithInterval(d time.Duration) MonitorOption {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithHistorySize bounds the number of retained samples.
func WithHistorySize(n int) MonitorOption {
	return func(m *Monitor) {
		if n > 0 {
			m.historySize = n
		}
	}
}

// WithOnViolation registers fn to be called once when a limit is exceeded.
func WithOnViolation(fn func(*LimitError)) MonitorOption {
	return func(m *Monitor) {
		m.onViolation = fn
	}
}

// WithTerminate makes the monitor stop the watched work on violation when the sampler
// implements [Terminator].
func WithTerminate(terminate bool) MonitorOption {
	return func(m *Monitor) {
		m.terminate = terminate
	}
}

// WithMonitorLogger sets the logger.
func WithMonitorLogger(logger *slog.Logger) MonitorOption {
	return func(m *Monitor) {
		m.logger = logger
	}
}

// Monitor polls a [Sampler] and enforces [Limits].
type Monitor struct {
	sampler     Sampler
	limits      Limits
	interval    time.Duration
	historySize int
	onViolation func(*LimitError)
	terminate   bool
	logger      *slog.Logger

	mu        sync.Mutex
	running   bool
	started   time.Time
	current   Usage
	peak      Usage
	history   []Usage
	next      int
	violation *LimitError
	cancel    context.CancelCauseFunc
	done      chan struct{}
}

// NewMonitor returns a stopped [Monitor].
func NewMonitor(sampler Sampler, limits Limits, opts ...MonitorOption) *Monitor {
	m := &Monitor{
		sampler:     sampler,
		limits:      limits,
		interval:    defaultSampleInterval,
		historySize: defaultHistorySize,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start launches the polling goroutine.
//
// The returned context is derived from ctx and is cancelled with a [*LimitError] cause, see
// [context.Cause], as soon as a limit is exceeded.
func (m *Monitor) Start(ctx context.Context) (context.Context, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil, ErrMonitorRunning
	}

	wctx, cancel := context.WithCancelCause(ctx)
	m.running = true
	m.started = time.Now()
	m.current = Usage{}
	m.peak = Usage{}
	m.history = make([]Usage, 0, m.historySize)
	m.next = 0
	m.violation = nil
	m.cancel = cancel
	m.done = make(chan struct{})

	go m.run(wctx, m.done)

	return wctx, nil
}

func (m *Monitor) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		u, err := m.sampler.Sample(ctx)
		if err != nil {
			if ctx.Err() == nil {
				m.logger.DebugContext(ctx, "resource sample failed", slog.String("error", err.Error()))
			}
			continue
		}
		if u.Elapsed == 0 {
			u.Elapsed = time.Since(m.started)
		}

		if lerr := m.record(u); lerr != nil {
			m.logger.WarnContext(ctx, "resource limit exceeded",
				slog.String("resource", lerr.Resource),
				slog.Float64("observed", lerr.Observed),
				slog.Float64("limit", lerr.Limit),
			)
			if m.onViolation != nil {
				m.onViolation(lerr)
			}
			if t, ok := m.sampler.(Terminator); ok && m.terminate {
				if err := t.Terminate(context.WithoutCancel(ctx)); err != nil {
					m.logger.ErrorContext(ctx, "failed to terminate watched process", slog.String("error", err.Error()))
				}
			}
			m.mu.Lock()
			cancel := m.cancel
			m.mu.Unlock()
			cancel(lerr)
			return
		}
	}
}

func (m *Monitor) record(u Usage) *LimitError {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.current = u
	m.peak = m.peak.peakWith(u)
	if len(m.history) < m.historySize {
		m.history = append(m.history, u)
	} else {
		m.history[m.next] = u
	}
	m.next = (m.next + 1) % m.historySize

	var lerr *LimitError
	if errors.As(m.limits.Check(u), &lerr) {
		m.violation = lerr
		return lerr
	}
	return nil
}

// Stop stops polling, waits for the goroutine to exit and returns the peak usage.
// Stop is a no-op on a stopped monitor.
func (m *Monitor) Stop() Usage {
	m.mu.Lock()
	if !m.running {
		peak := m.peak
		m.mu.Unlock()
		return peak
	}
	m.running = false
	cancel, done := m.cancel, m.done
	m.mu.Unlock()

	cancel(nil)
	<-done

	return m.Peak()
}

// Current returns the latest sample.
func (m *Monitor) Current() Usage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Peak returns the field-wise maximum over all samples.
func (m *Monitor) Peak() Usage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.peak
}

// History returns the retained samples, oldest first.
func (m *Monitor) History() []Usage {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.history) < m.historySize {
		return append([]Usage(nil), m.history...)
	}
	out := make([]Usage, 0, len(m.history))
	out = append(out, m.history[m.next:]...)
	return append(out, m.history[:m.next]...)
}

// Violation returns the limit error that stopped the monitor, if any.
func (m *Monitor) Violation() *LimitError {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.violation
}
