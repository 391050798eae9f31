// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package fallback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrExhausted is returned when the primary and every fallback failed.
var ErrExhausted = errors.New("all attempts failed")

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not retryable. The fallbacks are still tried.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with [Permanent].
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Func is an operation run by a [Manager].
type Func[T any] func(ctx context.Context) (T, error)

// OpStats counts the outcomes of one named operation.
type OpStats struct {
	Calls         uint64 `json:"calls"`
	Attempts      uint64 `json:"attempts"`
	Successes     uint64 `json:"successes"`
	Failures      uint64 `json:"failures"`
	FallbacksUsed uint64 `json:"fallbacks_used"`
}

// Option configures a [Manager].
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithRetryable sets the classifier deciding whether an error is retried.
// Errors marked [Permanent] and context errors are never retried.
func WithRetryable(fn func(error) bool) Option {
	return func(m *Manager) {
		m.retryable = fn
	}
}

// WithOnFallback registers fn, called whenever a fallback is invoked for an operation.
func WithOnFallback(fn func(operation string, index int)) Option {
	return func(m *Manager) {
		m.onFallback = fn
	}
}

// withSleep replaces the backoff wait, used by tests.
func withSleep(fn func(context.Context, time.Duration) error) Option {
	return func(m *Manager) {
		m.sleep = fn
	}
}

// Manager runs operations under a retry [Policy] and tracks per-operation statistics.
type Manager struct {
	policy     Policy
	logger     *slog.Logger
	retryable  func(error) bool
	onFallback func(string, int)
	sleep      func(context.Context, time.Duration) error

	mu    sync.Mutex
	stats map[string]*OpStats
}

// NewManager returns a [Manager] applying policy.
func NewManager(policy Policy, opts ...Option) *Manager {
	m := &Manager{
		policy:    policy,
		logger:    slog.Default(),
		retryable: func(error) bool { return true },
		sleep:     sleepContext,
		stats:     make(map[string]*OpStats),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Policy returns the retry policy.
func (m *Manager) Policy() Policy {
	return m.policy
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (m *Manager) update(name string, fn func(*OpStats)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stats[name]
	if !ok {
		s = new(OpStats)
		m.stats[name] = s
	}
	fn(s)
}

// Stats returns a snapshot of the statistics of every operation.
func (m *Manager) Stats() map[string]OpStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]OpStats, len(m.stats))
	for k, v := range m.stats {
		out[k] = *v
	}
	return out
}

// ResetStats clears all statistics.
func (m *Manager) ResetStats() {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.stats)
}

func (m *Manager) shouldRetry(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if IsPermanent(err) {
		return false
	}
	return m.retryable(err)
}

// Do runs fn under m's policy. When fn keeps failing each fallback is tried once, in order.
// On total failure the error wraps [ErrExhausted] and the last error.
func Do[T any](ctx context.Context, m *Manager, name string, fn Func[T], fallbacks ...Func[T]) (T, error) {
	var zero T
	m.update(name, func(s *OpStats) { s.Calls++ })

	v, err := retry(ctx, m, name, fn)
	if err == nil {
		m.update(name, func(s *OpStats) { s.Successes++ })
		return v, nil
	}
	lastErr := err

	for i, fb := range fallbacks {
		if ctx.Err() != nil {
			break
		}
		m.logger.WarnContext(ctx, "falling back",
			slog.String("operation", name),
			slog.Int("fallback", i+1),
			slog.String("error", lastErr.Error()),
		)
		m.update(name, func(s *OpStats) {
			s.Attempts++
			s.FallbacksUsed++
		})
		if m.onFallback != nil {
			m.onFallback(name, i)
		}

		v, err := fb(ctx)
		if err == nil {
			m.update(name, func(s *OpStats) { s.Successes++ })
			return v, nil
		}
		lastErr = err
	}

	m.update(name, func(s *OpStats) { s.Failures++ })
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(lastErr, ctxErr) {
		lastErr = errors.Join(lastErr, ctxErr)
	}
	return zero, fmt.Errorf("%s: %w: %w", name, ErrExhausted, lastErr)
}

func retry[T any](ctx context.Context, m *Manager, name string, fn Func[T]) (T, error) {
	var (
		zero    T
		lastErr error
	)
	for attempt := 0; attempt <= m.policy.MaxRetries; attempt++ {
		if attempt > 0 {
			d := m.policy.Delay(attempt - 1)
			m.logger.DebugContext(ctx, "retrying operation",
				slog.String("operation", name),
				slog.Int("attempt", attempt+1),
				slog.Duration("delay", d),
				slog.String("error", lastErr.Error()),
			)
			if err := m.sleep(ctx, d); err != nil {
				return zero, errors.Join(lastErr, err)
			}
		}

		m.update(name, func(s *OpStats) { s.Attempts++ })
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err
		if !m.shouldRetry(ctx, err) {
			break
		}
	}
	return zero, lastErr
}
