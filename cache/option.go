// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"log/slog"
	"time"
)

type options struct {
	maxSize         int
	ttl             time.Duration
	cleanupInterval time.Duration
	copyValues      bool
	now             func() time.Time
	logger          *slog.Logger
}

func defaultOptions() options {
	return options{
		maxSize: DefaultMaxSize,
		ttl:     DefaultTTL,
		now:     time.Now,
		logger:  slog.Default(),
	}
}

// Option configures a [Cache].
type Option func(*options)

// WithMaxSize sets the maximum number of entries. Non-positive values are ignored.
func WithMaxSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxSize = n
		}
	}
}

// WithTTL sets the default time to live. A non-positive ttl disables expiry.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) {
		o.ttl = ttl
	}
}

// WithCleanupInterval sets how often the janitor started by [Cache.StartJanitor] runs.
func WithCleanupInterval(d time.Duration) Option {
	return func(o *options) {
		o.cleanupInterval = d
	}
}

// WithCopyValues makes the cache store and hand out deep copies of values, so callers can
// mutate what they get back without corrupting the cache.
func WithCopyValues(copyValues bool) Option {
	return func(o *options) {
		o.copyValues = copyValues
	}
}

// WithClock replaces the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithLogger sets the logger used by the janitor.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}
