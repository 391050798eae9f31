// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package fallback

import (
	"math"
	"math/rand/v2"
	"time"
)

// Policy controls retries of a single operation.
type Policy struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// InitialDelay is the delay before the first retry.
	InitialDelay time.Duration `json:"initial_delay" yaml:"initial_delay"`

	// MaxDelay caps the delay between retries.
	MaxDelay time.Duration `json:"max_delay" yaml:"max_delay"`

	// Multiplier grows the delay after every retry.
	Multiplier float64 `json:"multiplier" yaml:"multiplier"`

	// Jitter randomises each delay by up to ±Jitter of its value, in [0, 1].
	Jitter float64 `json:"jitter" yaml:"jitter"`
}

// DefaultPolicy returns 3 retries starting at 1s, doubling up to 30s, without jitter.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:   3,
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2,
	}
}

// Delay returns the wait before retry number attempt, counting from zero:
// min(InitialDelay * Multiplier^attempt, MaxDelay), then jittered.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 0 || p.InitialDelay <= 0 {
		return 0
	}
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}

	d := float64(p.InitialDelay) * math.Pow(mult, float64(attempt))
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	if j := min(p.Jitter, 1); j > 0 {
		d += d * j * (2*rand.Float64() - 1)
	}
	return time.Duration(d)
}
