// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// scriptedSampler returns the scripted samples in order, repeating the last one.
type scriptedSampler struct {
	mu         sync.Mutex
	samples    []Usage
	i          int
	terminated atomic.Bool
}

func (s *scriptedSampler) Sample(context.Context) (Usage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.samples[min(s.i, len(s.samples)-1)]
	s.i++
	return u, nil
}

func (s *scriptedSampler) Terminate(context.Context) error {
	s.terminated.Store(true)
	return nil
}

func TestMonitorViolationCancelsContext(t *testing.T) {
	sampler := &scriptedSampler{samples: []Usage{
		{MemoryBytes: 10, Elapsed: time.Millisecond},
		{MemoryBytes: 20, Elapsed: 2 * time.Millisecond},
		{MemoryBytes: 1000, Elapsed: 3 * time.Millisecond},
	}}
	var violations atomic.Int32
	mon := NewMonitor(sampler, Limits{MaxMemoryBytes: 100},
		WithInterval(time.Millisecond),
		WithTerminate(true),
		WithOnViolation(func(*LimitError) { violations.Add(1) }),
	)

	ctx, err := mon.Start(t.Context())
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("context was not cancelled on violation")
	}

	var lerr *LimitError
	if !errors.As(context.Cause(ctx), &lerr) || lerr.Resource != ResourceMemory {
		t.Fatalf("context.Cause() = %v, want memory LimitError", context.Cause(ctx))
	}

	peak := mon.Stop()
	if peak.MemoryBytes != 1000 {
		t.Errorf("peak MemoryBytes = %d, want 1000", peak.MemoryBytes)
	}
	if got := violations.Load(); got != 1 {
		t.Errorf("OnViolation called %d times, want 1", got)
	}
	if !sampler.terminated.Load() {
		t.Error("sampler was not terminated")
	}
	if mon.Violation() == nil {
		t.Error("Violation() = nil")
	}
}

func TestMonitorStopWithoutViolation(t *testing.T) {
	sampler := &scriptedSampler{samples: []Usage{{CPUPercent: 5, Elapsed: time.Millisecond}}}
	mon := NewMonitor(sampler, DefaultLimits(), WithInterval(time.Millisecond))

	ctx, err := mon.Start(t.Context())
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if _, err := mon.Start(t.Context()); !errors.Is(err, ErrMonitorRunning) {
		t.Errorf("second Start() error = %v, want ErrMonitorRunning", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for len(mon.History()) < 3 {
		if time.Now().After(deadline) {
			t.Fatal("monitor did not record samples")
		}
		time.Sleep(time.Millisecond)
	}

	mon.Stop()
	if !errors.Is(context.Cause(ctx), context.Canceled) {
		t.Errorf("context.Cause() = %v, want context.Canceled", context.Cause(ctx))
	}
	if mon.Violation() != nil {
		t.Errorf("Violation() = %v, want nil", mon.Violation())
	}
	if got := mon.Current().CPUPercent; got != 5 {
		t.Errorf("Current().CPUPercent = %v, want 5", got)
	}

	// stopping twice is harmless
	mon.Stop()
}

func TestMonitorHistoryBounded(t *testing.T) {
	mon := NewMonitor(&scriptedSampler{samples: []Usage{{}}}, Limits{}, WithHistorySize(3))

	for i := range 5 {
		mon.record(Usage{Processes: i})
	}
	h := mon.History()
	if len(h) != 3 {
		t.Fatalf("len(History()) = %d, want 3", len(h))
	}
	for i, u := range h {
		if u.Processes != i+2 {
			t.Errorf("History()[%d].Processes = %d, want %d", i, u.Processes, i+2)
		}
	}
}
