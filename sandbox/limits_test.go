// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"errors"
	"testing"
	"time"
)

func TestLimitsCheck(t *testing.T) {
	limits := DefaultLimits()

	tests := []struct {
		name     string
		usage    Usage
		resource string
	}{
		{name: "within limits", usage: Usage{MemoryBytes: 1 << 20, CPUPercent: 10, Processes: 1, OpenFiles: 5, Elapsed: time.Second}},
		{name: "memory", usage: Usage{MemoryBytes: 600 << 20}, resource: ResourceMemory},
		{name: "cpu", usage: Usage{CPUPercent: 95}, resource: ResourceCPU},
		{name: "processes", usage: Usage{Processes: 11}, resource: ResourceProcesses},
		{name: "open files", usage: Usage{OpenFiles: 101}, resource: ResourceOpenFiles},
		{name: "duration", usage: Usage{Elapsed: time.Minute}, resource: ResourceDuration},
		{name: "memory reported before cpu", usage: Usage{MemoryBytes: 1 << 30, CPUPercent: 100}, resource: ResourceMemory},
		{name: "at the limit is allowed", usage: Usage{MemoryBytes: 512 << 20, CPUPercent: 80}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := limits.Check(tt.usage)
			if tt.resource == "" {
				if err != nil {
					t.Fatalf("Check() = %v, want nil", err)
				}
				return
			}
			var lerr *LimitError
			if !errors.As(err, &lerr) {
				t.Fatalf("Check() = %v, want *LimitError", err)
			}
			if lerr.Resource != tt.resource {
				t.Errorf("Resource = %q, want %q", lerr.Resource, tt.resource)
			}
			if !errors.Is(err, ErrLimitExceeded) {
				t.Error("LimitError does not match ErrLimitExceeded")
			}
		})
	}
}

func TestLimitsZeroDisables(t *testing.T) {
	var limits Limits
	if err := limits.Check(Usage{MemoryBytes: 1 << 40, CPUPercent: 400, Processes: 1000, Elapsed: time.Hour}); err != nil {
		t.Errorf("Check() with zero limits = %v, want nil", err)
	}
}

func TestUsagePeakWith(t *testing.T) {
	a := Usage{CPUPercent: 50, MemoryBytes: 100, Processes: 3}
	b := Usage{CPUPercent: 20, MemoryBytes: 300, Processes: 1, OpenFiles: 7}
	got := a.peakWith(b)
	if got.CPUPercent != 50 || got.MemoryBytes != 300 || got.Processes != 3 || got.OpenFiles != 7 {
		t.Errorf("peakWith() = %+v", got)
	}
}
