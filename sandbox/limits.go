// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"errors"
	"fmt"
	"time"
)

// ErrLimitExceeded is matched by every [*LimitError].
var ErrLimitExceeded = errors.New("resource limit exceeded")

// Resource names reported by [LimitError].
const (
	ResourceMemory    = "memory"
	ResourceCPU       = "cpu"
	ResourceProcesses = "processes"
	ResourceOpenFiles = "open_files"
	ResourceDuration  = "duration"
)

// Limits are the resource ceilings of one execution. Zero values disable a limit.
type Limits struct {
	MaxMemoryBytes uint64        `json:"max_memory_bytes"`
	MaxCPUPercent  float64       `json:"max_cpu_percent"`
	MaxProcesses   int           `json:"max_processes"`
	MaxOpenFiles   int           `json:"max_open_files"`
	MaxDuration    time.Duration `json:"max_duration"`
}

// DefaultLimits returns 512MiB of memory, 80% CPU, 10 processes, 100 open files and 30 seconds.
func DefaultLimits() Limits {
	return Limits{
		MaxMemoryBytes: 512 << 20,
		MaxCPUPercent:  80,
		MaxProcesses:   10,
		MaxOpenFiles:   100,
		MaxDuration:    30 * time.Second,
	}
}

// Usage is a single resource sample.
type Usage struct {
	CPUPercent     float64       `json:"cpu_percent"`
	MemoryBytes    uint64        `json:"memory_bytes"`
	DiskReadBytes  uint64        `json:"disk_read_bytes"`
	DiskWriteBytes uint64        `json:"disk_write_bytes"`
	NetBytesSent   uint64        `json:"net_bytes_sent"`
	NetBytesRecv   uint64        `json:"net_bytes_recv"`
	Processes      int           `json:"processes"`
	OpenFiles      int           `json:"open_files"`
	Elapsed        time.Duration `json:"elapsed"`
	Timestamp      time.Time     `json:"timestamp"`
}

// peakWith returns the field-wise maximum of u and o, keeping o's timestamp.
func (u Usage) peakWith(o Usage) Usage {
	return Usage{
		CPUPercent:     max(u.CPUPercent, o.CPUPercent),
		MemoryBytes:    max(u.MemoryBytes, o.MemoryBytes),
		DiskReadBytes:  max(u.DiskReadBytes, o.DiskReadBytes),
		DiskWriteBytes: max(u.DiskWriteBytes, o.DiskWriteBytes),
		NetBytesSent:   max(u.NetBytesSent, o.NetBytesSent),
		NetBytesRecv:   max(u.NetBytesRecv, o.NetBytesRecv),
		Processes:      max(u.Processes, o.Processes),
		OpenFiles:      max(u.OpenFiles, o.OpenFiles),
		Elapsed:        max(u.Elapsed, o.Elapsed),
		Timestamp:      o.Timestamp,
	}
}

// LimitError reports which ceiling was exceeded.
type LimitError struct {
	Resource string
	Observed float64
	Limit    float64
}

// Error implements [error].
func (e *LimitError) Error() string {
	if e.Resource == ResourceDuration {
		return fmt.Sprintf("%s limit exceeded: ran %s, limit %s", e.Resource, time.Duration(e.Observed), time.Duration(e.Limit))
	}
	return fmt.Sprintf("%s limit exceeded: observed %g, limit %g", e.Resource, e.Observed, e.Limit)
}

// Is reports whether target is [ErrLimitExceeded].
func (e *LimitError) Is(target error) bool {
	return target == ErrLimitExceeded
}

// Check returns the first limit u exceeds, in the order memory, cpu, processes, open files
// and duration, or nil.
func (l Limits) Check(u Usage) error {
	switch {
	case l.MaxMemoryBytes > 0 && u.MemoryBytes > l.MaxMemoryBytes:
		return &LimitError{Resource: ResourceMemory, Observed: float64(u.MemoryBytes), Limit: float64(l.MaxMemoryBytes)}
	case l.MaxCPUPercent > 0 && u.CPUPercent > l.MaxCPUPercent:
		return &LimitError{Resource: ResourceCPU, Observed: u.CPUPercent, Limit: l.MaxCPUPercent}
	case l.MaxProcesses > 0 && u.Processes > l.MaxProcesses:
		return &LimitError{Resource: ResourceProcesses, Observed: float64(u.Processes), Limit: float64(l.MaxProcesses)}
	case l.MaxOpenFiles > 0 && u.OpenFiles > l.MaxOpenFiles:
		return &LimitError{Resource: ResourceOpenFiles, Observed: float64(u.OpenFiles), Limit: float64(l.MaxOpenFiles)}
	case l.MaxDuration > 0 && u.Elapsed > l.MaxDuration:
		return &LimitError{Resource: ResourceDuration, Observed: float64(u.Elapsed), Limit: float64(l.MaxDuration)}
	}
	return nil
}
