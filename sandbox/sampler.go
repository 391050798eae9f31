// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"
)

// Sampler takes resource samples of the watched work.
type Sampler interface {
	Sample(ctx context.Context) (Usage, error)
}

// Terminator is implemented by samplers that can stop the work they watch.
type Terminator interface {
	Terminate(ctx context.Context) error
}

// ProcessSampler samples a process and all of its descendants.
type ProcessSampler struct {
	proc    *process.Process
	started time.Time

	mu       sync.Mutex
	children map[int32]*process.Process
	netBase  net.IOCountersStat
}

var (
	_ Sampler    = (*ProcessSampler)(nil)
	_ Terminator = (*ProcessSampler)(nil)
)

// NewProcessSampler returns a [ProcessSampler] for pid.
func NewProcessSampler(ctx context.Context, pid int) (*ProcessSampler, error) {
	proc, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return nil, fmt.Errorf("failed to open process %d: %w", pid, err)
	}

	s := &ProcessSampler{
		proc:     proc,
		started:  time.Now(),
		children: make(map[int32]*process.Process),
	}
	s.netBase, _ = netCounters(ctx)
	// prime the CPU percent baseline
	_, _ = proc.PercentWithContext(ctx, 0)

	return s, nil
}

// PID returns the sampled process ID.
func (s *ProcessSampler) PID() int {
	return int(s.proc.Pid)
}

// Sample implements [Sampler].
//
// Memory, CPU, IO and open files are summed over the process tree. Errors reading a
// descendant are ignored since it may have exited between listing and reading.
func (s *ProcessSampler) Sample(ctx context.Context) (Usage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	mem, err := s.proc.MemoryInfoWithContext(ctx)
	if err != nil {
		return Usage{}, fmt.Errorf("failed to read memory of process %d: %w", s.proc.Pid, err)
	}

	u := Usage{
		MemoryBytes: mem.RSS,
		Processes:   1,
		Timestamp:   time.Now(),
	}
	u.Elapsed = u.Timestamp.Sub(s.started)
	if cpu, err := s.proc.PercentWithContext(ctx, 0); err == nil {
		u.CPUPercent = cpu
	}
	if fds, err := s.proc.NumFDsWithContext(ctx); err == nil {
		u.OpenFiles = int(fds)
	}
	if io, err := s.proc.IOCountersWithContext(ctx); err == nil {
		u.DiskReadBytes = io.ReadBytes
		u.DiskWriteBytes = io.WriteBytes
	}

	seen := make(map[int32]bool)
	for _, child := range descendants(ctx, s.proc) {
		// reuse handles so CPU percent deltas span polls
		p, ok := s.children[child.Pid]
		if !ok {
			p = child
			s.children[child.Pid] = p
		}
		seen[p.Pid] = true

		u.Processes++
		if m, err := p.MemoryInfoWithContext(ctx); err == nil {
			u.MemoryBytes += m.RSS
		}
		if cpu, err := p.PercentWithContext(ctx, 0); err == nil {
			u.CPUPercent += cpu
		}
		if fds, err := p.NumFDsWithContext(ctx); err == nil {
			u.OpenFiles += int(fds)
		}
		if io, err := p.IOCountersWithContext(ctx); err == nil {
			u.DiskReadBytes += io.ReadBytes
			u.DiskWriteBytes += io.WriteBytes
		}
	}
	for pid := range s.children {
		if !seen[pid] {
			delete(s.children, pid)
		}
	}

	if n, err := netCounters(ctx); err == nil {
		u.NetBytesSent = n.BytesSent - min(n.BytesSent, s.netBase.BytesSent)
		u.NetBytesRecv = n.BytesRecv - min(n.BytesRecv, s.netBase.BytesRecv)
	}

	return u, nil
}

// Terminate implements [Terminator]. It kills the descendants first, then the process.
func (s *ProcessSampler) Terminate(ctx context.Context) error {
	var errs []error
	tree := descendants(ctx, s.proc)
	for i := len(tree) - 1; i >= 0; i-- {
		if err := tree[i].KillWithContext(ctx); err != nil && !errors.Is(err, process.ErrorProcessNotRunning) {
			errs = append(errs, err)
		}
	}
	if err := s.proc.KillWithContext(ctx); err != nil && !errors.Is(err, process.ErrorProcessNotRunning) {
		errs = append(errs, fmt.Errorf("failed to kill process %d: %w", s.proc.Pid, err))
	}
	return errors.Join(errs...)
}

// descendants lists the process tree below p in breadth-first order.
func descendants(ctx context.Context, p *process.Process) []*process.Process {
	var out []*process.Process
	queue := []*process.Process{p}
	for len(queue) > 0 {
		children, err := queue[0].ChildrenWithContext(ctx)
		queue = queue[1:]
		if err != nil {
			continue
		}
		out = append(out, children...)
		queue = append(queue, children...)
	}
	return out
}

func netCounters(ctx context.Context) (net.IOCountersStat, error) {
	stats, err := net.IOCountersWithContext(ctx, false)
	if err != nil {
		return net.IOCountersStat{}, err
	}
	if len(stats) == 0 {
		return net.IOCountersStat{}, errors.New("no network counters")
	}
	return stats[0], nil
}
