// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// LocalExecutor runs code as a child process of the calling process.
//
// WARNING: the code runs with the privileges of the calling process. The [Monitor] enforces
// resource limits by killing the process tree, but offers no isolation. Use only in trusted
// environments.
type LocalExecutor struct {
	opts options
}

var _ Executor = (*LocalExecutor)(nil)

// NewLocalExecutor returns a [LocalExecutor]. It requires [WithAllowUnsafe](true).
func NewLocalExecutor(opts ...Option) (*LocalExecutor, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if !o.allowUnsafe {
		return nil, errors.New("local executor requires explicit opt-in to unsafe execution via WithAllowUnsafe(true)")
	}
	return &LocalExecutor{opts: o}, nil
}

// Execute implements [Executor].
func (e *LocalExecutor) Execute(ctx context.Context, req *Request) (*Result, error) {
	lang, rt, err := lookupRuntime(req.Language)
	if err != nil {
		return nil, err
	}
	if err := e.opts.policy.Check(lang, req.Code); err != nil {
		return nil, err
	}
	if err := validateFiles(req.Files, rt.file); err != nil {
		return nil, err
	}

	workDir, err := os.MkdirTemp("", "vana-sandbox-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create working directory: %w", err)
	}
	defer os.RemoveAll(workDir)

	inputs := map[string]bool{rt.file: true}
	for name, data := range req.Files {
		p := filepath.Join(workDir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory for %s: %w", name, err)
		}
		if err := os.WriteFile(p, data, 0o644); err != nil {
			return nil, fmt.Errorf("failed to write input file %s: %w", name, err)
		}
		inputs[filepath.ToSlash(filepath.Clean(name))] = true
	}
	if err := os.WriteFile(filepath.Join(workDir, rt.file), []byte(req.Code), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write %s code: %w", lang, err)
	}

	parent := ctx
	if timeout := e.opts.timeout(req); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.Command(rt.cmd[0], rt.cmd[1:]...)
	cmd.Dir = workDir
	cmd.Env = commandEnv(workDir, req.Env)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = pipeWaitDelay
	setProcessGroup(cmd)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", rt.cmd[0], err)
	}

	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	watchCtx := ctx
	var (
		mon     *Monitor
		sampler *ProcessSampler
	)
	if sampler, err = NewProcessSampler(ctx, cmd.Process.Pid); err == nil {
		mon = NewMonitor(sampler, e.opts.limits,
			WithInterval(e.opts.sampleInterval),
			WithTerminate(true),
			WithMonitorLogger(e.opts.logger),
		)
		if wctx, err := mon.Start(ctx); err == nil {
			watchCtx = wctx
		}
	}

	var (
		waitErr error
		stopped bool
	)
	select {
	case waitErr = <-waitCh:
		if errors.Is(waitErr, exec.ErrWaitDelay) {
			// background processes outlived the program and held its output open
			e.kill(ctx, cmd, nil)
			waitErr = nil
		}
	case <-watchCtx.Done():
		stopped = true
		e.kill(ctx, cmd, sampler)
		waitErr = <-waitCh
	}

	res := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: 0,
		Duration: time.Since(start),
	}
	if mon != nil {
		res.Usage = mon.Stop()
	}
	res.Usage.Elapsed = res.Duration

	var exitErr *exec.ExitError
	switch {
	case waitErr == nil:
		if cmd.ProcessState != nil {
			res.ExitCode = cmd.ProcessState.ExitCode()
		}
	case errors.As(waitErr, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	case !stopped:
		return res, fmt.Errorf("failed to run %s code: %w", lang, waitErr)
	}

	res.OutputFiles, err = collectOutputs(workDir, inputs)
	if err != nil {
		e.opts.logger.WarnContext(ctx, "failed to collect output files", slog.String("error", err.Error()))
	}

	if stopped {
		return res, stopCause(parent, watchCtx, e.opts.timeout(req))
	}
	return res, nil
}

// pipeWaitDelay bounds how long Wait waits for output pipes held open by orphaned processes.
const pipeWaitDelay = 2 * time.Second

// kill stops the process tree of cmd.
func (e *LocalExecutor) kill(ctx context.Context, cmd *exec.Cmd, sampler *ProcessSampler) {
	ctx = context.WithoutCancel(ctx)
	if sampler != nil {
		if err := sampler.Terminate(ctx); err != nil {
			e.opts.logger.DebugContext(ctx, "failed to terminate process tree", slog.String("error", err.Error()))
		}
	}
	if err := killProcessGroup(cmd); err != nil {
		e.opts.logger.WarnContext(ctx, "failed to kill process group", slog.Int("pid", cmd.Process.Pid), slog.String("error", err.Error()))
	}
}

// stopCause converts the reason the watch context ended into a [*LimitError]. The caller's own
// cancellation is returned as is.
func stopCause(parent, ctx context.Context, timeout time.Duration) error {
	if err := parent.Err(); err != nil {
		return context.Cause(parent)
	}
	cause := context.Cause(ctx)
	var lerr *LimitError
	if errors.As(cause, &lerr) {
		return lerr
	}
	if errors.Is(cause, context.DeadlineExceeded) && timeout > 0 {
		return &LimitError{Resource: ResourceDuration, Observed: float64(timeout), Limit: float64(timeout)}
	}
	return cause
}

func commandEnv(workDir string, extra map[string]string) []string {
	env := []string{
		"HOME=" + workDir,
		"TMPDIR=" + workDir,
		"PYTHONUNBUFFERED=1",
		"PYTHONDONTWRITEBYTECODE=1",
	}
	if p, ok := os.LookupEnv("PATH"); ok {
		env = append(env, "PATH="+p)
	}
	for k, v := range extra {
		env = append(env, k+"="+v)
	}
	return env
}

// collectOutputs reads every regular file under dir that is not an input.
func collectOutputs(dir string, inputs map[string]bool) (map[string][]byte, error) {
	out := make(map[string][]byte)
	err := filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if inputs[rel] || strings.HasPrefix(filepath.Base(rel), ".") || strings.HasSuffix(rel, ".pyc") {
			return nil
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		out[rel] = data
		return nil
	})
	if len(out) == 0 {
		out = nil
	}
	return out, err
}

// Close implements [Executor].
func (e *LocalExecutor) Close() error {
	return nil
}
