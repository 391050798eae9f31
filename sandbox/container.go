// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
)

// containerWorkDir exists in every base image, so files can be copied in before start.
const containerWorkDir = "/tmp"

// ContainerExecutor runs code inside a short-lived Docker container.
//
// Memory, CPU and process limits are enforced by the kernel through the container's
// cgroup. The network is disabled and all capabilities are dropped.
type ContainerExecutor struct {
	client *client.Client
	opts   options
}

var _ Executor = (*ContainerExecutor)(nil)

// NewContainerExecutor connects to the Docker daemon configured by the environment.
func NewContainerExecutor(ctx context.Context, opts ...Option) (*ContainerExecutor, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create Docker client: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if _, err := cli.Ping(pingCtx); err != nil {
		cli.Close()
		return nil, fmt.Errorf("failed to connect to Docker: %w", err)
	}

	return &ContainerExecutor{client: cli, opts: o}, nil
}

func (e *ContainerExecutor) image(lang string, rt langRuntime) string {
	if img, ok := e.opts.images[lang]; ok && img != "" {
		return img
	}
	return rt.image
}

// containerConfig builds the container definition of req.
func containerConfig(img string, rt langRuntime, env map[string]string) *container.Config {
	cfg := &container.Config{
		Image:           img,
		Cmd:             rt.cmd,
		WorkingDir:      containerWorkDir,
		AttachStdout:    true,
		AttachStderr:    true,
		NetworkDisabled: true,
		Env:             []string{"PYTHONUNBUFFERED=1", "PYTHONDONTWRITEBYTECODE=1", "HOME=" + containerWorkDir},
		Labels:          map[string]string{"app": "vana-sandbox"},
	}
	for k, v := range env {
		cfg.Env = append(cfg.Env, k+"="+v)
	}
	return cfg
}

// hostConfig translates limits into cgroup resources.
func hostConfig(l Limits) *container.HostConfig {
	hc := &container.HostConfig{
		NetworkMode: "none",
		CapDrop:     []string{"ALL"},
		SecurityOpt: []string{"no-new-privileges"},
	}
	if l.MaxMemoryBytes > 0 {
		hc.Resources.Memory = int64(l.MaxMemoryBytes)
		hc.Resources.MemorySwap = int64(l.MaxMemoryBytes)
	}
	if l.MaxCPUPercent > 0 {
		hc.Resources.NanoCPUs = int64(l.MaxCPUPercent / 100 * 1e9)
	}
	if l.MaxProcesses > 0 {
		pids := int64(l.MaxProcesses)
		hc.Resources.PidsLimit = &pids
	}
	if l.MaxOpenFiles > 0 {
		n := int64(l.MaxOpenFiles)
		hc.Resources.Ulimits = []*container.Ulimit{{Name: "nofile", Soft: n, Hard: n}}
	}
	return hc
}

// Execute implements [Executor].
func (e *ContainerExecutor) Execute(ctx context.Context, req *Request) (*Result, error) {
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

	img := e.image(lang, rt)
	if err := e.ensureImage(ctx, img); err != nil {
		return nil, fmt.Errorf("failed to ensure image %s: %w", img, err)
	}

	resp, err := e.client.ContainerCreate(ctx, containerConfig(img, rt, req.Env), hostConfig(e.opts.limits), nil, nil, "")
	if err != nil {
		return nil, fmt.Errorf("failed to create container: %w", err)
	}
	id := resp.ID
	defer func() {
		if err := e.client.ContainerRemove(context.WithoutCancel(ctx), id, container.RemoveOptions{Force: true}); err != nil {
			e.opts.logger.WarnContext(ctx, "failed to remove container", slog.String("container_id", id), slog.String("error", err.Error()))
		}
	}()

	files := make(map[string][]byte, len(req.Files)+1)
	for name, data := range req.Files {
		files[path.Clean(name)] = data
	}
	files[rt.file] = []byte(req.Code)
	archive, err := tarFiles(files)
	if err != nil {
		return nil, fmt.Errorf("failed to archive input files: %w", err)
	}
	if err := e.client.CopyToContainer(ctx, id, containerWorkDir, archive, container.CopyToContainerOptions{}); err != nil {
		return nil, fmt.Errorf("failed to copy files to container: %w", err)
	}

	timeout := e.opts.timeout(req)
	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	statusCh, errCh := e.client.ContainerWait(runCtx, id, container.WaitConditionNotRunning)
	start := time.Now()
	if err := e.client.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		return nil, fmt.Errorf("failed to start container: %w", err)
	}

	res := &Result{}
	var runErr error
	select {
	case st := <-statusCh:
		res.ExitCode = int(st.StatusCode)
		if st.Error != nil && st.Error.Message != "" {
			runErr = fmt.Errorf("container wait: %s", st.Error.Message)
		}
	case err := <-errCh:
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			runErr = &LimitError{Resource: ResourceDuration, Observed: float64(time.Since(start)), Limit: float64(timeout)}
		} else {
			runErr = fmt.Errorf("failed to wait for container: %w", err)
		}
		res.ExitCode = -1
	}
	res.Duration = time.Since(start)
	res.Usage = Usage{Elapsed: res.Duration, Timestamp: time.Now()}

	logCtx := context.WithoutCancel(ctx)
	if insp, err := e.client.ContainerInspect(logCtx, id); err == nil && insp.State != nil && insp.State.OOMKilled {
		runErr = &LimitError{Resource: ResourceMemory, Observed: float64(e.opts.limits.MaxMemoryBytes), Limit: float64(e.opts.limits.MaxMemoryBytes)}
	}

	if err := e.readLogs(logCtx, id, res); err != nil {
		return res, errors.Join(runErr, err)
	}

	if outputs, err := e.copyOutputs(logCtx, id, files); err == nil {
		res.OutputFiles = outputs
	} else {
		e.opts.logger.WarnContext(ctx, "failed to copy output files", slog.String("container_id", id), slog.String("error", err.Error()))
	}

	return res, runErr
}

func (e *ContainerExecutor) ensureImage(ctx context.Context, ref string) error {
	images, err := e.client.ImageList(ctx, image.ListOptions{})
	if err != nil {
		return err
	}
	for _, img := range images {
		if slices.Contains(img.RepoTags, ref) {
			return nil
		}
	}

	e.opts.logger.InfoContext(ctx, "pulling sandbox image", slog.String("image", ref))
	rc, err := e.client.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return err
	}
	defer rc.Close()

	_, err = io.Copy(io.Discard, rc)
	return err
}

func (e *ContainerExecutor) readLogs(ctx context.Context, id string, res *Result) error {
	rc, err := e.client.ContainerLogs(ctx, id, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return fmt.Errorf("failed to read container logs: %w", err)
	}
	defer rc.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, rc); err != nil {
		return fmt.Errorf("failed to demultiplex container logs: %w", err)
	}
	res.Stdout = stdout.String()
	res.Stderr = stderr.String()
	return nil
}

func (e *ContainerExecutor) copyOutputs(ctx context.Context, id string, inputs map[string][]byte) (map[string][]byte, error) {
	rc, _, err := e.client.CopyFromContainer(ctx, id, containerWorkDir)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	all, err := untarFiles(rc)
	if err != nil {
		return nil, err
	}

	// entries are rooted at the base name of the copied directory
	prefix := path.Base(containerWorkDir) + "/"
	out := make(map[string][]byte)
	for name, data := range all {
		rel := strings.TrimPrefix(name, prefix)
		if _, ok := inputs[rel]; ok || strings.HasPrefix(path.Base(rel), ".") || strings.HasSuffix(rel, ".pyc") {
			continue
		}
		out[rel] = data
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

// Close implements [Executor].
func (e *ContainerExecutor) Close() error {
	return e.client.Close()
}

func tarFiles(files map[string][]byte) (*bytes.Buffer, error) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		data := files[name]
		hdr := &tar.Header{
			Name:    name,
			Size:    int64(len(data)),
			Mode:    0o644,
			ModTime: time.Now(),
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return nil, err
		}
		if _, err := tw.Write(data); err != nil {
			return nil, err
		}
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}
	return &buf, nil
}

func untarFiles(r io.Reader) (map[string][]byte, error) {
	tr := tar.NewReader(r)
	out := make(map[string][]byte)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, err
		}
		out[path.Clean(hdr.Name)] = data
	}
}
