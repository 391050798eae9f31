// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"
)

// ErrUnsupportedLanguage is returned for languages without a runtime.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// Request is a single code execution request.
type Request struct {
	Language string            `json:"language"`
	Code     string            `json:"code"`
	Files    map[string][]byte `json:"files,omitempty"`
	Env      map[string]string `json:"env,omitempty"`
	Timeout  time.Duration     `json:"timeout,omitempty"`
}

// Result is the outcome of an execution.
type Result struct {
	Stdout      string            `json:"stdout"`
	Stderr      string            `json:"stderr"`
	ExitCode    int               `json:"exit_code"`
	Duration    time.Duration     `json:"duration"`
	Usage       Usage             `json:"usage"`
	OutputFiles map[string][]byte `json:"output_files,omitempty"`
}

// Executor runs code.
//
// A non-zero exit code is reported in [Result.ExitCode], not as an error. A run stopped by
// a limit returns the partial [Result] together with a [*LimitError].
type Executor interface {
	Execute(ctx context.Context, req *Request) (*Result, error)
	Close() error
}

type langRuntime struct {
	file  string
	cmd   []string
	image string
}

var runtimes = map[string]langRuntime{
	"python":     {file: "main.py", cmd: []string{"python3", "main.py"}, image: "python:3.12-slim"},
	"bash":       {file: "main.sh", cmd: []string{"bash", "main.sh"}, image: "bash:5.2"},
	"javascript": {file: "main.js", cmd: []string{"node", "main.js"}, image: "node:22-slim"},
}

var languageAliases = map[string]string{
	"":      "python",
	"py":    "python",
	"sh":    "bash",
	"shell": "bash",
	"js":    "javascript",
	"node":  "javascript",
}

// NormalizeLanguage maps aliases such as "py" or "js" to a canonical language name.
func NormalizeLanguage(lang string) (string, error) {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if alias, ok := languageAliases[lang]; ok {
		lang = alias
	}
	if _, ok := runtimes[lang]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedLanguage, lang)
	}
	return lang, nil
}

// Languages lists the supported canonical language names.
func Languages() []string {
	return []string{"bash", "javascript", "python"}
}

func lookupRuntime(lang string) (string, langRuntime, error) {
	lang, err := NormalizeLanguage(lang)
	if err != nil {
		return "", langRuntime{}, err
	}
	return lang, runtimes[lang], nil
}

// validateFiles rejects input file names that would escape the work directory.
func validateFiles(files map[string][]byte, reserved string) error {
	for name := range files {
		clean := path.Clean(name)
		if name == "" || path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
			return fmt.Errorf("invalid input file name %q", name)
		}
		if clean == reserved {
			return fmt.Errorf("input file name %q is reserved", name)
		}
	}
	return nil
}

// Option configures an executor.
type Option func(*options)

type options struct {
	limits         Limits
	policy         *SecurityPolicy
	sampleInterval time.Duration
	allowUnsafe    bool
	images         map[string]string
	logger         *slog.Logger
}

func defaultOptions() options {
	return options{
		limits:         DefaultLimits(),
		policy:         DefaultPolicy(),
		sampleInterval: defaultSampleInterval,
		logger:         slog.Default(),
	}
}

// WithLimits sets the resource limits applied to every execution.
func WithLimits(l Limits) Option {
	return func(o *options) {
		o.limits = l
	}
}

// WithPolicy replaces the [SecurityPolicy]. A nil policy disables code screening.
func WithPolicy(p *SecurityPolicy) Option {
	return func(o *options) {
		o.policy = p
	}
}

// WithSampleInterval sets how often local executions are sampled.
func WithSampleInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.sampleInterval = d
		}
	}
}

// WithAllowUnsafe explicitly enables the [LocalExecutor], which runs code with the privileges
// of the calling process.
func WithAllowUnsafe(allow bool) Option {
	return func(o *options) {
		o.allowUnsafe = allow
	}
}

// WithImage overrides the container image of a language.
func WithImage(language, image string) Option {
	return func(o *options) {
		if o.images == nil {
			o.images = make(map[string]string)
		}
		o.images[language] = image
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func (o *options) timeout(req *Request) time.Duration {
	if req.Timeout > 0 && (o.limits.MaxDuration <= 0 || req.Timeout < o.limits.MaxDuration) {
		return req.Timeout
	}
	return o.limits.MaxDuration
}
