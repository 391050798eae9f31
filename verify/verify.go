// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package verify checks a running VANA deployment end to end and produces a report.
package verify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
)

// Check names.
const (
	CheckHealth     = "health"
	CheckAgents     = "agents"
	CheckAgentCount = "agent_count"
	CheckChat       = "chat"
)

// Verifier runs deployment checks against a base URL.
type Verifier struct {
	base           *url.URL
	client         *http.Client
	expectedAgents int
	message        string
	logger         *slog.Logger
	now            func() time.Time
}

// Option configures a [Verifier].
type Option func(*Verifier)

// WithClient sets the HTTP client, for example one attaching ID tokens.
func WithClient(c *http.Client) Option {
	return func(v *Verifier) {
		v.client = c
	}
}

// WithExpectedAgents fails verification unless the deployment lists exactly n agents.
func WithExpectedAgents(n int) Option {
	return func(v *Verifier) {
		v.expectedAgents = n
	}
}

// WithMessage sets the chat message sent in the round-trip check.
func WithMessage(msg string) Option {
	return func(v *Verifier) {
		v.message = msg
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(v *Verifier) {
		v.logger = logger
	}
}

// New returns a Verifier for the deployment at baseURL.
func New(baseURL string, opts ...Option) (*Verifier, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("invalid deployment url %q", baseURL)
	}
	v := &Verifier{
		base:    u,
		client:  &http.Client{Timeout: 60 * time.Second},
		message: "Hello! Which agents are on your team?",
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

func (v *Verifier) call(ctx context.Context, method, path string, in, out any) (int, error) {
	var body io.Reader
	if in != nil {
		data, err := sonic.Marshal(in)
		if err != nil {
			return 0, err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, v.base.JoinPath(path).String(), body)
	if err != nil {
		return 0, err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return resp.StatusCode, err
	}
	if out != nil {
		if err := sonic.Unmarshal(data, out); err != nil {
			return resp.StatusCode, fmt.Errorf("invalid JSON response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

type healthBody struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Mode    string `json:"mode"`
}

type agentsBody struct {
	Agents []struct {
		Name string `json:"name"`
	} `json:"agents"`
	Count int `json:"count"`
}

type chatBody struct {
	Response  string `json:"response"`
	SessionID string `json:"session_id"`
	Agent     string `json:"agent"`
	Error     string `json:"error"`
}

func (v *Verifier) checkHealth(ctx context.Context) (string, error) {
	var h healthBody
	code, err := v.call(ctx, http.MethodGet, "/health", nil, &h)
	if err != nil {
		return "", err
	}
	if code != http.StatusOK {
		return "", fmt.Errorf("status code %d, status %q", code, h.Status)
	}
	if h.Status != "healthy" {
		return "", fmt.Errorf("service reports %q", h.Status)
	}
	return fmt.Sprintf("healthy (version %s, mode %s)", h.Version, h.Mode), nil
}

func (v *Verifier) listAgents(ctx context.Context) ([]string, error) {
	var a agentsBody
	code, err := v.call(ctx, http.MethodGet, "/api/agents", nil, &a)
	if err != nil {
		return nil, err
	}
	if code != http.StatusOK {
		return nil, fmt.Errorf("status code %d", code)
	}
	names := make([]string, len(a.Agents))
	for i, ag := range a.Agents {
		names[i] = ag.Name
	}
	return names, nil
}

func (v *Verifier) checkChat(ctx context.Context) (string, error) {
	var c chatBody
	code, err := v.call(ctx, http.MethodPost, "/api/chat", map[string]string{"message": v.message, "user_id": "verify"}, &c)
	if err != nil {
		return "", err
	}
	if code != http.StatusOK {
		return "", fmt.Errorf("status code %d: %s", code, c.Error)
	}
	if strings.TrimSpace(c.Response) == "" {
		return "", errors.New("empty response")
	}
	return fmt.Sprintf("%s answered in session %s", c.Agent, c.SessionID), nil
}

// Run executes every check in order and returns the report. A failing health check skips
// the remaining checks.
func (v *Verifier) Run(ctx context.Context) *Report {
	r := &Report{Target: v.base.String(), StartedAt: v.now().UTC()}
	start := v.now()

	step := func(name string, fn func(context.Context) (string, error)) bool {
		t0 := v.now()
		msg, err := fn(ctx)
		res := CheckResult{Name: name, Passed: err == nil, Message: msg, DurationMS: v.now().Sub(t0).Milliseconds()}
		if err != nil {
			res.Message = err.Error()
		}
		v.logger.InfoContext(ctx, "verification check",
			slog.String("check", name),
			slog.Bool("passed", res.Passed),
			slog.String("message", res.Message),
		)
		r.add(res)
		return res.Passed
	}

	if !step(CheckHealth, v.checkHealth) {
		r.DurationMS = v.now().Sub(start).Milliseconds()
		return r
	}

	var names []string
	step(CheckAgents, func(ctx context.Context) (string, error) {
		var err error
		names, err = v.listAgents(ctx)
		if err != nil {
			return "", err
		}
		if len(names) == 0 {
			return "", errors.New("no agents listed")
		}
		return strings.Join(names, ", "), nil
	})
	if v.expectedAgents > 0 {
		step(CheckAgentCount, func(context.Context) (string, error) {
			if len(names) != v.expectedAgents {
				return "", fmt.Errorf("found %d agents, expected %d", len(names), v.expectedAgents)
			}
			return fmt.Sprintf("%d agents", len(names)), nil
		})
	}
	step(CheckChat, v.checkChat)

	r.DurationMS = v.now().Sub(start).Milliseconds()
	return r
}
