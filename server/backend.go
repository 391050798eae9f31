// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/bytedance/sonic"
	"golang.org/x/oauth2"
	"google.golang.org/api/idtoken"

	"github.com/NickB03/vana/agents"
	"github.com/NickB03/vana/fallback"
)

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Message   string `json:"message"`
	UserID    string `json:"user_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// ChatResponse is the answer of POST /api/chat.
type ChatResponse struct {
	Response  string `json:"response"`
	SessionID string `json:"session_id"`
	Agent     string `json:"agent"`
	Status    string `json:"status"`
}

// Backend answers API requests.
type Backend interface {
	// Mode names the backend, "local" or "proxy".
	Mode() string
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	Agents(ctx context.Context) ([]agents.AgentInfo, error)
	// Ping checks that the backend can serve requests.
	Ping(ctx context.Context) error
}

// LocalBackend runs the agents in process.
type LocalBackend struct {
	runner *agents.Runner
	system *agents.System
}

var _ Backend = (*LocalBackend)(nil)

// NewLocalBackend returns a backend chatting through runner and listing the agents of system.
func NewLocalBackend(runner *agents.Runner, system *agents.System) *LocalBackend {
	return &LocalBackend{runner: runner, system: system}
}

// Mode implements [Backend].
func (b *LocalBackend) Mode() string { return "local" }

// Chat implements [Backend].
func (b *LocalBackend) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	reply, err := b.runner.Chat(ctx, req.UserID, req.SessionID, req.Message)
	if err != nil {
		return nil, err
	}
	return &ChatResponse{
		Response:  reply.Text,
		SessionID: reply.SessionID,
		Agent:     reply.Agent,
		Status:    "success",
	}, nil
}

// Agents implements [Backend].
func (b *LocalBackend) Agents(context.Context) ([]agents.AgentInfo, error) {
	return b.system.Agents(), nil
}

// Ping implements [Backend].
func (b *LocalBackend) Ping(context.Context) error {
	if b.system == nil || b.system.Root() == nil {
		return errors.New("agent system is not built")
	}
	return nil
}

// UpstreamError is returned when the remote service answers with a non-2xx status.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream returned %d: %s", e.StatusCode, e.Body)
}

// ProxyBackend forwards requests to a remote VANA deployment.
type ProxyBackend struct {
	base     *url.URL
	client   *http.Client
	manager  *fallback.Manager
	fallback Backend
	logger   *slog.Logger
}

var _ Backend = (*ProxyBackend)(nil)

// ProxyOption configures a [ProxyBackend].
type ProxyOption func(*ProxyBackend)

// WithHTTPClient sets the client used for upstream calls.
func WithHTTPClient(c *http.Client) ProxyOption {
	return func(p *ProxyBackend) {
		p.client = c
	}
}

// WithRetry retries upstream calls through m.
func WithRetry(m *fallback.Manager) ProxyOption {
	return func(p *ProxyBackend) {
		p.manager = m
	}
}

// WithFallback answers chat requests with b when the upstream is exhausted.
func WithFallback(b Backend) ProxyOption {
	return func(p *ProxyBackend) {
		p.fallback = b
	}
}

// WithProxyLogger sets the logger.
func WithProxyLogger(logger *slog.Logger) ProxyOption {
	return func(p *ProxyBackend) {
		p.logger = logger
	}
}

// NewProxyBackend returns a backend forwarding to remoteURL.
func NewProxyBackend(remoteURL string, opts ...ProxyOption) (*ProxyBackend, error) {
	u, err := url.Parse(remoteURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid remote url %q", remoteURL)
	}
	p := &ProxyBackend{
		base:    u,
		client:  &http.Client{Timeout: 60 * time.Second},
		manager: fallback.NewManager(fallback.DefaultPolicy()),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// IDTokenClient returns an HTTP client attaching Google ID tokens for audience, as Cloud
// Run services with IAM authentication require.
func IDTokenClient(ctx context.Context, audience string, timeout time.Duration) (*http.Client, error) {
	ts, err := idtoken.NewTokenSource(ctx, audience)
	if err != nil {
		return nil, fmt.Errorf("failed to create id token source: %w", err)
	}
	c := oauth2.NewClient(ctx, oauth2.ReuseTokenSource(nil, ts))
	c.Timeout = timeout
	return c, nil
}

// Mode implements [Backend].
func (p *ProxyBackend) Mode() string { return "proxy" }

func (p *ProxyBackend) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := sonic.Marshal(in)
		if err != nil {
			return fallback.Permanent(fmt.Errorf("failed to encode request: %w", err))
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.base.JoinPath(path).String(), body)
	if err != nil {
		return fallback.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		uerr := &UpstreamError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(data))}
		// client errors will not improve on retry
		if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return fallback.Permanent(uerr)
		}
		return uerr
	}
	if out == nil {
		return nil
	}
	if err := sonic.Unmarshal(data, out); err != nil {
		return fallback.Permanent(fmt.Errorf("failed to decode upstream response: %w", err))
	}
	return nil
}

// Chat implements [Backend].
func (p *ProxyBackend) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	remote := func(ctx context.Context) (*ChatResponse, error) {
		var out ChatResponse
		if err := p.do(ctx, http.MethodPost, "/api/chat", req, &out); err != nil {
			return nil, err
		}
		if out.Status == "" {
			out.Status = "success"
		}
		return &out, nil
	}

	var fallbacks []fallback.Func[*ChatResponse]
	if p.fallback != nil {
		fallbacks = append(fallbacks, func(ctx context.Context) (*ChatResponse, error) {
			p.logger.WarnContext(ctx, "remote chat failed, answering locally", slog.String("remote", p.base.String()))
			return p.fallback.Chat(ctx, req)
		})
	}
	return fallback.Do(ctx, p.manager, "proxy_chat", remote, fallbacks...)
}

// Agents implements [Backend].
func (p *ProxyBackend) Agents(ctx context.Context) ([]agents.AgentInfo, error) {
	return fallback.Do(ctx, p.manager, "proxy_agents", func(ctx context.Context) ([]agents.AgentInfo, error) {
		var out AgentsResponse
		if err := p.do(ctx, http.MethodGet, "/api/agents", nil, &out); err != nil {
			return nil, err
		}
		return out.Agents, nil
	})
}

// Ping implements [Backend].
func (p *ProxyBackend) Ping(ctx context.Context) error {
	return p.do(ctx, http.MethodGet, "/health", nil, nil)
}
