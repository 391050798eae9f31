// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
)

const (
	clientName    = "vana"
	clientVersion = "1.0.0"
)

// ErrToolFailed is returned when a server reports a tool error.
var ErrToolFailed = errors.New("mcp tool failed")

// Tool describes a tool offered by a server.
type Tool struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// Client is a connected MCP session.
type Client struct {
	name   string
	mc     *client.Client
	logger *slog.Logger
}

// Connect starts the transport described by cfg and performs the initialize handshake.
func Connect(ctx context.Context, cfg ServerConfig, logger *slog.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	var (
		mc  *client.Client
		err error
	)
	switch cfg.Transport {
	case TransportStdio:
		mc, err = client.NewStdioMCPClient(cfg.Command, envList(cfg.Env), cfg.Args...)
	case TransportSSE:
		mc, err = client.NewSSEMCPClient(cfg.URL, transport.WithHeaders(cfg.Headers))
	case TransportHTTP:
		mc, err = client.NewStreamableHttpClient(cfg.URL, transport.WithHTTPHeaders(cfg.Headers))
	}
	if err != nil {
		return nil, fmt.Errorf("create mcp client %q: %w", cfg.Name, err)
	}

	if err := mc.Start(ctx); err != nil {
		mc.Close()
		return nil, fmt.Errorf("start mcp client %q: %w", cfg.Name, err)
	}

	c, err := initialize(ctx, cfg.Name, mc, logger)
	if err != nil {
		return nil, err
	}
	logger.InfoContext(ctx, "connected to mcp server",
		slog.String("name", cfg.Name),
		slog.String("transport", cfg.Transport),
	)
	return c, nil
}

func initialize(ctx context.Context, name string, mc *client.Client, logger *slog.Logger) (*Client, error) {
	req := mcp.InitializeRequest{}
	req.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	req.Params.ClientInfo = mcp.Implementation{Name: clientName, Version: clientVersion}
	if _, err := mc.Initialize(ctx, req); err != nil {
		mc.Close()
		return nil, fmt.Errorf("initialize mcp server %q: %w", name, err)
	}
	return &Client{name: name, mc: mc, logger: logger}, nil
}

// Name returns the configured server name.
func (c *Client) Name() string {
	return c.name
}

// ListTools returns the server's tools sorted by name.
func (c *Client) ListTools(ctx context.Context) ([]Tool, error) {
	resp, err := c.mc.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("list tools of %q: %w", c.name, err)
	}

	tools := make([]Tool, 0, len(resp.Tools))
	for _, t := range resp.Tools {
		tools = append(tools, Tool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: schemaMap(t.InputSchema),
		})
	}
	slices.SortFunc(tools, func(a, b Tool) int { return strings.Compare(a.Name, b.Name) })
	return tools, nil
}

// CallTool invokes a tool and returns its text content joined by newlines.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	resp, err := c.mc.CallTool(ctx, req)
	if err != nil {
		return "", fmt.Errorf("call %s/%s: %w", c.name, name, err)
	}

	text := resultText(resp)
	if resp.IsError {
		return "", fmt.Errorf("%w: %s/%s: %s", ErrToolFailed, c.name, name, text)
	}
	return text, nil
}

// Close ends the session and stops the transport.
func (c *Client) Close() error {
	return c.mc.Close()
}

func resultText(resp *mcp.CallToolResult) string {
	var texts []string
	for _, content := range resp.Content {
		if tc, ok := content.(mcp.TextContent); ok {
			texts = append(texts, tc.Text)
		}
	}
	return strings.Join(texts, "\n")
}

func schemaMap(s mcp.ToolInputSchema) map[string]any {
	m := map[string]any{"type": s.Type}
	if s.Type == "" {
		m["type"] = "object"
	}
	if len(s.Properties) > 0 {
		m["properties"] = s.Properties
	}
	if len(s.Required) > 0 {
		m["required"] = s.Required
	}
	return m
}

func envList(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	out := make([]string, 0, len(env))
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out
}
