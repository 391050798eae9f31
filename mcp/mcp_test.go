// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package mcp

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/mark3labs/mcp-go/client"
	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

func TestParseConfig(t *testing.T) {
	const doc = `{
  "mcpServers": {
    "github": {
      "command": "npx",
      "args": ["-y", "@modelcontextprotocol/server-github"],
      "env": {"GITHUB_TOKEN": "${GITHUB_TOKEN}"}
    },
    "brave": {
      "type": "streamable-http",
      "url": "https://mcp.example.com/brave",
      "headers": {"Authorization": "Bearer ${BRAVE_KEY:-none}"},
      "tools": ["brave_web_search"]
    },
    "legacy": {"type": "sse", "url": "http://localhost:3001/sse", "disabled": true}
  }
}`
	lookup := func(k string) (string, bool) {
		if k == "GITHUB_TOKEN" {
			return "ghp_test", true
		}
		return "", false
	}

	got, err := ParseConfig([]byte(doc), ".json", lookup)
	if err != nil {
		t.Fatal(err)
	}
	want := []ServerConfig{
		{
			Name:      "brave",
			Transport: TransportHTTP,
			URL:       "https://mcp.example.com/brave",
			Headers:   map[string]string{"Authorization": "Bearer none"},
			Tools:     []string{"brave_web_search"},
		},
		{
			Name:      "github",
			Transport: TransportStdio,
			Command:   "npx",
			Args:      []string{"-y", "@modelcontextprotocol/server-github"},
			Env:       map[string]string{"GITHUB_TOKEN": "ghp_test"},
		},
		{
			Name:      "legacy",
			Transport: TransportSSE,
			URL:       "http://localhost:3001/sse",
			Disabled:  true,
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseConfig() mismatch (-want +got):\n%s", diff)
	}
	if got[2].Enabled() {
		t.Error("disabled server reported as enabled")
	}
	if !got[0].Allows("brave_web_search") || got[0].Allows("brave_local_search") || !got[1].Allows("anything") {
		t.Error("Allows() filter wrong")
	}
}

func TestParseConfigYAML(t *testing.T) {
	const doc = `
mcpServers:
  files:
    command: mcp-files
    args: [--root, /srv]
`
	got, err := ParseConfig([]byte(doc), ".yaml", func(string) (string, bool) { return "", false })
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Name != "files" || got[0].Transport != TransportStdio {
		t.Errorf("ParseConfig(yaml) = %+v", got)
	}
}

func TestParseConfigInvalid(t *testing.T) {
	tests := map[string]string{
		"stdio without command": `{"mcpServers": {"a": {"type": "stdio"}}}`,
		"http without url":      `{"mcpServers": {"a": {"type": "http"}}}`,
		"relative url":          `{"mcpServers": {"a": {"type": "sse", "url": "/sse"}}}`,
		"unknown transport":     `{"mcpServers": {"a": {"type": "ws", "url": "ws://x"}}}`,
		"nothing":               `{"mcpServers": {"a": {}}}`,
		"malformed":             `{"mcpServers": `,
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseConfig([]byte(doc), ".json", func(string) (string, bool) { return "", false })
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("ParseConfig() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func newTestServer() *server.MCPServer {
	s := server.NewMCPServer("test", "1.0.0", server.WithToolCapabilities(false))
	s.AddTool(
		mcpgo.NewTool("echo",
			mcpgo.WithDescription("Echo the input text"),
			mcpgo.WithString("text", mcpgo.Required(), mcpgo.Description("Text to echo")),
		),
		func(_ context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
			text, err := req.RequireString("text")
			if err != nil {
				return mcpgo.NewToolResultError(err.Error()), nil
			}
			return mcpgo.NewToolResultText(strings.ToUpper(text)), nil
		},
	)
	s.AddTool(
		mcpgo.NewTool("fail", mcpgo.WithDescription("Always fails")),
		func(context.Context, mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
			return mcpgo.NewToolResultError("boom"), nil
		},
	)
	return s
}

func connectInProcess(t *testing.T) *Client {
	t.Helper()
	mc, err := client.NewInProcessClient(newTestServer())
	if err != nil {
		t.Fatal(err)
	}
	if err := mc.Start(t.Context()); err != nil {
		t.Fatal(err)
	}
	c, err := initialize(t.Context(), "test", mc, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestClient(t *testing.T) {
	c := connectInProcess(t)
	ctx := t.Context()

	tools, err := c.ListTools(ctx)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, tl := range tools {
		names = append(names, tl.Name)
	}
	if diff := cmp.Diff([]string{"echo", "fail"}, names); diff != "" {
		t.Errorf("ListTools() mismatch (-want +got):\n%s", diff)
	}
	if got := tools[0].InputSchema["required"]; !cmp.Equal(got, []string{"text"}) {
		t.Errorf("echo schema required = %v", got)
	}

	out, err := c.CallTool(ctx, "echo", map[string]any{"text": "vana"})
	if err != nil || out != "VANA" {
		t.Errorf("CallTool(echo) = %q, %v", out, err)
	}
	if _, err := c.CallTool(ctx, "fail", nil); !errors.Is(err, ErrToolFailed) {
		t.Errorf("CallTool(fail) error = %v, want ErrToolFailed", err)
	}

	if got := c.invoke(ctx, "echo", map[string]any{"text": "ok"}); got["status"] != "success" || got["result"] != "OK" {
		t.Errorf("invoke(echo) = %v", got)
	}
	if got := c.invoke(ctx, "fail", nil); got["status"] != "error" {
		t.Errorf("invoke(fail) = %v", got)
	}
}

func TestClientTools(t *testing.T) {
	c := connectInProcess(t)

	tools, err := c.Tools(t.Context(), ServerConfig{Name: "test", Tools: []string{"echo"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(tools) != 1 || tools[0].Name() != "echo" || tools[0].Description() != "Echo the input text" {
		t.Errorf("Tools() = %v", tools)
	}
}

func TestToolsetSkipsUnreachable(t *testing.T) {
	cfgs := []ServerConfig{
		{Name: "off", Transport: TransportStdio, Command: "definitely-not-a-real-mcp-binary", Disabled: true},
		{Name: "broken", Transport: TransportStdio, Command: "definitely-not-a-real-mcp-binary"},
	}
	tools, closer, err := Toolset(t.Context(), cfgs, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatal(err)
	}
	defer closer.Close()
	if len(tools) != 0 {
		t.Errorf("Toolset() = %d tools, want 0", len(tools))
	}
}

func TestEnvList(t *testing.T) {
	got := envList(map[string]string{"B": "2", "A": "1"})
	if diff := cmp.Diff([]string{"A=1", "B=2"}, got); diff != "" {
		t.Errorf("envList() mismatch (-want +got):\n%s", diff)
	}
}
