// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package mcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/bytedance/sonic"
	"github.com/google/jsonschema-go/jsonschema"
	"google.golang.org/adk/tool"
	"google.golang.org/adk/tool/functiontool"
)

type closers []io.Closer

func (cs closers) Close() error {
	var errs []error
	for _, c := range cs {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// Toolset connects to every enabled server and returns their allowed tools as agent tools.
// Servers that fail to connect are logged and skipped. Tool names already taken by an
// earlier server are skipped as well. The returned closer ends every session.
func Toolset(ctx context.Context, cfgs []ServerConfig, logger *slog.Logger) ([]tool.Tool, io.Closer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var (
		tools []tool.Tool
		open  closers
		seen  = make(map[string]string)
	)
	for _, cfg := range cfgs {
		if !cfg.Enabled() {
			continue
		}
		if err := ctx.Err(); err != nil {
			open.Close()
			return nil, nil, err
		}

		c, err := Connect(ctx, cfg, logger)
		if err != nil {
			logger.WarnContext(ctx, "skipping mcp server",
				slog.String("name", cfg.Name),
				slog.String("error", err.Error()),
			)
			continue
		}
		open = append(open, c)

		ts, err := c.Tools(ctx, cfg)
		if err != nil {
			open.Close()
			return nil, nil, err
		}
		for _, t := range ts {
			if prev, ok := seen[t.Name()]; ok {
				logger.WarnContext(ctx, "duplicate mcp tool name",
					slog.String("tool", t.Name()),
					slog.String("server", cfg.Name),
					slog.String("first_server", prev),
				)
				continue
			}
			seen[t.Name()] = cfg.Name
			tools = append(tools, t)
		}
	}
	return tools, open, nil
}

// Tools lists the server's tools allowed by cfg and wraps each as an agent tool that
// forwards its arguments to [Client.CallTool].
func (c *Client) Tools(ctx context.Context, cfg ServerConfig) ([]tool.Tool, error) {
	listed, err := c.ListTools(ctx)
	if err != nil {
		return nil, err
	}

	var tools []tool.Tool
	for _, t := range listed {
		if !cfg.Allows(t.Name) {
			continue
		}
		schema, err := inputSchema(t.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("tool %s/%s: %w", c.name, t.Name, err)
		}
		ft, err := functiontool.New(functiontool.Config{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: schema,
		}, c.forward(t.Name))
		if err != nil {
			return nil, fmt.Errorf("tool %s/%s: %w", c.name, t.Name, err)
		}
		tools = append(tools, ft)
	}

	c.logger.DebugContext(ctx, "loaded mcp tools",
		slog.String("server", c.name),
		slog.Int("count", len(tools)),
	)
	return tools, nil
}

// forward returns the handler of a wrapped tool. Tool failures are reported to the model in
// the result instead of aborting the turn.
func (c *Client) forward(name string) func(tool.Context, map[string]any) (map[string]any, error) {
	return func(ctx tool.Context, args map[string]any) (map[string]any, error) {
		return c.invoke(ctx, name, args), nil
	}
}

func (c *Client) invoke(ctx context.Context, name string, args map[string]any) map[string]any {
	text, err := c.CallTool(ctx, name, args)
	if err != nil {
		return map[string]any{"status": "error", "error": err.Error()}
	}
	return map[string]any{"status": "success", "result": text}
}

func inputSchema(m map[string]any) (*jsonschema.Schema, error) {
	data, err := sonic.Marshal(m)
	if err != nil {
		return nil, err
	}
	var s jsonschema.Schema
	if err := sonic.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode input schema: %w", err)
	}
	return &s, nil
}
