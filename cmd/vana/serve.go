// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/NickB03/vana/config"
	"github.com/NickB03/vana/internal/app"
	"github.com/NickB03/vana/pkg/logging"
	"github.com/NickB03/vana/server"
)

// ServeCmd starts the HTTP API server.
type ServeCmd struct {
	Mode          string `help:"Backend mode: local runs the agents in process, proxy forwards to --remote-url." placeholder:"local|proxy"`
	Port          int    `help:"Port to listen on; overrides the configuration."`
	RemoteURL     string `name:"remote-url" help:"Remote deployment to proxy to." env:"VANA_REMOTE_URL"`
	LocalFallback bool   `name:"local-fallback" help:"In proxy mode, answer chats locally when the remote deployment fails."`
}

func (c *ServeCmd) apply(cfg *config.Config) {
	if c.Mode != "" {
		cfg.Server.Mode = c.Mode
	}
	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}
	if c.RemoteURL != "" {
		cfg.Server.RemoteURL = c.RemoteURL
	}
}

func (c *ServeCmd) Run(ctx context.Context, cli *CLI) error {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return err
	}
	c.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := logging.FromContext(ctx)

	var (
		a       *app.App
		backend server.Backend
	)
	if cfg.Server.Mode == config.ModeLocal || c.LocalFallback {
		a, err = app.New(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()
		backend = server.NewLocalBackend(a.Runner, a.System)
	}

	if cfg.Server.Mode == config.ModeProxy {
		opts := []server.ProxyOption{server.WithProxyLogger(logger)}
		if a != nil {
			opts = append(opts, server.WithRetry(a.Fallback), server.WithFallback(backend))
		} else {
			opts = append(opts, server.WithRetry(app.NewFallbackManager(cfg, logger, nil)))
		}
		if cfg.Server.UseIDToken {
			audience := cfg.Server.Audience
			if audience == "" {
				audience = cfg.Server.RemoteURL
			}
			client, err := server.IDTokenClient(ctx, audience, cfg.Server.RequestTimeout)
			if err != nil {
				return err
			}
			opts = append(opts, server.WithHTTPClient(client))
		}
		proxy, err := server.NewProxyBackend(cfg.Server.RemoteURL, opts...)
		if err != nil {
			return err
		}
		backend = proxy
	}

	srvOpts := []server.Option{
		server.WithVersion(version()),
		server.WithRequestTimeout(cfg.Server.RequestTimeout),
		server.WithLogger(logger),
	}
	if a != nil {
		srvOpts = append(srvOpts,
			server.WithHealthChecker(a.Health),
			server.WithMetrics(a.Metrics),
			server.WithCaches(a.Caches),
		)
	}
	srv := server.New(backend, srvOpts...)

	addr := net.JoinHostPort("", strconv.Itoa(cfg.Server.Port))
	fmt.Printf("VANA %s server listening on http://localhost%s\n", cfg.Server.Mode, addr)
	return srv.ListenAndServe(ctx, addr)
}
