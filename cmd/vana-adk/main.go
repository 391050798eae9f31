// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Command vana-adk serves the VANA agent team through the ADK launcher, in console or web
// mode.
//
// Configuration is read from the file named by VANA_CONFIG and from the environment.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"google.golang.org/adk/agent"
	"google.golang.org/adk/cmd/launcher"
	"google.golang.org/adk/cmd/launcher/full"

	"github.com/NickB03/vana/config"
	"github.com/NickB03/vana/internal/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, logger, err := app.Logger(ctx, os.Getenv("VANA_LOG_LEVEL"), "text")
	if err != nil {
		log.Fatal(err)
	}

	cfg, err := config.Load(os.Getenv("VANA_CONFIG"))
	if err != nil {
		log.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("failed to build agents: %v", err)
	}
	defer a.Close()

	l := full.NewLauncher()
	if err := l.Execute(ctx, launcherConfig(a.System.Root()), os.Args[1:]); err != nil {
		log.Fatalf("run failed: %v\n\n%s", err, l.CommandLineSyntax())
	}
}

// launcherConfig serves root as the only agent of the launcher.
func launcherConfig(root agent.Agent) *launcher.Config {
	return &launcher.Config{
		AgentLoader: agent.NewSingleLoader(root),
	}
}
