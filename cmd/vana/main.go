// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Command vana runs and maintains the VANA multi-agent system.
//
// Usage:
//
//	vana serve --mode local --port 8080
//	vana chat "design a REST API for todo items"
//	vana index ./docs --collection vana-knowledge
//	vana rag import --corpus my-corpus --bucket my-bucket ./docs
//	vana verify https://vana-xyz.a.run.app --report report.json
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/NickB03/vana/config"
	"github.com/NickB03/vana/internal/app"
)

// CLI is the command-line interface.
type CLI struct {
	Config    string `short:"c" help:"Path to the YAML configuration file." type:"path" env:"VANA_CONFIG"`
	LogLevel  string `help:"Log level (debug, info, warn, error)." default:"info" env:"VANA_LOG_LEVEL"`
	LogFormat string `help:"Log format (text or json)." default:"text" enum:"text,json"`

	Serve      ServeCmd      `cmd:"" help:"Start the HTTP API server."`
	Chat       ChatCmd       `cmd:"" help:"Send one message to the agent team."`
	Agents     AgentsCmd     `cmd:"" help:"List the agents and check the team's consistency."`
	Plan       PlanCmd       `cmd:"" help:"Decompose a task into subtasks."`
	Index      IndexCmd      `cmd:"" help:"Chunk, embed and store documents in the vector store."`
	Search     SearchCmd     `cmd:"" help:"Search the vector store."`
	Upload     UploadCmd     `cmd:"" help:"Upload documents to the GCS bucket."`
	RAG        RAGCmd        `cmd:"" name:"rag" help:"Manage Vertex AI RAG corpora."`
	Verify     VerifyCmd     `cmd:"" help:"Verify a running deployment."`
	Monitoring MonitoringCmd `cmd:"" help:"Render monitoring configuration."`
	MCP        MCPCmd        `cmd:"" name:"mcp" help:"Inspect configured MCP servers."`
	Exec       ExecCmd       `cmd:"" help:"Run a program in the sandbox."`
	Version    VersionCmd    `cmd:"" help:"Show version information."`
}

// load reads and validates the configuration.
func (c *CLI) load() (*config.Config, error) {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func version() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "dev"
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Printf("vana %s\n", version())
	return nil
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("vana"),
		kong.Description("VANA multi-agent orchestration toolkit."),
		kong.UsageOnError(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, _, err := app.Logger(ctx, cli.LogLevel, cli.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}

	kctx.BindTo(ctx, (*context.Context)(nil))
	kctx.FatalIfErrorf(kctx.Run(&cli))
}
