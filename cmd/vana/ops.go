// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/NickB03/vana/config"
	"github.com/NickB03/vana/internal/app"
	"github.com/NickB03/vana/mcp"
	"github.com/NickB03/vana/monitoring"
	"github.com/NickB03/vana/pkg/logging"
	"github.com/NickB03/vana/sandbox"
	"github.com/NickB03/vana/server"
	"github.com/NickB03/vana/verify"
)

// VerifyCmd verifies a running deployment.
type VerifyCmd struct {
	URL            string        `arg:"" help:"Base URL of the deployment."`
	Report         string        `help:"Write the JSON report to this file." type:"path"`
	ExpectedAgents int           `name:"expected-agents" help:"Expected number of agents; zero skips the check."`
	Message        string        `help:"Message sent in the chat check."`
	IDToken        bool          `name:"id-token" help:"Authenticate with a Google ID token for the URL."`
	Timeout        time.Duration `help:"Per-request timeout." default:"60s"`
}

func (c *VerifyCmd) Run(ctx context.Context) error {
	opts := []verify.Option{
		verify.WithExpectedAgents(c.ExpectedAgents),
		verify.WithLogger(logging.FromContext(ctx)),
	}
	if c.Message != "" {
		opts = append(opts, verify.WithMessage(c.Message))
	}
	if c.IDToken {
		client, err := server.IDTokenClient(ctx, c.URL, c.Timeout)
		if err != nil {
			return err
		}
		opts = append(opts, verify.WithClient(client))
	}

	v, err := verify.New(c.URL, opts...)
	if err != nil {
		return err
	}
	report := v.Run(ctx)
	fmt.Print(report.Table())
	if c.Report != "" {
		if err := report.Save(c.Report); err != nil {
			return err
		}
	}
	if !report.OK() {
		return fmt.Errorf("%d of %d checks failed", report.Failed, len(report.Results))
	}
	return nil
}

// MonitoringCmd groups monitoring commands.
type MonitoringCmd struct {
	Render MonitoringRenderCmd `cmd:"" help:"Write Prometheus and Datadog configuration files."`
}

// MonitoringRenderCmd renders the monitoring templates.
type MonitoringRenderCmd struct {
	Out     string `help:"Output directory." default:"monitoring" type:"path"`
	Target  string `help:"Base URL of the deployment to scrape." required:""`
	Service string `help:"Service name." default:"vana"`
}

func (c *MonitoringRenderCmd) Run(cli *CLI) error {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return err
	}
	paths, err := monitoring.Render(c.Out, monitoring.TemplateConfig{
		Service:        c.Service,
		Environment:    cfg.Environment,
		Target:         c.Target,
		ScrapeInterval: cfg.Monitoring.ScrapeInterval,
		Thresholds: monitoring.Thresholds{
			ErrorRate:       cfg.Monitoring.ErrorRate,
			LatencyP95:      cfg.Monitoring.LatencyP95,
			MinCacheHitRate: 0.3,
		},
	})
	if err != nil {
		return err
	}
	for _, p := range paths {
		fmt.Println(p)
	}
	return nil
}

// MCPCmd groups MCP commands.
type MCPCmd struct {
	List MCPListCmd `cmd:"" help:"Connect to the configured MCP servers and list their tools."`
}

// MCPListCmd lists MCP tools.
type MCPListCmd struct {
	File string `help:"MCP configuration file; defaults to the configured path." type:"path"`
}

func (c *MCPListCmd) Run(ctx context.Context, cli *CLI) error {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return err
	}
	servers, err := mcp.LoadConfig(cmp.Or(c.File, cfg.MCP.ConfigPath))
	if err != nil {
		return err
	}

	logger := logging.FromContext(ctx)
	t := table.New().Border(lipgloss.NormalBorder()).Headers("SERVER", "TRANSPORT", "TOOLS")
	var errs []error
	for _, s := range servers {
		if !s.Enabled() {
			t.Row(s.Name, s.Transport, "(disabled)")
			continue
		}
		client, err := mcp.Connect(ctx, s, logger)
		if err != nil {
			t.Row(s.Name, s.Transport, "error: "+err.Error())
			errs = append(errs, err)
			continue
		}
		tools, err := client.ListTools(ctx)
		client.Close()
		if err != nil {
			t.Row(s.Name, s.Transport, "error: "+err.Error())
			errs = append(errs, err)
			continue
		}
		names := make([]string, 0, len(tools))
		for _, tl := range tools {
			if s.Allows(tl.Name) {
				names = append(names, tl.Name)
			}
		}
		t.Row(s.Name, s.Transport, strings.Join(names, "\n"))
	}
	fmt.Println(t.Render())
	return errors.Join(errs...)
}

// ExecCmd runs a file in the sandbox.
type ExecCmd struct {
	File     string        `arg:"" help:"Program to run." type:"existingfile"`
	Language string        `help:"Language; guessed from the file extension when empty."`
	Timeout  time.Duration `help:"Wall clock limit; defaults to the configured limit."`
	Local    bool          `help:"Run as a local process instead of in a container. Requires sandbox.allow_unsafe."`
}

func (c *ExecCmd) Run(ctx context.Context, cli *CLI) error {
	cfg, err := cli.load()
	if err != nil {
		return err
	}
	if c.Local {
		cfg.Sandbox.Backend = config.SandboxLocal
	}
	code, err := os.ReadFile(c.File)
	if err != nil {
		return err
	}

	exec, err := app.NewExecutor(ctx, cfg, logging.FromContext(ctx))
	if err != nil {
		return err
	}
	defer exec.Close()

	res, runErr := exec.Execute(ctx, &sandbox.Request{
		Language: cmp.Or(c.Language, strings.TrimPrefix(filepath.Ext(c.File), ".")),
		Code:     string(code),
		Timeout:  c.Timeout,
	})
	if res != nil {
		fmt.Fprint(os.Stdout, res.Stdout)
		fmt.Fprint(os.Stderr, res.Stderr)
		fmt.Fprintf(os.Stderr, "\nexit %d in %s, peak memory %s, peak cpu %.1f%%\n",
			res.ExitCode, res.Duration.Round(time.Millisecond), bytesString(res.Usage.MemoryBytes), res.Usage.CPUPercent)
	}
	if runErr != nil {
		return runErr
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("program exited with status %d", res.ExitCode)
	}
	return nil
}

func bytesString(n uint64) string {
	const unit = 1024
	if n < unit {
		return strconv.FormatUint(n, 10) + "B"
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
