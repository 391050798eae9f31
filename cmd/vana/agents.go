// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/NickB03/vana/agents"
	"github.com/NickB03/vana/internal/app"
	"github.com/NickB03/vana/pkg/logging"
	"github.com/NickB03/vana/planner"
)

// ChatCmd sends one message to the agent team.
type ChatCmd struct {
	Message []string `arg:"" help:"Message to send."`
	Session string   `help:"Session ID to continue."`
	User    string   `help:"User ID." default:"cli"`
}

func (c *ChatCmd) Run(ctx context.Context, cli *CLI) error {
	cfg, err := cli.load()
	if err != nil {
		return err
	}
	a, err := app.New(ctx, cfg, logging.FromContext(ctx))
	if err != nil {
		return err
	}
	defer a.Close()

	reply, err := a.Runner.Chat(ctx, c.User, c.Session, strings.Join(c.Message, " "))
	if err != nil {
		return err
	}
	fmt.Printf("[%s] %s\n\nsession: %s\n", reply.Agent, reply.Text, reply.SessionID)
	return nil
}

// AgentsCmd lists the agents.
type AgentsCmd struct {
	ExpectAgents int  `name:"expect-agents" help:"Fail unless the team has this many agents." default:"6"`
	ExpectTools  int  `name:"expect-tools" help:"Fail unless the team uses this many distinct tools."`
	JSON         bool `help:"Print JSON instead of a table."`
}

func (c *AgentsCmd) Run(ctx context.Context, cli *CLI) error {
	cfg, err := cli.load()
	if err != nil {
		return err
	}
	a, err := app.New(ctx, cfg, logging.FromContext(ctx))
	if err != nil {
		return err
	}
	defer a.Close()

	infos := a.System.Agents()
	if c.JSON {
		data, err := sonic.ConfigStd.MarshalIndent(infos, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
	} else {
		fmt.Println(agentTable(infos))
	}

	counts := a.System.Counts()
	fmt.Printf("%d agents, %d tools\n", counts.Agents, counts.Tools)
	return a.System.Check(agents.Counts{Agents: c.ExpectAgents, Tools: c.ExpectTools})
}

func agentTable(infos []agents.AgentInfo) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		Headers("AGENT", "TOOLS", "SUB-AGENTS").
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return lipgloss.NewStyle().Bold(true).Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
	for _, in := range infos {
		t.Row(in.Name, strings.Join(in.Tools, "\n"), strings.Join(in.SubAgents, "\n"))
	}
	return t.Render()
}

// PlanCmd decomposes a task.
type PlanCmd struct {
	Task []string `arg:"" help:"Task to plan."`
	JSON bool     `help:"Print JSON instead of Markdown."`
}

func (c *PlanCmd) Run() error {
	p := planner.New()
	task := strings.Join(c.Task, " ")
	plan := p.Decompose(task)
	if c.JSON {
		data, err := sonic.ConfigStd.MarshalIndent(struct {
			planner.Plan
			Route string `json:"route"`
		}{plan, p.Route(task)}, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(os.Stdout, string(data))
		return err
	}
	fmt.Print(plan.Markdown())
	fmt.Printf("\nRoute: %s\n", p.Route(task))
	return nil
}
