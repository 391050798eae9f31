// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package agents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"google.golang.org/adk/agent"
	"google.golang.org/adk/agent/llmagent"
	"google.golang.org/adk/agent/workflowagents/sequentialagent"
	"google.golang.org/adk/model"
	"google.golang.org/adk/tool"

	"github.com/NickB03/vana/pkg/logging"
	"github.com/NickB03/vana/planner"
)

// AgentInfo describes a built agent.
type AgentInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tools       []string `json:"tools"`
	SubAgents   []string `json:"sub_agents,omitempty"`
}

// Counts is the expected size of a [System].
type Counts struct {
	Agents int `json:"agents"`
	Tools  int `json:"tools"`
}

// System is a built agent hierarchy.
type System struct {
	llm     model.LLM
	root    agent.Agent
	specs   map[string]AgentSpec
	agents  map[string]agent.Agent
	tools   map[string]tool.Tool
	toolbox *Toolbox
	info    []AgentInfo
}

// Build validates specs and builds them into ADK agents, children before parents. Exactly one
// spec must be nobody's sub-agent; it becomes the root.
func Build(ctx context.Context, llm model.LLM, tb *Toolbox, specs []AgentSpec) (*System, error) {
	if llm == nil {
		return nil, errors.New("agents: model is required")
	}
	if tb == nil {
		tb = &Toolbox{}
	}

	builtin, err := tb.Tools()
	if err != nil {
		return nil, err
	}
	for _, t := range tb.Extra {
		if _, dup := builtin[t.Name()]; dup {
			return nil, fmt.Errorf("%w: extra tool %q shadows a built-in tool", ErrInvalidSpec, t.Name())
		}
	}

	byName, root, err := validateGraph(specs, builtin)
	if err != nil {
		return nil, err
	}

	s := &System{
		llm:     llm,
		specs:   byName,
		agents:  make(map[string]agent.Agent, len(specs)),
		tools:   make(map[string]tool.Tool),
		toolbox: tb,
	}
	for _, name := range buildOrder(byName, root) {
		spec := byName[name]
		tools := s.resolveTools(spec, builtin)
		subs := make([]agent.Agent, len(spec.SubAgents))
		for i, sub := range spec.SubAgents {
			subs[i] = s.agents[sub]
		}

		a, err := newLLMAgent(llm, spec, spec.Instruction, tools, subs)
		if err != nil {
			return nil, fmt.Errorf("build agent %s: %w", name, err)
		}
		s.agents[name] = a
		for _, t := range tools {
			s.tools[t.Name()] = t
		}
		s.info = append(s.info, AgentInfo{
			Name:        spec.Name,
			Description: spec.Description,
			Tools:       toolNames(tools),
			SubAgents:   slices.Clone(spec.SubAgents),
		})
	}
	s.root = s.agents[root]
	slices.SortFunc(s.info, func(a, b AgentInfo) int {
		switch {
		case a.Name == root:
			return -1
		case b.Name == root:
			return 1
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		}
		return 0
	})
	tb.agents = s.Agents

	logging.FromContext(ctx).InfoContext(ctx, "built agent system",
		slog.String("root", root),
		slog.Int("agents", len(s.agents)),
		slog.Int("tools", len(s.tools)),
		slog.String("model", llm.Name()),
	)
	return s, nil
}

func newLLMAgent(llm model.LLM, spec AgentSpec, instruction string, tools []tool.Tool, subs []agent.Agent) (agent.Agent, error) {
	return llmagent.New(llmagent.Config{
		Name:        spec.Name,
		Description: spec.Description,
		Model:       llm,
		Instruction: instruction,
		Tools:       tools,
		SubAgents:   subs,
		OutputKey:   spec.OutputKey,
	})
}

func (s *System) resolveTools(spec AgentSpec, builtin map[string]tool.Tool) []tool.Tool {
	var tools []tool.Tool
	for _, name := range spec.Tools {
		if name == ToolMCP {
			tools = append(tools, s.toolbox.Extra...)
			continue
		}
		tools = append(tools, builtin[name])
	}
	return tools
}

func toolNames(tools []tool.Tool) []string {
	names := make([]string, len(tools))
	for i, t := range tools {
		names[i] = t.Name()
	}
	return names
}

// validateGraph checks every spec and the shape of the hierarchy and returns the specs by name
// together with the root's name.
func validateGraph(specs []AgentSpec, builtin map[string]tool.Tool) (map[string]AgentSpec, string, error) {
	var errs []error
	byName := make(map[string]AgentSpec, len(specs))
	for _, s := range specs {
		if err := s.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if _, dup := byName[s.Name]; dup {
			errs = append(errs, fmt.Errorf("%w: duplicate agent %q", ErrInvalidSpec, s.Name))
			continue
		}
		byName[s.Name] = s
	}

	parent := make(map[string]string)
	for _, s := range specs {
		for _, t := range s.Tools {
			if _, ok := builtin[t]; !ok && t != ToolMCP {
				errs = append(errs, fmt.Errorf("%w: %s: unknown tool %q", ErrInvalidSpec, s.Name, t))
			}
		}
		for _, sub := range s.SubAgents {
			if _, ok := byName[sub]; !ok {
				errs = append(errs, fmt.Errorf("%w: %s: unknown sub-agent %q", ErrInvalidSpec, s.Name, sub))
				continue
			}
			if p, ok := parent[sub]; ok {
				errs = append(errs, fmt.Errorf("%w: %s is a sub-agent of both %s and %s", ErrInvalidSpec, sub, p, s.Name))
				continue
			}
			parent[sub] = s.Name
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, "", err
	}

	var roots []string
	for name := range byName {
		if _, ok := parent[name]; !ok {
			roots = append(roots, name)
		}
	}
	slices.Sort(roots)
	if len(roots) != 1 {
		return nil, "", fmt.Errorf("%w: want exactly one root agent, have %v", ErrInvalidSpec, roots)
	}

	// with single parents and one root, anything unreachable from the root is on a cycle
	reached := buildOrder(byName, roots[0])
	if len(reached) != len(byName) {
		var cyclic []string
		for name := range byName {
			if !slices.Contains(reached, name) {
				cyclic = append(cyclic, name)
			}
		}
		slices.Sort(cyclic)
		return nil, "", fmt.Errorf("%w: sub-agent cycle through %v", ErrInvalidSpec, cyclic)
	}
	return byName, roots[0], nil
}

// buildOrder returns the agents reachable from root in post-order.
func buildOrder(byName map[string]AgentSpec, root string) []string {
	var order []string
	seen := make(map[string]bool)
	var visit func(string)
	visit = func(name string) {
		if seen[name] {
			return
		}
		seen[name] = true
		for _, sub := range byName[name].SubAgents {
			visit(sub)
		}
		order = append(order, name)
	}
	visit(root)
	return order
}

// Root returns the root agent.
func (s *System) Root() agent.Agent {
	return s.root
}

// Agent returns a built agent by name.
func (s *System) Agent(name string) (agent.Agent, bool) {
	a, ok := s.agents[name]
	return a, ok
}

// Agents describes every agent, root first, the rest by name.
func (s *System) Agents() []AgentInfo {
	out := make([]AgentInfo, len(s.info))
	for i, in := range s.info {
		out[i] = in
		out[i].Tools = slices.Clone(in.Tools)
		out[i].SubAgents = slices.Clone(in.SubAgents)
	}
	return out
}

// Tools returns the names of the distinct tools used by the system, sorted.
func (s *System) Tools() []string {
	names := make([]string, 0, len(s.tools))
	for name := range s.tools {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Counts returns the number of agents and distinct tools.
func (s *System) Counts() Counts {
	return Counts{Agents: len(s.agents), Tools: len(s.tools)}
}

// Check compares the system against expected counts. Zero fields are not checked.
func (s *System) Check(expected Counts) error {
	got := s.Counts()
	var errs []error
	if expected.Agents > 0 && got.Agents != expected.Agents {
		errs = append(errs, fmt.Errorf("agent count is %d, expected %d", got.Agents, expected.Agents))
	}
	if expected.Tools > 0 && got.Tools != expected.Tools {
		errs = append(errs, fmt.Errorf("tool count is %d, expected %d", got.Tools, expected.Tools))
	}
	return errors.Join(errs...)
}

// Workflow builds a standalone sequential pipeline around one specialist: a planner writes
// the plan to session state, the specialist executes it and, unless the specialist is the
// QA agent, a reviewer checks the specialist's output.
func (s *System) Workflow(specialist string) (agent.Agent, error) {
	spec, ok := s.specs[specialist]
	if !ok {
		return nil, fmt.Errorf("unknown agent %q", specialist)
	}
	if spec.OutputKey == "" {
		return nil, fmt.Errorf("agent %q has no output key to review", specialist)
	}
	if len(spec.SubAgents) > 0 {
		return nil, fmt.Errorf("agent %q is not a specialist", specialist)
	}

	planTool, ok := s.tools[ToolPlanTask]
	if !ok {
		all, err := s.toolbox.Tools()
		if err != nil {
			return nil, err
		}
		planTool = all[ToolPlanTask]
	}

	plannerAgent, err := newLLMAgent(s.llm, AgentSpec{
		Name:        "workflow_planner",
		Description: "Plans the work for " + specialist + ".",
		OutputKey:   "plan",
	}, workflowPlannerInstruction, []tool.Tool{planTool}, nil)
	if err != nil {
		return nil, err
	}

	worker, err := newLLMAgent(s.llm, spec, spec.Instruction+"\nFollow this plan:\n{plan}\n", s.resolveTools(spec, s.tools), nil)
	if err != nil {
		return nil, err
	}

	steps := []agent.Agent{plannerAgent, worker}
	if specialist != planner.QAAgent {
		reviewer, err := newLLMAgent(s.llm, AgentSpec{
			Name:        "workflow_reviewer",
			Description: "Reviews the output of " + specialist + ".",
			OutputKey:   "review",
		}, workflowReviewInstruction+"{"+spec.OutputKey+"}\n", nil, nil)
		if err != nil {
			return nil, err
		}
		steps = append(steps, reviewer)
	}

	return sequentialagent.New(sequentialagent.Config{
		AgentConfig: agent.Config{
			Name:        specialist + "_workflow",
			Description: "Plan, execute and review with " + specialist + ".",
			SubAgents:   steps,
		},
	})
}
