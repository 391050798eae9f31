// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package agents

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/NickB03/vana/planner"
)

// ErrInvalidSpec is wrapped by every agent declaration error.
var ErrInvalidSpec = errors.New("invalid agent spec")

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// AgentSpec declares one agent.
type AgentSpec struct {
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description" yaml:"description"`
	Instruction string   `json:"instruction" yaml:"instruction"`
	Tools       []string `json:"tools,omitempty" yaml:"tools,omitempty"`
	SubAgents   []string `json:"sub_agents,omitempty" yaml:"sub_agents,omitempty"`

	// OutputKey stores the agent's final reply in session state under this key.
	OutputKey string `json:"output_key,omitempty" yaml:"output_key,omitempty"`
}

// Validate checks the fields of a single spec.
func (s AgentSpec) Validate() error {
	var errs []error
	switch {
	case !identifier.MatchString(s.Name):
		errs = append(errs, fmt.Errorf("%w: name %q is not an identifier", ErrInvalidSpec, s.Name))
	case s.Name == "user":
		errs = append(errs, fmt.Errorf("%w: name %q is reserved", ErrInvalidSpec, s.Name))
	}
	if s.Description == "" {
		errs = append(errs, fmt.Errorf("%w: %s: description is required", ErrInvalidSpec, s.Name))
	}
	if s.Instruction == "" {
		errs = append(errs, fmt.Errorf("%w: %s: instruction is required", ErrInvalidSpec, s.Name))
	}
	if s.OutputKey != "" && !identifier.MatchString(s.OutputKey) {
		errs = append(errs, fmt.Errorf("%w: %s: output key %q is not an identifier", ErrInvalidSpec, s.Name, s.OutputKey))
	}
	return errors.Join(errs...)
}

// DefaultSpecs returns the orchestrator and the five specialists.
func DefaultSpecs() []AgentSpec {
	return []AgentSpec{
		{
			Name:        planner.ArchitectureAgent,
			Description: "Designs system architecture, data models, APIs and cloud integrations.",
			Instruction: architectureInstruction,
			Tools:       []string{ToolSearchKnowledge, ToolPlanTask},
			OutputKey:   "architecture_analysis",
		},
		{
			Name:        planner.UIAgent,
			Description: "Designs user interfaces and writes accessible frontend code.",
			Instruction: uiInstruction,
			Tools:       []string{ToolSearchKnowledge},
			OutputKey:   "ui_analysis",
		},
		{
			Name:        planner.DevOpsAgent,
			Description: "Handles deployment, infrastructure, CI/CD and monitoring.",
			Instruction: devopsInstruction,
			Tools:       []string{ToolExecuteCode, ToolHealthStatus, ToolSearchKnowledge},
			OutputKey:   "devops_analysis",
		},
		{
			Name:        planner.QAAgent,
			Description: "Designs test strategies, writes tests and reviews work for quality.",
			Instruction: qaInstruction,
			Tools:       []string{ToolExecuteCode, ToolSearchKnowledge},
			OutputKey:   "qa_analysis",
		},
		{
			Name:        planner.ResearchAgent,
			Description: "Finds and summarises information from the knowledge base and documentation.",
			Instruction: researchInstruction,
			Tools:       []string{ToolSearchKnowledge, ToolVectorSearch, ToolRetrieveRAG, ToolMCP},
			OutputKey:   "research_findings",
		},
		{
			Name:        planner.OrchestratorAgent,
			Description: "Orchestrates the VANA specialist team.",
			Instruction: orchestratorInstruction,
			Tools: []string{
				ToolEcho, ToolHealthStatus, ToolPlanTask, ToolCacheStats, ToolListAgents, ToolSearchKnowledge,
			},
			SubAgents: []string{
				planner.ArchitectureAgent,
				planner.UIAgent,
				planner.DevOpsAgent,
				planner.QAAgent,
				planner.ResearchAgent,
			},
		},
	}
}
