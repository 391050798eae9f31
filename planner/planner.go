// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package planner

import (
	"slices"
	"strings"
	"unicode"
)

// Specialist agent names.
const (
	ArchitectureAgent = "architecture_specialist"
	UIAgent           = "ui_specialist"
	DevOpsAgent       = "devops_specialist"
	QAAgent           = "qa_specialist"
	ResearchAgent     = "research_specialist"
	OrchestratorAgent = "vana"
)

// Plan categories.
const (
	CategoryArchitecture = "architecture"
	CategoryUI           = "ui"
	CategoryDevOps       = "devops"
	CategoryQA           = "qa"
	CategoryResearch     = "research"
	CategoryGeneral      = "general"
)

// Rule maps task keywords to a subtask template.
//
// Keywords are lower case. Keywords of up to three letters, such as "ui" or "ci", only match
// whole words; longer keywords match any substring, so "architect" matches "architecture".
type Rule struct {
	Category string
	Keywords []string
	// Primary is the specialist owning tasks of this category.
	Primary string
	Steps   []Subtask
}

// shortKeyword is the length up to which a keyword must match a whole word; longer keywords
// match anywhere in the task.
const shortKeyword = 3

// matches reports whether the lower-cased task contains any keyword. words is the task split
// into words.
func (r Rule) matches(task string, words []string) bool {
	for _, kw := range r.Keywords {
		if len(kw) <= shortKeyword {
			if slices.Contains(words, kw) {
				return true
			}
			continue
		}
		if strings.Contains(task, kw) {
			return true
		}
	}
	return false
}

func splitWords(task string) []string {
	return strings.FieldsFunc(task, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// TaskPlanner decomposes tasks with an ordered list of keyword rules.
type TaskPlanner struct {
	rules    []Rule
	fallback Rule
}

// New returns a [TaskPlanner] with the default rules.
func New() *TaskPlanner {
	return NewWithRules(DefaultRules(), generalRule())
}

// NewWithRules returns a [TaskPlanner] with custom rules. fallback is used when no rule matches.
func NewWithRules(rules []Rule, fallback Rule) *TaskPlanner {
	return &TaskPlanner{rules: rules, fallback: fallback}
}

func (p *TaskPlanner) match(task string) Rule {
	lower := strings.ToLower(task)
	words := splitWords(lower)
	for _, r := range p.rules {
		if r.matches(lower, words) {
			return r
		}
	}
	return p.fallback
}

// Decompose returns the plan of the first rule matching task.
func (p *TaskPlanner) Decompose(task string) Plan {
	rule := p.match(task)
	steps := make([]Subtask, len(rule.Steps))
	for i, st := range rule.Steps {
		st.DependsOn = append([]int(nil), st.DependsOn...)
		steps[i] = st
	}
	return Plan{Task: task, Category: rule.Category, Subtasks: steps}
}

// Route returns the specialist best suited to task, or the orchestrator when no rule matches.
func (p *TaskPlanner) Route(task string) string {
	if r := p.match(task); r.Primary != "" {
		return r.Primary
	}
	return OrchestratorAgent
}

// DefaultRules returns the built-in rules in match order.
func DefaultRules() []Rule {
	return []Rule{
		{
			Category: CategoryArchitecture,
			Primary:  ArchitectureAgent,
			Keywords: []string{"design", "architect"},
			Steps: []Subtask{
				{ID: 1, Title: "Gather requirements", Description: "Collect functional and non-functional requirements and constraints.", Agent: ResearchAgent},
				{ID: 2, Title: "Design system architecture", Description: "Define components, boundaries, data flow and integration points.", Agent: ArchitectureAgent, DependsOn: []int{1}},
				{ID: 3, Title: "Select technologies", Description: "Choose frameworks, storage and hosting that satisfy the requirements.", Agent: ArchitectureAgent, DependsOn: []int{2}},
				{ID: 4, Title: "Plan deployment topology", Description: "Describe environments, scaling and infrastructure for the design.", Agent: DevOpsAgent, DependsOn: []int{2}},
				{ID: 5, Title: "Review the design", Description: "Check the design against requirements and identify risks.", Agent: QAAgent, DependsOn: []int{3, 4}},
			},
		},
		{
			Category: CategoryUI,
			Primary:  UIAgent,
			Keywords: []string{"ui", "interface", "frontend"},
			Steps: []Subtask{
				{ID: 1, Title: "Define user flows", Description: "Identify users, goals and the screens they move through.", Agent: UIAgent},
				{ID: 2, Title: "Design components", Description: "Design the layout, components and visual system.", Agent: UIAgent, DependsOn: []int{1}},
				{ID: 3, Title: "Define API contracts", Description: "Specify the backend endpoints the interface needs.", Agent: ArchitectureAgent, DependsOn: []int{1}},
				{ID: 4, Title: "Accessibility and usability review", Description: "Verify accessibility and test the flows with realistic scenarios.", Agent: QAAgent, DependsOn: []int{2, 3}},
			},
		},
		{
			Category: CategoryDevOps,
			Primary:  DevOpsAgent,
			Keywords: []string{"deploy", "infrastructure", "ci"},
			Steps: []Subtask{
				{ID: 1, Title: "Assess infrastructure", Description: "Inventory the services, environments and dependencies to deploy.", Agent: DevOpsAgent},
				{ID: 2, Title: "Build the pipeline", Description: "Set up build, test and release stages for continuous delivery.", Agent: DevOpsAgent, DependsOn: []int{1}},
				{ID: 3, Title: "Configure monitoring", Description: "Add health checks, metrics, alerting and log collection.", Agent: DevOpsAgent, DependsOn: []int{1}},
				{ID: 4, Title: "Verify the deployment", Description: "Run smoke tests against the deployed service and plan rollback.", Agent: QAAgent, DependsOn: []int{2, 3}},
			},
		},
		{
			Category: CategoryQA,
			Primary:  QAAgent,
			Keywords: []string{"test", "qa", "quality"},
			Steps: []Subtask{
				{ID: 1, Title: "Define test strategy", Description: "Decide the scope, levels and tooling of testing.", Agent: QAAgent},
				{ID: 2, Title: "Write test cases", Description: "Cover critical paths, edge cases and failure modes.", Agent: QAAgent, DependsOn: []int{1}},
				{ID: 3, Title: "Automate in CI", Description: "Run the suite automatically on every change.", Agent: DevOpsAgent, DependsOn: []int{2}},
				{ID: 4, Title: "Report quality metrics", Description: "Summarise coverage, defects and release readiness.", Agent: QAAgent, DependsOn: []int{3}},
			},
		},
		{
			Category: CategoryResearch,
			Primary:  ResearchAgent,
			Keywords: []string{"research", "analy"},
			Steps: []Subtask{
				{ID: 1, Title: "Frame the question", Description: "State the question, scope and success criteria.", Agent: ResearchAgent},
				{ID: 2, Title: "Collect sources", Description: "Search the knowledge base and external sources for evidence.", Agent: ResearchAgent, DependsOn: []int{1}},
				{ID: 3, Title: "Analyse findings", Description: "Compare, validate and synthesise the collected evidence.", Agent: ResearchAgent, DependsOn: []int{2}},
				{ID: 4, Title: "Summarise recommendations", Description: "Report conclusions with citations and open questions.", Agent: ResearchAgent, DependsOn: []int{3}},
			},
		},
	}
}

func generalRule() Rule {
	return Rule{
		Category: CategoryGeneral,
		Steps: []Subtask{
			{ID: 1, Title: "Analyse the task", Description: "Clarify the goal, inputs and expected output.", Agent: OrchestratorAgent},
			{ID: 2, Title: "Execute", Description: "Carry out the work with the most suitable specialist.", Agent: OrchestratorAgent, DependsOn: []int{1}},
			{ID: 3, Title: "Review the result", Description: "Check the output for correctness and completeness.", Agent: QAAgent, DependsOn: []int{2}},
		},
	}
}
