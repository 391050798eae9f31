// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package planner_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/NickB03/vana/planner"
)

func TestDecompose(t *testing.T) {
	p := planner.New()

	tests := []struct {
		task     string
		category string
	}{
		{task: "Design a payment system", category: planner.CategoryArchitecture},
		{task: "Please ARCHITECT the backend", category: planner.CategoryArchitecture},
		{task: "Build a new frontend for the dashboard", category: planner.CategoryUI},
		{task: "Deploy the service to Cloud Run", category: planner.CategoryDevOps},
		{task: "Improve quality gates", category: planner.CategoryQA},
		{task: "Research vector database options", category: planner.CategoryResearch},
		{task: "Write a haiku", category: planner.CategoryGeneral},
		// first matching rule wins
		{task: "Design a test plan", category: planner.CategoryArchitecture},
	}
	for _, tt := range tests {
		t.Run(tt.task, func(t *testing.T) {
			plan := p.Decompose(tt.task)
			if plan.Category != tt.category {
				t.Errorf("Decompose(%q).Category = %q, want %q", tt.task, plan.Category, tt.category)
			}
			if plan.Task != tt.task {
				t.Errorf("Task = %q", plan.Task)
			}
			if len(plan.Subtasks) == 0 {
				t.Fatal("no subtasks")
			}
			if _, err := plan.Order(); err != nil {
				t.Errorf("Order() error = %v", err)
			}
		})
	}
}

func TestDecomposeShortKeywords(t *testing.T) {
	p := planner.New()

	tests := []struct {
		task     string
		category string
	}{
		{task: "Build an API client", category: planner.CategoryGeneral},
		{task: "Research the specifics of gRPC", category: planner.CategoryResearch},
		{task: "Polish the UI", category: planner.CategoryUI},
		{task: "Set up CI/CD for the repo", category: planner.CategoryDevOps},
		{task: "Run QA on the release", category: planner.CategoryQA},
		{task: "Write an API spec in a quick circle", category: planner.CategoryGeneral},
		// long keywords still match inside words
		{task: "Review the architecture", category: planner.CategoryArchitecture},
		{task: "Analysis of latency", category: planner.CategoryResearch},
	}
	for _, tt := range tests {
		t.Run(tt.task, func(t *testing.T) {
			if got := p.Decompose(tt.task).Category; got != tt.category {
				t.Errorf("Decompose(%q).Category = %q, want %q", tt.task, got, tt.category)
			}
		})
	}
}

func TestDecomposeReturnsCopies(t *testing.T) {
	p := planner.New()
	a := p.Decompose("design x")
	a.Subtasks[1].DependsOn[0] = 99
	b := p.Decompose("design x")
	if b.Subtasks[1].DependsOn[0] != 1 {
		t.Error("mutating a plan changed the planner's template")
	}
}

func TestRoute(t *testing.T) {
	p := planner.New()
	tests := map[string]string{
		"design the schema":        planner.ArchitectureAgent,
		"deploy to prod":           planner.DevOpsAgent,
		"frontend polish":          planner.UIAgent,
		"what's the weather today": planner.OrchestratorAgent,
	}
	for task, want := range tests {
		if got := p.Route(task); got != want {
			t.Errorf("Route(%q) = %q, want %q", task, got, want)
		}
	}
}

func TestOrder(t *testing.T) {
	plan := planner.Plan{Subtasks: []planner.Subtask{
		{ID: 3, Title: "c", DependsOn: []int{1, 2}},
		{ID: 2, Title: "b", DependsOn: []int{1}},
		{ID: 1, Title: "a"},
		{ID: 4, Title: "d"},
	}}
	steps, err := plan.Order()
	if err != nil {
		t.Fatalf("Order() error = %v", err)
	}
	var ids []int
	for _, st := range steps {
		ids = append(ids, st.ID)
	}
	if diff := cmp.Diff([]int{1, 2, 3, 4}, ids); diff != "" {
		t.Errorf("Order() mismatch (-want +got):\n%s", diff)
	}
}

func TestOrderErrors(t *testing.T) {
	tests := []struct {
		name string
		plan planner.Plan
		is   error
	}{
		{name: "cycle", plan: planner.Plan{Subtasks: []planner.Subtask{
			{ID: 1, DependsOn: []int{2}},
			{ID: 2, DependsOn: []int{1}},
		}}, is: planner.ErrCycle},
		{name: "unknown dependency", plan: planner.Plan{Subtasks: []planner.Subtask{{ID: 1, DependsOn: []int{7}}}}},
		{name: "duplicate id", plan: planner.Plan{Subtasks: []planner.Subtask{{ID: 1}, {ID: 1}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.plan.Order()
			if err == nil {
				t.Fatal("Order() error = nil")
			}
			if tt.is != nil && !errors.Is(err, tt.is) {
				t.Errorf("Order() error = %v, want %v", err, tt.is)
			}
		})
	}
}

func TestMarkdown(t *testing.T) {
	md := planner.New().Decompose("deploy the api").Markdown()
	for _, want := range []string{
		"## Plan: deploy the api",
		"Category: devops",
		"1. [ ] **Assess infrastructure** (devops_specialist)",
		"_(after #2, #3)_",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("Markdown() missing %q:\n%s", want, md)
		}
	}
}

func TestAgents(t *testing.T) {
	got := planner.New().Decompose("design").Agents()
	want := []string{planner.ResearchAgent, planner.ArchitectureAgent, planner.DevOpsAgent, planner.QAAgent}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Agents() mismatch (-want +got):\n%s", diff)
	}
}
