// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package planner decomposes a free-form task into an ordered list of subtasks, each
// assigned to a specialist agent.
//
// Decomposition is rule based: the task is lower-cased and matched against an ordered list
// of keyword rules; the first rule with a matching keyword supplies the subtask template.
// Tasks matching no rule get a generic analyse/execute/review plan.
//
//	p := planner.New()
//	plan := p.Decompose("Design the service architecture for checkout")
//	steps, err := plan.Order()
//
// [Plan.Markdown] renders the plan as the numbered checklist returned by the plan_task tool.
package planner
