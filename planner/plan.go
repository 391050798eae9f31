// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package planner

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/NickB03/vana/internal/pool"
)

// ErrCycle is returned by [Plan.Order] when subtask dependencies form a cycle.
var ErrCycle = errors.New("subtask dependencies form a cycle")

// Subtask is one step of a [Plan].
type Subtask struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Agent       string `json:"agent"`
	DependsOn   []int  `json:"depends_on,omitempty"`
}

// Plan is the decomposition of a task.
type Plan struct {
	Task     string    `json:"task"`
	Category string    `json:"category"`
	Subtasks []Subtask `json:"subtasks"`
}

// Order returns the subtasks in dependency order. Ties are broken by ID.
func (p Plan) Order() ([]Subtask, error) {
	byID := make(map[int]Subtask, len(p.Subtasks))
	indegree := make(map[int]int, len(p.Subtasks))
	dependents := make(map[int][]int)
	for _, st := range p.Subtasks {
		if _, dup := byID[st.ID]; dup {
			return nil, fmt.Errorf("duplicate subtask id %d", st.ID)
		}
		byID[st.ID] = st
	}
	for _, st := range p.Subtasks {
		for _, dep := range st.DependsOn {
			if _, ok := byID[dep]; !ok {
				return nil, fmt.Errorf("subtask %d depends on unknown subtask %d", st.ID, dep)
			}
			indegree[st.ID]++
			dependents[dep] = append(dependents[dep], st.ID)
		}
	}

	var ready []int
	for id := range byID {
		if indegree[id] == 0 {
			ready = append(ready, id)
		}
	}

	out := make([]Subtask, 0, len(p.Subtasks))
	for len(ready) > 0 {
		slices.Sort(ready)
		id := ready[0]
		ready = ready[1:]
		out = append(out, byID[id])
		for _, next := range dependents[id] {
			indegree[next]--
			if indegree[next] == 0 {
				ready = append(ready, next)
			}
		}
	}

	if len(out) != len(p.Subtasks) {
		return nil, ErrCycle
	}
	return out, nil
}

// Agents returns the distinct agents of the plan in first-use order.
func (p Plan) Agents() []string {
	var agents []string
	for _, st := range p.Subtasks {
		if !slices.Contains(agents, st.Agent) {
			agents = append(agents, st.Agent)
		}
	}
	return agents
}

// Markdown renders the plan as a numbered checklist in dependency order.
func (p Plan) Markdown() string {
	steps, err := p.Order()
	if err != nil {
		steps = p.Subtasks
	}

	b := pool.String.Get()
	defer pool.String.Put(b)
	fmt.Fprintf(b, "## Plan: %s\n\n", p.Task)
	fmt.Fprintf(b, "Category: %s\n\n", p.Category)
	for i, st := range steps {
		fmt.Fprintf(b, "%d. [ ] **%s** (%s): %s", i+1, st.Title, st.Agent, st.Description)
		if len(st.DependsOn) > 0 {
			deps := make([]string, len(st.DependsOn))
			for j, d := range st.DependsOn {
				deps[j] = fmt.Sprintf("#%d", d)
			}
			fmt.Fprintf(b, " _(after %s)_", strings.Join(deps, ", "))
		}
		b.WriteByte('\n')
	}
	return b.String()
}
