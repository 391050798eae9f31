// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package verify

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
)

// CheckResult is the outcome of one check.
type CheckResult struct {
	Name       string `json:"name"`
	Passed     bool   `json:"passed"`
	Message    string `json:"message"`
	DurationMS int64  `json:"duration_ms"`
}

// Report summarises a verification run.
type Report struct {
	Target     string        `json:"target"`
	StartedAt  time.Time     `json:"started_at"`
	DurationMS int64         `json:"duration_ms"`
	Passed     int           `json:"passed"`
	Failed     int           `json:"failed"`
	Results    []CheckResult `json:"results"`
}

func (r *Report) add(res CheckResult) {
	r.Results = append(r.Results, res)
	if res.Passed {
		r.Passed++
	} else {
		r.Failed++
	}
}

// OK reports whether every check passed.
func (r *Report) OK() bool {
	return r.Failed == 0 && r.Passed > 0
}

// WriteJSON writes r as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	return json.MarshalWrite(w, r, json.Deterministic(true), jsontext.WithIndent("  "))
}

// Save writes the JSON report to path.
func (r *Report) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	if err := r.WriteJSON(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write report: %w", err)
	}
	return f.Close()
}

// LoadReport reads a report written by [Report.Save].
func LoadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse report %s: %w", path, err)
	}
	return &r, nil
}

var (
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#8BC34A")).Bold(true)
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#E53935")).Bold(true)
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

// Table renders the results as a bordered status table followed by a summary line.
func (r *Report) Table() string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("CHECK", "STATUS", "TIME", "DETAILS").
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	for _, res := range r.Results {
		status := passStyle.Render("PASS")
		if !res.Passed {
			status = failStyle.Render("FAIL")
		}
		t.Row(res.Name, status, strconv.FormatInt(res.DurationMS, 10)+"ms", res.Message)
	}

	summary := passStyle.Render(fmt.Sprintf("%d passed", r.Passed))
	if r.Failed > 0 {
		summary += ", " + failStyle.Render(fmt.Sprintf("%d failed", r.Failed))
	}
	return fmt.Sprintf("Verification of %s\n%s\n%s in %dms\n", r.Target, t.Render(), summary, r.DurationMS)
}
