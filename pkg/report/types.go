// Package report writes run results to disk.
//
// Layout:
//   - report.json: index with run id, summary and one entry per device run
//   - runs/run-XXX.json: per-run step details
//   - logins.json: data-driven login outcomes, when any
//   - metrics.prom: Prometheus text format for the node_exporter textfile collector
package report

import (
	"time"

	"github.com/devicelab-dev/appscript/pkg/core"
	"github.com/devicelab-dev/appscript/pkg/dataset"
)

// Version is the report schema version.
const Version = "1.0.0"

// File names inside the output directory.
const (
	IndexFile   = "report.json"
	LoginsFile  = "logins.json"
	MetricsFile = "metrics.prom"
	RunsDir     = "runs"
)

// Index is the main report file.
type Index struct {
	Version   string          `json:"version"`
	RunID     string          `json:"runId"`
	Status    core.StepStatus `json:"status"`
	StartTime time.Time       `json:"startTime"`
	EndTime   time.Time       `json:"endTime"`
	Duration  int64           `json:"duration"` // milliseconds
	Tool      ToolInfo        `json:"tool"`
	Summary   Summary         `json:"summary"`
	Runs      []RunEntry      `json:"runs"`
}

// ToolInfo identifies the program that wrote the report.
type ToolInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Summary contains aggregated counts over runs.
type Summary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Errored int `json:"errored"`
}

// RunEntry is the index entry for one scenario run on one device.
type RunEntry struct {
	Index     int             `json:"index"`
	ID        string          `json:"id"`
	Scenario  string          `json:"scenario"`
	Device    string          `json:"device,omitempty"`
	Platform  string          `json:"platform,omitempty"`
	Status    core.StepStatus `json:"status"`
	StartTime time.Time       `json:"startTime"`
	Duration  int64           `json:"duration"` // milliseconds
	DataFile  string          `json:"dataFile"`
	Steps     StepSummary     `json:"steps"`
	Error     string          `json:"error,omitempty"`
	Category  string          `json:"errorCategory,omitempty"`
}

// StepSummary contains step counts for a run.
type StepSummary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// RunDetail contains full step results of one run.
type RunDetail struct {
	ID       string            `json:"id"`
	Scenario string            `json:"scenario"`
	Device   string            `json:"device,omitempty"`
	Steps    []core.StepResult `json:"steps"`
}

// LoginReport is the logins.json file.
type LoginReport struct {
	RunID   string       `json:"runId"`
	Summary Summary      `json:"summary"`
	Cases   []LoginEntry `json:"cases"`
}

// LoginEntry is one login case outcome.
type LoginEntry struct {
	Case     dataset.LoginCase `json:"case"`
	Status   core.StepStatus   `json:"status"`
	Actual   string            `json:"actual"`
	Bug      string            `json:"bug,omitempty"`
	Duration int64             `json:"duration"` // milliseconds
	Error    string            `json:"error,omitempty"`
}
