package report

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/devicelab-dev/appscript/pkg/core"
)

// BuilderConfig contains metadata written into the index.
type BuilderConfig struct {
	RunID       string // Generated when empty
	ToolName    string
	ToolVersion string
	Now         func() time.Time
}

// Build creates the index and per-run details from results.
func Build(results []*core.RunResult, cfg BuilderConfig) (*Index, []RunDetail) {
	now := time.Now
	if cfg.Now != nil {
		now = cfg.Now
	}
	runID := cfg.RunID
	if runID == "" {
		runID = newRunID()
	}

	index := &Index{
		Version: Version,
		RunID:   runID,
		Status:  core.StatusPassed,
		EndTime: now(),
		Tool: ToolInfo{
			Name:    cfg.ToolName,
			Version: cfg.ToolVersion,
		},
		Runs: make([]RunEntry, len(results)),
	}
	details := make([]RunDetail, len(results))

	for i, r := range results {
		id := fmt.Sprintf("run-%03d", i)
		entry := RunEntry{
			Index:     i,
			ID:        id,
			Scenario:  r.Scenario,
			Device:    r.Device,
			Platform:  r.Platform,
			Status:    r.Status,
			StartTime: r.StartTime,
			Duration:  r.Duration.Milliseconds(),
			DataFile:  filepath.Join(RunsDir, id+".json"),
			Steps: StepSummary{
				Total:   r.TotalSteps,
				Passed:  r.PassedSteps,
				Failed:  r.FailedSteps,
				Skipped: r.SkippedSteps,
			},
		}
		if r.Err != nil {
			entry.Error = r.Err.Error()
			entry.Category = core.CategoryOf(r.Err).String()
		}
		index.Runs[i] = entry
		details[i] = RunDetail{ID: id, Scenario: r.Scenario, Device: r.Device, Steps: r.Steps}

		if index.StartTime.IsZero() || (!r.StartTime.IsZero() && r.StartTime.Before(index.StartTime)) {
			index.StartTime = r.StartTime
		}
		index.Summary.add(r.Status)
	}

	index.Status = index.Summary.status()
	if !index.StartTime.IsZero() {
		index.Duration = index.EndTime.Sub(index.StartTime).Milliseconds()
	}
	return index, details
}

func newRunID() string {
	return uuid.NewString()
}

func (s *Summary) add(status core.StepStatus) {
	s.Total++
	switch status {
	case core.StatusPassed:
		s.Passed++
	case core.StatusFailed:
		s.Failed++
	default:
		s.Errored++
	}
}

// status is failed when any run failed, errored when any errored.
func (s Summary) status() core.StepStatus {
	switch {
	case s.Failed > 0:
		return core.StatusFailed
	case s.Errored > 0:
		return core.StatusErrored
	default:
		return core.StatusPassed
	}
}
