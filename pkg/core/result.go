package core

import (
	"time"
)

// StepResult captures the outcome of executing a single scenario step
type StepResult struct {
	Index   int    `json:"index"`   // 0-based position in the scenario
	Command string `json:"command"` // Step type: connect, swipe, tap, ...
	Label   string `json:"label"`   // Human-readable description of the step

	Status   StepStatus    `json:"status"`
	Category ErrorCategory `json:"errorCategory,omitempty"`

	StartTime time.Time     `json:"startTime"`
	Duration  time.Duration `json:"duration"`

	Optional bool `json:"optional,omitempty"` // Failure does not fail the run

	Message string       `json:"message,omitempty"`
	Element *ElementInfo `json:"element,omitempty"` // Element interacted with
	Error   string       `json:"error,omitempty"`
}

// RunResult captures the outcome of running one scenario against one device
type RunResult struct {
	Scenario string `json:"scenario"`
	Device   string `json:"device,omitempty"`
	Platform string `json:"platform,omitempty"`

	Status    StepStatus    `json:"status"`
	StartTime time.Time     `json:"startTime"`
	Duration  time.Duration `json:"duration"`

	Steps []StepResult `json:"steps"`

	TotalSteps   int `json:"totalSteps"`
	PassedSteps  int `json:"passedSteps"`
	FailedSteps  int `json:"failedSteps"`
	SkippedSteps int `json:"skippedSteps"`

	Err error `json:"-"` // First failure, if any
}

// ElementInfo represents information about a located UI element
type ElementInfo struct {
	ID      string `json:"id,omitempty"`
	Locator string `json:"locator,omitempty"`
	Text    string `json:"text,omitempty"`
	Bounds  Bounds `json:"bounds"`
}

// Bounds represents element position and size
type Bounds struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Center returns the center point of the bounds
func (b Bounds) Center() (int, int) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

// Contains checks if a point is within the bounds
func (b Bounds) Contains(x, y int) bool {
	return x >= b.X && x < b.X+b.Width && y >= b.Y && y < b.Y+b.Height
}

// Finish computes the summary counters and overall status from Steps.
func (r *RunResult) Finish(end time.Time) {
	r.Duration = end.Sub(r.StartTime)
	r.TotalSteps = len(r.Steps)
	r.PassedSteps, r.FailedSteps, r.SkippedSteps = 0, 0, 0

	r.Status = StatusPassed
	for _, s := range r.Steps {
		switch s.Status {
		case StatusPassed:
			r.PassedSteps++
		case StatusFailed, StatusErrored:
			r.FailedSteps++
			if r.Status == StatusPassed && !s.Optional {
				r.Status = s.Status
			}
		case StatusSkipped:
			r.SkippedSteps++
		}
	}

	// Cancelled runs end without a failing step
	if r.Status == StatusPassed && r.Err != nil {
		r.Status = StatusErrored
	}
}
