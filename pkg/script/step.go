// Package script holds scenarios: ordered Appium steps parsed from YAML and
// the runner that executes them against one session.
package script

import (
	"fmt"
	"time"
)

// StepType represents the type of step.
type StepType string

// Step type constants. The value is the YAML key.
const (
	StepSwipe        StepType = "swipe"
	StepTapPoint     StepType = "tapPoint"
	StepTap          StepType = "tap"
	StepTapLast      StepType = "tapLast"
	StepTypeText     StepType = "type"
	StepPressKey     StepType = "pressKey"
	StepHideKeyboard StepType = "hideKeyboard"
	StepSleep        StepType = "sleep"
	StepWaitFor      StepType = "waitFor"
	StepDismissAds   StepType = "dismissAds"
	StepBack         StepType = "back"
)

// Step is the interface for all scenario steps.
type Step interface {
	Type() StepType
	IsOptional() bool
	Label() string
	Describe() string
}

// BaseStep contains common fields for all steps.
type BaseStep struct {
	StepType  StepType `mapstructure:"-"`
	Optional  bool     `mapstructure:"optional"`
	StepLabel string   `mapstructure:"label"`
}

// Type returns the step type.
func (b *BaseStep) Type() StepType { return b.StepType }

// IsOptional returns whether a failure of the step is ignored.
func (b *BaseStep) IsOptional() bool { return b.Optional }

// Label returns the step label.
func (b *BaseStep) Label() string { return b.StepLabel }

// Describe returns a human-readable description.
func (b *BaseStep) Describe() string { return string(b.StepType) }

func (b *BaseStep) setType(t StepType) { b.StepType = t }

// SwipeStep drags one finger from start to end.
type SwipeStep struct {
	BaseStep `mapstructure:",squash"`
	StartX   int           `mapstructure:"startX"`
	StartY   int           `mapstructure:"startY"`
	EndX     int           `mapstructure:"endX"`
	EndY     int           `mapstructure:"endY"`
	Duration time.Duration `mapstructure:"duration"` // drag time, 0 = default
}

// Describe returns a human-readable description.
func (s *SwipeStep) Describe() string {
	return fmt.Sprintf("swipe from (%d,%d) to (%d,%d)", s.StartX, s.StartY, s.EndX, s.EndY)
}

// TapPointStep taps screen coordinates.
type TapPointStep struct {
	BaseStep `mapstructure:",squash"`
	X        int `mapstructure:"x"`
	Y        int `mapstructure:"y"`
	Repeat   int `mapstructure:"repeat"`
}

// Describe returns a human-readable description.
func (s *TapPointStep) Describe() string {
	if s.Repeat > 1 {
		return fmt.Sprintf("tap (%d,%d) x%d", s.X, s.Y, s.Repeat)
	}
	return fmt.Sprintf("tap (%d,%d)", s.X, s.Y)
}

// Lookup controls how an element step finds its target. Without Wait the
// element must be present on the first lookup.
type Lookup struct {
	Wait      bool          `mapstructure:"wait"`
	Timeout   time.Duration `mapstructure:"timeout"`   // 0 = runner default
	Condition string        `mapstructure:"condition"` // present, visible, clickable
}

// TapStep finds an element and clicks it.
type TapStep struct {
	BaseStep `mapstructure:",squash"`
	Locator  `mapstructure:",squash"`
	Lookup   `mapstructure:",squash"`
}

// Describe returns a human-readable description.
func (s *TapStep) Describe() string {
	return "tap " + s.Locator.String()
}

// TapLastStep clicks the last of several matches, e.g. the "Allow" button
// of a permission dialog.
type TapLastStep struct {
	BaseStep `mapstructure:",squash"`
	Locator  `mapstructure:",squash"`
	Lookup   `mapstructure:",squash"`
}

// Describe returns a human-readable description.
func (s *TapLastStep) Describe() string {
	return "tap last " + s.Locator.String()
}

// TypeStep types text into an element, or into the focused element when no
// locator is given. The text key is "input" since "text" is a locator.
type TypeStep struct {
	BaseStep `mapstructure:",squash"`
	Locator  `mapstructure:",squash"`
	Lookup   `mapstructure:",squash"`
	Input    string `mapstructure:"input"`
	Clear    bool   `mapstructure:"clear"`
}

// Describe returns a human-readable description.
func (s *TypeStep) Describe() string {
	if s.Locator.IsZero() {
		return fmt.Sprintf("type %q", s.Input)
	}
	return fmt.Sprintf("type %q into %s", s.Input, s.Locator.String())
}

// PressKeyStep presses an Android key by name or keycode.
type PressKeyStep struct {
	BaseStep `mapstructure:",squash"`
	Key      string `mapstructure:"key"`
}

// Describe returns a human-readable description.
func (s *PressKeyStep) Describe() string {
	return "press key " + s.Key
}

// HideKeyboardStep hides the on-screen keyboard.
type HideKeyboardStep struct {
	BaseStep `mapstructure:",squash"`
}

// SleepStep pauses the scenario.
type SleepStep struct {
	BaseStep `mapstructure:",squash"`
	Duration time.Duration `mapstructure:"duration"`
}

// Describe returns a human-readable description.
func (s *SleepStep) Describe() string {
	return "sleep " + s.Duration.String()
}

// WaitForStep waits until an element satisfies a condition.
type WaitForStep struct {
	BaseStep `mapstructure:",squash"`
	Locator  `mapstructure:",squash"`
	Lookup   `mapstructure:",squash"`
}

// Describe returns a human-readable description.
func (s *WaitForStep) Describe() string {
	cond := s.Condition
	if cond == "" {
		cond = "present"
	}
	return fmt.Sprintf("wait for %s to be %s", s.Locator.String(), cond)
}

// DismissAdsStep looks for ad skip/close buttons a few times and clicks the
// first one found. Finding no ad is not a failure.
type DismissAdsStep struct {
	BaseStep  `mapstructure:",squash"`
	Attempts  int           `mapstructure:"attempts"`
	Interval  time.Duration `mapstructure:"interval"`
	Selectors []Locator     `mapstructure:"selectors"`
}

// Describe returns a human-readable description.
func (s *DismissAdsStep) Describe() string {
	return fmt.Sprintf("dismiss ads (%d attempts)", s.attempts())
}

func (s *DismissAdsStep) attempts() int {
	if s.Attempts <= 0 {
		return DefaultAdAttempts
	}
	return s.Attempts
}

func (s *DismissAdsStep) interval() time.Duration {
	if s.Interval <= 0 {
		return DefaultAdInterval
	}
	return s.Interval
}

func (s *DismissAdsStep) selectors() []Locator {
	if len(s.Selectors) == 0 {
		return DefaultAdSelectors
	}
	return s.Selectors
}

// Ad dismissal defaults.
const (
	DefaultAdAttempts = 3
	DefaultAdInterval = 2 * time.Second
)

// DefaultAdSelectors are the skip and close buttons YouTube shows on ads.
var DefaultAdSelectors = []Locator{
	{Text: "Skip Ad"},
	{Text: "Skip Ads"},
	{DescriptionContains: "Skip"},
	{ClassName: "android.widget.ImageButton", DescriptionContains: "Close"},
}

// BackStep presses the Android back button.
type BackStep struct {
	BaseStep `mapstructure:",squash"`
}
