// Package shop drives data-driven login checks against the shop sample app.
package shop

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/devicelab-dev/appscript/pkg/bugreport"
	"github.com/devicelab-dev/appscript/pkg/core"
	"github.com/devicelab-dev/appscript/pkg/dataset"
	"github.com/devicelab-dev/appscript/pkg/driver/appium"
	"github.com/devicelab-dev/appscript/pkg/logger"
	"github.com/devicelab-dev/appscript/pkg/script"
)

// Default timings of the login flow.
const (
	DefaultTimeout = 15 * time.Second
	DefaultSettle  = 3 * time.Second
)

// Login screen locators.
var (
	GetStartedButton = appium.NewUiSelector().ClassName("android.widget.Button").Instance(0).By()
	EmailField       = appium.NewUiSelector().ClassName("android.widget.EditText").Instance(0).By()
	PasswordField    = appium.NewUiSelector().ClassName("android.widget.EditText").Instance(1).By()
	SignInButton     = appium.NewUiSelector().TextContains("Sign In").By()
	AnyEditText      = appium.NewUiSelector().ClassName("android.widget.EditText").By()
)

// Texts that show the user reached the app after signing in.
var (
	HomeIndicators  = []string{"Home", "Shop", "Products", "Menu"}
	UserIndicators  = []string{"Welcome", "Profile", "Account"}
	ErrorIndicators = []string{"error", "Error", "invalid", "Invalid", "failed", "Failed"}
)

// DefaultOptions installs the app from path with a full reset, so every
// case starts on the onboarding screen.
func DefaultOptions(app string) appium.Options {
	return appium.Options{
		PlatformName:   "Android",
		AutomationName: "uiautomator2",
		App:            app,
		NoReset:        appium.Bool(false),
		FullReset:      appium.Bool(true),
	}
}

// BugReporter receives mismatches between expected and observed results.
type BugReporter interface {
	Report(b bugreport.Bug) error
}

// Outcome is the result of one login case.
type Outcome struct {
	Case     dataset.LoginCase `json:"case"`
	Status   core.StepStatus   `json:"status"`
	Actual   string            `json:"actual"`
	Bug      string            `json:"bug,omitempty"`
	Duration time.Duration     `json:"duration"`
	Err      error             `json:"-"`
}

// LoginCheck runs login cases, one fresh session per case.
type LoginCheck struct {
	ServerURL    string
	Options      appium.Options
	Capabilities map[string]interface{}
	Dial         script.Dialer
	Bugs         BugReporter

	Timeout time.Duration // wait for each login control
	Settle  time.Duration // pause after Sign In; negative disables it

	// OnOutcome is called by RunAll after each case.
	OnOutcome func(index int, out Outcome)
}

// RunAll runs cases in order. It stops early only when ctx is done.
func (c *LoginCheck) RunAll(ctx context.Context, cases []dataset.LoginCase) []Outcome {
	outcomes := make([]Outcome, 0, len(cases))
	for i, lc := range cases {
		if ctx.Err() != nil {
			break
		}
		out := c.Run(ctx, lc)
		if c.OnOutcome != nil {
			c.OnOutcome(i, out)
		}
		outcomes = append(outcomes, out)
	}
	return outcomes
}

// Run signs in with one case and compares the screen with the expected
// result. Mismatches are sent to Bugs.
func (c *LoginCheck) Run(ctx context.Context, lc dataset.LoginCase) (out Outcome) {
	start := time.Now()
	log := logger.WithFields(logrus.Fields{"case": lc.String(), "email": lc.Email})
	out = Outcome{Case: lc}
	defer func() { out.Duration = time.Since(start) }()

	if lc.ExpectedResult != dataset.ExpectSuccess && lc.ExpectedResult != dataset.ExpectFailure {
		out.Err = core.ErrInvalidConfig.WithMessage(fmt.Sprintf("unknown expected result %q", lc.ExpectedResult))
		out.Status = core.StatusErrored
		out.Actual = "Not run"
		return out
	}

	session := c.dial()
	if err := c.connect(session); err != nil {
		out.Err = err
		out.Status = core.StatusErrored
		out.Actual = "Session not created"
		log.Errorf("connect failed: %v", err)
		return out
	}
	defer func() {
		if err := session.Disconnect(); err != nil {
			log.Warnf("disconnect failed: %v", err)
		}
	}()

	err := c.signIn(ctx, session, lc)
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		out.Status = core.StatusErrored
		out.Actual = "Test interrupted"
		out.Err = err
		c.report(&out, "Test was interrupted: "+err.Error())
		return out

	case err != nil && lc.ExpectedResult == dataset.ExpectFailure:
		// Invalid data may keep the form from submitting at all.
		out.Status = core.StatusPassed
		out.Actual = "Exception occurred as expected for invalid data"
		log.Infof("login flow aborted as expected: %v", err)
		return out

	case err != nil:
		out.Status = core.StatusFailed
		out.Actual = "Unexpected exception"
		out.Err = err
		c.report(&out, fmt.Sprintf("Unexpected exception occurred: %v for email: %s, password: %s", err, lc.Email, lc.Password))
		return out
	}

	if lc.ExpectedResult == dataset.ExpectSuccess {
		if err := sleep(ctx, c.settle()); err != nil {
			out.Status, out.Actual, out.Err = core.StatusErrored, "Test interrupted", err
			return out
		}
		if loginSucceeded(session, log) {
			out.Status = core.StatusPassed
			out.Actual = "Login successful"
			return out
		}
		out.Status = core.StatusFailed
		out.Actual = "Login failed"
		out.Err = core.ErrExpectationMismatch.WithMessage("expected successful login")
		c.report(&out, fmt.Sprintf("Expected successful login for valid credentials but login failed. Email: %s, Password: %s", lc.Email, lc.Password))
		return out
	}

	if loginFailed(session, log) {
		out.Status = core.StatusPassed
		out.Actual = "Login failed as expected"
		return out
	}
	out.Status = core.StatusFailed
	out.Actual = "Login succeeded unexpectedly"
	out.Err = core.ErrExpectationMismatch.WithMessage("expected login failure")
	c.report(&out, fmt.Sprintf("Expected login failure for invalid credentials but login succeeded. Email: %s, Password: %s", lc.Email, lc.Password))
	return out
}

func (c *LoginCheck) dial() script.Session {
	if c.Dial == nil {
		return script.AppiumDialer(0)(c.ServerURL)
	}
	return c.Dial(c.ServerURL)
}

func (c *LoginCheck) connect(s script.Session) error {
	if err := c.Options.Validate(); err != nil {
		return err
	}
	return s.Connect(appium.MergeCapabilities(c.Capabilities, c.Options.Capabilities()))
}

// signIn walks Get Started, email, password and Sign In, then waits for
// the app to respond.
func (c *LoginCheck) signIn(ctx context.Context, s script.Session, lc dataset.LoginCase) error {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	start, err := s.WaitFor(ctx, GetStartedButton, "clickable", timeout)
	if err != nil {
		return fmt.Errorf("get started: %w", err)
	}
	if err := start.Click(); err != nil {
		return fmt.Errorf("get started: %w", err)
	}

	if err := fill(ctx, s, EmailField, lc.Email, timeout); err != nil {
		return fmt.Errorf("email: %w", err)
	}
	if err := fill(ctx, s, PasswordField, lc.Password, timeout); err != nil {
		return fmt.Errorf("password: %w", err)
	}

	submit, err := s.WaitFor(ctx, SignInButton, "clickable", timeout)
	if err != nil {
		return fmt.Errorf("sign in: %w", err)
	}
	if err := submit.Click(); err != nil {
		return fmt.Errorf("sign in: %w", err)
	}
	return sleep(ctx, c.settle())
}

func (c *LoginCheck) settle() time.Duration {
	if c.Settle < 0 {
		return 0
	}
	if c.Settle == 0 {
		return DefaultSettle
	}
	return c.Settle
}

// fill clears a field and types value unless it is empty.
func fill(ctx context.Context, s script.Session, by appium.By, value string, timeout time.Duration) error {
	field, err := s.WaitFor(ctx, by, "visible", timeout)
	if err != nil {
		return err
	}
	if err := field.Clear(); err != nil {
		return err
	}
	if value == "" {
		return nil
	}
	return field.SendKeys(value)
}

func (c *LoginCheck) report(out *Outcome, details string) {
	out.Bug = details
	if c.Bugs == nil {
		return
	}
	err := c.Bugs.Report(bugreport.Bug{
		Description: out.Case.Description,
		Email:       out.Case.Email,
		Password:    out.Case.Password,
		Expected:    out.Case.ExpectedResult,
		Actual:      out.Actual,
		Details:     details,
	})
	if err != nil {
		logger.Error("failed to write bug report: %v", err)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
