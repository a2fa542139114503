package appium

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/devicelab-dev/appscript/pkg/core"
)

// DefaultPollInterval paces condition checks. One find is an HTTP
// round-trip, so polling faster only loads the server.
const DefaultPollInterval = 250 * time.Millisecond

// ElementFinder is satisfied by *Client.
type ElementFinder interface {
	FindElement(by By) (*Element, error)
}

// Condition is checked repeatedly by Wait.Until. It returns the element
// once satisfied; a nil element means "not yet".
type Condition struct {
	Name  string
	Check func(f ElementFinder) (*Element, error)
}

// Presence is satisfied once the locator matches.
func Presence(by By) Condition {
	return Condition{
		Name:  "presence of " + by.String(),
		Check: func(f ElementFinder) (*Element, error) { return f.FindElement(by) },
	}
}

// Visibility is satisfied once the match is displayed.
func Visibility(by By) Condition {
	return Condition{
		Name: "visibility of " + by.String(),
		Check: func(f ElementFinder) (*Element, error) {
			el, err := f.FindElement(by)
			if err != nil {
				return nil, err
			}
			ok, err := el.Displayed()
			if err != nil || !ok {
				return nil, err
			}
			return el, nil
		},
	}
}

// Clickable is satisfied once the match is displayed and enabled.
func Clickable(by By) Condition {
	return Condition{
		Name: "clickability of " + by.String(),
		Check: func(f ElementFinder) (*Element, error) {
			el, err := f.FindElement(by)
			if err != nil {
				return nil, err
			}
			if ok, err := el.Displayed(); err != nil || !ok {
				return nil, err
			}
			if ok, err := el.Enabled(); err != nil || !ok {
				return nil, err
			}
			return el, nil
		},
	}
}

// ConditionByName maps a scenario-file name to a condition constructor.
func ConditionByName(name string) (func(By) Condition, error) {
	switch name {
	case "", "present", "presence":
		return Presence, nil
	case "visible", "visibility":
		return Visibility, nil
	case "clickable":
		return Clickable, nil
	}
	return nil, fmt.Errorf("unknown wait condition: %q", name)
}

// Wait polls a condition until it holds or Timeout elapses.
type Wait struct {
	Timeout  time.Duration
	Interval time.Duration
}

// NewWait returns a wait with the default poll interval.
func NewWait(timeout time.Duration) Wait {
	return Wait{Timeout: timeout, Interval: DefaultPollInterval}
}

// Until returns the element produced by cond, or core.ErrWaitTimeout
// wrapping the last lookup error. Cancelling ctx returns ctx.Err().
func (w Wait) Until(ctx context.Context, f ElementFinder, cond Condition) (*Element, error) {
	interval := w.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	waitCtx, cancel := context.WithTimeout(ctx, w.Timeout)
	defer cancel()

	limiter := rate.NewLimiter(rate.Every(interval), 1)
	var lastErr error
	check := func() (*Element, error) {
		el, err := cond.Check(f)
		if err != nil {
			lastErr = err
			// Lost sessions and dead servers do not recover by waiting.
			if errors.Is(err, core.ErrServerUnreachable) || errors.Is(err, core.ErrInvalidSession) {
				return nil, err
			}
		}
		return el, nil
	}

	for {
		// Wait fails early when the next token lands past the deadline;
		// sit out the remainder so the last check happens at Timeout.
		if err := limiter.Wait(waitCtx); err != nil {
			<-waitCtx.Done()
			break
		}
		if el, err := check(); el != nil || err != nil {
			return el, err
		}
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if el, err := check(); el != nil || err != nil {
		return el, err
	}
	return nil, core.ErrWaitTimeout.
		WithMessage(fmt.Sprintf("timed out after %s waiting for %s", w.Timeout, cond.Name)).
		WithCause(lastErr)
}
