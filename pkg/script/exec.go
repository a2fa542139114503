package script

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/devicelab-dev/appscript/pkg/core"
	"github.com/devicelab-dev/appscript/pkg/driver/appium"
)

type stepOutput struct {
	message string
	element *core.ElementInfo
	err     error
}

func failed(err error) stepOutput { return stepOutput{err: err} }

func (r *Runner) execute(ctx context.Context, s Session, step Step) stepOutput {
	switch st := step.(type) {
	case *SwipeStep:
		d := st.Duration
		if d <= 0 {
			d = appium.DefaultMoveDuration
		}
		return stepOutput{err: s.PerformActions(appium.SwipeGesture(st.StartX, st.StartY, st.EndX, st.EndY, d))}

	case *TapPointStep:
		n := st.Repeat
		if n <= 0 {
			n = 1
		}
		for i := 0; i < n; i++ {
			if err := s.PerformActions(appium.TapGesture(st.X, st.Y)); err != nil {
				return failed(err)
			}
		}
		return stepOutput{}

	case *TapStep:
		el, err := r.lookup(ctx, s, st.Locator, st.Lookup, "clickable")
		if err != nil {
			return failed(err)
		}
		return stepOutput{element: el.Info(), err: el.Click()}

	case *TapLastStep:
		return r.tapLast(ctx, s, st)

	case *TypeStep:
		if st.Locator.IsZero() {
			return stepOutput{err: s.SendKeys(st.Input)}
		}
		el, err := r.lookup(ctx, s, st.Locator, st.Lookup, "present")
		if err != nil {
			return failed(err)
		}
		out := stepOutput{element: el.Info()}
		if st.Clear {
			if out.err = el.Clear(); out.err != nil {
				return out
			}
		}
		out.err = el.SendKeys(st.Input)
		return out

	case *PressKeyStep:
		code, err := appium.ParseKeyCode(st.Key)
		if err != nil {
			return failed(core.ErrInvalidConfig.WithMessage(err.Error()))
		}
		return stepOutput{err: s.PressKeyCode(code)}

	case *HideKeyboardStep:
		return stepOutput{err: s.HideKeyboard()}

	case *SleepStep:
		return stepOutput{err: sleep(ctx, st.Duration)}

	case *WaitForStep:
		lk := st.Lookup
		lk.Wait = true
		el, err := r.lookup(ctx, s, st.Locator, lk, "present")
		if err != nil {
			return failed(err)
		}
		return stepOutput{element: el.Info()}

	case *DismissAdsStep:
		return dismissAds(ctx, s, st)

	case *BackStep:
		return stepOutput{err: s.Back()}
	}
	return failed(core.ErrInvalidConfig.WithMessage(fmt.Sprintf("unsupported step: %s", step.Type())))
}

// lookup finds the element once, or polls for it when lk.Wait is set.
func (r *Runner) lookup(ctx context.Context, s Session, loc Locator, lk Lookup, defaultCond string) (Element, error) {
	by, err := loc.By()
	if err != nil {
		return nil, err
	}
	if !lk.Wait {
		return s.FindElement(by)
	}
	timeout := lk.Timeout
	if timeout <= 0 {
		timeout = r.config.FindTimeout
	}
	cond := lk.Condition
	if cond == "" {
		cond = defaultCond
	}
	return s.WaitFor(ctx, by, cond, timeout)
}

func (r *Runner) tapLast(ctx context.Context, s Session, st *TapLastStep) stepOutput {
	by, err := st.Locator.By()
	if err != nil {
		return failed(err)
	}
	if st.Wait {
		if _, err := r.lookup(ctx, s, st.Locator, st.Lookup, "present"); err != nil {
			return failed(err)
		}
	}
	elems, err := s.FindElements(by)
	if err != nil {
		return failed(err)
	}
	if len(elems) == 0 {
		return failed(core.ErrElementNotFound.WithMessage("element not found: " + by.String()))
	}
	last := elems[len(elems)-1]
	return stepOutput{
		message: fmt.Sprintf("clicked match %d of %d", len(elems), len(elems)),
		element: last.Info(),
		err:     last.Click(),
	}
}

// dismissAds clicks the first skip/close button found. Each attempt tries
// every selector once; attempts are spaced by the step interval.
func dismissAds(ctx context.Context, s Session, st *DismissAdsStep) stepOutput {
	selectors := st.selectors()
	bys := make([]appium.By, 0, len(selectors))
	for _, loc := range selectors {
		by, err := loc.By()
		if err != nil {
			return failed(err)
		}
		bys = append(bys, by)
	}

	attempts := st.attempts()
	for attempt := 1; attempt <= attempts; attempt++ {
		for _, by := range bys {
			elems, err := s.FindElements(by)
			if err != nil {
				if errors.Is(err, core.ErrElementNotFound) {
					continue
				}
				return failed(err)
			}
			if len(elems) == 0 {
				continue
			}
			return stepOutput{
				message: fmt.Sprintf("dismissed ad via %s on attempt %d", by.String(), attempt),
				element: elems[0].Info(),
				err:     elems[0].Click(),
			}
		}
		if attempt < attempts {
			if err := sleep(ctx, st.interval()); err != nil {
				return failed(err)
			}
		}
	}
	return stepOutput{message: "no ad shown"}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
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
