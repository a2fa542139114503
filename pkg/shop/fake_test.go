package shop

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/devicelab-dev/appscript/pkg/bugreport"
	"github.com/devicelab-dev/appscript/pkg/core"
	"github.com/devicelab-dev/appscript/pkg/driver/appium"
	"github.com/devicelab-dev/appscript/pkg/script"
)

// fakeApp switches from the login screen to the after screen once Sign In
// is clicked. Screens map locator values to element counts.
type fakeApp struct {
	mu     sync.Mutex
	calls  []string
	caps   map[string]interface{}
	login  map[string]int
	after  map[string]int
	signed bool

	connectErr error
	findErr    error
}

func loginScreen() map[string]int {
	return map[string]int{
		GetStartedButton.Value: 1,
		EmailField.Value:       1,
		PasswordField.Value:    1,
		SignInButton.Value:     1,
		AnyEditText.Value:      2,
	}
}

func newFakeApp(after map[string]int) *fakeApp {
	return &fakeApp{login: loginScreen(), after: after}
}

func (f *fakeApp) dialer() script.Dialer {
	return func(string) script.Session { return f }
}

func (f *fakeApp) record(format string, args ...interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

func (f *fakeApp) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeApp) screen() map[string]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.signed {
		return f.after
	}
	return f.login
}

func (f *fakeApp) Connect(caps map[string]interface{}) error {
	f.record("connect")
	f.caps = caps
	return f.connectErr
}

func (f *fakeApp) Disconnect() error {
	f.record("disconnect")
	return nil
}

func (f *fakeApp) Platform() string { return "android" }

func (f *fakeApp) FindElement(by appium.By) (script.Element, error) {
	return f.WaitFor(context.Background(), by, "present", 0)
}

func (f *fakeApp) FindElements(by appium.By) ([]script.Element, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	var out []script.Element
	for i := 0; i < f.screen()[by.Value]; i++ {
		out = append(out, &fakeField{app: f, name: by.Value})
	}
	return out, nil
}

func (f *fakeApp) WaitFor(_ context.Context, by appium.By, _ string, _ time.Duration) (script.Element, error) {
	if f.screen()[by.Value] == 0 {
		return nil, core.ErrWaitTimeout.WithMessage("timed out waiting for " + by.String())
	}
	return &fakeField{app: f, name: by.Value}, nil
}

func (f *fakeApp) PerformActions(...*appium.Sequence) error { return nil }
func (f *fakeApp) SendKeys(string) error                    { return nil }
func (f *fakeApp) PressKeyCode(int) error                   { return nil }
func (f *fakeApp) HideKeyboard() error                      { return nil }
func (f *fakeApp) Back() error                              { return nil }

type fakeField struct {
	app  *fakeApp
	name string
}

func (e *fakeField) label() string {
	switch e.name {
	case GetStartedButton.Value:
		return "getStarted"
	case EmailField.Value:
		return "email"
	case PasswordField.Value:
		return "password"
	case SignInButton.Value:
		return "signIn"
	}
	return e.name
}

func (e *fakeField) Click() error {
	e.app.record("click %s", e.label())
	if e.name == SignInButton.Value {
		e.app.mu.Lock()
		e.app.signed = true
		e.app.mu.Unlock()
	}
	return nil
}

func (e *fakeField) Clear() error {
	e.app.record("clear %s", e.label())
	return nil
}

func (e *fakeField) SendKeys(text string) error {
	e.app.record("type %s %s", e.label(), text)
	return nil
}

func (e *fakeField) Text() (string, error)   { return "", nil }
func (e *fakeField) Info() *core.ElementInfo { return &core.ElementInfo{ID: e.label()} }

type bugList struct {
	mu   sync.Mutex
	bugs []bugreport.Bug
}

func (b *bugList) Report(bug bugreport.Bug) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bugs = append(b.bugs, bug)
	return nil
}
