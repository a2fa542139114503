package script

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/devicelab-dev/appscript/pkg/core"
	"github.com/devicelab-dev/appscript/pkg/driver/appium"
)

// fakeSession records every call in order. Elements are keyed by locator
// value; a missing key means "not on screen".
type fakeSession struct {
	mu    sync.Mutex
	calls []string

	elements    map[string][]string
	caps        map[string]interface{}
	actions     [][]*appium.Sequence
	settings    map[string]interface{}
	connectErr  error
	actionErr   error
	clickErr    error
	settingsErr error
}

func newFakeSession(elements map[string][]string) *fakeSession {
	if elements == nil {
		elements = map[string][]string{}
	}
	return &fakeSession{elements: elements}
}

func (f *fakeSession) dialer() Dialer {
	return func(string) Session { return f }
}

func (f *fakeSession) record(format string, args ...interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

func (f *fakeSession) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeSession) Connect(caps map[string]interface{}) error {
	f.record("connect")
	f.caps = caps
	return f.connectErr
}

func (f *fakeSession) SetSettings(settings map[string]interface{}) error {
	f.record("settings %v", settings)
	f.settings = settings
	return f.settingsErr
}

func (f *fakeSession) Disconnect() error {
	f.record("disconnect")
	return nil
}

func (f *fakeSession) Platform() string { return "android" }

func (f *fakeSession) FindElement(by appium.By) (Element, error) {
	f.record("find %s", by)
	ids := f.elements[by.Value]
	if len(ids) == 0 {
		return nil, core.ErrElementNotFound.WithMessage("element not found: " + by.String())
	}
	return &fakeElement{s: f, id: ids[0]}, nil
}

func (f *fakeSession) FindElements(by appium.By) ([]Element, error) {
	f.record("findAll %s", by)
	var out []Element
	for _, id := range f.elements[by.Value] {
		out = append(out, &fakeElement{s: f, id: id})
	}
	return out, nil
}

func (f *fakeSession) WaitFor(ctx context.Context, by appium.By, condition string, timeout time.Duration) (Element, error) {
	f.record("wait %s %s %s", condition, by, timeout)
	ids := f.elements[by.Value]
	if len(ids) == 0 {
		return nil, core.ErrWaitTimeout.WithMessage("timed out waiting for " + by.String())
	}
	return &fakeElement{s: f, id: ids[0]}, nil
}

func (f *fakeSession) PerformActions(seqs ...*appium.Sequence) error {
	data, _ := json.Marshal(seqs)
	f.record("actions %s", data)
	f.actions = append(f.actions, seqs)
	return f.actionErr
}

func (f *fakeSession) SendKeys(text string) error {
	f.record("keys %s", text)
	return nil
}

func (f *fakeSession) PressKeyCode(code int) error {
	f.record("keycode %d", code)
	return nil
}

func (f *fakeSession) HideKeyboard() error {
	f.record("hideKeyboard")
	return nil
}

func (f *fakeSession) Back() error {
	f.record("back")
	return nil
}

type fakeElement struct {
	s  *fakeSession
	id string
}

func (e *fakeElement) Click() error {
	e.s.record("click %s", e.id)
	return e.s.clickErr
}

func (e *fakeElement) Clear() error {
	e.s.record("clear %s", e.id)
	return nil
}

func (e *fakeElement) SendKeys(text string) error {
	e.s.record("sendKeys %s %s", e.id, text)
	return nil
}

func (e *fakeElement) Text() (string, error) { return "", nil }

func (e *fakeElement) Info() *core.ElementInfo { return &core.ElementInfo{ID: e.id} }
