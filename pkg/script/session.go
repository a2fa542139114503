package script

import (
	"context"
	"time"

	"github.com/devicelab-dev/appscript/pkg/core"
	"github.com/devicelab-dev/appscript/pkg/driver/appium"
)

// Element is a located UI element.
type Element interface {
	Click() error
	Clear() error
	SendKeys(text string) error
	Text() (string, error)
	Info() *core.ElementInfo
}

// Session is the automation session a Runner drives.
type Session interface {
	Connect(caps map[string]interface{}) error
	Disconnect() error
	Platform() string

	FindElement(by appium.By) (Element, error)
	FindElements(by appium.By) ([]Element, error)
	WaitFor(ctx context.Context, by appium.By, condition string, timeout time.Duration) (Element, error)

	PerformActions(seqs ...*appium.Sequence) error
	SendKeys(text string) error
	PressKeyCode(code int) error
	HideKeyboard() error
	Back() error
}

// SettingsUpdater is implemented by sessions that accept driver settings
// such as waitForIdleTimeout.
type SettingsUpdater interface {
	SetSettings(settings map[string]interface{}) error
}

// Dialer opens a Session against a server URL. The session is not
// connected yet.
type Dialer func(serverURL string) Session

// AppiumDialer dials real Appium servers, retrying unreachable servers
// retries times on Connect.
func AppiumDialer(retries int) Dialer {
	return func(serverURL string) Session {
		c := appium.NewClient(serverURL)
		c.SetConnectRetry(retries, 0)
		return NewAppiumSession(c)
	}
}

// AppiumSession adapts *appium.Client to Session.
type AppiumSession struct {
	*appium.Client
}

// NewAppiumSession wraps a client.
func NewAppiumSession(c *appium.Client) *AppiumSession {
	return &AppiumSession{Client: c}
}

// FindElement finds a single element.
func (s *AppiumSession) FindElement(by appium.By) (Element, error) {
	el, err := s.Client.FindElement(by)
	if err != nil {
		return nil, err
	}
	return el, nil
}

// FindElements finds all matches in document order.
func (s *AppiumSession) FindElements(by appium.By) ([]Element, error) {
	elems, err := s.Client.FindElements(by)
	if err != nil {
		return nil, err
	}
	out := make([]Element, len(elems))
	for i, el := range elems {
		out[i] = el
	}
	return out, nil
}

// WaitFor polls until the element satisfies condition.
func (s *AppiumSession) WaitFor(ctx context.Context, by appium.By, condition string, timeout time.Duration) (Element, error) {
	cond, err := appium.ConditionByName(condition)
	if err != nil {
		return nil, core.ErrInvalidConfig.WithMessage(err.Error())
	}
	el, err := appium.NewWait(timeout).Until(ctx, s.Client, cond(by))
	if err != nil {
		return nil, err
	}
	return el, nil
}
