// Package appium is a client for Appium servers speaking the W3C WebDriver protocol.
package appium

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/devicelab-dev/appscript/pkg/core"
	"github.com/devicelab-dev/appscript/pkg/logger"
)

// W3C WebDriver element identifier key (standard constant)
const w3cElementKey = "element-6066-11e4-a52e-4f735466cecf"

// Client handles HTTP communication with Appium server.
type Client struct {
	serverURL string
	sessionID string
	client    *http.Client
	platform  string // android
	screenW   int
	screenH   int

	connectRetries int
	retryInterval  time.Duration
}

// NewClient creates a new Appium client.
func NewClient(serverURL string) *Client {
	return &Client{
		serverURL: strings.TrimSuffix(serverURL, "/"),
		client: &http.Client{
			Timeout: 5 * time.Minute, // Long timeout for install/screenshot
		},
		retryInterval: 500 * time.Millisecond,
	}
}

// SetConnectRetry makes Connect retry an unreachable server up to retries
// times with exponential backoff starting at initial.
func (c *Client) SetConnectRetry(retries int, initial time.Duration) {
	c.connectRetries = retries
	if initial > 0 {
		c.retryInterval = initial
	}
}

// SetHTTPClient replaces the underlying HTTP client.
func (c *Client) SetHTTPClient(hc *http.Client) {
	c.client = hc
}

// Connect creates a new session with the given capabilities.
// Only connection failures are retried; a rejected session fails at once.
func (c *Client) Connect(capabilities map[string]interface{}) error {
	if c.connectRetries <= 0 {
		return c.createSession(capabilities)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryInterval
	b.MaxElapsedTime = 0

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := c.createSession(capabilities)
		if err == nil {
			return nil
		}
		if !errors.Is(err, core.ErrServerUnreachable) {
			return backoff.Permanent(err)
		}
		logger.Warn("Appium server %s unreachable (attempt %d/%d): %v", c.serverURL, attempt, c.connectRetries+1, err)
		return err
	}, backoff.WithMaxRetries(b, uint64(c.connectRetries)))
}

func (c *Client) createSession(capabilities map[string]interface{}) error {
	body := map[string]interface{}{
		"capabilities": map[string]interface{}{
			"alwaysMatch": capabilities,
			"firstMatch":  []interface{}{map[string]interface{}{}},
		},
	}

	resp, err := c.post("/session", body)
	if err != nil {
		var wdErr *WebDriverError
		if errors.As(err, &wdErr) && !errors.Is(err, core.ErrSessionNotCreated) {
			return core.ErrSessionNotCreated.WithCause(err)
		}
		return err
	}

	value, ok := resp["value"].(map[string]interface{})
	if !ok {
		return core.ErrSessionNotCreated.WithMessage("invalid session response")
	}

	c.sessionID, _ = value["sessionId"].(string)
	if c.sessionID == "" {
		// JSONWP servers put the id at the top level
		c.sessionID, _ = resp["sessionId"].(string)
	}
	if c.sessionID == "" {
		return core.ErrSessionNotCreated.WithMessage("no session ID in response")
	}

	if caps, ok := value["capabilities"].(map[string]interface{}); ok {
		if platform, ok := caps["platformName"].(string); ok {
			c.platform = strings.ToLower(platform)
		}
	}
	if c.platform == "" {
		if platform, ok := capabilities["platformName"].(string); ok {
			c.platform = strings.ToLower(platform)
		}
	}

	c.fetchScreenSize()
	logger.Info("Session %s created on %s (platform=%s, screen=%dx%d)", c.sessionID, c.serverURL, c.platform, c.screenW, c.screenH)
	return nil
}

// Disconnect closes the session.
func (c *Client) Disconnect() error {
	if c.sessionID == "" {
		return nil
	}
	_, err := c.delete(c.sessionPath())
	logger.Info("Session %s deleted", c.sessionID)
	c.sessionID = ""
	return err
}

// SessionID returns the current session id, empty when not connected.
func (c *Client) SessionID() string {
	return c.sessionID
}

// ServerURL returns the server base URL.
func (c *Client) ServerURL() string {
	return c.serverURL
}

// Platform returns the platform reported by the server.
func (c *Client) Platform() string {
	return c.platform
}

// ScreenSize returns the screen dimensions.
func (c *Client) ScreenSize() (int, int) {
	return c.screenW, c.screenH
}

func (c *Client) fetchScreenSize() {
	resp, err := c.get(c.sessionPath() + "/window/rect")
	if err != nil {
		logger.Debug("window rect unavailable: %v", err)
		return
	}
	if value, ok := resp["value"].(map[string]interface{}); ok {
		if w, ok := value["width"].(float64); ok {
			c.screenW = int(w)
		}
		if h, ok := value["height"].(float64); ok {
			c.screenH = int(h)
		}
	}
}

// Element Operations

// FindElement finds a single element.
func (c *Client) FindElement(by By) (*Element, error) {
	resp, err := c.post(c.sessionPath()+"/element", by)
	if err != nil {
		return nil, err
	}

	elemValue, ok := resp["value"].(map[string]interface{})
	if !ok {
		return nil, core.ErrElementNotFound.WithMessage("element not found: " + by.String())
	}

	id := extractElementID(elemValue)
	if id == "" {
		return nil, core.ErrElementNotFound.WithMessage("element not found: " + by.String())
	}
	return &Element{client: c, ID: id, Locator: by}, nil
}

// FindElements finds multiple elements. No match is an empty slice, not an error.
func (c *Client) FindElements(by By) ([]*Element, error) {
	resp, err := c.post(c.sessionPath()+"/elements", by)
	if err != nil {
		return nil, err
	}

	values, ok := resp["value"].([]interface{})
	if !ok {
		return nil, nil
	}

	var elems []*Element
	for _, v := range values {
		if m, ok := v.(map[string]interface{}); ok {
			if id := extractElementID(m); id != "" {
				elems = append(elems, &Element{client: c, ID: id, Locator: by})
			}
		}
	}
	return elems, nil
}

// Touch/Gesture Operations (W3C Actions)

// PerformActions sends one or more input source sequences in a single
// request. They are dispatched tick by tick by the server.
func (c *Client) PerformActions(seqs ...*Sequence) error {
	if len(seqs) == 0 {
		return nil
	}
	_, err := c.post(c.sessionPath()+"/actions", map[string]interface{}{"actions": seqs})
	if err != nil {
		if errors.Is(err, core.ErrServerUnreachable) || errors.Is(err, core.ErrInvalidSession) {
			return err
		}
		// A rejected sequence can leave a pointer down
		_ = c.ReleaseActions()
		return core.ErrGestureRejected.WithCause(err)
	}
	return nil
}

// ReleaseActions releases all pressed keys and pointers.
func (c *Client) ReleaseActions() error {
	_, err := c.delete(c.sessionPath() + "/actions")
	return err
}

// Tap performs a tap at coordinates using W3C touch actions.
func (c *Client) Tap(x, y int) error {
	return c.PerformActions(TapGesture(x, y))
}

// DoubleTap performs a double tap at coordinates.
func (c *Client) DoubleTap(x, y int) error {
	seq := NewPointerSequence("finger1", PointerTouch).
		MoveTo(x, y, 0).Down().Up().
		Pause(100 * time.Millisecond).
		Down().Up()
	return c.PerformActions(seq)
}

// LongPress performs a long press at coordinates.
func (c *Client) LongPress(x, y int, hold time.Duration) error {
	seq := NewPointerSequence("finger1", PointerTouch).
		MoveTo(x, y, 0).Down().Pause(hold).Up()
	return c.PerformActions(seq)
}

// Swipe performs a swipe gesture.
func (c *Client) Swipe(startX, startY, endX, endY int, duration time.Duration) error {
	return c.PerformActions(SwipeGesture(startX, startY, endX, endY, duration))
}

// Text Input

// SendKeys types text into the focused element.
func (c *Client) SendKeys(text string) error {
	err := c.PerformActions(NewKeySequence("keyboard").TypeText(text))
	if err != nil {
		// Fallback: Appium element value endpoint
		_, err = c.post(c.sessionPath()+"/appium/element/active/value", map[string]interface{}{
			"text": text,
		})
	}
	return err
}

// HideKeyboard hides the on-screen keyboard.
func (c *Client) HideKeyboard() error {
	_, err := c.post(c.sessionPath()+"/appium/device/hide_keyboard", nil)
	return err
}

// Navigation

// Back presses the back button.
func (c *Client) Back() error {
	return c.PressKeyCode(KeyCodeBack)
}

// PressKeyCode presses an Android key by keycode.
func (c *Client) PressKeyCode(keycode int) error {
	_, err := c.post(c.sessionPath()+"/appium/device/press_keycode", map[string]interface{}{
		"keycode": keycode,
	})
	return err
}

// App Management

// LaunchApp activates an app.
func (c *Client) LaunchApp(appID string) error {
	_, err := c.post(c.sessionPath()+"/appium/device/activate_app", map[string]interface{}{
		"appId": appID,
	})
	return err
}

// TerminateApp terminates an app.
func (c *Client) TerminateApp(appID string) error {
	_, err := c.post(c.sessionPath()+"/appium/device/terminate_app", map[string]interface{}{
		"appId": appID,
	})
	return err
}

// Screen Operations

// Screenshot returns a screenshot as PNG bytes.
func (c *Client) Screenshot() ([]byte, error) {
	resp, err := c.get(c.sessionPath() + "/screenshot")
	if err != nil {
		return nil, err
	}
	encoded, ok := resp["value"].(string)
	if !ok {
		return nil, fmt.Errorf("invalid screenshot response")
	}
	return base64.StdEncoding.DecodeString(encoded)
}

// Source returns the page source XML.
func (c *Client) Source() (string, error) {
	resp, err := c.get(c.sessionPath() + "/source")
	if err != nil {
		return "", err
	}
	source, _ := resp["value"].(string)
	return source, nil
}

// Timeouts

// SetImplicitWait sets the implicit wait timeout.
func (c *Client) SetImplicitWait(timeout time.Duration) error {
	_, err := c.post(c.sessionPath()+"/timeouts", map[string]interface{}{
		"implicit": timeout.Milliseconds(),
	})
	return err
}

// SetSettings updates Appium driver settings
// (UiAutomator2: waitForIdleTimeout, waitForSelectorTimeout).
func (c *Client) SetSettings(settings map[string]interface{}) error {
	_, err := c.post(c.sessionPath()+"/appium/settings", map[string]interface{}{
		"settings": settings,
	})
	return err
}

// ExecuteMobile executes a mobile: command.
func (c *Client) ExecuteMobile(command string, args map[string]interface{}) (interface{}, error) {
	resp, err := c.post(c.sessionPath()+"/execute/sync", map[string]interface{}{
		"script": "mobile: " + command,
		"args":   []interface{}{args},
	})
	if err != nil {
		return nil, err
	}
	return resp["value"], nil
}

// HTTP Helpers

func (c *Client) sessionPath() string {
	return "/session/" + c.sessionID
}

func (c *Client) elementPath(elementID string) string {
	return c.sessionPath() + "/element/" + elementID
}

func (c *Client) get(path string) (map[string]interface{}, error) {
	return c.request(http.MethodGet, path, nil)
}

func (c *Client) post(path string, body interface{}) (map[string]interface{}, error) {
	if body == nil {
		// W3C requires a JSON object body on POST
		body = map[string]interface{}{}
	}
	return c.request(http.MethodPost, path, body)
}

func (c *Client) delete(path string) (map[string]interface{}, error) {
	return c.request(http.MethodDelete, path, nil)
}

func (c *Client) request(method, path string, body interface{}) (map[string]interface{}, error) {
	url := c.serverURL + path

	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(jsonBody)
		logger.Debug("%s %s %s", method, path, jsonBody)
	} else {
		logger.Debug("%s %s", method, path)
	}

	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, core.ErrServerUnreachable.WithCause(err).WithDetails(map[string]interface{}{"url": c.serverURL})
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, core.ErrServerUnreachable.WithCause(err)
	}

	var result map[string]interface{}
	if len(bytes.TrimSpace(respBody)) > 0 {
		if err := json.Unmarshal(respBody, &result); err != nil {
			if resp.StatusCode >= 400 {
				return nil, &WebDriverError{Status: resp.StatusCode, Code: "unknown error", Message: strings.TrimSpace(string(respBody))}
			}
			return nil, fmt.Errorf("failed to parse response: %w", err)
		}
	}

	if wdErr := parseWebDriverError(resp.StatusCode, result); wdErr != nil {
		return result, wdErr
	}
	if resp.StatusCode >= 400 {
		return result, &WebDriverError{Status: resp.StatusCode, Code: "unknown error", Message: http.StatusText(resp.StatusCode)}
	}

	return result, nil
}

func extractElementID(value map[string]interface{}) string {
	// W3C format
	if id, ok := value[w3cElementKey].(string); ok {
		return id
	}
	// Legacy format
	if id, ok := value["ELEMENT"].(string); ok {
		return id
	}
	return ""
}
