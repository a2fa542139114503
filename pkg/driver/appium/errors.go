package appium

import (
	"fmt"

	"github.com/devicelab-dev/appscript/pkg/core"
)

// WebDriverError is an error payload returned by the server:
// {"value": {"error": "...", "message": "...", "stacktrace": "..."}}.
type WebDriverError struct {
	Status     int    // HTTP status code
	Code       string // W3C error code, e.g. "no such element"
	Message    string
	Stacktrace string
}

func (e *WebDriverError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap maps the W3C error code onto the matching core sentinel so callers
// can test with errors.Is(err, core.ErrElementNotFound).
func (e *WebDriverError) Unwrap() error {
	if s, ok := w3cErrors[e.Code]; ok {
		return s
	}
	return nil
}

var w3cErrors = map[string]*core.ExecutionError{
	"no such element":           core.ErrElementNotFound,
	"stale element reference":   core.ErrStaleElement,
	"element not interactable":  core.ErrElementNotInteractable,
	"element click intercepted": core.ErrElementNotInteractable,
	"session not created":       core.ErrSessionNotCreated,
	"invalid session id":        core.ErrInvalidSession,
	"timeout":                   core.ErrTimeout,
	"script timeout":            core.ErrTimeout,
	"move target out of bounds": core.ErrGestureRejected,
}

func parseWebDriverError(status int, result map[string]interface{}) *WebDriverError {
	value, ok := result["value"].(map[string]interface{})
	if !ok {
		return nil
	}
	code, ok := value["error"].(string)
	if !ok || code == "" {
		return nil
	}
	msg, _ := value["message"].(string)
	trace, _ := value["stacktrace"].(string)
	return &WebDriverError{Status: status, Code: code, Message: msg, Stacktrace: trace}
}
