package appium

import (
	"strings"

	"github.com/devicelab-dev/appscript/pkg/core"
)

// Element is a handle to a located UI element. It is only valid for the
// session that found it.
type Element struct {
	client  *Client
	ID      string
	Locator By
}

// Click clicks the element using WebDriver standard endpoint.
func (e *Element) Click() error {
	_, err := e.client.post(e.client.elementPath(e.ID)+"/click", nil)
	return err
}

// Clear clears an editable element's text.
func (e *Element) Clear() error {
	_, err := e.client.post(e.client.elementPath(e.ID)+"/clear", nil)
	return err
}

// SendKeys types text into the element.
func (e *Element) SendKeys(text string) error {
	_, err := e.client.post(e.client.elementPath(e.ID)+"/value", map[string]interface{}{
		"text":  text,
		"value": strings.Split(text, ""),
	})
	return err
}

// Text returns the element's text.
func (e *Element) Text() (string, error) {
	resp, err := e.client.get(e.client.elementPath(e.ID) + "/text")
	if err != nil {
		return "", err
	}
	text, _ := resp["value"].(string)
	return text, nil
}

// Attribute returns an attribute value (e.g. content-desc, clickable).
func (e *Element) Attribute(name string) (string, error) {
	resp, err := e.client.get(e.client.elementPath(e.ID) + "/attribute/" + name)
	if err != nil {
		return "", err
	}
	value, _ := resp["value"].(string)
	return value, nil
}

// Rect returns the element's position and size.
func (e *Element) Rect() (core.Bounds, error) {
	resp, err := e.client.get(e.client.elementPath(e.ID) + "/rect")
	if err != nil {
		return core.Bounds{}, err
	}
	value, ok := resp["value"].(map[string]interface{})
	if !ok {
		return core.Bounds{}, core.ErrStaleElement.WithMessage("invalid rect response")
	}

	xf, _ := value["x"].(float64)
	yf, _ := value["y"].(float64)
	wf, _ := value["width"].(float64)
	hf, _ := value["height"].(float64)
	return core.Bounds{X: int(xf), Y: int(yf), Width: int(wf), Height: int(hf)}, nil
}

// Displayed reports whether the element is visible.
func (e *Element) Displayed() (bool, error) {
	resp, err := e.client.get(e.client.elementPath(e.ID) + "/displayed")
	if err != nil {
		return false, err
	}
	displayed, _ := resp["value"].(bool)
	return displayed, nil
}

// Enabled reports whether the element is enabled.
func (e *Element) Enabled() (bool, error) {
	resp, err := e.client.get(e.client.elementPath(e.ID) + "/enabled")
	if err != nil {
		return false, err
	}
	enabled, _ := resp["value"].(bool)
	return enabled, nil
}

// Info summarizes the element for reports. Rect failures leave bounds zero.
func (e *Element) Info() *core.ElementInfo {
	info := &core.ElementInfo{ID: e.ID}
	if !e.Locator.IsZero() {
		info.Locator = e.Locator.String()
	}
	if b, err := e.Rect(); err == nil {
		info.Bounds = b
	}
	return info
}
