package script

import (
	"fmt"
	"strings"

	"github.com/devicelab-dev/appscript/pkg/core"
	"github.com/devicelab-dev/appscript/pkg/driver/appium"
)

// Locator identifies an element in a scenario file. Exactly one direct
// strategy (accessibilityId, id, xpath, uiautomator, or a using/value pair)
// may be set; otherwise the selector fields are combined into one UiSelector.
type Locator struct {
	// Using names any WebDriver strategy ("accessibility id", "-android
	// uiautomator", "class name", ...) and Value is its argument.
	Using string `mapstructure:"using"`
	Value string `mapstructure:"value"`

	AccessibilityID string `mapstructure:"accessibilityId"`
	ID              string `mapstructure:"id"`
	XPath           string `mapstructure:"xpath"`
	UIAutomator     string `mapstructure:"uiautomator"`

	ClassName           string `mapstructure:"className"`
	Text                string `mapstructure:"text"`
	TextContains        string `mapstructure:"textContains"`
	Description         string `mapstructure:"description"`
	DescriptionContains string `mapstructure:"descriptionContains"`
	ResourceID          string `mapstructure:"resourceId"`
	Instance            *int   `mapstructure:"instance"`
}

// IsZero reports whether no field is set.
func (l Locator) IsZero() bool {
	return l.Using == "" && l.Value == "" &&
		l.AccessibilityID == "" && l.ID == "" && l.XPath == "" && l.UIAutomator == "" &&
		!l.hasSelector() && l.ClassName == ""
}

func (l Locator) hasSelector() bool {
	return l.Text != "" || l.TextContains != "" || l.Description != "" ||
		l.DescriptionContains != "" || l.ResourceID != "" || l.Instance != nil
}

// By converts the locator to a WebDriver locator.
func (l Locator) By() (appium.By, error) {
	var direct []appium.By
	switch {
	case l.Using != "" && l.Value == "":
		return appium.By{}, core.ErrMissingRequired.WithMessage("locator using " + l.Using + " has no value")
	case l.Using == "" && l.Value != "":
		return appium.By{}, core.ErrMissingRequired.WithMessage("locator value has no using strategy: " + l.String())
	case l.Using != "":
		strategy, err := appium.ParseStrategy(l.Using)
		if err != nil {
			return appium.By{}, core.ErrInvalidConfig.WithCause(err)
		}
		direct = append(direct, appium.By{Using: strategy, Value: l.Value})
	}
	if l.AccessibilityID != "" {
		direct = append(direct, appium.AccessibilityID(l.AccessibilityID))
	}
	if l.ID != "" {
		direct = append(direct, appium.ID(l.ID))
	}
	if l.XPath != "" {
		direct = append(direct, appium.XPath(l.XPath))
	}
	if l.UIAutomator != "" {
		direct = append(direct, appium.UIAutomator(l.UIAutomator))
	}

	switch {
	case len(direct) > 1:
		return appium.By{}, core.ErrInvalidConfig.WithMessage("locator sets more than one strategy: " + l.String())
	case len(direct) == 1 && (l.hasSelector() || l.ClassName != ""):
		return appium.By{}, core.ErrInvalidConfig.WithMessage("locator mixes a strategy with selector fields: " + l.String())
	case len(direct) == 1:
		return direct[0], nil
	case l.ClassName != "" && !l.hasSelector():
		return appium.ClassName(l.ClassName), nil
	case !l.hasSelector():
		return appium.By{}, core.ErrMissingRequired.WithMessage("locator is empty")
	}

	sel := appium.NewUiSelector()
	if l.ClassName != "" {
		sel.ClassName(l.ClassName)
	}
	if l.ResourceID != "" {
		sel.ResourceID(l.ResourceID)
	}
	if l.Text != "" {
		sel.Text(l.Text)
	}
	if l.TextContains != "" {
		sel.TextContains(l.TextContains)
	}
	if l.Description != "" {
		sel.Description(l.Description)
	}
	if l.DescriptionContains != "" {
		sel.DescriptionContains(l.DescriptionContains)
	}
	if l.Instance != nil {
		sel.Instance(*l.Instance)
	}
	return sel.By(), nil
}

func (l Locator) String() string {
	var parts []string
	add := func(k, v string) {
		if v != "" {
			parts = append(parts, fmt.Sprintf("%s=%q", k, v))
		}
	}
	add("using", l.Using)
	add("value", l.Value)
	add("accessibilityId", l.AccessibilityID)
	add("id", l.ID)
	add("xpath", l.XPath)
	add("uiautomator", l.UIAutomator)
	add("className", l.ClassName)
	add("resourceId", l.ResourceID)
	add("text", l.Text)
	add("textContains", l.TextContains)
	add("description", l.Description)
	add("descriptionContains", l.DescriptionContains)
	if l.Instance != nil {
		parts = append(parts, fmt.Sprintf("instance=%d", *l.Instance))
	}
	if len(parts) == 0 {
		return "<empty locator>"
	}
	return strings.Join(parts, ", ")
}
