package appium

import (
	"fmt"
	"strings"
)

// Locator strategies understood by the UiAutomator2 driver.
const (
	StrategyAccessibilityID = "accessibility id"
	StrategyID              = "id"
	StrategyXPath           = "xpath"
	StrategyClassName       = "class name"
	StrategyUIAutomator     = "-android uiautomator"
)

// By is a locator: the W3C "using"/"value" pair sent to /element.
type By struct {
	Using string `json:"using"`
	Value string `json:"value"`
}

// AccessibilityID locates by content-desc.
func AccessibilityID(id string) By { return By{Using: StrategyAccessibilityID, Value: id} }

// ID locates by resource-id.
func ID(id string) By { return By{Using: StrategyID, Value: id} }

// XPath locates by an XPath expression over the page source.
func XPath(expr string) By { return By{Using: StrategyXPath, Value: expr} }

// ClassName locates by widget class, e.g. android.widget.Button.
func ClassName(name string) By { return By{Using: StrategyClassName, Value: name} }

// UIAutomator locates with a raw UiSelector expression.
func UIAutomator(expr string) By { return By{Using: StrategyUIAutomator, Value: expr} }

func (b By) String() string {
	return fmt.Sprintf("%s=%q", b.Using, b.Value)
}

// IsZero reports whether no strategy is set.
func (b By) IsZero() bool {
	return b.Using == "" && b.Value == ""
}

var strategyAliases = map[string]string{
	"accessibilityid":      StrategyAccessibilityID,
	"accessibility id":     StrategyAccessibilityID,
	"accessibility_id":     StrategyAccessibilityID,
	"id":                   StrategyID,
	"xpath":                StrategyXPath,
	"class":                StrategyClassName,
	"classname":            StrategyClassName,
	"class name":           StrategyClassName,
	"uiautomator":          StrategyUIAutomator,
	"-android uiautomator": StrategyUIAutomator,
}

// ParseStrategy normalizes a user-facing strategy name.
func ParseStrategy(name string) (string, error) {
	if s, ok := strategyAliases[strings.ToLower(strings.TrimSpace(name))]; ok {
		return s, nil
	}
	return "", fmt.Errorf("unknown locator strategy: %q", name)
}

// UiSelector builds `new UiSelector()...` expressions.
type UiSelector struct {
	calls []string
}

// NewUiSelector starts an empty selector.
func NewUiSelector() *UiSelector {
	return &UiSelector{}
}

func (u *UiSelector) str(method, v string) *UiSelector {
	u.calls = append(u.calls, fmt.Sprintf(`%s("%s")`, method, escapeUiAutomatorString(v)))
	return u
}

// Text matches the exact text.
func (u *UiSelector) Text(v string) *UiSelector { return u.str("text", v) }

// TextContains matches a text substring.
func (u *UiSelector) TextContains(v string) *UiSelector { return u.str("textContains", v) }

// Description matches the exact content-desc.
func (u *UiSelector) Description(v string) *UiSelector { return u.str("description", v) }

// DescriptionContains matches a content-desc substring.
func (u *UiSelector) DescriptionContains(v string) *UiSelector {
	return u.str("descriptionContains", v)
}

// ClassName matches the widget class.
func (u *UiSelector) ClassName(v string) *UiSelector { return u.str("className", v) }

// ResourceID matches the exact resource-id.
func (u *UiSelector) ResourceID(v string) *UiSelector { return u.str("resourceId", v) }

// ResourceIDMatches matches the resource-id against a regex.
func (u *UiSelector) ResourceIDMatches(v string) *UiSelector { return u.str("resourceIdMatches", v) }

// Instance selects the n-th match (0-based).
func (u *UiSelector) Instance(n int) *UiSelector {
	u.calls = append(u.calls, fmt.Sprintf("instance(%d)", n))
	return u
}

// Clickable filters on the clickable flag.
func (u *UiSelector) Clickable(v bool) *UiSelector {
	u.calls = append(u.calls, fmt.Sprintf("clickable(%t)", v))
	return u
}

func (u *UiSelector) String() string {
	var b strings.Builder
	b.WriteString("new UiSelector()")
	for _, c := range u.calls {
		b.WriteByte('.')
		b.WriteString(c)
	}
	return b.String()
}

// By wraps the expression in a UiAutomator locator.
func (u *UiSelector) By() By {
	return UIAutomator(u.String())
}

// escapeUiAutomatorString escapes quotes for UiAutomator string
func escapeUiAutomatorString(s string) string {
	var b strings.Builder
	for _, c := range s {
		switch c {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		default:
			b.WriteRune(c)
		}
	}
	return b.String()
}
