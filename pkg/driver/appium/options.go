package appium

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/devicelab-dev/appscript/pkg/core"
)

// Options are UiAutomator2 session options. Zero values are left out of
// the capabilities, except NoReset/FullReset once set through the pointer.
type Options struct {
	PlatformName         string `yaml:"platformName" mapstructure:"platformName"`
	AutomationName       string `yaml:"automationName" mapstructure:"automationName"`
	App                  string `yaml:"app" mapstructure:"app"`
	AppPackage           string `yaml:"appPackage" mapstructure:"appPackage"`
	AppActivity          string `yaml:"appActivity" mapstructure:"appActivity"`
	NoReset              *bool  `yaml:"noReset" mapstructure:"noReset"`
	FullReset            *bool  `yaml:"fullReset" mapstructure:"fullReset"`
	DeviceName           string `yaml:"deviceName" mapstructure:"deviceName"`
	PlatformVersion      string `yaml:"platformVersion" mapstructure:"platformVersion"`
	UDID                 string `yaml:"udid" mapstructure:"udid"`
	SystemPort           int    `yaml:"systemPort" mapstructure:"systemPort"`
	NewCommandTimeout    int    `yaml:"newCommandTimeout" mapstructure:"newCommandTimeout"` // seconds
	AutoGrantPermissions *bool  `yaml:"autoGrantPermissions" mapstructure:"autoGrantPermissions"`

	// Extra holds any other capability, keyed as sent (prefix included).
	Extra map[string]interface{} `yaml:"extra" mapstructure:"extra"`
}

// Bool returns a pointer for the optional boolean fields.
func Bool(v bool) *bool { return &v }

// DefaultYouTubeOptions opens the YouTube home activity without resetting
// app state.
func DefaultYouTubeOptions() Options {
	return Options{
		PlatformName:   "Android",
		AutomationName: "UiAutomator2",
		AppPackage:     "com.google.android.youtube",
		AppActivity:    "com.google.android.youtube.HomeActivity",
		NoReset:        Bool(true),
	}
}

// Capabilities renders the options as W3C capabilities with the appium:
// vendor prefix on non-standard keys.
func (o Options) Capabilities() map[string]interface{} {
	caps := make(map[string]interface{})
	for k, v := range o.Extra {
		caps[k] = v
	}

	setStr := func(key, v string) {
		if v != "" {
			caps[key] = v
		}
	}
	setStr("platformName", o.PlatformName)
	setStr("appium:automationName", o.AutomationName)
	setStr("appium:app", o.App)
	setStr("appium:appPackage", o.AppPackage)
	setStr("appium:appActivity", o.AppActivity)
	setStr("appium:deviceName", o.DeviceName)
	setStr("appium:platformVersion", o.PlatformVersion)
	setStr("appium:udid", o.UDID)

	if o.NoReset != nil {
		caps["appium:noReset"] = *o.NoReset
	}
	if o.FullReset != nil {
		caps["appium:fullReset"] = *o.FullReset
	}
	if o.AutoGrantPermissions != nil {
		caps["appium:autoGrantPermissions"] = *o.AutoGrantPermissions
	}
	if o.SystemPort > 0 {
		caps["appium:systemPort"] = o.SystemPort
	}
	if o.NewCommandTimeout > 0 {
		caps["appium:newCommandTimeout"] = o.NewCommandTimeout
	}
	return caps
}

// Validate checks the options can start an Android session.
func (o Options) Validate() error {
	if o.PlatformName == "" {
		return core.ErrMissingRequired.WithMessage("platformName is required")
	}
	if o.App == "" && o.AppPackage == "" {
		return core.ErrMissingRequired.WithMessage("either app or appPackage is required")
	}
	if o.AppActivity != "" && o.AppPackage == "" {
		return core.ErrInvalidConfig.WithMessage("appActivity requires appPackage")
	}
	if o.NoReset != nil && o.FullReset != nil && *o.NoReset && *o.FullReset {
		return core.ErrInvalidConfig.WithMessage("noReset and fullReset are mutually exclusive")
	}
	return nil
}

// Merge returns o with every non-zero field of override applied.
func (o Options) Merge(override Options) Options {
	pick := func(base, v string) string {
		if v != "" {
			return v
		}
		return base
	}
	out := o
	out.PlatformName = pick(o.PlatformName, override.PlatformName)
	out.AutomationName = pick(o.AutomationName, override.AutomationName)
	out.App = pick(o.App, override.App)
	out.AppPackage = pick(o.AppPackage, override.AppPackage)
	out.AppActivity = pick(o.AppActivity, override.AppActivity)
	out.DeviceName = pick(o.DeviceName, override.DeviceName)
	out.PlatformVersion = pick(o.PlatformVersion, override.PlatformVersion)
	out.UDID = pick(o.UDID, override.UDID)
	if override.NoReset != nil {
		out.NoReset = override.NoReset
	}
	if override.FullReset != nil {
		out.FullReset = override.FullReset
	}
	if override.AutoGrantPermissions != nil {
		out.AutoGrantPermissions = override.AutoGrantPermissions
	}
	if override.SystemPort > 0 {
		out.SystemPort = override.SystemPort
	}
	if override.NewCommandTimeout > 0 {
		out.NewCommandTimeout = override.NewCommandTimeout
	}
	if len(override.Extra) > 0 {
		extra := make(map[string]interface{}, len(o.Extra)+len(override.Extra))
		for k, v := range o.Extra {
			extra[k] = v
		}
		for k, v := range override.Extra {
			extra[k] = v
		}
		out.Extra = extra
	}
	return out
}

// MergeCapabilities layers caps maps left to right; later maps win.
// Keys without a vendor prefix (other than W3C standard ones) get appium:.
func MergeCapabilities(layers ...map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{})
	for _, layer := range layers {
		for k, v := range layer {
			out[normalizeCapKey(k)] = v
		}
	}
	return out
}

var standardCaps = map[string]bool{
	"platformName":              true,
	"browserName":               true,
	"browserVersion":            true,
	"acceptInsecureCerts":       true,
	"pageLoadStrategy":          true,
	"proxy":                     true,
	"setWindowRect":             true,
	"timeouts":                  true,
	"strictFileInteractability": true,
	"unhandledPromptBehavior":   true,
}

func normalizeCapKey(k string) string {
	if standardCaps[k] || strings.Contains(k, ":") {
		return k
	}
	return "appium:" + k
}

// LoadCapabilities reads a JSON capabilities file.
func LoadCapabilities(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided caps file
	if err != nil {
		return nil, fmt.Errorf("failed to read caps file: %w", err)
	}

	var caps map[string]interface{}
	if err := json.Unmarshal(data, &caps); err != nil {
		return nil, fmt.Errorf("failed to parse caps JSON: %w", err)
	}
	return caps, nil
}
