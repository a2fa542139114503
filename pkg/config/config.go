// Package config handles configuration for appscript.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultAppiumURL is the address of a locally started Appium server.
const DefaultAppiumURL = "http://127.0.0.1:4723"

// DefaultFindTimeout bounds waits on locators that ask for one.
const DefaultFindTimeout = 10 * time.Second

// Config represents the workspace configuration (config.yaml).
type Config struct {
	// Server settings
	AppiumURL      string `yaml:"appiumUrl"`
	ConnectRetries int    `yaml:"connectRetries"` // Session creation retries (0 = single attempt)

	// Waits
	FindTimeout time.Duration `yaml:"findTimeout"`

	// Extra capabilities merged into every session
	Capabilities map[string]interface{} `yaml:"capabilities"`

	// Devices used by `run --parallel`
	Devices []Device `yaml:"devices"`

	// Report output directory
	Output string `yaml:"output"`
}

// Device describes one target device and the Appium server bound to it.
type Device struct {
	Name            string `yaml:"name"`
	PlatformVersion string `yaml:"platformVersion"`
	UDID            string `yaml:"udid"`
	AppiumURL       string `yaml:"appiumUrl"`
	SystemPort      int    `yaml:"systemPort"`
}

// Label returns the most specific identifier for log lines and reports.
func (d Device) Label() string {
	if d.Name != "" {
		return d.Name
	}
	if d.UDID != "" {
		return d.UDID
	}
	return "default"
}

// Load loads configuration from a file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided config file
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

// LoadFromDir looks for config.yaml or config.yml in the directory.
func LoadFromDir(dir string) (*Config, error) {
	configPath := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(configPath); err == nil {
		return Load(configPath)
	}

	configPath = filepath.Join(dir, "config.yml")
	if _, err := os.Stat(configPath); err == nil {
		return Load(configPath)
	}

	return &Config{}, nil
}

// Validate checks values that cannot be corrected with defaults.
func (c *Config) Validate() error {
	if c.ConnectRetries < 0 {
		return fmt.Errorf("connectRetries must be >= 0, got %d", c.ConnectRetries)
	}
	if c.FindTimeout < 0 {
		return fmt.Errorf("findTimeout must be >= 0, got %s", c.FindTimeout)
	}
	seen := make(map[string]bool)
	for i, d := range c.Devices {
		if d.UDID == "" {
			return fmt.Errorf("devices[%d]: udid is required", i)
		}
		if seen[d.UDID] {
			return fmt.Errorf("devices[%d]: duplicate udid %q", i, d.UDID)
		}
		seen[d.UDID] = true
	}
	return nil
}

// ServerURL returns the configured Appium URL or the local default.
func (c *Config) ServerURL() string {
	if c.AppiumURL != "" {
		return c.AppiumURL
	}
	return DefaultAppiumURL
}

// Timeout returns the configured find timeout or the default.
func (c *Config) Timeout() time.Duration {
	if c.FindTimeout > 0 {
		return c.FindTimeout
	}
	return DefaultFindTimeout
}

// FindDevices returns the configured devices whose UDID or name is listed.
// An empty list selects every device.
func (c *Config) FindDevices(ids []string) ([]Device, error) {
	if len(ids) == 0 {
		return c.Devices, nil
	}
	var out []Device
	for _, id := range ids {
		found := false
		for _, d := range c.Devices {
			if d.UDID == id || d.Name == id {
				out = append(out, d)
				found = true
				break
			}
		}
		if !found {
			// Unknown ids are taken as ad-hoc UDIDs on the default server.
			out = append(out, Device{UDID: id})
		}
	}
	return out, nil
}
