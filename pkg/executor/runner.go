// Package executor runs a scenario across one or more devices.
package executor

import (
	"time"

	"github.com/devicelab-dev/appscript/pkg/config"
	"github.com/devicelab-dev/appscript/pkg/core"
	"github.com/devicelab-dev/appscript/pkg/script"
)

// RunnerConfig configures multi-device runs.
type RunnerConfig struct {
	ServerURL   string        // Server for devices without their own appiumUrl
	FindTimeout time.Duration // Default wait for locators that ask for one
	Parallelism int           // Max concurrent devices (0 = all at once)

	// Capabilities are defaults under the scenario options; each device's
	// own capabilities override both.
	Capabilities map[string]interface{}

	// Dial opens sessions. Defaults to script.AppiumDialer(0).
	Dial script.Dialer

	// Live progress callbacks
	OnDeviceStart  func(device config.Device)
	OnStepComplete func(device config.Device, res core.StepResult)
	OnDeviceEnd    func(device config.Device, result *core.RunResult)
}

// RunResult contains the outcome of a run across devices.
type RunResult struct {
	Status        core.StepStatus
	TotalDevices  int
	PassedDevices int
	FailedDevices int
	Duration      time.Duration // Wall clock time
	Results       []*core.RunResult
}

// buildRunResult aggregates per-device results. Duration is wall clock
// time, not the sum of the device runs.
func buildRunResult(results []*core.RunResult, wallClock time.Duration) *RunResult {
	run := &RunResult{
		TotalDevices: len(results),
		Results:      results,
		Duration:     wallClock,
		Status:       core.StatusPassed,
	}

	for _, r := range results {
		if r.Status == core.StatusPassed {
			run.PassedDevices++
			continue
		}
		run.FailedDevices++
		if run.Status == core.StatusPassed {
			run.Status = r.Status
		}
	}
	return run
}

// DefaultDevices are two local emulators, each behind its own Appium
// server and UiAutomator2 system port.
func DefaultDevices() []config.Device {
	return []config.Device{
		{
			Name:            "Pixel_4",
			PlatformVersion: "11.0",
			UDID:            "emulator-5554",
			AppiumURL:       "http://127.0.0.1:4723",
			SystemPort:      8200,
		},
		{
			Name:            "Medium_Phone",
			PlatformVersion: "11.0",
			UDID:            "emulator-5556",
			AppiumURL:       "http://127.0.0.1:4725",
			SystemPort:      8201,
		},
	}
}

// DeviceCapabilities returns the capabilities that bind a session to d.
func DeviceCapabilities(d config.Device) map[string]interface{} {
	caps := make(map[string]interface{})
	if d.Name != "" {
		caps["appium:deviceName"] = d.Name
	}
	if d.PlatformVersion != "" {
		caps["appium:platformVersion"] = d.PlatformVersion
	}
	if d.UDID != "" {
		caps["appium:udid"] = d.UDID
	}
	if d.SystemPort > 0 {
		caps["appium:systemPort"] = d.SystemPort
	}
	return caps
}
