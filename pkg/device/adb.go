// Package device queries Android devices through adb.
package device

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/devicelab-dev/appscript/pkg/config"
	"github.com/devicelab-dev/appscript/pkg/logger"
)

// Runner executes adb with args and returns stdout.
type Runner func(ctx context.Context, adbPath string, args ...string) (string, error)

// ADB runs adb commands against connected devices.
type ADB struct {
	path string
	run  Runner
}

// Info describes a device reported by adb.
type Info struct {
	Serial     string `json:"serial"`
	State      string `json:"state"`
	Model      string `json:"model,omitempty"`
	Brand      string `json:"brand,omitempty"`
	SDK        string `json:"sdk,omitempty"`
	Release    string `json:"release,omitempty"`
	IsEmulator bool   `json:"emulator"`
}

// Ready reports whether adb can talk to the device.
func (i Info) Ready() bool {
	return i.State == "device"
}

// Device converts the adb view into a run target on the default server.
func (i Info) Device() config.Device {
	name := i.Model
	if name == "" {
		name = i.Serial
	}
	return config.Device{Name: name, UDID: i.Serial, PlatformVersion: i.Release}
}

// NoDevicesError is returned when adb lists no usable device.
type NoDevicesError struct {
	Message     string
	Suggestions []string
}

func (e *NoDevicesError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Message)
	if len(e.Suggestions) > 0 {
		sb.WriteString("\n\nOptions:")
		for _, s := range e.Suggestions {
			sb.WriteString("\n  - ")
			sb.WriteString(s)
		}
	}
	return sb.String()
}

// NewNoDevicesError describes an empty device list with the usual ways
// to get a device online.
func NewNoDevicesError() *NoDevicesError {
	return &NoDevicesError{
		Message: "No Android devices or emulators found",
		Suggestions: []string{
			"Connect a physical device via USB and accept the debugging prompt",
			"Start an emulator: emulator -avd <name>",
			"List configured devices with: appscript devices --configured",
		},
	}
}

// NewADB locates the adb binary.
func NewADB() (*ADB, error) {
	path, err := findADB()
	if err != nil {
		return nil, err
	}
	return NewADBWithRunner(path, execRunner), nil
}

// NewADBWithRunner returns an ADB that executes commands through run.
func NewADBWithRunner(path string, run Runner) *ADB {
	return &ADB{path: path, run: run}
}

// List returns every device adb knows about, including offline and
// unauthorized ones.
func (a *ADB) List(ctx context.Context) ([]Info, error) {
	out, err := a.run(ctx, a.path, "devices", "-l")
	if err != nil {
		return nil, err
	}
	return parseDevices(out), nil
}

// Ready returns the devices in the "device" state with their properties
// filled in. An empty result is a *NoDevicesError.
func (a *ADB) Ready(ctx context.Context) ([]Info, error) {
	all, err := a.List(ctx)
	if err != nil {
		return nil, err
	}
	var ready []Info
	for _, d := range all {
		if !d.Ready() {
			logger.Debug("skipping %s in state %s", d.Serial, d.State)
			continue
		}
		ready = append(ready, a.Describe(ctx, d))
	}
	if len(ready) == 0 {
		return nil, NewNoDevicesError()
	}
	return ready, nil
}

// Describe fills in build properties. Failures leave fields empty.
func (a *ADB) Describe(ctx context.Context, d Info) Info {
	prop := func(name string) string {
		out, err := a.shell(ctx, d.Serial, "getprop "+name)
		if err != nil {
			logger.Debug("getprop %s on %s: %v", name, d.Serial, err)
			return ""
		}
		return strings.TrimSpace(out)
	}
	if model := prop("ro.product.model"); model != "" {
		d.Model = model
	}
	d.Brand = prop("ro.product.brand")
	d.SDK = prop("ro.build.version.sdk")
	d.Release = prop("ro.build.version.release")
	d.IsEmulator = d.IsEmulator || prop("ro.kernel.qemu") == "1"
	return d
}

// IsInstalled reports whether pkg is installed on the device.
func (a *ADB) IsInstalled(ctx context.Context, serial, pkg string) (bool, error) {
	out, err := a.shell(ctx, serial, "pm list packages "+pkg)
	if err != nil {
		return false, err
	}
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) == "package:"+pkg {
			return true, nil
		}
	}
	return false, nil
}

func (a *ADB) shell(ctx context.Context, serial, cmd string) (string, error) {
	return a.run(ctx, a.path, "-s", serial, "shell", cmd)
}

// parseDevices parses `adb devices -l` output:
//
//	emulator-5554  device product:sdk_gphone64 model:Pixel_4 device:emu64a transport_id:1
func parseDevices(out string) []Info {
	var devices []Info
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "List of") || strings.HasPrefix(line, "*") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		d := Info{
			Serial:     fields[0],
			State:      fields[1],
			IsEmulator: strings.HasPrefix(fields[0], "emulator-"),
		}
		for _, f := range fields[2:] {
			if model, ok := strings.CutPrefix(f, "model:"); ok {
				d.Model = strings.ReplaceAll(model, "_", " ")
			}
		}
		devices = append(devices, d)
	}
	return devices
}

func execRunner(ctx context.Context, adbPath string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, adbPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = strings.TrimSpace(stdout.String())
		}
		return "", fmt.Errorf("adb %s: %w: %s", strings.Join(args, " "), err, msg)
	}
	return stdout.String(), nil
}

// findADB looks in PATH, then the Android SDK directories.
func findADB() (string, error) {
	if path, err := exec.LookPath("adb"); err == nil {
		return path, nil
	}
	for _, env := range []string{"ANDROID_HOME", "ANDROID_SDK_ROOT"} {
		root := os.Getenv(env)
		if root == "" {
			continue
		}
		path := filepath.Join(root, "platform-tools", "adb")
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("adb not found in PATH or $ANDROID_HOME/platform-tools; ensure the Android SDK is installed")
}
