package cli

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devicelab-dev/appscript/pkg/config"
	"github.com/devicelab-dev/appscript/pkg/core"
	"github.com/devicelab-dev/appscript/pkg/device"
	"github.com/devicelab-dev/appscript/pkg/report"
)

const homeSource = `<?xml version="1.0" encoding="UTF-8"?>
<hierarchy rotation="0">
  <android.widget.FrameLayout class="android.widget.FrameLayout" bounds="[0,0][1080,2400]" enabled="true">
    <android.widget.Button class="android.widget.Button" content-desc="Subscriptions" bounds="[648,2232][864,2400]" clickable="true" enabled="true"/>
  </android.widget.FrameLayout>
</hierarchy>`

// fakeAppium answers just enough of the W3C protocol for whole command
// runs. Every session gets its own id.
type fakeAppium struct {
	mu       sync.Mutex
	sessions []map[string]interface{} // alwaysMatch capabilities per session
	requests []string
	missing  bool
}

func (f *fakeAppium) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)
	missing := f.missing
	var sessionID string
	if r.Method == http.MethodPost && r.URL.Path == "/session" {
		var req struct {
			Capabilities struct {
				AlwaysMatch map[string]interface{} `json:"alwaysMatch"`
			} `json:"capabilities"`
		}
		_ = json.Unmarshal(body, &req)
		f.sessions = append(f.sessions, req.Capabilities.AlwaysMatch)
		sessionID = fmt.Sprintf("s%d", len(f.sessions))
	}
	f.mu.Unlock()

	reply := func(status int, v interface{}) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"value": v})
	}

	path := r.URL.Path
	switch {
	case sessionID != "":
		reply(http.StatusOK, map[string]interface{}{
			"sessionId":    sessionID,
			"capabilities": map[string]interface{}{"platformName": "Android"},
		})
	case strings.HasSuffix(path, "/element") && r.Method == http.MethodPost:
		if missing {
			reply(http.StatusNotFound, map[string]interface{}{"error": "no such element", "message": "not found"})
			return
		}
		reply(http.StatusOK, map[string]interface{}{"element-6066-11e4-a52e-4f735466cecf": "el-1"})
	case strings.HasSuffix(path, "/elements"):
		reply(http.StatusOK, []interface{}{})
	case strings.HasSuffix(path, "/displayed"), strings.HasSuffix(path, "/enabled"):
		reply(http.StatusOK, true)
	case strings.HasSuffix(path, "/source"):
		reply(http.StatusOK, homeSource)
	default:
		reply(http.StatusOK, nil)
	}
}

func (f *fakeAppium) count(method, suffix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.requests {
		if strings.HasPrefix(r, method+" ") && strings.HasSuffix(r, suffix) {
			n++
		}
	}
	return n
}

func newFakeAppium(t *testing.T) (*fakeAppium, string) {
	t.Helper()
	f := &fakeAppium{}
	server := httptest.NewServer(f)
	t.Cleanup(server.Close)
	return f, server.URL
}

// runApp runs the CLI with a scratch home directory and returns stdout.
func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	stdout = &buf
	t.Cleanup(func() { stdout = os.Stdout })

	t.Setenv("APPSCRIPT_HOME", t.TempDir())
	config.ResetHome()
	t.Cleanup(config.ResetHome)

	err := Run(append([]string{"appscript", "--no-ansi"}, args...))
	return buf.String(), err
}

func readIndex(t *testing.T, dir string) map[string]interface{} {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, report.IndexFile))
	require.NoError(t, err)
	var index map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &index))
	return index
}

func TestRunDefaultScenario(t *testing.T) {
	fake, url := newFakeAppium(t)
	out := t.TempDir()

	stdoutText, err := runApp(t, "--appium-url", url, "run", "--output", out, "--flatten")
	require.NoError(t, err)

	require.Len(t, fake.sessions, 1)
	assert.Equal(t, "com.google.android.youtube", fake.sessions[0]["appium:appPackage"])
	assert.Equal(t, "com.google.android.youtube.HomeActivity", fake.sessions[0]["appium:appActivity"])
	assert.Equal(t, true, fake.sessions[0]["appium:noReset"])
	assert.Equal(t, 1, fake.count("POST", "/actions"))
	assert.Equal(t, 1, fake.count("POST", "/element/el-1/click"))
	assert.Equal(t, 1, fake.count("DELETE", "/session/s1"))

	assert.Contains(t, stdoutText, "youtube-subscriptions")
	assert.Contains(t, stdoutText, "1/1")
	assert.Equal(t, "passed", readIndex(t, out)["status"])
	assert.FileExists(t, filepath.Join(out, report.MetricsFile))
}

func TestRunMissingElementFails(t *testing.T) {
	fake, url := newFakeAppium(t)
	fake.missing = true
	out := t.TempDir()

	stdoutText, err := runApp(t, "--appium-url", url, "run", "--output", out, "--flatten")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 1 runs did not pass")

	assert.Equal(t, 0, fake.count("POST", "/click"))
	assert.Equal(t, 1, fake.count("DELETE", "/session/s1"))
	assert.Contains(t, stdoutText, "no such element")
	assert.Equal(t, "failed", readIndex(t, out)["status"])
}

func TestRunAppiumURLFromEnv(t *testing.T) {
	fake, url := newFakeAppium(t)
	t.Setenv("APPIUM_URL", url)

	_, err := runApp(t, "run", "--output", t.TempDir(), "--flatten")
	require.NoError(t, err)
	assert.Len(t, fake.sessions, 1)
}

func TestRunParallelConfiguredDevices(t *testing.T) {
	fake, url := newFakeAppium(t)
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(fmt.Sprintf(`
devices:
  - name: Pixel_4
    udid: emulator-5554
    appiumUrl: %[1]s
    systemPort: 8200
  - name: Medium_Phone
    udid: emulator-5556
    appiumUrl: %[1]s
    systemPort: 8201
`, url)), 0o644))
	out := t.TempDir()

	stdoutText, err := runApp(t, "--config", cfgPath, "run", "--parallel", "--output", out, "--flatten")
	require.NoError(t, err)

	require.Len(t, fake.sessions, 2)
	udids := []interface{}{fake.sessions[0]["appium:udid"], fake.sessions[1]["appium:udid"]}
	assert.ElementsMatch(t, []interface{}{"emulator-5554", "emulator-5556"}, udids)

	runs := readIndex(t, out)["runs"].([]interface{})
	require.Len(t, runs, 2)
	assert.Equal(t, "Pixel_4", runs[0].(map[string]interface{})["device"])
	assert.Equal(t, "Medium_Phone", runs[1].(map[string]interface{})["device"])
	assert.Contains(t, stdoutText, "[Medium_Phone]")
	assert.Contains(t, stdoutText, "2/2")
}

func TestRunScenarioFile(t *testing.T) {
	fake, url := newFakeAppium(t)
	path := filepath.Join(t.TempDir(), "back.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: back-twice\nsteps:\n  - back\n  - back\n"), 0o644))

	_, err := runApp(t, "--appium-url", url, "run", path, "--output", t.TempDir(), "--flatten")
	require.NoError(t, err)
	assert.Equal(t, 2, fake.count("POST", "/back"))
}

func TestRunErrors(t *testing.T) {
	_, err := runApp(t, "run", "a", "b")
	assert.Error(t, err)

	_, err = runApp(t, "run", "no-such-scenario")
	assert.Error(t, err)

	_, err = runApp(t, "run", "--flatten")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--flatten requires --output")
}

func TestScenariosCommand(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mine.yaml"), []byte("description: my flow\nsteps:\n  - back\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	out, err := runApp(t, "scenarios", "--scenarios-dir", dir)
	require.NoError(t, err)

	assert.Contains(t, out, "* youtube-subscriptions")
	assert.Contains(t, out, "youtube-search")
	assert.Contains(t, out, "youtube-video")
	assert.Contains(t, out, "my flow")
	assert.NotContains(t, out, "notes")
}

func TestLoginCommand(t *testing.T) {
	fake, url := newFakeAppium(t)
	dir := t.TempDir()
	data := filepath.Join(dir, "login_data.csv")
	require.NoError(t, os.WriteFile(data, []byte(`email,password,expectedResult,description
user@example.com,secret123,success,Valid credentials
bad@example.com,wrong,failure,Wrong password
`), 0o644))
	bugs := filepath.Join(dir, "bug_reports.csv")
	out := filepath.Join(dir, "out")

	stdoutText, err := runApp(t, "--appium-url", url, "login", data,
		"--app", "apps/shop.apk", "--bug-report", bugs, "--output", out, "--settle", "1ms", "--timeout", "2s")

	// The fake screen never shows the login form again, so the
	// wrong-password case logs in "successfully" and is a bug.
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 login cases did not pass")
	assert.Contains(t, stdoutText, "1/2 cases passed, 1 bugs reported")

	require.Len(t, fake.sessions, 2, "one fresh session per case")
	app, _ := fake.sessions[0]["appium:app"].(string)
	assert.True(t, filepath.IsAbs(app))
	assert.Equal(t, true, fake.sessions[0]["appium:fullReset"])
	assert.Equal(t, 2, fake.count("DELETE", "/session/s1")+fake.count("DELETE", "/session/s2"))

	f, err := os.Open(bugs)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Wrong password", rows[1][1])
	assert.Equal(t, "Login succeeded unexpectedly", rows[1][5])

	assert.FileExists(t, filepath.Join(out, report.LoginsFile))
}

func TestLoginCommandErrors(t *testing.T) {
	_, err := runApp(t, "login")
	assert.Error(t, err)

	_, err = runApp(t, "login", "cases.xml")
	assert.Error(t, err)
}

func TestInspectCommand(t *testing.T) {
	fake, url := newFakeAppium(t)

	out, err := runApp(t, "--appium-url", url, "inspect")
	require.NoError(t, err)

	var nodes []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &nodes))
	require.Len(t, nodes, 2)
	assert.Equal(t, "Subscriptions", nodes[1]["contentDesc"])
	assert.Equal(t, `accessibility id="Subscriptions"`, nodes[1]["locator"])
	assert.Equal(t, 1, fake.count("DELETE", "/session/s1"))
}

func TestInspectCompact(t *testing.T) {
	_, url := newFakeAppium(t)

	out, err := runApp(t, "--appium-url", url, "inspect", "--compact")
	require.NoError(t, err)

	rows, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "locator", rows[0][7])
	assert.Equal(t, "[648,2232][864,2400]", rows[2][5])
	assert.Equal(t, "true", rows[2][6])
}

func TestResolveOutputDir(t *testing.T) {
	dir, err := resolveOutputDir("reports", false, false)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(dir, "reports"+string(filepath.Separator)))

	dir, err = resolveOutputDir("./my-reports", true, true)
	require.NoError(t, err)
	assert.Equal(t, "my-reports", dir)

	_, err = resolveOutputDir("reports", false, true)
	assert.Error(t, err)
}

func TestSelectDevices(t *testing.T) {
	cfg := &config.Config{Devices: []config.Device{{Name: "lab", UDID: "R58M"}}}

	devices, err := selectDevices(cfg, nil, false)
	require.NoError(t, err)
	assert.Nil(t, devices)

	devices, err = selectDevices(cfg, nil, true)
	require.NoError(t, err)
	assert.Equal(t, cfg.Devices, devices)

	devices, err = selectDevices(&config.Config{}, nil, true)
	require.NoError(t, err)
	assert.Len(t, devices, 2)

	devices, err = selectDevices(cfg, []string{"lab", "emulator-5560"}, false)
	require.NoError(t, err)
	assert.Equal(t, []config.Device{{Name: "lab", UDID: "R58M"}, {UDID: "emulator-5560"}}, devices)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "250ms", formatDuration(250e6))
	assert.Equal(t, "1.5s", formatDuration(1500e6))
	assert.Equal(t, "2m 5s", formatDuration(125e9))
}

const adbDevices = "List of devices attached\nemulator-5554\tdevice model:Pixel_4\nemulator-5556\tdevice model:Medium_Phone\nemulator-5558\toffline\n"

// fakeADB installs an adb that knows three emulators, two of them ready.
// YouTube is installed on the serials in withYouTube.
func fakeADB(t *testing.T, withYouTube ...string) {
	t.Helper()
	installed := map[string]bool{}
	for _, serial := range withYouTube {
		installed["-s "+serial+" shell pm list packages "+youtubePackage] = true
	}
	run := func(_ context.Context, _ string, args ...string) (string, error) {
		switch cmd := strings.Join(args, " "); {
		case cmd == "devices -l":
			return adbDevices, nil
		case strings.HasSuffix(cmd, "getprop ro.build.version.release"):
			return "11\n", nil
		case installed[cmd]:
			return "package:" + youtubePackage + "\n", nil
		}
		return "", nil
	}
	newADB = func() (*device.ADB, error) { return device.NewADBWithRunner("adb", run), nil }
	t.Cleanup(func() { newADB = device.NewADB })
}

func TestDevicesCommand(t *testing.T) {
	fakeADB(t, "emulator-5554")

	out, err := runApp(t, "devices")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], youtubePackage)
	assert.Regexp(t, `emulator-5554\s+device\s+Pixel 4\s+11\s+yes\s+yes`, lines[1])
	assert.Regexp(t, `emulator-5556\s+device\s+Medium Phone\s+11\s+yes\s+no`, lines[2])
	assert.Regexp(t, `emulator-5558\s+offline.*\?$`, lines[3])
}

func TestDevicesCommandJSON(t *testing.T) {
	fakeADB(t, "emulator-5554")

	out, err := runApp(t, "devices", "--json")
	require.NoError(t, err)

	var rows []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 3)
	assert.Equal(t, true, rows[0]["installed"])
	assert.Equal(t, false, rows[1]["installed"])
	assert.NotContains(t, rows[2], "installed")
}

func TestDevicesConfigured(t *testing.T) {
	out, err := runApp(t, "devices", "--configured")
	require.NoError(t, err)

	assert.Contains(t, out, "Pixel_4")
	assert.Contains(t, out, "emulator-5556")
	assert.Contains(t, out, "http://127.0.0.1:4725")
}

func TestRunConnectedDevices(t *testing.T) {
	fakeADB(t, "emulator-5554", "emulator-5556")
	fake, url := newFakeAppium(t)
	out := t.TempDir()

	_, err := runApp(t, "--appium-url", url, "run", "--connected", "--output", out, "--flatten")
	require.NoError(t, err)

	require.Len(t, fake.sessions, 2)
	ports := []interface{}{fake.sessions[0]["appium:systemPort"], fake.sessions[1]["appium:systemPort"]}
	assert.ElementsMatch(t, []interface{}{float64(8200), float64(8201)}, ports)

	runs := readIndex(t, out)["runs"].([]interface{})
	require.Len(t, runs, 2)
	assert.Equal(t, "Pixel 4", runs[0].(map[string]interface{})["device"])
}

func TestRunConnectedSkipsDevicesWithoutApp(t *testing.T) {
	fakeADB(t, "emulator-5556")
	fake, url := newFakeAppium(t)

	_, err := runApp(t, "--appium-url", url, "run", "--connected", "--output", t.TempDir(), "--flatten")
	require.NoError(t, err)

	require.Len(t, fake.sessions, 1)
	assert.Equal(t, "emulator-5556", fake.sessions[0]["appium:udid"])
	assert.Equal(t, float64(8200), fake.sessions[0]["appium:systemPort"])
}

func TestRunConnectedAppNotInstalled(t *testing.T) {
	fakeADB(t)
	fake, url := newFakeAppium(t)

	_, err := runApp(t, "--appium-url", url, "run", "--connected", "--output", t.TempDir(), "--flatten")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrAppNotInstalled)
	assert.Contains(t, err.Error(), youtubePackage+" is not installed on any connected device")
	assert.Empty(t, fake.sessions)
}

func TestDevicesCommandNoDevices(t *testing.T) {
	newADB = func() (*device.ADB, error) {
		return device.NewADBWithRunner("adb", func(context.Context, string, ...string) (string, error) {
			return "List of devices attached\n", nil
		}), nil
	}
	t.Cleanup(func() { newADB = device.NewADB })

	_, err := runApp(t, "devices")
	var noDev *device.NoDevicesError
	require.ErrorAs(t, err, &noDev)
	assert.Contains(t, err.Error(), "No Android devices or emulators found")

	out, err := runApp(t, "devices", "--json")
	require.NoError(t, err)
	assert.Equal(t, "[]", strings.TrimSpace(out))
}

func TestReorderArgs(t *testing.T) {
	app := NewApp()
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{
			name: "flags after scenario",
			in:   []string{"appscript", "run", "flow.yaml", "--device", "emulator-5554", "--flatten", "--output", "out"},
			want: []string{"appscript", "run", "--device", "emulator-5554", "--flatten", "--output", "out", "flow.yaml"},
		},
		{
			name: "global flags with values stay in front",
			in:   []string{"appscript", "--appium-url", "http://h:1", "--no-ansi", "login", "data.csv", "--settle=1ms", "--app", "a.apk"},
			want: []string{"appscript", "--appium-url", "http://h:1", "--no-ansi", "login", "--settle=1ms", "--app", "a.apk", "data.csv"},
		},
		{
			name: "double dash ends flags",
			in:   []string{"appscript", "run", "--", "-odd.yaml", "--flatten"},
			want: []string{"appscript", "run", "--", "-odd.yaml", "--flatten"},
		},
		{
			name: "unknown command untouched",
			in:   []string{"appscript", "nope", "x", "--y"},
			want: []string{"appscript", "nope", "x", "--y"},
		},
		{
			name: "no command",
			in:   []string{"appscript", "--verbose"},
			want: []string{"appscript", "--verbose"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, reorderArgs(app, tt.in))
		})
	}
}

func TestRunFlagsAfterScenario(t *testing.T) {
	fake, url := newFakeAppium(t)

	_, err := runApp(t, "--appium-url", url, "run", "youtube-subscriptions",
		"--device", "emulator-5560", "--output", t.TempDir(), "--flatten")
	require.NoError(t, err)

	require.Len(t, fake.sessions, 1)
	assert.Equal(t, "emulator-5560", fake.sessions[0]["appium:udid"])
}

func TestRunCapsFileUnderScenarioOptions(t *testing.T) {
	fake, url := newFakeAppium(t)
	caps := filepath.Join(t.TempDir(), "caps.json")
	require.NoError(t, os.WriteFile(caps, []byte(`{"noReset": false, "appium:language": "en"}`), 0o644))

	_, err := runApp(t, "--appium-url", url, "--caps", caps, "run", "--output", t.TempDir(), "--flatten")
	require.NoError(t, err)

	require.Len(t, fake.sessions, 1)
	assert.Equal(t, true, fake.sessions[0]["appium:noReset"])
	assert.Equal(t, "en", fake.sessions[0]["appium:language"])
}
