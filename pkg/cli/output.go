package cli

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/devicelab-dev/appscript/pkg/core"
	"github.com/devicelab-dev/appscript/pkg/script"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
)

// Slow step threshold
const slowThreshold = 5 * time.Second

// colorsEnabled determines if ANSI colors should be used
var colorsEnabled = true

// printMu keeps lines from concurrent device runs whole.
var printMu sync.Mutex

func init() {
	// Respect NO_COLOR environment variable
	if os.Getenv("NO_COLOR") != "" {
		colorsEnabled = false
		return
	}
	if fileInfo, err := os.Stdout.Stat(); err == nil {
		if (fileInfo.Mode() & os.ModeCharDevice) == 0 {
			colorsEnabled = false
		}
	}
}

// color returns the color code if colors are enabled, empty string otherwise
func color(c string) string {
	if colorsEnabled {
		return c
	}
	return ""
}

func printf(format string, args ...interface{}) {
	printMu.Lock()
	defer printMu.Unlock()
	fmt.Fprintf(stdout, format, args...)
}

func onScenarioStart(sc *script.Scenario, serverURL string, devices int) {
	where := serverURL
	if devices > 0 {
		where = fmt.Sprintf("%d devices", devices)
	}
	printf("\n  %s%s%s (%s)\n", color(colorBold), sc.Name, color(colorReset), where)
	if sc.Description != "" {
		printf("  %s%s%s\n", color(colorGray), sc.Description, color(colorReset))
	}
	printf("%s\n", strings.Repeat("─", 60))
}

// onStepComplete prints one step line. device is empty for single runs.
func onStepComplete(device string, res core.StepResult) {
	prefix := "    "
	if device != "" {
		prefix = fmt.Sprintf("    %s[%s]%s ", color(colorCyan), device, color(colorReset))
	}
	dur := formatDuration(res.Duration)

	switch res.Status {
	case core.StatusPassed:
		symbol, symbolColor, durColor := "✓", color(colorGreen), ""
		if res.Duration >= slowThreshold {
			symbol, symbolColor, durColor = "⚠", color(colorYellow), color(colorYellow)
		}
		line := fmt.Sprintf("%s%s%s%s %s %s(%s)%s", prefix, symbolColor, symbol, color(colorReset), res.Label, durColor, dur, color(colorReset))
		if res.Message != "" {
			line += fmt.Sprintf(" %s%s%s", color(colorGray), res.Message, color(colorReset))
		}
		printf("%s\n", line)
	case core.StatusSkipped:
		printf("%s%s-%s %s %s(skipped)%s\n", prefix, color(colorCyan), color(colorReset), res.Label, color(colorGray), color(colorReset))
	default:
		marker := ""
		if res.Optional {
			marker = " (optional)"
		}
		printf("%s%s✗%s %s%s (%s)\n", prefix, color(colorRed), color(colorReset), res.Label, marker, dur)
		if res.Error != "" {
			printf("%s  %s╰─%s %s\n", prefix, color(colorGray), color(colorReset), res.Error)
		}
	}
}

func statusLabel(s core.StepStatus) (string, string) {
	switch s {
	case core.StatusPassed:
		return "✓ PASS", color(colorGreen)
	case core.StatusFailed:
		return "✗ FAIL", color(colorRed)
	case core.StatusSkipped:
		return "- SKIP", color(colorCyan)
	default:
		return "✗ ERR", color(colorRed)
	}
}

func printSummary(results []*core.RunResult) {
	var total, passed, failed, skipped, passedRuns int
	var duration time.Duration
	for _, r := range results {
		total += r.TotalSteps
		passed += r.PassedSteps
		failed += r.FailedSteps
		skipped += r.SkippedSteps
		if r.Status == core.StatusPassed {
			passedRuns++
		}
		if r.Duration > duration {
			duration = r.Duration
		}
	}

	printf("\n")
	if passed > 0 {
		printf("  %s%d steps passing%s (%s)\n", color(colorGreen), passed, color(colorReset), formatDuration(duration))
	}
	if failed > 0 {
		printf("  %s%d steps failing%s\n", color(colorRed), failed, color(colorReset))
	}
	if skipped > 0 {
		printf("  %s%d steps skipped%s\n", color(colorCyan), skipped, color(colorReset))
	}
	printf("\n")

	tableWidth := 92
	printf("%s\n", strings.Repeat("═", tableWidth))
	printf("  %-42s %6s %7s %6s %6s %6s %10s\n", "Device", "Status", "Steps", "Pass", "Fail", "Skip", "Duration")
	printf("%s\n", strings.Repeat("─", tableWidth))

	for _, r := range results {
		status, statusColor := statusLabel(r.Status)
		name := r.Device
		if name == "" {
			name = r.Scenario
		}
		if len(name) > 42 {
			name = name[:39] + "..."
		}
		printf("  %-42s %s%6s%s %7d %6d %6d %6d %10s\n",
			name, statusColor, status, color(colorReset),
			r.TotalSteps, r.PassedSteps, r.FailedSteps, r.SkippedSteps,
			formatDuration(r.Duration))
		if r.Err != nil {
			printf("    %s╰─%s %s\n", color(colorGray), color(colorReset), r.Err)
		}
	}

	printf("%s\n", strings.Repeat("─", tableWidth))
	statusColor := color(colorGreen)
	if passedRuns < len(results) {
		statusColor = color(colorRed)
	}
	printf("  %s%-42s%s %s%6s%s %7d %6d %6d %6d %10s\n",
		color(colorBold), "TOTAL", color(colorReset),
		statusColor, fmt.Sprintf("%d/%d", passedRuns, len(results)), color(colorReset),
		total, passed, failed, skipped,
		formatDuration(duration))
	printf("%s\n", strings.Repeat("═", tableWidth))
}

// formatDuration shows milliseconds below a second, seconds below a
// minute, and minutes and seconds otherwise.
func formatDuration(d time.Duration) string {
	ms := d.Milliseconds()
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	if ms < 60000 {
		return fmt.Sprintf("%.1fs", float64(ms)/1000)
	}
	mins := ms / 60000
	secs := (ms % 60000) / 1000
	return fmt.Sprintf("%dm %ds", mins, secs)
}
