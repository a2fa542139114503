package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/appscript/pkg/bugreport"
	"github.com/devicelab-dev/appscript/pkg/config"
	"github.com/devicelab-dev/appscript/pkg/core"
	"github.com/devicelab-dev/appscript/pkg/dataset"
	"github.com/devicelab-dev/appscript/pkg/report"
	"github.com/devicelab-dev/appscript/pkg/script"
	"github.com/devicelab-dev/appscript/pkg/shop"
)

var loginCommand = &cli.Command{
	Name:      "login",
	Usage:     "Run data-driven login checks against the shop app",
	ArgsUsage: "<login_data.csv | login_data.json>",
	Description: `Sign in to the shop app once per data row and compare the screen
with the row's expected result (success or failure). Every mismatch is
appended to the bug report CSV.

CSV files have a header and the columns email,password,expectedResult,description.
JSON files hold {"loginTestData": [{"email": ..., "password": ..., ...}]}.

Examples:
  appscript login login_data.csv
  appscript login login_data.json --app ./apps/shop.apk --bug-report out/bugs.csv`,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "app",
			Usage: "Shop APK installed with a full reset before each case (default: <home>/apps/shop.apk)",
		},
		&cli.StringFlag{
			Name:  "bug-report",
			Usage: "CSV file for mismatches (truncated on start)",
			Value: "bug_reports.csv",
		},
		&cli.StringFlag{
			Name:  "output",
			Usage: "Output directory for logins.json and metrics.prom",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Wait for each login control",
			Value: shop.DefaultTimeout,
		},
		&cli.DurationFlag{
			Name:  "settle",
			Usage: "Pause after Sign In before reading the screen",
			Value: shop.DefaultSettle,
		},
	},
	Action: runLogin,
}

func runLogin(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("login requires exactly one data file")
	}

	s, err := loadSettings(c)
	if err != nil {
		return err
	}

	cases, err := dataset.Read(c.Args().First())
	if err != nil {
		return err
	}
	if len(cases) == 0 {
		return fmt.Errorf("no login cases in %s", c.Args().First())
	}

	app := c.String("app")
	if app == "" {
		app = filepath.Join(config.GetHome(), "apps", "shop.apk")
	}
	if abs, err := filepath.Abs(app); err == nil {
		app = abs
	}

	bugs, err := bugreport.Create(c.String("bug-report"))
	if err != nil {
		return err
	}
	defer bugs.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	printf("\n  %sshop login%s (%d cases, %s)\n", color(colorBold), color(colorReset), len(cases), s.appiumURL)
	check := &shop.LoginCheck{
		ServerURL:    s.appiumURL,
		Options:      shop.DefaultOptions(app),
		Capabilities: s.caps,
		Dial:         script.AppiumDialer(s.config.ConnectRetries),
		Bugs:         bugs,
		Timeout:      c.Duration("timeout"),
		Settle:       c.Duration("settle"),
		OnOutcome: func(i int, out shop.Outcome) {
			onLoginOutcome(i, len(cases), out)
		},
	}
	outcomes := check.RunAll(ctx, cases)

	outputDir := c.String("output")
	if outputDir != "" {
		if _, err := report.WriteLogins(outputDir, outcomes, report.BuilderConfig{ToolName: "appscript", ToolVersion: Version}); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	}

	passed := 0
	for _, o := range outcomes {
		if o.Status == core.StatusPassed {
			passed++
		}
	}
	printf("\n  %d/%d cases passed, %d bugs reported to %s\n", passed, len(cases), bugs.Count(), bugs.Path())

	if passed < len(cases) {
		return fmt.Errorf("%d of %d login cases did not pass", len(cases)-passed, len(cases))
	}
	return nil
}

func onLoginOutcome(i, total int, out shop.Outcome) {
	status, statusColor := statusLabel(out.Status)
	printf("    %s[%d/%d]%s %s%s%s %s: %s (%s)\n",
		color(colorCyan), i+1, total, color(colorReset),
		statusColor, status, color(colorReset),
		out.Case, out.Actual, formatDuration(out.Duration))
	if out.Bug != "" {
		printf("      %s╰─%s %s\n", color(colorGray), color(colorReset), out.Bug)
	}
}
