package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/appscript/pkg/config"
	"github.com/devicelab-dev/appscript/pkg/core"
	"github.com/devicelab-dev/appscript/pkg/executor"
	"github.com/devicelab-dev/appscript/pkg/logger"
	"github.com/devicelab-dev/appscript/pkg/report"
	"github.com/devicelab-dev/appscript/pkg/script"
)

var runCommand = &cli.Command{
	Name:      "run",
	Usage:     "Run a scenario on a device",
	ArgsUsage: "[scenario-name | scenario.yaml]",
	Description: `Run a built-in or file scenario. Without an argument the
youtube-subscriptions scenario runs: swipe up the home feed, then open the
Subscriptions tab.

Names are looked up in --scenarios-dir (default: <home>/scenarios) before
the built-ins. Reports are written to the output directory:
  - Default: <home>/reports/<timestamp>/
  - With --output: <output>/<timestamp>/
  - With --output and --flatten: <output>/

Examples:
  appscript run
  appscript run youtube-video
  appscript run ./flows/search.yaml --device emulator-5554
  appscript run --parallel --output ./reports
  appscript run --connected`,
	Flags: []cli.Flag{
		&cli.StringSliceFlag{
			Name:    "device",
			Aliases: []string{"udid"},
			Usage:   "Device UDID or configured name to run on (repeatable)",
		},
		&cli.BoolFlag{
			Name:  "parallel",
			Usage: "Run on every configured device at once",
		},
		&cli.BoolFlag{
			Name:  "connected",
			Usage: "Run on every device adb reports ready, at once",
		},
		&cli.StringFlag{
			Name:  "scenarios-dir",
			Usage: "Directory searched for scenario names",
		},
		&cli.StringFlag{
			Name:  "output",
			Usage: "Output directory for reports",
		},
		&cli.BoolFlag{
			Name:  "flatten",
			Usage: "Don't create timestamp subfolder (requires --output)",
		},
		&cli.DurationFlag{
			Name:  "find-timeout",
			Usage: "Default wait for steps that wait for an element",
		},
	},
	Action: runScenario,
}

func runScenario(c *cli.Context) error {
	if c.NArg() > 1 {
		return fmt.Errorf("run takes at most one scenario, got %d", c.NArg())
	}

	s, err := loadSettings(c)
	if err != nil {
		return err
	}

	dir := c.String("scenarios-dir")
	if dir == "" {
		dir = config.GetScenariosDir()
	}
	sc, err := script.Load(c.Args().First(), dir)
	if err != nil {
		return err
	}

	outputDir, err := resolveOutputDir(outputBase(c, s.config), c.String("output") != "", c.Bool("flatten"))
	if err != nil {
		return err
	}

	var devices []config.Device
	if c.Bool("connected") {
		devices, err = connectedDevices(c, sc.Options.AppPackage)
	} else {
		devices, err = selectDevices(s.config, c.StringSlice("device"), c.Bool("parallel"))
	}
	if err != nil {
		return err
	}

	findTimeout := s.config.Timeout()
	if c.IsSet("find-timeout") {
		findTimeout = c.Duration("find-timeout")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serverURL := s.appiumURL
	if sc.ServerURL != "" {
		serverURL = sc.ServerURL
	}
	onScenarioStart(sc, serverURL, len(devices))
	logger.Info("running scenario %s (%d steps) into %s", sc.Name, len(sc.Steps), outputDir)

	var results []*core.RunResult
	if len(devices) == 0 {
		runner := script.NewRunner(script.RunnerConfig{
			ServerURL:    s.appiumURL,
			FindTimeout:  findTimeout,
			Capabilities: s.caps,
			Dial:         script.AppiumDialer(s.config.ConnectRetries),
			OnStepComplete: func(res core.StepResult) {
				onStepComplete("", res)
			},
		})
		results = append(results, runner.Run(ctx, sc))
	} else {
		run, err := executor.RunOnDevices(ctx, sc, devices, executor.RunnerConfig{
			ServerURL:    s.appiumURL,
			FindTimeout:  findTimeout,
			Capabilities: s.caps,
			Dial:         script.AppiumDialer(s.config.ConnectRetries),
			OnStepComplete: func(d config.Device, res core.StepResult) {
				onStepComplete(d.Label(), res)
			},
		})
		if err != nil {
			return err
		}
		results = run.Results
	}

	index, err := report.Write(outputDir, results, report.BuilderConfig{ToolName: "appscript", ToolVersion: Version})
	if err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	printSummary(results)
	printf("\n  Report: %s\n", filepath.Join(outputDir, report.IndexFile))

	if index.Status != core.StatusPassed {
		return fmt.Errorf("%d of %d runs did not pass", index.Summary.Total-index.Summary.Passed, index.Summary.Total)
	}
	return nil
}

// selectDevices returns the devices named by ids, every configured device
// for --parallel, or nil for a single run on the default server.
func selectDevices(cfg *config.Config, ids []string, parallel bool) ([]config.Device, error) {
	if len(ids) > 0 {
		return cfg.FindDevices(ids)
	}
	if !parallel {
		return nil, nil
	}
	if len(cfg.Devices) > 0 {
		return cfg.Devices, nil
	}
	return executor.DefaultDevices(), nil
}

func outputBase(c *cli.Context, cfg *config.Config) string {
	if out := c.String("output"); out != "" {
		return out
	}
	if cfg.Output != "" {
		return cfg.Output
	}
	return config.GetReportsDir()
}

// resolveOutputDir determines the output directory.
// - No --output: <base>/<timestamp>/
// - --output + --flatten: <base>/ (error if --output not given)
func resolveOutputDir(base string, explicit, flatten bool) (string, error) {
	if flatten && !explicit {
		return "", fmt.Errorf("--flatten requires --output to be specified")
	}
	if flatten {
		return filepath.Clean(base), nil
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	return filepath.Join(base, timestamp), nil
}
