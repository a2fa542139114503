// Package cli provides the command-line interface for appscript.
package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/appscript/pkg/config"
	"github.com/devicelab-dev/appscript/pkg/driver/appium"
	"github.com/devicelab-dev/appscript/pkg/logger"
)

// Version is set at build time.
var Version = "dev"

// stdout receives user-facing progress. Logs go through pkg/logger.
var stdout io.Writer = os.Stdout

// GlobalFlags are available to all commands.
var GlobalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "appium-url",
		Usage:   "Appium server URL",
		Value:   config.DefaultAppiumURL,
		EnvVars: []string{"APPIUM_URL"},
	},
	&cli.StringFlag{
		Name:    "config",
		Usage:   "Path to workspace config.yaml (default: <home>/config.yaml)",
		EnvVars: []string{"APPSCRIPT_CONFIG"},
	},
	&cli.StringFlag{
		Name:  "caps",
		Usage: "JSON file with extra capabilities merged into every session",
	},
	&cli.BoolFlag{
		Name:    "verbose",
		Usage:   "Enable verbose logging",
		EnvVars: []string{"APPSCRIPT_VERBOSE"},
	},
	&cli.StringFlag{
		Name:  "log-file",
		Usage: "Write logs to this file instead of stderr",
	},
	&cli.BoolFlag{
		Name:  "no-ansi",
		Usage: "Disable ANSI colors",
	},
}

// NewApp builds the CLI application.
func NewApp() *cli.App {
	return &cli.App{
		Name:    "appscript",
		Usage:   "Scripted Appium sessions for Android apps",
		Version: Version,
		Description: `appscript opens a W3C WebDriver session on an Appium server and runs
a scenario of gestures, lookups and taps against an Android app.

Examples:
  appscript run
  appscript run youtube-search
  appscript --appium-url http://10.0.0.5:4723 run flows/checkout.yaml
  appscript run flows/checkout.yaml --device emulator-5554
  appscript run --parallel
  appscript login login_data.csv --bug-report bug_reports.csv
  appscript inspect --compact`,
		Flags: GlobalFlags,
		Before: func(c *cli.Context) error {
			if c.Bool("no-ansi") {
				colorsEnabled = false
			}
			return setupLogging(c.String("log-file"), c.Bool("verbose"))
		},
		After: func(c *cli.Context) error {
			logger.Close()
			return nil
		},
		Commands: []*cli.Command{
			runCommand,
			scenariosCommand,
			loginCommand,
			inspectCommand,
			devicesCommand,
		},
	}
}

// Run runs the CLI with args, os.Args style. Command flags may follow
// the command's arguments.
func Run(args []string) error {
	app := NewApp()
	return app.Run(reorderArgs(app, args))
}

// Execute runs the CLI.
func Execute() {
	if err := Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// reorderArgs moves a command's flags ahead of its positional arguments,
// since flag parsing stops at the first positional. Everything after
// "--" is left as is.
func reorderArgs(app *cli.App, args []string) []string {
	if len(args) < 2 {
		return args
	}

	// skip the program name and global flags to find the command
	i := 1
	for i < len(args) && isFlag(args[i]) {
		i += flagWidth(app.Flags, args, i)
	}
	if i >= len(args) {
		return args
	}
	cmd := app.Command(args[i])
	if cmd == nil {
		return args
	}

	out := append([]string{}, args[:i+1]...)
	var positional []string
	rest := args[i+1:]
	for j := 0; j < len(rest); {
		if rest[j] == "--" {
			positional = append(positional, rest[j:]...)
			break
		}
		if !isFlag(rest[j]) {
			positional = append(positional, rest[j])
			j++
			continue
		}
		n := flagWidth(cmd.Flags, rest, j)
		out = append(out, rest[j:j+n]...)
		j += n
	}
	return append(out, positional...)
}

func isFlag(arg string) bool {
	return len(arg) > 1 && arg[0] == '-' && arg != "--"
}

// flagWidth returns how many tokens the flag at args[i] spans: one for
// booleans, unknown flags and -name=value, two otherwise.
func flagWidth(flags []cli.Flag, args []string, i int) int {
	name := strings.TrimLeft(args[i], "-")
	if strings.Contains(name, "=") || i+1 >= len(args) {
		return 1
	}
	for _, f := range flags {
		for _, n := range f.Names() {
			if n != name {
				continue
			}
			if _, ok := f.(*cli.BoolFlag); ok {
				return 1
			}
			return 2
		}
	}
	return 1
}

// setupLogging sends logs to a file, or to stderr at warn level unless
// verbose.
func setupLogging(logFile string, verbose bool) error {
	if logFile != "" {
		if err := logger.Init(logFile); err != nil {
			return err
		}
		logger.SetVerbose(verbose)
		return nil
	}

	logger.UseWriter(os.Stderr)
	if verbose {
		logger.SetVerbose(true)
	} else {
		logger.SetLevel(logrus.WarnLevel)
	}
	return nil
}

// settings are the values every command resolves from flags and the
// workspace config. Flags win over the config file.
type settings struct {
	config    *config.Config
	appiumURL string
	caps      map[string]interface{}
}

func loadSettings(c *cli.Context) (*settings, error) {
	var cfg *config.Config
	var err error
	if path := c.String("config"); path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.LoadFromDir(config.GetHome())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	s := &settings{config: cfg, appiumURL: cfg.ServerURL()}
	if c.IsSet("appium-url") {
		s.appiumURL = c.String("appium-url")
	}

	var fileCaps map[string]interface{}
	if path := c.String("caps"); path != "" {
		fileCaps, err = appium.LoadCapabilities(path)
		if err != nil {
			return nil, err
		}
	}
	s.caps = appium.MergeCapabilities(cfg.Capabilities, fileCaps)
	return s, nil
}
