package cli

import (
	"encoding/csv"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/appscript/pkg/config"
	"github.com/devicelab-dev/appscript/pkg/driver/appium"
	"github.com/devicelab-dev/appscript/pkg/executor"
	"github.com/devicelab-dev/appscript/pkg/logger"
	"github.com/devicelab-dev/appscript/pkg/script"
)

var inspectCommand = &cli.Command{
	Name:  "inspect",
	Usage: "Print the view hierarchy of the app under test",
	Description: `Open a session with a scenario's app options and print the current
view hierarchy with a suggested locator per element, in JSON or CSV format.

Examples:
  appscript inspect
  appscript inspect --compact
  appscript inspect --scenario youtube-search --device emulator-5554`,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "scenario",
			Usage: "Scenario whose app options open the session",
		},
		&cli.StringFlag{
			Name:  "device",
			Usage: "Device UDID or configured name",
		},
		&cli.BoolFlag{
			Name:  "compact",
			Usage: "Output in CSV format",
		},
	},
	Action: runInspect,
}

// inspectedNode is a hierarchy node with its suggested locator.
type inspectedNode struct {
	*appium.Node
	Locator string `json:"locator,omitempty"`
}

func runInspect(c *cli.Context) error {
	s, err := loadSettings(c)
	if err != nil {
		return err
	}
	sc, err := script.Load(c.String("scenario"), config.GetScenariosDir())
	if err != nil {
		return err
	}

	serverURL := s.appiumURL
	if sc.ServerURL != "" {
		serverURL = sc.ServerURL
	}
	caps := appium.MergeCapabilities(s.caps, sc.Options.Capabilities())
	if id := c.String("device"); id != "" {
		devices, err := s.config.FindDevices([]string{id})
		if err != nil {
			return err
		}
		d := devices[0]
		if d.AppiumURL != "" {
			serverURL = d.AppiumURL
		}
		caps = appium.MergeCapabilities(caps, executor.DeviceCapabilities(d))
	}

	client := appium.NewClient(serverURL)
	client.SetConnectRetry(s.config.ConnectRetries, 0)
	if err := client.Connect(caps); err != nil {
		return err
	}
	defer func() {
		if err := client.Disconnect(); err != nil {
			logger.Warn("disconnect failed: %v", err)
		}
	}()

	nodes, err := client.Hierarchy()
	if err != nil {
		return err
	}

	out := make([]inspectedNode, len(nodes))
	for i, n := range nodes {
		out[i] = inspectedNode{Node: n}
		if by, ok := n.Locator(); ok {
			out[i].Locator = by.String()
		}
	}

	if c.Bool("compact") {
		return writeNodesCSV(out)
	}
	return printJSON(out)
}

func writeNodesCSV(nodes []inspectedNode) error {
	printMu.Lock()
	defer printMu.Unlock()

	w := csv.NewWriter(stdout)
	if err := w.Write([]string{"depth", "class", "text", "resourceId", "contentDesc", "bounds", "clickable", "locator"}); err != nil {
		return err
	}
	for _, n := range nodes {
		b := n.Bounds
		err := w.Write([]string{
			fmt.Sprint(n.Depth),
			n.Class,
			n.Text,
			n.ResourceID,
			n.ContentDesc,
			fmt.Sprintf("[%d,%d][%d,%d]", b.X, b.Y, b.X+b.Width, b.Y+b.Height),
			fmt.Sprint(n.Clickable),
			n.Locator,
		})
		if err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
