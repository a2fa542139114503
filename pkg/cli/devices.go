package cli

import (
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/appscript/pkg/config"
	"github.com/devicelab-dev/appscript/pkg/core"
	"github.com/devicelab-dev/appscript/pkg/device"
	"github.com/devicelab-dev/appscript/pkg/logger"
)

const (
	youtubePackage  = "com.google.android.youtube"
	firstSystemPort = 8200
)

// newADB is replaced in tests.
var newADB = device.NewADB

var devicesCommand = &cli.Command{
	Name:  "devices",
	Usage: "List connected Android devices and configured run targets",
	Description: `List the devices adb reports and whether the app package is installed
on each. --configured lists the devices from config.yaml instead (or the
built-in emulator pair used by run --parallel).

Examples:
  appscript devices
  appscript devices --package com.example.shop
  appscript devices --configured --json`,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "package",
			Usage: "App package to look for on each device",
			Value: youtubePackage,
		},
		&cli.BoolFlag{
			Name:  "configured",
			Usage: "List configured run targets instead of adb devices",
		},
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output in JSON format",
		},
	},
	Action: runDevices,
}

type deviceRow struct {
	device.Info
	Installed *bool `json:"installed,omitempty"`
}

func runDevices(c *cli.Context) error {
	if c.Bool("configured") {
		return listConfigured(c)
	}

	adb, err := newADB()
	if err != nil {
		return err
	}
	all, err := adb.List(c.Context)
	if err != nil {
		return err
	}

	pkg := c.String("package")
	rows := make([]deviceRow, 0, len(all))
	for _, d := range all {
		row := deviceRow{Info: d}
		if d.Ready() {
			row.Info = adb.Describe(c.Context, d)
			if installed, err := adb.IsInstalled(c.Context, d.Serial, pkg); err == nil {
				row.Installed = &installed
			}
		}
		rows = append(rows, row)
	}

	if c.Bool("json") {
		return printJSON(rows)
	}
	if len(rows) == 0 {
		return device.NewNoDevicesError()
	}

	printf("  %-20s %-13s %-24s %-8s %-9s %s\n", "Serial", "State", "Model", "Android", "Emulator", pkg)
	for _, r := range rows {
		installed := "?"
		if r.Installed != nil {
			installed = "no"
			if *r.Installed {
				installed = "yes"
			}
		}
		emulator := ""
		if r.IsEmulator {
			emulator = "yes"
		}
		printf("  %-20s %-13s %-24s %-8s %-9s %s\n", r.Serial, r.State, r.Model, r.Release, emulator, installed)
	}
	return nil
}

func listConfigured(c *cli.Context) error {
	s, err := loadSettings(c)
	if err != nil {
		return err
	}
	devices, err := selectDevices(s.config, nil, true)
	if err != nil {
		return err
	}
	if c.Bool("json") {
		return printJSON(devices)
	}
	printf("  %-20s %-16s %-8s %-28s %s\n", "Name", "UDID", "Android", "Appium", "System port")
	for _, d := range devices {
		server := d.AppiumURL
		if server == "" {
			server = s.appiumURL
		}
		printf("  %-20s %-16s %-8s %-28s %d\n", d.Label(), d.UDID, d.PlatformVersion, server, d.SystemPort)
	}
	return nil
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	printf("%s\n", data)
	return nil
}

// connectedDevices returns the adb-ready devices that have pkg installed
// as run targets on the default server, each with its own UiAutomator2
// system port. An empty pkg skips the install check.
func connectedDevices(c *cli.Context, pkg string) ([]config.Device, error) {
	adb, err := newADB()
	if err != nil {
		return nil, err
	}
	ready, err := adb.Ready(c.Context)
	if err != nil {
		return nil, err
	}

	var out []config.Device
	for _, d := range ready {
		if pkg != "" {
			installed, err := adb.IsInstalled(c.Context, d.Serial, pkg)
			if err != nil {
				return nil, err
			}
			if !installed {
				logger.Warn("skipping %s: %s is not installed", d.Serial, pkg)
				continue
			}
		}
		dev := d.Device()
		dev.SystemPort = firstSystemPort + len(out)
		out = append(out, dev)
	}
	if len(out) == 0 {
		return nil, core.ErrAppNotInstalled.WithMessage(
			fmt.Sprintf("%s is not installed on any connected device", pkg))
	}
	return out, nil
}
