package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/devicelab-dev/appscript/pkg/config"
	"github.com/devicelab-dev/appscript/pkg/core"
	"github.com/devicelab-dev/appscript/pkg/logger"
	"github.com/devicelab-dev/appscript/pkg/script"
)

// ParallelRunner runs one scenario on several devices at once, one session
// per device.
type ParallelRunner struct {
	devices []config.Device
	config  RunnerConfig
}

// NewParallelRunner creates a parallel runner for devices.
func NewParallelRunner(devices []config.Device, cfg RunnerConfig) *ParallelRunner {
	if cfg.Dial == nil {
		cfg.Dial = script.AppiumDialer(0)
	}
	return &ParallelRunner{devices: devices, config: cfg}
}

// RunOnDevices is a convenience wrapper around ParallelRunner.Run.
func RunOnDevices(ctx context.Context, sc *script.Scenario, devices []config.Device, cfg RunnerConfig) (*RunResult, error) {
	return NewParallelRunner(devices, cfg).Run(ctx, sc)
}

// Run executes sc on every device. A failing device does not stop the
// others; results keep device order.
func (pr *ParallelRunner) Run(ctx context.Context, sc *script.Scenario) (*RunResult, error) {
	if len(pr.devices) == 0 {
		return nil, fmt.Errorf("no devices available")
	}

	startTime := time.Now()
	results := make([]*core.RunResult, len(pr.devices))

	g, ctx := errgroup.WithContext(ctx)
	if pr.config.Parallelism > 0 {
		g.SetLimit(pr.config.Parallelism)
	}

	for i := range pr.devices {
		i, device := i, pr.devices[i]
		g.Go(func() error {
			results[i] = pr.runDevice(ctx, sc, device)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return buildRunResult(results, time.Since(startTime)), nil
}

func (pr *ParallelRunner) runDevice(ctx context.Context, sc *script.Scenario, device config.Device) *core.RunResult {
	log := logger.WithFields(logrus.Fields{"device": device.Label(), "udid": device.UDID})
	if pr.config.OnDeviceStart != nil {
		pr.config.OnDeviceStart(device)
	}

	// A device's own server wins over the scenario's.
	scoped := *sc
	if device.AppiumURL != "" {
		scoped.ServerURL = device.AppiumURL
	}
	serverURL := scoped.ServerURL
	if serverURL == "" {
		serverURL = pr.config.ServerURL
	}

	runner := script.NewRunner(script.RunnerConfig{
		ServerURL:          pr.config.ServerURL,
		Device:             device.Label(),
		FindTimeout:        pr.config.FindTimeout,
		Capabilities:       pr.config.Capabilities,
		DeviceCapabilities: DeviceCapabilities(device),
		Dial:               pr.config.Dial,
		OnStepComplete: func(res core.StepResult) {
			if pr.config.OnStepComplete != nil {
				pr.config.OnStepComplete(device, res)
			}
		},
	})

	log.Infof("running %s on %s", sc.Name, serverURL)
	result := runner.Run(ctx, &scoped)
	log.WithField("status", result.Status).Infof("finished %s in %s", sc.Name, result.Duration)

	if pr.config.OnDeviceEnd != nil {
		pr.config.OnDeviceEnd(device, result)
	}
	return result
}
