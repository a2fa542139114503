package script

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/devicelab-dev/appscript/pkg/core"
	"github.com/devicelab-dev/appscript/pkg/driver/appium"
	"github.com/devicelab-dev/appscript/pkg/logger"
)

// CommandConnect is the command name of the session step that precedes
// every scenario's own steps.
const CommandConnect = "connect"

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	ServerURL   string
	Device      string        // label used in results and logs
	FindTimeout time.Duration // default for waits without a timeout

	// Capabilities are defaults the scenario options override, e.g. a
	// workspace caps file.
	Capabilities map[string]interface{}

	// DeviceCapabilities override the scenario options, e.g. a device's
	// udid and systemPort.
	DeviceCapabilities map[string]interface{}

	// Dial opens sessions. Defaults to AppiumDialer(0).
	Dial Dialer

	// OnStepComplete is called after each step, skipped steps included.
	OnStepComplete func(res core.StepResult)
}

// Runner executes scenarios, one session per run.
type Runner struct {
	config RunnerConfig
}

// NewRunner creates a Runner.
func NewRunner(cfg RunnerConfig) *Runner {
	if cfg.Dial == nil {
		cfg.Dial = AppiumDialer(0)
	}
	if cfg.FindTimeout <= 0 {
		cfg.FindTimeout = 10 * time.Second
	}
	return &Runner{config: cfg}
}

// Run connects, executes every step once in order, and always closes the
// session. The first failure of a required step ends the run and the
// remaining steps are recorded as skipped.
func (r *Runner) Run(ctx context.Context, sc *Scenario) *core.RunResult {
	result := &core.RunResult{
		Scenario:  sc.Name,
		Device:    r.config.Device,
		StartTime: time.Now(),
	}
	log := logger.WithFields(logrus.Fields{"scenario": sc.Name, "device": r.config.Device})

	if err := ctx.Err(); err != nil {
		r.record(result, core.StepResult{
			Command: CommandConnect,
			Label:   "open session for " + sc.Name,
			Status:  core.StatusSkipped,
		})
		result.Err = err
		r.skipFrom(result, sc, 0)
		result.Finish(time.Now())
		return result
	}

	serverURL := sc.ServerURL
	if serverURL == "" {
		serverURL = r.config.ServerURL
	}
	session := r.config.Dial(serverURL)

	connect, err := r.connect(session, sc)
	r.record(result, connect)
	if err != nil {
		result.Err = err
		log.Errorf("connect failed: %v", err)
		r.skipFrom(result, sc, 0)
		result.Finish(time.Now())
		return result
	}
	result.Platform = session.Platform()

	defer func() {
		if err := session.Disconnect(); err != nil {
			log.Warnf("disconnect failed: %v", err)
		}
	}()

	for i, step := range sc.Steps {
		if ctx.Err() != nil {
			result.Err = ctx.Err()
			r.skipFrom(result, sc, i)
			break
		}

		res, err := r.runStep(ctx, session, i+1, step)
		r.record(result, res)
		if err == nil {
			continue
		}
		if step.IsOptional() {
			log.Warnf("optional step %q failed: %v", step.Describe(), err)
			continue
		}
		log.Errorf("step %q failed: %v", step.Describe(), err)
		result.Err = err
		r.skipFrom(result, sc, i+1)
		break
	}

	result.Finish(time.Now())
	return result
}

func (r *Runner) connect(session Session, sc *Scenario) (core.StepResult, error) {
	res := core.StepResult{
		Index:     0,
		Command:   CommandConnect,
		Label:     "open session for " + sc.Name,
		StartTime: time.Now(),
	}

	err := sc.Options.Validate()
	if err == nil {
		caps := appium.MergeCapabilities(r.config.Capabilities, sc.Options.Capabilities(), r.config.DeviceCapabilities)
		err = session.Connect(caps)
	}
	if err == nil && len(sc.Settings) > 0 {
		if err = applySettings(session, sc.Settings); err != nil {
			_ = session.Disconnect()
		}
	}
	res.Duration = time.Since(res.StartTime)
	setOutcome(&res, err)
	return res, err
}

func applySettings(session Session, settings map[string]interface{}) error {
	u, ok := session.(SettingsUpdater)
	if !ok {
		return core.ErrInvalidConfig.WithMessage("session does not accept driver settings")
	}
	return u.SetSettings(settings)
}

func (r *Runner) runStep(ctx context.Context, session Session, index int, step Step) (core.StepResult, error) {
	res := core.StepResult{
		Index:     index,
		Command:   string(step.Type()),
		Label:     step.Label(),
		Optional:  step.IsOptional(),
		StartTime: time.Now(),
	}
	if res.Label == "" {
		res.Label = step.Describe()
	}
	logger.Debug("step %d: %s", index, res.Label)

	out := r.execute(ctx, session, step)
	res.Duration = time.Since(res.StartTime)
	res.Message = out.message
	res.Element = out.element
	setOutcome(&res, out.err)
	return res, out.err
}

func setOutcome(res *core.StepResult, err error) {
	res.Status = core.StatusFor(err)
	if err != nil {
		res.Category = core.CategoryOf(err)
		res.Error = err.Error()
	}
}

// skipFrom records steps[from:] as skipped.
func (r *Runner) skipFrom(result *core.RunResult, sc *Scenario, from int) {
	for i := from; i < len(sc.Steps); i++ {
		step := sc.Steps[i]
		label := step.Label()
		if label == "" {
			label = step.Describe()
		}
		r.record(result, core.StepResult{
			Index:   i + 1,
			Command: string(step.Type()),
			Label:   label,
			Status:  core.StatusSkipped,
		})
	}
}

func (r *Runner) record(result *core.RunResult, res core.StepResult) {
	result.Steps = append(result.Steps, res)
	if r.config.OnStepComplete != nil {
		r.config.OnStepComplete(res)
	}
}
