package report

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/devicelab-dev/appscript/pkg/core"
)

const namespace = "appscript"

type metrics struct {
	registry     *prometheus.Registry
	runSuccess   *prometheus.GaugeVec
	runDuration  *prometheus.GaugeVec
	steps        *prometheus.GaugeVec
	loginCases   *prometheus.GaugeVec
	lastRunStamp prometheus.Gauge
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		runSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_success",
			Help:      "Whether the scenario run passed (1) or not (0).",
		}, []string{"scenario", "device"}),
		runDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of the scenario run.",
		}, []string{"scenario", "device"}),
		steps: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "steps",
			Help:      "Steps of the scenario run by status.",
		}, []string{"scenario", "device", "status"}),
		loginCases: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "login_cases",
			Help:      "Data-driven login cases by status.",
		}, []string{"status"}),
		lastRunStamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the report was written.",
		}),
	}
	m.registry.MustRegister(m.runSuccess, m.runDuration, m.steps, m.loginCases, m.lastRunStamp)
	return m
}

func (m *metrics) observeRun(r *core.RunResult) {
	device := r.Device
	if device == "" {
		device = "default"
	}
	success := 0.0
	if r.Status == core.StatusPassed {
		success = 1
	}
	m.runSuccess.WithLabelValues(r.Scenario, device).Set(success)
	m.runDuration.WithLabelValues(r.Scenario, device).Set(r.Duration.Seconds())

	counts := map[core.StepStatus]int{}
	for _, s := range r.Steps {
		counts[s.Status]++
	}
	for _, status := range []core.StepStatus{core.StatusPassed, core.StatusFailed, core.StatusErrored, core.StatusSkipped} {
		m.steps.WithLabelValues(r.Scenario, device, status.String()).Set(float64(counts[status]))
	}
}

func (m *metrics) observeLogins(rep *LoginReport) {
	m.loginCases.WithLabelValues(core.StatusPassed.String()).Set(float64(rep.Summary.Passed))
	m.loginCases.WithLabelValues(core.StatusFailed.String()).Set(float64(rep.Summary.Failed))
	m.loginCases.WithLabelValues(core.StatusErrored.String()).Set(float64(rep.Summary.Errored))
}

// WriteMetrics writes the run and login gauges to path in the Prometheus
// text format. Either source may be nil.
func WriteMetrics(path string, index *Index, results []*core.RunResult, logins *LoginReport) error {
	m := newMetrics()
	for _, r := range results {
		m.observeRun(r)
	}
	if logins != nil {
		m.observeLogins(logins)
	}

	stamp := time.Now()
	if index != nil && !index.EndTime.IsZero() {
		stamp = index.EndTime
	}
	m.lastRunStamp.Set(float64(stamp.Unix()))

	return prometheus.WriteToTextfile(path, m.registry)
}
