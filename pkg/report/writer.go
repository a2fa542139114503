package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/devicelab-dev/appscript/pkg/core"
	"github.com/devicelab-dev/appscript/pkg/shop"
)

// Write builds the report for results and writes it under dir.
func Write(dir string, results []*core.RunResult, cfg BuilderConfig) (*Index, error) {
	index, details := Build(results, cfg)

	if err := ensureDir(filepath.Join(dir, RunsDir)); err != nil {
		return nil, fmt.Errorf("create runs dir: %w", err)
	}
	for _, d := range details {
		if err := atomicWriteJSON(filepath.Join(dir, RunsDir, d.ID+".json"), d); err != nil {
			return nil, fmt.Errorf("write run %s: %w", d.ID, err)
		}
	}
	if err := atomicWriteJSON(filepath.Join(dir, IndexFile), index); err != nil {
		return nil, fmt.Errorf("write index: %w", err)
	}
	if err := WriteMetrics(filepath.Join(dir, MetricsFile), index, results, nil); err != nil {
		return nil, fmt.Errorf("write metrics: %w", err)
	}
	return index, nil
}

// WriteLogins writes logins.json and metrics.prom for data-driven login
// outcomes.
func WriteLogins(dir string, outcomes []shop.Outcome, cfg BuilderConfig) (*LoginReport, error) {
	rep := BuildLogins(outcomes, cfg)

	if err := ensureDir(dir); err != nil {
		return nil, fmt.Errorf("create report dir: %w", err)
	}
	if err := atomicWriteJSON(filepath.Join(dir, LoginsFile), rep); err != nil {
		return nil, fmt.Errorf("write logins: %w", err)
	}
	if err := WriteMetrics(filepath.Join(dir, MetricsFile), nil, nil, rep); err != nil {
		return nil, fmt.Errorf("write metrics: %w", err)
	}
	return rep, nil
}

// BuildLogins converts login outcomes to their report form.
func BuildLogins(outcomes []shop.Outcome, cfg BuilderConfig) *LoginReport {
	runID := cfg.RunID
	if runID == "" {
		runID = newRunID()
	}
	rep := &LoginReport{RunID: runID, Cases: make([]LoginEntry, len(outcomes))}
	for i, o := range outcomes {
		entry := LoginEntry{
			Case:     o.Case,
			Status:   o.Status,
			Actual:   o.Actual,
			Bug:      o.Bug,
			Duration: o.Duration.Milliseconds(),
		}
		if o.Err != nil {
			entry.Error = o.Err.Error()
		}
		rep.Cases[i] = entry
		rep.Summary.add(o.Status)
	}
	return rep
}

func ensureDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}

// atomicWriteJSON writes v to a temp file and renames it over path, so
// readers never see a partial file.
func atomicWriteJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
