package harness

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// SuiteResult summarises a directory of scenarios.
type SuiteResult struct {
	TotalScenarios int               `json:"total_scenarios"`
	Passed         int               `json:"passed"`
	Failed         int               `json:"failed"`
	Failures       []ScenarioFailure `json:"failures,omitempty"`
}

// ScenarioFailure represents a scenario that failed to load, run or pass.
type ScenarioFailure struct {
	Scenario string   `json:"scenario"`
	Path     string   `json:"path"`
	Errors   []string `json:"errors"`
}

// FindScenarios lists the scenario files under dir, sorted. Only .yaml and
// .yml files are considered; subdirectories are searched too.
func FindScenarios(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("find scenarios in %s: %w", dir, err)
	}
	sort.Strings(paths)
	return paths, nil
}

// SuiteOption configures RunSuite.
type SuiteOption func(*suiteConfig)

type suiteConfig struct {
	golden bool
	update bool
}

// WithGoldenTraces compares each trace against golden/<file>.golden next
// to the scenario, when that file exists. With update set the golden file
// is written instead.
func WithGoldenTraces(update bool) SuiteOption {
	return func(c *suiteConfig) {
		c.golden = true
		c.update = update
	}
}

// GoldenPath returns the golden trace file for a scenario file.
func GoldenPath(scenarioPath string) string {
	base := filepath.Base(scenarioPath)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(filepath.Dir(scenarioPath), "golden", name+".golden")
}

// RunSuite loads and runs every scenario in paths. A scenario that cannot
// be loaded or run counts as failed; the suite keeps going.
func RunSuite(paths []string, opts ...SuiteOption) *SuiteResult {
	var cfg suiteConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	res := &SuiteResult{}
	for _, path := range paths {
		res.TotalScenarios++

		scenario, err := LoadScenario(path)
		if err != nil {
			res.fail(filepath.Base(path), path, err.Error())
			continue
		}
		result, err := Run(scenario)
		if err != nil {
			res.fail(scenario.Name, path, err.Error())
			continue
		}
		if cfg.golden {
			if err := checkGolden(path, scenario.Name, result, cfg.update); err != nil {
				result.AddError("%v", err)
			}
		}
		if !result.Pass {
			res.fail(scenario.Name, path, result.Errors...)
			continue
		}
		res.Passed++
	}
	return res
}

func checkGolden(path, name string, result *Result, update bool) error {
	trace, err := MarshalTrace(name, result.Trace)
	if err != nil {
		return fmt.Errorf("marshal trace: %w", err)
	}
	golden := GoldenPath(path)
	if update {
		if err := os.MkdirAll(filepath.Dir(golden), 0o755); err != nil {
			return fmt.Errorf("create golden directory: %w", err)
		}
		if err := os.WriteFile(golden, trace, 0o644); err != nil {
			return fmt.Errorf("write golden file: %w", err)
		}
		return nil
	}
	want, err := os.ReadFile(golden)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read golden file: %w", err)
	}
	if !bytes.Equal(bytes.TrimSpace(want), bytes.TrimSpace(trace)) {
		return errors.New("trace does not match golden file (run with --update to regenerate)")
	}
	return nil
}

func (r *SuiteResult) fail(name, path string, errs ...string) {
	r.Failed++
	r.Failures = append(r.Failures, ScenarioFailure{Scenario: name, Path: path, Errors: errs})
}
