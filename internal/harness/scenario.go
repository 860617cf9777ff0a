package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/beatlab/internal/state"
)

// Scenario defines an editing scenario: a starting project, a flow of
// actions and assertions on the resulting trace and state.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Project is an optional path to a project JSON document. Relative
	// paths are resolved against the scenario file. If empty, a new
	// one-bar project titled Title is used.
	Project string `yaml:"project,omitempty"`

	// Title of the generated project when Project is empty.
	Title string `yaml:"title,omitempty"`

	// Setup contains actions dispatched before the flow without checks.
	Setup []ActionStep `yaml:"setup,omitempty"`

	// Flow contains the dispatched actions, each with optional state
	// expectations checked right after it commits.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions"`
}

// ActionStep represents a single setup action.
type ActionStep struct {
	// Action is the action wire type (e.g. "project/setTitle").
	Action string `yaml:"action"`

	// Args are the action's JSON fields.
	Args map[string]interface{} `yaml:"args,omitempty"`
}

// FlowStep dispatches one action.
type FlowStep struct {
	// Dispatch is the action wire type.
	Dispatch string `yaml:"dispatch"`

	// Args are the action's JSON fields.
	Args map[string]interface{} `yaml:"args,omitempty"`

	// Expect maps state paths to expected values after the action.
	Expect map[string]interface{} `yaml:"expect,omitempty"`
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": Check action appears in trace with args
	// - "trace_order": Check actions appear in order
	// - "trace_count": Check action appears exactly N times
	// - "final_state": Check a value in the final state
	Type string `yaml:"type"`

	// Action is the action type (used by trace_contains, trace_count).
	Action string `yaml:"action,omitempty"`

	// Args are the expected action args (used by trace_contains).
	// Subset match - only specified fields are validated.
	Args map[string]interface{} `yaml:"args,omitempty"`

	// Path is the state path (used by final_state).
	Path string `yaml:"path,omitempty"`

	// Expect is the expected value at Path (used by final_state).
	// Maps are matched as subsets.
	Expect interface{} `yaml:"expect,omitempty"`

	// Count is the expected number of occurrences (used by trace_count).
	Count int `yaml:"count,omitempty"`

	// Actions is the expected action order (used by trace_order).
	Actions []string `yaml:"actions,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// LoadScenario reads and parses a scenario YAML file. A relative Project
// path is resolved against the file's directory.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	if scenario.Project != "" && !filepath.IsAbs(scenario.Project) {
		scenario.Project = filepath.Join(filepath.Dir(path), scenario.Project)
	}
	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return scenario, nil
}

// ParseScenario decodes scenario YAML without resolving or checking the
// project path.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	if s.Project != "" {
		if _, err := os.Stat(s.Project); os.IsNotExist(err) {
			return fmt.Errorf("project file not found: %s", s.Project)
		}
	}

	known := make(map[string]bool)
	for _, t := range state.ActionTypes() {
		known[t] = true
	}

	for i, step := range s.Setup {
		if step.Action == "" {
			return fmt.Errorf("setup[%d]: action is required", i)
		}
		if !known[step.Action] {
			return fmt.Errorf("setup[%d]: unknown action %q", i, step.Action)
		}
	}

	for i, step := range s.Flow {
		if step.Dispatch == "" {
			return fmt.Errorf("flow[%d]: dispatch is required", i)
		}
		if !known[step.Dispatch] {
			return fmt.Errorf("flow[%d]: unknown action %q", i, step.Dispatch)
		}
		for path := range step.Expect {
			if path == "" {
				return fmt.Errorf("flow[%d].expect: empty path", i)
			}
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Actions) == 0 {
			return fmt.Errorf("assertions[%d]: actions list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Path == "" {
			return fmt.Errorf("assertions[%d]: path is required for final_state", index)
		}
		if a.Expect == nil {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
