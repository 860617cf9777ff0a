package harness

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	"github.com/roach88/beatlab/internal/music"
	"github.com/roach88/beatlab/internal/state"
)

// Harness executes one scenario against a fresh state store.
type Harness struct {
	store  *state.Store
	logger *slog.Logger
	result *Result
	err    error
}

// Run executes a scenario and returns the result.
//
// Execution flow:
// 1. Load or create the starting project
// 2. Create a store with a sequence clock starting at zero
// 3. Dispatch setup actions
// 4. Dispatch flow actions, checking each step's expectations
// 5. Evaluate assertions against the trace and final state
//
// The returned error reports a scenario that could not run at all; failed
// expectations and assertions are recorded in the Result.
func Run(scenario *Scenario) (*Result, error) {
	p, err := startingProject(scenario)
	if err != nil {
		return nil, err
	}

	h := &Harness{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		result: NewResult(),
	}
	h.store = state.NewStore(state.Initial(p), state.WithClock(state.NewClock()), state.WithLogger(h.logger))
	h.store.Subscribe(func(c state.Commit) {
		if err := h.result.AddTrace(c.Seq, c.Action); err != nil && h.err == nil {
			h.err = err
		}
	})

	if err := h.executeSetup(scenario.Setup); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}
	if err := h.executeFlow(scenario.Flow); err != nil {
		return nil, fmt.Errorf("failed to execute flow: %w", err)
	}
	if h.err != nil {
		return nil, h.err
	}

	final, err := snapshot(h.store.State())
	if err != nil {
		return nil, err
	}
	h.result.State = final

	for _, msg := range EvaluateAssertions(h.result, scenario.Assertions) {
		h.result.AddError("%s", msg)
	}
	return h.result, nil
}

func startingProject(scenario *Scenario) (music.Project, error) {
	if scenario.Project == "" {
		title := scenario.Title
		if title == "" {
			title = scenario.Name
		}
		return music.NewProject(scenario.Name, title), nil
	}

	data, err := os.ReadFile(scenario.Project)
	if err != nil {
		return music.Project{}, fmt.Errorf("failed to read project: %w", err)
	}
	var p music.Project
	if err := json.Unmarshal(data, &p); err != nil {
		return music.Project{}, fmt.Errorf("failed to parse project %s: %w", scenario.Project, err)
	}
	if violations := music.Validate(p); len(violations) > 0 {
		return music.Project{}, fmt.Errorf("project %s is invalid: %v", scenario.Project, violations[0])
	}
	return music.Normalize(p), nil
}

// executeSetup dispatches setup actions without checks.
func (h *Harness) executeSetup(setup []ActionStep) error {
	for i, step := range setup {
		a, err := decodeStep(step.Action, step.Args)
		if err != nil {
			return fmt.Errorf("setup[%d]: %w", i, err)
		}
		h.store.Dispatch(a)
	}
	return nil
}

// executeFlow dispatches flow actions and checks each step's expectations
// against the state right after it.
func (h *Harness) executeFlow(flow []FlowStep) error {
	for i, step := range flow {
		a, err := decodeStep(step.Dispatch, step.Args)
		if err != nil {
			return fmt.Errorf("flow[%d]: %w", i, err)
		}
		h.store.Dispatch(a)

		if len(step.Expect) == 0 {
			continue
		}
		snap, err := snapshot(h.store.State())
		if err != nil {
			return fmt.Errorf("flow[%d]: %w", i, err)
		}

		// Sorted for stable error output.
		paths := make([]string, 0, len(step.Expect))
		for path := range step.Expect {
			paths = append(paths, path)
		}
		sort.Strings(paths)
		for _, path := range paths {
			want := step.Expect[path]
			got, ok := lookup(snap, path)
			if !ok {
				h.result.AddError("flow[%d] %s: path %s not found", i, step.Dispatch, path)
				continue
			}
			if !valuesMatch(want, got) {
				h.result.AddError("flow[%d] %s: %s expected %v, got %v", i, step.Dispatch, path, want, got)
			}
		}
	}
	return nil
}

// decodeStep converts YAML args to the action's JSON form and decodes it.
func decodeStep(typ string, args map[string]interface{}) (state.Action, error) {
	var payload []byte
	if len(args) > 0 {
		var err error
		payload, err = json.Marshal(args)
		if err != nil {
			return nil, fmt.Errorf("encode args for %s: %w", typ, err)
		}
	}
	return state.DecodeAction(typ, payload)
}
