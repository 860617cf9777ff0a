package harness

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/beatlab/internal/state"
)

// TraceEvent is one committed action.
type TraceEvent struct {
	Seq    int64          `json:"seq"`
	Action string         `json:"action"`
	Args   map[string]any `json:"args,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace contains every committed action in commit order, including
	// setup actions and those dispatched by listeners.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State is the JSON form of the final state.
	State map[string]any `json:"state,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		State:  make(map[string]any),
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.Pass = false
}

// AddTrace appends a committed action to the trace.
func (r *Result) AddTrace(seq int64, a state.Action) error {
	args, err := toJSONMap(a)
	if err != nil {
		return fmt.Errorf("trace %s: %w", a.Type(), err)
	}
	if len(args) == 0 {
		args = nil
	}
	r.Trace = append(r.Trace, TraceEvent{Seq: seq, Action: a.Type(), Args: args})
	return nil
}

// toJSONMap converts v to its generic JSON object form.
func toJSONMap(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// snapshot returns the JSON form of s with the history summary keys added.
func snapshot(s state.AppState) (map[string]any, error) {
	m, err := toJSONMap(s)
	if err != nil {
		return nil, fmt.Errorf("snapshot state: %w", err)
	}
	m["canUndo"] = s.CanUndo()
	m["canRedo"] = s.CanRedo()
	m["undoDepth"] = float64(len(s.Undo))
	m["redoDepth"] = float64(len(s.Redo))
	return m, nil
}
