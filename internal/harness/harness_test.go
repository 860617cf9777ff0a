package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_FlowExpectations(t *testing.T) {
	s := &Scenario{
		Name:        "titles",
		Description: "title edits",
		Flow: []FlowStep{
			{Dispatch: "project/setTitle", Args: map[string]interface{}{"title": "One"},
				Expect: map[string]interface{}{"project.title": "One", "undoDepth": 1}},
			{Dispatch: "project/setTitle", Args: map[string]interface{}{"title": "  "},
				Expect: map[string]interface{}{"project.title": "One", "undoDepth": 1}},
			{Dispatch: "history/undo",
				Expect: map[string]interface{}{"project.title": "titles", "canRedo": true}},
		},
		Assertions: []Assertion{{Type: AssertTraceCount, Action: "project/setTitle", Count: 2}},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	require.Len(t, result.Trace, 3)
	assert.Equal(t, int64(1), result.Trace[0].Seq)
	assert.Equal(t, map[string]any{"title": "One"}, result.Trace[0].Args)
	assert.Nil(t, result.Trace[2].Args)
	assert.Equal(t, "titles", result.State["project"].(map[string]any)["title"])
}

func TestRun_FailedExpectationsAreReported(t *testing.T) {
	s := &Scenario{
		Name:        "wrong",
		Description: "expectations that do not hold",
		Flow: []FlowStep{
			{Dispatch: "ui/setZoom", Args: map[string]interface{}{"zoom": 10},
				Expect: map[string]interface{}{"ui.zoom": 10, "ui.missing": 1}},
		},
		Assertions: []Assertion{{Type: AssertFinalState, Path: "ui.zoom", Expect: 10}},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], "ui.missing not found")
	assert.Contains(t, result.Errors[1], "ui.zoom expected 10, got 4")
	assert.Contains(t, result.Errors[2], "final_state")
}

func TestRun_BadArgsFailTheRun(t *testing.T) {
	s := &Scenario{
		Name:        "bad",
		Description: "args of the wrong type",
		Flow: []FlowStep{
			{Dispatch: "transport/setBPM", Args: map[string]interface{}{"bpm": "fast"}},
		},
		Assertions: []Assertion{{Type: AssertTraceCount, Action: "transport/setBPM", Count: 1}},
	}
	_, err := Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "flow[0]")
}

func TestRun_InvalidProjectFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version":1,"title":"x","tempo":20}`), 0644))
	s := &Scenario{
		Name:        "invalid",
		Description: "project out of range",
		Project:     path,
		Flow:        []FlowStep{{Dispatch: "ui/toggleMixer"}},
		Assertions:  []Assertion{{Type: AssertTraceCount, Action: "ui/toggleMixer", Count: 1}},
	}
	_, err := Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is invalid")
}

func TestRun_Deterministic(t *testing.T) {
	s, err := LoadScenario("../../testdata/scenarios/mixer_and_transport.yaml")
	require.NoError(t, err)

	first, err := Run(s)
	require.NoError(t, err)
	second, err := Run(s)
	require.NoError(t, err)

	a, err := MarshalTrace(s.Name, first.Trace)
	require.NoError(t, err)
	b, err := MarshalTrace(s.Name, second.Trace)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}
