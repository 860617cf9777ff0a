package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/beatlab/internal/harness"
)

const passingScenario = `
name: mixer
description: "toggles the mixer"
flow: [{dispatch: ui/toggleMixer, expect: {ui.mixerOpen: true}}]
assertions: [{type: trace_count, action: ui/toggleMixer, count: 1}]
`

const failingScenario = `
name: wrong_tempo
description: "expects the wrong tempo"
flow: [{dispatch: project/setTempo, args: {bpm: 90}}]
assertions: [{type: final_state, path: project.tempo, expect: 100}]
`

func TestScenario_ShippedScenariosPass(t *testing.T) {
	out, err := execute(t, "scenario", "../../testdata/scenarios")
	require.NoError(t, err)
	assert.Contains(t, out, "0 failed")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestScenario_Failures(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", passingScenario)
	writeFile(t, dir, "b.yaml", failingScenario)

	out, err := execute(t, "scenario", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ wrong_tempo")
	assert.Contains(t, out, "project.tempo")
	assert.Contains(t, out, "1 passed, 1 failed, 2 total")
}

func TestScenario_Filter(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "mixer_one.yaml", passingScenario)
	writeFile(t, dir, "wrong.yaml", failingScenario)

	out, err := execute(t, "scenario", dir, "--filter", "mixer*")
	require.NoError(t, err)
	assert.Contains(t, out, "1 passed, 0 failed, 1 total")

	_, err = execute(t, "scenario", dir, "--filter", "[")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestScenario_UpdateWritesGolden(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "mixer.yaml", passingScenario)

	out, err := execute(t, "scenario", dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "golden files updated")
	_, err = os.Stat(harness.GoldenPath(path))
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(harness.GoldenPath(path), []byte("{}"), 0644))
	out, err = execute(t, "scenario", dir)
	require.Error(t, err)
	assert.Contains(t, out, "does not match golden")
}

func TestScenario_JSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.yaml", failingScenario)

	out, err := execute(t, "--format", "json", "scenario", dir)
	require.Error(t, err)

	var resp struct {
		Status string              `json:"status"`
		Data   harness.SuiteResult `json:"data"`
		Error  *CLIError           `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, CodeScenarioFailed, resp.Error.Code)
	assert.Equal(t, 1, resp.Data.Failed)
	require.Len(t, resp.Data.Failures, 1)
	assert.Equal(t, "wrong_tempo", resp.Data.Failures[0].Scenario)
}

func TestScenario_MissingDir(t *testing.T) {
	_, err := execute(t, "scenario", filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestScenario_Empty(t *testing.T) {
	out, err := execute(t, "scenario", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}
