package cli

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_Valid(t *testing.T) {
	out, err := execute(t, "validate", testProject)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ "+testProject)
}

func TestValidate_Invalid(t *testing.T) {
	dir := t.TempDir()
	bad := writeFile(t, dir, "bad.json", strings.Replace(readTestProject(t), `"tempo": 96`, `"tempo": 500`, 1))
	broken := writeFile(t, dir, "broken.json", `{"title": `)

	out, err := execute(t, "validate", testProject, bad, broken)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✓ "+testProject)
	assert.Contains(t, out, "✗ "+bad)
	assert.Contains(t, out, "tempo")
	assert.Contains(t, out, "✗ "+broken)
	assert.Contains(t, out, "E301")
}

func TestValidate_JSON(t *testing.T) {
	dir := t.TempDir()
	bad := writeFile(t, dir, "bad.json", strings.Replace(readTestProject(t), `"bars": 1`, `"bars": 2`, 1))

	out, err := execute(t, "--format", "json", "validate", bad)
	require.Error(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, CodeInvalidProject, resp.Error.Code)
	require.Len(t, resp.Data.Files, 1)
	assert.False(t, resp.Data.Files[0].Valid)
	assert.NotEmpty(t, resp.Data.Files[0].Violations, "lanes shorter than bars*16 are rejected")
}

func TestValidate_MissingFile(t *testing.T) {
	_, err := execute(t, "validate", "does-not-exist.json")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
