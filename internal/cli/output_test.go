package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExitError(t *testing.T) {
	base := errors.New("disk full")
	err := WrapExitError(ExitCommandError, "failed to write", base)

	assert.Equal(t, "failed to write: disk full", err.Error())
	assert.ErrorIs(t, err, base)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Equal(t, ExitCommandError, GetExitCode(fmt.Errorf("outer: %w", err)))

	plain := NewExitError(ExitFailure, "2 scenario(s) failed")
	assert.Equal(t, "2 scenario(s) failed", plain.Error())
	assert.Nil(t, plain.Unwrap())

	assert.Equal(t, ExitFailure, GetExitCode(errors.New("anything else")))
}

func TestOutputFormatter_Text(t *testing.T) {
	var buf bytes.Buffer
	f := &OutputFormatter{Format: "text", Writer: &buf}

	require.NoError(t, f.Success(map[string]int{"n": 1}, "wrote 1 file"))
	require.NoError(t, f.Success(42, ""))
	require.NoError(t, f.Failure(CodeInvalidProject, "bad tempo", nil))

	assert.Equal(t, "wrote 1 file\n42\nError [E_INVALID_PROJECT]: bad tempo\n", buf.String())
}

func TestOutputFormatter_JSON(t *testing.T) {
	var buf bytes.Buffer
	f := &OutputFormatter{Format: "json", Writer: &buf}
	require.True(t, f.JSON())

	require.NoError(t, f.Success(map[string]int{"n": 1}, "ignored in json"))
	var ok CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &ok))
	assert.Equal(t, "ok", ok.Status)
	assert.Nil(t, ok.Error)
	assert.Equal(t, map[string]any{"n": 1.0}, ok.Data)

	buf.Reset()
	require.NoError(t, f.Failure(CodeScenarioFailed, "1 scenario(s) failed", []string{"x"}))
	var bad CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &bad))
	assert.Equal(t, "error", bad.Status)
	require.NotNil(t, bad.Error)
	assert.Equal(t, CodeScenarioFailed, bad.Error.Code)
	assert.Equal(t, []any{"x"}, bad.Data)
}
