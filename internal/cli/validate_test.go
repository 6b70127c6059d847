package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateValidScenario(t *testing.T) {
	path := writeScenario(t, t.TempDir(), "quick", passingScenario)

	out, err := executeCommand(NewValidateCommand(&RootOptions{Format: "text"}), path)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ "+path+" (quick)")
}

func TestValidateMissingArgs(t *testing.T) {
	_, err := executeCommand(NewValidateCommand(&RootOptions{Format: "text"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires at least 1 arg")
}

func TestValidateInvalidScenario(t *testing.T) {
	dir := t.TempDir()
	good := writeScenario(t, dir, "quick", passingScenario)
	bad := writeScenario(t, dir, "bad", `
name: bad
description: Refers to a runner that does not exist.
runners:
  - name: a
flow:
  - op: start
    runner: ghost
`)

	out, err := executeCommand(NewValidateCommand(&RootOptions{Format: "text"}), good, bad)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✓ "+good)
	assert.Contains(t, out, "✗ "+bad)
	assert.Contains(t, out, `unknown runner "ghost"`)
}

func TestValidateInvalidScenarioJSON(t *testing.T) {
	bad := writeScenario(t, t.TempDir(), "bad", "name: [unclosed")

	out, err := executeCommand(NewValidateCommand(&RootOptions{Format: "json"}), bad)
	require.Error(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	require.Len(t, resp.Data.Files, 1)
	assert.NotEmpty(t, resp.Data.Files[0].Error)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeInvalid, resp.Error.Code)
}

func TestValidateVerboseOutput(t *testing.T) {
	path := writeScenario(t, t.TempDir(), "quick", passingScenario)

	out, err := executeCommand(NewValidateCommand(&RootOptions{Format: "text", Verbose: true}), path)
	require.NoError(t, err)
	assert.Contains(t, out, "Validating "+path)
}
