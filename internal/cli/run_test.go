package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hex/internal/journal"
	"github.com/roach88/hex/internal/runner"
)

const passingScenario = `
name: quick
description: One runner executes and succeeds.
runners:
  - name: a
flow:
  - op: enqueue
    runners: [a]
  - op: execute
  - op: settle
    runner: a
    outcome: success
    value: ok
  - op: await
  - op: expect
    status: success
    counts: {success: 1}
`

const failingScenario = `
name: wrong
description: Expects the wrong status after enqueue.
runners:
  - name: a
flow:
  - op: enqueue
    runners: [a]
  - op: expect
    status: pending
`

// syncBuffer is a bytes.Buffer safe for a command writing from another
// goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func writeScenario(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name+".yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func executeCommand(cmd *cobra.Command, args ...string) (string, error) {
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// recordRun runs passingScenario into dbPath under runID.
func recordRun(t *testing.T, dbPath, runID string) {
	t.Helper()
	path := writeScenario(t, t.TempDir(), "quick", passingScenario)
	cmd := newRunCommand(&RunOptions{
		RootOptions: &RootOptions{Format: "text"},
		RunIDs:      journal.NewFixedGenerator(runID),
	})
	_, err := executeCommand(cmd, "--db", dbPath, path)
	require.NoError(t, err)
}

func TestRunPassingScenario(t *testing.T) {
	path := writeScenario(t, t.TempDir(), "quick", passingScenario)

	out, err := executeCommand(NewRunCommand(&RootOptions{Format: "text"}), path)
	require.NoError(t, err)

	assert.Contains(t, out, "Scenario: quick")
	assert.Contains(t, out, "✓ PASS (3 transitions)")
	assert.Contains(t, out, "initial=0 pending=0 success=1 error=0 disabled=0")
	assert.NotContains(t, out, "Run:")
}

func TestRunPassingScenarioJSON(t *testing.T) {
	path := writeScenario(t, t.TempDir(), "quick", passingScenario)

	out, err := executeCommand(NewRunCommand(&RootOptions{Format: "json"}), path)
	require.NoError(t, err)

	var resp struct {
		Status string    `json:"status"`
		Data   RunOutput `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Pass)
	assert.Equal(t, "quick", resp.Data.Scenario)
	assert.Equal(t, 3, resp.Data.Transitions)
	assert.Len(t, resp.Data.Trace, 5)
	assert.Len(t, resp.Data.Digest, 64)
}

func TestRunFailingScenario(t *testing.T) {
	path := writeScenario(t, t.TempDir(), "wrong", failingScenario)

	out, err := executeCommand(NewRunCommand(&RootOptions{Format: "text"}), path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ FAIL")
	assert.Contains(t, out, "flow[1]: status: expected pending, got initial")
}

func TestRunFailingScenarioJSON(t *testing.T) {
	path := writeScenario(t, t.TempDir(), "wrong", failingScenario)

	out, err := executeCommand(NewRunCommand(&RootOptions{Format: "json"}), path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeScenarioFailed, resp.Error.Code)
}

func TestRunMissingScenario(t *testing.T) {
	_, err := executeCommand(NewRunCommand(&RootOptions{Format: "text"}), "/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load scenario")
}

func TestRunFlowError(t *testing.T) {
	path := writeScenario(t, t.TempDir(), "bad", `
name: bad
description: Settles a runner that never started.
runners:
  - name: a
flow:
  - op: settle
    runner: a
    outcome: success
`)

	_, err := executeCommand(NewRunCommand(&RootOptions{Format: "text"}), path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), `scenario "bad" could not run`)
}

func TestRunRecordsJournal(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "hex.db")
	path := writeScenario(t, t.TempDir(), "quick", passingScenario)

	cmd := newRunCommand(&RunOptions{
		RootOptions: &RootOptions{Format: "text"},
		RunIDs:      journal.NewFixedGenerator("run-1"),
	})
	out, err := executeCommand(cmd, "--db", dbPath, path)
	require.NoError(t, err)
	assert.Contains(t, out, "Run: run-1")

	j, err := journal.Open(dbPath)
	require.NoError(t, err)
	defer j.Close()

	ctx := context.Background()
	run, err := j.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "quick", run.Name)
	assert.Len(t, run.Digest, 64)

	replayed, err := j.Replay(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, runner.StatusSuccess, replayed.Status)
	assert.Equal(t, 3, replayed.Transitions)
	assert.Equal(t, []int{0}, replayed.Indices(runner.StatusSuccess))
}

func TestRunWatchRerunsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := writeScenario(t, dir, "quick", passingScenario)

	out := &syncBuffer{}
	cmd := NewRunCommand(&RootOptions{Format: "text"})
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs([]string{"--watch", path})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	require.Eventually(t, func() bool {
		return bytes.Contains([]byte(out.String()), []byte("Watching"))
	}, 5*time.Second, 10*time.Millisecond)

	renamed := bytes.Replace([]byte(passingScenario), []byte("name: quick"), []byte("name: quick-again"), 1)
	require.NoError(t, os.WriteFile(path, renamed, 0o644))

	require.Eventually(t, func() bool {
		return bytes.Contains([]byte(out.String()), []byte("Scenario: quick-again"))
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}

func TestRunWatchMissingScenario(t *testing.T) {
	_, err := executeCommand(NewRunCommand(&RootOptions{Format: "text"}), "--watch", "/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
