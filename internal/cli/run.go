package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/roach88/hex/internal/harness"
	"github.com/roach88/hex/internal/journal"
	"github.com/roach88/hex/internal/runner"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	Watch    bool

	// RunIDs overrides the journal run id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDs journal.RunIDGenerator
}

// RunOutput is the result of running one scenario.
type RunOutput struct {
	Scenario    string               `json:"scenario"`
	RunID       string               `json:"run_id,omitempty"`
	Pass        bool                 `json:"pass"`
	Digest      string               `json:"digest"`
	Transitions int                  `json:"transitions"`
	Trace       []harness.TraceEvent `json:"trace"`
	Errors      []string             `json:"errors,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <scenario>",
		Short: "Run a scenario against the runner queue",
		Long: `Run a single scenario file and print its trace.

With --db every queue transition is recorded in a SQLite journal under a
fresh run id, so the run can be inspected with "hex trace" and rebuilt
with "hex replay". With --watch the scenario re-runs whenever the file
changes, until interrupted.

Exit codes:
  0 - Scenario passed
  1 - Expectation mismatch or flow error
  2 - Command error (missing file, bad database, etc.)

Examples:
  hex run ./scenarios/retry.yaml
  hex run --db ./hex.db ./scenarios/retry.yaml
  hex run --watch ./scenarios/retry.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarioCommand(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "record transitions into this SQLite journal")
	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "re-run when the scenario file changes")

	return cmd
}

func runScenarioCommand(opts *RunOptions, path string, cmd *cobra.Command) error {
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}

	if !opts.Watch {
		return runOnce(parentCtx, opts, path, cmd, logger)
	}

	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return watchScenario(ctx, opts, path, cmd, logger)
}

func runOnce(ctx context.Context, opts *RunOptions, path string, cmd *cobra.Command, logger *slog.Logger) error {
	out, err := executeScenario(ctx, opts, path, logger)
	if err != nil {
		return err
	}

	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	if formatter.JSON() {
		if out.Pass {
			err = formatter.Success(out)
		} else {
			err = formatter.Failure(ErrCodeScenarioFailed, "expectations failed", out)
		}
		if err != nil {
			return err
		}
	} else {
		writeRunText(cmd.OutOrStdout(), out, opts.Verbose)
	}

	if !out.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %q failed", out.Scenario))
	}
	return nil
}

// executeScenario loads and runs one scenario, journaling it when a
// database is configured.
func executeScenario(ctx context.Context, opts *RunOptions, path string, logger *slog.Logger) (*RunOutput, error) {
	s, err := harness.LoadScenario(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	runOpts := harness.Options{Logger: logger}

	var (
		j   *journal.Journal
		run journal.Run
		rec *journal.Recorder
	)
	if opts.Database != "" {
		j, err = journal.Open(opts.Database)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := j.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()

		gen := opts.RunIDs
		if gen == nil {
			gen = journal.UUIDv7Generator{}
		}
		run, err = j.BeginRun(ctx, gen, s.Name)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to begin run", err)
		}
		rec = j.Recorder(ctx, run.ID, logger)
		runOpts.Observer = rec
		logger.Info("recording run", "run_id", run.ID, "db", opts.Database)
	}

	result, err := harness.Run(ctx, s, runOpts)
	if err != nil {
		return nil, WrapExitError(ExitFailure, fmt.Sprintf("scenario %q could not run", s.Name), err)
	}

	if rec != nil {
		if err := rec.Err(); err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to record transitions", err)
		}
		if err := j.SetDigest(ctx, run.ID, result.Digest); err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to store digest", err)
		}
	}

	return &RunOutput{
		Scenario:    s.Name,
		RunID:       run.ID,
		Pass:        result.Pass,
		Digest:      result.Digest,
		Transitions: len(result.Transitions),
		Trace:       result.Trace,
		Errors:      result.Errors,
	}, nil
}

func writeRunText(w io.Writer, out *RunOutput, verbose bool) {
	fmt.Fprintf(w, "Scenario: %s\n", out.Scenario)
	if out.RunID != "" {
		fmt.Fprintf(w, "Run: %s\n", out.RunID)
	}
	fmt.Fprintln(w)

	for _, event := range out.Trace {
		label := event.Op
		if event.Runner != "" {
			label += " " + event.Runner
		}
		fmt.Fprintf(w, "  [%d] %-16s seq=%-3d %-8s %s\n",
			event.Step, label, event.Seq, event.Status, formatCounts(event.Counts))
		if event.Error != "" {
			fmt.Fprintf(w, "       error: %s\n", event.Error)
		}
	}
	fmt.Fprintln(w)

	if out.Pass {
		fmt.Fprintf(w, "✓ PASS (%d transitions)\n", out.Transitions)
	} else {
		fmt.Fprintf(w, "✗ FAIL (%d transitions)\n", out.Transitions)
		for _, e := range out.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}
	if verbose {
		fmt.Fprintf(w, "Digest: %s\n", out.Digest)
	}
}

// formatCounts renders bucket counts in status order.
func formatCounts(counts map[string]int) string {
	parts := make([]string, 0, len(counts))
	for _, s := range runner.Statuses() {
		parts = append(parts, fmt.Sprintf("%s=%d", s, counts[s.String()]))
	}
	return strings.Join(parts, " ")
}

// watchScenario runs the scenario, then re-runs it on every write until ctx
// ends. The directory is watched rather than the file so editors that
// replace the file on save still trigger a run.
func watchScenario(ctx context.Context, opts *RunOptions, path string, cmd *cobra.Command, logger *slog.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create watcher", err)
	}
	defer watcher.Close()

	target := filepath.Clean(path)
	if _, err := os.Stat(target); err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return WrapExitError(ExitCommandError, "failed to watch scenario", err)
	}

	report := func() {
		if err := runOnce(ctx, opts, target, cmd, logger); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Watching %s (Ctrl-C to stop)\n", target)
	}
	report()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				logger.Debug("scenario changed", "path", event.Name, "op", event.Op.String())
				report()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("watch error", "error", err)
		}
	}
}
