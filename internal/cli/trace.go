package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/hex/internal/journal"
	"github.com/roach88/hex/internal/queue"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Index    int // filter to one runner index; -1 for all
}

// RunSummary describes one journaled run.
type RunSummary struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	CreatedSeq int64  `json:"created_seq"`
	Digest     string `json:"digest,omitempty"`
}

// TransitionRecord is the printable form of one transition.
type TransitionRecord struct {
	Seq   int64  `json:"seq"`
	Kind  string `json:"kind"`
	Index int    `json:"index"`
	From  string `json:"from,omitempty"`
	To    string `json:"to,omitempty"`
}

// TraceResult holds the transitions of one run.
type TraceResult struct {
	Run         RunSummary         `json:"run"`
	Transitions []TransitionRecord `json:"transitions"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace [run-id]",
		Short: "List journaled runs or show one run's transitions",
		Long: `Inspect the transition journal written by "hex run --db".

Without a run id, lists every recorded run. With a run id, prints that
run's bucket transitions in seq order.

Examples:
  hex trace --db ./hex.db
  hex trace --db ./hex.db 01929f3e-...
  hex trace --db ./hex.db 01929f3e-... --index 2 --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().IntVar(&opts.Index, "index", -1, "only show transitions of this runner index")

	return cmd
}

func runTrace(opts *TraceOptions, args []string, cmd *cobra.Command) error {
	ctx := context.Background()

	j, err := openJournal(opts.Database)
	if err != nil {
		return err
	}
	defer j.Close()

	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	if len(args) == 0 {
		runs, err := j.Runs(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list runs", err)
		}
		summaries := make([]RunSummary, len(runs))
		for i, r := range runs {
			summaries[i] = summarize(r)
		}
		if formatter.JSON() {
			return formatter.Success(summaries)
		}
		writeRunsText(cmd.OutOrStdout(), summaries)
		return nil
	}

	run, err := j.GetRun(ctx, args[0])
	if err != nil {
		if journal.IsRunNotFound(err) {
			return WrapExitError(ExitCommandError, "unknown run", err)
		}
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}
	transitions, err := j.Read(ctx, run.ID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read transitions", err)
	}

	result := TraceResult{
		Run:         summarize(run),
		Transitions: filterTransitions(transitions, opts.Index),
	}
	if formatter.JSON() {
		return formatter.Success(result)
	}
	writeTraceText(cmd.OutOrStdout(), result)
	return nil
}

// openJournal opens an existing journal. Unlike journal.Open it refuses to
// create a new database file.
func openJournal(path string) (*journal.Journal, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, WrapExitError(ExitCommandError, "database not found", err)
	}
	j, err := journal.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return j, nil
}

func summarize(r journal.Run) RunSummary {
	return RunSummary{ID: r.ID, Name: r.Name, CreatedSeq: r.CreatedSeq, Digest: r.Digest}
}

func filterTransitions(transitions []queue.Transition, index int) []TransitionRecord {
	records := []TransitionRecord{}
	for _, t := range transitions {
		// resets affect every index
		if index >= 0 && t.Index != index && t.Kind != queue.KindReset {
			continue
		}
		rec := TransitionRecord{Seq: t.Seq, Kind: string(t.Kind), Index: t.Index}
		switch t.Kind {
		case queue.KindEnqueue:
			rec.To = t.To.String()
		case queue.KindMove:
			rec.From = t.From.String()
			rec.To = t.To.String()
		}
		records = append(records, rec)
	}
	return records
}

func writeRunsText(w io.Writer, runs []RunSummary) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs found in database.")
		return
	}
	for _, r := range runs {
		fmt.Fprintf(w, "  %4d  %s  %s\n", r.CreatedSeq, r.ID, r.Name)
	}
}

func writeTraceText(w io.Writer, result TraceResult) {
	fmt.Fprintf(w, "Trace for Run: %s (%s)\n", result.Run.ID, result.Run.Name)
	fmt.Fprintln(w)

	if len(result.Transitions) == 0 {
		fmt.Fprintln(w, "  (no transitions)")
		return
	}
	for _, t := range result.Transitions {
		switch queue.TransitionKind(t.Kind) {
		case queue.KindEnqueue:
			fmt.Fprintf(w, "  [%d] ENQ   #%d -> %s\n", t.Seq, t.Index, t.To)
		case queue.KindMove:
			fmt.Fprintf(w, "  [%d] MOVE  #%d %s -> %s\n", t.Seq, t.Index, t.From, t.To)
		case queue.KindReset:
			fmt.Fprintf(w, "  [%d] RESET\n", t.Seq)
		}
	}
}
