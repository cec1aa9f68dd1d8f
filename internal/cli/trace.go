package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/ferrite/internal/trace"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RunID    string
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Inspect recorded runs",
		Long: `Inspect the trace database.

Without --run, lists all recorded runs in chronological order. With
--run, prints the full event log for that run.

Examples:
  ferrite trace --db ./traces.db
  ferrite trace --db ./traces.db --run 018f3c0a-...
  ferrite trace --db ./traces.db --run 018f3c0a-... --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite trace database (required)")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run id to show events for")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	st, err := trace.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open trace database", err)
	}
	defer st.Close()

	out := cmd.OutOrStdout()

	if opts.RunID == "" {
		runs, err := st.ListRuns(cmd.Context())
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list runs", err)
		}
		if opts.Format == "json" {
			return json.NewEncoder(out).Encode(runs)
		}
		if len(runs) == 0 {
			fmt.Fprintln(out, "no recorded runs")
			return nil
		}
		for _, r := range runs {
			fmt.Fprintf(out, "%s  %s  %d Hz / %d Hz  %s\n",
				r.ID, r.Board, r.ClockHz, r.TickRateHz, r.CreatedAt)
		}
		return nil
	}

	events, err := st.ReadEvents(cmd.Context(), opts.RunID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read events", err)
	}
	if opts.Format == "json" {
		return json.NewEncoder(out).Encode(events)
	}
	for _, ev := range events {
		line := fmt.Sprintf("%6d  %-14s %-16s slot %d", ev.Seq, ev.Kind, ev.Name, ev.Slot)
		if ev.Detail != nil {
			detail, err := json.Marshal(ev.Detail)
			if err == nil {
				line += "  " + string(detail)
			}
		}
		fmt.Fprintln(out, line)
	}
	return nil
}
