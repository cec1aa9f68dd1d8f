package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/ferrite/internal/board"
	"github.com/roach88/ferrite/internal/harness"
	"github.com/roach88/ferrite/internal/machine"
	"github.com/roach88/ferrite/internal/testutil"
	"github.com/roach88/ferrite/internal/trace"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
}

// RunSummary is the run command's output payload.
type RunSummary struct {
	RunID     string   `json:"run_id,omitempty"`
	Scenario  string   `json:"scenario"`
	HaltCause string   `json:"halt_cause"`
	Ticks     uint32   `json:"ticks"`
	Events    int64    `json:"events"`
	Pass      bool     `json:"pass"`
	Failures  []string `json:"failures,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run a scenario on the simulated machine",
		Long: `Boot the scenario's program on a fresh machine, raise its scheduled
interrupts, and evaluate its assertions.

With --db, every trace event is also written to a SQLite database so the
run can be inspected with 'ferrite trace' and replayed with
'ferrite replay'.

Examples:
  ferrite run scenario.yaml
  ferrite run scenario.yaml --db ./traces.db --verbose`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenario(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite trace database (optional)")

	return cmd
}

// storeRecorder writes machine events straight into the trace store.
type storeRecorder struct {
	ctx   context.Context
	st    *trace.Store
	runID string
}

func (r *storeRecorder) Record(ev trace.Event) error {
	return r.st.WriteEvent(r.ctx, r.runID, ev)
}

// teeRecorder fans one event out to several recorders, stopping at the
// first failure.
type teeRecorder []machine.Recorder

func (t teeRecorder) Record(ev trace.Event) error {
	for _, r := range t {
		if err := r.Record(ev); err != nil {
			return err
		}
	}
	return nil
}

func runScenario(opts *RunOptions, path string, cmd *cobra.Command) error {
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}
	slog.Info("scenario loaded", "name", scenario.Name, "program", scenario.Program)

	cfg := board.Default()
	if scenario.Board != "" {
		cfg, err = board.Load(scenario.Board)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load board description", err)
		}
	}

	prog, err := harness.BuildProgram(scenario.Program, scenario.Args)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build program", err)
	}

	// Always collect in memory for assertion evaluation; tee to SQLite
	// when a database path is given.
	sink := testutil.NewEventSink()
	recorders := teeRecorder{sink}

	var runID string
	if opts.Database != "" {
		st, err := trace.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open trace database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				slog.Error("error closing trace database", "error", closeErr)
			}
		}()

		runID = trace.NewRunID()
		run := trace.Run{
			ID:         runID,
			Board:      cfg.Name,
			ClockHz:    cfg.ClockHz,
			TickRateHz: cfg.TickRateHz,
		}
		if err := st.CreateRun(cmd.Context(), run); err != nil {
			return WrapExitError(ExitCommandError, "failed to create run record", err)
		}
		slog.Info("recording trace", "db", opts.Database, "run_id", runID)
		recorders = append(recorders, &storeRecorder{ctx: cmd.Context(), st: st, runID: runID})
	}

	m, err := machine.New(cfg, prog,
		machine.WithRecorder(recorders),
		machine.WithSchedule(scenario.Injections()),
	)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build machine", err)
	}

	res, err := m.Run()
	if err != nil {
		return WrapExitError(ExitCommandError, "machine run failed", err)
	}
	slog.Info("run complete", "halt_cause", res.HaltCause, "ticks", res.Ticks, "events", res.Seq)

	result := &harness.Result{
		Pass:      true,
		HaltCause: res.HaltCause,
		Ticks:     res.Ticks,
		Trace:     sink.Events(),
	}
	failures := harness.EvaluateAssertions(result, scenario.Assertions)

	summary := RunSummary{
		RunID:     runID,
		Scenario:  scenario.Name,
		HaltCause: res.HaltCause,
		Ticks:     res.Ticks,
		Events:    res.Seq,
		Pass:      len(failures) == 0,
		Failures:  failures,
	}

	if opts.Format == "json" {
		if err := formatter.Success(summary); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "scenario:   %s\n", summary.Scenario)
		if runID != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "run id:     %s\n", runID)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "halt cause: %s\n", summary.HaltCause)
		fmt.Fprintf(cmd.OutOrStdout(), "ticks:      %d\n", summary.Ticks)
		fmt.Fprintf(cmd.OutOrStdout(), "events:     %d\n", summary.Events)
		if summary.Pass {
			fmt.Fprintln(cmd.OutOrStdout(), "assertions: pass")
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), "assertions: FAIL")
			for _, f := range failures {
				fmt.Fprintf(cmd.OutOrStdout(), "  - %s\n", f)
			}
		}
	}

	if len(failures) > 0 {
		return NewExitError(ExitFailure, "scenario assertions failed")
	}
	return nil
}
