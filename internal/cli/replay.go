package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/ferrite/internal/board"
	"github.com/roach88/ferrite/internal/harness"
	"github.com/roach88/ferrite/internal/machine"
	"github.com/roach88/ferrite/internal/testutil"
	"github.com/roach88/ferrite/internal/trace"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	RunID    string
}

// ReplayResult is the replay command's output payload.
type ReplayResult struct {
	RunID         string `json:"run_id"`
	Deterministic bool   `json:"deterministic"`
	Events        int    `json:"events"`
	DivergedAtSeq int64  `json:"diverged_at_seq,omitempty"`
	Expected      string `json:"expected,omitempty"`
	Actual        string `json:"actual,omitempty"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <scenario.yaml>",
		Short: "Re-run a recorded run and check for divergence",
		Long: `Replay a recorded run: rebuild the scenario's program, feed it the
injection schedule extracted from the recorded trace, and compare the
fresh event log against the stored one event by event.

A deterministic machine must reproduce the stored trace exactly; the
first differing event is reported with its sequence number.

Examples:
  ferrite replay scenario.yaml --db ./traces.db --run 018f3c0a-...`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite trace database (required)")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run id to replay (required)")
	_ = cmd.MarkFlagRequired("db")
	_ = cmd.MarkFlagRequired("run")

	return cmd
}

func runReplay(opts *ReplayOptions, scenarioPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	scenario, err := harness.LoadScenario(scenarioPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	st, err := trace.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open trace database", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	run, err := st.GetRun(ctx, opts.RunID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load run", err)
	}
	recorded, err := st.ReadEvents(ctx, opts.RunID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read recorded events", err)
	}
	schedule, err := st.ReadSchedule(ctx, opts.RunID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to extract injection schedule", err)
	}
	formatter.VerboseLog("replaying run %s: %d events, %d scheduled injections",
		run.ID, len(recorded), len(schedule))

	cfg := board.Default()
	if scenario.Board != "" {
		cfg, err = board.Load(scenario.Board)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load board description", err)
		}
	}
	if cfg.Name != run.Board {
		return NewExitError(ExitCommandError, fmt.Sprintf(
			"scenario board %q does not match recorded board %q", cfg.Name, run.Board))
	}

	prog, err := harness.BuildProgram(scenario.Program, scenario.Args)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build program", err)
	}

	sink := testutil.NewEventSink()
	m, err := machine.New(cfg, prog,
		machine.WithRecorder(sink),
		machine.WithSchedule(schedule),
	)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build machine", err)
	}
	if _, err := m.Run(); err != nil {
		return WrapExitError(ExitCommandError, "replay run failed", err)
	}

	result := compareTraces(run.ID, recorded, sink.Events())

	if opts.Format == "json" {
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else if result.Deterministic {
		fmt.Fprintf(cmd.OutOrStdout(), "run %s: deterministic (%d events match)\n",
			result.RunID, result.Events)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "run %s: DIVERGED at seq %d\n", result.RunID, result.DivergedAtSeq)
		fmt.Fprintf(cmd.OutOrStdout(), "  expected: %s\n", result.Expected)
		fmt.Fprintf(cmd.OutOrStdout(), "  actual:   %s\n", result.Actual)
	}

	if !result.Deterministic {
		return NewExitError(ExitFailure, "replay diverged from recorded trace")
	}
	return nil
}

// compareTraces finds the first divergence between the recorded and
// replayed event logs. Comparison is on the canonical byte form, so
// detail-map key order can never cause a false divergence.
func compareTraces(runID string, recorded, replayed []trace.Event) ReplayResult {
	n := len(recorded)
	if len(replayed) < n {
		n = len(replayed)
	}
	for i := 0; i < n; i++ {
		exp, got := canonicalEvent(recorded[i]), canonicalEvent(replayed[i])
		if exp != got {
			return ReplayResult{
				RunID:         runID,
				Events:        len(recorded),
				DivergedAtSeq: recorded[i].Seq,
				Expected:      exp,
				Actual:        got,
			}
		}
	}
	if len(recorded) != len(replayed) {
		res := ReplayResult{RunID: runID, Events: len(recorded)}
		if len(replayed) > n {
			res.DivergedAtSeq = replayed[n].Seq
			res.Actual = canonicalEvent(replayed[n])
			res.Expected = "(end of recorded trace)"
		} else {
			res.DivergedAtSeq = recorded[n].Seq
			res.Expected = canonicalEvent(recorded[n])
			res.Actual = "(end of replayed trace)"
		}
		return res
	}
	return ReplayResult{RunID: runID, Deterministic: true, Events: len(recorded)}
}

func canonicalEvent(ev trace.Event) string {
	m := map[string]any{
		"seq":  ev.Seq,
		"kind": string(ev.Kind),
		"slot": ev.Slot,
		"name": ev.Name,
	}
	if ev.Detail != nil {
		m["detail"] = ev.Detail
	}
	b, err := trace.MarshalCanonical(m)
	if err != nil {
		return fmt.Sprintf("unmarshalable event seq %d: %v", ev.Seq, err)
	}
	return string(b)
}
