package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/ferrite/internal/board"
)

// ValidationResult holds board validation output.
type ValidationResult struct {
	Valid      bool   `json:"valid"`
	Name       string `json:"name,omitempty"`
	ClockHz    uint32 `json:"clock_hz,omitempty"`
	TickRateHz uint32 `json:"tick_rate_hz,omitempty"`
	Error      string `json:"error,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <board.yaml>",
		Short: "Validate a board description",
		Long: `Validate a board description YAML against the embedded schema.

Checks field types and ranges, region alignment, that the boot image
regions sit inside their banks, and that the tick rate is achievable at
the configured clock. Nothing is simulated.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cfg, err := board.Load(path)
	if err != nil {
		if ferr := formatter.Error("E_BOARD", err.Error(), nil); ferr != nil {
			return ferr
		}
		return NewExitError(ExitFailure, "board description invalid")
	}

	formatter.VerboseLog("board %s: clock %d Hz, tick %d Hz, reload %d",
		cfg.Name, cfg.ClockHz, cfg.TickRateHz, cfg.ClockHz/cfg.TickRateHz-1)

	if opts.Format == "json" {
		return formatter.Success(ValidationResult{
			Valid:      true,
			Name:       cfg.Name,
			ClockHz:    cfg.ClockHz,
			TickRateHz: cfg.TickRateHz,
		})
	}
	return formatter.Success(fmt.Sprintf("%s: valid", cfg.Name))
}
