package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/ferrite/internal/vector"
)

// SlotInfo describes one vector table slot for output.
type SlotInfo struct {
	Slot     int    `json:"slot"`
	Name     string `json:"name"`
	IRQ      *int   `json:"irq,omitempty"`
	Reserved bool   `json:"reserved,omitempty"`
}

// NewVectorsCommand creates the vectors command.
func NewVectorsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vectors",
		Short: "Print the vector table layout",
		Long: `Print the fixed vector table layout: 16 core exception slots followed
by 40 peripheral interrupt lines, reserved slots included. Position
encodes identity, so the layout never changes at runtime.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVectors(rootOpts, cmd)
		},
	}
	return cmd
}

func runVectors(opts *RootOptions, cmd *cobra.Command) error {
	slots := make([]SlotInfo, vector.NumSlots)
	for i := 0; i < vector.NumSlots; i++ {
		info := SlotInfo{Slot: i, Name: vector.SlotName(i), Reserved: vector.Reserved(i)}
		if i >= vector.IRQBase {
			irq := i - vector.IRQBase
			info.IRQ = &irq
		}
		slots[i] = info
	}

	out := cmd.OutOrStdout()
	if opts.Format == "json" {
		return json.NewEncoder(out).Encode(slots)
	}
	for _, s := range slots {
		if s.IRQ != nil {
			fmt.Fprintf(out, "%2d  IRQ %2d  %s\n", s.Slot, *s.IRQ, s.Name)
		} else {
			fmt.Fprintf(out, "%2d          %s\n", s.Slot, s.Name)
		}
	}
	return nil
}
