package board

import (
	_ "embed"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"

	"github.com/roach88/ferrite/internal/mem"
)

//go:embed schema.cue
var schemaSource string

var (
	schemaOnce sync.Once
	schemaVal  cue.Value
	schemaErr  error
)

func schema() (cue.Value, error) {
	schemaOnce.Do(func() {
		ctx := cuecontext.New()
		schemaVal = ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
		schemaErr = schemaVal.Err()
	})
	return schemaVal, schemaErr
}

// Validate checks the description against the CUE schema, then applies
// the cross-field rules the schema leaves to Go: boot regions must sit
// inside their banks, the data image must match its destination, and the
// stack top must land in SRAM.
func (c Config) Validate() error {
	sch, err := schema()
	if err != nil {
		return fmt.Errorf("board schema: %w", err)
	}

	unified := sch.Unify(sch.Context().Encode(c.asMap()))
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("board config: %s", cueerrors.Details(err, nil))
	}

	if !bankContains(c.Flash, c.DataLoad.Region()) {
		return fmt.Errorf("board config: data_load %s outside flash", c.DataLoad.Region())
	}
	if !bankContains(c.SRAM, c.Data.Region()) {
		return fmt.Errorf("board config: data %s outside sram", c.Data.Region())
	}
	if !bankContains(c.SRAM, c.BSS.Region()) {
		return fmt.Errorf("board config: bss %s outside sram", c.BSS.Region())
	}
	if c.DataLoad.Region().Size() != c.Data.Region().Size() {
		return fmt.Errorf("board config: data_load and data sizes differ")
	}
	if c.InitialSP <= c.SRAM.Base || c.InitialSP > c.SRAM.End() {
		return fmt.Errorf("board config: initial_sp %#x outside sram", c.InitialSP)
	}
	if c.TickRateHz > c.ClockHz {
		return fmt.Errorf("board config: tick rate %d Hz exceeds clock %d Hz", c.TickRateHz, c.ClockHz)
	}
	return nil
}

// asMap flattens the config for CUE unification. Built by hand so the
// schema's field names stay authoritative, independent of Go tags.
func (c Config) asMap() map[string]any {
	region := func(r RegionSpec) map[string]any {
		return map[string]any{"start": int64(r.Start), "end": int64(r.End)}
	}
	bank := func(b Bank) map[string]any {
		return map[string]any{"base": int64(b.Base), "size": int64(b.Size)}
	}
	return map[string]any{
		"name":         c.Name,
		"clock_hz":     int64(c.ClockHz),
		"tick_rate_hz": int64(c.TickRateHz),
		"flash":        bank(c.Flash),
		"sram":         bank(c.SRAM),
		"data_load":    region(c.DataLoad),
		"data":         region(c.Data),
		"bss":          region(c.BSS),
		"initial_sp":   int64(c.InitialSP),
	}
}

func bankContains(b Bank, r mem.Region) bool {
	return r.Start >= b.Base && r.End <= b.End()
}
