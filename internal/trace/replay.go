package trace

import (
	"context"
	"fmt"
)

// Injection is one entry of a run's external interrupt schedule: raise
// peripheral line IRQ once the tick counter reaches AtTick.
type Injection struct {
	AtTick uint32
	IRQ    int
}

// ReadSchedule extracts the injected-interrupt schedule from a recorded
// run, in firing order. Re-running the same program against this schedule
// must reproduce the run's event log; divergence means the core is not
// deterministic (or the program changed).
func (s *Store) ReadSchedule(ctx context.Context, runID string) ([]Injection, error) {
	events, err := s.ReadEvents(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("read schedule: %w", err)
	}

	var schedule []Injection
	for _, ev := range events {
		if ev.Kind != KindInject {
			continue
		}
		irq, ok := detailInt(ev.Detail, "irq")
		if !ok {
			return nil, fmt.Errorf("read schedule: inject event seq %d missing irq", ev.Seq)
		}
		at, ok := detailInt(ev.Detail, "at_tick")
		if !ok {
			return nil, fmt.Errorf("read schedule: inject event seq %d missing at_tick", ev.Seq)
		}
		schedule = append(schedule, Injection{AtTick: uint32(at), IRQ: int(irq)})
	}
	return schedule, nil
}

// detailInt reads an integer out of a detail map. Read-back details hold
// int64; in-memory details hold int; float64 covers foreign decoders.
func detailInt(detail map[string]any, key string) (int64, bool) {
	v, ok := detail[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	default:
		return 0, false
	}
}
