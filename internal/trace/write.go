package trace

import (
	"context"
	"fmt"
)

// CreateRun registers a run before its events. Idempotent on ID.
func (s *Store) CreateRun(ctx context.Context, r Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, board, clock_hz, tick_rate_hz)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, r.ID, r.Board, r.ClockHz, r.TickRateHz)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// WriteEvent appends an event to a run's log. The detail map is stored as
// canonical JSON so identical events are byte-identical across runs.
// Idempotent on (run, seq): replaying a write is silently ignored.
func (s *Store) WriteEvent(ctx context.Context, runID string, ev Event) error {
	detail := ev.Detail
	if detail == nil {
		detail = map[string]any{}
	}
	detailJSON, err := MarshalCanonical(detail)
	if err != nil {
		return fmt.Errorf("write event seq %d: %w", ev.Seq, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO events (run_id, seq, kind, slot, name, detail)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`, runID, ev.Seq, string(ev.Kind), ev.Slot, ev.Name, string(detailJSON))
	if err != nil {
		return fmt.Errorf("write event seq %d: %w", ev.Seq, err)
	}
	return nil
}
