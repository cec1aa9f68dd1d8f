package trace

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// ListRuns returns all recorded runs, oldest first (UUIDv7 IDs are
// time-ordered).
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, board, clock_hz, tick_rate_hz, created_at
		FROM runs ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Board, &r.ClockHz, &r.TickRateHz, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun returns one run's metadata.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	var r Run
	err := s.db.QueryRowContext(ctx, `
		SELECT id, board, clock_hz, tick_rate_hz, created_at
		FROM runs WHERE id = ?
	`, id).Scan(&r.ID, &r.Board, &r.ClockHz, &r.TickRateHz, &r.CreatedAt)
	if err != nil {
		return Run{}, fmt.Errorf("get run %s: %w", id, err)
	}
	return r, nil
}

// ReadEvents returns a run's full event log in sequence order.
func (s *Store) ReadEvents(ctx context.Context, runID string) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, kind, slot, name, detail
		FROM events WHERE run_id = ? ORDER BY seq
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var ev Event
		var kind, detail string
		if err := rows.Scan(&ev.Seq, &kind, &ev.Slot, &ev.Name, &detail); err != nil {
			return nil, fmt.Errorf("read events: %w", err)
		}
		ev.Kind = Kind(kind)
		if detail != "{}" {
			ev.Detail, err = decodeDetail(detail)
			if err != nil {
				return nil, fmt.Errorf("read events: decode detail seq %d: %w", ev.Seq, err)
			}
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// decodeDetail parses a stored detail document back into the shape the
// machine produced: numbers come back as int64, never float64, so a
// read-back event re-marshals to the same canonical bytes it was written
// with.
func decodeDetail(raw string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	v, err := normalizeNumbers(m)
	if err != nil {
		return nil, err
	}
	return v.(map[string]any), nil
}

func normalizeNumbers(v any) (any, error) {
	switch val := v.(type) {
	case json.Number:
		n, err := val.Int64()
		if err != nil {
			return nil, fmt.Errorf("non-integer number %q in detail", val)
		}
		return n, nil
	case map[string]any:
		for k, elem := range val {
			norm, err := normalizeNumbers(elem)
			if err != nil {
				return nil, err
			}
			val[k] = norm
		}
		return val, nil
	case []any:
		for i, elem := range val {
			norm, err := normalizeNumbers(elem)
			if err != nil {
				return nil, err
			}
			val[i] = norm
		}
		return val, nil
	default:
		return v, nil
	}
}
