package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/ferrite/internal/trace"
)

// snapshotMap flattens a run into the canonical-JSON input shape. Detail
// maps are carried through as-is; canonical marshalling sorts all keys,
// so the snapshot is byte-stable across runs.
func snapshotMap(name string, events []trace.Event) map[string]any {
	list := make([]any, len(events))
	for i, ev := range events {
		m := map[string]any{
			"seq":  ev.Seq,
			"kind": string(ev.Kind),
			"slot": ev.Slot,
			"name": ev.Name,
		}
		if ev.Detail != nil {
			m["detail"] = ev.Detail
		}
		list[i] = m
	}
	return map[string]any{
		"scenario_name": name,
		"events":        list,
	}
}

// RunWithGolden executes a scenario, evaluates its assertions, and
// compares the canonical trace against testdata/golden/{name}.golden.
//
// Regenerate golden files with:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, s *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(s)
	if err != nil {
		return nil, err
	}

	AssertGolden(t, s.Name, result)
	return result, nil
}

// AssertGolden compares an already-computed result's trace against the
// golden file for scenarioName.
func AssertGolden(t *testing.T, scenarioName string, result *Result) {
	t.Helper()

	traceJSON, err := trace.MarshalCanonical(snapshotMap(scenarioName, result.Trace))
	if err != nil {
		t.Fatalf("marshal trace snapshot: %v", err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)
}
