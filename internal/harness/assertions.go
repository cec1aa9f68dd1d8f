package harness

import (
	"fmt"

	"github.com/roach88/ferrite/internal/trace"
)

// EvaluateAssertions checks every assertion against a completed run and
// returns one message per failure. An empty slice means all held.
func EvaluateAssertions(r *Result, assertions []Assertion) []string {
	var failures []string
	for i, a := range assertions {
		if msg := evaluate(r, &a); msg != "" {
			failures = append(failures, fmt.Sprintf("assertion %d (%s): %s", i, a.Type, msg))
		}
	}
	return failures
}

func evaluate(r *Result, a *Assertion) string {
	switch a.Type {
	case AssertHaltCause:
		if r.HaltCause != a.Equals {
			return fmt.Sprintf("halt cause %q, want %q", r.HaltCause, a.Equals)
		}
	case AssertTraceContains:
		if countEvents(r.Trace, trace.Kind(a.Kind), a.Name) == 0 {
			return fmt.Sprintf("no %s event named %q in trace", a.Kind, a.Name)
		}
	case AssertTraceCount:
		got := countEvents(r.Trace, trace.Kind(a.Kind), a.Name)
		if got != a.Count {
			return fmt.Sprintf("%d %s events named %q, want %d", got, a.Kind, a.Name, a.Count)
		}
	case AssertTraceOrder:
		if msg := checkOrder(r.Trace, a.Names); msg != "" {
			return msg
		}
	case AssertMinTicks:
		if r.Ticks < a.Ticks {
			return fmt.Sprintf("run ended at tick %d, want at least %d", r.Ticks, a.Ticks)
		}
	case AssertMaxTicks:
		if r.Ticks > a.Ticks {
			return fmt.Sprintf("run ended at tick %d, want at most %d", r.Ticks, a.Ticks)
		}
	default:
		return fmt.Sprintf("unknown assertion type %q", a.Type)
	}
	return ""
}

func countEvents(events []trace.Event, kind trace.Kind, name string) int {
	n := 0
	for _, ev := range events {
		if ev.Kind == kind && ev.Name == name {
			n++
		}
	}
	return n
}

// checkOrder verifies names appear in the trace in the given relative
// order. Other events may interleave; each name matches the earliest
// unconsumed occurrence.
func checkOrder(events []trace.Event, names []string) string {
	next := 0
	for _, ev := range events {
		if next < len(names) && ev.Name == names[next] {
			next++
		}
	}
	if next < len(names) {
		return fmt.Sprintf("event %q missing or out of order (matched %d of %d)",
			names[next], next, len(names))
	}
	return ""
}
