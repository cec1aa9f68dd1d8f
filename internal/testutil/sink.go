// Package testutil holds shared helpers for tests across packages.
package testutil

import (
	"sync"

	"github.com/roach88/ferrite/internal/trace"
)

// EventSink is an in-memory trace recorder. Tests assert on it directly;
// the harness and the CLI collect through it wherever a run's events are
// needed without a database.
//
// Unlike the SQLite-backed store it never fails and keeps events in arrival
// order for direct assertion. Reset allows reuse across subtests.
//
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type EventSink struct {
	mu     sync.Mutex
	events []trace.Event
}

// NewEventSink creates an empty sink.
func NewEventSink() *EventSink {
	return &EventSink{}
}

// Record implements the machine recorder interface.
func (s *EventSink) Record(ev trace.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

// Events returns a copy of the recorded events in arrival order.
func (s *EventSink) Events() []trace.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]trace.Event, len(s.events))
	copy(out, s.events)
	return out
}

// Kinds returns the event kinds in arrival order.
func (s *EventSink) Kinds() []trace.Kind {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]trace.Kind, len(s.events))
	for i, ev := range s.events {
		out[i] = ev.Kind
	}
	return out
}

// Named returns the recorded events with the given kind and name.
func (s *EventSink) Named(kind trace.Kind, name string) []trace.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []trace.Event
	for _, ev := range s.events {
		if ev.Kind == kind && ev.Name == name {
			out = append(out, ev)
		}
	}
	return out
}

// Len returns the number of recorded events.
func (s *EventSink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

// Reset discards all recorded events for test reuse.
func (s *EventSink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
}
