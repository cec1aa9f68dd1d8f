package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/ferrite/internal/trace"
)

// Scenario defines one conformance run: which program boots, on which
// board, what external interrupts arrive, and what the resulting trace
// and halt state must look like.
type Scenario struct {
	// Name uniquely identifies this scenario; it doubles as the golden
	// file name.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Board is an optional path to a board description YAML. Empty means
	// the stock discovery board.
	Board string `yaml:"board,omitempty"`

	// Program names a registered program.
	Program string `yaml:"program"`

	// Args carries program parameters (e.g. toggles for blinky).
	Args map[string]any `yaml:"args,omitempty"`

	// Schedule lists external interrupts to raise at given ticks,
	// ordered by tick.
	Schedule []InjectStep `yaml:"schedule,omitempty"`

	// Assertions validate the final trace and halt state.
	Assertions []Assertion `yaml:"assertions"`
}

// InjectStep schedules one external interrupt.
type InjectStep struct {
	// AtTick is the tick count at which the line fires.
	AtTick uint32 `yaml:"at_tick"`

	// IRQ is the peripheral line number.
	IRQ int `yaml:"irq"`
}

// Assertion validates one aspect of a completed run.
type Assertion struct {
	// Type selects the check:
	//   - "halt_cause": the halt cause equals Equals
	//   - "trace_contains": an event with Kind and Name appears
	//   - "trace_count": events with Kind and Name appear exactly Count times
	//   - "trace_order": events named Names appear in that relative order
	//   - "min_ticks" / "max_ticks": bounds on the final tick count
	Type string `yaml:"type"`

	// Equals is the expected halt cause (halt_cause).
	Equals string `yaml:"equals,omitempty"`

	// Kind is the event kind (trace_contains, trace_count).
	Kind string `yaml:"kind,omitempty"`

	// Name is the event name (trace_contains, trace_count).
	Name string `yaml:"name,omitempty"`

	// Count is the expected occurrence count (trace_count).
	Count int `yaml:"count,omitempty"`

	// Names is the expected relative event-name order (trace_order).
	Names []string `yaml:"names,omitempty"`

	// Ticks is the bound value (min_ticks, max_ticks).
	Ticks uint32 `yaml:"ticks,omitempty"`
}

// Assertion type constants.
const (
	AssertHaltCause     = "halt_cause"
	AssertTraceContains = "trace_contains"
	AssertTraceCount    = "trace_count"
	AssertTraceOrder    = "trace_order"
	AssertMinTicks      = "min_ticks"
	AssertMaxTicks      = "max_ticks"
)

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected so typos fail loudly instead of silently validating nothing.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates a YAML scenario.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

// Injections converts the schedule to the machine's injection form.
func (s *Scenario) Injections() []trace.Injection {
	out := make([]trace.Injection, len(s.Schedule))
	for i, st := range s.Schedule {
		out[i] = trace.Injection{AtTick: st.AtTick, IRQ: st.IRQ}
	}
	return out
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Program == "" {
		return fmt.Errorf("program is required")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i := range s.Schedule {
		if s.Schedule[i].IRQ < 0 {
			return fmt.Errorf("schedule[%d]: irq must be non-negative", i)
		}
		if i > 0 && s.Schedule[i].AtTick < s.Schedule[i-1].AtTick {
			return fmt.Errorf("schedule[%d]: ticks must be non-decreasing", i)
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case AssertHaltCause:
		if a.Equals == "" {
			return fmt.Errorf("assertions[%d]: equals is required for halt_cause", index)
		}
	case AssertTraceContains:
		if a.Kind == "" || a.Name == "" {
			return fmt.Errorf("assertions[%d]: kind and name are required for trace_contains", index)
		}
	case AssertTraceCount:
		if a.Kind == "" || a.Name == "" {
			return fmt.Errorf("assertions[%d]: kind and name are required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	case AssertTraceOrder:
		if len(a.Names) < 2 {
			return fmt.Errorf("assertions[%d]: trace_order needs at least two names", index)
		}
	case AssertMinTicks, AssertMaxTicks:
		// zero bounds are legal
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
