package trace

import "github.com/google/uuid"

// Kind categorizes trace events.
type Kind string

const (
	// KindBoot marks a boot-sequencer stage; Name carries the step.
	KindBoot Kind = "boot"
	// KindDispatch marks a vector dispatch; Slot and Name identify it.
	KindDispatch Kind = "dispatch"
	// KindInject marks an externally injected interrupt (the scenario
	// schedule); Detail carries irq and at_tick.
	KindInject Kind = "inject"
	// KindPower marks a power-state transition; Name is the transition
	// ("sleep", "deep_sleep", "wake").
	KindPower Kind = "power"
	// KindHalt marks the terminal halt; Detail.cause says why.
	KindHalt Kind = "halt"
	// KindReset marks a software reset request (AIRCR write).
	KindReset Kind = "reset_request"
)

// Event is one record in a run's log.
type Event struct {
	Seq    int64          `json:"seq"`
	Kind   Kind           `json:"kind"`
	Slot   int            `json:"slot"` // -1 when not slot-addressed
	Name   string         `json:"name"`
	Detail map[string]any `json:"detail,omitempty"`
}

// Run describes one recorded machine execution.
type Run struct {
	ID         string
	Board      string
	ClockHz    uint32
	TickRateHz uint32
	CreatedAt  string
}

// NewRunID returns a time-ordered unique run identifier (UUIDv7), so runs
// listed by ID sort chronologically.
func NewRunID() string {
	return uuid.Must(uuid.NewV7()).String()
}
