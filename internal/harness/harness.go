// Package harness runs conformance scenarios against the simulated
// machine: boot a registered program, feed it the scenario's interrupt
// schedule, and check the recorded trace and halt state against the
// scenario's assertions (and, optionally, a golden trace file).
//
// Every scenario runs on a fresh machine with an in-memory recorder, so
// runs are isolated and byte-reproducible: the same scenario always
// produces the same event log.
package harness

import (
	"fmt"

	"github.com/roach88/ferrite/internal/board"
	"github.com/roach88/ferrite/internal/demo"
	"github.com/roach88/ferrite/internal/machine"
	"github.com/roach88/ferrite/internal/testutil"
	"github.com/roach88/ferrite/internal/trace"
)

// ProgramBuilder constructs a program from scenario args.
type ProgramBuilder func(args map[string]any) (machine.Program, error)

// programs is the registry of scenario-runnable programs.
var programs = map[string]ProgramBuilder{
	"noop":   buildNoop,
	"blinky": buildBlinky,
}

// RegisterProgram adds a program builder to the registry. Later
// registrations replace earlier ones; tests use this to install probes.
func RegisterProgram(name string, build ProgramBuilder) {
	programs[name] = build
}

// BuildProgram constructs a registered program from scenario args.
func BuildProgram(name string, args map[string]any) (machine.Program, error) {
	build, ok := programs[name]
	if !ok {
		return machine.Program{}, fmt.Errorf("unknown program %q", name)
	}
	return build(args)
}

func buildNoop(map[string]any) (machine.Program, error) {
	return machine.Program{
		Name: "noop",
		Main: func(rt *machine.Runtime) {},
	}, nil
}

func buildBlinky(args map[string]any) (machine.Program, error) {
	toggles, err := intArg(args, "toggles", 4)
	if err != nil {
		return machine.Program{}, err
	}
	return demo.Blinky(toggles), nil
}

// intArg extracts an integer argument, defaulting when absent. YAML
// decodes integers as int.
func intArg(args map[string]any, key string, deflt int) (int, error) {
	v, ok := args[key]
	if !ok {
		return deflt, nil
	}
	n, ok := v.(int)
	if !ok {
		return 0, fmt.Errorf("arg %q: expected integer, got %T", key, v)
	}
	return n, nil
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every assertion held.
	Pass bool

	// HaltCause is the machine's terminal halt cause.
	HaltCause string

	// Ticks is the final tick count.
	Ticks uint32

	// Trace contains every recorded event in sequence order.
	Trace []trace.Event

	// Errors lists assertion failures. Empty when Pass is true.
	Errors []string
}

// Run executes a scenario on a fresh machine and evaluates its
// assertions. Execution errors (unknown program, bad board file, machine
// construction failure) return an error; assertion failures land in
// Result.Errors with Pass false.
func Run(s *Scenario) (*Result, error) {
	cfg := board.Default()
	if s.Board != "" {
		var err error
		cfg, err = board.Load(s.Board)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: %w", s.Name, err)
		}
	}

	prog, err := BuildProgram(s.Program, s.Args)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", s.Name, err)
	}

	sink := testutil.NewEventSink()
	m, err := machine.New(cfg, prog,
		machine.WithRecorder(sink),
		machine.WithSchedule(s.Injections()),
	)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", s.Name, err)
	}

	res, err := m.Run()
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", s.Name, err)
	}

	result := &Result{
		Pass:      true,
		HaltCause: res.HaltCause,
		Ticks:     res.Ticks,
		Trace:     sink.Events(),
	}
	for _, msg := range EvaluateAssertions(result, s.Assertions) {
		result.Errors = append(result.Errors, msg)
		result.Pass = false
	}
	return result, nil
}
