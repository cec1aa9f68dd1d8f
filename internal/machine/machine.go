package machine

import (
	"fmt"
	"hash/fnv"
	"sync"
	"sync/atomic"

	"github.com/roach88/ferrite/internal/board"
	"github.com/roach88/ferrite/internal/boot"
	"github.com/roach88/ferrite/internal/cpu"
	"github.com/roach88/ferrite/internal/mem"
	"github.com/roach88/ferrite/internal/power"
	"github.com/roach88/ferrite/internal/tick"
	"github.com/roach88/ferrite/internal/trace"
	"github.com/roach88/ferrite/internal/vector"
)

// SCS register addresses the machine models beyond the SysTick block.
const (
	// AIRCRAddr is the Application Interrupt and Reset Control Register.
	AIRCRAddr uint32 = 0xE000_ED0C
	// aircrVectKey must accompany every AIRCR write.
	aircrVectKey uint32 = 0x5FA << 16
	// aircrSysResetReq requests a system reset.
	aircrSysResetReq uint32 = 1 << 2
	// priorityGrouping is the single grouping policy written during init:
	// all preemption bits, no subpriority.
	priorityGrouping uint32 = 3 << 8

	// UniqueIDAddr is the base of the 96-bit device identifier block.
	UniqueIDAddr uint32 = 0x1FFF_7A10
)

// Recorder receives trace events as the machine produces them.
type Recorder interface {
	Record(ev trace.Event) error
}

// RecorderFunc adapts a function to the Recorder interface.
type RecorderFunc func(ev trace.Event) error

// Record implements Recorder.
func (f RecorderFunc) Record(ev trace.Event) error { return f(ev) }

// Program is the application the machine boots: the entry point, its
// static initialization, and the handler registrations it performs before
// interrupts are unmasked.
type Program struct {
	// Name identifies the program in run metadata.
	Name string

	// DataImage, when set, is loaded into the initialized-data source
	// region before reset, standing in for the flash image the build
	// step would produce. Must not exceed the region.
	DataImage []byte

	// ExtraBanks are additional peripheral memory banks the program
	// needs (e.g. a GPIO block).
	ExtraBanks []board.Bank

	// PreInit and Init run inside the boot sequence, in order, after the
	// memory image is established. All of PreInit completes before Init
	// begins.
	PreInit []func()
	Init    []func()

	// Setup registers the program's interrupt handlers. It runs after the
	// core services are configured and before the vector table seals.
	Setup func(rt *Runtime) error

	// Main is the application entry point.
	Main func(rt *Runtime)
}

// Machine is one simulated target: core, memory, and services, wired to a
// recorder.
type Machine struct {
	cfg   board.Config
	prog  Program
	space *mem.Space
	core  *cpu.Core
	table *vector.Table
	ticks *tick.Service
	pwr   *power.Controller
	clock *Clock
	rec   Recorder

	schedule []trace.Injection
	nextInj  int

	currentExc atomic.Int64

	recMu    sync.Mutex
	recErr   error // first recorder failure
	setupErr error
}

// Option configures a Machine.
type Option func(*Machine)

// WithRecorder installs the trace recorder. Without one the machine runs
// unrecorded.
func WithRecorder(r Recorder) Option {
	return func(m *Machine) { m.rec = r }
}

// WithSchedule installs the external interrupt schedule: each entry
// raises its peripheral line once the tick counter reaches its tick.
// Entries must be ordered by tick.
func WithSchedule(schedule []trace.Injection) Option {
	return func(m *Machine) { m.schedule = schedule }
}

// New builds a machine for cfg running prog. The board description must
// already be validated.
func New(cfg board.Config, prog Program, opts ...Option) (*Machine, error) {
	if prog.Main == nil {
		return nil, fmt.Errorf("machine: program %q has no entry point", prog.Name)
	}

	m := &Machine{cfg: cfg, prog: prog, clock: NewClock()}
	for _, opt := range opts {
		opt(m)
	}

	m.space = mem.NewSpace()
	if err := m.space.AddBank(cfg.Flash.Base, cfg.Flash.Size); err != nil {
		return nil, fmt.Errorf("machine: flash: %w", err)
	}
	if err := m.space.AddBank(cfg.SRAM.Base, cfg.SRAM.Size); err != nil {
		return nil, fmt.Errorf("machine: sram: %w", err)
	}
	// System control space: SysTick block, SCR, AIRCR and friends.
	if err := m.space.AddBank(0xE000_E000, 0x1000); err != nil {
		return nil, fmt.Errorf("machine: scs: %w", err)
	}
	if err := m.space.AddBank(UniqueIDAddr, 16); err != nil {
		return nil, fmt.Errorf("machine: uid block: %w", err)
	}
	for _, b := range prog.ExtraBanks {
		if err := m.space.AddBank(b.Base, b.Size); err != nil {
			return nil, fmt.Errorf("machine: program bank: %w", err)
		}
	}

	m.core = cpu.New()
	m.core.SetDispatch(m.dispatch)
	m.pwr = power.NewController(m.core, m.space)

	var err error
	m.ticks, err = tick.NewService(m.space, cfg.ClockHz, cfg.TickRateHz,
		tick.WithIdle(m.pump))
	if err != nil {
		return nil, fmt.Errorf("machine: %w", err)
	}
	// The same pump serves wait-for-interrupt: a core parked in Sleep or
	// DeepSleep is woken by the ticks it would have received while running.
	m.core.SetIdle(m.pump)

	m.table = vector.New(cfg.InitialSP, m.reset, m.defaultHandler)

	// AIRCR intercept: reset requests must halt-and-flag instead of
	// silently storing a bit.
	var aircrShadow uint32
	m.space.MapIO(mem.IORegion{
		Start:  AIRCRAddr,
		End:    AIRCRAddr + 4,
		OnRead: func(uint32) uint32 { return aircrShadow },
		OnWrite: func(_ uint32, v uint32) {
			if v&0xFFFF_0000 != aircrVectKey {
				return // writes without the key are ignored by hardware
			}
			aircrShadow = v & 0xFFFF
			if v&aircrSysResetReq != 0 {
				m.record(trace.Event{Kind: trace.KindReset, Slot: -1, Name: "sysresetreq"})
				m.core.Halt("system reset requested")
			}
		},
	})

	m.seedUniqueID()

	if prog.DataImage != nil {
		load := cfg.DataLoad.Region()
		if uint32(len(prog.DataImage)) > load.Size() {
			return nil, fmt.Errorf("machine: data image %d bytes exceeds load region %s",
				len(prog.DataImage), load)
		}
		for i, b := range prog.DataImage {
			m.space.Write8(load.Start+uint32(i), b)
		}
	}

	return m, nil
}

// seedUniqueID derives a stable 96-bit device ID from the board name, the
// way each physical part carries its own factory-programmed value.
func (m *Machine) seedUniqueID() {
	h := fnv.New32a()
	h.Write([]byte(m.cfg.Name))
	base := h.Sum32()
	for i := uint32(0); i < 3; i++ {
		m.space.Write32(UniqueIDAddr+4*i, base+i*0x9E37_79B9)
	}
}

// Space exposes the address space for pre-run wiring and post-run
// inspection.
func (m *Machine) Space() *mem.Space { return m.space }

// Core exposes the processor core (tests raise and inspect through it).
func (m *Machine) Core() *cpu.Core { return m.core }

// Ticks returns the current tick counter.
func (m *Machine) Ticks() uint32 { return m.ticks.Ticks() }

// Config returns the board description the machine was built from.
func (m *Machine) Config() board.Config { return m.cfg }

// record stamps and emits a trace event; the first recorder failure is
// kept and surfaced by Run.
func (m *Machine) record(ev trace.Event) {
	if m.rec == nil {
		m.clock.Next()
		return
	}
	ev.Seq = m.clock.Next()
	if err := m.rec.Record(ev); err != nil {
		m.recMu.Lock()
		if m.recErr == nil {
			m.recErr = err
		}
		m.recMu.Unlock()
	}
}

// dispatch is the core's exception entry: record, then vector.
func (m *Machine) dispatch(exc int) {
	m.currentExc.Store(int64(exc))
	m.record(trace.Event{Kind: trace.KindDispatch, Slot: exc, Name: vector.SlotName(exc)})
	m.table.Dispatch(exc)
}

// defaultHandler is bound to every slot the program leaves alone:
// unexpected exceptions and processor faults halt permanently. Loud at
// development time, safe in the field.
func (m *Machine) defaultHandler() {
	exc := int(m.currentExc.Load())
	m.core.Halt(fmt.Sprintf("unhandled exception: %s (slot %d)", vector.SlotName(exc), exc))
}

// pump advances simulated time from inside busy-waits: due scheduled
// injections fire first, then one SysTick period elapses.
func (m *Machine) pump() {
	if m.core.Halted() {
		// Raises are no-ops after a halt, so the counter would freeze and
		// any wait still in flight would spin forever. Free-run it so
		// host-side waits drain out.
		m.ticks.Seed(m.ticks.Ticks() + 1)
		return
	}
	now := m.ticks.Ticks()
	for m.nextInj < len(m.schedule) && m.schedule[m.nextInj].AtTick <= now {
		inj := m.schedule[m.nextInj]
		m.nextInj++
		m.InjectIRQ(inj.IRQ, inj.AtTick)
	}
	m.core.Raise(vector.SlotSysTick)
}

// InjectIRQ raises peripheral line irq as an external stimulus and
// records it with the tick it was scheduled for.
func (m *Machine) InjectIRQ(irq int, atTick uint32) {
	slot := vector.IRQSlot(irq)
	m.record(trace.Event{
		Kind: trace.KindInject,
		Slot: slot,
		Name: vector.SlotName(slot),
		Detail: map[string]any{
			"irq":     irq,
			"at_tick": int(atTick),
		},
	})
	m.core.Raise(slot)
}

// reset is the slot-1 entry: the boot sequencer handing off to Main.
func (m *Machine) reset() {
	img := m.cfg.Image()
	rt := &Runtime{m: m}

	init := []func(){m.systemInit(rt)}
	init = append(init, m.prog.Init...)

	seq, err := boot.New(m.space, m.core, img, func() { m.prog.Main(rt) },
		boot.WithPreInit(m.prog.PreInit...),
		boot.WithInit(init...),
		boot.WithObserver(func(st boot.Step) {
			m.record(trace.Event{Kind: trace.KindBoot, Slot: -1, Name: string(st)})
		}),
	)
	if err != nil {
		m.setupErr = fmt.Errorf("boot: %w", err)
		m.core.Halt("boot construction failed")
		return
	}
	seq.Run()
}

// systemInit is the first init routine: priority grouping, SysTick
// configuration, handler registration, then seal and unmask. After this
// returns the vector table is immutable and the tick service is live.
func (m *Machine) systemInit(rt *Runtime) func() {
	return func() {
		mem.NewReg32(m.space, AIRCRAddr).Store(aircrVectKey | priorityGrouping)
		m.ticks.Configure()

		if err := m.table.Register(vector.SlotSysTick, m.ticks.Handler); err != nil {
			m.setupErr = fmt.Errorf("register systick: %w", err)
			m.core.Halt("system init failed")
			return
		}
		if m.prog.Setup != nil {
			if err := m.prog.Setup(rt); err != nil {
				m.setupErr = fmt.Errorf("program setup: %w", err)
				m.core.Halt("program setup failed")
				return
			}
		}

		m.table.Seal()
		m.core.EnableInterrupts(0)
	}
}

// Result summarizes a completed run.
type Result struct {
	HaltCause string
	Ticks     uint32
	Seq       int64
}

// Run boots the machine and executes the program to completion on the
// calling goroutine. It returns once the core halts (every program ends
// in a halt: fail-stop entry return, reset request, or fault). Host-side
// failures (program setup errors and recorder write failures) come back
// as errors; firmware-visible failures are halt causes, not errors.
func (m *Machine) Run() (Result, error) {
	m.dispatchReset()

	res := Result{
		HaltCause: m.core.HaltCause(),
		Ticks:     m.ticks.Ticks(),
		Seq:       m.clock.Current(),
	}
	if m.setupErr != nil {
		return res, m.setupErr
	}
	m.recMu.Lock()
	recErr := m.recErr
	m.recMu.Unlock()
	if recErr != nil {
		return res, fmt.Errorf("trace recording: %w", recErr)
	}
	return res, nil
}

// dispatchReset enters through the vector table the way hardware does:
// slot 1, with the final halt recorded after the program ends.
func (m *Machine) dispatchReset() {
	m.dispatch(vector.SlotReset)
	if !m.core.Halted() {
		// Reset returned without the fail-stop net firing; treat it the
		// same way.
		m.core.Halt("entry point returned")
	}
	m.record(trace.Event{
		Kind:   trace.KindHalt,
		Slot:   -1,
		Name:   "halt",
		Detail: map[string]any{"cause": m.core.HaltCause()},
	})
}
