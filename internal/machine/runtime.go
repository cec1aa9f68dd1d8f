package machine

import (
	"github.com/roach88/ferrite/internal/cpu"
	"github.com/roach88/ferrite/internal/mem"
	"github.com/roach88/ferrite/internal/trace"
	"github.com/roach88/ferrite/internal/vector"
)

// Runtime is the surface a program sees: the services driver code on the
// target would reach through its HAL. The machine hands one to Setup and
// Main; programs hold no other reference into the machine.
type Runtime struct {
	m *Machine
}

// Bus returns the address space for register access.
func (rt *Runtime) Bus() mem.Bus { return rt.m.space }

// Ticks returns the tick counter.
func (rt *Runtime) Ticks() uint32 { return rt.m.ticks.Ticks() }

// DelayMillis blocks for at least ms ticks. Time advances through the
// machine's pump, so scheduled injections fire during the wait.
func (rt *Runtime) DelayMillis(ms uint32) { rt.m.ticks.DelayMillis(ms) }

// DelayMicros busy-waits for approximately us microseconds.
func (rt *Runtime) DelayMicros(us uint32) { rt.m.ticks.DelayMicros(us) }

// EnterCritical opens a critical section; the caller must Leave it.
func (rt *Runtime) EnterCritical() *cpu.Section { return rt.m.core.Enter() }

// Critical runs fn with interrupts masked, restoring the prior state even
// if fn panics.
func (rt *Runtime) Critical(fn func()) { rt.m.core.Critical(fn) }

// RegisterSlot binds a handler to a vector slot. Only valid during Setup;
// the table seals before interrupts are unmasked.
func (rt *Runtime) RegisterSlot(slot int, h vector.Handler) error {
	return rt.m.table.Register(slot, h)
}

// RegisterIRQ binds a handler to peripheral line irq.
func (rt *Runtime) RegisterIRQ(irq int, h vector.Handler) error {
	return rt.m.table.RegisterIRQ(irq, h)
}

// Sleep enters the light sleep state until the next interrupt.
func (rt *Runtime) Sleep() {
	rt.m.record(trace.Event{Kind: trace.KindPower, Slot: -1, Name: "sleep"})
	rt.m.pwr.Sleep()
	rt.m.record(trace.Event{Kind: trace.KindPower, Slot: -1, Name: "wake"})
}

// DeepSleep enters the deep sleep state until the next interrupt. The
// deep-sleep bit is set only for the duration of the wait.
func (rt *Runtime) DeepSleep() {
	rt.m.record(trace.Event{Kind: trace.KindPower, Slot: -1, Name: "deep_sleep"})
	rt.m.pwr.DeepSleep()
	rt.m.record(trace.Event{Kind: trace.KindPower, Slot: -1, Name: "wake"})
}

// UniqueID returns the device's 96-bit factory identifier.
func (rt *Runtime) UniqueID() [3]uint32 {
	var id [3]uint32
	for i := uint32(0); i < 3; i++ {
		id[i] = rt.m.space.Read32(UniqueIDAddr + 4*i)
	}
	return id
}

// RequestReset asks for a system reset through AIRCR. In simulation this
// halts the machine with the reset recorded; there is no warm restart.
func (rt *Runtime) RequestReset() {
	rt.m.core.DataSyncBarrier()
	mem.NewReg32(rt.m.space, AIRCRAddr).Store(aircrVectKey | aircrSysResetReq)
	rt.m.core.DataSyncBarrier()
}

// Halted reports whether the core has reached its terminal state. Long
// loops in Main poll this so a reset request or fault actually stops them.
func (rt *Runtime) Halted() bool { return rt.m.core.Halted() }
