// Package power transitions the core into its wait states. Both
// operations block the calling context until an interrupt (or, in tests,
// an injected wakeup) arrives; neither can fail, only be delayed.
package power

import (
	"github.com/roach88/ferrite/internal/cpu"
	"github.com/roach88/ferrite/internal/mem"
)

// SCR is the System Control Register address (SCS block).
const SCRAddr uint32 = 0xE000_ED10

// SCRSleepDeep selects the deeper power domain for the next wait.
const SCRSleepDeep uint32 = 1 << 2

// Controller issues wait-for-interrupt requests and manages the
// deep-sleep control bit.
type Controller struct {
	core *cpu.Core
	scr  mem.Reg32
}

// NewController creates the power controller for core, with SCR on bus.
func NewController(core *cpu.Core, bus mem.Bus) *Controller {
	return &Controller{core: core, scr: mem.NewReg32(bus, SCRAddr)}
}

// Sleep enters the light wait state: the caller blocks until any enabled
// interrupt occurs, then resumes. No side effects beyond the wait.
func (p *Controller) Sleep() {
	p.core.WaitForInterrupt()
}

// DeepSleep enters the deep wait state. The SLEEPDEEP bit is set before
// the wait with a data-sync barrier between, so the selection takes
// effect before the core suspends, and is always cleared on the return
// path, including early or spurious wakeups, so a later Sleep does not
// inherit the deeper state.
func (p *Controller) DeepSleep() {
	p.scr.SetBits(SCRSleepDeep)
	defer p.scr.ClearBits(SCRSleepDeep)

	p.core.DataSyncBarrier()
	p.core.WaitForInterrupt()
}

// SleepDeepSet reports the current SLEEPDEEP state. Test introspection.
func (p *Controller) SleepDeepSet() bool {
	return p.scr.HasBits(SCRSleepDeep)
}
