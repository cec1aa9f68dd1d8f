package cpu

import "sync"

// Exceptions 1..3 (reset, NMI, hard fault) have fixed negative priority on
// this architecture class; PRIMASK does not mask them.
const lastUnmaskable = 3

// Core holds the simulated processor state shared by every other package:
// interrupt mask, pending exceptions, wait-for-interrupt, halt.
//
// All methods are safe to call from any goroutine. Handlers dispatched by
// Raise run on the raising goroutine.
type Core struct {
	mu   sync.Mutex
	wake *sync.Cond

	primask uint32 // 1 = interrupts masked
	pending []int  // pended exception numbers, deduplicated
	active  int    // depth of handlers currently executing

	dispatch func(exc int)
	idle     func()

	halted    bool
	haltCause string

	wakes uint64 // generation counter observed by WaitForInterrupt
}

// New creates a core with interrupts masked, matching the post-reset state:
// nothing is delivered until the boot path unmasks.
func New() *Core {
	c := &Core{primask: 1}
	c.wake = sync.NewCond(&c.mu)
	return c
}

// SetDispatch installs the vector-dispatch function. Must be set before
// the first Raise; exceptions raised with no dispatch installed are
// dropped.
func (c *Core) SetDispatch(fn func(exc int)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dispatch = fn
}

// Raise delivers exception exc to the core.
//
// If the core is unmasked and idle, the handler runs synchronously before
// Raise returns. If masked, or if a handler is already running, exc is
// pended and delivered when the mask releases. NMI and hard fault ignore
// PRIMASK. A raise always wakes a core blocked in WaitForInterrupt, even
// when delivery stays pended (wake-on-pend).
//
// After Halt, Raise is a no-op.
func (c *Core) Raise(exc int) {
	c.mu.Lock()
	if c.halted {
		c.mu.Unlock()
		return
	}
	c.wakes++
	c.wake.Broadcast()

	maskable := exc > lastUnmaskable
	if (c.primask == 1 && maskable) || c.active > 0 {
		c.pendLocked(exc)
		c.mu.Unlock()
		return
	}
	c.runLocked(exc)
	c.drainLocked()
	c.mu.Unlock()
}

// pendLocked records exc as pending. A pend bit is a single bit in
// hardware: re-raising an already-pended exception collapses.
func (c *Core) pendLocked(exc int) {
	for _, p := range c.pending {
		if p == exc {
			return
		}
	}
	c.pending = append(c.pending, exc)
}

// runLocked executes the handler for exc with the lock dropped.
func (c *Core) runLocked(exc int) {
	fn := c.dispatch
	if fn == nil {
		return
	}
	c.active++
	c.mu.Unlock()
	fn(exc)
	c.mu.Lock()
	c.active--
}

// drainLocked delivers pended exceptions while the core is unmasked and
// idle. Lowest exception number first: faults before peripheral lines.
func (c *Core) drainLocked() {
	for c.primask == 0 && !c.halted && c.active == 0 && len(c.pending) > 0 {
		best := 0
		for i, p := range c.pending {
			if p < c.pending[best] {
				best = i
			}
		}
		exc := c.pending[best]
		c.pending = append(c.pending[:best], c.pending[best+1:]...)
		c.runLocked(exc)
	}
}

// DisableInterrupts sets PRIMASK and returns its prior value, mirroring
// the mrs/cpsid pair. The return value is what a later EnableInterrupts
// must be given to restore the outer state.
func (c *Core) DisableInterrupts() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	prior := c.primask
	c.primask = 1
	return prior
}

// EnableInterrupts restores PRIMASK to prior (msr primask). Restoring to
// the unmasked state delivers anything pended while masked.
func (c *Core) EnableInterrupts(prior uint32) {
	c.mu.Lock()
	c.primask = prior & 1
	c.drainLocked()
	c.mu.Unlock()
}

// InterruptState returns the current PRIMASK value (1 = masked).
func (c *Core) InterruptState() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.primask
}

// PendingCount reports the number of pended exceptions. Introspection for
// tests and trace output.
func (c *Core) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// SetIdle installs a hook invoked repeatedly while the core is parked in
// WaitForInterrupt with nothing pended. The machine points it at its time
// pump so a sleeping core still receives the tick interrupts running
// hardware would deliver. Without a hook the wait blocks until another
// goroutine raises, wakes, or halts.
func (c *Core) SetIdle(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.idle = fn
}

// WaitForInterrupt blocks the calling goroutine until an exception is
// raised, a test wake arrives, or the core halts (wfi). Returns
// immediately if something is already pended. With an idle hook installed
// the wait drives the hook instead of parking, so time sources on the
// same goroutine keep running.
func (c *Core) WaitForInterrupt() {
	c.mu.Lock()
	if c.halted || len(c.pending) > 0 {
		c.mu.Unlock()
		return
	}
	gen := c.wakes
	idle := c.idle
	for c.wakes == gen && !c.halted {
		if idle == nil {
			c.wake.Wait()
			continue
		}
		c.mu.Unlock()
		idle()
		c.mu.Lock()
	}
	c.mu.Unlock()
}

// Wake signals a waiting core without raising an exception. Simulates a
// spurious wait-for-interrupt return; exists so fault-injected tests can
// force DeepSleep's return path.
func (c *Core) Wake() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.wakes++
	c.wake.Broadcast()
}

// Halt moves the core to its terminal state. Further raises and waits are
// no-ops; there is no automatic reset. cause is recorded for diagnosis.
func (c *Core) Halt(cause string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.halted {
		return
	}
	c.halted = true
	c.haltCause = cause
	c.wakes++
	c.wake.Broadcast()
}

// Halted reports whether the core has reached the terminal state.
func (c *Core) Halted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.halted
}

// HaltCause returns the cause recorded by Halt, or "".
func (c *Core) HaltCause() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.haltCause
}

// DataSyncBarrier orders memory effects before subsequent instructions
// (dsb). The simulated bus is sequentially consistent under its lock, so
// this is an ordering point in name only; callers keep the instruction
// where the hardware sequence requires it.
func (c *Core) DataSyncBarrier() {}

// InstrSyncBarrier flushes the simulated pipeline (isb).
func (c *Core) InstrSyncBarrier() {}
