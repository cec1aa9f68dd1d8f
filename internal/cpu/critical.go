package cpu

// Section is a scoped critical section over the global interrupt mask.
//
// Enter captures the current PRIMASK state and masks; Leave restores the
// captured state rather than unconditionally unmasking, so nested sections
// compose: an inner Leave never re-enables interrupts an outer section is
// still suppressing. Sections must leave in LIFO order.
//
// The usual shape:
//
//	cs := core.Enter()
//	defer cs.Leave()
//
// Leave on an already-left section is a no-op, so defer is safe alongside
// an early explicit Leave.
type Section struct {
	core  *Core
	prior uint32
	left  bool
}

// Enter opens a critical section: captures the interrupt-enable state,
// then masks. Never blocks and never fails.
func (c *Core) Enter() *Section {
	return &Section{core: c, prior: c.DisableInterrupts()}
}

// Leave closes the section, restoring the exact state Enter captured.
func (s *Section) Leave() {
	if s.left {
		return
	}
	s.left = true
	s.core.EnableInterrupts(s.prior)
}

// Critical runs fn inside a critical section, releasing it on every exit
// path including panic unwinds.
func (c *Core) Critical(fn func()) {
	cs := c.Enter()
	defer cs.Leave()
	fn()
}
