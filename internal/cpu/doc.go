// Package cpu models the processor core state the firmware core depends
// on: the global interrupt mask (PRIMASK), pending-exception bookkeeping,
// wait-for-interrupt, and the terminal halt state.
//
// Preemption is simulated synchronously: raising an exception on an
// unmasked core runs its handler on the raising goroutine before Raise
// returns. Raising on a masked core pends the exception; it is delivered
// when the mask is released. This keeps every test deterministic while
// preserving the masking semantics mainline/handler code relies on.
//
// Halt is deliberately terminal. Fault and default handlers halt instead
// of spinning so host tests can observe "never returns" as a flag rather
// than a hung process.
package cpu
