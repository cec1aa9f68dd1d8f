// Package trace records what a simulated machine did: boot steps,
// exception dispatches, injected interrupts, power transitions, halts.
//
// The firmware core itself persists nothing; recording is host-side
// observability. Events are stamped with a sequence number from the
// machine's logical clock and serialized as canonical JSON, so two runs
// of the same scenario produce byte-identical logs and replay can detect
// divergence. Storage is SQLite, one writer, WAL mode.
package trace
