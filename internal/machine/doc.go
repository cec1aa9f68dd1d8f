// Package machine assembles the firmware core (address space, processor
// core, vector table, tick service, power controller, boot sequencer)
// into one runnable simulated target.
//
// ARCHITECTURE:
//
// The machine is deterministic by construction. Mainline firmware runs on
// the goroutine that calls Run; interrupts are delivered synchronously at
// well-defined points (raises from the tick pump or an injection
// schedule), and every observable action is stamped by a monotonic
// sequence clock and handed to the recorder. Two runs of the same program
// against the same schedule produce identical event logs, which is what
// makes golden-trace testing and replay divergence checks possible.
//
// The Program/Runtime pair is the consumer boundary: a program registers
// its handlers before interrupts are unmasked and then drives the public
// services (ticks, delays, critical sections, power states) exactly the
// way driver code on the target would.
package machine
