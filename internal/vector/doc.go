// Package vector implements the exception/interrupt dispatch table.
//
// On hardware the vector table is a link-time array of handler addresses
// and unimplemented handlers resolve to the default handler through weak
// symbol aliasing. Here the same contract is data-driven: a fixed table
// pre-bound to the default handler in every usable slot, with explicit
// registration replacing the weak-override convention. Registration is
// sealed once interrupts are unmasked, matching "immutable after link
// time".
//
// Position encodes identity: slot 0 is the initial stack pointer, slot 1
// the reset entry, slots 2..15 the core exceptions, slots 16..55 the
// peripheral lines. Reserved positions stay explicit null markers.
package vector
