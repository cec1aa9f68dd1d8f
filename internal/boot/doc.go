// Package boot implements the reset handler: the one-shot sequence that
// turns undefined post-reset memory into the defined image the rest of
// the firmware assumes, then hands off to the application entry point.
//
// Order is the whole contract: initialized data is copied and the
// zero-init region cleared before any initialization routine or the entry
// point runs, because those are the first pieces of code allowed to read
// global state. If the entry point ever returns the sequencer halts the
// core: a fail-stop safety net, not a normal path.
package boot
