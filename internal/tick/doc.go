// Package tick provides the process-wide monotonic time base: a uint32
// counter advanced by exactly one per SysTick firing, plus the blocking
// delay operations built on it.
//
// The counter has one writer (the timer handler) and any number of
// readers; a single-word read needs no masking on this architecture
// class. Overflow wraps silently and every elapsed-time computation uses
// unsigned subtraction so a wrap during a wait cannot corrupt the
// comparison.
package tick
