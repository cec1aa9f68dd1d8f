package machine

import "sync/atomic"

// Clock is the monotonic logical clock that stamps trace events.
//
// Every event carries a strictly increasing seq from this clock, so event
// order is explicit and replay comparison never depends on wall time.
// Safe for concurrent use, though the machine's synchronous dispatch
// means a single goroutine typically calls Next.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0; the first Next returns 1.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next sequence number and advances the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without advancing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
