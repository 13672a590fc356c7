package engine

import "sync/atomic"

// Clock is the logical sequence counter. Every processed event and every
// journal entry is stamped with a strictly increasing seq, so journal order
// never depends on wall-clock time.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock that continues after start. The bot resumes
// from the journal's last seq so entries stay unique across restarts.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next increments the clock and returns the new value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last issued value.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
