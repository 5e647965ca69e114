package chunk

import (
	"errors"
	"math"
)

var ErrCounterExhausted = errors.New("chunk: send counter exhausted")

// Counter hands out strictly increasing IV counters for one session key.
type Counter struct {
	next      uint64
	exhausted bool
}

// NewCounter starts at start, or at 1 when start is zero.
func NewCounter(start uint64) *Counter {
	if start == 0 {
		start = 1
	}
	return &Counter{next: start}
}

// Next returns a fresh counter value. Once math.MaxUint64 has been issued it
// fails forever instead of wrapping.
func (c *Counter) Next() (uint64, error) {
	if c.exhausted {
		return 0, ErrCounterExhausted
	}
	v := c.next
	if v == math.MaxUint64 {
		c.exhausted = true
	} else {
		c.next++
	}
	return v, nil
}

// Peek returns the value the next call to Next would issue.
func (c *Counter) Peek() uint64 {
	return c.next
}
