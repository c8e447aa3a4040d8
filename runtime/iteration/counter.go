package iteration

import "sync/atomic"

// Counter hands out each value in [start, final] exactly once, including
// under concurrent use. The counter never steps past final, so a range
// ending at math.MaxInt64 does not wrap.
type Counter struct {
	next      atomic.Int64
	final     int64
	exhausted atomic.Bool
}

// NewCounter creates a counter over the inclusive range.
func NewCounter(start, final int64) *Counter {
	ret := &Counter{final: final}
	ret.next.Store(start)
	return ret
}

// Next returns the next unused value, false once the range is exhausted.
func (c *Counter) Next() (int64, bool) {
	for {
		if c.exhausted.Load() {
			return 0, false
		}
		value := c.next.Load()
		if value > c.final {
			return 0, false
		}
		if value == c.final {
			if c.exhausted.CompareAndSwap(false, true) {
				return value, true
			}
			return 0, false
		}
		if c.next.CompareAndSwap(value, value+1) {
			return value, true
		}
	}
}
