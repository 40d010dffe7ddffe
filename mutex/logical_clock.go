package mutex

import (
	"sync/atomic"

	"github.com/jathurchan/ralock/types"
)

// LogicalClock is a Lamport counter owned by a single node.
// Its value never decreases. All methods are safe for concurrent use.
type LogicalClock struct {
	value atomic.Int64
}

// NewLogicalClock returns a clock starting at 0.
func NewLogicalClock() *LogicalClock {
	return &LogicalClock{}
}

// Now returns the current value without advancing it.
func (c *LogicalClock) Now() types.Timestamp {
	return types.Timestamp(c.value.Load())
}

// Tick advances the clock for a local event and returns the new value.
func (c *LogicalClock) Tick() types.Timestamp {
	return types.Timestamp(c.value.Add(1))
}

// Observe merges a timestamp carried by an inbound message:
// the clock becomes max(local, remote) + 1. Negative remote values count as 0.
func (c *LogicalClock) Observe(remote types.Timestamp) types.Timestamp {
	r := max(int64(remote), 0)
	for {
		cur := c.value.Load()
		next := max(cur, r) + 1
		if c.value.CompareAndSwap(cur, next) {
			return types.Timestamp(next)
		}
	}
}
