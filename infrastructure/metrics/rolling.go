package metrics

import (
	"sync"
	"time"
)

// RollingCounter counts values accumulated within a trailing time span (for
// example, trans-data frames emitted in the last 5 seconds), by splitting
// the span into a fixed number of bins and retiring the oldest bin as time
// advances.
type RollingCounter struct {
	mu       sync.Mutex
	val      uint64
	headTime time.Time
	res      time.Duration
	head     int
	n        int
	counts   []uint64
}

// NewRollingCounter creates a rolling counter over the given span. The bin
// count scales with the span the same way the original implementation
// does, trading resolution for memory on long spans.
func NewRollingCounter(span time.Duration) *RollingCounter {
	n := 4
	switch {
	case span <= 6*time.Second:
		n = 4
	case span <= 32*time.Second:
		n = 8
	case span <= 64*time.Second:
		n = 16
	default:
		n = 32
	}

	return &RollingCounter{
		res:    span / time.Duration(n),
		n:      n,
		counts: make([]uint64, n),
	}
}

// Inc advances the counter to ts (which must be monotonically
// non-decreasing across calls) and adds dt to the current bin, retiring
// any bins whose window has fully elapsed. It returns the counter's total
// value after the increment.
func (c *RollingCounter) Inc(ts time.Time, dt uint64) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.headTime.IsZero() {
		c.headTime = ts
	}

	steps := int64(ts.Sub(c.headTime) / c.res)
	for i := int64(0); i < steps && i < int64(c.n); i++ {
		c.head = (c.head + 1) % c.n
		c.val -= c.counts[c.head]
		c.counts[c.head] = 0
	}

	c.val += dt
	c.counts[c.head] += dt
	if steps > 0 {
		c.headTime = c.headTime.Add(time.Duration(steps) * c.res)
	}
	return c.val
}

// Value returns the counter's current total. It may be stale if Inc has
// not been called recently enough to retire elapsed bins.
func (c *RollingCounter) Value() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.val
}
