package helio

import "time"

// loopClock caches a monotonic timestamp that the loop refreshes once per
// phase that observes time, instead of per call site. The anchor is taken
// when MainLoop enters; offsets from it use the runtime monotonic clock and
// are immune to wall-clock adjustment.
type loopClock struct {
	anchor time.Time
	nowNs  int64
}

func (c *loopClock) init() {
	c.anchor = time.Now()
	c.nowNs = 0
}

// update refreshes and returns the cached monotonic time in nanoseconds.
func (c *loopClock) update() int64 {
	c.nowNs = int64(time.Since(c.anchor))
	return c.nowNs
}
