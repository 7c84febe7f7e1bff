package host

import "time"

// Ticks counts coarse timer ticks. The resolution matches the Amiga
// system timer the original card ran under: 50 ticks per second.
type Ticks int64

// TicksPerSecond is the tick clock rate.
const TicksPerSecond = 50

// Clock is the monotonic coarse timer every polling loop measures its
// budget against. Monotonicity can break across a platform date
// rollover; Elapsed is defensive about that.
type Clock interface {
	Now() Ticks
	Sleep(d Ticks)
}

// Elapsed returns the ticks elapsed since start. ok is false when the
// clock stepped backward, which callers must treat as an anomalous
// non-measurement rather than as elapsed time.
func Elapsed(c Clock, start Ticks) (d Ticks, ok bool) {
	now := c.Now()
	if now < start {
		return 0, false
	}
	return now - start, true
}

type systemClock struct {
	epoch time.Time
}

// NewSystemClock returns a Clock backed by the process monotonic clock,
// scaled to Ticks.
func NewSystemClock() Clock {
	return &systemClock{epoch: time.Now()}
}

func (c *systemClock) Now() Ticks {
	return Ticks(time.Since(c.epoch) * TicksPerSecond / time.Second)
}

func (c *systemClock) Sleep(d Ticks) {
	time.Sleep(time.Duration(d) * time.Second / TicksPerSecond)
}
