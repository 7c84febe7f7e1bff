package host_test

import (
	"testing"

	"github.com/LIV2/a4091-software/pkg/host"
)

type stepClock struct {
	now host.Ticks
}

func (c *stepClock) Now() host.Ticks    { return c.now }
func (c *stepClock) Sleep(d host.Ticks) { c.now += d }

func TestElapsed(t *testing.T) {
	c := &stepClock{now: 100}

	start := c.Now()
	c.Sleep(7)
	d, ok := host.Elapsed(c, start)
	if !ok || d != 7 {
		t.Fatalf("Elapsed = %d, %v, want 7, true", d, ok)
	}

	// A clock that stepped backward reports a non-measurement, never
	// a negative or huge elapsed value.
	c.now = start - 1
	d, ok = host.Elapsed(c, start)
	if ok || d != 0 {
		t.Fatalf("Elapsed after backward step = %d, %v, want 0, false", d, ok)
	}
}

func TestSystemClockAdvances(t *testing.T) {
	c := host.NewSystemClock()
	start := c.Now()
	c.Sleep(1)
	d, ok := host.Elapsed(c, start)
	if !ok || d < 1 {
		t.Fatalf("Elapsed = %d, %v, want >= 1, true", d, ok)
	}
}
