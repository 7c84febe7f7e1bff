package sim

import (
	"sort"
	"sync"

	"github.com/LIV2/a4091-software/pkg/host"
)

// Clock is a deterministic tick source. Every Now advances time by a
// configurable sub-tick step so polling loops make progress without
// wall-clock sleeps; Sleep advances whole ticks.
type Clock struct {
	mu    sync.Mutex
	units int64
	// StepUnits is added per Now call; UnitsPerTick units make one tick.
	StepUnits int64
}

// UnitsPerTick is the sub-tick resolution of the simulated clock.
const UnitsPerTick = 256

func newClock() *Clock {
	return &Clock{StepUnits: 4}
}

func (c *Clock) Now() host.Ticks {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.units += c.StepUnits
	return host.Ticks(c.units / UnitsPerTick)
}

func (c *Clock) Sleep(d host.Ticks) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.units += int64(d) * UnitsPerTick
}

// Advance moves the clock forward without a caller-visible access.
func (c *Clock) Advance(d host.Ticks) {
	c.Sleep(d)
}

// Line is the simulated shared interrupt line. Servers are kept in
// priority order; delivery stops at the first server that claims the
// interrupt.
type Line struct {
	mu      sync.Mutex
	servers []*host.IntServer
}

func newLine() *Line {
	return &Line{}
}

func (l *Line) Add(s *host.IntServer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.servers = append(l.servers, s)
	sort.SliceStable(l.servers, func(i, j int) bool {
		return l.servers[i].Pri > l.servers[j].Pri
	})
}

func (l *Line) Remove(s *host.IntServer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, cur := range l.servers {
		if cur == s {
			l.servers = append(l.servers[:i], l.servers[i+1:]...)
			return
		}
	}
}

func (l *Line) Servers() []*host.IntServer {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*host.IntServer, len(l.servers))
	copy(out, l.servers)
	return out
}

// raise walks the server chain until one claims the interrupt,
// mirroring shared-line delivery semantics.
func (l *Line) raise() {
	for _, s := range l.Servers() {
		if s.Code != nil && s.Code() {
			return
		}
	}
}

// Cache records DMA cache-maintenance calls so tests can assert the
// bracketing happened. The simulated memory needs no real maintenance.
type Cache struct {
	PreCalls  int
	PostCalls int
}

func (c *Cache) PreDMA(addr, size uint32, readFromRAM bool)  { c.PreCalls++ }
func (c *Cache) PostDMA(addr, size uint32, readFromRAM bool) { c.PostCalls++ }

type enumerator struct {
	sim *Sim
}

func (e enumerator) Boards() []host.Board {
	return []host.Board{{
		Addr:    e.sim.BoardAddr,
		Size:    16 << 20,
		BoundTo: "a4091.device",
	}}
}
