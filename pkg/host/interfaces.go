// Package host defines the platform capabilities the diagnostic engine
// needs from whatever is carrying the card: a flat 32-bit bus, a coarse
// tick clock, the shared interrupt line, DMA-safe memory, and cache
// maintenance. Backends (simulator, /dev/mem window, USB probe) provide
// whichever subset they can; the Host aggregate exposes what is present.
package host

import "errors"

// ErrNoBacking is returned by allocators that cannot supply DMA-safe
// memory (for example the /dev/mem register window backend).
var ErrNoBacking = errors.New("host: no DMA-safe memory backing")

// Bus provides access to the physical address space the card decodes.
// Accesses must hit the bus exactly as issued: never cached, reordered,
// or elided. A bus fault does not surface here as an error; it shows up
// as the caller's own tick-budget timeout.
type Bus interface {
	Read8(addr uint32) uint8
	Read32(addr uint32) uint32
	Write8(addr uint32, value uint8)
	Write32(addr uint32, value uint32)
}

// IntServer is one handler on a shared interrupt line. Code runs at
// interrupt priority and must not block or allocate; it returns true to
// claim the interrupt and stop delivery to lower-priority servers.
type IntServer struct {
	Name string
	Pri  int
	Code func() bool
}

// IntLine models the host's shared interrupt line: servers can be
// enumerated, removed by reference, and reinstalled by reference. This
// is the capability the takeover manager uses to displace a production
// driver and restore it afterward.
type IntLine interface {
	Add(s *IntServer)
	Remove(s *IntServer)
	Servers() []*IntServer
}

// Allocator hands out memory the card's DMA engine can reach.
type Allocator interface {
	// Alloc returns a zeroed buffer of the given size with at least the
	// requested power-of-two alignment.
	Alloc(size, align uint32) (*Buffer, error)

	// AllocAbs claims memory at an exact address. The second result is
	// false when that address has no claimable backing; callers fall
	// back to a same-sized scratch copy of whatever lives there.
	AllocAbs(addr, size uint32) (*Buffer, bool)
}

// Cache performs explicit CPU cache maintenance around DMA so the CPU
// and the card agree on memory contents. Backends without a coherency
// problem leave Host.Cache nil.
type Cache interface {
	PreDMA(addr, size uint32, readFromRAM bool)
	PostDMA(addr, size uint32, readFromRAM bool)
}

// Board describes one expansion board found during enumeration.
type Board struct {
	Addr     uint32
	Size     uint32
	ShutUp   bool
	ConfigMe bool
	BoundTo  string
}

// Enumerator lists installed boards matching the card's manufacturer
// and product IDs, in configuration order.
type Enumerator interface {
	Boards() []Board
}

// Host aggregates the capabilities of one backend. Bus and Clock are
// mandatory; the rest may be nil when the backend cannot provide them.
type Host struct {
	Bus    Bus
	Clock  Clock
	Ints   IntLine
	Mem    Allocator
	Cache  Cache
	Boards Enumerator
}

// CanDMA reports whether this backend can run DMA tests: it needs both
// DMA-safe memory and interrupt delivery.
func (h *Host) CanDMA() bool {
	return h.Mem != nil && h.Ints != nil
}

// CachePreDMA flushes addr..addr+size ahead of a DMA transfer. No-op
// when the backend has no cache coherency concern.
func (h *Host) CachePreDMA(addr, size uint32, readFromRAM bool) {
	if h.Cache != nil {
		h.Cache.PreDMA(addr, size, readFromRAM)
	}
}

// CachePostDMA completes cache maintenance after a DMA transfer.
func (h *Host) CachePostDMA(addr, size uint32, readFromRAM bool) {
	if h.Cache != nil {
		h.Cache.PostDMA(addr, size, readFromRAM)
	}
}
