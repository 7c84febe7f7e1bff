package host

// Buffer is a span of DMA-safe memory with scoped ownership: whoever
// allocated it frees it on every exit path, including early failure
// returns. CPU-side access goes through the bus so the simulator and
// real backends behave identically.
type Buffer struct {
	Addr uint32
	Size uint32

	bus  Bus
	free func()
}

// NewBuffer wraps an address range owned by an allocator. free may be
// nil for ranges that need no release.
func NewBuffer(bus Bus, addr, size uint32, free func()) *Buffer {
	return &Buffer{Addr: addr, Size: size, bus: bus, free: free}
}

// Free releases the buffer back to its allocator. Safe to call more
// than once.
func (b *Buffer) Free() {
	if b.free != nil {
		b.free()
		b.free = nil
	}
}

func (b *Buffer) Read8(off uint32) uint8 {
	return b.bus.Read8(b.Addr + off)
}

func (b *Buffer) Write8(off uint32, v uint8) {
	b.bus.Write8(b.Addr+off, v)
}

func (b *Buffer) Read32(off uint32) uint32 {
	return b.bus.Read32(b.Addr + off)
}

func (b *Buffer) Write32(off uint32, v uint32) {
	b.bus.Write32(b.Addr+off, v)
}

// Zero clears the first n bytes of the buffer.
func (b *Buffer) Zero(n uint32) {
	for off := uint32(0); off+4 <= n; off += 4 {
		b.bus.Write32(b.Addr+off, 0)
	}
}
