package sim

import (
	"fmt"

	"github.com/LIV2/a4091-software/pkg/host"
)

const pageSize = 0x1000

// ram is a sparse page-backed memory with open-bus semantics: reads of
// unbacked addresses return all-ones, writes to unbacked addresses are
// dropped. Pages materialize when the allocator claims a range.
type ram struct {
	pages map[uint32][]byte
}

func newRAM() *ram {
	return &ram{pages: make(map[uint32][]byte)}
}

func (r *ram) page(addr uint32) []byte {
	return r.pages[addr>>12]
}

func (r *ram) back(addr, size uint32) {
	for p := addr >> 12; p <= (addr+size-1)>>12; p++ {
		if r.pages[p] == nil {
			r.pages[p] = make([]byte, pageSize)
		}
	}
}

func (r *ram) read8(addr uint32) uint8 {
	p := r.page(addr)
	if p == nil {
		return 0xff
	}
	return p[addr&(pageSize-1)]
}

func (r *ram) write8(addr uint32, v uint8) {
	p := r.page(addr)
	if p == nil {
		return
	}
	p[addr&(pageSize-1)] = v
}

// copyRun copies n bytes from src to dst, using page-sized runs where
// both sides are backed RAM. Returns the number of bytes handled; the
// caller falls back to byte-at-a-time bus access for the rest.
func (r *ram) copyRun(dst, src, n uint32) uint32 {
	var done uint32
	for done < n {
		sp := r.page(src + done)
		dp := r.page(dst + done)
		if sp == nil || dp == nil {
			return done
		}
		so := (src + done) & (pageSize - 1)
		do := (dst + done) & (pageSize - 1)
		run := n - done
		if left := pageSize - so; run > left {
			run = left
		}
		if left := pageSize - do; run > left {
			run = left
		}
		copy(dp[do:do+run], sp[so:so+run])
		done += run
	}
	return done
}

// allocator hands out simulated fast RAM. AllocAbs succeeds only for
// ranges inside the RAM region that no live allocation overlaps, which
// gives the bit-flip shadow logic both of its outcomes.
type allocator struct {
	sim  *Sim
	base uint32
	end  uint32
	next uint32

	claimed map[uint32]uint32 // start -> size of live allocations
}

func newAllocator(s *Sim, base, size uint32) *allocator {
	return &allocator{
		sim:     s,
		base:    base,
		end:     base + size,
		next:    base,
		claimed: make(map[uint32]uint32),
	}
}

func (a *allocator) overlaps(addr, size uint32) bool {
	for start, sz := range a.claimed {
		if addr < start+sz && start < addr+size {
			return true
		}
	}
	return false
}

func (a *allocator) claim(addr, size uint32) *host.Buffer {
	a.claimed[addr] = size
	a.sim.mem.back(addr, size)
	for off := uint32(0); off < size; off++ {
		a.sim.mem.write8(addr+off, 0)
	}
	return host.NewBuffer(a.sim, addr, size, func() {
		delete(a.claimed, addr)
	})
}

func (a *allocator) Alloc(size, align uint32) (*host.Buffer, error) {
	if align == 0 {
		align = 4
	}
	addr := (a.next + align - 1) &^ (align - 1)
	for a.overlaps(addr, size) {
		addr += align
	}
	if addr+size > a.end {
		return nil, fmt.Errorf("sim: out of RAM allocating %d bytes: %w",
			size, host.ErrNoBacking)
	}
	if addr+size > a.next {
		a.next = addr + size
	}
	return a.claim(addr, size), nil
}

func (a *allocator) AllocAbs(addr, size uint32) (*host.Buffer, bool) {
	if addr < a.base || addr+size > a.end || addr+size < addr {
		return nil, false
	}
	if a.overlaps(addr, size) {
		return nil, false
	}
	return a.claim(addr, size), true
}
