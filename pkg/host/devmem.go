//go:build linux

package host

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// DevMem maps a card's address window from /dev/mem and exposes it as a
// Bus. It carries no interrupt or DMA-allocation capability, so only
// register inspection and the register-level tests can run against it.
// Accesses outside the mapped window behave like open bus: reads return
// all-ones, writes are dropped.
type DevMem struct {
	base uint32
	mem  []byte
	fd   int
}

// MapDevMem maps size bytes of physical address space starting at base.
func MapDevMem(base, size uint32) (*DevMem, error) {
	fd, err := unix.Open("/dev/mem", unix.O_RDWR|unix.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("host: open /dev/mem: %w", err)
	}
	mem, err := unix.Mmap(fd, int64(base), int(size),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("host: mmap %08x+%x: %w", base, size, err)
	}
	return &DevMem{base: base, mem: mem, fd: fd}, nil
}

// Close unmaps the window.
func (d *DevMem) Close() error {
	if d.mem == nil {
		return nil
	}
	err := unix.Munmap(d.mem)
	unix.Close(d.fd)
	d.mem = nil
	return err
}

// Host wraps the mapping in a Host aggregate with a system clock. Mem,
// Ints, Cache, and Boards stay nil: this backend cannot own the card.
func (d *DevMem) Host() *Host {
	return &Host{Bus: d, Clock: NewSystemClock()}
}

func (d *DevMem) in(addr uint32, width uint32) bool {
	off := addr - d.base
	return addr >= d.base && off+width <= uint32(len(d.mem))
}

func (d *DevMem) Read8(addr uint32) uint8 {
	if !d.in(addr, 1) {
		return 0xff
	}
	return d.mem[addr-d.base]
}

func (d *DevMem) Read32(addr uint32) uint32 {
	if !d.in(addr, 4) {
		return 0xffffffff
	}
	return atomic.LoadUint32((*uint32)(unsafe.Pointer(&d.mem[addr-d.base])))
}

func (d *DevMem) Write8(addr uint32, value uint8) {
	if !d.in(addr, 1) {
		return
	}
	d.mem[addr-d.base] = value
}

func (d *DevMem) Write32(addr uint32, value uint32) {
	if !d.in(addr, 4) {
		return
	}
	atomic.StoreUint32((*uint32)(unsafe.Pointer(&d.mem[addr-d.base])), value)
}
