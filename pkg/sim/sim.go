// Package sim is an in-memory A4091: the 53C710 register file, its DMA
// and SCSI FIFOs, the SCRIPTS processor, sparse fast RAM, an interrupt
// line, and a deterministic clock. It exists so every diagnostic can be
// exercised without hardware, and it carries fault-injection knobs so
// the failure paths can be exercised too.
//
// A Sim is not safe for concurrent bus access; the diagnostic engine is
// single-threaded and interrupt delivery happens synchronously on the
// goroutine that triggered it.
package sim

import (
	"github.com/LIV2/a4091-software/pkg/host"
	"github.com/LIV2/a4091-software/pkg/ncr"
)

// Sim simulates one Amiga with one A4091 installed. Fault-injection
// fields may be set at any time between bus accesses.
type Sim struct {
	BoardAddr uint32
	RAMBase   uint32
	RAMSize   uint32

	// Switches is the rear DIP switch byte.
	Switches uint8

	// RegStuckLow and RegStuckHigh force host data bus bits low or high
	// on readback of the 32-bit general-purpose registers.
	RegStuckLow  uint32
	RegStuckHigh uint32

	// BridgeBit1 and BridgeBit2 model floating or bridged address
	// lines: DMA writes land at the destination with these bits
	// flipped. -1 disables.
	BridgeBit1 int
	BridgeBit2 int

	// HangScripts makes the SCRIPTS processor never complete, for
	// timeout-path testing.
	HangScripts bool

	// NoInterrupts disconnects the interrupt line so completion can
	// only be observed by polling.
	NoInterrupts bool

	// SCSI pin faults.
	NoTermPower       bool
	SCSIDataStuckLow  uint8
	SCSIDataStuckHigh uint8
	SCSICtrlStuckLow  uint8
	SCSICtrlStuckHigh uint8
	SCSIParityBad     bool
	BusStuckReset     bool
	ResetBroken       bool

	Clock    *Clock
	Line     *Line
	DMACache *Cache

	mem    *ram
	alloc  *allocator
	chip   chip
	config [0x80]uint8
}

// New returns a healthy simulated machine.
func New() *Sim {
	s := &Sim{
		BoardAddr:  0x40000000,
		RAMBase:    0x07000000,
		RAMSize:    16 << 20,
		Switches:   0xc7,
		BridgeBit1: -1,
		BridgeBit2: -1,
		Clock:      newClock(),
		Line:       newLine(),
		DMACache:   &Cache{},
		mem:        newRAM(),
	}
	s.alloc = newAllocator(s, s.RAMBase, s.RAMSize)
	s.chip.reset()

	// Autoconfig header: ZorroIII I/O board, product 0x54, Commodore.
	s.config[0x00] = 0x6f
	s.config[0x04] = 0x54
	s.config[0x08] = 0x30
	s.config[0x0c] = 0x00
	s.config[0x10] = 0x02
	s.config[0x14] = 0x02
	s.config[0x18] = 0x00
	s.config[0x1c] = 0x00
	s.config[0x20] = 0x04
	s.config[0x24] = 0x91
	s.config[0x28] = 0x20
	s.config[0x2c] = 0x00
	return s
}

// SetConfigByte overrides one logical autoconfig register so the
// device-access diagnostics can see a corrupted header.
func (s *Sim) SetConfigByte(reg uint32, v uint8) {
	s.config[reg] = v
}

// Host exposes the full capability set of the simulated machine.
func (s *Sim) Host() *host.Host {
	return &host.Host{
		Bus:    s,
		Clock:  s.Clock,
		Ints:   s.Line,
		Mem:    s.alloc,
		Cache:  s.DMACache,
		Boards: enumerator{s},
	}
}

// InstallDriver adds a production-driver interrupt server to the line,
// so takeover and restore paths have something to displace. The server
// claims every interrupt it sees.
func (s *Sim) InstallDriver() *host.IntServer {
	isr := &host.IntServer{Name: "NCR SCSI", Pri: 20, Code: func() bool { return true }}
	s.Line.Add(isr)
	return isr
}

func (s *Sim) regIndex(addr uint32) (uint32, bool) {
	regBase := s.BoardAddr + ncr.OffsetRegisters
	if addr < regBase || addr >= regBase+2*ncr.RegWindowSize {
		return 0, false
	}
	reg := addr - regBase
	if reg >= ncr.RegWindowSize {
		// Shadow write alias folds onto the live register.
		reg -= ncr.RegWindowSize
	}
	return reg, true
}

func (s *Sim) configRead(off uint32) uint8 {
	switch {
	case off < uint32(len(s.config)):
		return ^s.config[off]
	case off >= 0x100 && off-0x100 < uint32(len(s.config)):
		return ^(s.config[off-0x100] << 4)
	default:
		return 0xff
	}
}

func (s *Sim) Read8(addr uint32) uint8 {
	if reg, ok := s.regIndex(addr); ok {
		return s.chipRead8(reg)
	}
	switch {
	case addr >= s.BoardAddr && addr < s.BoardAddr+0x200:
		return s.configRead(addr - s.BoardAddr)
	case addr == s.BoardAddr+ncr.OffsetSwitches:
		return s.Switches
	default:
		return s.mem.read8(addr)
	}
}

func (s *Sim) Write8(addr uint32, value uint8) {
	if reg, ok := s.regIndex(addr); ok {
		s.chipWrite8(reg, value)
		return
	}
	if addr >= s.BoardAddr && addr < s.BoardAddr+0x200 {
		return // autoconfig writes not modeled
	}
	s.mem.write8(addr, value)
}

func (s *Sim) Read32(addr uint32) uint32 {
	var v uint32
	for i := uint32(0); i < 4; i++ {
		v = v<<8 | uint32(s.Read8(addr+i))
	}
	return v
}

func (s *Sim) Write32(addr uint32, value uint32) {
	if reg, ok := s.regIndex(addr); ok && reg == ncr.RegDSP {
		s.chipWrite8(reg, uint8(value>>24))
		s.chipWrite8(reg+1, uint8(value>>16))
		s.chipWrite8(reg+2, uint8(value>>8))
		s.chipWrite8(reg+3, uint8(value))
		s.runScript(value)
		return
	}
	for i := uint32(0); i < 4; i++ {
		s.Write8(addr+i, uint8(value>>(8*(3-i))))
	}
}
