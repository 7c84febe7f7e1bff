package sim

import (
	"math/bits"

	"github.com/LIV2/a4091-software/pkg/ncr"
)

// chip holds the 53C710 register file and FIFO state. Status causes are
// kept separately from the stored register bytes because reading DSTAT
// or SSTAT0 clears them, which is most of what makes the completion
// race in the script engine real.
type chip struct {
	regs [ncr.RegWindowSize]uint8

	istatCtl    uint8 // stored RST/ABRT control bits
	dstatCause  uint8
	sstat0Cause uint8
	dmaPending  bool
	scsiPending bool

	dmaFIFO   [ncr.FIFOLanes][]uint16 // 9-bit entries: data plus parity
	scsiFIFO  [ncr.FIFOLanes][]uint8
	ctest2Par bool
}

// reservedMasks zeroes bits documented as reserved so they read back as
// the register-access test expects.
var reservedMasks = map[uint32]uint8{
	ncr.RegSCNTL1: ^uint8(0x03),
	ncr.RegCTEST0: ^uint8(0x82),
	ncr.RegCTEST2: ^uint8(0x80),
	ncr.RegDIEN:   ^uint8(0xc0),
}

func (c *chip) reset() {
	c.regs = [ncr.RegWindowSize]uint8{}
	c.dstatCause = 0
	c.sstat0Cause = 0
	c.dmaPending = false
	c.scsiPending = false
	c.ctest2Par = false
	for lane := range c.dmaFIFO {
		c.dmaFIFO[lane] = nil
		c.scsiFIFO[lane] = nil
	}
}

func (c *chip) lane(ctest4 uint8) int {
	return int(ctest4 & ncr.CTEST4_FBLMask)
}

func (c *chip) fifosEmpty() bool {
	for lane := range c.dmaFIFO {
		if len(c.dmaFIFO[lane]) != 0 || len(c.scsiFIFO[lane]) != 0 {
			return false
		}
	}
	return true
}

func evenParity(b uint8) uint8 {
	if bits.OnesCount8(b)%2 == 0 {
		return 1
	}
	return 0
}

func (s *Sim) chipRead8(reg uint32) uint8 {
	c := &s.chip
	switch reg {
	case ncr.RegISTAT:
		v := c.istatCtl
		if c.dmaPending {
			v |= ncr.ISTAT_DIP
		}
		if c.scsiPending {
			v |= ncr.ISTAT_SIP
		}
		return v

	case ncr.RegDSTAT:
		v := c.dstatCause
		if c.fifosEmpty() {
			v |= ncr.DSTAT_DFE
		}
		c.dstatCause = 0
		c.dmaPending = false
		return v

	case ncr.RegSSTAT0:
		v := c.sstat0Cause
		c.sstat0Cause = 0
		c.scsiPending = false
		return v

	case ncr.RegSSTAT1:
		var v uint8
		if s.scsiDriving() {
			par := evenParity(c.regs[ncr.RegSODL])
			if s.SCSIParityBad {
				par ^= 1
			}
			v |= par * ncr.SSTAT1_PAR
		}
		if (c.regs[ncr.RegSCNTL1]&ncr.SCNTL1_RST != 0 && !s.ResetBroken) ||
			s.BusStuckReset {
			v |= ncr.SSTAT1_RST
		}
		return v

	case ncr.RegCTEST1:
		var v uint8
		for lane := 0; lane < ncr.FIFOLanes; lane++ {
			if len(c.dmaFIFO[lane]) == 0 && len(c.scsiFIFO[lane]) == 0 {
				v |= 1 << (4 + lane)
			}
			if len(c.dmaFIFO[lane]) >= ncr.FIFOSize ||
				len(c.scsiFIFO[lane]) >= ncr.FIFOSize {
				v |= 1 << lane
			}
		}
		return v

	case ncr.RegCTEST2:
		v := c.regs[ncr.RegCTEST2] & reservedMasks[ncr.RegCTEST2]
		if c.ctest2Par {
			v |= 1 << 3
		}
		return v

	case ncr.RegCTEST3:
		lane := c.lane(c.regs[ncr.RegCTEST4])
		if len(c.scsiFIFO[lane]) == 0 {
			return 0
		}
		v := c.scsiFIFO[lane][0]
		c.scsiFIFO[lane] = c.scsiFIFO[lane][1:]
		return v

	case ncr.RegCTEST6:
		lane := c.lane(c.regs[ncr.RegCTEST4])
		if len(c.dmaFIFO[lane]) == 0 {
			return 0
		}
		entry := c.dmaFIFO[lane][0]
		c.dmaFIFO[lane] = c.dmaFIFO[lane][1:]
		c.ctest2Par = entry&0x100 != 0
		return uint8(entry)

	case ncr.RegSBDL:
		if s.NoTermPower {
			return 0xff
		}
		if s.scsiDriving() {
			return c.regs[ncr.RegSODL]&^s.SCSIDataStuckLow | s.SCSIDataStuckHigh
		}
		return 0

	case ncr.RegSBCL:
		if s.NoTermPower {
			return 0xff
		}
		if s.scsiLowLevel() {
			return c.regs[ncr.RegSOCL]&^s.SCSICtrlStuckLow | s.SCSICtrlStuckHigh
		}
		return 0

	default:
		v := c.regs[reg]
		if reg >= ncr.RegSCRATCH && reg < ncr.RegSCRATCH+4 {
			v = s.stuckByte(v, reg-ncr.RegSCRATCH)
		}
		if reg >= ncr.RegTEMP && reg < ncr.RegTEMP+4 {
			v = s.stuckByte(v, reg-ncr.RegTEMP)
		}
		if mask, ok := reservedMasks[reg]; ok {
			v &= mask
		}
		return v
	}
}

// stuckByte applies the stuck data-bus masks to one byte of a 32-bit
// register; byteOff 0 is the most-significant byte on this bus.
func (s *Sim) stuckByte(v uint8, byteOff uint32) uint8 {
	shift := 8 * (3 - byteOff)
	return v&^uint8(s.RegStuckLow>>shift) | uint8(s.RegStuckHigh>>shift)
}

func (s *Sim) scsiDriving() bool {
	c := &s.chip
	return c.regs[ncr.RegSCNTL1]&ncr.SCNTL1_ADB != 0 &&
		c.regs[ncr.RegCTEST4]&ncr.CTEST4_SLBE != 0
}

func (s *Sim) scsiLowLevel() bool {
	c := &s.chip
	return c.regs[ncr.RegDCNTL]&ncr.DCNTL_LLM != 0 ||
		c.regs[ncr.RegCTEST4]&ncr.CTEST4_SLBE != 0
}

func (s *Sim) chipWrite8(reg uint32, v uint8) {
	c := &s.chip
	switch reg {
	case ncr.RegISTAT:
		if v&ncr.ISTAT_RST != 0 && c.istatCtl&ncr.ISTAT_RST == 0 {
			ctl := v & (ncr.ISTAT_RST | ncr.ISTAT_ABRT)
			c.reset()
			c.istatCtl = ctl
			return
		}
		if v&ncr.ISTAT_ABRT != 0 && c.istatCtl&ncr.ISTAT_ABRT == 0 {
			c.dstatCause |= ncr.DSTAT_ABRT
			c.dmaPending = true
		}
		c.istatCtl = v & (ncr.ISTAT_RST | ncr.ISTAT_ABRT)

	case ncr.RegSODL:
		c.regs[ncr.RegSODL] = v
		if c.regs[ncr.RegCTEST4]&ncr.CTEST4_SFWR != 0 {
			lane := c.lane(c.regs[ncr.RegCTEST4])
			if len(c.scsiFIFO[lane]) < ncr.FIFOSize {
				c.scsiFIFO[lane] = append(c.scsiFIFO[lane], v)
			}
		}

	case ncr.RegCTEST6:
		if c.regs[ncr.RegCTEST4]&ncr.CTEST4_FBL2 != 0 {
			lane := c.lane(c.regs[ncr.RegCTEST4])
			if len(c.dmaFIFO[lane]) < ncr.FIFOSize {
				entry := uint16(v)
				if c.regs[ncr.RegCTEST7]&(1<<3) != 0 {
					entry |= 0x100
				}
				c.dmaFIFO[lane] = append(c.dmaFIFO[lane], entry)
			}
		}

	case ncr.RegDSTAT, ncr.RegSSTAT0, ncr.RegSSTAT1, ncr.RegSSTAT2,
		ncr.RegCTEST1, ncr.RegCTEST3, ncr.RegSBDL, ncr.RegSBCL:
		// read-only

	default:
		c.regs[reg] = v
	}
}

// scriptMaxSteps bounds a single SCRIPTS run so a malformed program
// cannot spin the simulator forever.
const scriptMaxSteps = 64

func (s *Sim) runScript(pc uint32) {
	if s.HangScripts {
		return
	}
	for step := 0; step < scriptMaxSteps; step++ {
		w := s.Read32(pc)
		switch {
		case w>>28 == 0xc:
			length := w & 0x00ffffff
			src := s.Read32(pc + 4)
			dst := s.Read32(pc + 8)
			pc += 12
			s.dmaMove(dst, src, length)

		case w>>28 == 0x9:
			s.Write32(s.BoardAddr+ncr.OffsetRegisters+ncr.RegDSPS, s.Read32(pc+4))
			s.chip.dstatCause |= ncr.DSTAT_SIR
			s.chip.dmaPending = true
			s.interrupt()
			return

		case w == 0:
			pc += 8

		default:
			s.chip.dstatCause |= ncr.DSTAT_IID
			s.chip.dmaPending = true
			s.interrupt()
			return
		}
	}
}

func (s *Sim) interrupt() {
	if !s.NoInterrupts {
		s.Line.raise()
	}
}

func (s *Sim) dmaMove(dst, src, n uint32) {
	if s.BridgeBit1 >= 0 {
		dst ^= 1 << uint(s.BridgeBit1)
	}
	if s.BridgeBit2 >= 0 && s.BridgeBit2 != s.BridgeBit1 {
		dst ^= 1 << uint(s.BridgeBit2)
	}
	done := s.mem.copyRun(dst, src, n)
	for ; done < n; done++ {
		s.Write8(dst+done, s.Read8(src+done))
	}
}
