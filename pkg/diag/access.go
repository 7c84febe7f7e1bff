package diag

import (
	"fmt"

	"github.com/LIV2/a4091-software/pkg/ncr"
)

// zorroExpected is the autoconfig header the card must present:
// board type, product, flags, and the Commodore manufacturer ID.
var zorroExpected = [6]uint8{0x6f, 0x54, 0x30, 0x00, 0x02, 0x02}

// DeviceAccess verifies the card responds on the bus at all: one timed
// access each to the ROM and register windows, then 100 passes over the
// autoconfig identification bytes, reporting each mismatching offset
// once.
func (s *Suite) DeviceAccess() int {
	var sawIncorrect [len(zorroExpected)]bool
	rc := 0

	s.showState("Device access:", -1)

	h := s.sess.Host()
	base := s.sess.Base()

	// Measure access speed against possible bus timeout.
	start := h.Clock.Now()
	h.Bus.Read32(base + ncr.OffsetROM)
	if s.sess.AccessTimeout("ROM access timeout", 2, start) {
		// Try again
		h.Bus.Read32(base + ncr.OffsetROM)
		if s.sess.AccessTimeout("ROM access timeout", 2, start) {
			s.showState("Device access:", 1)
			return 1
		}
	}

	h.Bus.Read32(base + ncr.OffsetRegisters)
	if s.sess.AccessTimeout("\n53C710 access timeout", 2, start) {
		s.showState("Device access:", 1)
		return 1
	}

	for pass := 0; pass < 100; pass++ {
		start = h.Clock.Now()
		for i := range zorroExpected {
			regval := ncr.ConfigReg(h.Bus.Read8, base, uint32(i*4))
			if s.sess.AccessTimeout("\n53C710 loop access timeout", 4, start) {
				s.showState("Device access:", rc+1)
				return rc + 1
			}
			if regval == zorroExpected[i] {
				continue
			}
			if !sawIncorrect[i] {
				sawIncorrect[i] = true
				if rc == 0 {
					fmt.Fprintln(s.out())
				}
				fmt.Fprintf(s.out(), "    Reg %02x  %02x != expected %02x (diff %02x)\n",
					i*4, regval, zorroExpected[i], regval^zorroExpected[i])
				rc++
			}
		}
	}

	s.showState("Device access:", rc)
	return rc
}

// RegisterAccess checks reserved bits across repeated reads, verifies
// the status registers come up clear after reset, and runs a 256-step
// walking-bit pattern through the two general-purpose registers,
// classifying every data pin as good, stuck, or floating/bridged.
func (s *Suite) RegisterAccess() int {
	rc := 0

	s.showState("Register test:", -1)

	for pass := 0; pass < 100; pass++ {
		rc += s.checkRegBits(0, ncr.RegSCNTL1, "SCNTL1", 1<<1|1<<0)
		rc += s.checkRegBits(0, ncr.RegDSTAT, "DSTAT", 1<<6)
		rc += s.checkRegBits(0, ncr.RegCTEST0, "CTEST0", 1<<7|1<<1)
		rc += s.checkRegBits(0, ncr.RegCTEST2, "CTEST2", 1<<7)
		rc += s.checkRegBits(0, ncr.RegISTAT, "ISTAT", 1<<4|1<<2)
		rc += s.checkRegBits(0, ncr.RegDIEN, "DIEN", 1<<7|1<<6)
		if rc != 0 {
			break
		}
	}

	s.sess.Reset()

	// Status registers must be fully clear after reset (DSTAT is
	// allowed its FIFO-empty bit).
	rc += s.checkRegBits(1, ncr.RegISTAT, "ISTAT", 0xff)
	rc += s.checkRegBits(1, ncr.RegDSTAT, "DSTAT", 0x7f)

	// Walking bits test of the writable registers (TEMP and SCRATCH).
	stuckHigh := uint32(0xffffffff)
	stuckLow := uint32(0xffffffff)
	pinsDiff := uint32(0)
	patt := uint32(0xf0e7c3a5)
	for rot := 0; rot < 256; rot++ {
		next := patt<<1 | patt>>31
		s.sess.Write32(ncr.RegSCRATCH, patt)
		s.sess.Write32(ncr.RegTEMP, next)
		gotScratch := s.sess.Read32(ncr.RegSCRATCH)
		gotTemp := s.sess.Read32(ncr.RegTEMP)
		stuckHigh &= gotScratch & gotTemp
		stuckLow &= ^(gotScratch | gotTemp)
		if diff := gotScratch ^ patt; diff != 0 {
			pinsDiff |= diff
			if rc == 0 {
				fmt.Fprintln(s.out())
			}
			rc++
			if rc < 8 {
				fmt.Fprintf(s.out(), "Reg SCRATCH %08x != %08x (diff %08x%s)\n",
					gotScratch, patt, diff, ncr.FormatBits(ncr.DataPins, diff))
			}
		}
		if diff := gotTemp ^ next; diff != 0 {
			pinsDiff |= diff
			if rc == 0 {
				fmt.Fprintln(s.out())
			}
			rc++
			if rc < 8 {
				fmt.Fprintf(s.out(), "Reg TEMP    %08x != %08x (diff %08x%s)\n",
					gotTemp, next, diff, ncr.FormatBits(ncr.DataPins, diff))
			}
		}
		patt = next
	}

	pinsDiff &^= stuckHigh | stuckLow
	if stuckHigh != 0 {
		fmt.Fprintf(s.out(), "Stuck high: %08x%s (check for short to VCC)\n",
			stuckHigh, ncr.FormatBits(ncr.DataPins, stuckHigh))
	}
	if stuckLow != 0 {
		fmt.Fprintf(s.out(), "Stuck low: %08x%s (check for short to GND)\n",
			stuckLow, ncr.FormatBits(ncr.DataPins, stuckLow))
	}
	if pinsDiff != 0 {
		fmt.Fprintf(s.out(), "Floating or bridged: %08x%s\n",
			pinsDiff, ncr.FormatBits(ncr.DataPins, pinsDiff))
	}

	s.showState("Register test:", rc)
	return rc
}
