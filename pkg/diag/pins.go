package diag

import (
	"fmt"

	"github.com/LIV2/a4091-software/pkg/ncr"
)

// calcParity returns the even-parity bit for one SCSI data byte.
func calcParity(data uint8) uint32 {
	data ^= data >> 4
	data ^= data >> 2
	data ^= data >> 1
	return uint32(^data & 1)
}

// SCSIPins uses the chip's loopback override bits to drive the SCSI
// data and control pins directly and read them back, classifying each
// pin as stuck or floating/bridged. Register readback is electrically
// inverted relative to bus state, so the stuck labels are swapped in
// the report.
func (s *Suite) SCSIPins() int {
	rc := 0

	s.showState("SCSI pin test:", -1)

	ctest4 := s.sess.Read8(ncr.RegCTEST4)
	scntl0 := s.sess.Read8(ncr.RegSCNTL0)
	scntl1 := s.sess.Read8(ncr.RegSCNTL1)
	dcntl := s.sess.Read8(ncr.RegDCNTL)

	s.sess.Reset()
	s.sess.Host().Clock.Sleep(1)

	// Check that SCSI termination power is working.
	sbdl := s.sess.Read8(ncr.RegSBDL)
	sbcl := s.sess.Read8(ncr.RegSBCL) | 0x20 // BSY might still be high
	if sbcl == 0xff && sbdl == 0xff {
		fmt.Fprintln(s.out(),
			"\nAll SCSI pins low (check term power D309A and F309A/F309B)")
		s.showState("SCSI pin test:", 1)
		return 1
	}

	// Check that the bus is not stuck in reset.
	if s.sess.Read8(ncr.RegSSTAT1)&ncr.SSTAT1_RST != 0 {
		fmt.Fprintln(s.out(),
			"\nSCSI bus is in reset (check for SCTRL_RST short to GND)")
		s.showState("SCSI pin test:", 1)
		return 1
	}

	// The chip must be able to assert reset too.
	s.sess.Write8(ncr.RegSCNTL1, ncr.SCNTL1_RST)
	s.sess.Host().Clock.Sleep(1)
	if s.sess.Read8(ncr.RegSSTAT1)&ncr.SSTAT1_RST == 0 {
		if rc == 0 {
			fmt.Fprintln(s.out())
		}
		rc++
		fmt.Fprintln(s.out(),
			"SCSI bus cannot be reset (check for SCTRL_RST short to VCC)")
	}
	s.sess.Write8(ncr.RegSCNTL1, 0)
	s.sess.Host().Clock.Sleep(1)

	// Set registers to manually drive SCSI data and control pins.
	s.sess.Write8(ncr.RegDCNTL, dcntl|ncr.DCNTL_LLM)
	s.sess.Write8(ncr.RegCTEST4, ctest4|ncr.CTEST4_SLBE)
	s.sess.Write8(ncr.RegSCNTL0, ncr.SCNTL0_EPG)
	s.sess.Write8(ncr.RegSCNTL1, ncr.SCNTL1_ADB)

	// Walk a test pattern on SODL and verify it arrives on SBDL, with
	// parity riding as bit 8.
	s.sess.Write8(ncr.RegSOCL, 0x00)
	stuckHigh := uint32(0x1ff)
	stuckLow := uint32(0x1ff)
	pinsDiff := uint32(0)
	for pass := 0; pass < 2; pass++ {
		for bit := -1; bit < 8; bit++ {
			// Pass 0 walks ones, pass 1 walks zeros; bit -1 drives the
			// all-clear (or all-set) pattern.
			dout := uint32(0)
			if bit >= 0 {
				dout = 1 << uint(bit)
			}
			if pass == 1 {
				dout = ^dout & 0xff
			}

			s.sess.Write8(ncr.RegSODL, uint8(dout))
			din := uint32(s.sess.Read8(ncr.RegSBDL))
			parityGot := uint32(s.sess.Read8(ncr.RegSSTAT1) & ncr.SSTAT1_PAR)
			dout |= calcParity(uint8(dout)) << 8
			din |= parityGot << 8
			stuckHigh &= din
			stuckLow &= ^din
			diff := din ^ dout
			if diff&0xff != 0 {
				diff &= 0xff // ignore parity when other bits differ
			}
			if diff != 0 {
				pinsDiff |= diff
				if rc == 0 {
					fmt.Fprintln(s.out())
				}
				rc++
				if rc <= 8 {
					fmt.Fprintf(s.out(), "SCSI data %03x != expected %03x (diff %03x%s)\n",
						din, dout, diff, ncr.FormatBits(ncr.SCSIDataPins, diff))
				}
			}
		}
	}
	// Register state is inverted from SCSI pin state.
	pinsDiff &^= stuckHigh | stuckLow
	if stuckHigh != 0 {
		fmt.Fprintf(s.out(), "Stuck low: %02x%s (check for short to GND)\n",
			stuckHigh, ncr.FormatBits(ncr.SCSIDataPins, stuckHigh))
	}
	if stuckLow != 0 {
		fmt.Fprintf(s.out(), "Stuck high: %02x%s (check for short to VCC)\n",
			stuckLow, ncr.FormatBits(ncr.SCSIDataPins, stuckLow))
	}
	if pinsDiff != 0 {
		fmt.Fprintf(s.out(), "Floating or bridged: %02x%s\n",
			pinsDiff, ncr.FormatBits(ncr.SCSIDataPins, pinsDiff))
	}

	s.sess.Write8(ncr.RegSODL, 0xff)

	// Walk a test pattern on SOCL and verify it arrives on SBCL.
	stuckHigh = 0xff
	stuckLow = 0xff
	pinsDiff = 0
	for pass := 0; pass < 2; pass++ {
		for bit := -1; bit < 8; bit++ {
			dout := uint8(0)
			if bit >= 0 {
				dout = 1 << uint(bit)
			}
			if pass == 1 {
				dout = ^dout
			}

			// Never assert SCTRL_SEL, and skip the combinations that
			// drive the always-inverted lines alone.
			if dout == 0x80 || dout == 0x40 || dout == 0xf7 || dout&(1<<3) != 0 {
				continue
			}

			s.sess.Write8(ncr.RegSOCL, dout)
			din := s.sess.Read8(ncr.RegSBCL)
			stuckHigh &= uint32(din)
			stuckLow &= ^uint32(din) & 0xff
			diff := din ^ dout
			if diff != 0 {
				pinsDiff |= uint32(diff)
				if rc == 0 {
					fmt.Fprintln(s.out())
				}
				rc++
				if rc <= 8 {
					fmt.Fprintf(s.out(), "SCSI control %02x != expected %02x (diff %02x%s)\n",
						din, dout, diff, ncr.FormatBits(ncr.SCSIControlPins, uint32(diff)))
				}
			}
		}
	}

	// SEL is never asserted and BSY/ACK read inverted, so they cannot
	// be judged stuck from this walk.
	stuckLow &^= 1<<3 | 1<<6 | 1<<7
	pinsDiff &^= stuckHigh | stuckLow

	if stuckHigh != 0 {
		fmt.Fprintf(s.out(), "Stuck low: %02x%s (check for short to GND)\n",
			stuckHigh, ncr.FormatBits(ncr.SCSIControlPins, stuckHigh))
	}
	if stuckLow != 0 {
		fmt.Fprintf(s.out(), "Stuck high: %02x%s (check for short to VCC)\n",
			stuckLow, ncr.FormatBits(ncr.SCSIControlPins, stuckLow))
	}
	if pinsDiff != 0 {
		fmt.Fprintf(s.out(), "Floating or bridged: %02x%s\n",
			pinsDiff, ncr.FormatBits(ncr.SCSIControlPins, pinsDiff))
	}

	s.sess.Write8(ncr.RegDCNTL, dcntl)
	s.sess.Write8(ncr.RegSCNTL0, scntl0)
	s.sess.Write8(ncr.RegSCNTL1, scntl1)
	s.sess.Write8(ncr.RegCTEST4, ctest4)
	s.sess.Reset()

	s.showState("SCSI pin test:", rc)
	return rc
}
