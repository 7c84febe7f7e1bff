package diag

import (
	"fmt"

	"github.com/LIV2/a4091-software/pkg/ncr"
)

// DMAFIFO pushes a deterministic byte sequence through each of the
// four DMA FIFO byte lanes and pops it back, checking value and parity
// ordering plus the FIFO empty/full status along the way. The failure
// count carries one bit per bad lane.
func (s *Suite) DMAFIFO() int {
	var r lcg
	rc := 0

	s.showState("DMA FIFO test:", -1)

	s.sess.Reset()

	ctest1 := s.sess.Read8(ncr.RegCTEST1)
	if ctest1 != 0xf0 {
		fmt.Fprintf(s.out(), "DMA FIFO not empty before test: "+
			"CTEST1 should be 0xf0, but is 0x%02x\n", ctest1)
		s.showState("DMA FIFO test:", 0x0f)
		return 0x0f
	}

	if s.sess.Read8(ncr.RegDSTAT)&ncr.DSTAT_DFE == 0 {
		fmt.Fprintln(s.out(), "\nDMA FIFO not empty: DSTAT DFE not 1")
		s.showState("DMA FIFO test:", 0x0f)
		return 0x0f
	}

	ctest4 := s.sess.Read8(ncr.RegCTEST4)
	ctest7 := s.sess.Read8(ncr.RegCTEST7) &^ (1 << 3)

	// Push bytes to all byte lanes, parity riding on CTEST7 bit 3.
	r.srand(fifoSeed)
	for lane := uint8(0); lane < ncr.FIFOLanes; lane++ {
		s.sess.Write8(ncr.RegCTEST4, ctest4&^ncr.CTEST4_FBLMask|ncr.CTEST4_FBL2|lane)
		for cbyte := 0; cbyte < ncr.FIFOSize; cbyte++ {
			rvalue := uint16(r.rand() >> 8)
			pvalue := ctest7 | uint8(rvalue>>5)&(1<<3)
			s.sess.Write8(ncr.RegCTEST7, pvalue)
			s.sess.Write8(ncr.RegCTEST6, uint8(rvalue))
			if s.sess.Debug {
				fmt.Fprintf(s.out(), " %02x", rvalue&0x1ff)
			}
		}
	}

	if s.sess.Read8(ncr.RegDSTAT)&ncr.DSTAT_DFE != 0 {
		fmt.Fprintln(s.out(), "\nDMA FIFO is empty: DSTAT DFE not 1")
		s.showState("DMA FIFO test:", 0x0f)
		return 0x0f
	}

	ctest1 = s.sess.Read8(ncr.RegCTEST1)
	if ctest1 != 0x0f {
		fmt.Fprintf(s.out(), "DMA FIFO not full: CTEST1 should be 0x0f, "+
			"but is 0x%02x\n", ctest1)
		rc = 0xff
	} else {
		// Pop bytes back, reattaching parity as bit 8.
		r.srand(fifoSeed)
		for lane := uint8(0); lane < ncr.FIFOLanes; lane++ {
			count := 0
			s.sess.Write8(ncr.RegCTEST4, ctest4&^ncr.CTEST4_FBLMask|ncr.CTEST4_FBL2|lane)
			for cbyte := 0; cbyte < ncr.FIFOSize; cbyte++ {
				rvalue := uint16(r.rand()>>8) & 0x1ff
				value := uint16(s.sess.Read8(ncr.RegCTEST6))
				value |= uint16(s.sess.Read8(ncr.RegCTEST2)&(1<<3)) << 5
				if value == rvalue {
					continue
				}
				if rc&(1<<lane) == 0 || count < 2 {
					if rc == 0 {
						fmt.Fprintln(s.out())
					}
					fmt.Fprintf(s.out(), "Lane %d byte %d FIFO got %03x, expected %03x\n",
						lane, cbyte, value, rvalue)
				} else if count == 2 {
					fmt.Fprintln(s.out(), "...")
				}
				count++
				rc |= 1 << lane
			}
		}

		ctest1 = s.sess.Read8(ncr.RegCTEST1)
		if ctest1 != 0xf0 {
			fmt.Fprintf(s.out(), "\nDMA FIFO not empty after test: "+
				"CTEST1 should be 0xf0, but is 0x%02x\n", ctest1)
			rc = 0xff
		}
	}

	// Restore normal operation.
	s.sess.Write8(ncr.RegCTEST4, ctest4&^(ncr.CTEST4_FBL2|ncr.CTEST4_FBLMask))

	s.showState("DMA FIFO test:", rc)
	return rc
}

// SCSIFIFO runs the same lane-ordered push/pop sequence through the
// SCSI-side FIFO: SODL loads it while the FIFO write enable is set, and
// CTEST3 drains it. Comparison is 8-bit; parity is not modeled on this
// path.
func (s *Suite) SCSIFIFO() int {
	var r lcg
	rc := 0

	s.showState("SCSI FIFO test:", -1)

	s.sess.Reset()

	ctest1 := s.sess.Read8(ncr.RegCTEST1)
	if ctest1 != 0xf0 {
		fmt.Fprintf(s.out(), "SCSI FIFO not empty before test: "+
			"CTEST1 should be 0xf0, but is 0x%02x\n", ctest1)
		s.showState("SCSI FIFO test:", 0x0f)
		return 0x0f
	}

	if s.sess.Read8(ncr.RegDSTAT)&ncr.DSTAT_DFE == 0 {
		fmt.Fprintln(s.out(), "\nSCSI FIFO not empty: DSTAT DFE not 1")
		s.showState("SCSI FIFO test:", 0x0f)
		return 0x0f
	}

	ctest4 := s.sess.Read8(ncr.RegCTEST4)

	// Push bytes to all byte lanes through SODL.
	r.srand(fifoSeed)
	for lane := uint8(0); lane < ncr.FIFOLanes; lane++ {
		s.sess.Write8(ncr.RegCTEST4, ctest4&^ncr.CTEST4_FBLMask|ncr.CTEST4_SFWR|lane)
		for cbyte := 0; cbyte < ncr.FIFOSize; cbyte++ {
			rvalue := uint8(r.rand() >> 8)
			s.sess.Write8(ncr.RegSODL, rvalue)
			if s.sess.Debug {
				fmt.Fprintf(s.out(), " %02x", rvalue)
			}
		}
	}

	if s.sess.Read8(ncr.RegDSTAT)&ncr.DSTAT_DFE != 0 {
		fmt.Fprintln(s.out(), "\nSCSI FIFO is empty: DSTAT DFE not 1")
		s.showState("SCSI FIFO test:", 0x0f)
		return 0x0f
	}

	ctest1 = s.sess.Read8(ncr.RegCTEST1)
	if ctest1 != 0x0f {
		fmt.Fprintf(s.out(), "SCSI FIFO not full: CTEST1 should be 0x0f, "+
			"but is 0x%02x\n", ctest1)
		rc = 0xff
	} else {
		// Pop bytes back through CTEST3.
		r.srand(fifoSeed)
		for lane := uint8(0); lane < ncr.FIFOLanes; lane++ {
			count := 0
			s.sess.Write8(ncr.RegCTEST4, ctest4&^ncr.CTEST4_FBLMask|ncr.CTEST4_SFWR|lane)
			for cbyte := 0; cbyte < ncr.FIFOSize; cbyte++ {
				rvalue := uint8(r.rand() >> 8)
				value := s.sess.Read8(ncr.RegCTEST3)
				if value == rvalue {
					continue
				}
				if rc&(1<<lane) == 0 || count < 2 {
					if rc == 0 {
						fmt.Fprintln(s.out())
					}
					fmt.Fprintf(s.out(), "Lane %d byte %d FIFO got %02x, expected %02x\n",
						lane, cbyte, value, rvalue)
				} else if count == 2 {
					fmt.Fprintln(s.out(), "...")
				}
				count++
				rc |= 1 << lane
			}
		}

		ctest1 = s.sess.Read8(ncr.RegCTEST1)
		if ctest1 != 0xf0 {
			fmt.Fprintf(s.out(), "\nSCSI FIFO not empty after test: "+
				"CTEST1 should be 0xf0, but is 0x%02x\n", ctest1)
			rc = 0xff
		}
	}

	// Restore normal operation.
	s.sess.Write8(ncr.RegCTEST4, ctest4&^(ncr.CTEST4_SFWR|ncr.CTEST4_FBLMask))

	s.showState("SCSI FIFO test:", rc)
	return rc
}
