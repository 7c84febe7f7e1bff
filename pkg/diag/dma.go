package diag

import (
	"fmt"
	"time"

	"github.com/LIV2/a4091-software/pkg/host"
	"github.com/LIV2/a4091-software/pkg/ncr"
)

// DMA repeatedly copies a freshly randomized word from CPU memory into
// the chip's SCRATCH register, stepping the source address through a
// 2KB window. Mismatches are accumulated rather than fatal so an
// isolated glitch can be told apart from a systemic fault.
func (s *Suite) DMA() int {
	const dmaLen = 2048
	var r lcg
	rc := 0
	mismatches := 0

	r.srand(uint32(time.Now().Unix()))
	s.showState("DMA test:", -1)

	h := s.sess.Host()
	src, err := h.Mem.Alloc(dmaLen, dmaLen)
	if err != nil {
		fmt.Fprintln(s.out(), "Failed to allocate src buffer")
		s.showState("DMA test:", 1)
		return 1
	}
	defer src.Free()

	s.sess.Reset()

	for pos := uint32(0); pos < dmaLen; pos += 4 {
		saddr := src.Addr + pos
		svalue := r.rand()
		src.Write32(pos, svalue)
		h.CachePreDMA(saddr, 4, true)
		err := s.eng.MemToScratch(saddr)
		h.CachePostDMA(saddr, 4, true)
		if err != nil {
			fmt.Fprintf(s.out(), "DMA failed at pos %x\n", pos)
			rc = 1
			break
		}

		scratch := s.sess.Read32(ncr.RegSCRATCH)
		if diff := svalue ^ scratch; diff != 0 {
			if mismatches < 10 {
				fmt.Fprintf(s.out(),
					"\n  Addr %08x to scratch %08x: %08x != expected %08x (diff %08x)\n",
					saddr,
					s.sess.Base()+ncr.OffsetRegisters+ncr.RegSCRATCH,
					scratch, svalue, diff)
			}
			mismatches++
		}
	}
	rc += mismatches

	s.showState("DMA test:", rc)
	return rc
}

// dmaLenBit sets the copy-test transfer ceiling (4KB) and, with it, the
// lowest address bit the shadow set protects.
const dmaLenBit = 12

// bfShadow protects one bit-flip candidate address during the copy
// test. A real buffer at the flipped address is preferred and wiped to
// zero; when the allocator cannot produce one, a scratch buffer holds a
// pre-DMA copy of whatever lives there.
type bfShadow struct {
	addr   uint32
	buf    *host.Buffer
	isCopy bool
}

func (s *Suite) shadowNotZero(sh *bfShadow, n uint32) bool {
	for off := uint32(0); off < n; off += 4 {
		if sh.buf.Read32(off) != 0 {
			return true
		}
	}
	return false
}

func (s *Suite) shadowDiffers(sh *bfShadow, n uint32) bool {
	bus := s.sess.Host().Bus
	for off := uint32(0); off < n; off += 4 {
		if sh.buf.Read32(off) != bus.Read32(sh.addr+off) {
			return true
		}
	}
	return false
}

// DMACopy drives memory-to-memory DMA with transfer sizes doubling
// from 4 bytes to 4KB. Since the controller might have floating address
// lines, every single- and double-bit-flip alias of the destination at
// or above the transfer-size bit is shadowed first; after any
// miscompare the shadows are scanned and corrupted addresses reported.
func (s *Suite) DMACopy() int {
	dmaLen := uint32(1) << dmaLenBit
	var r lcg
	rc := 0

	s.showState("DMA copy:", -1)
	r.srand(uint32(time.Now().Unix()))

	h := s.sess.Host()
	src, err := h.Mem.Alloc(dmaLen, 16)
	if err != nil {
		fmt.Fprintln(s.out(), "Failed to allocate src buffer")
		s.showState("DMA copy:", 1)
		return 1
	}
	defer src.Free()

	// Land the DMA in the middle of a triple-size buffer so overruns
	// in either direction stay inside owned memory.
	dstBuf, err := h.Mem.Alloc(dmaLen*3, 16)
	if err != nil {
		fmt.Fprintln(s.out(), "Failed to allocate dst buffer")
		s.showState("DMA copy:", 1)
		return 1
	}
	defer dstBuf.Free()
	dst := dstBuf.Addr + dmaLen

	var shadows []*bfShadow
	defer func() {
		for _, sh := range shadows {
			sh.buf.Free()
		}
	}()
	for bit1 := dmaLenBit; bit1 < 32; bit1++ {
		for bit2 := bit1; bit2 < 32; bit2++ {
			addr := dst ^ 1<<uint(bit1)
			if bit2 != bit1 {
				addr ^= 1 << uint(bit2)
			}
			if buf, ok := h.Mem.AllocAbs(addr, dmaLen); ok {
				// Got target memory, wipe it.
				buf.Zero(dmaLen)
				shadows = append(shadows, &bfShadow{addr: addr, buf: buf})
				continue
			}
			buf, err := h.Mem.Alloc(dmaLen, 4)
			if err != nil {
				fmt.Fprintln(s.out(), "Failed to allocate protection array")
				s.showState("DMA copy:", 1)
				return 1
			}
			shadows = append(shadows, &bfShadow{addr: addr, buf: buf, isCopy: true})
		}
	}

	if s.sess.Debug {
		fmt.Fprintf(s.out(), "\nDMA src=%08x dst=%08x len=%x\n",
			src.Addr, dst, dmaLen)
	}

	s.sess.InitSIOP()

	// Snapshot the copy-mode shadow locations before any DMA runs.
	for _, sh := range shadows {
		if !sh.isCopy {
			continue
		}
		for off := uint32(0); off < dmaLen; off += 4 {
			sh.buf.Write32(off, h.Bus.Read32(sh.addr+off))
		}
	}

	curLen := uint32(4)
	for pass := 0; pass < 32; pass++ {
		for pos := uint32(0); pos < curLen; pos += 4 {
			h.Bus.Write32(dst+pos, 0)
		}
		for pos := uint32(0); pos < curLen; pos += 4 {
			src.Write32(pos, r.rand())
		}
		h.CachePreDMA(dst, curLen, true)
		h.CachePostDMA(dst, curLen, true)

		h.CachePreDMA(src.Addr, curLen, true)
		h.CachePreDMA(dst, curLen, false)

		s.sess.Reset()
		err := s.eng.MemMove(src.Addr, dst, curLen)
		h.CachePostDMA(dst, curLen, false)
		h.CachePostDMA(src.Addr, curLen, true)

		if err != nil {
			rc = 1
			break
		}

		// Verify data landed where it was expected.
		for pos := uint32(0); pos < curLen; pos += 4 {
			svalue := src.Read32(pos)
			dvalue := h.Bus.Read32(dst + pos)
			if svalue == dvalue {
				continue
			}
			if rc == 0 {
				fmt.Fprintf(s.out(), "\nDMA src=%08x dst=%08x len=%x\n",
					src.Addr, dst, curLen)
			}
			if rc < 5 || s.sess.Debug {
				fmt.Fprintf(s.out(), " Addr %08x value %08x != expected %08x (diff %08x)\n",
					dst+pos, dvalue, svalue, dvalue^svalue)
			}
			rc++
		}

		// If any part of the landing area is wrong, look for the
		// missing data elsewhere in memory (address line floating or
		// shorted).
		if rc > 0 {
			if rc > 5 {
				fmt.Fprint(s.out(), "...")
			}
			fmt.Fprintf(s.out(), "%d total miscompares\n", rc)

			corrupted := 0
			for _, sh := range shadows {
				bad := false
				if sh.isCopy {
					bad = s.shadowDiffers(sh, dmaLen)
				} else {
					bad = s.shadowNotZero(sh, dmaLen)
				}
				if !bad {
					continue
				}
				if corrupted == 0 {
					fmt.Fprint(s.out(), "Modified RAM addresses: ")
				}
				corrupted++
				if sh.isCopy {
					fmt.Fprintf(s.out(), "<%x>", sh.addr)
				} else {
					fmt.Fprintf(s.out(), ">%x<", sh.addr)
				}
			}
			if corrupted != 0 {
				fmt.Fprintln(s.out())
			}
			break
		}

		curLen <<= 1
		if curLen >= dmaLen {
			curLen = dmaLen
		}
	}

	s.showState("DMA copy:", rc)
	return rc
}

// DMACopyPerf benchmarks repeated 64KB quad-move DMA. The run extends
// itself until at least 10 ticks have elapsed so short runs do not
// produce garbage rates.
func (s *Suite) DMACopyPerf() int {
	dmaLen := uint32(64 << 10)
	rc := 0

	s.showState("DMA copy perf:", -1)

	s.sess.Reset()

	h := s.sess.Host()
	src, err := h.Mem.Alloc(dmaLen, 64)
	if err != nil {
		fmt.Fprintln(s.out(), "Failed to allocate src buffer")
		s.showState("DMA copy perf:", 1)
		return 1
	}
	defer src.Free()
	dst, err := h.Mem.Alloc(dmaLen, 64)
	if err != nil {
		fmt.Fprintln(s.out(), "Failed to allocate dst buffer")
		s.showState("DMA copy perf:", 1)
		return 1
	}
	defer dst.Free()

	h.CachePreDMA(src.Addr, dmaLen, true)
	h.CachePreDMA(dst.Addr, dmaLen, false)

	if s.sess.Debug {
		fmt.Fprintf(s.out(), "\nDMA src=%08x dst=%08x len=%x\n",
			src.Addr, dst.Addr, dmaLen)
	}

	s.sess.Reset()
	s.sess.InitSIOP()

	start := h.Clock.Now()
	totalPasses := 0
run:
	for {
		for pass := 0; pass < 16; pass++ {
			totalPasses++
			if s.eng.MemMoveQuad(src.Addr, dst.Addr, dmaLen, pass == 0) != nil {
				rc = 1
				break run
			}
		}
		ticks, ok := host.Elapsed(h.Clock, start)
		if !ok {
			// Clock stepped backward; restart the measurement.
			start = h.Clock.Now()
			totalPasses = 0
			continue
		}
		if ticks < 10 {
			continue
		}

		// 2 for read+write, 4 moves per script launch.
		totalKB := uint64(totalPasses) * uint64(dmaLen/1024) * 2 * 4
		fmt.Fprintf(s.out(), "PASS: %d KB in %d ticks", totalKB, ticks)
		if ticks == 0 {
			ticks = 1
		}
		fmt.Fprintf(s.out(), " (%d KB/sec)\n",
			totalKB*host.TicksPerSecond/uint64(ticks))
		break
	}

	h.CachePostDMA(src.Addr, dmaLen, true)
	h.CachePostDMA(dst.Addr, dmaLen, false)

	if rc != 0 {
		s.showState("DMA copy perf:", rc)
	}
	return rc
}
