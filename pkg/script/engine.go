// Package script drives the 53C710 SCRIPTS processor: it owns the
// fixed-layout micro-programs in DMA-visible memory, patches them
// before each launch, and waits out the poll/interrupt completion race.
package script

import (
	"errors"
	"fmt"

	"github.com/LIV2/a4091-software/pkg/card"
	"github.com/LIV2/a4091-software/pkg/host"
	"github.com/LIV2/a4091-software/pkg/ncr"
)

// ErrTimeout is returned when the SCRIPTS processor does not signal
// completion within the tick budget.
var ErrTimeout = errors.New("script: SIOP timeout")

// Instruction encoding: top nibble 0xc is a memory move whose low 24
// bits carry the byte length, followed by source and destination
// words.
const (
	opMemMove = 0xc0000000
	opIntStop = 0x98080000
)

// execBudget bounds one script run, in ticks.
const execBudget = 30

// Word counts of the two resident programs: moves, the two-word
// interrupt-and-stop, and trailing nops.
const (
	singleWords = 16
	quadWords   = 37
)

// Engine holds the two resident script buffers for one card session.
// The buffers are mutated in place before each run and must be flushed
// to memory before launch; the chip fetches them without the CPU cache
// in the way.
type Engine struct {
	sess   *card.Session
	single *host.Buffer
	quad   *host.Buffer
}

// NewEngine allocates the resident script buffers. Close frees them.
func NewEngine(sess *card.Session) (*Engine, error) {
	h := sess.Host()
	if !h.CanDMA() {
		return nil, fmt.Errorf("script: host cannot allocate DMA memory")
	}
	single, err := h.Mem.Alloc(singleWords*4, 16)
	if err != nil {
		return nil, fmt.Errorf("script: alloc move script: %w", err)
	}
	quad, err := h.Mem.Alloc(quadWords*4, 16)
	if err != nil {
		single.Free()
		return nil, fmt.Errorf("script: alloc quad script: %w", err)
	}
	e := &Engine{sess: sess, single: single, quad: quad}
	// The allocator hands back zeroed memory, so the nop tails are
	// already in place; only the terminators need writing.
	single.Write32(3*4, opIntStop)
	quad.Write32(12*4, opIntStop)
	e.flush(single)
	e.flush(quad)
	return e, nil
}

// Close releases the script buffers.
func (e *Engine) Close() {
	e.single.Free()
	e.quad.Free()
}

// flush pushes the CPU's view of a script buffer out to memory so the
// chip's next fetch sees the patched words.
func (e *Engine) flush(b *host.Buffer) {
	h := e.sess.Host()
	h.CachePreDMA(b.Addr, b.Size, true)
	h.CachePostDMA(b.Addr, b.Size, true)
}

// MemMove copies len bytes from src to dst using the chip's DMA
// engine.
func (e *Engine) MemMove(src, dst, length uint32) error {
	e.single.Write32(0, opMemMove|length&0x00ffffff)
	e.single.Write32(4, src)
	e.single.Write32(8, dst)
	e.flush(e.single)

	if e.sess.Debug {
		fmt.Fprintf(e.sess.Out, "DMA from %08x to %08x len %08x\n", src, dst, length)
	}
	e.sess.Acquire()
	return e.Execute(e.single.Addr)
}

// MemToScratch copies 4 bytes from src into the chip's SCRATCH
// register, exercising the register side of the DMA path.
func (e *Engine) MemToScratch(src uint32) error {
	dst := e.sess.Base() + ncr.OffsetRegisters + ncr.RegSCRATCH
	return e.MemMove(src, dst, 4)
}

// MemMoveQuad runs four back-to-back copies of the same src/dst/len in
// one launch, amortizing launch overhead for throughput measurement.
// patch may be false on repeat runs with unchanged parameters.
func (e *Engine) MemMoveQuad(src, dst, length uint32, patch bool) error {
	if patch {
		for i := uint32(0); i < 4; i++ {
			e.quad.Write32(i*12+0, opMemMove|length&0x00ffffff)
			e.quad.Write32(i*12+4, src)
			e.quad.Write32(i*12+8, dst)
		}
		e.flush(e.quad)
	}

	if e.sess.Debug {
		fmt.Fprintf(e.sess.Out, "DMA from %08x to %08x len %08x\n", src, dst, length)
	}
	e.sess.Acquire()
	return e.Execute(e.quad.Addr)
}

// Execute launches the script at addr and waits for completion.
// Completion can arrive two ways: the interrupt handler may capture it
// (and will claim only the first interrupt after takeover), or this
// loop may observe it by polling ISTAT directly. Neither path alone is
// reliable, so both are raced; the poll runs every 8th iteration.
func (e *Engine) Execute(addr uint32) error {
	s := e.sess
	s.ClearCapturedIstat()
	s.Write32(ncr.RegDSP, addr)

	start := s.Host().Clock.Now()
	for count := 0; ; count++ {
		if count&7 == 0 {
			istat := s.Read8(ncr.RegISTAT)
			if istat&(ncr.ISTAT_ABRT|ncr.ISTAT_DIP) != 0 {
				s.Read8(ncr.RegDSTAT)
				if s.Debug {
					fmt.Fprintln(s.Out, "Got DMA polled completion")
				}
				return nil
			}
		}
		if s.CapturedIstat()&(ncr.ISTAT_ABRT|ncr.ISTAT_DIP) != 0 {
			if s.Debug {
				fmt.Fprintln(s.Out, "Got DMA completion interrupt")
			}
			return nil
		}
		if count&31 == 0 && s.AccessTimeout("SIOP timeout", execBudget, start) {
			fmt.Fprintf(s.Out,
				"ISTAT=%02x %02x DSTAT=%02x SSTAT0=%02x SSTAT1=%02x SSTAT2=%02x\n",
				s.CapturedIstat(), s.Read8(ncr.RegISTAT),
				s.Read8(ncr.RegDSTAT), s.Read8(ncr.RegSSTAT0),
				s.Read8(ncr.RegSSTAT1), s.Read8(ncr.RegSSTAT2))
			return ErrTimeout
		}
	}
}
