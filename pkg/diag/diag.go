// Package diag holds the A4091 diagnostic test suite and the
// orchestrator that runs it. Each test returns a non-negative failure
// count and prints only on failure; output is technician-facing report
// text, not structured logs.
package diag

import (
	"context"
	"fmt"
	"io"

	"github.com/LIV2/a4091-software/pkg/card"
	"github.com/LIV2/a4091-software/pkg/script"
)

// Suite binds the diagnostics to one card session and script engine.
type Suite struct {
	sess *card.Session
	eng  *script.Engine
}

// New builds a suite over an owned session. eng may be nil on
// register-only backends; the DMA tests are then skipped rather than
// run.
func New(sess *card.Session, eng *script.Engine) *Suite {
	return &Suite{sess: sess, eng: eng}
}

func (s *Suite) out() io.Writer { return s.sess.Out }

// showState prints the test banner. state -1 opens an in-progress line
// that the test's own failure output (or the final PASS/FAIL) closes.
func (s *Suite) showState(name string, state int) {
	if state == 0 {
		fmt.Fprintln(s.out(), "PASS")
		return
	}
	fmt.Fprintf(s.out(), "  %-15s ", name)
	if state == -1 {
		return
	}
	fmt.Fprintln(s.out(), "FAIL")
}

// checkRegBits reports designated bits that read as set. mode 0 is for
// reserved bits, mode 1 for registers expected to be fully clear.
func (s *Suite) checkRegBits(mode int, reg uint32, name string, bits uint8) int {
	v := s.sess.Read8(reg)
	if v&bits == 0 {
		return 0
	}
	modestr := "reserved"
	if mode != 0 {
		modestr = "unexpected"
	}
	fmt.Fprintf(s.out(), "%s reg %02x [value %02x] has %s bits set: %02x\n",
		name, reg, v, modestr, v&bits)
	return 1
}

// tests is the fixed run order; bit N of the orchestrator mask enables
// entry N. Entries marked dma need the script engine and DMA-safe
// memory.
var tests = []struct {
	name string
	dma  bool
	fn   func(*Suite) int
}{
	{"device access", false, (*Suite).DeviceAccess},
	{"register access", false, (*Suite).RegisterAccess},
	{"DMA FIFO", false, (*Suite).DMAFIFO},
	{"SCSI FIFO", false, (*Suite).SCSIFIFO},
	{"DMA", true, (*Suite).DMA},
	{"DMA copy", true, (*Suite).DMACopy},
	{"DMA copy perf", true, (*Suite).DMACopyPerf},
	{"SCSI pins", false, (*Suite).SCSIPins},
}

// TestCount is the number of selectable diagnostics.
var TestCount = len(tests)

// Run executes the selected diagnostics in fixed order, stopping at the
// first failure. A zero mask runs everything. The whole run is wrapped
// in card acquire/release, and ctx is checked between tests so an
// operator abort never leaves the card owned.
func (s *Suite) Run(ctx context.Context, mask uint32) int {
	if mask == 0 {
		mask = ^uint32(0)
	}

	s.sess.Acquire()
	defer s.sess.Release()

	rc := 0
	for i, t := range tests {
		if ctx.Err() != nil {
			fmt.Fprintf(s.out(), "Aborted before %s test\n", t.name)
			break
		}
		if mask&(1<<uint(i)) == 0 {
			continue
		}
		if t.dma && s.eng == nil {
			fmt.Fprintf(s.out(), "Skipping %s test (no DMA capability)\n", t.name)
			continue
		}
		if rc = t.fn(s); rc != 0 {
			break
		}
	}
	return rc
}
