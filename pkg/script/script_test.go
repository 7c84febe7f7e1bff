package script_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/LIV2/a4091-software/pkg/card"
	"github.com/LIV2/a4091-software/pkg/host"
	"github.com/LIV2/a4091-software/pkg/ncr"
	"github.com/LIV2/a4091-software/pkg/script"
	"github.com/LIV2/a4091-software/pkg/sim"
)

func newEngine(t *testing.T) (*sim.Sim, *card.Session, *script.Engine) {
	t.Helper()
	machine := sim.New()
	sess := card.New(machine.Host(), machine.BoardAddr)
	sess.Out = &bytes.Buffer{}
	eng, err := script.NewEngine(sess)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	t.Cleanup(func() {
		eng.Close()
		sess.Release()
	})
	return machine, sess, eng
}

func allocPair(t *testing.T, h *host.Host, size uint32) (*host.Buffer, *host.Buffer) {
	t.Helper()
	src, err := h.Mem.Alloc(size, 16)
	if err != nil {
		t.Fatalf("alloc src: %v", err)
	}
	dst, err := h.Mem.Alloc(size, 16)
	if err != nil {
		t.Fatalf("alloc dst: %v", err)
	}
	t.Cleanup(func() {
		src.Free()
		dst.Free()
	})
	return src, dst
}

func TestMemMoveCopies(t *testing.T) {
	machine, sess, eng := newEngine(t)
	src, dst := allocPair(t, machine.Host(), 0x100)

	for off := uint32(0); off < 0x100; off++ {
		src.Write8(off, uint8(off*7+3))
	}
	if err := eng.MemMove(src.Addr, dst.Addr, 0x100); err != nil {
		t.Fatalf("MemMove: %v", err)
	}
	for off := uint32(0); off < 0x100; off++ {
		if got, want := dst.Read8(off), uint8(off*7+3); got != want {
			t.Fatalf("dst[%#x] = %02x, want %02x", off, got, want)
		}
	}
	if got := sess.InterruptCount(); got != 1 {
		t.Fatalf("interrupt count = %d, want 1", got)
	}
}

func TestMemToScratch(t *testing.T) {
	machine, sess, eng := newEngine(t)
	src, _ := allocPair(t, machine.Host(), 4)

	src.Write32(0, 0xcafe1234)
	if err := eng.MemToScratch(src.Addr); err != nil {
		t.Fatalf("MemToScratch: %v", err)
	}
	if got := sess.Read32(ncr.RegSCRATCH); got != 0xcafe1234 {
		t.Fatalf("SCRATCH = %08x, want cafe1234", got)
	}
}

func TestMemMoveQuad(t *testing.T) {
	machine, _, eng := newEngine(t)
	src, dst := allocPair(t, machine.Host(), 0x40)

	for off := uint32(0); off < 0x40; off += 4 {
		src.Write32(off, 0x11000000+off)
	}
	if err := eng.MemMoveQuad(src.Addr, dst.Addr, 0x40, true); err != nil {
		t.Fatalf("MemMoveQuad(patch): %v", err)
	}
	// Repeat launch without re-patching must still complete.
	if err := eng.MemMoveQuad(src.Addr, dst.Addr, 0x40, false); err != nil {
		t.Fatalf("MemMoveQuad(repeat): %v", err)
	}
	for off := uint32(0); off < 0x40; off += 4 {
		if got := dst.Read32(off); got != 0x11000000+off {
			t.Fatalf("dst[%#x] = %08x, want %08x", off, got, 0x11000000+off)
		}
	}
}

func TestExecuteTimeout(t *testing.T) {
	machine, sess, eng := newEngine(t)
	machine.HangScripts = true
	src, dst := allocPair(t, machine.Host(), 16)

	err := eng.MemMove(src.Addr, dst.Addr, 16)
	if !errors.Is(err, script.ErrTimeout) {
		t.Fatalf("MemMove on hung chip = %v, want ErrTimeout", err)
	}
	out := sess.Out.(*bytes.Buffer).String()
	if !strings.Contains(out, "SIOP timeout") {
		t.Fatalf("missing timeout report, got %q", out)
	}
	if !strings.Contains(out, "DSTAT=") {
		t.Fatalf("missing status dump, got %q", out)
	}
}

func TestExecutePolledCompletion(t *testing.T) {
	machine, sess, eng := newEngine(t)
	machine.NoInterrupts = true
	src, dst := allocPair(t, machine.Host(), 16)

	src.Write32(0, 0x55aa55aa)
	if err := eng.MemMove(src.Addr, dst.Addr, 16); err != nil {
		t.Fatalf("MemMove without interrupts: %v", err)
	}
	if got := dst.Read32(0); got != 0x55aa55aa {
		t.Fatalf("dst = %08x, want 55aa55aa", got)
	}
	if got := sess.InterruptCount(); got != 0 {
		t.Fatalf("interrupt count = %d, want 0 with line disconnected", got)
	}
}

func TestAssemble(t *testing.T) {
	p, err := script.NewParser()
	if err != nil {
		t.Fatalf("NewParser: %v", err)
	}

	prog, err := p.ParseString(`
		; copy a page and stop
		move memory 0x1000, 0x07000000, 0x07100000
		nop
		int 0x50
	`)
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	words, err := prog.Assemble()
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	want := []uint32{
		0xc0001000, 0x07000000, 0x07100000,
		0, 0,
		0x98080000, 0x50,
	}
	if len(words) != len(want) {
		t.Fatalf("assembled %d words, want %d", len(words), len(want))
	}
	for i := range want {
		if words[i] != want[i] {
			t.Fatalf("word %d = %08x, want %08x", i, words[i], want[i])
		}
	}
}

func TestAssembleAppendsTerminator(t *testing.T) {
	p, err := script.NewParser()
	if err != nil {
		t.Fatalf("NewParser: %v", err)
	}
	prog, err := p.ParseString("move memory 4, 0x07000000, 0x07000100")
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	words, err := prog.Assemble()
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if n := len(words); n != 5 {
		t.Fatalf("assembled %d words, want 5", n)
	}
	if words[3] != 0x98080000 || words[4] != 0 {
		t.Fatalf("missing appended terminator: %08x %08x", words[3], words[4])
	}
}

func TestAssembleRejectsOversizeMove(t *testing.T) {
	p, err := script.NewParser()
	if err != nil {
		t.Fatalf("NewParser: %v", err)
	}
	prog, err := p.ParseString("move memory 0x1000000, 0, 0")
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	if _, err := prog.Assemble(); err == nil {
		t.Fatal("Assemble accepted a 25-bit move length")
	}
}

func TestRunAssembledProgram(t *testing.T) {
	machine, _, eng := newEngine(t)
	src, dst := allocPair(t, machine.Host(), 8)
	src.Write32(0, 0x01020304)
	src.Write32(4, 0x05060708)

	p, err := script.NewParser()
	if err != nil {
		t.Fatalf("NewParser: %v", err)
	}
	prog, err := p.ParseString("move memory 8, " +
		hex(src.Addr) + ", " + hex(dst.Addr))
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	words, err := prog.Assemble()
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if err := eng.Run(words); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := dst.Read32(0); got != 0x01020304 {
		t.Fatalf("dst[0] = %08x, want 01020304", got)
	}
	if got := dst.Read32(4); got != 0x05060708 {
		t.Fatalf("dst[4] = %08x, want 05060708", got)
	}
}

func hex(v uint32) string {
	const digits = "0123456789abcdef"
	out := make([]byte, 10)
	out[0], out[1] = '0', 'x'
	for i := 0; i < 8; i++ {
		out[9-i] = digits[v&0xf]
		v >>= 4
	}
	return string(out)
}
