package probe

import (
	"strings"
	"testing"
)

// fakeProbe is the firmware side of the wire protocol backed by a
// sparse memory map, so the codec and bus can be exercised without a
// device attached.
type fakeProbe struct {
	mem    map[uint32]uint8
	faults map[uint32]bool
	calls  int
}

func newFakeProbe() *fakeProbe {
	return &fakeProbe{mem: make(map[uint32]uint8), faults: make(map[uint32]bool)}
}

func (f *fakeProbe) WriteRead(req []byte) ([]byte, error) {
	f.calls++
	cmd, addr, value, err := decodeRequest(req)
	if err != nil {
		return nil, err
	}
	if f.faults[addr] {
		return encodeResponse(statusFault, 0), nil
	}
	switch cmd {
	case cmdRead8:
		return encodeResponse(statusOK, uint32(f.mem[addr])), nil
	case cmdRead32:
		var v uint32
		for i := uint32(0); i < 4; i++ {
			v = v<<8 | uint32(f.mem[addr+i])
		}
		return encodeResponse(statusOK, v), nil
	case cmdWrite8:
		f.mem[addr] = uint8(value)
	case cmdWrite32:
		for i := uint32(0); i < 4; i++ {
			f.mem[addr+i] = uint8(value >> (24 - 8*i))
		}
	}
	return encodeResponse(statusOK, 0), nil
}

func TestCodecRoundTrip(t *testing.T) {
	frame := encodeRequest(cmdWrite32, 0x40800034, 0xdeadbeef)
	if len(frame) != requestSize {
		t.Fatalf("request frame is %d bytes, want %d", len(frame), requestSize)
	}
	cmd, addr, value, err := decodeRequest(frame)
	if err != nil {
		t.Fatalf("decodeRequest: %v", err)
	}
	if cmd != cmdWrite32 || addr != 0x40800034 || value != 0xdeadbeef {
		t.Fatalf("round trip gave cmd=%02x addr=%08x value=%08x", cmd, addr, value)
	}

	v, err := decodeResponse(encodeResponse(statusOK, 0x12345678))
	if err != nil {
		t.Fatalf("decodeResponse: %v", err)
	}
	if v != 0x12345678 {
		t.Fatalf("response value %08x, want 12345678", v)
	}
}

func TestCodecRejectsMalformedFrames(t *testing.T) {
	if _, _, _, err := decodeRequest([]byte{cmdRead8, 0}); err == nil {
		t.Fatal("short request accepted")
	}
	if _, _, _, err := decodeRequest(encodeRequest(0x7f, 0, 0)); err == nil {
		t.Fatal("unknown command accepted")
	}
	if _, err := decodeResponse([]byte{statusOK}); err == nil {
		t.Fatal("short response accepted")
	}
	if _, err := decodeResponse(encodeResponse(statusFault, 0)); err == nil {
		t.Fatal("fault status accepted")
	} else if !strings.Contains(err.Error(), "bus fault") {
		t.Fatalf("fault error = %v", err)
	}
}

func TestBusReadWrite(t *testing.T) {
	f := newFakeProbe()
	b := NewBus(f)

	b.Write8(0x1000, 0x5a)
	if got := b.Read8(0x1000); got != 0x5a {
		t.Fatalf("Read8 = %02x, want 5a", got)
	}

	b.Write32(0x2000, 0xcafe1234)
	if got := b.Read32(0x2000); got != 0xcafe1234 {
		t.Fatalf("Read32 = %08x, want cafe1234", got)
	}
	// Byte lanes land big-endian, the order the card decodes.
	if got := b.Read8(0x2000); got != 0xca {
		t.Fatalf("first byte lane = %02x, want ca", got)
	}
	if err := b.Err(); err != nil {
		t.Fatalf("unexpected bus error: %v", err)
	}
}

func TestBusFaultReadsAsOpenBus(t *testing.T) {
	f := newFakeProbe()
	f.faults[0x3000] = true
	b := NewBus(f)

	if got := b.Read32(0x3000); got != 0xffffffff {
		t.Fatalf("faulted Read32 = %08x, want ffffffff", got)
	}
	if got := b.Read8(0x3000); got != 0xff {
		t.Fatalf("faulted Read8 = %02x, want ff", got)
	}
	if b.Err() == nil {
		t.Fatal("fault did not record an error")
	}
}

func TestBusKeepsFirstError(t *testing.T) {
	f := newFakeProbe()
	f.faults[0x3000] = true
	b := NewBus(f)

	b.Read8(0x3000)
	first := b.Err()
	b.Write32(0x3000, 1)
	if b.Err() != first {
		t.Fatalf("later fault replaced first error: %v", b.Err())
	}
}

func TestBusHostIsRegisterOnly(t *testing.T) {
	h := NewBus(newFakeProbe()).Host()
	if h.Bus == nil || h.Clock == nil {
		t.Fatal("probe host missing bus or clock")
	}
	if h.CanDMA() {
		t.Fatal("probe host must not claim DMA capability")
	}
}
