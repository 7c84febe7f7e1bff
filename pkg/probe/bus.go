package probe

import (
	"github.com/LIV2/a4091-software/pkg/host"
)

// Transactor is the one capability the bus needs from a transport:
// send one request frame, get one response frame back. USBTransport
// satisfies it; tests substitute an in-memory fake.
type Transactor interface {
	WriteRead(req []byte) ([]byte, error)
}

// Bus adapts the peek/poke wire protocol to host.Bus. The bus
// interface cannot surface errors, so a failed transaction reads as
// open bus (all ones) and drops writes, and the first error is kept
// for the caller to inspect after the fact.
type Bus struct {
	t   Transactor
	err error
}

// NewBus wraps a transactor in a Bus.
func NewBus(t Transactor) *Bus {
	return &Bus{t: t}
}

// Err returns the first transport error seen, if any.
func (b *Bus) Err() error {
	return b.err
}

func (b *Bus) transact(cmd byte, addr, value uint32) (uint32, bool) {
	resp, err := b.t.WriteRead(encodeRequest(cmd, addr, value))
	if err == nil {
		var v uint32
		v, err = decodeResponse(resp)
		if err == nil {
			return v, true
		}
	}
	if b.err == nil {
		b.err = err
	}
	return 0, false
}

func (b *Bus) Read8(addr uint32) uint8 {
	v, ok := b.transact(cmdRead8, addr, 0)
	if !ok {
		return 0xff
	}
	return uint8(v)
}

func (b *Bus) Read32(addr uint32) uint32 {
	v, ok := b.transact(cmdRead32, addr, 0)
	if !ok {
		return 0xffffffff
	}
	return v
}

func (b *Bus) Write8(addr uint32, value uint8) {
	b.transact(cmdWrite8, addr, uint32(value))
}

func (b *Bus) Write32(addr uint32, value uint32) {
	b.transact(cmdWrite32, addr, value)
}

// Host wraps the bus in a Host aggregate with a system clock. Like the
// /dev/mem window, a probe-attached card has no interrupt delivery and
// no DMA-safe memory, so only register-level tests can run.
func (b *Bus) Host() *host.Host {
	return &host.Host{Bus: b, Clock: host.NewSystemClock()}
}
