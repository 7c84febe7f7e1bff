// Package card owns one A4091 for the duration of a diagnostic run: the
// register access layer with its shadow-write trick, chip reset and
// SCRIPTS abort, and the ownership/interrupt takeover protocol that
// displaces a production driver and restores it on every exit path.
package card

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/LIV2/a4091-software/pkg/host"
	"github.com/LIV2/a4091-software/pkg/ncr"
)

// DriverISRName is the registered name of the production SCSI driver's
// interrupt server, used to locate it for takeover.
const DriverISRName = "NCR SCSI"

// Snapshot is the interrupt handler's capture of the four status
// registers from the most recent interrupt.
type Snapshot struct {
	Istat  uint8
	Sien   uint8
	Sstat0 uint8
	Dstat  uint8
}

// Session is one program run's view of one card. The interrupt handler
// is the only writer of the captured-status fields; the main goroutine
// only samples them, so they are plain atomics with no queueing.
type Session struct {
	// Out receives operator-facing messages (timeouts, takeover notes).
	Out io.Writer
	// Debug enables verbose progress output.
	Debug bool
	// ExitHook registers a function to run at process exit. Acquire
	// installs Release through it exactly once so the card is never
	// left owned by a dead diagnostic process.
	ExitHook func(func())

	h    *host.Host
	base uint32

	owned       bool
	cleanupOnce sync.Once
	localISR    *host.IntServer
	driverISR   *host.IntServer

	intCount atomic.Uint32
	capIstat atomic.Uint32 // ISTAT as captured by the handler
	capRest  atomic.Uint32 // SIEN<<16 | SSTAT0<<8 | DSTAT
}

// New binds a session to a card at the given board address.
func New(h *host.Host, base uint32) *Session {
	return &Session{Out: io.Discard, h: h, base: base}
}

// Host returns the platform the session runs on.
func (s *Session) Host() *host.Host { return s.h }

// Base returns the card's board address.
func (s *Session) Base() uint32 { return s.base }

func (s *Session) regAddr(reg uint32) uint32 {
	return s.base + ncr.OffsetRegisters + reg
}

// Read8 reads a chip register at its live address.
func (s *Session) Read8(reg uint32) uint8 {
	return s.h.Bus.Read8(s.regAddr(reg))
}

// Read32 reads an aligned group of chip registers.
func (s *Session) Read32(reg uint32) uint32 {
	return s.h.Bus.Read32(s.regAddr(reg))
}

// Write8 writes a chip register through the shadow alias above the live
// block, dodging the 68030 cache write-allocate defect.
func (s *Session) Write8(reg uint32, v uint8) {
	s.h.Bus.Write8(s.regAddr(reg)+ncr.ShadowOffset, v)
}

// Write32 writes an aligned register group through the shadow alias.
func (s *Session) Write32(reg uint32, v uint32) {
	s.h.Bus.Write32(s.regAddr(reg)+ncr.ShadowOffset, v)
}

// AccessTimeout reports whether budget ticks have elapsed since start,
// printing msg when they have. A clock that stepped backward is logged
// and treated as no timeout.
func (s *Session) AccessTimeout(msg string, budget, start host.Ticks) bool {
	d, ok := host.Elapsed(s.h.Clock, start)
	if !ok {
		fmt.Fprintf(s.Out, "Invalid time comparison: clock stepped backward from %d\n", start)
		return false
	}
	if int32(d) > int32(budget) {
		fmt.Fprintf(s.Out, "%s: %d ticks\n", msg, d)
		return true
	}
	return false
}

// Reset resets the 53C710 and reprograms the post-reset basics: chip
// ID, core clock selection, and the DMA watchdog.
func (s *Session) Reset() {
	s.Write8(ncr.RegDCNTL, ncr.DCNTL_EA) // allow register writes
	s.Write8(ncr.RegISTAT, ncr.ISTAT_RST)
	s.Read8(ncr.RegISTAT) // push out write
	s.Write8(ncr.RegISTAT, 0)
	s.Read8(ncr.RegISTAT)

	s.Write8(ncr.RegSCID, 1<<7)
	s.Write8(ncr.RegDCNTL, ncr.DCNTL_EA)
	s.Write8(ncr.RegDWT, 0xff) // 25MHz DMA timeout: 640ns * 0xff
}

// Abort stops the SCRIPTS processor and waits briefly for the chip to
// acknowledge.
func (s *Session) Abort() {
	istat := s.Read8(ncr.RegISTAT)
	s.Write8(ncr.RegISTAT, istat|ncr.ISTAT_ABRT)
	s.Read8(ncr.RegISTAT)

	start := s.h.Clock.Now()
	for s.Read8(ncr.RegDSTAT)&ncr.DSTAT_ABRT == 0 {
		if s.AccessTimeout("DSTAT_ABRT timeout", 2, start) {
			break
		}
	}
}

// InitSIOP prepares the chip for script execution: abort anything in
// flight, reset, select clock and burst mode, and drain stale
// interrupts.
func (s *Session) InitSIOP() {
	if s.Debug {
		fmt.Fprintln(s.Out, "Initializing SIOP")
	}
	s.Abort()
	s.Reset()

	// SCLK 37.51-50.0 MHz, 53C710 mode.
	s.Write8(ncr.RegDCNTL, ncr.DCNTL_CFD2|ncr.DCNTL_COM)
	// 8-transfer bursts, FC = 101.
	s.Write8(ncr.RegDMODE, ncr.DMODE_BurstLen8|ncr.DMODE_FC2)
	// Disable cache line bursts.
	s.Write8(ncr.RegCTEST7, s.Read8(ncr.RegCTEST7)|ncr.CTEST4_CDIS)

	start := s.h.Clock.Now()
	for {
		istat := s.Read8(ncr.RegISTAT)
		if istat&(ncr.ISTAT_SIP|ncr.ISTAT_DIP) == 0 {
			break
		}
		if istat&ncr.ISTAT_SIP != 0 {
			s.Read8(ncr.RegSSTAT0)
		}
		if istat&ncr.ISTAT_DIP != 0 {
			s.Read8(ncr.RegDSTAT)
		}
		if s.AccessTimeout("interrupt drain timeout", 30, start) {
			break
		}
		s.h.Clock.Sleep(1)
	}
}

// InterruptCount returns how many interrupts the diagnostic handler has
// captured since takeover.
func (s *Session) InterruptCount() uint32 {
	return s.intCount.Load()
}

// CapturedIstat returns the ISTAT value from the latest captured
// interrupt, zero if none since the last clear.
func (s *Session) CapturedIstat() uint8 {
	return uint8(s.capIstat.Load())
}

// ClearCapturedIstat resets the captured ISTAT ahead of a script run so
// stale completions are not mistaken for fresh ones.
func (s *Session) ClearCapturedIstat() {
	s.capIstat.Store(0)
}

// CapturedStatus returns the full status snapshot from the latest
// captured interrupt.
func (s *Session) CapturedStatus() Snapshot {
	rest := s.capRest.Load()
	return Snapshot{
		Istat:  uint8(s.capIstat.Load()),
		Sien:   uint8(rest >> 16),
		Sstat0: uint8(rest >> 8),
		Dstat:  uint8(rest),
	}
}

// irqHandler runs at interrupt priority. It captures the four status
// registers and claims only the very first interrupt after takeover;
// every later one is recorded but left for other servers on the line.
func (s *Session) irqHandler() bool {
	bus := s.h.Bus
	istat := bus.Read8(s.regAddr(ncr.RegISTAT))
	if istat&(ncr.ISTAT_DIP|ncr.ISTAT_SIP) == 0 {
		return false
	}
	sien := bus.Read8(s.regAddr(ncr.RegSIEN))
	sstat0 := bus.Read8(s.regAddr(ncr.RegSSTAT0))
	dstat := bus.Read8(s.regAddr(ncr.RegDSTAT))

	s.capIstat.Store(uint32(istat))
	s.capRest.Store(uint32(sien)<<16 | uint32(sstat0)<<8 | uint32(dstat))
	return s.intCount.Add(1) == 1
}

// Find resolves a board index to its address via the host's enumerator.
func Find(h *host.Host, index int) (uint32, error) {
	if h.Boards == nil {
		return 0, fmt.Errorf("card: this backend cannot enumerate boards")
	}
	boards := h.Boards.Boards()
	if index < 0 || index >= len(boards) {
		return 0, fmt.Errorf("card: no board at index %d (%d found)", index, len(boards))
	}
	return boards[index].Addr, nil
}
