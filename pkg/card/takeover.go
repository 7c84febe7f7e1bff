package card

import (
	"fmt"

	"github.com/LIV2/a4091-software/pkg/host"
	"github.com/LIV2/a4091-software/pkg/ncr"
)

// Acquire takes ownership of the card: it installs the diagnostic
// interrupt handler, unhooks the production driver's, and soft-resets
// the chip so no half-finished SCRIPTS operation survives into the
// tests. The first call registers Release with the exit hook; repeat
// calls while owned are no-ops.
func (s *Session) Acquire() {
	s.cleanupOnce.Do(func() {
		if s.ExitHook != nil {
			s.ExitHook(s.Release)
		}
	})
	if s.owned {
		return
	}
	s.owned = true

	s.installHandler()
	s.unhookDriver()

	istat := s.Read8(ncr.RegISTAT)
	if s.Debug {
		fmt.Fprintf(s.Out, "Taking over card, ISTAT=%02x\n", istat)
	}

	// Soft reset the SIOP core first, then hold reset until the chip
	// reads it back, so a wedged chip cannot ignore the takeover.
	s.Write8(ncr.RegISTAT, istat|ncr.ISTAT_RST)
	s.Read8(ncr.RegISTAT)
	s.Write8(ncr.RegISTAT, istat)
	s.Read8(ncr.RegISTAT)

	s.Write8(ncr.RegISTAT, istat|ncr.ISTAT_RST)
	start := s.h.Clock.Now()
	for s.Read8(ncr.RegISTAT)&ncr.ISTAT_RST == 0 {
		if s.AccessTimeout("ISTAT_RST timeout", 2, start) {
			break
		}
	}
	s.Write8(ncr.RegISTAT, istat&^ncr.ISTAT_RST)
}

// Release returns the card: chip reset, driver handler back on the
// line, diagnostic handler off. Safe to call any number of times and
// from the exit hook after a failed run.
func (s *Session) Release() {
	if !s.owned {
		return
	}
	s.owned = false

	s.Reset()
	s.rehookDriver()
	s.removeHandler()

	if s.Debug {
		snap := s.CapturedStatus()
		fmt.Fprintf(s.Out, "Released card after %d interrupts, last ISTAT=%02x SIEN=%02x SSTAT0=%02x DSTAT=%02x\n",
			s.intCount.Load(), snap.Istat, snap.Sien, snap.Sstat0, snap.Dstat)
	}
}

// Owned reports whether the session currently holds the card.
func (s *Session) Owned() bool { return s.owned }

// KillDriver resets the chip and permanently unhooks the production
// driver's interrupt handler. Unlike Acquire it does not take
// ownership, so nothing restores the driver on exit.
func (s *Session) KillDriver() {
	s.Reset()
	n := s.unhookDriver()
	fmt.Fprintf(s.Out, "Removed %d %q interrupt server(s)\n", n, DriverISRName)
}

func (s *Session) installHandler() {
	if s.h.Ints == nil || s.localISR != nil {
		return
	}
	s.localISR = &host.IntServer{
		Name: "A4091 test",
		Pri:  ncr.IntPri,
		Code: s.irqHandler,
	}
	s.h.Ints.Add(s.localISR)
}

func (s *Session) removeHandler() {
	if s.localISR == nil {
		return
	}
	s.h.Ints.Remove(s.localISR)
	s.localISR = nil
}

// unhookDriver scans the interrupt line for the production driver's
// server and removes it, remembering the last match so Release can put
// it back. Returns how many servers were removed.
func (s *Session) unhookDriver() int {
	if s.h.Ints == nil {
		return 0
	}
	removed := 0
	for _, srv := range s.h.Ints.Servers() {
		if srv.Name != DriverISRName {
			continue
		}
		if s.Debug {
			fmt.Fprintf(s.Out, "Unhooking %q pri=%d\n", srv.Name, srv.Pri)
		}
		s.h.Ints.Remove(srv)
		s.driverISR = srv
		removed++
	}
	return removed
}

func (s *Session) rehookDriver() {
	if s.driverISR == nil || s.h.Ints == nil {
		return
	}
	s.h.Ints.Add(s.driverISR)
	s.driverISR = nil
}
