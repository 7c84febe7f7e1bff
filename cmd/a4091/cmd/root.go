package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"sync"

	"github.com/spf13/cobra"

	"github.com/LIV2/a4091-software/pkg/card"
	"github.com/LIV2/a4091-software/pkg/host"
	"github.com/LIV2/a4091-software/pkg/probe"
	"github.com/LIV2/a4091-software/pkg/sim"
)

var (
	// Global flags
	backend  string
	cardAddr string
	debug    bool
)

// exitCode accumulates per-command failure counts so the process exit
// status mirrors the number of detected faults.
var exitCode int

var rootCmd = &cobra.Command{
	Use:   "a4091",
	Short: "A4091 SCSI Controller Diagnostic",
	Long: `Register-level diagnostic for the A4091 Zorro III SCSI host adapter
and its NCR 53C710 SCSI I/O processor.

The tool takes over the card from any running driver, exercises it at
the register and DMA level, and restores the driver afterward.

Examples:
  a4091 list                                 # Show installed A4091 cards
  a4091 test                                 # Run the full diagnostic suite
  a4091 test --mask 0x03 --loop              # Loop access tests until failure
  a4091 regs --backend devmem --card 0x40000000
  a4091 dma 0x07000000 0x07100000 0x1000     # One ad-hoc DMA copy`,
	Version: "1.0.0",
}

// Execute runs the root command
func Execute() {
	err := rootCmd.Execute()
	runExitHooks()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&backend, "backend", "b", "sim",
		"host backend (sim, devmem, probe)")
	rootCmd.PersistentFlags().StringVarP(&cardAddr, "card", "c", "0",
		"card index, or physical address if above 0x10")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false,
		"debug output")
}

// Exit hooks run once, on normal exit or on SIGINT, so the card is
// never left owned by a dead process.
var (
	exitHookMu sync.Mutex
	exitHooks  []func()
)

func registerExitHook(fn func()) {
	exitHookMu.Lock()
	exitHooks = append(exitHooks, fn)
	exitHookMu.Unlock()
}

func runExitHooks() {
	exitHookMu.Lock()
	hooks := exitHooks
	exitHooks = nil
	exitHookMu.Unlock()
	for i := len(hooks) - 1; i >= 0; i-- {
		hooks[i]()
	}
}

// signalContext returns a context cancelled by the first SIGINT. The
// second signal bypasses the orderly path: hooks run and the process
// exits immediately.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, os.Interrupt)
	go func() {
		<-ch
		fmt.Println("^C Abort")
		cancel()
		<-ch
		runExitHooks()
		os.Exit(1)
	}()
	return ctx, cancel
}

// cardWindowSize covers autoconfig, registers and the switch byte.
const cardWindowSize = 0x01000000

// openHost builds the selected backend's Host aggregate. The returned
// cleanup releases backend resources (not card ownership, which is the
// session's job).
func openHost() (*host.Host, func(), error) {
	switch backend {
	case "sim", "simulator":
		machine := sim.New()
		machine.InstallDriver()
		return machine.Host(), func() {}, nil

	case "devmem":
		base, err := resolveRawAddr()
		if err != nil {
			return nil, nil, err
		}
		window, err := host.MapDevMem(base, cardWindowSize)
		if err != nil {
			return nil, nil, err
		}
		return window.Host(), func() { window.Close() }, nil

	case "probe", "usb":
		transport, err := probe.NewUSBTransport(probe.DefaultVID, probe.DefaultPID)
		if err != nil {
			return nil, nil, err
		}
		return probe.NewBus(transport).Host(), func() { transport.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown backend %q (sim, devmem, probe)", backend)
	}
}

// resolveRawAddr parses --card as a physical address. Backends without
// board enumeration need the address given explicitly.
func resolveRawAddr() (uint32, error) {
	v, err := strconv.ParseUint(cardAddr, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("bad card address %q: %w", cardAddr, err)
	}
	if v <= 0x10 {
		return 0, fmt.Errorf("backend %s needs a physical card address, not an index", backend)
	}
	return uint32(v), nil
}

// resolveBase turns --card into a board base address: values above 0x10
// are physical addresses, smaller values index the enumerated boards.
func resolveBase(h *host.Host) (uint32, error) {
	v, err := strconv.ParseUint(cardAddr, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("bad card address %q: %w", cardAddr, err)
	}
	if v > 0x10 {
		return uint32(v), nil
	}
	return card.Find(h, int(v))
}

// openSession opens the backend and binds a card session to it.
func openSession() (*card.Session, func(), error) {
	h, closeHost, err := openHost()
	if err != nil {
		return nil, nil, err
	}
	base, err := resolveBase(h)
	if err != nil {
		closeHost()
		return nil, nil, err
	}
	sess := card.New(h, base)
	sess.Out = os.Stdout
	sess.Debug = debug
	sess.ExitHook = registerExitHook
	return sess, closeHost, nil
}
