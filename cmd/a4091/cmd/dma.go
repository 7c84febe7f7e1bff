package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/LIV2/a4091-software/pkg/script"
)

var dmaCmd = &cobra.Command{
	Use:   "dma <src> <dst> <len>",
	Short: "Perform one DMA memory copy through the card",
	Long: `Drive a single SCRIPTS memory-to-memory move between two physical
addresses. Both buffers must be DMA-reachable; caches are maintained
around the transfer.

Example:
  a4091 dma 0x07000000 0x07100000 0x1000`,
	Args: cobra.ExactArgs(3),
	RunE: runDMA,
}

func init() {
	rootCmd.AddCommand(dmaCmd)
}

func parseArg32(name, s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("bad %s %q: %w", name, s, err)
	}
	return uint32(v), nil
}

func runDMA(cmd *cobra.Command, args []string) error {
	src, err := parseArg32("source", args[0])
	if err != nil {
		return err
	}
	dst, err := parseArg32("destination", args[1])
	if err != nil {
		return err
	}
	length, err := parseArg32("length", args[2])
	if err != nil {
		return err
	}

	sess, closeHost, err := openSession()
	if err != nil {
		return err
	}
	defer closeHost()

	eng, err := script.NewEngine(sess)
	if err != nil {
		return err
	}
	defer eng.Close()

	sess.Acquire()
	defer sess.Release()
	sess.InitSIOP()

	h := sess.Host()
	h.CachePreDMA(src, length, true)
	h.CachePreDMA(dst, length, false)
	err = eng.MemMove(src, dst, length)
	h.CachePostDMA(dst, length, false)
	if err != nil {
		exitCode++
		return fmt.Errorf("DMA %08x -> %08x len %x: %w", src, dst, length, err)
	}
	fmt.Printf("DMA %08x -> %08x len %x complete\n", src, dst, length)
	return nil
}
