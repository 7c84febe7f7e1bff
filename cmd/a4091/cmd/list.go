package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List installed A4091 cards",
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	h, closeHost, err := openHost()
	if err != nil {
		return err
	}
	defer closeHost()

	if h.Boards == nil {
		return fmt.Errorf("backend %s cannot enumerate boards", backend)
	}
	boards := h.Boards.Boards()
	if len(boards) == 0 {
		fmt.Println("No A4091 cards detected")
		exitCode++
		return nil
	}

	fmt.Println("  Index Address  Size     Flags")
	for i, b := range boards {
		fmt.Printf("  %-3d   %08x %08x", i, b.Addr, b.Size)
		if b.ShutUp {
			fmt.Print(" ShutUp")
		}
		if b.ConfigMe {
			fmt.Print(" ConfigMe")
		}
		if b.BoundTo != "" {
			fmt.Printf(" Bound to %s", b.BoundTo)
		}
		fmt.Println()
	}
	return nil
}
