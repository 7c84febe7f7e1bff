package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/LIV2/a4091-software/pkg/ncr"
)

var regsCmd = &cobra.Command{
	Use:   "regs",
	Short: "Dump the 53C710 registers with bit decode",
	Long: `Read and display every 53C710 register with its name, description
and decoded bit names. The two FIFO ports are skipped because reading
them pops data.`,
	RunE: runRegs,
}

func init() {
	rootCmd.AddCommand(regsCmd)
}

func runRegs(cmd *cobra.Command, args []string) error {
	sess, closeHost, err := openSession()
	if err != nil {
		return err
	}
	defer closeHost()

	fmt.Println("  Reg    Value  Name     Description")
	for _, def := range ncr.RegDefs {
		if !def.Show {
			continue
		}
		var value uint32
		if def.Size == 1 {
			value = uint32(sess.Read8(def.Offset))
		} else {
			value = sess.Read32(def.Offset &^ 3)
			value &= 0xffffffff >> ((def.Offset & 3) * 8)
		}
		fmt.Printf("   %02x %s%0*x  %-8s %s%s\n",
			def.Offset,
			strings.Repeat(" ", (4-def.Size)*2),
			def.Size*2, value,
			def.Name, def.Desc,
			ncr.FormatBits(def.Bits, value))
	}
	return nil
}
