package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/LIV2/a4091-software/pkg/ncr"
)

var switchesCmd = &cobra.Command{
	Use:   "switches",
	Short: "Decode the rear-access DIP switches",
	RunE:  runSwitches,
}

func init() {
	rootCmd.AddCommand(switchesCmd)
}

func showDip(switches uint8, bit int) {
	state := "On"
	if switches&(1<<bit) != 0 {
		state = "Off"
	}
	fmt.Printf("  SW %d %s  ", bit+1, state)
}

func runSwitches(cmd *cobra.Command, args []string) error {
	sess, closeHost, err := openSession()
	if err != nil {
		return err
	}
	defer closeHost()

	switches := sess.Host().Bus.Read8(sess.Base() + ncr.OffsetSwitches)

	fmt.Println("A4091 Rear-access DIP switches")
	showDip(switches, 7)
	state := "Disabled"
	if switches&(1<<7) != 0 {
		state = "Enabled"
	}
	fmt.Printf("SCSI LUNs %s\n", state)
	showDip(switches, 6)
	if switches&(1<<6) != 0 {
		fmt.Println("Internal Termination On")
	} else {
		fmt.Println("External Termination Only")
	}
	showDip(switches, 5)
	mode := "Asynchronous"
	if switches&(1<<5) != 0 {
		mode = "Synchronous"
	}
	fmt.Printf("%s SCSI Mode\n", mode)
	showDip(switches, 4)
	spinup := "Long"
	if switches&(1<<4) != 0 {
		spinup = "Short"
	}
	fmt.Printf("%s Spinup\n", spinup)
	showDip(switches, 3)
	bus := "-1 Standard"
	if switches&(1<<3) != 0 {
		bus = "-2 Fast"
	}
	fmt.Printf("SCSI%s Bus Mode\n", bus)
	showDip(switches, 2)
	fmt.Printf("ADR2=%d\n", switches>>2&1)
	showDip(switches, 1)
	fmt.Printf("ADR1=%d\n", switches>>1&1)
	showDip(switches, 0)
	fmt.Printf("ADR0=%d  Controller Host ID=%x\n", switches&1, switches&7)
	return nil
}
