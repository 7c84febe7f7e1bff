package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/LIV2/a4091-software/pkg/ncr"
)

var z2ConfigSizes = []string{
	"8 MB", "64 KB", "128 KB", "256 KB", "512KB", "1MB", "2MB", "4MB",
}

var z3ConfigSizes = []string{
	"16 MB", "32 MB", "64 MB", "128 MB", "256 MB", "512 MB", "1 GB", "RSVD",
}

var configSubsizes = []string{
	"Same-as-Physical", "Automatically-sized", "64 KB", "128 KB",
	"256 KB", "512 KB", "1MB", "2MB",
	"4MB", "6MB", "8MB", "10MB", "12MB", "14MB", "Rsvd1", "Rsvd2",
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Decode the card's autoconfig area",
	Long: `Read and decode the Zorro autoconfig header: board type and size,
product and manufacturer IDs, serial number, and option ROM vector.
Reserved registers are checked for zero; each nonzero one counts as a
failure.`,
	RunE: runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfig(cmd *cobra.Command, args []string) error {
	sess, closeHost, err := openSession()
	if err != nil {
		return err
	}
	defer closeHost()

	bus := sess.Host().Bus
	base := sess.Base()
	creg := func(reg uint32) uint8 {
		return ncr.ConfigReg(bus.Read8, base, reg)
	}
	show := func(reg uint32) uint8 {
		v := creg(reg)
		fmt.Printf("   %02x   %02x", reg, v)
		return v
	}
	reserved := func(reg uint32) int {
		if v := creg(reg); v != 0x00 {
			fmt.Printf("   %02x   %02x Reserved: should be 0x00\n", reg, v)
			return 1
		}
		return 0
	}

	rc := 0
	fmt.Println("A4091 Autoconfig area")
	fmt.Println("  Reg Data Decode")

	// The type register decodes from its complement.
	value := ^show(0x00)
	isZ3 := false
	isAutoboot := false
	switch value >> 6 {
	case 2:
		fmt.Print(" ZorroIII")
		isZ3 = true
	case 3:
		fmt.Print(" ZorroII")
	default:
		fmt.Print(" Zorro_Reserved")
	}
	if value&(1<<5) != 0 {
		fmt.Print(" Memory")
	}
	sizes := z2ConfigSizes
	if isZ3 && creg(0x08)&(1<<5) != 0 {
		sizes = z3ConfigSizes
	}
	fmt.Printf(" Size=%s", sizes[value&0x7])
	if value&(1<<4) != 0 {
		fmt.Print(" Autoboot")
		isAutoboot = true
	}
	if value&(1<<3) != 0 {
		fmt.Print(" Link-to-next")
	}
	fmt.Println()

	fmt.Printf(" Product=0x%02x\n", show(0x04))

	value = show(0x08)
	if isZ3 {
		if value&(1<<7) != 0 {
			fmt.Print(" Device-Memory")
			rc++ // not expected on this board
		} else {
			fmt.Print(" Device-IO")
		}
	} else {
		rc++
		if value&(1<<7) != 0 {
			fmt.Print(" Fit-ZorroII")
		} else {
			fmt.Print(" Fit-anywhere")
		}
	}
	if value&(1<<5) != 0 {
		fmt.Print(" NoShutup")
	}
	if isZ3 && value&(1<<4) == 0 {
		fmt.Print(" Invalid_RSVD")
	}
	if value&(1<<5) != 0 {
		fmt.Print(" SizeExt")
	}
	fmt.Printf(" %s\n", configSubsizes[value&0x0f])

	rc += reserved(0x0c)

	mfg := uint32(show(0x10)) << 8
	fmt.Println(" Mfg Number high byte")
	mfg |= uint32(show(0x14))
	fmt.Printf(" Mfg Number low byte    Manufacturer=0x%04x\n", mfg)

	var serial uint32
	for b := 0; b < 4; b++ {
		serial = serial<<8 | uint32(show(uint32(0x18+b*4)))
		fmt.Printf(" Serial number byte %d", b)
		if b == 3 {
			fmt.Printf("   Serial=0x%08x", serial)
		}
		fmt.Println()
	}

	if isAutoboot {
		rom := uint32(show(0x28)) << 8
		fmt.Println(" Option ROM vector high")
		rom |= uint32(show(0x2c))
		fmt.Printf(" Option ROM vector low  Offset=0x%04x\n", rom)
	}

	for reg := uint32(0x30); reg <= 0x3c; reg += 4 {
		rc += reserved(reg)
	}
	for reg := uint32(0x52); reg <= 0x7c; reg += 4 {
		rc += reserved(reg)
	}

	exitCode += rc
	return nil
}
