package cmd

import (
	"github.com/spf13/cobra"
)

var killCmd = &cobra.Command{
	Use:   "kill",
	Short: "Reset the card and suspend its driver",
	Long: `Reset the 53C710 and unhook the production SCSI driver's interrupt
server without restoring it. Use this to park the card before running
other software against it; a reboot brings the driver back.`,
	RunE: runKill,
}

func init() {
	rootCmd.AddCommand(killCmd)
}

func runKill(cmd *cobra.Command, args []string) error {
	sess, closeHost, err := openSession()
	if err != nil {
		return err
	}
	defer closeHost()

	sess.KillDriver()
	return nil
}
