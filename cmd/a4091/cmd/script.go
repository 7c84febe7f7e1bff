package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/LIV2/a4091-software/pkg/script"
)

var scriptCmd = &cobra.Command{
	Use:   "script <file>",
	Short: "Assemble and run a SCRIPTS program on the card",
	Long: `Assemble a small SCRIPTS source file and execute it on the 53C710.

The assembler accepts one statement per line, ';' comments, and three
instructions:

  move memory <len>, <src>, <dst>
  int <code>
  nop

A terminating 'int' is appended when the program does not end with one.

Example:
  a4091 script copy.ss`,
	Args: cobra.ExactArgs(1),
	RunE: runScript,
}

func init() {
	rootCmd.AddCommand(scriptCmd)
}

func runScript(cmd *cobra.Command, args []string) error {
	parser, err := script.NewParser()
	if err != nil {
		return err
	}
	prog, err := parser.ParseFile(args[0])
	if err != nil {
		return err
	}
	words, err := prog.Assemble()
	if err != nil {
		return err
	}
	if debug {
		for i, w := range words {
			fmt.Printf("  %2d: %08x\n", i, w)
		}
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
	defer sess.Release()

	if err := eng.Run(words); err != nil {
		exitCode++
		return fmt.Errorf("script %s: %w", args[0], err)
	}
	fmt.Printf("Script complete, %d interrupt(s)\n", sess.InterruptCount())
	return nil
}
