package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestCommandsE2E runs each subcommand against the simulator backend.
func TestCommandsE2E(t *testing.T) {
	scriptFile := filepath.Join(t.TempDir(), "copy.ss")
	src := "; copy 16 bytes and stop\nmove memory 0x10, 0x07100000, 0x07100100\nint 0x42\n"
	if err := os.WriteFile(scriptFile, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name        string
		args        []string
		wantErr     bool
		wantContain []string
	}{
		{
			name: "list boards",
			args: []string{"list"},
			wantContain: []string{
				"Index Address  Size",
				"40000000",
			},
		},
		{
			name: "register dump",
			args: []string{"regs"},
			wantContain: []string{
				"Reg    Value  Name     Description",
				"SCNTL0",
				"SCRATCH",
				"Interrupt Status",
			},
		},
		{
			name: "autoconfig decode",
			args: []string{"config"},
			wantContain: []string{
				"A4091 Autoconfig area",
				"ZorroIII",
				"Size=16 MB",
				"Autoboot",
				"Product=0x54",
				"Manufacturer=0x0202",
			},
		},
		{
			name: "switch decode",
			args: []string{"switches"},
			wantContain: []string{
				"A4091 Rear-access DIP switches",
				"SCSI LUNs Enabled",
				"Internal Termination On",
				"Asynchronous SCSI Mode",
				"Controller Host ID=7",
			},
		},
		{
			name: "access tests",
			args: []string{"test", "--mask", "0x03"},
			wantContain: []string{
				"Device access:",
				"Register test:",
				"PASS",
			},
		},
		{
			name: "ad-hoc dma",
			args: []string{"dma", "0x07100000", "0x07200000", "0x100"},
			wantContain: []string{
				"DMA 07100000 -> 07200000 len 100 complete",
			},
		},
		{
			name: "script run",
			args: []string{"script", scriptFile},
			wantContain: []string{
				"Script complete",
			},
		},
		{
			name: "kill driver",
			args: []string{"kill"},
			wantContain: []string{
				`Removed 1 "NCR SCSI" interrupt server(s)`,
			},
		},
		{
			name:    "bad backend",
			args:    []string{"regs", "--backend", "nonesuch"},
			wantErr: true,
		},
		{
			name:    "bad mask",
			args:    []string{"test", "--mask", "zap"},
			wantErr: true,
		},
		{
			name:    "board index out of range",
			args:    []string{"regs", "--card", "5"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Capture stdout
			old := os.Stdout
			r, w, _ := os.Pipe()
			os.Stdout = w

			var buf bytes.Buffer
			done := make(chan struct{})
			go func() {
				buf.ReadFrom(r)
				close(done)
			}()

			// Reset flags and state between tests
			backend = "sim"
			cardAddr = "0"
			debug = false
			testMask = "0"
			testLoop = false
			exitCode = 0

			rootCmd.SetArgs(tt.args)
			err := rootCmd.Execute()

			w.Close()
			os.Stdout = old
			<-done

			output := buf.String()

			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected error but got none\nOutput: %s", output)
				}
				return
			}
			if err != nil {
				t.Errorf("Unexpected error: %v\nOutput: %s", err, output)
				return
			}
			if exitCode != 0 {
				t.Errorf("exit code %d\nOutput: %s", exitCode, output)
			}
			for _, want := range tt.wantContain {
				if !strings.Contains(output, want) {
					t.Errorf("Output missing expected string: %q\nGot:\n%s", want, output)
				}
			}
		})
	}
}
