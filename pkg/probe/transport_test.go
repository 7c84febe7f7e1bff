package probe

import (
	"testing"
	"time"
)

func TestTransferContextDeadline(t *testing.T) {
	tr := &USBTransport{timeout: 50 * time.Millisecond}

	before := time.Now()
	ctx, cancel := tr.transferContext()
	defer cancel()

	deadline, ok := ctx.Deadline()
	if !ok {
		t.Fatal("no deadline on a transport with a timeout")
	}
	d := deadline.Sub(before)
	if d <= 0 || d > 100*time.Millisecond {
		t.Fatalf("deadline %v from now, want within the 50ms timeout", d)
	}
}

func TestTransferContextUnbounded(t *testing.T) {
	tr := &USBTransport{}

	ctx, cancel := tr.transferContext()
	defer cancel()

	if _, ok := ctx.Deadline(); ok {
		t.Fatal("zero timeout must not set a deadline")
	}
}
