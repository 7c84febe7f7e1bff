// Package probe drives a card sitting behind a USB debug probe: a
// small vendor-specific device that bridges bulk transfers to single
// peek/poke cycles on the card's local bus. Only register-level tests
// can run this way; the probe has no interrupt forwarding and no
// DMA-reachable memory.
package probe

import (
	"context"
	"fmt"
	"time"

	"github.com/google/gousb"
)

const (
	// pid.codes open-source allocation for the bus probe firmware.
	DefaultVID = 0x1209
	DefaultPID = 0xa091

	// Default packet size for bulk transfers
	DefaultPacketSize = 64

	// Default timeout for USB operations
	DefaultTimeout = 5 * time.Second
)

// USBTransport implements the framed request/response transport over
// USB bulk endpoints.
type USBTransport struct {
	ctx        *gousb.Context
	dev        *gousb.Device
	intf       *gousb.Interface
	epOut      *gousb.OutEndpoint
	epIn       *gousb.InEndpoint
	packetSize int
	timeout    time.Duration
	vid        uint16
	pid        uint16
}

// NewUSBTransport creates a new USB transport for the given VID/PID
func NewUSBTransport(vid, pid uint16) (*USBTransport, error) {
	t := &USBTransport{
		vid:        vid,
		pid:        pid,
		packetSize: DefaultPacketSize,
		timeout:    DefaultTimeout,
	}

	// Initialize USB context
	t.ctx = gousb.NewContext()

	// Find and open the device
	dev, err := t.ctx.OpenDeviceWithVIDPID(gousb.ID(vid), gousb.ID(pid))
	if err != nil {
		t.ctx.Close()
		return nil, fmt.Errorf("failed to open device %04x:%04x: %w", vid, pid, err)
	}
	if dev == nil {
		t.ctx.Close()
		return nil, fmt.Errorf("device %04x:%04x not found", vid, pid)
	}
	t.dev = dev

	// Detach kernel driver if needed (Linux); non-fatal elsewhere
	_ = dev.SetAutoDetach(true)

	// Claim the interface
	if err := t.claimInterface(); err != nil {
		t.Close()
		return nil, err
	}

	return t, nil
}

// claimInterface finds and claims the vendor-specific interface
func (t *USBTransport) claimInterface() error {
	cfg, err := t.dev.Config(1)
	if err != nil {
		return fmt.Errorf("failed to get config: %w", err)
	}

	// Find the vendor-specific interface
	var intfNum int = -1
	for _, ifDesc := range cfg.Desc.Interfaces {
		for _, alt := range ifDesc.AltSettings {
			if alt.Class == gousb.ClassVendorSpec {
				intfNum = ifDesc.Number
				break
			}
		}
		if intfNum >= 0 {
			break
		}
	}

	if intfNum < 0 {
		// Fall back to interface 0
		intfNum = 0
	}

	intf, err := cfg.Interface(intfNum, 0)
	if err != nil {
		return fmt.Errorf("failed to claim interface %d: %w", intfNum, err)
	}
	t.intf = intf

	return t.findEndpoints()
}

// findEndpoints locates the bulk IN/OUT endpoint pair
func (t *USBTransport) findEndpoints() error {
	setting := t.intf.Setting

	var outAddr int
	for _, ep := range setting.Endpoints {
		if ep.TransferType == gousb.TransferTypeBulk {
			if ep.Direction == gousb.EndpointDirectionOut {
				outAddr = ep.Number
				break
			}
		}
	}
	if outAddr == 0 {
		return fmt.Errorf("bulk OUT endpoint not found")
	}

	var inAddr int
	for _, ep := range setting.Endpoints {
		if ep.TransferType == gousb.TransferTypeBulk {
			if ep.Direction == gousb.EndpointDirectionIn {
				inAddr = ep.Number
				t.packetSize = ep.MaxPacketSize
				break
			}
		}
	}
	if inAddr == 0 {
		return fmt.Errorf("bulk IN endpoint not found")
	}

	epOut, err := t.intf.OutEndpoint(outAddr)
	if err != nil {
		return fmt.Errorf("failed to open OUT endpoint: %w", err)
	}
	t.epOut = epOut

	epIn, err := t.intf.InEndpoint(inAddr)
	if err != nil {
		return fmt.Errorf("failed to open IN endpoint: %w", err)
	}
	t.epIn = epIn

	return nil
}

// transferContext bounds a single bulk transfer by the configured
// timeout. A zero timeout leaves the transfer unbounded.
func (t *USBTransport) transferContext() (context.Context, context.CancelFunc) {
	if t.timeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), t.timeout)
}

// WriteRead performs one request/response transaction. Frames are
// padded to the endpoint packet size on the wire.
func (t *USBTransport) WriteRead(req []byte) ([]byte, error) {
	packet := make([]byte, t.packetSize)
	copy(packet, req)

	ctx, cancel := t.transferContext()
	defer cancel()

	if _, err := t.epOut.WriteContext(ctx, packet); err != nil {
		return nil, fmt.Errorf("USB write failed: %w", err)
	}

	resp := make([]byte, t.packetSize)
	n, err := t.epIn.ReadContext(ctx, resp)
	if err != nil {
		return nil, fmt.Errorf("USB read failed: %w", err)
	}
	return resp[:n], nil
}

// SetTimeout sets the read/write timeout for bulk transfers.
func (t *USBTransport) SetTimeout(timeout time.Duration) {
	t.timeout = timeout
}

// Close releases USB resources
func (t *USBTransport) Close() error {
	if t.intf != nil {
		t.intf.Close()
		t.intf = nil
	}
	if t.dev != nil {
		t.dev.Close()
		t.dev = nil
	}
	if t.ctx != nil {
		t.ctx.Close()
		t.ctx = nil
	}
	return nil
}
