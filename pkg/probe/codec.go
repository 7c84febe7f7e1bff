package probe

import (
	"encoding/binary"
	"fmt"
)

// Wire protocol: one fixed-size request frame per bus access, one
// fixed-size response frame back. All multi-byte fields big-endian,
// matching the byte order the card itself decodes.
//
//	request:  cmd(1) addr(4) value(4)    value is zero for reads
//	response: status(1) value(4)         value is zero for writes
const (
	cmdRead8   = 0x01
	cmdRead32  = 0x02
	cmdWrite8  = 0x81
	cmdWrite32 = 0x82

	statusOK    = 0x00
	statusFault = 0x01

	requestSize  = 9
	responseSize = 5
)

// encodeRequest builds one request frame. Never fails: the command set
// is closed and addresses are full 32-bit.
func encodeRequest(cmd byte, addr, value uint32) []byte {
	frame := make([]byte, requestSize)
	frame[0] = cmd
	binary.BigEndian.PutUint32(frame[1:5], addr)
	binary.BigEndian.PutUint32(frame[5:9], value)
	return frame
}

// decodeRequest parses one request frame. The probe firmware side of
// the protocol; kept here so the codec round-trips in one place.
func decodeRequest(frame []byte) (cmd byte, addr, value uint32, err error) {
	if len(frame) < requestSize {
		return 0, 0, 0, fmt.Errorf("probe: short request frame: %d bytes", len(frame))
	}
	switch frame[0] {
	case cmdRead8, cmdRead32, cmdWrite8, cmdWrite32:
	default:
		return 0, 0, 0, fmt.Errorf("probe: unknown command %02x", frame[0])
	}
	return frame[0], binary.BigEndian.Uint32(frame[1:5]), binary.BigEndian.Uint32(frame[5:9]), nil
}

// encodeResponse builds one response frame.
func encodeResponse(status byte, value uint32) []byte {
	frame := make([]byte, responseSize)
	frame[0] = status
	binary.BigEndian.PutUint32(frame[1:5], value)
	return frame
}

// decodeResponse parses one response frame and surfaces a remote bus
// fault as an error.
func decodeResponse(frame []byte) (uint32, error) {
	if len(frame) < responseSize {
		return 0, fmt.Errorf("probe: short response frame: %d bytes", len(frame))
	}
	if frame[0] != statusOK {
		return 0, fmt.Errorf("probe: remote bus fault (status %02x)", frame[0])
	}
	return binary.BigEndian.Uint32(frame[1:5]), nil
}
