package datagram

import (
	"fmt"

	"github.com/sishi44/locator-ros-bridge/protocol"
)

// Control mode states, two bits per subsystem inside the mask.
const (
	ControlStateIdle = iota
	ControlStateRunning
	ControlStatePaused
	ControlStateError
)

// ControlMode is the locator's packed subsystem state word.
type ControlMode struct {
	Mask uint32
}

func (ControlMode) Kind() string { return protocol.ChannelControlMode }

// State extracts the two-bit state of subsystem i from the mask.
func (c ControlMode) State(i uint) int {
	return int(c.Mask >> (2 * i) & 0x3)
}

// ControlModeCodec codes the control mode channel: a single
// little-endian uint32 per frame.
type ControlModeCodec struct{}

func (ControlModeCodec) Kind() string { return protocol.ChannelControlMode }

func (ControlModeCodec) Decode(buf []byte) (Record, int, error) {
	r := &reader{buf: buf}
	mask := r.u32()
	if r.err != nil {
		return nil, 0, r.err
	}

	return ControlMode{Mask: mask}, r.off, nil
}

func (ControlModeCodec) Encode(rec Record) ([]byte, error) {
	cm, ok := rec.(ControlMode)
	if !ok {
		return nil, fmt.Errorf("datagram: control mode: unexpected record %T", rec)
	}

	a := &appender{}
	a.u32(cm.Mask)
	return a.buf, nil
}
