package descriptors

import (
	"fmt"
	"io"
)

type StatusType uint8

const (
	StatusTypeVideoControl   StatusType = 0x01
	StatusTypeVideoStreaming StatusType = 0x02
)

// StatusPacket is a message from the VideoControl interrupt endpoint as
// defined in UVC spec 1.5, 2.4.2.2.
type StatusPacket struct {
	Type       StatusType
	Originator uint8
	Event      uint8
	Selector   uint8
	Attribute  uint8
	Value      []byte
}

func (sp *StatusPacket) UnmarshalBinary(buf []byte) error {
	if len(buf) < 3 {
		return io.ErrShortBuffer
	}
	sp.Type = StatusType(buf[0] & 0x0f)
	sp.Originator = buf[1]
	sp.Event = buf[2]
	switch sp.Type {
	case StatusTypeVideoControl:
		if len(buf) < 5 {
			return io.ErrShortBuffer
		}
		sp.Selector = buf[3]
		sp.Attribute = buf[4]
		sp.Value = buf[5:]
	case StatusTypeVideoStreaming:
		sp.Value = buf[3:]
	default:
		return fmt.Errorf("status type %d: %w", buf[0], ErrInvalidDescriptor)
	}
	return nil
}

// IsButton reports whether the packet is a VideoStreaming button event, and
// if so whether the button is now pressed.
func (sp *StatusPacket) IsButton() (pressed bool, ok bool) {
	if sp.Type != StatusTypeVideoStreaming || sp.Event != 0x00 || len(sp.Value) == 0 {
		return false, false
	}
	return sp.Value[0] != 0, true
}
