// This file implements the descriptors as defined in the UVC spec 1.5, section 3.7.
package descriptors

import (
	"encoding/binary"
	"fmt"
	"io"
)

type VideoControlInterfaceDescriptorSubtype byte

const (
	VideoControlInterfaceDescriptorSubtypeUndefined      VideoControlInterfaceDescriptorSubtype = 0x00
	VideoControlInterfaceDescriptorSubtypeHeader         VideoControlInterfaceDescriptorSubtype = 0x01
	VideoControlInterfaceDescriptorSubtypeInputTerminal  VideoControlInterfaceDescriptorSubtype = 0x02
	VideoControlInterfaceDescriptorSubtypeOutputTerminal VideoControlInterfaceDescriptorSubtype = 0x03
	VideoControlInterfaceDescriptorSubtypeSelectorUnit   VideoControlInterfaceDescriptorSubtype = 0x04
	VideoControlInterfaceDescriptorSubtypeProcessingUnit VideoControlInterfaceDescriptorSubtype = 0x05
	VideoControlInterfaceDescriptorSubtypeExtensionUnit  VideoControlInterfaceDescriptorSubtype = 0x06
	VideoControlInterfaceDescriptorSubtypeEncodingUnit   VideoControlInterfaceDescriptorSubtype = 0x07
)

// HeaderDescriptor as defined in UVC spec 1.5, 3.7.2.1
type HeaderDescriptor struct {
	UVC                            uint16
	TotalLength                    uint16
	ClockFrequency                 uint32
	VideoStreamingInterfaceIndexes []uint8
}

func (hd *HeaderDescriptor) UnmarshalBinary(buf []byte) error {
	if len(buf) < 12 || len(buf) < int(buf[0]) {
		return io.ErrShortBuffer
	}
	if ClassSpecificDescriptorType(buf[1]) != ClassSpecificDescriptorTypeInterface {
		return ErrInvalidDescriptor
	}
	if VideoControlInterfaceDescriptorSubtype(buf[2]) != VideoControlInterfaceDescriptorSubtypeHeader {
		return ErrInvalidDescriptor
	}
	hd.UVC = binary.LittleEndian.Uint16(buf[3:5])
	hd.TotalLength = binary.LittleEndian.Uint16(buf[5:7])
	hd.ClockFrequency = binary.LittleEndian.Uint32(buf[7:11])
	n := int(buf[11])
	if len(buf) < 12+n {
		return io.ErrShortBuffer
	}
	hd.VideoStreamingInterfaceIndexes = append([]uint8(nil), buf[12:12+n]...)
	return nil
}

func (hd *HeaderDescriptor) UVCVersionString() string {
	return fmt.Sprintf("%x.%02x", hd.UVC>>8, hd.UVC&0xff)
}

// FindHeader walks the Extra bytes of a VideoControl interface and returns
// its class-specific header.
func FindHeader(extra []byte) (*HeaderDescriptor, error) {
	blocks, err := Blocks(extra)
	if err != nil && len(blocks) == 0 {
		return nil, err
	}
	for _, block := range blocks {
		if ClassSpecificDescriptorType(block[1]) != ClassSpecificDescriptorTypeInterface {
			continue
		}
		if VideoControlInterfaceDescriptorSubtype(block[2]) != VideoControlInterfaceDescriptorSubtypeHeader {
			continue
		}
		hd := &HeaderDescriptor{}
		if err := hd.UnmarshalBinary(block); err != nil {
			return nil, err
		}
		return hd, nil
	}
	return nil, fmt.Errorf("video control header not found: %w", ErrInvalidDescriptor)
}
