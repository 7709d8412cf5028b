// This file implements the descriptors as defined in the UVC spec 1.5, section 3.9.
package descriptors

import (
	"encoding"
	"encoding/binary"
	"io"
)

type StreamingInterface interface {
	encoding.BinaryUnmarshaler
	isStreamingInterface()
}

type VideoStreamingInterfaceDescriptorSubtype byte

const (
	VideoStreamingInterfaceDescriptorSubtypeUndefined           VideoStreamingInterfaceDescriptorSubtype = 0x00
	VideoStreamingInterfaceDescriptorSubtypeInputHeader         VideoStreamingInterfaceDescriptorSubtype = 0x01
	VideoStreamingInterfaceDescriptorSubtypeOutputHeader        VideoStreamingInterfaceDescriptorSubtype = 0x02
	VideoStreamingInterfaceDescriptorSubtypeStillImageFrame     VideoStreamingInterfaceDescriptorSubtype = 0x03
	VideoStreamingInterfaceDescriptorSubtypeFormatUncompressed  VideoStreamingInterfaceDescriptorSubtype = 0x04
	VideoStreamingInterfaceDescriptorSubtypeFrameUncompressed   VideoStreamingInterfaceDescriptorSubtype = 0x05
	VideoStreamingInterfaceDescriptorSubtypeFormatMJPEG         VideoStreamingInterfaceDescriptorSubtype = 0x06
	VideoStreamingInterfaceDescriptorSubtypeFrameMJPEG          VideoStreamingInterfaceDescriptorSubtype = 0x07
	VideoStreamingInterfaceDescriptorSubtypeFormatMPEG2TS       VideoStreamingInterfaceDescriptorSubtype = 0x0A
	VideoStreamingInterfaceDescriptorSubtypeFormatDV            VideoStreamingInterfaceDescriptorSubtype = 0x0C
	VideoStreamingInterfaceDescriptorSubtypeColorFormat         VideoStreamingInterfaceDescriptorSubtype = 0x0D
	VideoStreamingInterfaceDescriptorSubtypeFormatFrameBased    VideoStreamingInterfaceDescriptorSubtype = 0x10
	VideoStreamingInterfaceDescriptorSubtypeFrameFrameBased     VideoStreamingInterfaceDescriptorSubtype = 0x11
	VideoStreamingInterfaceDescriptorSubtypeFormatStreamBased   VideoStreamingInterfaceDescriptorSubtype = 0x12
	VideoStreamingInterfaceDescriptorSubtypeFormatH264          VideoStreamingInterfaceDescriptorSubtype = 0x13
	VideoStreamingInterfaceDescriptorSubtypeFrameH264           VideoStreamingInterfaceDescriptorSubtype = 0x14
	VideoStreamingInterfaceDescriptorSubtypeFormatH264Simulcast VideoStreamingInterfaceDescriptorSubtype = 0x15
	VideoStreamingInterfaceDescriptorSubtypeFormatVP8           VideoStreamingInterfaceDescriptorSubtype = 0x16
	VideoStreamingInterfaceDescriptorSubtypeFrameVP8            VideoStreamingInterfaceDescriptorSubtype = 0x17
	VideoStreamingInterfaceDescriptorSubtypeFormatVP8Simulcast  VideoStreamingInterfaceDescriptorSubtype = 0x18
)

// UnmarshalStreamingInterface decodes one class-specific VS descriptor.
// Formats the capture pipeline cannot stream are returned as
// *UnsupportedDescriptor rather than an error so that a device mixing MJPEG
// with H.264 still enumerates.
func UnmarshalStreamingInterface(buf []byte) (StreamingInterface, error) {
	if len(buf) < 3 {
		return nil, io.ErrShortBuffer
	}
	if ClassSpecificDescriptorType(buf[1]) != ClassSpecificDescriptorTypeInterface {
		return nil, ErrInvalidDescriptor
	}
	var desc StreamingInterface
	switch VideoStreamingInterfaceDescriptorSubtype(buf[2]) {
	case VideoStreamingInterfaceDescriptorSubtypeInputHeader:
		desc = &InputHeaderDescriptor{}
	case VideoStreamingInterfaceDescriptorSubtypeFormatMJPEG:
		desc = &MJPEGFormatDescriptor{}
	case VideoStreamingInterfaceDescriptorSubtypeFrameMJPEG:
		desc = &MJPEGFrameDescriptor{}
	case VideoStreamingInterfaceDescriptorSubtypeFormatUncompressed:
		desc = &UncompressedFormatDescriptor{}
	case VideoStreamingInterfaceDescriptorSubtypeFrameUncompressed:
		desc = &UncompressedFrameDescriptor{}
	case VideoStreamingInterfaceDescriptorSubtypeColorFormat:
		desc = &ColorMatchingDescriptor{}
	default:
		desc = &UnsupportedDescriptor{}
	}
	return desc, desc.UnmarshalBinary(buf)
}

// InputHeaderDescriptor as defined in UVC spec 1.5, 3.9.2.1
type InputHeaderDescriptor struct {
	NumFormats         uint8
	TotalLength        uint16
	EndpointAddress    uint8
	InfoBitmask        uint8
	TerminalLink       uint8
	StillCaptureMethod uint8
	TriggerSupport     uint8
	TriggerUsage       uint8
	ControlBitmasks    [][]byte
}

func (ihd *InputHeaderDescriptor) UnmarshalBinary(buf []byte) error {
	if len(buf) < 13 || len(buf) < int(buf[0]) {
		return io.ErrShortBuffer
	}
	if ClassSpecificDescriptorType(buf[1]) != ClassSpecificDescriptorTypeInterface {
		return ErrInvalidDescriptor
	}
	if VideoStreamingInterfaceDescriptorSubtype(buf[2]) != VideoStreamingInterfaceDescriptorSubtypeInputHeader {
		return ErrInvalidDescriptor
	}
	p := int(buf[3])
	ihd.NumFormats = buf[3]
	ihd.TotalLength = binary.LittleEndian.Uint16(buf[4:6])
	ihd.EndpointAddress = buf[6]
	ihd.InfoBitmask = buf[7]
	ihd.TerminalLink = buf[8]
	ihd.StillCaptureMethod = buf[9]
	ihd.TriggerSupport = buf[10]
	ihd.TriggerUsage = buf[11]
	n := int(buf[12])
	if len(buf) < 13+p*n {
		return io.ErrShortBuffer
	}
	ihd.ControlBitmasks = make([][]byte, p)
	for i := 0; i < p; i++ {
		ihd.ControlBitmasks[i] = buf[13+i*n : 13+(i+1)*n]
	}
	return nil
}

func (ihd *InputHeaderDescriptor) isStreamingInterface() {}

// ColorMatchingDescriptor as defined in UVC spec 1.5, 3.9.2.6
type ColorMatchingDescriptor struct {
	ColorPrimaries          uint8
	TransferCharacteristics uint8
	MatrixCoefficients      uint8
}

func (cmd *ColorMatchingDescriptor) UnmarshalBinary(buf []byte) error {
	if len(buf) < 6 {
		return io.ErrShortBuffer
	}
	if VideoStreamingInterfaceDescriptorSubtype(buf[2]) != VideoStreamingInterfaceDescriptorSubtypeColorFormat {
		return ErrInvalidDescriptor
	}
	cmd.ColorPrimaries = buf[3]
	cmd.TransferCharacteristics = buf[4]
	cmd.MatrixCoefficients = buf[5]
	return nil
}

func (cmd *ColorMatchingDescriptor) isStreamingInterface() {}

// UnsupportedDescriptor keeps the raw bytes of a VS descriptor with no
// decoder here.
type UnsupportedDescriptor struct {
	Subtype VideoStreamingInterfaceDescriptorSubtype
	Raw     []byte
}

func (ud *UnsupportedDescriptor) UnmarshalBinary(buf []byte) error {
	if len(buf) < 3 {
		return io.ErrShortBuffer
	}
	ud.Subtype = VideoStreamingInterfaceDescriptorSubtype(buf[2])
	ud.Raw = buf
	return nil
}

func (ud *UnsupportedDescriptor) isStreamingInterface() {}
