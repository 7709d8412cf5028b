package descriptors

import (
	"io"

	"github.com/kevmo314/go-uvcmanager/pkg/formats"
)

// UncompressedFormatDescriptor as defined in the UVC uncompressed payload
// spec 1.5, 3.1.1
type UncompressedFormatDescriptor struct {
	FormatIndex           uint8
	NumFrameDescriptors   uint8
	GUIDFormat            formats.CompressionFormat
	BitsPerPixel          uint8
	DefaultFrameIndex     uint8
	AspectRatioX          uint8
	AspectRatioY          uint8
	InterlaceFlagsBitmask uint8
	CopyProtect           uint8
}

func (ufd *UncompressedFormatDescriptor) UnmarshalBinary(buf []byte) error {
	if len(buf) < 27 || len(buf) < int(buf[0]) {
		return io.ErrShortBuffer
	}
	if ClassSpecificDescriptorType(buf[1]) != ClassSpecificDescriptorTypeInterface {
		return ErrInvalidDescriptor
	}
	if VideoStreamingInterfaceDescriptorSubtype(buf[2]) != VideoStreamingInterfaceDescriptorSubtypeFormatUncompressed {
		return ErrInvalidDescriptor
	}
	ufd.FormatIndex = buf[3]
	ufd.NumFrameDescriptors = buf[4]
	copyGUID(ufd.GUIDFormat[:], buf[5:21])
	ufd.BitsPerPixel = buf[21]
	ufd.DefaultFrameIndex = buf[22]
	ufd.AspectRatioX = buf[23]
	ufd.AspectRatioY = buf[24]
	ufd.InterlaceFlagsBitmask = buf[25]
	ufd.CopyProtect = buf[26]
	return nil
}

func (ufd *UncompressedFormatDescriptor) FourCC() ([4]byte, error) {
	return ufd.GUIDFormat.FourCC()
}

func (ufd *UncompressedFormatDescriptor) Index() uint8 { return ufd.FormatIndex }

func (ufd *UncompressedFormatDescriptor) isStreamingInterface() {}

func (ufd *UncompressedFormatDescriptor) isFormatDescriptor() {}

type UncompressedFrameDescriptor struct {
	frameFields
}

func (ufd *UncompressedFrameDescriptor) UnmarshalBinary(buf []byte) error {
	return ufd.unmarshal(buf, VideoStreamingInterfaceDescriptorSubtypeFrameUncompressed)
}

func (ufd *UncompressedFrameDescriptor) isStreamingInterface() {}

func (ufd *UncompressedFrameDescriptor) isFrameDescriptor() {}
