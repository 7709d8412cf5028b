package descriptors

import (
	"encoding/binary"
	"io"
	"time"
)

// MJPEGFormatDescriptor as defined in the UVC MJPEG payload spec 1.5, 3.1.1
type MJPEGFormatDescriptor struct {
	FormatIndex                uint8
	NumFrameDescriptors        uint8
	Flags                      uint8
	DefaultFrameIndex          uint8
	AspectRatioX, AspectRatioY uint8
	InterlaceFlags             uint8
	CopyProtect                uint8
}

func (mfd *MJPEGFormatDescriptor) UnmarshalBinary(buf []byte) error {
	if len(buf) < 11 || len(buf) < int(buf[0]) {
		return io.ErrShortBuffer
	}
	if ClassSpecificDescriptorType(buf[1]) != ClassSpecificDescriptorTypeInterface {
		return ErrInvalidDescriptor
	}
	if VideoStreamingInterfaceDescriptorSubtype(buf[2]) != VideoStreamingInterfaceDescriptorSubtypeFormatMJPEG {
		return ErrInvalidDescriptor
	}
	mfd.FormatIndex = buf[3]
	mfd.NumFrameDescriptors = buf[4]
	mfd.Flags = buf[5]
	mfd.DefaultFrameIndex = buf[6]
	mfd.AspectRatioX = buf[7]
	mfd.AspectRatioY = buf[8]
	mfd.InterlaceFlags = buf[9]
	mfd.CopyProtect = buf[10]
	return nil
}

func (mfd *MJPEGFormatDescriptor) Index() uint8 { return mfd.FormatIndex }

func (mfd *MJPEGFormatDescriptor) isStreamingInterface() {}

func (mfd *MJPEGFormatDescriptor) isFormatDescriptor() {}

// frameFields is the layout shared by the MJPEG and uncompressed frame
// descriptors.
type frameFields struct {
	FrameIndex              uint8
	Capabilities            uint8
	Width, Height           uint16
	MinBitRate, MaxBitRate  uint32
	MaxVideoFrameBufferSize uint32
	DefaultFrameInterval    time.Duration

	ContinuousFrameInterval struct {
		MinFrameInterval, MaxFrameInterval, FrameIntervalStep time.Duration
	}
	DiscreteFrameIntervals []time.Duration
}

func interval(buf []byte) time.Duration {
	return time.Duration(binary.LittleEndian.Uint32(buf)) * 100 * time.Nanosecond
}

func (f *frameFields) unmarshal(buf []byte, subtype VideoStreamingInterfaceDescriptorSubtype) error {
	if len(buf) < 26 || len(buf) < int(buf[0]) {
		return io.ErrShortBuffer
	}
	if ClassSpecificDescriptorType(buf[1]) != ClassSpecificDescriptorTypeInterface {
		return ErrInvalidDescriptor
	}
	if VideoStreamingInterfaceDescriptorSubtype(buf[2]) != subtype {
		return ErrInvalidDescriptor
	}
	f.FrameIndex = buf[3]
	f.Capabilities = buf[4]
	f.Width = binary.LittleEndian.Uint16(buf[5:7])
	f.Height = binary.LittleEndian.Uint16(buf[7:9])
	f.MinBitRate = binary.LittleEndian.Uint32(buf[9:13])
	f.MaxBitRate = binary.LittleEndian.Uint32(buf[13:17])
	f.MaxVideoFrameBufferSize = binary.LittleEndian.Uint32(buf[17:21])
	f.DefaultFrameInterval = interval(buf[21:25])

	n := int(buf[25])
	if n == 0 {
		// continuous frame intervals
		if len(buf) < 38 {
			return io.ErrShortBuffer
		}
		f.ContinuousFrameInterval.MinFrameInterval = interval(buf[26:30])
		f.ContinuousFrameInterval.MaxFrameInterval = interval(buf[30:34])
		f.ContinuousFrameInterval.FrameIntervalStep = interval(buf[34:38])
		return nil
	}
	if len(buf) < 26+n*4 {
		return io.ErrShortBuffer
	}
	f.DiscreteFrameIntervals = make([]time.Duration, n)
	for i := 0; i < n; i++ {
		f.DiscreteFrameIntervals[i] = interval(buf[26+i*4 : 30+i*4])
	}
	return nil
}

func (f *frameFields) Index() uint8 { return f.FrameIndex }

func (f *frameFields) Size() (uint16, uint16) { return f.Width, f.Height }

func (f *frameFields) Interval() time.Duration { return f.DefaultFrameInterval }

type MJPEGFrameDescriptor struct {
	frameFields
}

func (mfd *MJPEGFrameDescriptor) UnmarshalBinary(buf []byte) error {
	return mfd.unmarshal(buf, VideoStreamingInterfaceDescriptorSubtypeFrameMJPEG)
}

func (mfd *MJPEGFrameDescriptor) isStreamingInterface() {}

func (mfd *MJPEGFrameDescriptor) isFrameDescriptor() {}
