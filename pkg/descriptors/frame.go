package descriptors

import "time"

type FormatDescriptor interface {
	StreamingInterface
	Index() uint8
	isFormatDescriptor()
}

type FrameDescriptor interface {
	StreamingInterface
	Index() uint8
	Size() (width, height uint16)
	Interval() time.Duration
	isFrameDescriptor()
}
