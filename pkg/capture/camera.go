// Package capture defines the camera contract used by capture sessions and
// implements it for UVC devices on top of go-usb.
package capture

import (
	"errors"
	"fmt"
	"time"

	"github.com/kevmo314/go-uvcmanager/pkg/decode"
	"github.com/kevmo314/go-uvcmanager/pkg/device"
	"github.com/kevmo314/go-uvcmanager/pkg/surface"
)

var (
	// ErrFormatUnsupported is returned by SetPreviewSize when the device
	// cannot stream the requested size in the requested format.
	ErrFormatUnsupported = errors.New("capture: format unsupported")
	ErrNotOpen           = errors.New("capture: camera not open")
	ErrClosed            = errors.New("capture: camera closed")
	ErrNotConfigured     = errors.New("capture: preview size not set")
)

// FrameFormat is the wire format requested from the device.
type FrameFormat int

const (
	FrameFormatMJPEG FrameFormat = iota
	FrameFormatYUYV
)

func (f FrameFormat) String() string {
	switch f {
	case FrameFormatMJPEG:
		return "mjpeg"
	case FrameFormatYUYV:
		return "yuyv"
	}
	return fmt.Sprintf("FrameFormat(%d)", int(f))
}

func (f FrameFormat) Compressed() bool {
	return f == FrameFormatMJPEG
}

// Frame is one converted frame. Data is reused after the callback returns.
type Frame struct {
	Data        []byte
	Width       int
	Height      int
	PixelFormat decode.PixelFormat
	Sequence    uint64
	Timestamp   time.Time
}

type Size struct {
	Width, Height int
	Format        FrameFormat
	Interval      time.Duration
}

// Status is a change notification from the device's interrupt endpoint.
type Status struct {
	Class      uint8
	Event      uint8
	Selector   uint8
	Attribute  uint8
	Originator uint8
	Data       []byte
}

type Button struct {
	Button int
	State  int
}

// Camera is an exclusively owned capture device. Setup calls come from one
// goroutine at a time, but every method must be safe to call concurrently
// with Close, Destroy, StopPreview and the callback setters, which a release
// may run from another goroutine while Open or StartPreview is in flight.
type Camera interface {
	Open(token *device.ConnectionToken) error
	SupportedSizes() []Size
	SetPreviewSize(width, height int, format FrameFormat) error
	SetPreviewDisplay(s *surface.Surface) error
	SetFrameCallback(cb func(Frame), format decode.PixelFormat)
	SetStatusCallback(cb func(Status))
	SetButtonCallback(cb func(Button))
	StartPreview() error
	StopPreview() error
	// Close stops streaming and releases the device handle.
	Close() error
	// Destroy frees everything else. The camera cannot be reused.
	Destroy() error
}
