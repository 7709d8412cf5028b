//go:build integration

package capture

import (
	"image"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/kevmo314/go-uvcmanager/pkg/decode"
	"github.com/kevmo314/go-uvcmanager/pkg/device"
	"github.com/kevmo314/go-uvcmanager/pkg/surface"
	"golang.org/x/sys/unix"
)

// UVC_DEVICE selects the device node, e.g. /dev/bus/usb/001/002.
func TestUVCCameraStreams(t *testing.T) {
	path := os.Getenv("UVC_DEVICE")
	if path == "" {
		t.Skip("UVC_DEVICE not set")
	}
	fd, err := unix.Open(path, unix.O_RDWR, 0)
	if err != nil {
		t.Fatal(err)
	}
	token := device.NewConnectionToken(device.Device{Path: path}, os.NewFile(uintptr(fd), path))
	defer token.Close()

	cam := NewUVCCamera(slog.Default())
	if err := cam.Open(token); err != nil {
		t.Fatal(err)
	}
	defer cam.Destroy()

	for _, s := range cam.SupportedSizes() {
		t.Logf("%s %dx%d %v", s.Format, s.Width, s.Height, s.Interval)
	}
	if err := cam.SetPreviewSize(640, 480, FrameFormatMJPEG); err != nil {
		if err := cam.SetPreviewSize(640, 480, FrameFormatYUYV); err != nil {
			t.Fatal(err)
		}
	}
	if err := cam.SetPreviewDisplay(surface.New(nullTarget{}, nil)); err != nil {
		t.Fatal(err)
	}
	frames := make(chan Frame, 1)
	cam.SetFrameCallback(func(f Frame) {
		select {
		case frames <- Frame{Width: f.Width, Height: f.Height, Sequence: f.Sequence}:
		default:
		}
	}, decode.PixelFormatRGB565)
	if err := cam.StartPreview(); err != nil {
		t.Fatal(err)
	}
	select {
	case f := <-frames:
		t.Logf("got frame %d: %dx%d", f.Sequence, f.Width, f.Height)
	case <-time.After(5 * time.Second):
		t.Fatal("no frame within 5s")
	}
	if err := cam.StopPreview(); err != nil {
		t.Fatal(err)
	}
}

type nullTarget struct{}

func (nullTarget) Size() (int, int) { return 64, 48 }

func (nullTarget) Present(*image.RGBA) error { return nil }
