package session

import (
	"errors"
	"image"
	"os"
	"sync"
	"testing"

	"github.com/kevmo314/go-uvcmanager/pkg/capture"
	"github.com/kevmo314/go-uvcmanager/pkg/decode"
	"github.com/kevmo314/go-uvcmanager/pkg/device"
	"github.com/kevmo314/go-uvcmanager/pkg/surface"
)

type fakeCamera struct {
	mu sync.Mutex

	reject       map[capture.FrameFormat]error
	openErr      error
	startErr     error
	closeErr     error
	destroyPanic bool

	// startAfterClose lets StartPreview succeed on a closed camera.
	startAfterClose bool
	gates           map[string]*gate

	calls     []string
	format    capture.FrameFormat
	display   *surface.Surface
	frameCb   func(capture.Frame)
	statusCb  func(capture.Status)
	buttonCb  func(capture.Button)
	streaming bool
	handles   int
	closed    bool
	destroyed bool
}

var _ capture.Camera = (*fakeCamera)(nil)

// gate holds a camera call until the test lets it proceed.
type gate struct {
	entered chan struct{}
	proceed chan struct{}
}

// blockOn makes the next call named call close entered and wait for proceed.
func (c *fakeCamera) blockOn(call string) *gate {
	g := &gate{entered: make(chan struct{}), proceed: make(chan struct{})}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gates == nil {
		c.gates = make(map[string]*gate)
	}
	c.gates[call] = g
	return g
}

func (c *fakeCamera) wait(call string) {
	c.mu.Lock()
	g := c.gates[call]
	delete(c.gates, call)
	c.mu.Unlock()
	if g != nil {
		close(g.entered)
		<-g.proceed
	}
}

func (c *fakeCamera) record(call string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, call)
}

func (c *fakeCamera) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

func (c *fakeCamera) count(call string) int {
	n := 0
	for _, got := range c.Calls() {
		if got == call {
			n++
		}
	}
	return n
}

func (c *fakeCamera) Open(token *device.ConnectionToken) error {
	c.record("open")
	if c.openErr != nil {
		return c.openErr
	}
	if _, err := token.Take(); err != nil {
		return err
	}
	c.wait("open")
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handles++
	return nil
}

func (c *fakeCamera) SupportedSizes() []capture.Size { return nil }

func (c *fakeCamera) SetPreviewSize(width, height int, format capture.FrameFormat) error {
	c.record("size:" + format.String())
	c.wait("size")
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("fake: camera closed")
	}
	if err := c.reject[format]; err != nil {
		return err
	}
	c.format = format
	return nil
}

func (c *fakeCamera) SetPreviewDisplay(s *surface.Surface) error {
	c.record("display")
	c.mu.Lock()
	defer c.mu.Unlock()
	c.display = s
	return nil
}

func (c *fakeCamera) SetFrameCallback(cb func(capture.Frame), format decode.PixelFormat) {
	c.record("frame-callback")
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frameCb = cb
}

func (c *fakeCamera) SetStatusCallback(cb func(capture.Status)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statusCb = cb
}

func (c *fakeCamera) SetButtonCallback(cb func(capture.Button)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buttonCb = cb
}

func (c *fakeCamera) StartPreview() error {
	c.record("start")
	c.wait("start")
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.startErr != nil {
		return c.startErr
	}
	if c.closed && !c.startAfterClose {
		return capture.ErrClosed
	}
	c.streaming = true
	return nil
}

func (c *fakeCamera) StopPreview() error {
	c.record("stop")
	c.mu.Lock()
	defer c.mu.Unlock()
	c.streaming = false
	return nil
}

func (c *fakeCamera) Close() error {
	c.record("close")
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.streaming = false
	if c.handles > 0 {
		c.handles--
	}
	return c.closeErr
}

func (c *fakeCamera) Destroy() error {
	c.record("destroy")
	c.mu.Lock()
	c.destroyed = true
	c.mu.Unlock()
	if c.destroyPanic {
		panic("fake: destroy")
	}
	return nil
}

// emit delivers a frame the way the capture goroutine would.
func (c *fakeCamera) emit(f capture.Frame) {
	c.mu.Lock()
	cb := c.frameCb
	c.mu.Unlock()
	if cb != nil {
		cb(f)
	}
}

func (c *fakeCamera) Streaming() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.streaming
}

// openHandles counts successful opens not yet matched by a Close.
func (c *fakeCamera) openHandles() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handles
}

type fakeTarget struct {
	mu     sync.Mutex
	frames int
}

func (t *fakeTarget) Size() (int, int) { return 4, 4 }

func (t *fakeTarget) Present(img *image.RGBA) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.frames++
	return nil
}

// newToken returns a token over /dev/null and the file it wraps.
func newToken(t *testing.T) (*device.ConnectionToken, *os.File) {
	t.Helper()
	f, err := os.Open(os.DevNull)
	if err != nil {
		t.Fatal(err)
	}
	dev := device.Device{Path: "/dev/bus/usb/001/002", Bus: 1, Address: 2, VendorID: 0x046d, ProductID: 0x0825}
	return device.NewConnectionToken(dev, f), f
}

func fileClosed(f *os.File) bool {
	_, err := f.Stat()
	return errors.Is(err, os.ErrClosed)
}
