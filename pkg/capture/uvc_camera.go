package capture

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	usb "github.com/kevmo314/go-usb"
	"github.com/kevmo314/go-uvcmanager/pkg/decode"
	"github.com/kevmo314/go-uvcmanager/pkg/descriptors"
	"github.com/kevmo314/go-uvcmanager/pkg/device"
	"github.com/kevmo314/go-uvcmanager/pkg/surface"
	"github.com/kevmo314/go-uvcmanager/pkg/transfers"
)

const (
	isoPacketsPerTransfer = 32
	statusPollTimeout     = 250 * time.Millisecond
	statusRetryDelay      = 100 * time.Millisecond
)

var ErrStreaming = errors.New("capture: preview running")

type frameTarget struct {
	cb     func(Frame)
	format decode.PixelFormat
}

type stream struct {
	ifnum    uint8
	iso      bool
	dec      *decode.FrameReaderDecoder
	stopping atomic.Bool
	done     chan struct{}
}

type statusLoop struct {
	stop chan struct{}
	done chan struct{}
}

// UVCCamera drives a UVC device through a wrapped file descriptor.
type UVCCamera struct {
	logger *slog.Logger

	frameTarget atomic.Pointer[frameTarget]
	statusCb    atomic.Pointer[func(Status)]
	buttonCb    atomic.Pointer[func(Button)]

	mu        sync.Mutex
	handle    *usb.DeviceHandle
	layout    *layout
	sel       *selection
	display   *surface.Surface
	stream    *stream
	status    *statusLoop
	claimedVC bool
	closed    bool
}

var _ Camera = (*UVCCamera)(nil)

func NewUVCCamera(logger *slog.Logger) *UVCCamera {
	if logger == nil {
		logger = slog.Default()
	}
	return &UVCCamera{logger: logger}
}

func (c *UVCCamera) Open(token *device.ConnectionToken) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.handle != nil {
		return fmt.Errorf("capture: camera already open")
	}
	fd, err := token.Take()
	if err != nil {
		return err
	}
	handle, err := usb.WrapSysDevice(int(fd))
	if err != nil {
		return fmt.Errorf("capture: wrap device: %w", err)
	}
	cfg, err := handle.GetActiveConfigDescriptor()
	if err != nil {
		handle.Close()
		return fmt.Errorf("capture: config descriptor: %w", err)
	}
	l, err := parseLayout(altSettings(cfg))
	if err != nil {
		handle.Close()
		return err
	}
	c.handle, c.layout = handle, l
	c.logger.Info("capture: opened", "device", token.Device.String(), "uvc", fmt.Sprintf("%x.%02x", l.BcdUVC>>8, l.BcdUVC&0xff), "streaming", len(l.Streaming))

	if l.StatusEndpoint != 0 {
		// the kernel driver may not be bound, so a failed detach is fine.
		_ = handle.DetachKernelDriver(l.ControlInterface)
		if err := handle.ClaimInterface(l.ControlInterface); err != nil {
			c.logger.Warn("capture: status endpoint unavailable", "err", err)
			return nil
		}
		c.claimedVC = true
		c.status = &statusLoop{stop: make(chan struct{}), done: make(chan struct{})}
		go c.pollStatus(c.status, handle, l.StatusEndpoint)
	}
	return nil
}

func (c *UVCCamera) SupportedSizes() []Size {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.layout == nil {
		return nil
	}
	return supportedSizes(c.layout.Streaming)
}

func (c *UVCCamera) SetPreviewSize(width, height int, format FrameFormat) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.layout == nil {
		return ErrNotOpen
	}
	if c.stream != nil {
		return ErrStreaming
	}
	sel, err := selectFormat(c.layout.Streaming, width, height, format)
	if err != nil {
		return err
	}
	c.sel = &sel
	return nil
}

func (c *UVCCamera) SetPreviewDisplay(s *surface.Surface) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.display = s
	return nil
}

func (c *UVCCamera) SetFrameCallback(cb func(Frame), format decode.PixelFormat) {
	if cb == nil {
		c.frameTarget.Store(nil)
		return
	}
	c.frameTarget.Store(&frameTarget{cb: cb, format: format})
}

func (c *UVCCamera) SetStatusCallback(cb func(Status)) {
	if cb == nil {
		c.statusCb.Store(nil)
		return
	}
	c.statusCb.Store(&cb)
}

func (c *UVCCamera) SetButtonCallback(cb func(Button)) {
	if cb == nil {
		c.buttonCb.Store(nil)
		return
	}
	c.buttonCb.Store(&cb)
}

func (c *UVCCamera) StartPreview() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.closed:
		return ErrClosed
	case c.handle == nil:
		return ErrNotOpen
	case c.sel == nil:
		return ErrNotConfigured
	case c.stream != nil:
		return nil
	}
	si := c.sel.si
	ifnum := si.InterfaceNumber

	_ = c.handle.DetachKernelDriver(ifnum)
	if err := c.handle.ClaimInterface(ifnum); err != nil {
		return fmt.Errorf("capture: claim interface %d: %w", ifnum, err)
	}
	s := &stream{ifnum: ifnum, iso: c.layout.Isochronous(ifnum), done: make(chan struct{})}

	vpcc, err := si.Negotiate(c.handle, c.sel.format.Index(), c.sel.frame.Index(), c.sel.frame.Interval())
	if err != nil {
		return errors.Join(err, c.resetInterface(s))
	}
	reader, payloadSize, err := c.openReader(si, vpcc, s.iso)
	if err != nil {
		return errors.Join(err, c.resetInterface(s))
	}
	fr := transfers.NewFrameReader(transfers.NewPayloadReader(reader, payloadSize), int(vpcc.MaxVideoFrameSize))
	dec, err := decode.NewFrameReaderDecoder(fr, c.sel.format, c.sel.frame)
	if err != nil {
		return errors.Join(err, fr.Close(), c.resetInterface(s))
	}
	s.dec = dec
	c.stream = s

	w, h := c.sel.frame.Size()
	c.logger.Info("capture: streaming", "width", w, "height", h, "format", c.sel.format.Index(), "frame", c.sel.frame.Index(),
		"iso", s.iso, "payload", vpcc.MaxPayloadTransferSize)
	go c.run(s, c.display)
	return nil
}

func (c *UVCCamera) openReader(si *transfers.StreamingInterface, vpcc *descriptors.VideoProbeCommitControl, iso bool) (io.ReadCloser, int, error) {
	ep, err := si.EndpointAddress()
	if err != nil {
		return nil, 0, err
	}
	if !iso {
		r, err := transfers.NewAsyncBulkReader(c.handle, ep, vpcc.MaxPayloadTransferSize, transfers.DefaultNumTransfers)
		if err != nil {
			return nil, 0, err
		}
		return r, int(vpcc.MaxPayloadTransferSize) + transfers.MaxURBBufferSize, nil
	}
	alt, e, err := c.layout.pickAlternate(si.InterfaceNumber, ep, vpcc.MaxPayloadTransferSize)
	if err != nil {
		return nil, 0, err
	}
	if err := c.handle.SetAltSetting(si.InterfaceNumber, alt.Alternate); err != nil {
		return nil, 0, fmt.Errorf("capture: set alt setting %d: %w", alt.Alternate, err)
	}
	r, err := transfers.NewIsochronousReader(c.handle, ep, isoPacketsPerTransfer, e.Bytes())
	if err != nil {
		return nil, 0, err
	}
	return r, int(e.Bytes()), nil
}

func (c *UVCCamera) resetInterface(s *stream) error {
	var errs []error
	if s.iso {
		if err := c.handle.SetAltSetting(s.ifnum, 0); err != nil {
			errs = append(errs, fmt.Errorf("capture: reset alt setting: %w", err))
		}
	}
	if err := c.handle.ReleaseInterface(s.ifnum); err != nil {
		errs = append(errs, fmt.Errorf("capture: release interface %d: %w", s.ifnum, err))
	}
	return errors.Join(errs...)
}

// run decodes frames until the stream is stopped. It is the only caller of
// the frame callback.
func (c *UVCCamera) run(s *stream, display *surface.Surface) {
	defer close(s.done)
	conv := &decode.Converter{}
	var seq uint64
	for {
		img, err := s.dec.ReadFrame()
		if err != nil {
			if !s.stopping.Load() {
				c.logger.Warn("capture: stream ended", "err", err)
			}
			return
		}
		seq++
		if display != nil {
			if err := display.Present(img); err != nil && !errors.Is(err, surface.ErrReleased) {
				c.logger.Debug("capture: present failed", "err", err)
			}
		}
		t := c.frameTarget.Load()
		if t == nil {
			continue
		}
		conv.Format = t.format
		data, err := conv.Convert(img)
		if err != nil {
			c.logger.Warn("capture: convert failed", "format", t.format, "err", err)
			continue
		}
		b := img.Bounds()
		t.cb(Frame{
			Data:        data,
			Width:       b.Dx(),
			Height:      b.Dy(),
			PixelFormat: t.format,
			Sequence:    seq,
			Timestamp:   time.Now(),
		})
	}
}

func (c *UVCCamera) StopPreview() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopLocked()
}

func (c *UVCCamera) stopLocked() error {
	s := c.stream
	if s == nil {
		return nil
	}
	c.stream = nil
	s.stopping.Store(true)
	err := s.dec.Close()
	<-s.done
	if errors.Is(err, transfers.ErrReaderClosed) {
		err = nil
	}
	return errors.Join(err, c.resetInterface(s))
}

func (c *UVCCamera) pollStatus(l *statusLoop, handle *usb.DeviceHandle, ep uint8) {
	defer close(l.done)
	buf := make([]byte, 64)
	for {
		select {
		case <-l.stop:
			return
		default:
		}
		start := time.Now()
		n, err := handle.InterruptTransfer(ep, buf, statusPollTimeout)
		if err != nil {
			// timeouts are the normal case, anything faster is backed off.
			if time.Since(start) < statusPollTimeout/2 {
				select {
				case <-l.stop:
					return
				case <-time.After(statusRetryDelay):
				}
			}
			continue
		}
		c.dispatchStatus(buf[:n])
	}
}

func (c *UVCCamera) dispatchStatus(buf []byte) {
	var sp descriptors.StatusPacket
	if err := sp.UnmarshalBinary(buf); err != nil {
		c.logger.Debug("capture: bad status packet", "len", len(buf), "err", err)
		return
	}
	if pressed, ok := sp.IsButton(); ok {
		if cb := c.buttonCb.Load(); cb != nil {
			b := Button{Button: 1}
			if pressed {
				b.State = 1
			}
			(*cb)(b)
		}
		return
	}
	if cb := c.statusCb.Load(); cb != nil {
		(*cb)(Status{
			Class:      uint8(sp.Type),
			Event:      sp.Event,
			Selector:   sp.Selector,
			Attribute:  sp.Attribute,
			Originator: sp.Originator,
			Data:       append([]byte(nil), sp.Value...),
		})
	}
}

// Close stops the preview and the status poller and closes the device
// handle. The file descriptor stays owned by the connection token.
func (c *UVCCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.handle == nil {
		return nil
	}
	errs := []error{c.stopLocked()}
	if c.status != nil {
		close(c.status.stop)
		<-c.status.done
		c.status = nil
	}
	if c.claimedVC {
		if err := c.handle.ReleaseInterface(c.layout.ControlInterface); err != nil {
			errs = append(errs, fmt.Errorf("capture: release control interface: %w", err))
		}
		c.claimedVC = false
	}
	if err := c.handle.Close(); err != nil {
		errs = append(errs, fmt.Errorf("capture: close handle: %w", err))
	}
	c.handle = nil
	return errors.Join(errs...)
}

func (c *UVCCamera) Destroy() error {
	err := c.Close()
	c.SetFrameCallback(nil, 0)
	c.SetStatusCallback(nil)
	c.SetButtonCallback(nil)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.layout, c.sel, c.display = nil, nil, nil
	return err
}
