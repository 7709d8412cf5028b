// Package session implements the lifecycle of one capture session: open the
// camera, negotiate a format, bind a render surface and frame sink, stream,
// and release every resource exactly once.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kevmo314/go-uvcmanager/pkg/capture"
	"github.com/kevmo314/go-uvcmanager/pkg/device"
	"github.com/kevmo314/go-uvcmanager/pkg/framesink"
	"github.com/kevmo314/go-uvcmanager/pkg/surface"
)

const (
	DefaultWidth  = 640
	DefaultHeight = 480
)

var (
	// ErrNoRenderTarget marks a session that is open but waits for a render
	// target before it can stream. It is reported by Degraded, not returned.
	ErrNoRenderTarget = errors.New("session: no render target")
	ErrReleased       = errors.New("session: released")
	ErrInvalidState   = errors.New("session: invalid state")
)

// Release steps, in order.
const (
	StepClearStatusCallback = "clear status callback"
	StepClearButtonCallback = "clear button callback"
	StepStopPreview         = "stop preview"
	StepCloseCamera         = "close camera"
	StepDestroyCamera       = "destroy camera"
	StepReleaseSurface      = "release surface"
	StepCloseToken          = "close token"
)

// negotiation tiers, tried in order.
var fallback = []capture.FrameFormat{capture.FrameFormatMJPEG, capture.FrameFormatYUYV}

type Format struct {
	Width, Height int
	FrameFormat   capture.FrameFormat
	Compressed    bool
}

type Options struct {
	NewCamera func() capture.Camera
	// Width and Height default to 640x480.
	Width, Height int
	Provider      surface.Provider
	Sink          framesink.Sink
	OnStatus      func(capture.Status)
	OnButton      func(capture.Button)
	Logger        *slog.Logger
}

type Session struct {
	ID     string
	Device device.Device

	opts   Options
	logger *slog.Logger

	// ops serializes Open, StartPreview, StopPreview and AttachSurface.
	// Release only takes mu so it can interrupt them.
	ops sync.Mutex

	mu       sync.Mutex
	state    State
	token    *device.ConnectionToken
	camera   capture.Camera
	format   Format
	surface  *surface.Surface
	binding  *framesink.Binding
	provider surface.Provider
	degraded error

	releaseOnce sync.Once
	report      *TeardownReport
}

// New creates an idle session that owns token.
func New(token *device.ConnectionToken, opts Options) *Session {
	if opts.Width <= 0 || opts.Height <= 0 {
		opts.Width, opts.Height = DefaultWidth, DefaultHeight
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	s := &Session{
		ID:       uuid.NewString(),
		opts:     opts,
		token:    token,
		provider: opts.Provider,
	}
	if token != nil {
		s.Device = token.Device
	}
	s.logger = opts.Logger.With("session", s.ID)
	return s
}

// Open creates a session and opens it. On failure the session is already
// released and is returned so callers can inspect its teardown report.
func Open(ctx context.Context, token *device.ConnectionToken, opts Options) (*Session, error) {
	s := New(token, opts)
	return s, s.Open(ctx)
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Format() Format {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.format
}

func (s *Session) Surface() *surface.Surface {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.surface
}

// Degraded returns ErrNoRenderTarget while the session is open but has no
// render target to stream to.
func (s *Session) Degraded() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}

func (s *Session) SinkStats() framesink.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.binding.Stats()
}

// commit runs fn under the lock if the session is still opening.
func (s *Session) commit(fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosing || s.state == StateClosed {
		return ErrReleased
	}
	if fn != nil {
		fn()
	}
	return nil
}

// fail releases the session after a failed step. A concurrent release wins
// over the step error.
func (s *Session) fail(err error) error {
	if s.commit(nil) != nil {
		return ErrReleased
	}
	s.Release()
	return err
}

// abandon closes a camera that a concurrent release may have torn down
// before the current step acquired it.
func (s *Session) abandon(cam capture.Camera) error {
	cam.SetStatusCallback(nil)
	cam.SetButtonCallback(nil)
	if err := cam.StopPreview(); err != nil {
		s.logger.Warn("session: stop abandoned camera failed", "err", err)
	}
	if err := cam.Close(); err != nil {
		s.logger.Warn("session: close abandoned camera failed", "err", err)
	}
	if err := cam.Destroy(); err != nil {
		s.logger.Warn("session: destroy abandoned camera failed", "err", err)
	}
	return ErrReleased
}

// Open acquires the camera, negotiates a format and starts streaming if a
// render target is available. Release may run concurrently; Open then
// returns ErrReleased after its current step.
func (s *Session) Open(ctx context.Context) error {
	s.ops.Lock()
	defer s.ops.Unlock()

	s.mu.Lock()
	switch st := s.state; st {
	case StateIdle:
	case StateClosing, StateClosed:
		s.mu.Unlock()
		return ErrReleased
	default:
		s.mu.Unlock()
		return fmt.Errorf("%w: open in state %s", ErrInvalidState, st)
	}
	s.state = StateOpening
	s.mu.Unlock()

	if s.opts.NewCamera == nil {
		return s.fail(errors.New("session: no camera constructor"))
	}
	if err := ctx.Err(); err != nil {
		return s.fail(err)
	}

	cam := s.opts.NewCamera()
	var token *device.ConnectionToken
	if err := s.commit(func() { s.camera, token = cam, s.token }); err != nil {
		cam.Destroy()
		return err
	}
	if err := cam.Open(token); err != nil {
		return s.fail(fmt.Errorf("session: open camera: %w", err))
	}
	if s.opts.OnStatus != nil {
		cam.SetStatusCallback(s.opts.OnStatus)
	}
	if s.opts.OnButton != nil {
		cam.SetButtonCallback(s.opts.OnButton)
	}
	// A release that ran during cam.Open closed the camera before it was
	// open, so the handle is ours to close.
	if err := s.commit(nil); err != nil {
		return s.abandon(cam)
	}

	format, err := s.negotiate(cam)
	if err != nil {
		return s.fail(err)
	}
	if err := s.commit(func() { s.format = format }); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return s.fail(err)
	}

	if err := s.bindAndStart(); err != nil {
		return s.fail(err)
	}
	return nil
}

func (s *Session) negotiate(cam capture.Camera) (Format, error) {
	w, h := s.opts.Width, s.opts.Height
	var err error
	for _, ff := range fallback {
		err = cam.SetPreviewSize(w, h, ff)
		if err == nil {
			s.logger.Info("session: negotiated", "width", w, "height", h, "format", ff)
			return Format{Width: w, Height: h, FrameFormat: ff, Compressed: ff.Compressed()}, nil
		}
		if !errors.Is(err, capture.ErrFormatUnsupported) {
			break
		}
		s.logger.Info("session: format rejected", "width", w, "height", h, "format", ff)
	}
	return Format{}, fmt.Errorf("session: negotiate %dx%d: %w", w, h, err)
}

// bindAndStart binds a render surface and the frame sink and starts the
// preview. Without a render target the session stays in StateOpening.
func (s *Session) bindAndStart() error {
	var (
		provider surface.Provider
		cam      capture.Camera
	)
	if err := s.commit(func() { provider, cam = s.provider, s.camera }); err != nil {
		return err
	}

	var (
		target surface.Target
		ok     bool
	)
	if provider != nil {
		target, ok = provider.RenderTarget()
	}
	if !ok || target == nil {
		s.logger.Info("session: waiting for render target")
		return s.commit(func() { s.degraded = ErrNoRenderTarget })
	}

	surf := surface.New(target, nil)
	if err := s.commit(func() { s.surface = surf }); err != nil {
		surf.Release()
		return err
	}
	if err := cam.SetPreviewDisplay(surf); err != nil {
		return fmt.Errorf("session: set preview display: %w", err)
	}
	binding := framesink.Bind(s.opts.Sink, s.logger)
	if err := s.commit(func() { s.binding = binding }); err != nil {
		binding.Unbind()
		return err
	}
	cam.SetFrameCallback(binding.Deliver, binding.PixelFormat())
	if err := cam.StartPreview(); err != nil {
		return fmt.Errorf("session: start preview: %w", err)
	}
	if err := s.commit(func() {
		s.state = StateStreaming
		s.degraded = nil
		s.logger.Info("session: streaming", "surface", surf.ID)
	}); err != nil {
		// The release may have stopped the camera before it started.
		return s.abandon(cam)
	}
	return nil
}

// AttachSurface supplies a render target provider. A session waiting for a
// target binds it and starts streaming; a streaming session is rebound to
// the new target and its old surface released.
func (s *Session) AttachSurface(provider surface.Provider) error {
	s.ops.Lock()
	defer s.ops.Unlock()

	s.mu.Lock()
	if provider != nil {
		s.provider = provider
	}
	st, cam := s.state, s.camera
	s.mu.Unlock()

	switch st {
	case StateOpening:
	case StateStreaming:
		if err := cam.StopPreview(); err != nil {
			s.logger.Warn("session: stop preview before rebind failed", "err", err)
		}
		if err := s.commit(func() { s.state = StateOpening }); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: attach surface in state %s", ErrInvalidState, st)
	}
	if err := s.releaseStaleSurface(); err != nil {
		return err
	}
	return s.bindAndStart()
}

func (s *Session) releaseStaleSurface() error {
	var stale *surface.Surface
	var binding *framesink.Binding
	if err := s.commit(func() {
		stale, binding = s.surface, s.binding
		s.surface, s.binding = nil, nil
	}); err != nil {
		return err
	}
	binding.Unbind()
	if stale != nil {
		s.logger.Debug("session: releasing stale surface", "surface", stale.ID)
		if err := stale.Release(); err != nil {
			s.logger.Warn("session: release stale surface failed", "err", err)
		}
	}
	return nil
}

// StartPreview resumes streaming from StateOpening. It binds a render
// target first if none is bound yet.
func (s *Session) StartPreview() error {
	s.ops.Lock()
	defer s.ops.Unlock()

	s.mu.Lock()
	st, cam, surf := s.state, s.camera, s.surface
	s.mu.Unlock()

	switch st {
	case StateStreaming:
		return nil
	case StateOpening:
	case StateClosing, StateClosed:
		return ErrReleased
	default:
		return fmt.Errorf("%w: start preview in state %s", ErrInvalidState, st)
	}
	if surf == nil {
		return s.bindAndStart()
	}
	if err := cam.StartPreview(); err != nil {
		return fmt.Errorf("session: start preview: %w", err)
	}
	if err := s.commit(func() { s.state = StateStreaming }); err != nil {
		return s.abandon(cam)
	}
	return nil
}

// StopPreview stops streaming but keeps the camera open. It is a no-op
// unless the session is streaming.
func (s *Session) StopPreview() error {
	s.ops.Lock()
	defer s.ops.Unlock()

	s.mu.Lock()
	st, cam := s.state, s.camera
	s.mu.Unlock()
	if st != StateStreaming {
		return nil
	}
	err := cam.StopPreview()
	if cerr := s.commit(func() { s.state = StateOpening }); cerr != nil {
		return cerr
	}
	if err != nil {
		return fmt.Errorf("session: stop preview: %w", err)
	}
	return nil
}

// Release tears the session down. Every step runs even if an earlier one
// fails or panics. Release is idempotent and safe to call concurrently with
// any other method; later calls return the first report.
func (s *Session) Release() *TeardownReport {
	s.releaseOnce.Do(s.release)
	return s.report
}

func (s *Session) release() {
	start := time.Now()
	s.mu.Lock()
	prev := s.state
	s.state = StateClosing
	cam, surf, binding, token := s.camera, s.surface, s.binding, s.token
	s.mu.Unlock()

	r := &TeardownReport{SessionID: s.ID}
	if cam != nil {
		r.run(StepClearStatusCallback, func() error { cam.SetStatusCallback(nil); return nil })
		r.run(StepClearButtonCallback, func() error { cam.SetButtonCallback(nil); return nil })
		r.run(StepStopPreview, func() error {
			defer binding.Unbind()
			return cam.StopPreview()
		})
		r.run(StepCloseCamera, cam.Close)
		r.run(StepDestroyCamera, cam.Destroy)
	} else {
		binding.Unbind()
		for _, name := range []string{StepClearStatusCallback, StepClearButtonCallback, StepStopPreview, StepCloseCamera, StepDestroyCamera} {
			r.skip(name)
		}
	}
	if surf != nil {
		r.run(StepReleaseSurface, surf.Release)
	} else {
		r.skip(StepReleaseSurface)
	}
	if token != nil {
		r.run(StepCloseToken, token.Close)
	} else {
		r.skip(StepCloseToken)
	}
	r.Duration = time.Since(start)

	s.mu.Lock()
	s.state = StateClosed
	s.camera, s.surface, s.token = nil, nil, nil
	s.degraded = nil
	s.report = r
	s.mu.Unlock()

	if err := r.Err(); err != nil {
		s.logger.Warn("session: released with failures", "from", prev, "err", err)
	} else {
		s.logger.Info("session: released", "from", prev, "took", r.Duration)
	}
}
