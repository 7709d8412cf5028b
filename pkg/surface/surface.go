// Package surface binds a host-provided render target to a capture
// session. A Surface is created per session and never reused.
package surface

import (
	"errors"
	"image"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/image/draw"
)

var ErrReleased = errors.New("surface: released")

// Target is something the host can draw frames onto: a window, a texture,
// a terminal widget. Present receives a frame already scaled to Size and
// must not retain it after returning.
type Target interface {
	Size() (width, height int)
	Present(img *image.RGBA) error
}

// Provider hands out the current render target, if the host has one.
type Provider interface {
	RenderTarget() (Target, bool)
}

type ProviderFunc func() (Target, bool)

func (f ProviderFunc) RenderTarget() (Target, bool) { return f() }

// Static returns a provider that always yields t.
func Static(t Target) Provider {
	return ProviderFunc(func() (Target, bool) { return t, t != nil })
}

type Surface struct {
	ID string

	mu       sync.Mutex
	target   Target
	scaler   draw.Scaler
	buf      *image.RGBA
	released bool
	frames   uint64
}

// New wraps target. A nil scaler selects draw.ApproxBiLinear.
func New(target Target, scaler draw.Scaler) *Surface {
	if scaler == nil {
		scaler = draw.ApproxBiLinear
	}
	return &Surface{ID: uuid.NewString(), target: target, scaler: scaler}
}

// Present scales img to the target size and hands it to the target.
func (s *Surface) Present(img image.Image) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return ErrReleased
	}
	w, h := s.target.Size()
	if w <= 0 || h <= 0 {
		return nil
	}
	r := image.Rect(0, 0, w, h)
	if s.buf == nil || s.buf.Rect != r {
		s.buf = image.NewRGBA(r)
	}
	if img.Bounds().Size() == r.Size() {
		draw.Draw(s.buf, r, img, img.Bounds().Min, draw.Src)
	} else {
		s.scaler.Scale(s.buf, r, img, img.Bounds(), draw.Src, nil)
	}
	s.frames++
	return s.target.Present(s.buf)
}

// Frames returns the number of frames presented.
func (s *Surface) Frames() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

func (s *Surface) Released() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

// Release detaches the surface from its target. The target belongs to the
// host and stays usable for later surfaces. Release is idempotent.
func (s *Surface) Release() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return nil
	}
	s.released = true
	s.buf = nil
	return nil
}
