package surface

import (
	"errors"
	"image"
	"image/color"
	"testing"
)

type recordingTarget struct {
	w, h   int
	last   color.RGBA
	count  int
	closed int
}

func (t *recordingTarget) Size() (int, int) { return t.w, t.h }

func (t *recordingTarget) Present(img *image.RGBA) error {
	t.count++
	t.last = img.RGBAAt(0, 0)
	if img.Bounds().Dx() != t.w || img.Bounds().Dy() != t.h {
		return errors.New("wrong size")
	}
	return nil
}

func (t *recordingTarget) Close() error {
	t.closed++
	return nil
}

func fill(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestPresentScales(t *testing.T) {
	target := &recordingTarget{w: 32, h: 24}
	s := New(target, nil)
	red := color.RGBA{R: 0xff, A: 0xff}
	if err := s.Present(fill(64, 48, red)); err != nil {
		t.Fatal(err)
	}
	if err := s.Present(fill(32, 24, red)); err != nil {
		t.Fatal(err)
	}
	if target.count != 2 || s.Frames() != 2 {
		t.Errorf("count = %d frames = %d", target.count, s.Frames())
	}
	if target.last != red {
		t.Errorf("pixel = %v, want %v", target.last, red)
	}
}

func TestReleaseIdempotent(t *testing.T) {
	target := &recordingTarget{w: 1, h: 1}
	s := New(target, nil)
	if err := s.Release(); err != nil {
		t.Fatal(err)
	}
	if err := s.Release(); err != nil {
		t.Fatal(err)
	}
	if err := s.Present(fill(1, 1, color.RGBA{})); !errors.Is(err, ErrReleased) {
		t.Errorf("Present after Release = %v, want ErrReleased", err)
	}
	if !s.Released() {
		t.Error("Released() = false")
	}
}

func TestReleaseLeavesTargetForNextSurface(t *testing.T) {
	target := &recordingTarget{w: 2, h: 2}
	first := New(target, nil)
	if err := first.Release(); err != nil {
		t.Fatal(err)
	}
	if target.closed != 0 {
		t.Fatalf("target closed %d times by Release", target.closed)
	}
	second := New(target, nil)
	if err := second.Present(fill(2, 2, color.RGBA{G: 0xff, A: 0xff})); err != nil {
		t.Fatal(err)
	}
	if target.count != 1 {
		t.Errorf("count = %d, want 1", target.count)
	}
}

func TestZeroSizedTargetSkipsFrames(t *testing.T) {
	target := &recordingTarget{}
	s := New(target, nil)
	if err := s.Present(fill(4, 4, color.RGBA{})); err != nil {
		t.Fatal(err)
	}
	if target.count != 0 {
		t.Error("frame presented to a zero sized target")
	}
}

func TestStaticProvider(t *testing.T) {
	if _, ok := Static(nil).RenderTarget(); ok {
		t.Error("nil target reported as available")
	}
	target := &recordingTarget{}
	got, ok := Static(target).RenderTarget()
	if !ok || got != Target(target) {
		t.Errorf("RenderTarget() = %v, %v", got, ok)
	}
}
