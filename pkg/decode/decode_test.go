package decode

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"testing"

	"github.com/kevmo314/go-uvcmanager/pkg/descriptors"
	"github.com/kevmo314/go-uvcmanager/pkg/formats"
	"github.com/kevmo314/go-uvcmanager/pkg/transfers"
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func TestConvertRGB565(t *testing.T) {
	c := &Converter{Format: PixelFormatRGB565}
	out, err := c.Convert(solid(4, 2, color.RGBA{R: 0xff, A: 0xff}))
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 4*2*2 {
		t.Fatalf("len = %d", len(out))
	}
	// pure red is 0xf800, stored little endian
	if out[0] != 0x00 || out[1] != 0xf8 {
		t.Errorf("pixel = %02x%02x, want 00f8", out[0], out[1])
	}
	img := &RGB565{Pix: out, Stride: 8, Rect: image.Rect(0, 0, 4, 2)}
	if got := img.RGBAAt(3, 1); got != (color.RGBA{0xff, 0, 0, 0xff}) {
		t.Errorf("RGBAAt = %v", got)
	}
}

func TestConvertReusesBuffer(t *testing.T) {
	c := &Converter{Format: PixelFormatRGBX}
	a, _ := c.Convert(solid(2, 2, color.RGBA{G: 10, A: 0x80}))
	if a[3] != 0xff {
		t.Errorf("alpha = %d, want 0xff", a[3])
	}
	b, _ := c.Convert(solid(2, 2, color.RGBA{G: 20, A: 0xff}))
	if &a[0] != &b[0] {
		t.Error("buffer was reallocated for a frame of the same size")
	}
	if b[1] != 20 {
		t.Errorf("green = %d, want 20", b[1])
	}
}

func TestConvertYUV(t *testing.T) {
	src := image.NewYCbCr(image.Rect(0, 0, 4, 2), image.YCbCrSubsampleRatio422)
	for i := range src.Y {
		src.Y[i] = 100
	}
	for i := range src.Cb {
		src.Cb[i] = 50
		src.Cr[i] = 200
	}

	yuyv, err := (&Converter{Format: PixelFormatYUYV}).Convert(src)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(yuyv[:4], []byte{100, 50, 100, 200}) {
		t.Errorf("yuyv = %v", yuyv[:4])
	}

	nv21, err := (&Converter{Format: PixelFormatNV21}).Convert(src)
	if err != nil {
		t.Fatal(err)
	}
	if len(nv21) != 4*2+4 {
		t.Fatalf("len(nv21) = %d", len(nv21))
	}
	if nv21[8] != 200 || nv21[9] != 50 {
		t.Errorf("vu = %v, want [200 50]", nv21[8:10])
	}
}

func TestParsePixelFormat(t *testing.T) {
	pf, err := ParsePixelFormat("RGB565")
	if err != nil || pf != PixelFormatRGB565 {
		t.Errorf("ParsePixelFormat = %v, %v", pf, err)
	}
	if _, err := ParsePixelFormat("argb"); err == nil {
		t.Error("expected error")
	}
}

func TestUncompressedYUY2(t *testing.T) {
	d, err := NewUncompressedDecoder([4]byte{'Y', 'U', 'Y', '2'}, 2, 1)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d.Write([]byte{10, 20, 30, 40}); err != nil {
		t.Fatal(err)
	}
	img, err := d.ReadFrame()
	if err != nil {
		t.Fatal(err)
	}
	yc := img.(*image.YCbCr)
	if yc.Y[0] != 10 || yc.Y[1] != 30 || yc.Cb[0] != 20 || yc.Cr[0] != 40 {
		t.Errorf("Y=%v Cb=%v Cr=%v", yc.Y, yc.Cb, yc.Cr)
	}
	if _, err := d.ReadFrame(); !errors.Is(err, ErrEAGAIN) {
		t.Errorf("err = %v, want ErrEAGAIN", err)
	}
	if _, err := d.Write([]byte{1}); err == nil {
		t.Error("short frame accepted")
	}
}

type frames struct {
	list []*transfers.Frame
}

func (f *frames) ReadFrame() (*transfers.Frame, error) {
	if len(f.list) == 0 {
		return nil, io.EOF
	}
	fr := f.list[0]
	f.list = f.list[1:]
	return fr, nil
}

func (f *frames) Close() error { return nil }

func TestFrameReaderDecoderSkipsBadFrames(t *testing.T) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, solid(8, 8, color.RGBA{B: 0xff, A: 0xff}), nil); err != nil {
		t.Fatal(err)
	}
	src := &frames{list: []*transfers.Frame{
		{Data: buf.Bytes(), Error: true},
		{Data: []byte("not a jpeg")},
		{Data: buf.Bytes()},
	}}
	d, err := NewFrameReaderDecoder(src, &descriptors.MJPEGFormatDescriptor{}, &descriptors.MJPEGFrameDescriptor{})
	if err != nil {
		t.Fatal(err)
	}
	img, err := d.ReadFrame()
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != 8 {
		t.Errorf("bounds = %v", img.Bounds())
	}
	if _, err := d.ReadFrame(); !errors.Is(err, io.EOF) {
		t.Errorf("err = %v, want io.EOF", err)
	}
}

func TestNewDescriptorDecoderUncompressed(t *testing.T) {
	fr := &descriptors.UncompressedFrameDescriptor{}
	fr.Width, fr.Height = 4, 2
	dec, err := NewDescriptorDecoder(&descriptors.UncompressedFormatDescriptor{GUIDFormat: formats.CompressionFormatNV12}, fr)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := dec.(*UncompressedDecoder); !ok {
		t.Errorf("got %T", dec)
	}
	if _, err := NewDescriptorDecoder(&descriptors.UncompressedFormatDescriptor{}, fr); err == nil {
		t.Error("expected error for unknown guid")
	}
}
