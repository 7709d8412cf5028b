package decode

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"golang.org/x/image/draw"
)

// PixelFormat is the packed layout delivered to frame callbacks.
type PixelFormat int

const (
	PixelFormatRGB565 PixelFormat = iota
	PixelFormatRGBX
	PixelFormatYUYV
	PixelFormatNV21
)

func (pf PixelFormat) String() string {
	switch pf {
	case PixelFormatRGB565:
		return "rgb565"
	case PixelFormatRGBX:
		return "rgbx"
	case PixelFormatYUYV:
		return "yuyv"
	case PixelFormatNV21:
		return "nv21"
	}
	return fmt.Sprintf("PixelFormat(%d)", int(pf))
}

func ParsePixelFormat(s string) (PixelFormat, error) {
	for _, pf := range []PixelFormat{PixelFormatRGB565, PixelFormatRGBX, PixelFormatYUYV, PixelFormatNV21} {
		if strings.EqualFold(s, pf.String()) {
			return pf, nil
		}
	}
	return 0, fmt.Errorf("unknown pixel format %q", s)
}

// FrameSize is the number of bytes of a width x height frame.
func (pf PixelFormat) FrameSize(width, height int) int {
	switch pf {
	case PixelFormatRGB565, PixelFormatYUYV:
		return width * height * 2
	case PixelFormatRGBX:
		return width * height * 4
	case PixelFormatNV21:
		return width*height + 2*((width+1)/2)*((height+1)/2)
	}
	return 0
}

// Converter converts images into a packed pixel format, reusing its
// buffer between calls.
type Converter struct {
	Format PixelFormat

	buf     []byte
	scratch *image.RGBA
}

// Convert returns img in c.Format. The returned slice is reused by the next
// call.
func (c *Converter) Convert(img image.Image) ([]byte, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	size := c.Format.FrameSize(w, h)
	if size == 0 {
		return nil, fmt.Errorf("unsupported pixel format %s", c.Format)
	}
	if cap(c.buf) < size {
		c.buf = make([]byte, size)
	}
	out := c.buf[:size]

	if c.Format == PixelFormatYUYV || c.Format == PixelFormatNV21 {
		c.yuv(img, out)
		return out, nil
	}

	src := c.rgba(img)
	switch c.Format {
	case PixelFormatRGBX:
		for y := 0; y < h; y++ {
			row := src.Pix[y*src.Stride : y*src.Stride+w*4]
			dst := out[y*w*4 : (y+1)*w*4]
			copy(dst, row)
			for x := 3; x < len(dst); x += 4 {
				dst[x] = 0xff
			}
		}
	case PixelFormatRGB565:
		dst := &RGB565{Pix: out, Stride: w * 2, Rect: image.Rect(0, 0, w, h)}
		for y := 0; y < h; y++ {
			row := src.Pix[y*src.Stride:]
			for x := 0; x < w; x++ {
				dst.put(y*dst.Stride+x*2, row[x*4], row[x*4+1], row[x*4+2])
			}
		}
	}
	return out, nil
}

func (c *Converter) rgba(img image.Image) *image.RGBA {
	b := img.Bounds()
	if rgba, ok := img.(*image.RGBA); ok && b.Min == (image.Point{}) {
		return rgba
	}
	r := image.Rect(0, 0, b.Dx(), b.Dy())
	if c.scratch == nil || c.scratch.Rect != r {
		c.scratch = image.NewRGBA(r)
	}
	draw.Draw(c.scratch, r, img, b.Min, draw.Src)
	return c.scratch
}

func ycbcrAt(img image.Image, x, y int) (uint8, uint8, uint8) {
	if yc, ok := img.(*image.YCbCr); ok {
		c := yc.YCbCrAt(x, y)
		return c.Y, c.Cb, c.Cr
	}
	r, g, b, _ := img.At(x, y).RGBA()
	return color.RGBToYCbCr(uint8(r>>8), uint8(g>>8), uint8(b>>8))
}

func (c *Converter) yuv(img image.Image, out []byte) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	switch c.Format {
	case PixelFormatYUYV:
		for y := 0; y < h; y++ {
			for x := 0; x < w; x += 2 {
				y0, cb, cr := ycbcrAt(img, b.Min.X+x, b.Min.Y+y)
				y1 := y0
				if x+1 < w {
					y1, _, _ = ycbcrAt(img, b.Min.X+x+1, b.Min.Y+y)
				}
				i := (y*w + x) * 2
				out[i] = y0
				out[i+1] = cb
				if i+3 < len(out) {
					out[i+2] = y1
					out[i+3] = cr
				}
			}
		}
	case PixelFormatNV21:
		vu := out[w*h:]
		cw := (w + 1) / 2
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				yy, cb, cr := ycbcrAt(img, b.Min.X+x, b.Min.Y+y)
				out[y*w+x] = yy
				if x%2 == 0 && y%2 == 0 {
					i := (y/2*cw + x/2) * 2
					vu[i] = cr
					vu[i+1] = cb
				}
			}
		}
	}
}
