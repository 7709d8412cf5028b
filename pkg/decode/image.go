package decode

import (
	"image"
	"image/color"
)

// RGB565 is an in-memory image of little-endian 5-6-5 packed pixels.
type RGB565 struct {
	// Pix holds the image's pixels, two bytes per pixel. The pixel at
	// (x, y) starts at Pix[(y-Rect.Min.Y)*Stride + (x-Rect.Min.X)*2].
	Pix    []uint8
	Stride int
	Rect   image.Rectangle
}

var _ image.Image = &RGB565{}

func NewRGB565(r image.Rectangle) *RGB565 {
	return &RGB565{
		Pix:    make([]uint8, 2*r.Dx()*r.Dy()),
		Stride: 2 * r.Dx(),
		Rect:   r,
	}
}

func (p *RGB565) ColorModel() color.Model { return color.RGBAModel }

func (p *RGB565) Bounds() image.Rectangle { return p.Rect }

func (p *RGB565) At(x, y int) color.Color {
	return p.RGBAAt(x, y)
}

func (p *RGB565) RGBAAt(x, y int) color.RGBA {
	if !(image.Point{x, y}.In(p.Rect)) {
		return color.RGBA{}
	}
	i := p.PixOffset(x, y)
	v := uint16(p.Pix[i]) | uint16(p.Pix[i+1])<<8
	r := uint8(v>>11) & 0x1f
	g := uint8(v>>5) & 0x3f
	b := uint8(v) & 0x1f
	return color.RGBA{r<<3 | r>>2, g<<2 | g>>4, b<<3 | b>>2, 0xff}
}

func (p *RGB565) Set(x, y int, c color.Color) {
	if !(image.Point{x, y}.In(p.Rect)) {
		return
	}
	r, g, b, _ := c.RGBA()
	p.put(p.PixOffset(x, y), uint8(r>>8), uint8(g>>8), uint8(b>>8))
}

func (p *RGB565) put(i int, r, g, b uint8) {
	v := uint16(r>>3)<<11 | uint16(g>>2)<<5 | uint16(b>>3)
	p.Pix[i] = uint8(v)
	p.Pix[i+1] = uint8(v >> 8)
}

// PixOffset returns the index of the first element of Pix that corresponds to
// the pixel at (x, y).
func (p *RGB565) PixOffset(x, y int) int {
	return (y-p.Rect.Min.Y)*p.Stride + (x-p.Rect.Min.X)*2
}
