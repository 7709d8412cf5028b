package decode

import (
	"fmt"
	"image"

	"github.com/kevmo314/go-uvcmanager/pkg/transfers"
)

// UncompressedDecoder wraps raw YUV frames into image.YCbCr without
// copying. The image aliases the packet and is only valid as long as the
// packet is.
type UncompressedDecoder struct {
	images        []image.Image
	fourcc        [4]byte
	width, height int
}

func NewUncompressedDecoder(fourcc [4]byte, width, height int) (*UncompressedDecoder, error) {
	switch fourcc {
	case [4]byte{'Y', 'U', 'Y', '2'}, [4]byte{'N', 'V', '1', '2'}, [4]byte{'I', '4', '2', '0'}, [4]byte{'M', '4', '2', '0'}:
	default:
		return nil, fmt.Errorf("unsupported fourcc %q", fourcc[:])
	}
	return &UncompressedDecoder{fourcc: fourcc, width: width, height: height}, nil
}

func (d *UncompressedDecoder) ReadFrame() (image.Image, error) {
	if len(d.images) == 0 {
		return nil, ErrEAGAIN
	}
	img := d.images[0]
	d.images = d.images[1:]
	return img, nil
}

func (d *UncompressedDecoder) Write(pkt []byte) (int, error) {
	w, h := d.width, d.height
	switch d.fourcc {
	case [4]byte{'Y', 'U', 'Y', '2'}:
		if len(pkt) < w*h*2 {
			return 0, fmt.Errorf("short YUY2 frame: %d bytes for %dx%d", len(pkt), w, h)
		}
		img := image.NewYCbCr(image.Rect(0, 0, w, h), image.YCbCrSubsampleRatio422)
		for y := 0; y < h; y++ {
			row := pkt[y*w*2 : (y+1)*w*2]
			for x := 0; x+1 < w; x += 2 {
				i := x * 2
				img.Y[y*img.YStride+x] = row[i]
				img.Y[y*img.YStride+x+1] = row[i+2]
				img.Cb[y*img.CStride+x/2] = row[i+1]
				img.Cr[y*img.CStride+x/2] = row[i+3]
			}
		}
		d.images = append(d.images, img)
	case [4]byte{'I', '4', '2', '0'}:
		cw, ch := (w+1)/2, (h+1)/2
		if len(pkt) < w*h+2*cw*ch {
			return 0, fmt.Errorf("short I420 frame: %d bytes for %dx%d", len(pkt), w, h)
		}
		d.images = append(d.images, &image.YCbCr{
			Y:              pkt[:w*h],
			Cb:             pkt[w*h : w*h+cw*ch],
			Cr:             pkt[w*h+cw*ch : w*h+2*cw*ch],
			YStride:        w,
			CStride:        cw,
			SubsampleRatio: image.YCbCrSubsampleRatio420,
			Rect:           image.Rect(0, 0, w, h),
		})
	case [4]byte{'N', 'V', '1', '2'}:
		cw, ch := (w+1)/2, (h+1)/2
		if len(pkt) < w*h+2*cw*ch {
			return 0, fmt.Errorf("short NV12 frame: %d bytes for %dx%d", len(pkt), w, h)
		}
		img := image.NewYCbCr(image.Rect(0, 0, w, h), image.YCbCrSubsampleRatio420)
		copy(img.Y, pkt[:w*h])
		uv := pkt[w*h:]
		for i := 0; i < cw*ch; i++ {
			img.Cb[i] = uv[2*i]
			img.Cr[i] = uv[2*i+1]
		}
		d.images = append(d.images, img)
	case [4]byte{'M', '4', '2', '0'}:
		// two lines of Y followed by one line of interleaved CbCr
		cw, ch := (w+1)/2, (h+1)/2
		if len(pkt) < w*h+2*cw*ch {
			return 0, fmt.Errorf("short M420 frame: %d bytes for %dx%d", len(pkt), w, h)
		}
		img := image.NewYCbCr(image.Rect(0, 0, w, h), image.YCbCrSubsampleRatio420)
		stride := w * 3
		for cy := 0; cy < h/2; cy++ {
			block := pkt[cy*stride : (cy+1)*stride]
			copy(img.Y[(2*cy)*w:], block[:w])
			copy(img.Y[(2*cy+1)*w:], block[w:2*w])
			for cx := 0; cx < w/2; cx++ {
				img.Cb[cy*img.CStride+cx] = block[2*w+2*cx]
				img.Cr[cy*img.CStride+cx] = block[2*w+2*cx+1]
			}
		}
		d.images = append(d.images, img)
	}
	return len(pkt), nil
}

func (d *UncompressedDecoder) WriteUSBFrame(fr *transfers.Frame) error {
	_, err := d.Write(fr.Data)
	return err
}

func (d *UncompressedDecoder) Close() error {
	d.images = nil
	return nil
}
