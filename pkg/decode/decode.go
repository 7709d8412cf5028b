// Package decode turns reassembled UVC frames into images and converts
// images into the packed pixel layouts handed to frame callbacks.
package decode

import (
	"errors"
	"fmt"
	"image"

	"github.com/kevmo314/go-uvcmanager/pkg/descriptors"
	"github.com/kevmo314/go-uvcmanager/pkg/transfers"
)

var ErrEAGAIN = errors.New("EAGAIN")

type VideoDecoder interface {
	ReadFrame() (image.Image, error)
	Write(pkt []byte) (int, error)
	WriteUSBFrame(fr *transfers.Frame) error
	Close() error
}

func NewDescriptorDecoder(fd descriptors.FormatDescriptor, fr descriptors.FrameDescriptor) (VideoDecoder, error) {
	switch fd := fd.(type) {
	case *descriptors.MJPEGFormatDescriptor:
		return NewMJPEGDecoder()
	case *descriptors.UncompressedFormatDescriptor:
		fcc, err := fd.FourCC()
		if err != nil {
			return nil, err
		}
		w, h := fr.Size()
		return NewUncompressedDecoder(fcc, int(w), int(h))
	}
	return nil, fmt.Errorf("unsupported format descriptor: %T", fd)
}

type FrameReaderDecoder struct {
	reader transfers.Reader
	dec    VideoDecoder
}

func NewFrameReaderDecoder(reader transfers.Reader, fd descriptors.FormatDescriptor, fr descriptors.FrameDescriptor) (*FrameReaderDecoder, error) {
	dec, err := NewDescriptorDecoder(fd, fr)
	if err != nil {
		return nil, err
	}
	return &FrameReaderDecoder{reader: reader, dec: dec}, nil
}

// ReadFrame returns the next decodable frame. Frames flagged with the
// payload error bit or that fail to decode are skipped.
func (d *FrameReaderDecoder) ReadFrame() (image.Image, error) {
	for {
		img, err := d.dec.ReadFrame()
		if err == nil {
			return img, nil
		}
		if !errors.Is(err, ErrEAGAIN) {
			return nil, err
		}
		fr, err := d.reader.ReadFrame()
		if err != nil {
			return nil, err
		}
		if fr.Error {
			continue
		}
		if err := d.dec.WriteUSBFrame(fr); err != nil {
			continue
		}
	}
}

func (d *FrameReaderDecoder) Close() error {
	return errors.Join(d.dec.Close(), d.reader.Close())
}
