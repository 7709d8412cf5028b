package capture

import (
	"fmt"

	"github.com/kevmo314/go-uvcmanager/pkg/descriptors"
	"github.com/kevmo314/go-uvcmanager/pkg/transfers"
)

var fourCCYUY2 = [4]byte{'Y', 'U', 'Y', '2'}

// frameFormatOf maps a format descriptor onto the formats a preview can be
// configured with.
func frameFormatOf(fd descriptors.FormatDescriptor) (FrameFormat, bool) {
	switch fd := fd.(type) {
	case *descriptors.MJPEGFormatDescriptor:
		return FrameFormatMJPEG, true
	case *descriptors.UncompressedFormatDescriptor:
		if fcc, err := fd.FourCC(); err == nil && fcc == fourCCYUY2 {
			return FrameFormatYUYV, true
		}
	}
	return 0, false
}

type selection struct {
	si     *transfers.StreamingInterface
	format descriptors.FormatDescriptor
	frame  descriptors.FrameDescriptor
}

func selectFormat(streaming []*transfers.StreamingInterface, width, height int, ff FrameFormat) (selection, error) {
	for _, si := range streaming {
		for _, fd := range si.FormatDescriptors() {
			if f, ok := frameFormatOf(fd); !ok || f != ff {
				continue
			}
			for _, fr := range si.FrameDescriptors(fd) {
				w, h := fr.Size()
				if int(w) == width && int(h) == height {
					return selection{si: si, format: fd, frame: fr}, nil
				}
			}
		}
	}
	return selection{}, fmt.Errorf("%dx%d %s: %w", width, height, ff, ErrFormatUnsupported)
}

func supportedSizes(streaming []*transfers.StreamingInterface) []Size {
	var sizes []Size
	for _, si := range streaming {
		for _, fd := range si.FormatDescriptors() {
			ff, ok := frameFormatOf(fd)
			if !ok {
				continue
			}
			for _, fr := range si.FrameDescriptors(fd) {
				w, h := fr.Size()
				sizes = append(sizes, Size{Width: int(w), Height: int(h), Format: ff, Interval: fr.Interval()})
			}
		}
	}
	return sizes
}
