package formats

import (
	"fmt"

	"github.com/google/uuid"
)

// CompressionFormat is the guidFormat of an uncompressed format descriptor,
// already in RFC 4122 byte order.
type CompressionFormat [16]byte

var (
	CompressionFormatYUY2 = CompressionFormat(uuid.MustParse("32595559-0000-0010-8000-00AA00389B71"))
	CompressionFormatNV12 = CompressionFormat(uuid.MustParse("3231564E-0000-0010-8000-00AA00389B71"))
	CompressionFormatM420 = CompressionFormat(uuid.MustParse("3032344D-0000-0010-8000-00AA00389B71"))
	CompressionFormatI420 = CompressionFormat(uuid.MustParse("30323449-0000-0010-8000-00AA00389B71"))
)

func (c CompressionFormat) String() string {
	if fcc, err := c.FourCC(); err == nil {
		return string(fcc[:])
	}
	return uuid.UUID(c).String()
}

// FourCC returns the four character code encoded in the first field of the
// GUID.
func (c CompressionFormat) FourCC() ([4]byte, error) {
	switch c {
	case CompressionFormatYUY2:
		return [4]byte{'Y', 'U', 'Y', '2'}, nil
	case CompressionFormatNV12:
		return [4]byte{'N', 'V', '1', '2'}, nil
	case CompressionFormatM420:
		return [4]byte{'M', '4', '2', '0'}, nil
	case CompressionFormatI420:
		return [4]byte{'I', '4', '2', '0'}, nil
	}
	return [4]byte{}, fmt.Errorf("formats: unknown guid %s", uuid.UUID(c))
}
