package descriptors

import "io"

func copyGUID(dst []byte, src []byte) {
	// copy according to the GUID format defined in UVC spec 1.5, section 2.9.
	dst[0] = src[3]
	dst[1] = src[2]
	dst[2] = src[1]
	dst[3] = src[0]
	dst[4] = src[5]
	dst[5] = src[4]
	dst[6] = src[7]
	dst[7] = src[6]
	copy(dst[8:16], src[8:16])
}

// Blocks splits a class-specific Extra buffer into length-prefixed
// descriptors. A zero or overrunning length ends the walk with
// io.ErrUnexpectedEOF.
func Blocks(buf []byte) ([][]byte, error) {
	var blocks [][]byte
	for i := 0; i < len(buf); {
		n := int(buf[i])
		if n < 3 || i+n > len(buf) {
			return blocks, io.ErrUnexpectedEOF
		}
		blocks = append(blocks, buf[i:i+n])
		i += n
	}
	return blocks, nil
}
