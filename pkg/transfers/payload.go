package transfers

import (
	"encoding/binary"
	"fmt"
	"io"
)

type PayloadReader interface {
	io.Closer
	ReadPayload() (*Payload, error)
}

// Payload is one UVC payload: a header as defined in UVC spec 1.5, 2.4.3.3
// followed by data. Data aliases the buffer passed to UnmarshalBinary.
type Payload struct {
	HeaderLength      uint8
	HeaderInfoBitmask uint8
	PTS               uint32
	SCR               struct {
		SourceTimeClock uint32
		TokenCounter    uint16
	}
	Data []byte
}

func (f *Payload) FrameID() bool {
	return f.HeaderInfoBitmask&0b00000001 != 0
}

func (f *Payload) EndOfFrame() bool {
	return f.HeaderInfoBitmask&0b00000010 != 0
}

func (f *Payload) HasPTS() bool {
	return f.HeaderInfoBitmask&0b00000100 != 0
}

func (f *Payload) HasSCR() bool {
	return f.HeaderInfoBitmask&0b00001000 != 0
}

func (f *Payload) StillImage() bool {
	return f.HeaderInfoBitmask&0b00100000 != 0
}

func (f *Payload) Error() bool {
	return f.HeaderInfoBitmask&0b01000000 != 0
}

func (f *Payload) EndOfHeader() bool {
	return f.HeaderInfoBitmask&0b10000000 != 0
}

func (f *Payload) UnmarshalBinary(buf []byte) error {
	if len(buf) < 2 || int(buf[0]) < 2 || len(buf) < int(buf[0]) {
		return io.ErrShortBuffer
	}
	f.HeaderLength = buf[0]
	f.HeaderInfoBitmask = buf[1]
	f.PTS = 0
	f.SCR.SourceTimeClock = 0
	f.SCR.TokenCounter = 0
	offset := 2
	if f.HasPTS() {
		if int(f.HeaderLength) < offset+4 {
			return io.ErrShortBuffer
		}
		f.PTS = binary.LittleEndian.Uint32(buf[offset : offset+4])
		offset += 4
	}
	if f.HasSCR() {
		if int(f.HeaderLength) < offset+6 {
			return io.ErrShortBuffer
		}
		f.SCR.SourceTimeClock = binary.LittleEndian.Uint32(buf[offset : offset+4])
		offset += 4
		f.SCR.TokenCounter = binary.LittleEndian.Uint16(buf[offset : offset+2])
	}
	f.Data = buf[f.HeaderLength:]
	return nil
}

func (f *Payload) String() string {
	return fmt.Sprintf("payload{fid=%t eof=%t err=%t pts=%d len=%d}", f.FrameID(), f.EndOfFrame(), f.Error(), f.PTS, len(f.Data))
}

// payloadReader turns a reader that returns one payload per Read into a
// PayloadReader. The returned payload is valid until the next call.
type payloadReader struct {
	r   io.ReadCloser
	buf []byte
	p   Payload
}

func NewPayloadReader(r io.ReadCloser, size int) PayloadReader {
	return &payloadReader{r: r, buf: make([]byte, size)}
}

func (pr *payloadReader) ReadPayload() (*Payload, error) {
	for {
		n, err := pr.r.Read(pr.buf)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			continue
		}
		if err := pr.p.UnmarshalBinary(pr.buf[:n]); err != nil {
			// a truncated header is dropped, the next payload resynchronizes.
			continue
		}
		return &pr.p, nil
	}
}

func (pr *payloadReader) Close() error {
	return pr.r.Close()
}
