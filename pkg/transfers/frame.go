package transfers

import "bytes"

// Frame is a reassembled video frame. Data is owned by the FrameReader and
// is only valid until the next call to ReadFrame.
type Frame struct {
	Data  []byte
	PTS   uint32
	Error bool
}

func (f *Frame) Reader() *bytes.Reader {
	return bytes.NewReader(f.Data)
}

// FrameReader assembles payloads into frames. A frame ends when the end of
// frame bit is set or when the frame id bit toggles.
type FrameReader struct {
	pr PayloadReader

	started bool
	fid     bool
	pending bool

	buf, out []byte
	pts      uint32
	errored  bool
}

func NewFrameReader(pr PayloadReader, sizeHint int) *FrameReader {
	return &FrameReader{
		pr:  pr,
		buf: make([]byte, 0, sizeHint),
		out: make([]byte, 0, sizeHint),
	}
}

// ReadFrame reads individual payloads from the device and returns a
// constructed frame.
func (r *FrameReader) ReadFrame() (*Frame, error) {
	if r.pending {
		r.pending = false
		return r.emit(), nil
	}
	for {
		p, err := r.pr.ReadPayload()
		if err != nil {
			return nil, err
		}
		if !r.started || p.FrameID() != r.fid {
			// frame id bit flipped, this is a new frame. this can happen
			// without an end of frame bit if the device does not set it.
			r.started = true
			r.fid = p.FrameID()
			if len(r.buf) > 0 {
				f := r.emit()
				r.add(p)
				r.pending = p.EndOfFrame()
				return f, nil
			}
		}
		r.add(p)
		if p.EndOfFrame() && len(r.buf) > 0 {
			return r.emit(), nil
		}
	}
}

func (r *FrameReader) add(p *Payload) {
	if p.HasPTS() {
		r.pts = p.PTS
	}
	if p.Error() {
		r.errored = true
	}
	r.buf = append(r.buf, p.Data...)
}

func (r *FrameReader) emit() *Frame {
	r.out, r.buf = r.buf, r.out[:0]
	f := &Frame{Data: r.out, PTS: r.pts, Error: r.errored}
	r.errored = false
	return f
}

func (r *FrameReader) Close() error {
	return r.pr.Close()
}
