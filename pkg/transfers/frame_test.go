package transfers

import (
	"errors"
	"io"
	"testing"
)

func payload(flags byte, data string) []byte {
	return append([]byte{2, flags}, data...)
}

func readFrames(t *testing.T, packets ...[]byte) []string {
	t.Helper()
	fr := NewFrameReader(NewPayloadReader(&sliceReader{packets: packets}, 64), 16)
	var frames []string
	for {
		f, err := fr.ReadFrame()
		if errors.Is(err, io.EOF) {
			return frames
		}
		if err != nil {
			t.Fatal(err)
		}
		frames = append(frames, string(f.Data))
	}
}

func TestFrameReaderEndOfFrame(t *testing.T) {
	got := readFrames(t,
		payload(0x00, "ab"),
		payload(0x02, "cd"),
		payload(0x01, "ef"),
		payload(0x03, "gh"),
	)
	if len(got) != 2 || got[0] != "abcd" || got[1] != "efgh" {
		t.Errorf("frames = %q", got)
	}
}

func TestFrameReaderFrameIDToggle(t *testing.T) {
	// no end of frame bits, frames are split on the frame id
	got := readFrames(t,
		payload(0x00, "a"),
		payload(0x00, "b"),
		payload(0x01, "c"),
		payload(0x00, "d"),
		payload(0x02, ""),
	)
	if len(got) != 3 || got[0] != "ab" || got[1] != "c" || got[2] != "d" {
		t.Errorf("frames = %q", got)
	}
}

func TestFrameReaderToggleWithSinglePayloadFrame(t *testing.T) {
	got := readFrames(t,
		payload(0x00, "a"),
		payload(0x03, "b"),
		payload(0x00, "c"),
		payload(0x02, "d"),
	)
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "cd" {
		t.Errorf("frames = %q", got)
	}
}

func TestFrameReaderErrorBit(t *testing.T) {
	fr := NewFrameReader(NewPayloadReader(&sliceReader{packets: [][]byte{
		payload(0x40, "x"),
		payload(0x02, "y"),
		payload(0x03, "z"),
	}}, 64), 16)
	f, err := fr.ReadFrame()
	if err != nil {
		t.Fatal(err)
	}
	if !f.Error {
		t.Error("first frame should carry the error bit")
	}
	f, err = fr.ReadFrame()
	if err != nil {
		t.Fatal(err)
	}
	if f.Error || string(f.Data) != "z" {
		t.Errorf("second frame = %q error=%t", f.Data, f.Error)
	}
}
