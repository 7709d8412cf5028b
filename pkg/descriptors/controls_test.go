package descriptors

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"
)

func TestVideoProbeCommitControlRoundTrip(t *testing.T) {
	original := &VideoProbeCommitControl{
		HintBitmask:            0x0001,
		FormatIndex:            1,
		FrameIndex:             2,
		FrameInterval:          333333 * 100 * time.Nanosecond,
		MaxVideoFrameSize:      640 * 480 * 2,
		MaxPayloadTransferSize: 3072,
		ClockFrequency:         48000000,
		PreferedVersion:        0x01,
		MaxVersion:             0x01,
		BitDepthLuma:           8,
		LayoutPerStream:        [4]uint16{1, 2, 3, 4},
	}
	data, err := original.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	decoded := &VideoProbeCommitControl{}
	if err := decoded.UnmarshalBinary(data); err != nil {
		t.Fatal(err)
	}
	if *decoded != *original {
		t.Errorf("decoded = %+v, want %+v", decoded, original)
	}
}

func TestVideoProbeCommitControlShortLayouts(t *testing.T) {
	vpcc := &VideoProbeCommitControl{FormatIndex: 1, FrameIndex: 3, ClockFrequency: 48000000, Usage: 7}

	buf26 := make([]byte, 26)
	if err := vpcc.MarshalInto(buf26); err != nil {
		t.Fatal(err)
	}
	if buf26[2] != 1 || buf26[3] != 3 {
		t.Errorf("format/frame = %d/%d, want 1/3", buf26[2], buf26[3])
	}

	buf34 := make([]byte, 34)
	if err := vpcc.MarshalInto(buf34); err != nil {
		t.Fatal(err)
	}
	decoded := &VideoProbeCommitControl{}
	if err := decoded.UnmarshalBinary(buf34); err != nil {
		t.Fatal(err)
	}
	if decoded.ClockFrequency != 48000000 {
		t.Errorf("ClockFrequency = %d", decoded.ClockFrequency)
	}
	if decoded.Usage != 0 {
		t.Errorf("Usage = %d, want 0 for a 1.1 layout", decoded.Usage)
	}

	if err := vpcc.MarshalInto(make([]byte, 10)); !errors.Is(err, io.ErrShortBuffer) {
		t.Errorf("MarshalInto(10) = %v, want io.ErrShortBuffer", err)
	}
	if err := decoded.UnmarshalBinary(make([]byte, 10)); !errors.Is(err, io.ErrShortBuffer) {
		t.Errorf("UnmarshalBinary(10) = %v, want io.ErrShortBuffer", err)
	}
}

func TestVideoProbeCommitControlByteOrder(t *testing.T) {
	vpcc := &VideoProbeCommitControl{HintBitmask: 0x1234, MaxVideoFrameSize: 0xDEADBEEF}
	data, _ := vpcc.MarshalBinary()
	if data[0] != 0x34 || data[1] != 0x12 {
		t.Errorf("HintBitmask bytes = %x", data[0:2])
	}
	if !bytes.Equal(data[18:22], []byte{0xEF, 0xBE, 0xAD, 0xDE}) {
		t.Errorf("MaxVideoFrameSize bytes = %x", data[18:22])
	}
}

func TestProbeCommitSize(t *testing.T) {
	tests := []struct {
		bcd  uint16
		want int
	}{
		{0x0100, 26},
		{0x0110, 34},
		{0x0150, 48},
	}
	for _, tt := range tests {
		if got := ProbeCommitSize(tt.bcd); got != tt.want {
			t.Errorf("ProbeCommitSize(%#x) = %d, want %d", tt.bcd, got, tt.want)
		}
	}
}
