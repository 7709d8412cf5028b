package formats

import "testing"

func TestFourCC(t *testing.T) {
	tests := []struct {
		format CompressionFormat
		want   string
	}{
		{CompressionFormatYUY2, "YUY2"},
		{CompressionFormatNV12, "NV12"},
		{CompressionFormatM420, "M420"},
		{CompressionFormatI420, "I420"},
	}
	for _, tt := range tests {
		fcc, err := tt.format.FourCC()
		if err != nil {
			t.Fatalf("FourCC(%s): %v", tt.want, err)
		}
		if string(fcc[:]) != tt.want {
			t.Errorf("FourCC = %q, want %q", fcc, tt.want)
		}
		if tt.format.String() != tt.want {
			t.Errorf("String() = %q, want %q", tt.format.String(), tt.want)
		}
	}
}

func TestFourCCUnknown(t *testing.T) {
	var c CompressionFormat
	if _, err := c.FourCC(); err == nil {
		t.Error("expected error for zero guid")
	}
	if c.String() != "00000000-0000-0000-0000-000000000000" {
		t.Errorf("String() = %q", c.String())
	}
}
