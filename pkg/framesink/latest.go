package framesink

import (
	"sync"

	"github.com/kevmo314/go-uvcmanager/pkg/capture"
	"github.com/kevmo314/go-uvcmanager/pkg/decode"
)

// LatestFrame keeps a copy of the most recent frame. Frames that are
// replaced before anyone takes a snapshot are counted as dropped.
type LatestFrame struct {
	format decode.PixelFormat

	mu      sync.Mutex
	frame   capture.Frame
	fresh   bool
	has     bool
	dropped uint64
}

func NewLatestFrame(format decode.PixelFormat) *LatestFrame {
	return &LatestFrame{format: format}
}

func (l *LatestFrame) Sink() Sink {
	return Sink{Callback: l.Put, PixelFormat: l.format}
}

func (l *LatestFrame) Put(f capture.Frame) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fresh {
		l.dropped++
	}
	data := append(l.frame.Data[:0], f.Data...)
	l.frame = f
	l.frame.Data = data
	l.fresh, l.has = true, true
}

// Snapshot returns a copy of the latest frame.
func (l *LatestFrame) Snapshot() (capture.Frame, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.has {
		return capture.Frame{}, false
	}
	f := l.frame
	f.Data = append([]byte(nil), l.frame.Data...)
	l.fresh = false
	return f, true
}

func (l *LatestFrame) Dropped() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dropped
}
