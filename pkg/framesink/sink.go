// Package framesink connects a host frame callback to the capture goroutine
// of one session at a time.
package framesink

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/kevmo314/go-uvcmanager/pkg/capture"
	"github.com/kevmo314/go-uvcmanager/pkg/decode"
)

// Sink receives converted frames. Frame.Data is only valid during the call.
type Sink struct {
	Callback    func(capture.Frame)
	PixelFormat decode.PixelFormat
}

func (s Sink) Valid() bool {
	return s.Callback != nil
}

type Stats struct {
	Frames  uint64
	Bytes   uint64
	Dropped uint64
	Panics  uint64
}

// Binding attaches a sink to one session. Deliver is called from the capture
// goroutine only.
type Binding struct {
	sink   Sink
	logger *slog.Logger

	unbound atomic.Bool
	frames  atomic.Uint64
	bytes   atomic.Uint64
	dropped atomic.Uint64
	panics  atomic.Uint64
}

func Bind(sink Sink, logger *slog.Logger) *Binding {
	if logger == nil {
		logger = slog.Default()
	}
	return &Binding{sink: sink, logger: logger}
}

func (b *Binding) PixelFormat() decode.PixelFormat {
	return b.sink.PixelFormat
}

// Deliver hands f to the sink. A panicking callback is recovered so the
// capture goroutine keeps running.
func (b *Binding) Deliver(f capture.Frame) {
	if b == nil {
		return
	}
	if b.unbound.Load() || b.sink.Callback == nil {
		b.dropped.Add(1)
		return
	}
	defer func() {
		if r := recover(); r != nil {
			n := b.panics.Add(1)
			b.logger.Error("framesink: callback panicked", "seq", f.Sequence, "panics", n, "err", fmt.Sprint(r))
		}
	}()
	b.sink.Callback(f)
	b.frames.Add(1)
	b.bytes.Add(uint64(len(f.Data)))
}

// Unbind stops delivery. Frames arriving afterwards are counted as dropped.
func (b *Binding) Unbind() {
	if b == nil {
		return
	}
	b.unbound.Store(true)
}

func (b *Binding) Stats() Stats {
	if b == nil {
		return Stats{}
	}
	return Stats{
		Frames:  b.frames.Load(),
		Bytes:   b.bytes.Load(),
		Dropped: b.dropped.Load(),
		Panics:  b.panics.Load(),
	}
}
