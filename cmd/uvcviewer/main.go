package main

import (
	"flag"
	"fmt"
	"image"
	"log"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/kevmo314/go-uvcmanager"
	"github.com/kevmo314/go-uvcmanager/pkg/capture"
	"github.com/kevmo314/go-uvcmanager/pkg/config"
	"github.com/kevmo314/go-uvcmanager/pkg/decode"
	"github.com/kevmo314/go-uvcmanager/pkg/framesink"
	"github.com/kevmo314/go-uvcmanager/pkg/hotplug"
	"github.com/kevmo314/go-uvcmanager/pkg/surface"
)

// Display is both the ebiten game and the manager's render target.
type Display struct {
	manager *uvcmanager.Manager
	width   int
	height  int

	mu    sync.Mutex
	frame *image.RGBA
	dirty bool

	screen  *ebiten.Image
	paused  bool
	status  atomic.Value
	lastSeq atomic.Uint64
}

func (g *Display) Size() (int, int) {
	return g.width, g.height
}

func (g *Display) Present(img *image.RGBA) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.frame == nil || g.frame.Rect != img.Rect {
		g.frame = image.NewRGBA(img.Rect)
	}
	copy(g.frame.Pix, img.Pix)
	g.dirty = true
	return nil
}

func (g *Display) Update() error {
	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeySpace):
		g.manager.Toggle()
	case inpututil.IsKeyJustPressed(ebiten.KeyP):
		var err error
		if g.paused {
			err = g.manager.StartPreview()
		} else {
			err = g.manager.StopPreview()
		}
		if err != nil {
			log.Printf("preview: %v", err)
		}
		g.paused = !g.paused
	case inpututil.IsKeyJustPressed(ebiten.KeyQ):
		return ebiten.Termination
	}
	return nil
}

func (g *Display) Draw(screen *ebiten.Image) {
	g.mu.Lock()
	if g.dirty {
		if g.screen == nil {
			g.screen = ebiten.NewImage(g.width, g.height)
		}
		g.screen.WritePixels(g.frame.Pix)
		g.dirty = false
	}
	g.mu.Unlock()
	if g.screen != nil {
		screen.DrawImage(g.screen, &ebiten.DrawImageOptions{})
	}

	snap := g.manager.Snapshot()
	msg := fmt.Sprintf("%s  frames: %d  dropped: %d  seq: %d", snap.State, snap.Sink.Frames, snap.Sink.Dropped, g.lastSeq.Load())
	if snap.HasSession {
		msg = fmt.Sprintf("%s\n%s %dx%d", msg, snap.Format.FrameFormat, snap.Format.Width, snap.Format.Height)
	}
	if s, ok := g.status.Load().(string); ok {
		msg += "\n" + s
	}
	ebitenutil.DebugPrint(screen, msg)
}

// frameSink counts frames through the binding and keeps the last sequence
// number for the overlay.
func (g *Display) frameSink(pf decode.PixelFormat) framesink.Sink {
	return framesink.Sink{
		Callback:    func(f capture.Frame) { g.lastSeq.Store(f.Sequence) },
		PixelFormat: pf,
	}
}

func (g *Display) Layout(outsideWidth, outsideHeight int) (int, int) {
	return g.width, g.height
}

func main() {
	configPath := flag.String("config", "", "path to a yaml config file")
	width := flag.Int("width", 0, "preview width, overrides the config file")
	height := flag.Int("height", 0, "preview height, overrides the config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *width > 0 && *height > 0 {
		cfg.Capture.Width, cfg.Capture.Height = *width, *height
	}
	pf, _ := cfg.PixelFormat()
	logger := cfg.Logger()
	slog.SetDefault(logger)

	g := &Display{width: cfg.Capture.Width, height: cfg.Capture.Height}

	monitor := hotplug.NewUSBMonitor(
		hotplug.WithPollInterval(cfg.Monitor.PollInterval),
		hotplug.WithFilters(cfg.Monitor.Filters...),
		hotplug.WithMonitorLogger(logger))
	g.manager = uvcmanager.New(monitor,
		uvcmanager.WithConfig(cfg),
		uvcmanager.WithLogger(logger),
		uvcmanager.WithChooser(func() { g.status.Store("plug in a camera") }),
		uvcmanager.WithNotifier(hotplug.NotifierFunc(func(e hotplug.Event) {
			g.status.Store(e.String())
		})),
		uvcmanager.WithButtonCallback(func(b capture.Button) {
			log.Printf("button %d state %d", b.Button, b.State)
		}))
	defer g.manager.Close()

	if err := g.manager.SetFrameSink(g.frameSink(pf)); err != nil {
		log.Fatalf("Failed to set frame sink: %v", err)
	}
	if err := g.manager.SetRenderTargetProvider(surface.Static(g)); err != nil {
		log.Fatalf("Failed to set render target: %v", err)
	}
	if err := g.manager.Foreground(); err != nil {
		log.Fatalf("Failed to register monitor: %v", err)
	}

	ebiten.SetWindowSize(g.width, g.height)
	ebiten.SetWindowTitle("uvcviewer")
	if err := ebiten.RunGame(g); err != nil {
		log.Printf("ebiten error: %s", err)
	}
}
