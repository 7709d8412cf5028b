package main

import (
	"flag"
	"image"
	"image/color"
	"log"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kevmo314/go-uvcmanager"
	"github.com/kevmo314/go-uvcmanager/pkg/capture"
	"github.com/kevmo314/go-uvcmanager/pkg/config"
	"github.com/kevmo314/go-uvcmanager/pkg/framesink"
	"github.com/kevmo314/go-uvcmanager/pkg/hotplug"
	"github.com/kevmo314/go-uvcmanager/pkg/surface"
	"github.com/veandco/go-sdl2/sdl"
)

// window is the render target. Frames are converted to I420 so the main
// loop can upload them with UpdateYUV.
type window struct {
	width, height int

	mu     sync.Mutex
	latest *image.YCbCr
}

func (w *window) Size() (int, int) {
	return w.width, w.height
}

func (w *window) Present(img *image.RGBA) error {
	frame := image.NewYCbCr(img.Rect, image.YCbCrSubsampleRatio420)
	b := img.Rect
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := img.RGBAAt(x, y)
			yy, cb, cr := color.RGBToYCbCr(c.R, c.G, c.B)
			frame.Y[frame.YOffset(x, y)] = yy
			if x%2 == 0 && y%2 == 0 {
				off := frame.COffset(x, y)
				frame.Cb[off], frame.Cr[off] = cb, cr
			}
		}
	}
	w.mu.Lock()
	w.latest = frame
	w.mu.Unlock()
	return nil
}

func (w *window) take() *image.YCbCr {
	w.mu.Lock()
	defer w.mu.Unlock()
	frame := w.latest
	w.latest = nil
	return frame
}

func main() {
	runtime.LockOSThread() // SDL requires main thread

	configPath := flag.String("config", "", "path to a yaml config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	pf, _ := cfg.PixelFormat()
	logger := cfg.Logger()
	slog.SetDefault(logger)

	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		log.Fatalf("Failed to init SDL: %v", err)
	}
	defer sdl.Quit()

	win := &window{width: cfg.Capture.Width, height: cfg.Capture.Height}

	var frames atomic.Uint64
	monitor := hotplug.NewUSBMonitor(
		hotplug.WithPollInterval(cfg.Monitor.PollInterval),
		hotplug.WithFilters(cfg.Monitor.Filters...),
		hotplug.WithMonitorLogger(logger))
	manager := uvcmanager.New(monitor,
		uvcmanager.WithConfig(cfg),
		uvcmanager.WithLogger(logger),
		uvcmanager.WithNotifier(hotplug.NotifierFunc(func(e hotplug.Event) {
			log.Printf("%s", e)
		})))
	defer manager.Close()

	if err := manager.SetFrameSink(framesink.Sink{
		Callback:    func(capture.Frame) { frames.Add(1) },
		PixelFormat: pf,
	}); err != nil {
		log.Fatalf("Failed to set frame sink: %v", err)
	}
	if err := manager.SetRenderTargetProvider(surface.Static(win)); err != nil {
		log.Fatalf("Failed to set render target: %v", err)
	}
	if err := manager.Register(); err != nil {
		log.Fatalf("Failed to register monitor: %v", err)
	}

	sw, err := sdl.CreateWindow("uvc",
		sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED,
		int32(win.width), int32(win.height), sdl.WINDOW_SHOWN)
	if err != nil {
		log.Fatalf("Failed to create window: %v", err)
	}
	defer sw.Destroy()

	renderer, err := sdl.CreateRenderer(sw, -1, sdl.RENDERER_ACCELERATED)
	if err != nil {
		log.Fatalf("Failed to create renderer: %v", err)
	}
	defer renderer.Destroy()

	texture, err := renderer.CreateTexture(sdl.PIXELFORMAT_IYUV,
		sdl.TEXTUREACCESS_STREAMING, int32(win.width), int32(win.height))
	if err != nil {
		log.Fatalf("Failed to create texture: %v", err)
	}
	defer texture.Destroy()

	var displayCount int
	var lastFPS time.Time

	running := true
	for running {
		for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
			switch e := event.(type) {
			case *sdl.QuitEvent:
				running = false
			case *sdl.KeyboardEvent:
				if e.Type != sdl.KEYDOWN {
					continue
				}
				switch e.Keysym.Sym {
				case sdl.K_SPACE:
					go manager.Toggle()
				case sdl.K_q, sdl.K_ESCAPE:
					running = false
				}
			}
		}

		if frame := win.take(); frame != nil {
			texture.UpdateYUV(nil,
				frame.Y, frame.YStride,
				frame.Cb, frame.CStride,
				frame.Cr, frame.CStride)
			displayCount++
		}

		renderer.Clear()
		renderer.Copy(texture, nil, nil)
		renderer.Present()

		if time.Since(lastFPS) >= time.Second {
			if displayCount > 0 {
				log.Printf("Display FPS: %d, sink frames: %d", displayCount, frames.Load())
			}
			displayCount = 0
			lastFPS = time.Now()
		}

		sdl.Delay(1)
	}
}
