package main

import (
	"flag"
	"fmt"
	"image"
	"log"
	"log/slog"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/kevmo314/go-uvcmanager"
	"github.com/kevmo314/go-uvcmanager/pkg/capture"
	"github.com/kevmo314/go-uvcmanager/pkg/config"
	"github.com/kevmo314/go-uvcmanager/pkg/framesink"
	"github.com/kevmo314/go-uvcmanager/pkg/hotplug"
	"github.com/kevmo314/go-uvcmanager/pkg/surface"
	"github.com/rivo/tview"
)

// previewTarget draws frames into a tview image at most every 50ms.
type previewTarget struct {
	app     *tview.Application
	preview *tview.Image
	width   int
	height  int

	mu   sync.Mutex
	last time.Time
}

func (p *previewTarget) Size() (int, int) {
	return p.width, p.height
}

func (p *previewTarget) Present(img *image.RGBA) error {
	p.mu.Lock()
	t1 := time.Now()
	if t1.Sub(p.last) < 50*time.Millisecond {
		p.mu.Unlock()
		return nil
	}
	p.last = t1
	p.mu.Unlock()

	frame := image.NewRGBA(img.Rect)
	copy(frame.Pix, img.Pix)
	p.app.QueueUpdateDraw(func() { p.preview.SetImage(frame) })
	return nil
}

func main() {
	configPath := flag.String("config", "", "path to a yaml config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	pf, _ := cfg.PixelFormat()
	level, _ := cfg.LogLevel()

	app := tview.NewApplication()

	events := tview.NewList().ShowSecondaryText(false)
	events.SetBorder(true).SetTitle("Device Events")

	state := tview.NewTextView().SetDynamicColors(true)
	state.SetBorder(true).SetTitle("Session")

	preview := tview.NewImage()
	preview.SetColors(256).SetDithering(tview.DitheringNone).SetBorder(true).SetTitle("Preview")

	logText := tview.NewTextView()
	logText.SetMaxLines(10).SetBorder(true).SetTitle("Log")

	log.SetOutput(logText)
	logger := slog.New(slog.NewTextHandler(logText, &slog.HandlerOptions{Level: level}))

	monitor := hotplug.NewUSBMonitor(
		hotplug.WithPollInterval(cfg.Monitor.PollInterval),
		hotplug.WithFilters(cfg.Monitor.Filters...),
		hotplug.WithMonitorLogger(logger))
	manager := uvcmanager.New(monitor,
		uvcmanager.WithConfig(cfg),
		uvcmanager.WithLogger(logger),
		uvcmanager.WithChooser(func() { log.Printf("no camera connected") }),
		uvcmanager.WithNotifier(hotplug.NotifierFunc(func(e hotplug.Event) {
			app.QueueUpdateDraw(func() {
				events.AddItem(fmt.Sprintf("%s %s", e.Time.Format("15:04:05"), e), "", 0, nil)
			})
		})),
		uvcmanager.WithStatusCallback(func(s capture.Status) {
			log.Printf("status: class %d event %d selector %d", s.Class, s.Event, s.Selector)
		}),
		uvcmanager.WithButtonCallback(func(b capture.Button) {
			log.Printf("button %d state %d", b.Button, b.State)
		}))
	defer manager.Close()

	latest := framesink.NewLatestFrame(pf)
	if err := manager.SetFrameSink(latest.Sink()); err != nil {
		log.Fatalf("Failed to set frame sink: %v", err)
	}
	target := &previewTarget{app: app, preview: preview, width: 64, height: 48}
	if err := manager.SetRenderTargetProvider(surface.Static(target)); err != nil {
		log.Fatalf("Failed to set render target: %v", err)
	}
	if err := manager.Register(); err != nil {
		log.Fatalf("Failed to register monitor: %v", err)
	}

	app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Rune() {
		case 't':
			go manager.Toggle()
		case 'r':
			go manager.ReleaseCamera()
		case 's':
			go func() {
				if err := manager.StartPreview(); err != nil {
					log.Printf("start preview: %v", err)
				}
			}()
		case 'p':
			go func() {
				if err := manager.StopPreview(); err != nil {
					log.Printf("stop preview: %v", err)
				}
			}()
		case 'q':
			app.Stop()
			return nil
		}
		return event
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
			}
			text := describe(manager.Snapshot(), latest.Dropped())
			app.QueueUpdateDraw(func() { state.SetText(text) })
		}
	}()

	help := tview.NewTextView().SetText("t toggle  r release  s start  p pause  q quit")

	flex := tview.NewFlex().
		AddItem(events, 0, 1, true).
		AddItem(state, 0, 1, false).
		AddItem(preview, 0, 2, false)

	root := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(flex, 0, 1, true).
		AddItem(logText, 10, 0, false).
		AddItem(help, 1, 0, false)
	if err := app.SetRoot(root, true).Run(); err != nil {
		panic(err)
	}
}

func describe(snap uvcmanager.Snapshot, overwritten uint64) string {
	if !snap.HasSession {
		s := "[gray]no session[-]\n"
		if snap.LastError != nil {
			s += fmt.Sprintf("\n[red]last error:[-] %v\n", snap.LastError)
		}
		return s
	}
	s := fmt.Sprintf("[yellow]%s[-]\n%s\n\nsession %s\n", snap.State, snap.Device, snap.SessionID)
	s += fmt.Sprintf("format %s %dx%d\n", snap.Format.FrameFormat, snap.Format.Width, snap.Format.Height)
	if snap.Degraded != nil {
		s += fmt.Sprintf("[red]%v[-]\n", snap.Degraded)
	}
	s += fmt.Sprintf("\nframes %d (%d bytes)\ndropped %d, overwritten %d, panics %d\n",
		snap.Sink.Frames, snap.Sink.Bytes, snap.Sink.Dropped, overwritten, snap.Sink.Panics)
	s += fmt.Sprintf("\nworker: %d run, %d superseded, %d failed\n",
		snap.Worker.Executed, snap.Worker.Superseded, snap.Worker.Failed)
	return s
}
