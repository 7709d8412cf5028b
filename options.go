package uvcmanager

import (
	"log/slog"

	"github.com/kevmo314/go-uvcmanager/pkg/capture"
	"github.com/kevmo314/go-uvcmanager/pkg/config"
	"github.com/kevmo314/go-uvcmanager/pkg/hotplug"
	"github.com/kevmo314/go-uvcmanager/pkg/session"
)

type options struct {
	logger      *slog.Logger
	newCamera   func() capture.Camera
	width       int
	height      int
	matchDevice bool
	notifier    hotplug.Notifier
	chooser     func()
	onStatus    func(capture.Status)
	onButton    func(capture.Button)
}

type Option func(*options)

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithConfig applies the capture size and router settings of cfg.
func WithConfig(cfg *config.Config) Option {
	return func(o *options) {
		if cfg == nil {
			return
		}
		o.width, o.height = cfg.Capture.Width, cfg.Capture.Height
		o.matchDevice = cfg.Router.MatchDevice
	}
}

// WithNewCamera replaces the camera constructor. The default builds a
// capture.UVCCamera.
func WithNewCamera(fn func() capture.Camera) Option {
	return func(o *options) { o.newCamera = fn }
}

func WithPreviewSize(width, height int) Option {
	return func(o *options) { o.width, o.height = width, height }
}

// WithMatchDevice restricts disconnect handling to the device of the
// current session.
func WithMatchDevice(match bool) Option {
	return func(o *options) { o.matchDevice = match }
}

// WithNotifier receives attach, detach and cancel events.
func WithNotifier(n hotplug.Notifier) Option {
	return func(o *options) { o.notifier = n }
}

// WithChooser is called by Toggle when there is no session. It runs with
// the manager lock held and must not call back into the Manager.
func WithChooser(fn func()) Option {
	return func(o *options) { o.chooser = fn }
}

func WithStatusCallback(fn func(capture.Status)) Option {
	return func(o *options) { o.onStatus = fn }
}

func WithButtonCallback(fn func(capture.Button)) Option {
	return func(o *options) { o.onButton = fn }
}

func defaultOptions() options {
	return options{
		logger: slog.Default(),
		width:  session.DefaultWidth,
		height: session.DefaultHeight,
	}
}
