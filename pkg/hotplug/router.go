package hotplug

import (
	"context"
	"log/slog"
	"time"

	"github.com/kevmo314/go-uvcmanager/pkg/device"
	"github.com/kevmo314/go-uvcmanager/pkg/worker"
)

// Task IDs used by the router. Pending tasks with the same ID replace each
// other.
const (
	TaskOpenSession    = "open-session"
	TaskReleaseSession = "release-session"
)

// Controller performs session transitions. It is only called from worker
// tasks.
type Controller interface {
	// Replace releases the current session, if any, and opens a new one
	// that owns token.
	Replace(ctx context.Context, dev device.Device, token *device.ConnectionToken) error
	Release(ctx context.Context) error
	// Current returns the device of the live session.
	Current() (device.Device, bool)
}

type Scheduler interface {
	Submit(ctx context.Context, task *worker.Task, delay time.Duration)
}

type RouterOption func(*Router)

// WithMatchDevice makes disconnects release the session only if it belongs
// to the disconnecting device. By default any disconnect releases the
// current session.
func WithMatchDevice(match bool) RouterOption {
	return func(r *Router) { r.matchDevice = match }
}

func WithNotifier(n Notifier) RouterOption {
	return func(r *Router) { r.notifier = n }
}

func WithRouterLogger(l *slog.Logger) RouterOption {
	return func(r *Router) { r.logger = l }
}

// Router is a Listener that schedules session work on a worker queue.
type Router struct {
	queue       Scheduler
	ctrl        Controller
	notifier    Notifier
	matchDevice bool
	logger      *slog.Logger
}

var _ Listener = (*Router)(nil)

func NewRouter(queue Scheduler, ctrl Controller, opts ...RouterOption) *Router {
	r := &Router{queue: queue, ctrl: ctrl, logger: slog.Default()}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Router) notify(kind EventKind, dev device.Device) {
	r.logger.Debug("hotplug: event", "kind", kind, "device", dev.String())
	if r.notifier != nil {
		r.notifier.Notify(Event{Kind: kind, Device: dev, Time: time.Now()})
	}
}

func (r *Router) OnAttach(dev device.Device) {
	r.notify(EventAttach, dev)
}

func (r *Router) OnDetach(dev device.Device) {
	r.notify(EventDetach, dev)
}

func (r *Router) OnCancel(dev device.Device) {
	r.notify(EventCancel, dev)
}

// OnConnect schedules release-then-open as one task. A connect that is
// superseded before it runs closes its token.
func (r *Router) OnConnect(dev device.Device, token *device.ConnectionToken) {
	r.logger.Info("hotplug: connect", "device", dev.String())
	r.queue.Submit(context.Background(), &worker.Task{
		ID: TaskOpenSession,
		Run: func(ctx context.Context) error {
			return r.ctrl.Replace(ctx, dev, token)
		},
		Discard: func() {
			r.logger.Debug("hotplug: connect superseded", "device", dev.String())
			token.Close()
		},
	}, 0)
}

// OnDisconnect schedules a release of the current session. Unless
// WithMatchDevice is set, the disconnecting device is not compared with the
// session's device.
func (r *Router) OnDisconnect(dev device.Device, _ *device.ConnectionToken) {
	r.logger.Info("hotplug: disconnect", "device", dev.String())
	r.queue.Submit(context.Background(), &worker.Task{
		ID: TaskReleaseSession,
		Run: func(ctx context.Context) error {
			if r.matchDevice {
				cur, ok := r.ctrl.Current()
				if !ok || !cur.Same(dev) {
					r.logger.Debug("hotplug: disconnect for another device ignored", "device", dev.String())
					return nil
				}
			}
			return r.ctrl.Release(ctx)
		},
	}, 0)
}
