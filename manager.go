// Package uvcmanager keeps at most one live capture session for a
// hot-pluggable USB video device.
//
// A Manager listens to a hotplug.Monitor. Connect events release the current
// session and open a new one on a dedicated worker goroutine; disconnects
// release it. Host calls such as StartPreview or ReleaseCamera are safe from
// any goroutine and are no-ops when there is no session.
package uvcmanager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kevmo314/go-uvcmanager/pkg/capture"
	"github.com/kevmo314/go-uvcmanager/pkg/device"
	"github.com/kevmo314/go-uvcmanager/pkg/framesink"
	"github.com/kevmo314/go-uvcmanager/pkg/hotplug"
	"github.com/kevmo314/go-uvcmanager/pkg/session"
	"github.com/kevmo314/go-uvcmanager/pkg/surface"
	"github.com/kevmo314/go-uvcmanager/pkg/worker"
)

type Manager struct {
	monitor hotplug.Monitor
	queue   *worker.Queue
	router  *hotplug.Router
	opts    options
	logger  *slog.Logger

	// mu guards the current session pointer and everything below it.
	mu         sync.Mutex
	current    *session.Session
	retiring   map[*session.Session]struct{}
	sink       framesink.Sink
	sinkLocked bool
	provider   surface.Provider
	lastErr    error
	closed     bool
}

var _ hotplug.Controller = (*Manager)(nil)

// New creates a manager that listens to monitor. The monitor is not
// registered until Register is called.
func New(monitor hotplug.Monitor, opts ...Option) *Manager {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.newCamera == nil {
		logger := o.logger
		o.newCamera = func() capture.Camera { return capture.NewUVCCamera(logger) }
	}
	m := &Manager{
		monitor:  monitor,
		queue:    worker.New(o.logger),
		opts:     o,
		logger:   o.logger,
		retiring: make(map[*session.Session]struct{}),
	}
	m.router = hotplug.NewRouter(m.queue, m,
		hotplug.WithMatchDevice(o.matchDevice),
		hotplug.WithNotifier(o.notifier),
		hotplug.WithRouterLogger(o.logger))
	if monitor != nil {
		monitor.SetListener(m.router)
	}
	return m
}

// Register starts device notifications.
func (m *Manager) Register() error {
	if m.isClosed() {
		return ErrClosed
	}
	if m.monitor == nil {
		return nil
	}
	return m.monitor.Register()
}

func (m *Manager) Unregister() error {
	if m.monitor == nil {
		return nil
	}
	return m.monitor.Unregister()
}

// DestroyMonitor tears the monitor down. Register fails afterwards.
func (m *Manager) DestroyMonitor() error {
	if m.monitor == nil {
		return nil
	}
	return m.monitor.Destroy()
}

// StartPreview resumes streaming on the current session.
func (m *Manager) StartPreview() error {
	return m.onSession(func(s *session.Session) error { return s.StartPreview() })
}

// StopPreview pauses streaming and keeps the camera open.
func (m *Manager) StopPreview() error {
	return m.onSession(func(s *session.Session) error { return s.StopPreview() })
}

// onSession runs fn against the current session on the worker.
func (m *Manager) onSession(fn func(s *session.Session) error) error {
	if m.Session() == nil {
		return nil
	}
	err := m.queue.Do(context.Background(), func(ctx context.Context) error {
		s := m.Session()
		if s == nil {
			return nil
		}
		err := fn(s)
		if err != nil && (errors.Is(err, session.ErrReleased) || !s.State().Live()) {
			return nil
		}
		return err
	})
	if errors.Is(err, worker.ErrQueueClosed) {
		return nil
	}
	return err
}

// ReleaseCamera releases the current session. It does not wait for the
// worker, so it interrupts a session that is still being opened. It returns
// nil when there is no session.
func (m *Manager) ReleaseCamera() *session.TeardownReport {
	m.mu.Lock()
	s := m.detachLocked()
	m.mu.Unlock()
	return m.retire(s)
}

// SetFrameSink sets the sink used by every session. It fails with
// ErrSinkLocked once the first session has been created.
func (m *Manager) SetFrameSink(sink framesink.Sink) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sinkLocked {
		return ErrSinkLocked
	}
	m.sink = sink
	return nil
}

// SetRenderTargetProvider sets where new sessions render to. A session
// waiting for a render target is bound to it, and a streaming session is
// moved onto it.
func (m *Manager) SetRenderTargetProvider(p surface.Provider) error {
	m.mu.Lock()
	m.provider = p
	m.mu.Unlock()
	if p == nil {
		return nil
	}
	return m.onSession(func(s *session.Session) error { return s.AttachSurface(p) })
}

// Toggle releases the current session, or calls the chooser when there is
// none. It reports whether a session was released.
func (m *Manager) Toggle() bool {
	m.mu.Lock()
	if m.current == nil {
		if m.opts.chooser != nil {
			m.opts.chooser()
		}
		m.mu.Unlock()
		return false
	}
	s := m.detachLocked()
	m.mu.Unlock()
	m.retire(s)
	return true
}

// Foreground registers for device events and resumes streaming.
func (m *Manager) Foreground() error {
	if err := m.Register(); err != nil {
		return err
	}
	return m.StartPreview()
}

// Background pauses streaming and stops device events.
func (m *Manager) Background() error {
	return errors.Join(m.StopPreview(), m.Unregister())
}

// Close releases the session, destroys the monitor and stops the worker.
// It is idempotent.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	s := m.detachLocked()
	m.mu.Unlock()

	err := m.DestroyMonitor()
	m.retire(s)
	m.awaitRetired()
	return errors.Join(err, m.queue.Close())
}

// Snapshot is a point-in-time view of the manager for hosts and tools.
type Snapshot struct {
	HasSession bool
	SessionID  string
	Device     device.Device
	State      session.State
	Format     session.Format
	Degraded   error
	Sink       framesink.Stats
	Worker     worker.Stats
	LastError  error
}

func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	s, lastErr := m.current, m.lastErr
	m.mu.Unlock()

	snap := Snapshot{Worker: m.queue.Stats(), LastError: lastErr, State: session.StateClosed}
	if s != nil {
		snap.HasSession = true
		snap.SessionID = s.ID
		snap.Device = s.Device
		snap.State = s.State()
		snap.Format = s.Format()
		snap.Degraded = s.Degraded()
		snap.Sink = s.SinkStats()
	}
	return snap
}

// Session returns the current session, or nil.
func (m *Manager) Session() *session.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// LastError returns the error of the most recent failed open, or nil if the
// last open succeeded.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Replace releases the current session and opens one for token. It is
// called by the hotplug router on the worker goroutine.
func (m *Manager) Replace(ctx context.Context, dev device.Device, token *device.ConnectionToken) error {
	m.mu.Lock()
	prev := m.detachLocked()
	m.mu.Unlock()
	m.retire(prev)
	m.awaitRetired()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		token.Close()
		return ErrClosed
	}
	m.sinkLocked = true
	s := session.New(token, session.Options{
		NewCamera: m.opts.newCamera,
		Width:     m.opts.width,
		Height:    m.opts.height,
		Provider:  m.provider,
		Sink:      m.sink,
		OnStatus:  m.opts.onStatus,
		OnButton:  m.opts.onButton,
		Logger:    m.logger,
	})
	m.current = s
	m.mu.Unlock()

	m.logger.Info("uvcmanager: opening session", "device", dev.String(), "session", s.ID)
	err := s.Open(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == s && !s.State().Live() {
		m.current = nil
	}
	switch {
	case err == nil:
		m.lastErr = nil
		return nil
	case errors.Is(err, session.ErrReleased):
		m.logger.Info("uvcmanager: open interrupted by release", "device", dev.String())
		return nil
	default:
		err = fmt.Errorf("uvcmanager: open %s: %w", dev, err)
		m.lastErr = err
		return err
	}
}

// Release releases the current session. It is called by the hotplug router
// on the worker goroutine.
func (m *Manager) Release(ctx context.Context) error {
	m.ReleaseCamera()
	return nil
}

// Current returns the device of the current session.
func (m *Manager) Current() (device.Device, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return device.Device{}, false
	}
	return m.current.Device, true
}

func (m *Manager) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *Manager) detachLocked() *session.Session {
	s := m.current
	if s != nil {
		m.current = nil
		m.retiring[s] = struct{}{}
	}
	return s
}

func (m *Manager) retire(s *session.Session) *session.TeardownReport {
	if s == nil {
		return nil
	}
	report := s.Release()
	m.mu.Lock()
	delete(m.retiring, s)
	m.mu.Unlock()
	return report
}

// awaitRetired blocks until sessions released from other goroutines have
// finished tearing down.
func (m *Manager) awaitRetired() {
	m.mu.Lock()
	pending := make([]*session.Session, 0, len(m.retiring))
	for s := range m.retiring {
		pending = append(pending, s)
	}
	m.mu.Unlock()
	for _, s := range pending {
		s.Release()
	}
}
