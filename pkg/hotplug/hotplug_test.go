package hotplug

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/kevmo314/go-uvcmanager/pkg/device"
	"github.com/kevmo314/go-uvcmanager/pkg/worker"
)

var (
	camA = device.Device{Path: "/dev/bus/usb/001/004", Bus: 1, Address: 4, VendorID: 0x046d, ProductID: 0x0825, Class: 0xef}
	camB = device.Device{Path: "/dev/bus/usb/002/007", Bus: 2, Address: 7, VendorID: 0x0c45, ProductID: 0x6366, Class: 0xef}
	hub  = device.Device{Path: "/dev/bus/usb/001/001", Bus: 1, Address: 1, VendorID: 0x1d6b, ProductID: 0x0002, Class: 0x09}
)

func newToken(t *testing.T, dev device.Device) (*device.ConnectionToken, *os.File) {
	t.Helper()
	f, err := os.Open(os.DevNull)
	if err != nil {
		t.Fatal(err)
	}
	return device.NewConnectionToken(dev, f), f
}

func fileClosed(f *os.File) bool {
	_, err := f.Stat()
	return errors.Is(err, os.ErrClosed)
}

type fakeController struct {
	mu       sync.Mutex
	replaced []*device.ConnectionToken
	releases int
	current  *device.Device
}

func (c *fakeController) Replace(ctx context.Context, dev device.Device, token *device.ConnectionToken) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replaced = append(c.replaced, token)
	c.current = &dev
	return nil
}

func (c *fakeController) Release(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.releases++
	c.current = nil
	return nil
}

func (c *fakeController) Current() (device.Device, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return device.Device{}, false
	}
	return *c.current, true
}

func (c *fakeController) snapshot() ([]*device.ConnectionToken, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*device.ConnectionToken(nil), c.replaced...), c.releases
}

// flush waits until every task submitted so far has run.
func flush(t *testing.T, q *worker.Queue) {
	t.Helper()
	if err := q.Do(context.Background(), func(context.Context) error { return nil }); err != nil {
		t.Fatal(err)
	}
}

// block occupies the worker until the returned func is called.
func block(q *worker.Queue) func() {
	started, release := make(chan struct{}), make(chan struct{})
	q.Submit(context.Background(), &worker.Task{ID: "block", Run: func(context.Context) error {
		close(started)
		<-release
		return nil
	}}, 0)
	<-started
	return func() { close(release) }
}

func TestRouterConnectOpensSession(t *testing.T) {
	q := worker.New(nil)
	defer q.Close()
	ctrl := &fakeController{}
	r := NewRouter(q, ctrl)

	token, _ := newToken(t, camA)
	r.OnConnect(camA, token)
	flush(t, q)

	replaced, _ := ctrl.snapshot()
	if len(replaced) != 1 || replaced[0] != token {
		t.Errorf("replaced = %v", replaced)
	}
}

func TestRouterSupersededConnectClosesToken(t *testing.T) {
	q := worker.New(nil)
	defer q.Close()
	ctrl := &fakeController{}
	r := NewRouter(q, ctrl)

	unblock := block(q)
	first, firstFile := newToken(t, camA)
	second, secondFile := newToken(t, camA)
	r.OnConnect(camA, first)
	r.OnConnect(camA, second)
	unblock()
	flush(t, q)

	replaced, _ := ctrl.snapshot()
	if len(replaced) != 1 || replaced[0] != second {
		t.Fatalf("replaced = %v", replaced)
	}
	if !fileClosed(firstFile) {
		t.Error("superseded token was not closed")
	}
	if fileClosed(secondFile) {
		t.Error("winning token was closed")
	}
}

func TestRouterDisconnectWithoutSession(t *testing.T) {
	q := worker.New(nil)
	defer q.Close()
	ctrl := &fakeController{}
	r := NewRouter(q, ctrl)

	r.OnDisconnect(camA, nil)
	flush(t, q)
	if _, releases := ctrl.snapshot(); releases != 1 {
		t.Errorf("releases = %d", releases)
	}
	if st := q.Stats(); st.Failed != 0 {
		t.Errorf("stats = %+v", st)
	}
}

func TestRouterDisconnectIgnoresDeviceByDefault(t *testing.T) {
	q := worker.New(nil)
	defer q.Close()
	ctrl := &fakeController{}
	r := NewRouter(q, ctrl)

	token, _ := newToken(t, camA)
	r.OnConnect(camA, token)
	r.OnDisconnect(camB, nil)
	flush(t, q)
	if _, ok := ctrl.Current(); ok {
		t.Error("disconnect of another device should release the session")
	}
}

func TestRouterMatchDevice(t *testing.T) {
	q := worker.New(nil)
	defer q.Close()
	ctrl := &fakeController{}
	r := NewRouter(q, ctrl, WithMatchDevice(true))

	token, _ := newToken(t, camA)
	r.OnConnect(camA, token)
	flush(t, q)
	r.OnDisconnect(camB, nil)
	flush(t, q)
	if _, releases := ctrl.snapshot(); releases != 0 {
		t.Errorf("released on another device's disconnect")
	}
	r.OnDisconnect(camA, nil)
	flush(t, q)
	if _, releases := ctrl.snapshot(); releases != 1 {
		t.Errorf("releases = %d", releases)
	}
}

func TestRouterNotifies(t *testing.T) {
	q := worker.New(nil)
	defer q.Close()
	var mu sync.Mutex
	var got []string
	n := NotifierFunc(func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, e.Kind.String())
	})
	r := NewRouter(q, &fakeController{}, WithNotifier(n))

	r.OnAttach(camA)
	token, _ := newToken(t, camA)
	r.OnConnect(camA, token)
	r.OnCancel(camA)
	r.OnDisconnect(camA, nil)
	r.OnDetach(camA)
	flush(t, q)

	mu.Lock()
	defer mu.Unlock()
	if fmt.Sprint(got) != "[attach cancel detach]" {
		t.Errorf("notified = %v", got)
	}
}

type recordingListener struct {
	mu     sync.Mutex
	events []string
	tokens []*device.ConnectionToken
}

func (l *recordingListener) add(kind EventKind, dev device.Device) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, fmt.Sprintf("%s %d/%d", kind, dev.Bus, dev.Address))
}

func (l *recordingListener) OnAttach(dev device.Device) { l.add(EventAttach, dev) }

func (l *recordingListener) OnConnect(dev device.Device, token *device.ConnectionToken) {
	l.add(EventConnect, dev)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tokens = append(l.tokens, token)
}

func (l *recordingListener) OnDisconnect(dev device.Device, _ *device.ConnectionToken) {
	l.add(EventDisconnect, dev)
}

func (l *recordingListener) OnDetach(dev device.Device) { l.add(EventDetach, dev) }

func (l *recordingListener) OnCancel(dev device.Device) { l.add(EventCancel, dev) }

func (l *recordingListener) Events() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

type fakeBus struct {
	mu      sync.Mutex
	devices []device.Device
	denied  map[string]bool
	files   []*os.File
	polled  chan struct{}
}

func (b *fakeBus) set(devs ...device.Device) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.devices = devs
}

func (b *fakeBus) list() ([]device.Device, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.polled != nil {
		select {
		case b.polled <- struct{}{}:
		default:
		}
	}
	return append([]device.Device(nil), b.devices...), nil
}

func (b *fakeBus) open(dev device.Device) (*device.ConnectionToken, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.denied[dev.Path] {
		return nil, os.ErrPermission
	}
	f, err := os.Open(os.DevNull)
	if err != nil {
		return nil, err
	}
	b.files = append(b.files, f)
	return device.NewConnectionToken(dev, f), nil
}

func newTestMonitor(bus *fakeBus, opts ...MonitorOption) *USBMonitor {
	m := NewUSBMonitor(opts...)
	m.list, m.open = bus.list, bus.open
	return m
}

func TestMonitorPollDiff(t *testing.T) {
	bus := &fakeBus{}
	m := newTestMonitor(bus)
	l := &recordingListener{}
	m.SetListener(l)

	bus.set(camA, hub)
	if err := m.Poll(); err != nil {
		t.Fatal(err)
	}
	if err := m.Poll(); err != nil {
		t.Fatal(err)
	}
	bus.set(hub)
	if err := m.Poll(); err != nil {
		t.Fatal(err)
	}

	want := "[attach 1/4 connect 1/4 disconnect 1/4 detach 1/4]"
	if got := fmt.Sprint(l.Events()); got != want {
		t.Errorf("events = %s, want %s", got, want)
	}
}

func TestMonitorPermissionDenied(t *testing.T) {
	bus := &fakeBus{denied: map[string]bool{camB.Path: true}}
	m := newTestMonitor(bus)
	l := &recordingListener{}
	m.SetListener(l)

	bus.set(camB)
	if err := m.Poll(); err != nil {
		t.Fatal(err)
	}
	if got := fmt.Sprint(l.Events()); got != "[attach 2/7 cancel 2/7]" {
		t.Errorf("events = %s", got)
	}
}

func TestMonitorFilters(t *testing.T) {
	bus := &fakeBus{}
	m := newTestMonitor(bus, WithFilters(Filter{VendorID: 0x0c45}))
	l := &recordingListener{}
	m.SetListener(l)

	bus.set(camA, camB, hub)
	if err := m.Poll(); err != nil {
		t.Fatal(err)
	}
	if got := fmt.Sprint(l.Events()); got != "[attach 2/7 connect 2/7]" {
		t.Errorf("events = %s", got)
	}
}

func TestMonitorPendingTokens(t *testing.T) {
	bus := &fakeBus{}
	m := newTestMonitor(bus)
	bus.set(camA, camB)
	if err := m.Poll(); err != nil {
		t.Fatal(err)
	}

	l := &recordingListener{}
	m.SetListener(l)
	if n := len(l.Events()); n != 2 {
		t.Fatalf("events = %v", l.Events())
	}

	// a second monitor without a listener owns its tokens until destroyed
	bus2 := &fakeBus{}
	m2 := newTestMonitor(bus2)
	bus2.set(camA)
	if err := m2.Poll(); err != nil {
		t.Fatal(err)
	}
	if err := m2.Destroy(); err != nil {
		t.Fatal(err)
	}
	if len(bus2.files) != 1 || !fileClosed(bus2.files[0]) {
		t.Error("pending token not closed by Destroy")
	}
}

func TestMonitorRegisterLifecycle(t *testing.T) {
	bus := &fakeBus{polled: make(chan struct{}, 1)}
	m := newTestMonitor(bus, WithPollInterval(10*time.Millisecond))
	m.SetListener(&recordingListener{})

	if err := m.Register(); err != nil {
		t.Fatal(err)
	}
	if err := m.Register(); err != nil {
		t.Fatal(err)
	}
	<-bus.polled
	if err := m.Unregister(); err != nil {
		t.Fatal(err)
	}
	if err := m.Unregister(); err != nil {
		t.Fatal(err)
	}
	if err := m.Destroy(); err != nil {
		t.Fatal(err)
	}
	if err := m.Register(); !errors.Is(err, ErrMonitorDestroyed) {
		t.Errorf("Register after Destroy = %v", err)
	}
}

func TestBusAddress(t *testing.T) {
	bus, addr := busAddress("/dev/bus/usb/003/012")
	if bus != 3 || addr != 12 {
		t.Errorf("busAddress = %d, %d", bus, addr)
	}
	if bus, addr := busAddress("usb-1"); bus != 0 || addr != 0 {
		t.Errorf("busAddress(invalid) = %d, %d", bus, addr)
	}
}
