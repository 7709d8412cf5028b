package hotplug

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	usb "github.com/kevmo314/go-usb"
	"github.com/kevmo314/go-uvcmanager/pkg/device"
)

const DefaultPollInterval = time.Second

var ErrMonitorDestroyed = errors.New("hotplug: monitor destroyed")

type MonitorOption func(*USBMonitor)

func WithPollInterval(d time.Duration) MonitorOption {
	return func(m *USBMonitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithFilters restricts the monitor to matching devices. An empty list
// matches every device.
func WithFilters(filters ...Filter) MonitorOption {
	return func(m *USBMonitor) { m.filters = filters }
}

func WithMonitorLogger(l *slog.Logger) MonitorOption {
	return func(m *USBMonitor) { m.logger = l }
}

// USBMonitor polls the USB device list and reports changes to its listener.
// Connect tokens are opened device nodes; a node that cannot be opened is
// reported as cancelled.
type USBMonitor struct {
	interval time.Duration
	filters  []Filter
	logger   *slog.Logger
	list     func() ([]device.Device, error)
	open     func(device.Device) (*device.ConnectionToken, error)

	pollMu sync.Mutex
	known  map[string]device.Device

	mu        sync.Mutex
	listener  Listener
	pending   map[string]*device.ConnectionToken
	stop      chan struct{}
	done      chan struct{}
	destroyed bool
}

var _ Monitor = (*USBMonitor)(nil)

func NewUSBMonitor(opts ...MonitorOption) *USBMonitor {
	m := &USBMonitor{
		interval: DefaultPollInterval,
		filters:  DefaultFilters(),
		logger:   slog.Default(),
		list:     ListDevices,
		open:     OpenDevice,
		known:    make(map[string]device.Device),
		pending:  make(map[string]*device.ConnectionToken),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// SetListener replaces the listener. Connects that arrived while no
// listener was set are delivered to the new one.
func (m *USBMonitor) SetListener(l Listener) {
	m.mu.Lock()
	m.listener = l
	var flush map[string]*device.ConnectionToken
	if l != nil && len(m.pending) > 0 {
		flush, m.pending = m.pending, make(map[string]*device.ConnectionToken)
	}
	m.mu.Unlock()
	for _, token := range flush {
		l.OnConnect(token.Device, token)
	}
}

func (m *USBMonitor) currentListener() Listener {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listener
}

// Register starts polling. The first scan runs immediately.
func (m *USBMonitor) Register() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.destroyed {
		return ErrMonitorDestroyed
	}
	if m.stop != nil {
		return nil
	}
	m.stop, m.done = make(chan struct{}), make(chan struct{})
	go m.loop(m.stop, m.done)
	m.logger.Info("hotplug: monitor registered", "interval", m.interval)
	return nil
}

// Unregister stops polling. Devices seen so far stay known, so a later
// Register only reports changes.
func (m *USBMonitor) Unregister() error {
	m.mu.Lock()
	stop, done := m.stop, m.done
	m.stop, m.done = nil, nil
	m.mu.Unlock()
	if stop == nil {
		return nil
	}
	close(stop)
	<-done
	m.logger.Info("hotplug: monitor unregistered")
	return nil
}

// Destroy stops polling and closes tokens that were never handed to a
// listener.
func (m *USBMonitor) Destroy() error {
	if err := m.Unregister(); err != nil {
		return err
	}
	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return nil
	}
	m.destroyed = true
	pending := m.pending
	m.pending = make(map[string]*device.ConnectionToken)
	m.listener = nil
	m.mu.Unlock()

	var errs []error
	for _, token := range pending {
		errs = append(errs, token.Close())
	}
	return errors.Join(errs...)
}

func (m *USBMonitor) loop(stop, done chan struct{}) {
	defer close(done)
	t := time.NewTicker(m.interval)
	defer t.Stop()
	for {
		if err := m.Poll(); err != nil {
			m.logger.Warn("hotplug: poll failed", "err", err)
		}
		select {
		case <-stop:
			return
		case <-t.C:
		}
	}
}

// Poll scans the device list once and reports the differences from the
// previous scan.
func (m *USBMonitor) Poll() error {
	m.pollMu.Lock()
	defer m.pollMu.Unlock()

	devs, err := m.list()
	if err != nil {
		return fmt.Errorf("hotplug: list devices: %w", err)
	}
	seen := make(map[string]device.Device, len(devs))
	for _, dev := range devs {
		if matchAny(m.filters, dev) {
			seen[dev.Path] = dev
		}
	}

	var gone, added []device.Device
	for path, dev := range m.known {
		if _, ok := seen[path]; !ok {
			gone = append(gone, dev)
		}
	}
	for path, dev := range seen {
		if _, ok := m.known[path]; !ok {
			added = append(added, dev)
		}
	}
	sort.Slice(gone, func(i, j int) bool { return gone[i].Path < gone[j].Path })
	sort.Slice(added, func(i, j int) bool { return added[i].Path < added[j].Path })
	m.known = seen

	for _, dev := range gone {
		m.removed(dev)
	}
	for _, dev := range added {
		m.attached(dev)
	}
	return nil
}

func (m *USBMonitor) attached(dev device.Device) {
	l := m.currentListener()
	if l != nil {
		l.OnAttach(dev)
	}
	token, err := m.open(dev)
	if err != nil {
		m.logger.Warn("hotplug: cannot open device", "device", dev.String(), "err", err)
		if l != nil {
			l.OnCancel(dev)
		}
		return
	}
	m.mu.Lock()
	l = m.listener
	if l == nil {
		m.pending[dev.Path] = token
	}
	m.mu.Unlock()
	if l != nil {
		l.OnConnect(dev, token)
	}
}

func (m *USBMonitor) removed(dev device.Device) {
	m.mu.Lock()
	token, ok := m.pending[dev.Path]
	delete(m.pending, dev.Path)
	l := m.listener
	m.mu.Unlock()
	if ok {
		token.Close()
	}
	if l != nil {
		l.OnDisconnect(dev, nil)
		l.OnDetach(dev)
	}
}

// ListDevices returns every USB device go-usb can see.
func ListDevices() ([]device.Device, error) {
	devs, err := usb.DeviceList()
	if err != nil {
		return nil, err
	}
	out := make([]device.Device, 0, len(devs))
	for _, d := range devs {
		dev := device.Device{
			Path:      d.Path,
			VendorID:  d.Descriptor.VendorID,
			ProductID: d.Descriptor.ProductID,
			Class:     d.Descriptor.DeviceClass,
			SubClass:  d.Descriptor.DeviceSubClass,
		}
		if d.SysfsStrings != nil {
			dev.ProductName = d.SysfsStrings.Product
		}
		dev.Bus, dev.Address = busAddress(d.Path)
		out = append(out, dev)
	}
	return out, nil
}

// busAddress parses device nodes of the form /dev/bus/usb/BBB/DDD.
func busAddress(path string) (int, int) {
	bus, err1 := strconv.Atoi(filepath.Base(filepath.Dir(path)))
	addr, err2 := strconv.Atoi(filepath.Base(path))
	if err1 != nil || err2 != nil {
		return 0, 0
	}
	return bus, addr
}
