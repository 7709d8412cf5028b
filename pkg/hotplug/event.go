// Package hotplug turns device monitor notifications into worker tasks that
// open and release capture sessions.
package hotplug

import (
	"fmt"
	"time"

	"github.com/kevmo314/go-uvcmanager/pkg/device"
)

type EventKind int

const (
	EventAttach EventKind = iota
	EventConnect
	EventDisconnect
	EventDetach
	EventCancel
)

func (k EventKind) String() string {
	switch k {
	case EventAttach:
		return "attach"
	case EventConnect:
		return "connect"
	case EventDisconnect:
		return "disconnect"
	case EventDetach:
		return "detach"
	case EventCancel:
		return "cancel"
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

type Event struct {
	Kind   EventKind
	Device device.Device
	Time   time.Time
}

func (e Event) String() string {
	return fmt.Sprintf("%s %s", e.Kind, e.Device)
}

// Listener receives monitor notifications. Calls may arrive on any goroutine
// and must not block.
type Listener interface {
	OnAttach(dev device.Device)
	// OnConnect hands over token. The listener owns it from here on.
	OnConnect(dev device.Device, token *device.ConnectionToken)
	OnDisconnect(dev device.Device, token *device.ConnectionToken)
	OnDetach(dev device.Device)
	OnCancel(dev device.Device)
}

// Notifier surfaces events to the host, e.g. as a toast.
type Notifier interface {
	Notify(e Event)
}

type NotifierFunc func(e Event)

func (f NotifierFunc) Notify(e Event) { f(e) }

// Monitor is a source of device notifications.
type Monitor interface {
	Register() error
	Unregister() error
	Destroy() error
	SetListener(l Listener)
}
