// Package device describes USB devices reported by a monitor and the
// connection tokens that grant access to them.
package device

import (
	"errors"
	"fmt"
	"os"
	"sync"
)

var ErrTokenConsumed = errors.New("device: connection token already consumed")

// Device identifies an attached USB device. It is a value type; the monitor
// owns the underlying system resources.
type Device struct {
	Path        string
	Bus         int
	Address     int
	VendorID    uint16
	ProductID   uint16
	Class       uint8
	SubClass    uint8
	ProductName string
}

func (d Device) String() string {
	if d.ProductName != "" {
		return fmt.Sprintf("%s (%04x:%04x %s)", d.Path, d.VendorID, d.ProductID, d.ProductName)
	}
	return fmt.Sprintf("%s (%04x:%04x)", d.Path, d.VendorID, d.ProductID)
}

// Same reports whether a and b refer to the same physical attachment.
func (d Device) Same(o Device) bool {
	return d.Path == o.Path && d.VendorID == o.VendorID && d.ProductID == o.ProductID
}

// ConnectionToken is an opened, permission-granted device node. The file
// descriptor can be taken exactly once; whoever takes it owns it.
type ConnectionToken struct {
	Device Device

	mu       sync.Mutex
	file     *os.File
	consumed bool
	closed   bool
}

func NewConnectionToken(dev Device, f *os.File) *ConnectionToken {
	return &ConnectionToken{Device: dev, file: f}
}

// Take hands out the file descriptor. Subsequent calls fail with
// ErrTokenConsumed.
func (t *ConnectionToken) Take() (uintptr, error) {
	if t == nil {
		return 0, ErrTokenConsumed
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.consumed || t.closed || t.file == nil {
		return 0, ErrTokenConsumed
	}
	t.consumed = true
	return t.file.Fd(), nil
}

// Consumed reports whether Take has succeeded.
func (t *ConnectionToken) Consumed() bool {
	if t == nil {
		return true
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.consumed
}

// Close closes the device node. It is safe to call more than once and after
// Take; the holder of a taken descriptor must not use it after Close.
func (t *ConnectionToken) Close() error {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	if t.file == nil {
		return nil
	}
	if err := t.file.Close(); err != nil {
		return fmt.Errorf("device: close %s: %w", t.Device.Path, err)
	}
	return nil
}
