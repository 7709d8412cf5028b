//go:build unix

package hotplug

import (
	"fmt"
	"os"

	"github.com/kevmo314/go-uvcmanager/pkg/device"
	"golang.org/x/sys/unix"
)

// OpenDevice opens the device node read-write and wraps it in a token.
func OpenDevice(dev device.Device) (*device.ConnectionToken, error) {
	fd, err := unix.Open(dev.Path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("hotplug: open %s: %w", dev.Path, err)
	}
	return device.NewConnectionToken(dev, os.NewFile(uintptr(fd), dev.Path)), nil
}
