//go:build !unix

package hotplug

import (
	"errors"

	"github.com/kevmo314/go-uvcmanager/pkg/device"
)

func OpenDevice(dev device.Device) (*device.ConnectionToken, error) {
	return nil, errors.New("hotplug: opening device nodes is not supported on this platform")
}
