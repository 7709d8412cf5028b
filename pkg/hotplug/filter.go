package hotplug

import "github.com/kevmo314/go-uvcmanager/pkg/device"

// Filter matches devices. Zero fields match anything.
type Filter struct {
	VendorID  uint16 `yaml:"vendor_id"`
	ProductID uint16 `yaml:"product_id"`
	Class     uint8  `yaml:"class"`
}

func (f Filter) Match(dev device.Device) bool {
	if f.VendorID != 0 && f.VendorID != dev.VendorID {
		return false
	}
	if f.ProductID != 0 && f.ProductID != dev.ProductID {
		return false
	}
	if f.Class != 0 && f.Class != dev.Class {
		return false
	}
	return true
}

// DefaultFilters match video class devices and composite devices using
// interface association, which is how most webcams enumerate.
func DefaultFilters() []Filter {
	return []Filter{{Class: 0x0e}, {Class: 0xef}}
}

func matchAny(filters []Filter, dev device.Device) bool {
	if len(filters) == 0 {
		return true
	}
	for _, f := range filters {
		if f.Match(dev) {
			return true
		}
	}
	return false
}
