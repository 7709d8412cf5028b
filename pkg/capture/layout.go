package capture

import (
	"errors"
	"fmt"

	usb "github.com/kevmo314/go-usb"
	"github.com/kevmo314/go-uvcmanager/pkg/descriptors"
	"github.com/kevmo314/go-uvcmanager/pkg/transfers"
)

var errNoVideoControl = errors.New("capture: video control interface not found")

type endpoint struct {
	Address       uint8
	MaxPacketSize uint16
}

// Bytes is the per-interval payload size, including high-bandwidth
// additional transactions.
func (e endpoint) Bytes() uint32 {
	return uint32(e.MaxPacketSize&0x7ff) * (1 + uint32(e.MaxPacketSize>>11&0x3))
}

type altSetting struct {
	Interface uint8
	Alternate uint8
	Class     uint8
	SubClass  uint8
	Extra     []byte
	Endpoints []endpoint
}

type layout struct {
	BcdUVC           uint16
	ControlInterface uint8
	StatusEndpoint   uint8
	Streaming        []*transfers.StreamingInterface
	// alternates of each streaming interface, index 0 is the zero bandwidth
	// setting when the interface is isochronous.
	Alternates map[uint8][]altSetting
}

// altSettings flattens a go-usb configuration descriptor.
func altSettings(cfg *usb.ConfigDescriptor) []altSetting {
	var alts []altSetting
	for _, iface := range cfg.Interfaces {
		for _, alt := range iface.AltSettings {
			a := altSetting{
				Interface: alt.InterfaceNumber,
				Alternate: alt.AlternateSetting,
				Class:     alt.InterfaceClass,
				SubClass:  alt.InterfaceSubClass,
				Extra:     alt.Extra,
			}
			for _, ep := range alt.Endpoints {
				a.Endpoints = append(a.Endpoints, endpoint{Address: ep.EndpointAddr, MaxPacketSize: ep.MaxPacketSize})
			}
			alts = append(alts, a)
		}
	}
	return alts
}

// parseLayout locates the VideoControl interface and parses every streaming
// interface its header lists. Vendor class control interfaces are accepted
// for cameras that hide behind class 0xff.
func parseLayout(alts []altSetting) (*layout, error) {
	var vc *altSetting
	for i := range alts {
		a := &alts[i]
		if a.Alternate != 0 || a.SubClass != byte(descriptors.SubclassCodeVideoControl) {
			continue
		}
		if a.Class == byte(descriptors.ClassCodeVideo) || a.Class == byte(descriptors.ClassCodeVendor) {
			vc = a
			break
		}
	}
	if vc == nil {
		return nil, errNoVideoControl
	}
	header, err := descriptors.FindHeader(vc.Extra)
	if err != nil {
		return nil, err
	}
	l := &layout{
		BcdUVC:           header.UVC,
		ControlInterface: vc.Interface,
		Alternates:       make(map[uint8][]altSetting),
	}
	for _, ep := range vc.Endpoints {
		if ep.Address&0x80 != 0 {
			l.StatusEndpoint = ep.Address
			break
		}
	}
	for _, a := range alts {
		l.Alternates[a.Interface] = append(l.Alternates[a.Interface], a)
	}
	for _, n := range header.VideoStreamingInterfaceIndexes {
		set := l.Alternates[n]
		if len(set) == 0 {
			return nil, fmt.Errorf("capture: streaming interface %d listed but not present", n)
		}
		blocks, err := descriptors.Blocks(set[0].Extra)
		if err != nil && len(blocks) == 0 {
			return nil, fmt.Errorf("capture: streaming interface %d: %w", n, err)
		}
		si := &transfers.StreamingInterface{BcdUVC: l.BcdUVC, InterfaceNumber: n}
		for _, block := range blocks {
			if len(block) < 3 || descriptors.ClassSpecificDescriptorType(block[1]) != descriptors.ClassSpecificDescriptorTypeInterface {
				continue
			}
			desc, err := descriptors.UnmarshalStreamingInterface(block)
			if err != nil {
				return nil, fmt.Errorf("capture: streaming interface %d: %w", n, err)
			}
			si.Descriptors = append(si.Descriptors, desc)
		}
		l.Streaming = append(l.Streaming, si)
	}
	return l, nil
}

// Isochronous reports whether the interface streams over alternate
// settings rather than a single bulk endpoint.
func (l *layout) Isochronous(iface uint8) bool {
	return len(l.Alternates[iface]) > 1
}

// pickAlternate returns the smallest alternate setting whose endpoint can
// carry payloadSize bytes per interval, or the largest one if none can.
func (l *layout) pickAlternate(iface, address uint8, payloadSize uint32) (altSetting, endpoint, error) {
	var (
		best   altSetting
		bestEP endpoint
		found  bool
	)
	for _, a := range l.Alternates[iface] {
		for _, ep := range a.Endpoints {
			if ep.Address != address {
				continue
			}
			switch {
			case !found:
			case bestEP.Bytes() >= payloadSize && ep.Bytes() >= payloadSize && ep.Bytes() < bestEP.Bytes():
			case bestEP.Bytes() < payloadSize && ep.Bytes() > bestEP.Bytes():
			default:
				continue
			}
			best, bestEP, found = a, ep, true
		}
	}
	if !found {
		return altSetting{}, endpoint{}, fmt.Errorf("capture: no alternate setting of interface %d has endpoint %#x", iface, address)
	}
	return best, bestEP, nil
}
