package transfers

import (
	"fmt"
	"time"

	"github.com/kevmo314/go-uvcmanager/pkg/descriptors"
)

// ControlTimeout bounds every class request sent during negotiation.
const ControlTimeout = time.Second

// Controller issues control transfers on endpoint zero.
type Controller interface {
	ControlTransfer(requestType, request uint8, value, index uint16, data []byte, timeout time.Duration) (int, error)
}

// StreamingInterface is one VideoStreaming interface and its class-specific
// descriptors.
type StreamingInterface struct {
	BcdUVC          uint16
	InterfaceNumber uint8
	Descriptors     []descriptors.StreamingInterface
}

func (si *StreamingInterface) UVCVersionString() string {
	return fmt.Sprintf("%x.%02x", si.BcdUVC>>8, si.BcdUVC&0xff)
}

func (si *StreamingInterface) FormatDescriptors() []descriptors.FormatDescriptor {
	var descs []descriptors.FormatDescriptor
	for _, desc := range si.Descriptors {
		if d, ok := desc.(descriptors.FormatDescriptor); ok {
			descs = append(descs, d)
		}
	}
	return descs
}

// FrameDescriptors returns the frame descriptors that follow format in
// descriptor order.
func (si *StreamingInterface) FrameDescriptors(format descriptors.FormatDescriptor) []descriptors.FrameDescriptor {
	var descs []descriptors.FrameDescriptor
	inFormat := false
	for _, desc := range si.Descriptors {
		if d, ok := desc.(descriptors.FormatDescriptor); ok {
			inFormat = d == format
			continue
		}
		if d, ok := desc.(descriptors.FrameDescriptor); ok && inFormat {
			descs = append(descs, d)
		}
	}
	return descs
}

func (si *StreamingInterface) InputHeaderDescriptors() []*descriptors.InputHeaderDescriptor {
	var descs []*descriptors.InputHeaderDescriptor
	for _, desc := range si.Descriptors {
		if d, ok := desc.(*descriptors.InputHeaderDescriptor); ok {
			descs = append(descs, d)
		}
	}
	return descs
}

// EndpointAddress is the video data endpoint of the first input header.
func (si *StreamingInterface) EndpointAddress() (uint8, error) {
	inputs := si.InputHeaderDescriptors()
	if len(inputs) == 0 {
		return 0, fmt.Errorf("no input header descriptors found")
	}
	return inputs[0].EndpointAddress, nil
}

func (si *StreamingInterface) control(c Controller, rt RequestType, rc RequestCode, cs VideoStreamingInterfaceControlSelector, buf []byte) error {
	n, err := c.ControlTransfer(uint8(rt), uint8(rc), uint16(cs)<<8, uint16(si.InterfaceNumber), buf, ControlTimeout)
	if err != nil {
		return fmt.Errorf("control transfer %#x selector %d: %w", rc, cs, err)
	}
	if rt == RequestTypeVideoInterfaceGetRequest && n < 26 {
		return fmt.Errorf("control transfer %#x selector %d: short read of %d bytes", rc, cs, n)
	}
	return nil
}

// Negotiate runs the probe and commit sequence of UVC spec 1.5, 4.3.1.1.1
// for the given format and frame and returns the committed parameters.
func (si *StreamingInterface) Negotiate(c Controller, formatIndex, frameIndex uint8, frameInterval time.Duration) (*descriptors.VideoProbeCommitControl, error) {
	vpcc := &descriptors.VideoProbeCommitControl{}
	buf := make([]byte, descriptors.ProbeCommitSize(si.BcdUVC))

	// get the bounds
	if err := si.control(c, RequestTypeVideoInterfaceGetRequest, RequestCodeGetMax, VideoStreamingInterfaceControlSelectorProbeControl, buf); err != nil {
		return nil, err
	}
	if err := vpcc.UnmarshalBinary(buf); err != nil {
		return nil, err
	}

	vpcc.HintBitmask = 0x0001 // keep the frame interval fixed
	vpcc.FormatIndex = formatIndex
	vpcc.FrameIndex = frameIndex
	if frameInterval > 0 {
		vpcc.FrameInterval = frameInterval
	}
	if err := vpcc.MarshalInto(buf); err != nil {
		return nil, err
	}
	if err := si.control(c, RequestTypeVideoInterfaceSetRequest, RequestCodeSetCur, VideoStreamingInterfaceControlSelectorProbeControl, buf); err != nil {
		return nil, err
	}

	// call get to get the negotiated values
	if err := si.control(c, RequestTypeVideoInterfaceGetRequest, RequestCodeGetCur, VideoStreamingInterfaceControlSelectorProbeControl, buf); err != nil {
		return nil, err
	}
	if err := vpcc.UnmarshalBinary(buf); err != nil {
		return nil, err
	}
	if vpcc.FormatIndex != formatIndex || vpcc.FrameIndex != frameIndex {
		return nil, fmt.Errorf("device selected format %d frame %d, requested %d/%d: %w",
			vpcc.FormatIndex, vpcc.FrameIndex, formatIndex, frameIndex, ErrProbeRejected)
	}

	if err := si.control(c, RequestTypeVideoInterfaceSetRequest, RequestCodeSetCur, VideoStreamingInterfaceControlSelectorCommitControl, buf); err != nil {
		return nil, err
	}
	return vpcc, nil
}
