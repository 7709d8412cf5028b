package transfers

import (
	"errors"
	"testing"
	"time"

	"github.com/kevmo314/go-uvcmanager/pkg/descriptors"
)

type controlCall struct {
	requestType, request uint8
	value, index         uint16
}

// fakeController answers probe requests like a device that accepts
// whatever it is given, unless reject is set.
type fakeController struct {
	calls  []controlCall
	probe  []byte
	reject bool
	fail   error
}

func (c *fakeController) ControlTransfer(requestType, request uint8, value, index uint16, data []byte, timeout time.Duration) (int, error) {
	c.calls = append(c.calls, controlCall{requestType, request, value, index})
	if c.fail != nil {
		return 0, c.fail
	}
	if c.probe == nil {
		c.probe = make([]byte, len(data))
		max := &descriptors.VideoProbeCommitControl{MaxVideoFrameSize: 614400, MaxPayloadTransferSize: 3072, FrameInterval: 333333 * 100}
		max.MarshalInto(c.probe)
	}
	switch RequestCode(request) {
	case RequestCodeSetCur:
		copy(c.probe, data)
		if c.reject {
			c.probe[2] = 9
		}
	default:
		copy(data, c.probe)
	}
	return len(data), nil
}

func TestNegotiate(t *testing.T) {
	si := &StreamingInterface{BcdUVC: 0x0110, InterfaceNumber: 1}
	c := &fakeController{}
	vpcc, err := si.Negotiate(c, 2, 3, 0)
	if err != nil {
		t.Fatal(err)
	}
	if vpcc.FormatIndex != 2 || vpcc.FrameIndex != 3 {
		t.Errorf("committed %d/%d, want 2/3", vpcc.FormatIndex, vpcc.FrameIndex)
	}
	if vpcc.MaxPayloadTransferSize != 3072 {
		t.Errorf("MaxPayloadTransferSize = %d", vpcc.MaxPayloadTransferSize)
	}
	if len(c.probe) != 34 {
		t.Errorf("control length = %d, want 34 for UVC 1.1", len(c.probe))
	}

	want := []controlCall{
		{uint8(RequestTypeVideoInterfaceGetRequest), uint8(RequestCodeGetMax), 1 << 8, 1},
		{uint8(RequestTypeVideoInterfaceSetRequest), uint8(RequestCodeSetCur), 1 << 8, 1},
		{uint8(RequestTypeVideoInterfaceGetRequest), uint8(RequestCodeGetCur), 1 << 8, 1},
		{uint8(RequestTypeVideoInterfaceSetRequest), uint8(RequestCodeSetCur), 2 << 8, 1},
	}
	if len(c.calls) != len(want) {
		t.Fatalf("calls = %+v", c.calls)
	}
	for i := range want {
		if c.calls[i] != want[i] {
			t.Errorf("call %d = %+v, want %+v", i, c.calls[i], want[i])
		}
	}
}

func TestNegotiateRejected(t *testing.T) {
	si := &StreamingInterface{BcdUVC: 0x0150}
	_, err := si.Negotiate(&fakeController{reject: true}, 1, 1, 0)
	if !errors.Is(err, ErrProbeRejected) {
		t.Errorf("err = %v, want ErrProbeRejected", err)
	}
}

func TestNegotiateTransferError(t *testing.T) {
	stall := errors.New("pipe")
	si := &StreamingInterface{BcdUVC: 0x0100}
	if _, err := si.Negotiate(&fakeController{fail: stall}, 1, 1, 0); !errors.Is(err, stall) {
		t.Errorf("err = %v, want wrapped stall", err)
	}
}

func TestFrameDescriptorsFollowFormat(t *testing.T) {
	mjpeg := &descriptors.MJPEGFormatDescriptor{FormatIndex: 1}
	yuy := &descriptors.UncompressedFormatDescriptor{FormatIndex: 2}
	f1 := &descriptors.MJPEGFrameDescriptor{}
	f2 := &descriptors.UncompressedFrameDescriptor{}
	si := &StreamingInterface{Descriptors: []descriptors.StreamingInterface{
		&descriptors.InputHeaderDescriptor{EndpointAddress: 0x81},
		mjpeg, f1, yuy, f2,
	}}
	if got := si.FrameDescriptors(mjpeg); len(got) != 1 || got[0] != descriptors.FrameDescriptor(f1) {
		t.Errorf("mjpeg frames = %v", got)
	}
	if got := si.FrameDescriptors(yuy); len(got) != 1 || got[0] != descriptors.FrameDescriptor(f2) {
		t.Errorf("yuy frames = %v", got)
	}
	if ep, err := si.EndpointAddress(); err != nil || ep != 0x81 {
		t.Errorf("EndpointAddress() = %#x, %v", ep, err)
	}
}
