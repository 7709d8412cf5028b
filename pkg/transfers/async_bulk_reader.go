package transfers

import (
	"fmt"
	"sync"
	"sync/atomic"

	usb "github.com/kevmo314/go-usb"
)

const (
	// DefaultNumTransfers is the number of queued transfers for async bulk reads.
	DefaultNumTransfers = 32

	// MaxURBBufferSize is the maximum buffer size per URB to avoid ENOMEM.
	// This matches the kernel's MAX_USBFS_BUFFER_SIZE.
	MaxURBBufferSize = 16384
)

// AsyncBulkReader keeps several bulk URBs in flight and reassembles them
// into payloads delimited by short transfers.
type AsyncBulkReader struct {
	endpoint  uint8
	urbSize   int
	transfers []*usb.AsyncBulkTransfer

	mu       sync.Mutex
	nextRead int
	closed   atomic.Bool
}

func NewAsyncBulkReader(handle *usb.DeviceHandle, endpointAddress uint8, mtu uint32, numTransfers int) (*AsyncBulkReader, error) {
	if numTransfers < 1 {
		numTransfers = 1
	}
	urbSize := MaxURBBufferSize
	if mtu > 0 && int(mtu) < urbSize {
		urbSize = int(mtu)
	}

	r := &AsyncBulkReader{
		endpoint:  endpointAddress,
		urbSize:   urbSize,
		transfers: make([]*usb.AsyncBulkTransfer, 0, numTransfers),
	}
	for i := 0; i < numTransfers; i++ {
		t, err := handle.NewAsyncBulkTransfer(endpointAddress, urbSize)
		if err != nil {
			r.cancelAll()
			return nil, fmt.Errorf("failed to create async transfer %d: %w", i, err)
		}
		r.transfers = append(r.transfers, t)
	}
	for i, t := range r.transfers {
		if err := t.Submit(); err != nil {
			r.cancelAll()
			return nil, fmt.Errorf("failed to submit initial transfer %d: %w", i, err)
		}
	}
	return r, nil
}

// Read returns one complete payload. A payload is complete on a short
// transfer, including a zero length packet.
func (r *AsyncBulkReader) Read(buf []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	written := 0
	for {
		if r.closed.Load() {
			return 0, ErrReaderClosed
		}
		t := r.transfers[r.nextRead]
		data, err := t.Wait()
		if r.closed.Load() {
			return 0, ErrReaderClosed
		}
		if err != nil {
			return 0, fmt.Errorf("async bulk read failed: %w", err)
		}
		if len(buf)-written < len(data) {
			return 0, fmt.Errorf("buffer too small: need %d bytes, have %d", len(data), len(buf)-written)
		}
		// copy before resubmitting, the kernel owns the buffer afterwards.
		copy(buf[written:], data)
		written += len(data)

		if err := t.Submit(); err != nil {
			return 0, fmt.Errorf("failed to resubmit bulk transfer: %w", err)
		}
		r.nextRead = (r.nextRead + 1) % len(r.transfers)

		if len(data) < r.urbSize {
			return written, nil
		}
	}
}

func (r *AsyncBulkReader) cancelAll() {
	for _, t := range r.transfers {
		t.Cancel()
	}
	for _, t := range r.transfers {
		t.Wait() // ignore error, we're closing
	}
}

// Close cancels the in-flight transfers, which unblocks a pending Read, and
// then reaps them once no Read is running.
func (r *AsyncBulkReader) Close() error {
	if r.closed.Swap(true) {
		return nil
	}
	for _, t := range r.transfers {
		t.Cancel()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.transfers {
		t.Wait() // ignore error, we're closing
	}
	return nil
}
