package transfers

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	usb "github.com/kevmo314/go-usb"
)

// DefaultNumIsochronousTransfers is the number of queued isochronous
// transfers. libuvc uses 100 but goroutine scheduling keeps up with fewer.
const DefaultNumIsochronousTransfers = 8

// IsochronousReader returns one isochronous packet per Read. Each packet
// carries exactly one payload.
type IsochronousReader struct {
	transfers []*usb.IsochronousTransfer
	currentTx int
	packetIdx int
	mu        sync.Mutex
	closed    atomic.Bool
}

func NewIsochronousReader(handle *usb.DeviceHandle, endpointAddress uint8, packets, packetSize uint32) (*IsochronousReader, error) {
	r := &IsochronousReader{}
	for i := 0; i < DefaultNumIsochronousTransfers; i++ {
		tx, err := handle.NewIsochronousTransfer(endpointAddress, int(packets), int(packetSize))
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("failed to create isochronous transfer: %w", err)
		}
		if err := tx.Submit(); err != nil {
			r.Close()
			return nil, fmt.Errorf("failed to submit isochronous transfer: %w", err)
		}
		r.transfers = append(r.transfers, tx)
	}
	return r, nil
}

func (r *IsochronousReader) Read(buf []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for {
		if r.closed.Load() {
			return 0, ErrReaderClosed
		}
		tx := r.transfers[r.currentTx]
		err := tx.Wait()
		if r.closed.Load() {
			return 0, ErrReaderClosed
		}
		if err != nil {
			return 0, fmt.Errorf("isochronous transfer failed: %w", err)
		}

		packets := tx.Packets()
		if r.packetIdx >= len(packets) {
			// resubmit this transfer and move to the next one
			if err := tx.Submit(); err != nil {
				return 0, fmt.Errorf("failed to resubmit isochronous transfer: %w", err)
			}
			r.packetIdx = 0
			r.currentTx = (r.currentTx + 1) % len(r.transfers)
			continue
		}

		pkt := packets[r.packetIdx]
		if pkt.Status != 0 || pkt.ActualLength == 0 {
			r.packetIdx++
			continue
		}
		if len(buf) < int(pkt.ActualLength) {
			return 0, io.ErrShortBuffer
		}
		data, err := tx.IsoPacketBuffer(r.packetIdx)
		r.packetIdx++
		if err != nil {
			continue
		}
		return copy(buf, data), nil
	}
}

func (r *IsochronousReader) Close() error {
	if r.closed.Swap(true) {
		return nil
	}
	for _, tx := range r.transfers {
		tx.Cancel()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, tx := range r.transfers {
		tx.Wait() // ignore error, we're closing
	}
	return nil
}
