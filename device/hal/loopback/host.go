package loopback

import (
	"context"
	"sync"

	"github.com/ardnew/tmcdaq/device/hal"
	"github.com/ardnew/tmcdaq/pkg"
)

// Host is the host side of a loopback bus.
//
// Control transfers are serialized; bulk transfers on different endpoints
// may run concurrently.
type Host struct {
	hal     *HAL
	control sync.Mutex
}

// Control runs one control transfer. For host-to-device requests data is
// the OUT data stage; for device-to-host requests the IN data stage is
// returned. A stalled request returns pkg.ErrStall.
func (h *Host) Control(ctx context.Context, setup hal.SetupPacket, data []byte) ([]byte, error) {
	h.control.Lock()
	defer h.control.Unlock()

	if !h.hal.IsConnected() {
		return nil, pkg.ErrDisconnected
	}

	req := controlRequest{
		setup: setup,
		data:  append([]byte{}, data...),
		reply: make(chan controlResult, 1),
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-h.hal.closeCh:
		return nil, pkg.ErrDisconnected
	case h.hal.setups <- req:
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-h.hal.closeCh:
		return nil, pkg.ErrDisconnected
	case res := <-req.reply:
		if res.err != nil {
			return nil, res.err
		}
		if len(res.data) > int(setup.Length) {
			res.data = res.data[:setup.Length]
		}
		return res.data, nil
	}
}

// state returns the endpoint and its current halt channel.
func (h *Host) state(address uint8) (*endpoint, chan struct{}, bool, error) {
	ep, err := h.hal.endpoint(address)
	if err != nil {
		return nil, nil, false, err
	}
	h.hal.mutex.Lock()
	defer h.hal.mutex.Unlock()
	return ep, ep.halt, ep.stalled, nil
}

// BulkOut sends one transfer to an OUT endpoint.
func (h *Host) BulkOut(ctx context.Context, address uint8, data []byte) error {
	ep, halt, stalled, err := h.state(address)
	if err != nil {
		return err
	}
	if ep.config.IsIn() {
		return pkg.ErrInvalidEndpoint
	}
	if stalled {
		return pkg.ErrStall
	}

	packet := append([]byte{}, data...)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-h.hal.closeCh:
		return pkg.ErrDisconnected
	case <-halt:
		return pkg.ErrStall
	case ep.data <- packet:
		return nil
	}
}

// BulkIn waits for the next transfer on an IN endpoint. It fails with
// pkg.ErrStall when the endpoint is or becomes halted.
func (h *Host) BulkIn(ctx context.Context, address uint8) ([]byte, error) {
	ep, halt, stalled, err := h.state(address)
	if err != nil {
		return nil, err
	}
	if !ep.config.IsIn() {
		return nil, pkg.ErrInvalidEndpoint
	}
	if stalled {
		return nil, pkg.ErrStall
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-h.hal.closeCh:
		return nil, pkg.ErrDisconnected
	case <-halt:
		return nil, pkg.ErrStall
	case data := <-ep.data:
		return data, nil
	}
}

// Stalled reports whether an endpoint is halted.
func (h *Host) Stalled(address uint8) bool {
	_, _, stalled, err := h.state(address)
	return err == nil && stalled
}

// Connect attaches the device.
func (h *Host) Connect() {
	h.hal.setConnected(true)
}

// Disconnect detaches the device.
func (h *Host) Disconnect() {
	h.hal.setConnected(false)
}

// Reset signals a bus reset to the device.
func (h *Host) Reset() {
	select {
	case h.hal.resets <- struct{}{}:
	default:
	}
}
