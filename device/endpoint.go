package device

import (
	"fmt"
	"sync"

	"github.com/ardnew/tmcdaq/pkg"
)

// Endpoint transfer types (USB 2.0 Spec Table 9-13).
const (
	EndpointTypeControl     = 0x00
	EndpointTypeIsochronous = 0x01
	EndpointTypeBulk        = 0x02
	EndpointTypeInterrupt   = 0x03
)

// Endpoint directions.
const (
	EndpointDirectionOut = 0x00 // Host to device
	EndpointDirectionIn  = 0x80 // Device to host
)

// Endpoint represents a data endpoint owned by an interface.
type Endpoint struct {
	Address       uint8  // Endpoint address including direction
	Attributes    uint8  // Transfer type
	MaxPacketSize uint16 // Maximum packet size
	Interval      uint8  // Polling interval (interrupt)

	stalled bool
	mutex   sync.Mutex
}

// NewEndpoint creates an endpoint with the given address, transfer type and
// maximum packet size.
func NewEndpoint(address, transferType uint8, maxPacketSize uint16) *Endpoint {
	return &Endpoint{
		Address:       address,
		Attributes:    transferType & 0x03,
		MaxPacketSize: maxPacketSize,
	}
}

// Number returns the endpoint number (0-15).
func (e *Endpoint) Number() uint8 {
	return e.Address & 0x0F
}

// Direction returns the endpoint direction (EndpointDirectionIn or EndpointDirectionOut).
func (e *Endpoint) Direction() uint8 {
	return e.Address & 0x80
}

// IsIn returns true if this is an IN endpoint (device to host).
func (e *Endpoint) IsIn() bool {
	return e.Direction() == EndpointDirectionIn
}

// IsOut returns true if this is an OUT endpoint (host to device).
func (e *Endpoint) IsOut() bool {
	return e.Direction() == EndpointDirectionOut
}

// TransferType returns the transfer type.
func (e *Endpoint) TransferType() uint8 {
	return e.Attributes & 0x03
}

// IsBulk returns true if this is a bulk endpoint.
func (e *Endpoint) IsBulk() bool {
	return e.TransferType() == EndpointTypeBulk
}

// IsInterrupt returns true if this is an interrupt endpoint.
func (e *Endpoint) IsInterrupt() bool {
	return e.TransferType() == EndpointTypeInterrupt
}

// SetStall sets or clears the halt condition.
func (e *Endpoint) SetStall(stalled bool) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.stalled = stalled
	if stalled {
		pkg.LogDebug(pkg.ComponentEndpoint, "endpoint stalled",
			"address", fmt.Sprintf("0x%02X", e.Address))
	} else {
		pkg.LogDebug(pkg.ComponentEndpoint, "endpoint stall cleared",
			"address", fmt.Sprintf("0x%02X", e.Address))
	}
}

// IsStalled returns true if the endpoint is halted.
func (e *Endpoint) IsStalled() bool {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return e.stalled
}

// Descriptor returns the endpoint descriptor with the given max packet
// size, or the endpoint's own size when maxPacketSize is 0.
func (e *Endpoint) Descriptor(maxPacketSize uint16) EndpointDescriptor {
	if maxPacketSize == 0 {
		maxPacketSize = e.MaxPacketSize
	}
	return EndpointDescriptor{
		EndpointAddress: e.Address,
		Attributes:      e.Attributes,
		MaxPacketSize:   maxPacketSize,
		Interval:        e.Interval,
	}
}

// TransferTypeName returns a human-readable transfer type name.
func TransferTypeName(t uint8) string {
	switch t & 0x03 {
	case EndpointTypeControl:
		return "Control"
	case EndpointTypeIsochronous:
		return "Isochronous"
	case EndpointTypeBulk:
		return "Bulk"
	default:
		return "Interrupt"
	}
}

// DirectionName returns a human-readable direction name.
func DirectionName(dir uint8) string {
	if dir == EndpointDirectionIn {
		return "IN"
	}
	return "OUT"
}
