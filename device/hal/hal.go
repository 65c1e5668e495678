package hal

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/ardnew/tmcdaq/pkg"
)

// Speed is the bus speed a HAL reports once a host is attached.
type Speed uint8

const (
	SpeedUnknown Speed = iota
	SpeedLow
	SpeedFull
	SpeedHigh
)

func (s Speed) String() string {
	switch s {
	case SpeedLow:
		return "low"
	case SpeedFull:
		return "full"
	case SpeedHigh:
		return "high"
	default:
		return "unknown"
	}
}

// Endpoint attribute values the HALs care about (bmAttributes bits 1:0).
const (
	attrTypeMask = 0x03
	attrBulk     = 0x02
)

// EndpointConfig is handed to the HAL for every data endpoint before Start.
// The loopback HAL allocates one queue per entry; FunctionFS opens the epN
// files in slice order, so the order must match the descriptor block.
type EndpointConfig struct {
	Address       uint8 // bit 7 set for IN
	Attributes    uint8
	MaxPacketSize uint16
}

// Number returns the endpoint number without the direction bit.
func (e *EndpointConfig) Number() uint8 {
	return e.Address & 0x0F
}

// IsIn reports whether the endpoint carries device-to-host data.
func (e *EndpointConfig) IsIn() bool {
	return e.Address&0x80 != 0
}

// IsBulk reports whether the endpoint is a bulk endpoint.
func (e *EndpointConfig) IsBulk() bool {
	return e.Attributes&attrTypeMask == attrBulk
}

// CheckEndpoints rejects a configuration no HAL here can back: endpoint
// zero, non-bulk transfer types, or an address listed twice.
func CheckEndpoints(endpoints []EndpointConfig) error {
	var seen [32]bool
	for i := range endpoints {
		ep := &endpoints[i]
		if ep.Number() == 0 || !ep.IsBulk() {
			return fmt.Errorf("endpoint 0x%02X: %w", ep.Address, pkg.ErrInvalidEndpoint)
		}
		slot := int(ep.Number())
		if ep.IsIn() {
			slot += 16
		}
		if seen[slot] {
			return fmt.Errorf("endpoint 0x%02X configured twice: %w", ep.Address, pkg.ErrInvalidEndpoint)
		}
		seen[slot] = true
	}
	return nil
}

// SetupPacket is the raw SETUP stage as the controller delivered it.
type SetupPacket struct {
	RequestType uint8
	Request     uint8
	Value       uint16
	Index       uint16
	Length      uint16
}

// SetupPacketSize is the wire size of a SETUP packet.
const SetupPacketSize = 8

// ParseSetupPacket decodes the first SetupPacketSize bytes of data into out.
// FunctionFS embeds the packet at the start of each SETUP event.
func ParseSetupPacket(data []byte, out *SetupPacket) error {
	if len(data) < SetupPacketSize {
		return pkg.ErrSetupPacketTooShort
	}
	out.RequestType = data[0]
	out.Request = data[1]
	out.Value = binary.LittleEndian.Uint16(data[2:4])
	out.Index = binary.LittleEndian.Uint16(data[4:6])
	out.Length = binary.LittleEndian.Uint16(data[6:8])
	return nil
}

// DeviceHAL is what the device stack needs from a USB controller.
//
// Attachment, enumeration and descriptor exchange belong to the controller
// (or the kernel, for FunctionFS). The stack sees only SETUP packets left
// for interfaces and endpoints, bulk data, halts and connection state.
// Blocking methods return when ctx is done.
type DeviceHAL interface {
	// Init prepares the controller. FunctionFS writes its descriptors here.
	Init(ctx context.Context) error
	// ConfigureEndpoints declares the data endpoints; called once before Start.
	ConfigureEndpoints(endpoints []EndpointConfig) error
	// Start attaches to the bus.
	Start() error
	// Stop detaches and unblocks pending transfers.
	Stop() error

	// ReadSetup waits for the next SETUP packet.
	ReadSetup(ctx context.Context, out *SetupPacket) error
	// WriteEP0 sends the data stage of a control IN request and completes
	// the status stage.
	WriteEP0(ctx context.Context, data []byte) error
	// ReadEP0 receives the data stage of a control OUT request.
	ReadEP0(ctx context.Context, buf []byte) (int, error)
	// StallEP0 fails the current control request.
	StallEP0() error
	// AckEP0 completes a control request that has no data stage.
	AckEP0() error

	// Read receives one transfer from an OUT endpoint.
	Read(ctx context.Context, address uint8, buf []byte) (int, error)
	// Write sends one transfer on an IN endpoint.
	Write(ctx context.Context, address uint8, data []byte) (int, error)
	// Stall halts an endpoint. Host transfers on it fail with pkg.ErrStall
	// until ClearStall.
	Stall(address uint8) error
	ClearStall(address uint8) error

	IsConnected() bool
	GetSpeed() Speed
	WaitConnect(ctx context.Context) error
	WaitDisconnect(ctx context.Context) error
}
