package device

import (
	"encoding/binary"
	"fmt"

	"github.com/ardnew/tmcdaq/device/hal"
	"github.com/ardnew/tmcdaq/pkg"
)

// Standard USB request codes handled by the stack (USB 2.0 Spec Table 9-4).
// Enumeration requests are answered by the controller or kernel driver.
const (
	RequestGetStatus    = 0x00
	RequestClearFeature = 0x01
	RequestSetFeature   = 0x03
	RequestGetInterface = 0x0A
	RequestSetInterface = 0x0B
)

// Feature selectors (USB 2.0 Spec Table 9-6).
const (
	FeatureEndpointHalt = 0x00
)

// Request type masks (USB 2.0 Spec Table 9-2).
const (
	RequestTypeDirectionMask = 0x80
	RequestTypeTypeMask      = 0x60
	RequestTypeRecipientMask = 0x1F
)

// Request type direction values.
const (
	RequestDirectionHostToDevice = 0x00
	RequestDirectionDeviceToHost = 0x80
)

// Request type values.
const (
	RequestTypeStandard = 0x00
	RequestTypeClass    = 0x20
	RequestTypeVendor   = 0x40
)

// Request recipient values.
const (
	RequestRecipientDevice    = 0x00
	RequestRecipientInterface = 0x01
	RequestRecipientEndpoint  = 0x02
	RequestRecipientOther     = 0x03
)

// SetupPacket represents an 8-byte USB SETUP packet.
type SetupPacket struct {
	RequestType uint8  // bmRequestType: direction, type, recipient
	Request     uint8  // bRequest: specific request code
	Value       uint16 // wValue: request-specific parameter
	Index       uint16 // wIndex: interface or endpoint
	Length      uint16 // wLength: number of bytes to transfer
}

// SetupPacketSize is the size of a USB SETUP packet in bytes.
const SetupPacketSize = 8

// ParseSetupPacket parses a setup packet from 8 bytes into out.
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

// MarshalTo serializes the setup packet to buf.
// Returns the number of bytes written, or 0 if buf is too small.
func (s *SetupPacket) MarshalTo(buf []byte) int {
	if len(buf) < SetupPacketSize {
		return 0
	}
	buf[0] = s.RequestType
	buf[1] = s.Request
	binary.LittleEndian.PutUint16(buf[2:4], s.Value)
	binary.LittleEndian.PutUint16(buf[4:6], s.Index)
	binary.LittleEndian.PutUint16(buf[6:8], s.Length)
	return SetupPacketSize
}

// fromHAL copies a HAL setup packet.
func (s *SetupPacket) fromHAL(p *hal.SetupPacket) {
	s.RequestType = p.RequestType
	s.Request = p.Request
	s.Value = p.Value
	s.Index = p.Index
	s.Length = p.Length
}

// HAL returns the packet in its HAL representation.
func (s *SetupPacket) HAL() hal.SetupPacket {
	return hal.SetupPacket{
		RequestType: s.RequestType,
		Request:     s.Request,
		Value:       s.Value,
		Index:       s.Index,
		Length:      s.Length,
	}
}

// IsDeviceToHost returns true if this is a device-to-host transfer.
func (s *SetupPacket) IsDeviceToHost() bool {
	return s.RequestType&RequestTypeDirectionMask == RequestDirectionDeviceToHost
}

// Type returns the request type (Standard, Class, or Vendor).
func (s *SetupPacket) Type() uint8 {
	return s.RequestType & RequestTypeTypeMask
}

// IsStandard returns true if this is a standard request.
func (s *SetupPacket) IsStandard() bool {
	return s.Type() == RequestTypeStandard
}

// IsClass returns true if this is a class-specific request.
func (s *SetupPacket) IsClass() bool {
	return s.Type() == RequestTypeClass
}

// Recipient returns the request recipient.
func (s *SetupPacket) Recipient() uint8 {
	return s.RequestType & RequestTypeRecipientMask
}

// IsInterfaceRecipient returns true if the recipient is an interface.
func (s *SetupPacket) IsInterfaceRecipient() bool {
	return s.Recipient() == RequestRecipientInterface
}

// IsEndpointRecipient returns true if the recipient is an endpoint.
func (s *SetupPacket) IsEndpointRecipient() bool {
	return s.Recipient() == RequestRecipientEndpoint
}

// InterfaceNumber returns the interface number from wIndex.
func (s *SetupPacket) InterfaceNumber() uint8 {
	return uint8(s.Index & 0xFF)
}

// EndpointAddress returns the endpoint address from wIndex.
func (s *SetupPacket) EndpointAddress() uint8 {
	return uint8(s.Index & 0xFF)
}

// String returns a human-readable representation of the setup packet.
func (s *SetupPacket) String() string {
	dir := "OUT"
	if s.IsDeviceToHost() {
		dir = "IN"
	}
	reqType := "Standard"
	switch s.Type() {
	case RequestTypeClass:
		reqType = "Class"
	case RequestTypeVendor:
		reqType = "Vendor"
	}
	recip := "Device"
	switch s.Recipient() {
	case RequestRecipientInterface:
		recip = "Interface"
	case RequestRecipientEndpoint:
		recip = "Endpoint"
	case RequestRecipientOther:
		recip = "Other"
	}
	return fmt.Sprintf("SETUP[%s %s %s] Request=0x%02X Value=0x%04X Index=0x%04X Length=%d",
		dir, reqType, recip, s.Request, s.Value, s.Index, s.Length)
}

// ClassSetup initializes out as a device-to-host class request.
func ClassSetup(out *SetupPacket, recipient, request uint8, value, index, length uint16) {
	out.RequestType = RequestDirectionDeviceToHost | RequestTypeClass | recipient
	out.Request = request
	out.Value = value
	out.Index = index
	out.Length = length
}

// ClearFeatureSetup initializes out as a CLEAR_FEATURE setup packet.
func ClearFeatureSetup(out *SetupPacket, recipient uint8, feature uint16, index uint16) {
	out.RequestType = RequestDirectionHostToDevice | RequestTypeStandard | recipient
	out.Request = RequestClearFeature
	out.Value = feature
	out.Index = index
	out.Length = 0
}

// SetInterfaceSetup initializes out as a SET_INTERFACE setup packet.
func SetInterfaceSetup(out *SetupPacket, interfaceNum, alternateSetting uint8) {
	out.RequestType = RequestDirectionHostToDevice | RequestTypeStandard | RequestRecipientInterface
	out.Request = RequestSetInterface
	out.Value = uint16(alternateSetting)
	out.Index = uint16(interfaceNum)
	out.Length = 0
}

// GetInterfaceSetup initializes out as a GET_INTERFACE setup packet.
func GetInterfaceSetup(out *SetupPacket, interfaceNum uint8) {
	out.RequestType = RequestDirectionDeviceToHost | RequestTypeStandard | RequestRecipientInterface
	out.Request = RequestGetInterface
	out.Value = 0
	out.Index = uint16(interfaceNum)
	out.Length = 1
}
