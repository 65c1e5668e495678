package functionfs

import (
	"encoding/binary"
	"fmt"

	"github.com/ardnew/tmcdaq/device"
	"github.com/ardnew/tmcdaq/device/hal"
	"github.com/ardnew/tmcdaq/pkg"
)

// Header magics from uapi/linux/usb/functionfs.h.
const (
	stringsMagic       = 2
	descriptorsMagicV2 = 3
)

// Descriptor header flags.
const (
	hasFullSpeed = 1
	hasHighSpeed = 2
)

// Bulk packet sizes written into the per-speed descriptor blocks.
const (
	FullSpeedPacketSize = 64
	HighSpeedPacketSize = 512
)

// LangEnglishUS is the only language the string table carries.
const LangEnglishUS = 0x0409

var le = binary.LittleEndian

// BuildDescriptors encodes a usb_functionfs_descs_head_v2 block for iface.
// The full-speed block is always present; the high-speed block is added
// when highSpeed is set.
func BuildDescriptors(iface *device.Interface, highSpeed bool) ([]byte, error) {
	count := 1 + len(iface.Endpoints())
	blockLen := device.InterfaceDescriptorSize + (count-1)*device.EndpointDescriptorSize

	speeds := []uint16{FullSpeedPacketSize}
	flags := uint32(hasFullSpeed)
	if highSpeed {
		speeds = append(speeds, HighSpeedPacketSize)
		flags |= hasHighSpeed
	}

	const headerLen = 12
	res := make([]byte, headerLen+len(speeds)*4+len(speeds)*blockLen)
	le.PutUint32(res, descriptorsMagicV2)
	le.PutUint32(res[4:], uint32(len(res)))
	le.PutUint32(res[8:], flags)

	offset := headerLen
	for range speeds {
		le.PutUint32(res[offset:], uint32(count))
		offset += 4
	}
	for _, mps := range speeds {
		n := iface.MarshalDescriptors(res[offset:], mps)
		if n != blockLen {
			return nil, fmt.Errorf("%w: interface %d descriptors", pkg.ErrBufferTooSmall, iface.Number)
		}
		offset += n
	}
	return res, nil
}

// BuildStrings encodes a usb_functionfs_strings_head block with a single
// en-US string. An empty name produces a table with no strings.
func BuildStrings(name string) []byte {
	const headerLen = 16
	if name == "" {
		res := make([]byte, headerLen)
		le.PutUint32(res, stringsMagic)
		le.PutUint32(res[4:], headerLen)
		return res
	}

	res := make([]byte, headerLen+2+len(name)+1)
	le.PutUint32(res, stringsMagic)
	le.PutUint32(res[4:], uint32(len(res)))
	le.PutUint32(res[8:], 1)
	le.PutUint32(res[12:], 1)
	le.PutUint16(res[headerLen:], LangEnglishUS)
	copy(res[headerLen+2:], name)
	return res
}

// EventType is enum usb_functionfs_event_type.
type EventType uint8

// FunctionFS event types.
const (
	EventBind EventType = iota
	EventUnbind
	EventEnable
	EventDisable
	EventSetup
	EventSuspend
	EventResume
)

// String returns the kernel name of the event.
func (t EventType) String() string {
	switch t {
	case EventBind:
		return "BIND"
	case EventUnbind:
		return "UNBIND"
	case EventEnable:
		return "ENABLE"
	case EventDisable:
		return "DISABLE"
	case EventSetup:
		return "SETUP"
	case EventSuspend:
		return "SUSPEND"
	case EventResume:
		return "RESUME"
	default:
		return fmt.Sprintf("EVENT(%d)", uint8(t))
	}
}

// EventSize is the size of struct usb_functionfs_event.
const EventSize = 12

// Event is one record read from ep0.
type Event struct {
	Type  EventType
	Setup hal.SetupPacket // valid for EventSetup
}

// ParseEvent decodes a usb_functionfs_event.
func ParseEvent(buf []byte, out *Event) error {
	if len(buf) < EventSize {
		return pkg.ErrBufferTooSmall
	}
	out.Type = EventType(buf[8])
	return hal.ParseSetupPacket(buf, &out.Setup)
}

// endpointFile returns the name of the file FunctionFS creates for the
// endpoint at position index (zero-based) in the descriptor block.
func endpointFile(index int) string {
	return fmt.Sprintf("ep%d", index+1)
}
