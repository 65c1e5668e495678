package device

import "fmt"

// Maximum limits for fixed-size arrays.
const (
	// MaxEndpointsPerInterface is the maximum number of endpoints per interface.
	MaxEndpointsPerInterface = 4

	// MaxInterfaces is the maximum number of interfaces a stack serves.
	MaxInterfaces = 4

	// MaxControlDataSize is the maximum data stage size for control transfers.
	MaxControlDataSize = 512
)

// Speed represents USB connection speed.
type Speed uint8

// USB speeds as defined in USB 2.0 specification.
const (
	SpeedLow  Speed = 0 // 1.5 Mbps (USB 1.0)
	SpeedFull Speed = 1 // 12 Mbps (USB 1.1)
	SpeedHigh Speed = 2 // 480 Mbps (USB 2.0)
)

// String returns a human-readable speed description.
func (s Speed) String() string {
	switch s {
	case SpeedLow:
		return "Low Speed (1.5 Mbps)"
	case SpeedFull:
		return "Full Speed (12 Mbps)"
	case SpeedHigh:
		return "High Speed (480 Mbps)"
	default:
		return fmt.Sprintf("Unknown Speed (%d)", s)
	}
}

// MaxBulkPacketSize returns the largest bulk max packet size at this speed.
// Bulk transfers are not allowed at low speed.
func (s Speed) MaxBulkPacketSize() uint16 {
	switch s {
	case SpeedFull:
		return 64
	case SpeedHigh:
		return 512
	default:
		return 0
	}
}
