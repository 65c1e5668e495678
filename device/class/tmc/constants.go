package tmc

import (
	"fmt"

	"github.com/ardnew/tmcdaq/device"
)

// USBTMC interface class triple (USBTMC 1.0 Table 43).
const (
	ClassTMC    = device.ClassAppSpecific
	SubclassTMC = 0x03
	ProtocolTMC = 0x00
)

// Class-specific request codes (USBTMC 1.0 Table 15).
const (
	RequestInitiateAbortBulkOut    = 1
	RequestCheckAbortBulkOutStatus = 2
	RequestInitiateAbortBulkIn     = 3
	RequestCheckAbortBulkInStatus  = 4
	RequestInitiateClear           = 5
	RequestCheckClearStatus        = 6
	RequestGetCapabilities         = 7
	RequestIndicatorPulse          = 64
)

// USBTMC_status values (USBTMC 1.0 Table 16).
const (
	StatusSuccess               = 0x01
	StatusPending               = 0x02
	StatusFailed                = 0x80
	StatusTransferNotInProgress = 0x81
	StatusSplitNotInProgress    = 0x82
	StatusSplitInProgress       = 0x83
)

// Bulk message IDs (USBTMC 1.0 Tables 2 and 8).
const (
	MsgDevDepMsgOut            = 1
	MsgRequestDevDepMsgIn      = 2
	MsgDevDepMsgIn             = 2
	MsgVendorSpecificOut       = 126
	MsgRequestVendorSpecificIn = 127
	MsgVendorSpecificIn        = 127
)

// HeaderSize is the size of every bulk message header.
const HeaderSize = 12

// bmTransferAttributes bits.
const (
	AttrEOM      = 0x01
	AttrTermChar = 0x02
)

// GET_CAPABILITIES fields.
const (
	BCDUSBTMC = 0x0100

	InterfaceCapListenOnly     = 0x01
	InterfaceCapTalkOnly       = 0x02
	InterfaceCapIndicatorPulse = 0x04

	DeviceCapTermChar = 0x01
)

// Control response sizes.
const (
	capabilitiesSize     = 24
	initiateAbortSize    = 2
	checkAbortStatusSize = 8
	initiateClearSize    = 1
	checkClearStatusSize = 2
	indicatorPulseSize   = 1
)

// Driver defaults.
const (
	DefaultDataBufferSize   = 10000
	DefaultResponseCapacity = 128
	DefaultMessageCapacity  = 128
)

// RequestName returns the USBTMC name of a class request.
func RequestName(request uint8) string {
	switch request {
	case RequestInitiateAbortBulkOut:
		return "INITIATE_ABORT_BULK_OUT"
	case RequestCheckAbortBulkOutStatus:
		return "CHECK_ABORT_BULK_OUT_STATUS"
	case RequestInitiateAbortBulkIn:
		return "INITIATE_ABORT_BULK_IN"
	case RequestCheckAbortBulkInStatus:
		return "CHECK_ABORT_BULK_IN_STATUS"
	case RequestInitiateClear:
		return "INITIATE_CLEAR"
	case RequestCheckClearStatus:
		return "CHECK_CLEAR_STATUS"
	case RequestGetCapabilities:
		return "GET_CAPABILITIES"
	case RequestIndicatorPulse:
		return "INDICATOR_PULSE"
	default:
		return fmt.Sprintf("REQUEST_%d", request)
	}
}
