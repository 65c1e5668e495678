package tmc

import (
	"encoding/binary"

	"github.com/ardnew/tmcdaq/device"
	"github.com/ardnew/tmcdaq/pkg"
)

// HandleSetup answers USBTMC class requests on the control endpoint.
func (t *TMC) HandleSetup(iface *device.Interface, setup *device.SetupPacket, data []byte) (int, error) {
	if !setup.IsClass() || !setup.IsDeviceToHost() {
		return 0, pkg.ErrInvalidRequest
	}

	var resp [capabilitiesSize]byte
	var n int

	switch setup.Request {
	case RequestInitiateAbortBulkOut:
		resp[0] = StatusTransferNotInProgress
		n = initiateAbortSize

	case RequestCheckAbortBulkOutStatus:
		resp[0] = StatusTransferNotInProgress
		n = checkAbortStatusSize

	case RequestInitiateAbortBulkIn:
		n = t.initiateAbortBulkIn(resp[:])

	case RequestCheckAbortBulkInStatus:
		n = t.checkAbortBulkIn(resp[:])

	case RequestInitiateClear:
		n = t.initiateClear(resp[:])

	case RequestCheckClearStatus:
		resp[0] = StatusSuccess
		n = checkClearStatusSize

	case RequestGetCapabilities:
		n = t.capabilities(resp[:])

	case RequestIndicatorPulse:
		resp[0] = StatusFailed
		if t.opts.IndicatorPulse != nil {
			t.opts.IndicatorPulse()
			resp[0] = StatusSuccess
		}
		n = indicatorPulseSize

	default:
		pkg.LogDebug(pkg.ComponentTMC, "unsupported class request",
			"request", setup.Request)
		return 0, pkg.ErrInvalidRequest
	}

	t.rec.ControlRequest(RequestName(setup.Request), resp[0])
	pkg.LogDebug(pkg.ComponentTMC, "class request",
		"interface", iface.Number,
		"request", RequestName(setup.Request),
		"status", resp[0])

	return copy(data, resp[:n]), nil
}

// initiateAbortBulkIn aborts the active transfer whatever bTag wValue names.
func (t *TMC) initiateAbortBulkIn(resp []byte) int {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.xfer.tag == noTag {
		resp[0] = StatusTransferNotInProgress
		return initiateAbortSize
	}
	resp[0] = StatusSuccess
	resp[1] = t.xfer.tag
	t.abortTransfer()
	return initiateAbortSize
}

func (t *TMC) checkAbortBulkIn(resp []byte) int {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	resp[0] = StatusTransferNotInProgress
	if t.enabled {
		resp[0] = StatusSuccess
	}
	// resp[1] bmAbortBulkIn stays 0: no data is ever queued in the FIFO.
	binary.LittleEndian.PutUint32(resp[4:8], t.xfer.transferred)
	return checkAbortStatusSize
}

func (t *TMC) initiateClear(resp []byte) int {
	t.app.Clear()

	t.mutex.Lock()
	stack, in, out := t.stack, t.bulkInEP, t.bulkOutEP
	t.reset()
	t.mutex.Unlock()

	if stack != nil {
		for _, ep := range []*device.Endpoint{in, out} {
			if ep == nil {
				continue
			}
			if err := stack.ClearStall(ep); err != nil {
				pkg.LogWarn(pkg.ComponentTMC, "clear halt failed",
					"endpoint", ep.Address,
					"error", err)
			}
		}
	}
	resp[0] = StatusSuccess
	return initiateClearSize
}

func (t *TMC) capabilities(resp []byte) int {
	resp[0] = StatusSuccess
	binary.LittleEndian.PutUint16(resp[2:4], BCDUSBTMC)
	var caps uint8
	if t.opts.IndicatorPulse != nil {
		caps |= InterfaceCapIndicatorPulse
	}
	if t.opts.TalkOnly {
		caps |= InterfaceCapTalkOnly
	}
	if t.opts.ListenOnly {
		caps |= InterfaceCapListenOnly
	}
	resp[4] = caps
	return capabilitiesSize
}
