package tmc

import (
	"github.com/ardnew/tmcdaq/pkg"
)

// prepare builds the DEV_DEP_MSG_IN transfer answering req in inBuf and
// returns its length. mps is the Bulk-IN max packet size.
func (t *TMC) prepare(req *RequestDevDepMsgIn, mps int) (int, error) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if req.BTag != t.xfer.tag {
		if req.TransferSize < uint32(t.opts.FrameSize) {
			return 0, pkg.ErrTransferTooSmall
		}
		t.xfer = transfer{
			tag:       req.BTag,
			remaining: req.TransferSize,
		}
		t.enabled = true
		pkg.LogDebug(pkg.ComponentTMC, "bulk-in transfer started",
			"tag", req.BTag,
			"size", req.TransferSize)
	}
	if t.xfer.remaining == 0 {
		return 0, pkg.ErrTransferComplete
	}

	limit := t.opts.DataBufferSize
	if uint64(t.xfer.remaining) < uint64(limit) {
		limit = int(t.xfer.remaining)
	}
	payload := t.inBuf[HeaderSize : HeaderSize+limit]

	var n int
	if len(t.response) > 0 {
		n = copy(payload, t.response)
		t.response = t.response[n:]
	} else {
		n = t.app.Read(payload)
	}
	if n == 0 {
		// a zero-length payload would read as a short packet with no data
		payload[0] = 0
		n = 1
	}

	t.xfer.remaining -= uint32(n)
	t.xfer.transferred += uint32(n)
	eom := t.xfer.remaining == 0

	EncodeDevDepMsgIn(t.inBuf, t.xfer.tag, uint32(n), eom)
	length := HeaderSize + n
	if mps > 0 && n%mps == mps-HeaderSize {
		// The transfer would end on a packet boundary; one alignment byte
		// turns the last packet short without a zero-length packet.
		t.inBuf[length] = 0
		length++
	}

	if eom {
		pkg.LogDebug(pkg.ComponentTMC, "bulk-in transfer complete",
			"tag", t.xfer.tag,
			"transferred", t.xfer.transferred)
		t.xfer.tag = noTag
	}
	t.rec.BulkInPacket(n)
	return length, nil
}
