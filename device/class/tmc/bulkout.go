package tmc

import (
	"errors"

	"github.com/ardnew/tmcdaq/pkg"
)

// discard consumes the continuation of an oversize DEV_DEP_MSG_OUT
// transfer. It reports whether data belonged to that transfer.
func (t *TMC) discard(data []byte) bool {
	t.mutex.Lock()
	if t.skip == 0 {
		t.mutex.Unlock()
		return false
	}
	if uint64(len(data)) >= uint64(t.skip) {
		t.skip = 0
	} else {
		t.skip -= uint32(len(data))
	}
	done := t.skip == 0 && t.eomAfter
	t.mutex.Unlock()

	if done {
		t.complete()
	}
	return true
}

// receive accumulates command text from one DEV_DEP_MSG_OUT transfer and
// dispatches the message when EOM is set.
func (t *TMC) receive(m *DevDepMsgOut) {
	t.mutex.Lock()
	if t.overflow || len(t.message)+len(m.Data) > cap(t.message) {
		t.overflow = true
	} else {
		t.message = append(t.message, m.Data...)
	}
	if rest := uint64(m.TransferSize) - uint64(len(m.Data)); rest > 0 {
		// The transfer did not fit in the receive buffer.
		t.overflow = true
		t.skip = uint32(rest)
		t.eomAfter = m.EOM
		t.mutex.Unlock()
		return
	}
	t.mutex.Unlock()

	if m.EOM {
		t.complete()
	}
}

// complete hands the accumulated message to the application and stores
// its response for the next Bulk-IN request.
func (t *TMC) complete() {
	t.mutex.Lock()
	overflow := t.overflow
	msg := t.command[:copy(t.command[:cap(t.command)], t.message)]
	t.resetMessage()
	t.mutex.Unlock()

	var resp []byte
	var err error
	if overflow {
		pkg.LogWarn(pkg.ComponentTMC, "command message too long",
			"capacity", t.opts.MessageCapacity)
		resp = t.app.Reject(pkg.ErrMessageTooLong)
	} else {
		resp, err = t.app.Message(msg)
	}

	t.mutex.Lock()
	defer t.mutex.Unlock()

	if errors.Is(err, pkg.ErrReset) {
		pkg.LogInfo(pkg.ComponentTMC, "instrument reset")
		t.reset()
		return
	}
	if err != nil {
		pkg.LogWarn(pkg.ComponentTMC, "command failed", "error", err)
	}
	if len(resp) > cap(t.respBuf) {
		resp = resp[:cap(t.respBuf)]
	}
	t.response = append(t.respBuf[:0], resp...)
}
