package tmc

import (
	"encoding/binary"
	"fmt"

	"github.com/ardnew/tmcdaq/pkg"
)

// Message is a decoded Bulk-OUT message. The concrete type is
// *DevDepMsgOut or *RequestDevDepMsgIn.
type Message interface {
	Tag() uint8
	isMessage()
}

// DevDepMsgOut carries command text from the host.
type DevDepMsgOut struct {
	BTag         uint8
	TransferSize uint32
	EOM          bool
	// Data holds the message bytes present in this transfer. It aliases
	// the decoded buffer and may be shorter than TransferSize.
	Data []byte
}

// RequestDevDepMsgIn asks the device for up to TransferSize bytes.
type RequestDevDepMsgIn struct {
	BTag            uint8
	TransferSize    uint32
	TermCharEnabled bool
	TermChar        uint8
}

func (m *DevDepMsgOut) Tag() uint8       { return m.BTag }
func (m *RequestDevDepMsgIn) Tag() uint8 { return m.BTag }
func (*DevDepMsgOut) isMessage()         {}
func (*RequestDevDepMsgIn) isMessage()   {}

// Decode parses one Bulk-OUT transfer. It rejects short transfers, a zero
// or inconsistent bTag, and every MsgID other than DEV_DEP_MSG_OUT and
// REQUEST_DEV_DEP_MSG_IN.
func Decode(data []byte) (Message, error) {
	if len(data) < HeaderSize {
		return nil, pkg.ErrHeaderTooShort
	}
	msgID, tag, inv := data[0], data[1], data[2]
	if tag == 0 || inv != ^tag {
		return nil, fmt.Errorf("%w: bTag=%d bTagInverse=%d", pkg.ErrBadTag, tag, inv)
	}

	size := binary.LittleEndian.Uint32(data[4:8])
	attr := data[8]

	switch msgID {
	case MsgDevDepMsgOut:
		payload := data[HeaderSize:]
		if uint64(len(payload)) > uint64(size) {
			payload = payload[:size]
		}
		return &DevDepMsgOut{
			BTag:         tag,
			TransferSize: size,
			EOM:          attr&AttrEOM != 0,
			Data:         payload,
		}, nil

	case MsgRequestDevDepMsgIn:
		return &RequestDevDepMsgIn{
			BTag:            tag,
			TransferSize:    size,
			TermCharEnabled: attr&AttrTermChar != 0,
			TermChar:        data[9],
		}, nil
	}
	return nil, fmt.Errorf("%w: %d", pkg.ErrUnknownMessage, msgID)
}

// EncodeDevDepMsgIn writes a DEV_DEP_MSG_IN header to buf and returns
// HeaderSize, or 0 if buf is too small.
func EncodeDevDepMsgIn(buf []byte, tag uint8, transferSize uint32, eom bool) int {
	if len(buf) < HeaderSize {
		return 0
	}
	buf[0] = MsgDevDepMsgIn
	buf[1] = tag
	buf[2] = ^tag
	buf[3] = 0
	binary.LittleEndian.PutUint32(buf[4:8], transferSize)
	buf[8] = 0
	if eom {
		buf[8] = AttrEOM
	}
	buf[9], buf[10], buf[11] = 0, 0, 0
	return HeaderSize
}

// EncodeDevDepMsgOut writes a complete DEV_DEP_MSG_OUT transfer. Hosts use
// it; the device only decodes this message.
func EncodeDevDepMsgOut(tag uint8, msg []byte, eom bool) []byte {
	buf := make([]byte, HeaderSize+len(msg))
	buf[0] = MsgDevDepMsgOut
	buf[1] = tag
	buf[2] = ^tag
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(msg)))
	if eom {
		buf[8] = AttrEOM
	}
	copy(buf[HeaderSize:], msg)
	return buf
}

// EncodeRequestDevDepMsgIn writes a REQUEST_DEV_DEP_MSG_IN transfer.
func EncodeRequestDevDepMsgIn(tag uint8, transferSize uint32) []byte {
	buf := make([]byte, HeaderSize)
	buf[0] = MsgRequestDevDepMsgIn
	buf[1] = tag
	buf[2] = ^tag
	binary.LittleEndian.PutUint32(buf[4:8], transferSize)
	return buf
}

// InHeader is a decoded DEV_DEP_MSG_IN header.
type InHeader struct {
	Tag          uint8
	TransferSize uint32
	EOM          bool
}

// ParseDevDepMsgIn decodes a DEV_DEP_MSG_IN header into out and returns
// the payload bytes it announces.
func ParseDevDepMsgIn(data []byte, out *InHeader) ([]byte, error) {
	if len(data) < HeaderSize {
		return nil, pkg.ErrHeaderTooShort
	}
	if data[0] != MsgDevDepMsgIn {
		return nil, fmt.Errorf("%w: %d", pkg.ErrUnknownMessage, data[0])
	}
	if data[2] != ^data[1] {
		return nil, pkg.ErrBadTag
	}
	out.Tag = data[1]
	out.TransferSize = binary.LittleEndian.Uint32(data[4:8])
	out.EOM = data[8]&AttrEOM != 0

	payload := data[HeaderSize:]
	if uint64(len(payload)) > uint64(out.TransferSize) {
		payload = payload[:out.TransferSize]
	}
	return payload, nil
}
