package tmc

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardnew/tmcdaq/pkg"
)

func header(msgID, tag, inv uint8, size uint32, attr uint8) []byte {
	buf := make([]byte, HeaderSize)
	buf[0], buf[1], buf[2] = msgID, tag, inv
	binary.LittleEndian.PutUint32(buf[4:8], size)
	buf[8] = attr
	return buf
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"short", []byte{1, 1, 0xFE}, pkg.ErrHeaderTooShort},
		{"zero tag", header(MsgDevDepMsgOut, 0, 0xFF, 1, AttrEOM), pkg.ErrBadTag},
		{"bad inverse", header(MsgDevDepMsgOut, 5, 5, 1, AttrEOM), pkg.ErrBadTag},
		{"vendor out", header(MsgVendorSpecificOut, 3, ^uint8(3), 0, 0), pkg.ErrUnknownMessage},
		{"vendor in", header(MsgRequestVendorSpecificIn, 3, ^uint8(3), 0, 0), pkg.ErrUnknownMessage},
		{"unknown", header(9, 3, ^uint8(3), 0, 0), pkg.ErrUnknownMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDecodeDevDepMsgOut(t *testing.T) {
	// trailing alignment bytes are not part of the message
	data := append(header(MsgDevDepMsgOut, 7, ^uint8(7), 3, AttrEOM), 'R', 'S', 'T', 0)

	msg, err := Decode(data)
	require.NoError(t, err)
	out, ok := msg.(*DevDepMsgOut)
	require.True(t, ok)
	assert.Equal(t, uint8(7), out.Tag())
	assert.Equal(t, uint32(3), out.TransferSize)
	assert.True(t, out.EOM)
	assert.Equal(t, []byte("RST"), out.Data)
}

func TestDecodeRequestDevDepMsgIn(t *testing.T) {
	data := header(MsgRequestDevDepMsgIn, 200, ^uint8(200), 4096, AttrTermChar)
	data[9] = '\n'

	msg, err := Decode(data)
	require.NoError(t, err)
	in, ok := msg.(*RequestDevDepMsgIn)
	require.True(t, ok)
	assert.Equal(t, uint8(200), in.Tag())
	assert.Equal(t, uint32(4096), in.TransferSize)
	assert.True(t, in.TermCharEnabled)
	assert.Equal(t, uint8('\n'), in.TermChar)
}

func TestHostEncoders(t *testing.T) {
	msg, err := Decode(EncodeDevDepMsgOut(9, []byte("STOP"), false))
	require.NoError(t, err)
	out := msg.(*DevDepMsgOut)
	assert.False(t, out.EOM)
	assert.Equal(t, []byte("STOP"), out.Data)

	msg, err = Decode(EncodeRequestDevDepMsgIn(10, 18))
	require.NoError(t, err)
	assert.Equal(t, uint32(18), msg.(*RequestDevDepMsgIn).TransferSize)
}

func TestEncodeDevDepMsgIn(t *testing.T) {
	assert.Zero(t, EncodeDevDepMsgIn(make([]byte, 4), 1, 1, true))

	buf := make([]byte, HeaderSize+2)
	require.Equal(t, HeaderSize, EncodeDevDepMsgIn(buf, 0x42, 2, true))
	copy(buf[HeaderSize:], "OK")

	var hdr InHeader
	payload, err := ParseDevDepMsgIn(buf, &hdr)
	require.NoError(t, err)
	assert.Equal(t, InHeader{Tag: 0x42, TransferSize: 2, EOM: true}, hdr)
	assert.Equal(t, []byte("OK"), payload)
	assert.Equal(t, uint8(0xBD), buf[2])
}

func TestParseDevDepMsgInErrors(t *testing.T) {
	var hdr InHeader
	_, err := ParseDevDepMsgIn([]byte{2}, &hdr)
	assert.ErrorIs(t, err, pkg.ErrHeaderTooShort)

	_, err = ParseDevDepMsgIn(header(MsgDevDepMsgOut, 1, 0xFE, 0, 0), &hdr)
	assert.ErrorIs(t, err, pkg.ErrUnknownMessage)

	_, err = ParseDevDepMsgIn(header(MsgDevDepMsgIn, 1, 1, 0, 0), &hdr)
	assert.ErrorIs(t, err, pkg.ErrBadTag)
}
