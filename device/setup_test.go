package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardnew/tmcdaq/pkg"
)

func TestParseSetupPacket(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		want    SetupPacket
		wantErr bool
	}{
		{
			name: "INITIATE_ABORT_BULK_IN",
			data: []byte{0xA2, 0x03, 0x07, 0x00, 0x81, 0x00, 0x02, 0x00},
			want: SetupPacket{RequestType: 0xA2, Request: 0x03, Value: 7, Index: 0x81, Length: 2},
		},
		{
			name: "GET_CAPABILITIES",
			data: []byte{0xA1, 0x07, 0x00, 0x00, 0x00, 0x00, 0x18, 0x00},
			want: SetupPacket{RequestType: 0xA1, Request: 0x07, Length: 0x18},
		},
		{
			name: "CLEAR_FEATURE endpoint halt",
			data: []byte{0x02, 0x01, 0x00, 0x00, 0x02, 0x00, 0x00, 0x00},
			want: SetupPacket{RequestType: 0x02, Request: 0x01, Index: 0x02},
		},
		{
			name:    "too short",
			data:    []byte{0xA1, 0x07, 0x00},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got SetupPacket
			err := ParseSetupPacket(tt.data, &got)
			if tt.wantErr {
				assert.ErrorIs(t, err, pkg.ErrSetupPacketTooShort)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSetupPacketMarshalTo(t *testing.T) {
	var pkt SetupPacket
	ClassSetup(&pkt, RequestRecipientEndpoint, 0x01, 0x0005, 0x0002, 2)

	var buf [SetupPacketSize]byte
	require.Equal(t, SetupPacketSize, pkt.MarshalTo(buf[:]))
	assert.Equal(t, []byte{0xA2, 0x01, 0x05, 0x00, 0x02, 0x00, 0x02, 0x00}, buf[:])

	var parsed SetupPacket
	require.NoError(t, ParseSetupPacket(buf[:], &parsed))
	assert.Equal(t, pkt, parsed)

	assert.Zero(t, pkt.MarshalTo(buf[:4]))
}

func TestSetupPacketClassification(t *testing.T) {
	tests := []struct {
		name      string
		reqType   uint8
		in        bool
		class     bool
		standard  bool
		iface     bool
		endpoint  bool
		recipient uint8
	}{
		{"class interface IN", 0xA1, true, true, false, true, false, RequestRecipientInterface},
		{"class endpoint IN", 0xA2, true, true, false, false, true, RequestRecipientEndpoint},
		{"standard endpoint OUT", 0x02, false, false, true, false, true, RequestRecipientEndpoint},
		{"standard interface OUT", 0x01, false, false, true, true, false, RequestRecipientInterface},
		{"vendor device IN", 0xC0, true, false, false, false, false, RequestRecipientDevice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := SetupPacket{RequestType: tt.reqType}
			assert.Equal(t, tt.in, s.IsDeviceToHost())
			assert.Equal(t, tt.class, s.IsClass())
			assert.Equal(t, tt.standard, s.IsStandard())
			assert.Equal(t, tt.iface, s.IsInterfaceRecipient())
			assert.Equal(t, tt.endpoint, s.IsEndpointRecipient())
			assert.Equal(t, tt.recipient, s.Recipient())
		})
	}
}

func TestSetupPacketIndexFields(t *testing.T) {
	s := SetupPacket{Index: 0x1281}
	assert.Equal(t, uint8(0x81), s.EndpointAddress())
	assert.Equal(t, uint8(0x81), s.InterfaceNumber())
}

func TestSetupPacketString(t *testing.T) {
	var s SetupPacket
	ClassSetup(&s, RequestRecipientInterface, 0x07, 0, 0, 0x18)
	assert.Equal(t,
		"SETUP[IN Class Interface] Request=0x07 Value=0x0000 Index=0x0000 Length=24",
		s.String())

	ClearFeatureSetup(&s, RequestRecipientEndpoint, FeatureEndpointHalt, 0x02)
	assert.Equal(t,
		"SETUP[OUT Standard Endpoint] Request=0x01 Value=0x0000 Index=0x0002 Length=0",
		s.String())
}

func TestSetupPacketHAL(t *testing.T) {
	var s SetupPacket
	SetInterfaceSetup(&s, 1, 2)
	h := s.HAL()

	var back SetupPacket
	back.fromHAL(&h)
	assert.Equal(t, s, back)
	assert.Equal(t, uint8(RequestSetInterface), back.Request)
	assert.Equal(t, uint16(2), back.Value)

	GetInterfaceSetup(&s, 3)
	assert.True(t, s.IsDeviceToHost())
	assert.Equal(t, uint16(1), s.Length)
	assert.Equal(t, uint16(3), s.Index)
}
