package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardnew/tmcdaq/pkg"
)

func TestNewInterface(t *testing.T) {
	iface := NewInterface(2, ClassAppSpecific, 0x03, 0x01)
	assert.Equal(t, uint8(2), iface.Number)
	assert.Equal(t, uint8(ClassAppSpecific), iface.Class)
	assert.Equal(t, uint8(0x03), iface.SubClass)
	assert.Equal(t, uint8(0x01), iface.Protocol)
	assert.Empty(t, iface.Endpoints())
}

func TestInterfaceAddEndpoint(t *testing.T) {
	iface := NewInterface(0, ClassAppSpecific, 0x03, 0)

	require.NoError(t, iface.AddEndpoint(NewEndpoint(0x81, EndpointTypeBulk, 64)))
	assert.ErrorIs(t, iface.AddEndpoint(NewEndpoint(0x81, EndpointTypeBulk, 64)), pkg.ErrBusy)

	for addr := uint8(2); iface.AddEndpoint(NewEndpoint(addr, EndpointTypeBulk, 64)) == nil; addr++ {
		require.Less(t, addr, uint8(16))
	}
	assert.Len(t, iface.Endpoints(), MaxEndpointsPerInterface)
	assert.ErrorIs(t, iface.AddEndpoint(NewEndpoint(0x8F, EndpointTypeBulk, 64)), pkg.ErrNoMemory)
}

func TestInterfaceFindEndpoint(t *testing.T) {
	iface := NewInterface(0, ClassAppSpecific, 0x03, 0)
	in := NewEndpoint(0x81, EndpointTypeBulk, 64)
	out := NewEndpoint(0x02, EndpointTypeBulk, 64)
	require.NoError(t, iface.AddEndpoint(in))
	require.NoError(t, iface.AddEndpoint(out))

	assert.Same(t, in, iface.FindEndpoint(EndpointTypeBulk, EndpointDirectionIn))
	assert.Same(t, out, iface.FindEndpoint(EndpointTypeBulk, EndpointDirectionOut))
	assert.Nil(t, iface.FindEndpoint(EndpointTypeInterrupt, EndpointDirectionIn))
	assert.Same(t, out, iface.GetEndpoint(0x02))
	assert.Nil(t, iface.GetEndpoint(0x03))
}

func TestInterfaceClassDriver(t *testing.T) {
	iface := NewInterface(0, ClassAppSpecific, 0x03, 0)

	_, err := iface.HandleSetup(&SetupPacket{}, nil)
	assert.ErrorIs(t, err, pkg.ErrInvalidRequest)

	first := &recordingDriver{}
	require.NoError(t, iface.SetClassDriver(first))
	assert.True(t, first.initDone)
	assert.Same(t, first, iface.ClassDriver())

	second := &recordingDriver{}
	require.NoError(t, iface.SetClassDriver(second))
	assert.True(t, first.closed)

	buf := make([]byte, 4)
	n, err := iface.HandleSetup(&SetupPacket{Request: 0x01}, buf)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	require.NoError(t, iface.SetAlternate(2))
	_, alt, _ := second.snapshot()
	assert.Equal(t, uint8(2), alt)

	require.NoError(t, iface.Close())
	assert.True(t, second.closed)
	assert.Nil(t, iface.ClassDriver())
}

func TestInterfaceMarshalDescriptors(t *testing.T) {
	iface := NewInterface(0, ClassAppSpecific, 0x03, 0x00)
	iface.StringIndex = 1
	require.NoError(t, iface.AddEndpoint(NewEndpoint(0x81, EndpointTypeBulk, 64)))
	require.NoError(t, iface.AddEndpoint(NewEndpoint(0x02, EndpointTypeBulk, 64)))

	buf := make([]byte, 64)
	n := iface.MarshalDescriptors(buf, 512)
	require.Equal(t, InterfaceDescriptorSize+2*EndpointDescriptorSize, n)
	assert.Equal(t, []byte{
		9, DescriptorTypeInterface, 0, 0, 2, 0xFE, 0x03, 0x00, 1,
		7, DescriptorTypeEndpoint, 0x81, 0x02, 0x00, 0x02, 0,
		7, DescriptorTypeEndpoint, 0x02, 0x02, 0x00, 0x02, 0,
	}, buf[:n])

	assert.Zero(t, iface.MarshalDescriptors(buf[:10], 64))
}
