package sim

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardnew/tmcdaq/daq"
	"github.com/ardnew/tmcdaq/daq/ads1299"
	"github.com/ardnew/tmcdaq/pkg"
)

type countingSink struct {
	timer atomic.Int32
	ready atomic.Int32
}

func (s *countingSink) TimerElapsed() { s.timer.Add(1) }
func (s *countingSink) DataReady()    { s.ready.Add(1) }

func TestChipConversion(t *testing.T) {
	c := NewChip()
	raw := make([]byte, daq.RawFrameSize)

	require.NoError(t, c.Transfer([]byte{ads1299.CmdWREG + ads1299.RegCH1Set + 1, 0, ads1299.ChannelOff}, make([]byte, 3)))
	require.NoError(t, c.Transfer(append([]byte{ads1299.CmdRDATA}, make([]byte, daq.RawFrameSize-1)...), raw))

	assert.Equal(t, byte(ads1299.StatusMarker), raw[1])
	assert.Equal(t, []byte{0, 0, 1}, raw[daq.FrameOffset:daq.FrameOffset+3])
	assert.Equal(t, []byte{0, 0, 0}, raw[daq.FrameOffset+3:daq.FrameOffset+6])
}

func TestChipIDReadOnly(t *testing.T) {
	c := NewChip()
	require.NoError(t, c.Transfer([]byte{ads1299.CmdWREG + ads1299.RegID, 0, 0x55}, make([]byte, 3)))
	assert.Equal(t, uint8(ChipID), c.Register(ads1299.RegID))
	assert.Equal(t, uint8(0), c.Register(200))
}

func TestChipReset(t *testing.T) {
	c := NewChip()
	require.NoError(t, c.Transfer([]byte{ads1299.CmdStart}, make([]byte, 1)))
	require.NoError(t, c.Transfer([]byte{ads1299.CmdWREG + ads1299.RegConfig2, 0, 0x11}, make([]byte, 3)))
	require.NoError(t, c.Transfer([]byte{ads1299.CmdReset}, make([]byte, 1)))
	assert.False(t, c.Running())
	assert.Equal(t, uint8(0), c.Register(ads1299.RegConfig2))
}

func TestBoardConfigure(t *testing.T) {
	b := NewBoard(48_000_000)
	assert.Equal(t, time.Duration(0), b.Period())
	assert.ErrorIs(t, b.Configure(0, 1), pkg.ErrInvalidParameter)

	require.NoError(t, b.Configure(1, 48000))
	assert.Equal(t, time.Millisecond, b.Period())
	require.NoError(t, b.Disable())
	assert.Equal(t, time.Duration(0), b.Period())
}

func TestBoardTick(t *testing.T) {
	b := NewBoard(0)
	var sink countingSink

	b.Tick(&sink)
	assert.Equal(t, int32(1), sink.timer.Load())
	assert.Equal(t, int32(0), sink.ready.Load())

	require.NoError(t, b.Chip.Transfer([]byte{ads1299.CmdStart}, make([]byte, 1)))
	b.Tick(&sink)
	assert.Equal(t, int32(1), sink.ready.Load())
}

func TestBoardRun(t *testing.T) {
	b := NewBoard(48_000_000)
	var sink countingSink
	require.NoError(t, b.Chip.Transfer([]byte{ads1299.CmdStart}, make([]byte, 1)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx, &sink) }()

	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, int32(0), sink.timer.Load())

	require.NoError(t, b.Configure(1, 48000))
	assert.Eventually(t, func() bool { return sink.ready.Load() >= 5 }, time.Second, time.Millisecond)

	require.NoError(t, b.Disable())
	cancel()
	require.NoError(t, <-done)
}

// The board drives a real engine through a job.
func TestBoardDrivesEngine(t *testing.T) {
	b := NewBoard(daq.DefaultClockHz)
	dev := ads1299.New(b.Chip)
	require.NoError(t, dev.Init())

	eng := daq.NewEngine(dev, b, daq.Options{})
	require.NoError(t, eng.Enqueue(20, 1000, 0x3F))
	_, err := eng.Start()
	require.NoError(t, err)
	assert.Equal(t, uint8(ads1299.Config1Base+3), b.Chip.Register(ads1299.RegConfig1))

	for i := 0; i < 20; i++ {
		b.Tick(eng)
	}
	assert.Equal(t, daq.Stopped, eng.State())
	assert.False(t, b.Chip.Running())
	assert.Equal(t, time.Duration(0), b.Period())

	buf := make([]byte, 1000)
	n := eng.Drain(buf)
	require.Equal(t, 20*daq.FrameSize, n)
	assert.Equal(t, []byte{0, 0, 1}, buf[:3])
	assert.Equal(t, []byte{0, 0, 2}, buf[daq.FrameSize:daq.FrameSize+3])
}
