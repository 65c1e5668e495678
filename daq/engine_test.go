package daq

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardnew/tmcdaq/pkg"
)

// fakeConverter returns raw frames whose payload bytes equal seq.
type fakeConverter struct {
	enabled   bool
	rate      float64
	mask      uint8
	configs   int
	seq       byte
	readErr   error
	registers map[uint8]uint8
}

func (c *fakeConverter) Configure(rate float64, mask uint8) error {
	c.rate, c.mask = rate, mask
	c.configs++
	return nil
}

func (c *fakeConverter) Enable(on bool) error {
	c.enabled = on
	return nil
}

func (c *fakeConverter) ReadFrame(raw []byte) error {
	if c.readErr != nil {
		return c.readErr
	}
	c.seq++
	raw[1] = 0xC0
	for i := FrameOffset; i < RawFrameSize; i++ {
		raw[i] = c.seq
	}
	return nil
}

func (c *fakeConverter) ReadRegister(reg uint8) (uint8, error) {
	v, ok := c.registers[reg]
	if !ok {
		return 0, pkg.ErrInvalidParameter
	}
	return v, nil
}

type fakeTimer struct {
	running   bool
	prescaler uint32
	compare   uint32
	err       error
}

func (t *fakeTimer) Configure(prescaler, compare uint32) error {
	if t.err != nil {
		return t.err
	}
	t.running = true
	t.prescaler, t.compare = prescaler, compare
	return nil
}

func (t *fakeTimer) Disable() error {
	t.running = false
	return nil
}

func newTestEngine(opts Options) (*Engine, *fakeConverter, *fakeTimer) {
	conv := &fakeConverter{registers: map[uint8]uint8{0: 0x3E}}
	timer := &fakeTimer{}
	return NewEngine(conv, timer, opts), conv, timer
}

// sample delivers one data-ready and one timer interrupt.
func sample(e *Engine) {
	e.DataReady()
	e.TimerElapsed()
}

func TestEngineEnqueue(t *testing.T) {
	e, _, _ := newTestEngine(Options{QueueDepth: 1})

	assert.ErrorIs(t, e.Enqueue(0, 1000, 1), pkg.ErrInvalidParameter)
	assert.ErrorIs(t, e.Enqueue(1, 16000, 1), pkg.ErrInvalidParameter)
	assert.ErrorIs(t, e.Enqueue(1, 1000, 0x40), pkg.ErrInvalidParameter)
	assert.Equal(t, 0, e.Jobs())

	require.NoError(t, e.Enqueue(10, 1000, 1))
	assert.ErrorIs(t, e.Enqueue(10, 1000, 1), pkg.ErrQueueFull)
	assert.Equal(t, 1, e.Jobs())
}

func TestEngineStart(t *testing.T) {
	e, conv, timer := newTestEngine(Options{})

	state, err := e.Start()
	assert.ErrorIs(t, err, pkg.ErrQueueEmpty)
	assert.Equal(t, Stopped, state)

	require.NoError(t, e.Enqueue(5, 1000, 0x05))
	state, err = e.Start()
	require.NoError(t, err)
	assert.Equal(t, Running, state)
	assert.True(t, conv.enabled)
	assert.Equal(t, 1000.0, conv.rate)
	assert.Equal(t, uint8(0x05), conv.mask)
	assert.True(t, timer.running)
	assert.Equal(t, uint32(1), timer.prescaler)
	assert.Equal(t, uint32(48000), timer.compare)

	state, err = e.Start()
	assert.ErrorIs(t, err, pkg.ErrAlreadyRunning)
	assert.Equal(t, Running, state)
}

func TestEngineStartFailure(t *testing.T) {
	e, conv, timer := newTestEngine(Options{})
	timer.err = errors.New("timer fault")

	require.NoError(t, e.Enqueue(5, 1000, 1))
	state, err := e.Start()
	assert.Error(t, err)
	assert.Equal(t, Stopped, state)
	assert.False(t, conv.enabled)
}

func TestEngineStopIdempotent(t *testing.T) {
	e, conv, timer := newTestEngine(Options{})
	assert.Equal(t, Stopped, e.Stop())

	require.NoError(t, e.Enqueue(5, 1000, 1))
	_, err := e.Start()
	require.NoError(t, err)
	assert.Equal(t, Stopped, e.Stop())
	assert.Equal(t, Stopped, e.Stop())
	assert.False(t, conv.enabled)
	assert.False(t, timer.running)
}

func TestEngineRunsJobToCompletion(t *testing.T) {
	e, _, timer := newTestEngine(Options{RingCapacity: 10000})
	require.NoError(t, e.Enqueue(100, 1000, 1))
	_, err := e.Start()
	require.NoError(t, err)

	for i := 0; i < 100; i++ {
		sample(e)
	}

	assert.Equal(t, 0, e.Jobs())
	assert.Equal(t, Stopped, e.State())
	assert.False(t, timer.running)
	assert.Equal(t, 100*FrameSize, e.Buffered())

	sample(e)
	assert.Equal(t, 100*FrameSize, e.Buffered())
}

func TestEngineLatchOrder(t *testing.T) {
	e, _, _ := newTestEngine(Options{})
	require.NoError(t, e.Enqueue(10, 1000, 1))
	_, err := e.Start()
	require.NoError(t, err)

	e.TimerElapsed()
	e.TimerElapsed()
	assert.Equal(t, 0, e.Buffered())
	e.DataReady()
	assert.Equal(t, FrameSize, e.Buffered())

	e.DataReady()
	e.DataReady()
	assert.Equal(t, FrameSize, e.Buffered())
	e.TimerElapsed()
	assert.Equal(t, 2*FrameSize, e.Buffered())

	dst := make([]byte, 100)
	n := e.Drain(dst)
	require.Equal(t, 2*FrameSize, n)
	assert.Equal(t, byte(1), dst[0])
	// the second sample holds the most recent latch
	assert.Equal(t, byte(3), dst[FrameSize])
}

func TestEngineFrameErrorSkipsSample(t *testing.T) {
	e, conv, _ := newTestEngine(Options{})
	require.NoError(t, e.Enqueue(10, 1000, 1))
	_, err := e.Start()
	require.NoError(t, err)

	conv.readErr = pkg.ErrFrameInvalid
	sample(e)
	assert.Equal(t, 0, e.Buffered())
	r, _ := e.Query(0)
	assert.Equal(t, uint32(10), r.Count)
}

func TestEngineAdvancesToNextJob(t *testing.T) {
	e, conv, _ := newTestEngine(Options{})
	require.NoError(t, e.Enqueue(2, 1000, 0x01))
	require.NoError(t, e.Enqueue(3, 500, 0x02))
	_, err := e.Start()
	require.NoError(t, err)

	sample(e)
	sample(e)
	assert.Equal(t, Running, e.State())
	assert.Equal(t, 500.0, conv.rate)
	assert.Equal(t, uint8(0x02), conv.mask)
	assert.Equal(t, 1, e.Jobs())

	for i := 0; i < 3; i++ {
		sample(e)
	}
	assert.Equal(t, Stopped, e.State())
	assert.Equal(t, 5*FrameSize, e.Buffered())
}

func TestEngineOverflowCountsCorruption(t *testing.T) {
	e, _, _ := newTestEngine(Options{RingCapacity: 2 * FrameSize})
	require.NoError(t, e.Enqueue(5, 1000, 1))
	_, err := e.Start()
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		sample(e)
	}
	assert.Equal(t, Stopped, e.State())
	assert.Equal(t, 2*FrameSize, e.Buffered())
	c := e.Corruption()
	assert.True(t, c.Flagged)
	assert.Equal(t, uint64(3*FrameSize), c.DroppedBytes)

	e.Clear()
	assert.Equal(t, Corruption{}, e.Corruption())
	assert.Equal(t, 0, e.Buffered())
}

func TestEngineRemove(t *testing.T) {
	e, conv, _ := newTestEngine(Options{})
	assert.False(t, e.Remove())

	require.NoError(t, e.Enqueue(5, 1000, 1))
	require.NoError(t, e.Enqueue(5, 250, 2))
	_, err := e.Start()
	require.NoError(t, err)

	assert.True(t, e.Remove())
	assert.Equal(t, 250.0, conv.rate)
	assert.Equal(t, Running, e.State())

	assert.False(t, e.Remove())
	assert.Equal(t, Stopped, e.State())
}

func TestEngineStartDiscardsBuffer(t *testing.T) {
	e, _, _ := newTestEngine(Options{})
	require.NoError(t, e.Enqueue(1, 1000, 1))
	_, err := e.Start()
	require.NoError(t, err)
	sample(e)
	require.Equal(t, FrameSize, e.Buffered())

	require.NoError(t, e.Enqueue(1, 1000, 1))
	_, err = e.Start()
	require.NoError(t, err)
	assert.Equal(t, 0, e.Buffered())
}

func TestEngineReset(t *testing.T) {
	e, _, _ := newTestEngine(Options{RingCapacity: FrameSize})
	require.NoError(t, e.Enqueue(5, 1000, 1))
	_, err := e.Start()
	require.NoError(t, err)
	sample(e)
	sample(e)

	e.Reset()
	assert.Equal(t, Stopped, e.State())
	assert.Equal(t, 0, e.Jobs())
	assert.Equal(t, 0, e.Buffered())
	assert.False(t, e.Corruption().Flagged)
}

func TestEngineReadRegister(t *testing.T) {
	e, _, _ := newTestEngine(Options{})
	v, err := e.ReadRegister(0)
	require.NoError(t, err)
	assert.Equal(t, uint8(0x3E), v)

	_, err = e.ReadRegister(99)
	assert.Error(t, err)
}

func TestEngineStatus(t *testing.T) {
	e, _, _ := newTestEngine(Options{})
	require.NoError(t, e.Enqueue(5, 1000, 1))
	assert.Equal(t, Status{State: "stopped", Jobs: 1}, e.Status())

	lo, hi := e.RateBounds()
	assert.Equal(t, MinRate(DefaultClockHz), lo)
	assert.Equal(t, float64(DefaultMaxRate), hi)
}
