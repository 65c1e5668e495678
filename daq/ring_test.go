package daq

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frame(b byte) []byte {
	return bytes.Repeat([]byte{b}, FrameSize)
}

func TestRingAppendOverflow(t *testing.T) {
	r := NewRing(2*FrameSize+5, FrameSize)

	require.True(t, r.Append(frame(1)))
	require.True(t, r.Append(frame(2)))
	assert.False(t, r.Append(frame(3)))
	assert.Equal(t, 2*FrameSize, r.Len())

	c := r.Corruption()
	assert.True(t, c.Flagged)
	assert.Equal(t, uint64(FrameSize), c.DroppedBytes)

	assert.False(t, r.Append(frame(4)))
	assert.Equal(t, uint64(2*FrameSize), r.Corruption().DroppedBytes)
	assert.LessOrEqual(t, r.Len(), r.Cap())
}

func TestRingDrain(t *testing.T) {
	tests := []struct {
		name   string
		frames int
		dst    int
		want   int
	}{
		{"empty", 0, 100, 0},
		{"one frame", 1, FrameSize, FrameSize},
		{"dst too small", 2, 2*FrameSize - 1, 0},
		{"exact", 3, 3 * FrameSize, 3 * FrameSize},
		{"larger dst", 2, 1000, 2 * FrameSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRing(10*FrameSize, FrameSize)
			for i := 0; i < tt.frames; i++ {
				require.True(t, r.Append(frame(byte(i+1))))
			}
			before := r.Len()

			dst := make([]byte, tt.dst)
			n := r.Drain(dst)
			assert.Equal(t, tt.want, n)
			assert.Zero(t, n%FrameSize)
			if n == 0 {
				assert.Equal(t, before, r.Len())
				return
			}
			assert.Equal(t, 0, r.Len())
			for i := 0; i < tt.frames; i++ {
				assert.Equal(t, frame(byte(i+1)), dst[i*FrameSize:(i+1)*FrameSize])
			}
		})
	}
}

func TestRingDrainIgnoresCorruption(t *testing.T) {
	r := NewRing(FrameSize, FrameSize)
	require.True(t, r.Append(frame(7)))
	require.False(t, r.Append(frame(8)))

	dst := make([]byte, 4*FrameSize)
	assert.Equal(t, FrameSize, r.Drain(dst))
	assert.True(t, r.Corruption().Flagged)
}

func TestRingDiscardAndClear(t *testing.T) {
	r := NewRing(FrameSize, FrameSize)
	require.True(t, r.Append(frame(1)))
	require.False(t, r.Append(frame(2)))

	r.Discard()
	assert.Equal(t, 0, r.Len())
	assert.True(t, r.Corruption().Flagged)

	r.Clear()
	assert.Equal(t, Corruption{}, r.Corruption())
}

func TestRingDefaults(t *testing.T) {
	r := NewRing(0, 0)
	assert.Equal(t, DefaultRingCapacity, r.Cap())
}
