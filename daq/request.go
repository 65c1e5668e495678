package daq

import (
	"fmt"
	"math"

	"github.com/ardnew/tmcdaq/pkg"
)

// Acquisition limits.
const (
	// FrameSize is the size of one sample frame: 6 channels of 24 bits.
	FrameSize = 18

	// RawFrameSize is the size of one raw converter read. The frame is
	// the trailing FrameSize bytes.
	RawFrameSize = 22

	// FrameOffset is the position of the frame within a raw read.
	FrameOffset = RawFrameSize - FrameSize

	// MaxChannelMask selects all six channels.
	MaxChannelMask = 0x3F

	// DefaultClockHz is the timer input clock.
	DefaultClockHz = 48_000_000

	// DefaultMaxRate is the exclusive upper bound of the sample rate.
	DefaultMaxRate = 16000

	// DefaultRingCapacity is the sample ring size in bytes.
	DefaultRingCapacity = 10000

	// DefaultQueueDepth is the number of jobs the queue holds.
	DefaultQueueDepth = 32
)

// MinRate returns the exclusive lower bound of the sample rate: the
// slowest rate a 32-bit timer reaches at the largest prescaler.
func MinRate(clockHz float64) float64 {
	return clockHz / (MaxPrescaler * math.Exp2(32))
}

// Request is one acquisition job. Count is decremented as samples are
// taken; the other fields never change after validation.
type Request struct {
	Count uint32  // samples remaining
	Rate  float64 // samples per second
	Mask  uint8   // enabled channels, bit 0 is channel 1
}

// Validate checks r against the rate bounds (minRate, maxRate).
func (r Request) Validate(minRate, maxRate float64) error {
	switch {
	case r.Count == 0:
		return fmt.Errorf("%w: sample count is zero", pkg.ErrInvalidParameter)
	case !(r.Rate > minRate && r.Rate < maxRate):
		return fmt.Errorf("%w: rate %g outside (%g, %g)", pkg.ErrInvalidParameter, r.Rate, minRate, maxRate)
	case r.Mask == 0 || r.Mask > MaxChannelMask:
		return fmt.Errorf("%w: channel mask 0x%02X", pkg.ErrInvalidParameter, r.Mask)
	}
	return nil
}

// String returns the query line for the request.
func (r Request) String() string {
	return fmt.Sprintf("Number of Samples: %d\tSample Rate: %f\tChannels:%d\n", r.Count, r.Rate, r.Mask)
}
