package config

import (
	"fmt"

	"github.com/ardnew/tmcdaq/pkg"
)

// Smallest ring that holds one sample frame (6 channels of 24 bits).
const minRingCapacity = 18

// Validate checks configuration correctness.
// Zero values are accepted since Normalize replaces them with defaults.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: %w", pkg.ErrInvalidParameter)
	}

	in := cfg.Instrument
	if in.RingCapacity != 0 && in.RingCapacity < minRingCapacity {
		return fmt.Errorf("instrument.ring_capacity %d: must hold at least one %d-byte frame",
			in.RingCapacity, minRingCapacity)
	}
	if in.QueueDepth < 0 {
		return fmt.Errorf("instrument.queue_depth %d: must not be negative", in.QueueDepth)
	}
	if in.MaxRate < 0 {
		return fmt.Errorf("instrument.max_rate %g: must not be negative", in.MaxRate)
	}
	clock := float64(in.ClockHz)
	if clock == 0 {
		clock = DefaultClockHz
	}
	if in.MaxRate > clock {
		return fmt.Errorf("instrument.max_rate %g: exceeds clock_hz %g", in.MaxRate, clock)
	}

	u := cfg.USBTMC
	switch u.MaxPacketSize {
	case 0, 8, 16, 32, 64, 512:
	default:
		return fmt.Errorf("usbtmc.max_packet_size %d: must be 8, 16, 32, 64 or 512", u.MaxPacketSize)
	}
	if u.BulkIn > 15 || u.BulkOut > 15 {
		return fmt.Errorf("usbtmc endpoints (in=%d out=%d): endpoint number must be 1-15",
			u.BulkIn, u.BulkOut)
	}
	if u.BulkIn != 0 && u.BulkIn == u.BulkOut {
		return fmt.Errorf("usbtmc endpoints: bulk_in and bulk_out share number %d", u.BulkIn)
	}
	if u.DataBufferSize != 0 && u.DataBufferSize < minRingCapacity {
		return fmt.Errorf("usbtmc.data_buffer_size %d: must hold at least one frame", u.DataBufferSize)
	}
	// The ring drains only as a whole; the bulk-IN buffer must fit all of it.
	ring, buf := in.RingCapacity, u.DataBufferSize
	if ring == 0 {
		ring = DefaultRingCapacity
	}
	if buf == 0 {
		buf = DefaultDataBufferSize
	}
	if buf < ring {
		return fmt.Errorf("usbtmc.data_buffer_size %d: smaller than instrument.ring_capacity %d",
			buf, ring)
	}
	if u.ResponseCapacity < 0 || u.MessageCapacity < 0 {
		return fmt.Errorf("usbtmc buffer capacities must not be negative")
	}
	if u.TalkOnly && u.ListenOnly {
		return fmt.Errorf("usbtmc: talk_only and listen_only are mutually exclusive")
	}

	switch cfg.HAL.Kind {
	case "", HALLoopback:
	case HALFunctionFS:
		if cfg.HAL.FunctionFSDir == "" {
			return fmt.Errorf("hal: kind %q requires functionfs_dir", HALFunctionFS)
		}
	default:
		return fmt.Errorf("hal.kind %q: must be %q or %q", cfg.HAL.Kind, HALLoopback, HALFunctionFS)
	}

	if _, err := pkg.ParseLogLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if _, err := pkg.ParseLogFormat(cfg.Log.Format); err != nil {
		return fmt.Errorf("log.format: %w", err)
	}

	return nil
}
