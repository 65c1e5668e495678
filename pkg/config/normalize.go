package config

// Normalize applies post-validation normalization.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	in := &cfg.Instrument
	if in.ClockHz == 0 {
		in.ClockHz = DefaultClockHz
	}
	if in.RingCapacity == 0 {
		in.RingCapacity = DefaultRingCapacity
	}
	if in.QueueDepth == 0 {
		in.QueueDepth = DefaultQueueDepth
	}
	if in.MaxRate == 0 {
		in.MaxRate = DefaultMaxRate
	}

	u := &cfg.USBTMC
	if u.BulkIn == 0 {
		u.BulkIn = DefaultBulkIn
		if u.BulkOut == DefaultBulkIn {
			u.BulkIn = DefaultBulkOut
		}
	}
	if u.BulkOut == 0 {
		u.BulkOut = DefaultBulkOut
		if u.BulkIn == DefaultBulkOut {
			u.BulkOut = DefaultBulkIn
		}
	}
	if u.MaxPacketSize == 0 {
		u.MaxPacketSize = DefaultMaxPacketSize
		if cfg.HAL.HighSpeed {
			u.MaxPacketSize = 512
		}
	}
	if u.DataBufferSize == 0 {
		u.DataBufferSize = DefaultDataBufferSize
	}
	if u.ResponseCapacity == 0 {
		u.ResponseCapacity = DefaultResponseCapacity
	}
	if u.MessageCapacity == 0 {
		u.MessageCapacity = DefaultMessageCapacity
	}

	if cfg.HAL.Kind == "" {
		cfg.HAL.Kind = HALLoopback
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
}
