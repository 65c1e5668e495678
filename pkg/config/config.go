// Package config loads the instrument configuration file.
//
// Loading follows a fixed pipeline: [Load] decodes YAML strictly,
// [Validate] checks it without mutating anything, and [Normalize] fills
// defaults for every field left at its zero value. [Default] yields the
// configuration used when no file is given.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// HAL kinds.
const (
	HALLoopback   = "loopback"
	HALFunctionFS = "functionfs"
)

// Defaults applied by Normalize.
const (
	DefaultClockHz          = 48_000_000
	DefaultRingCapacity     = 10_000
	DefaultQueueDepth       = 32
	DefaultMaxRate          = 16_000
	DefaultMaxPacketSize    = 64
	DefaultDataBufferSize   = 10_000
	DefaultResponseCapacity = 128
	DefaultMessageCapacity  = 128
	DefaultBulkIn           = 1
	DefaultBulkOut          = 2
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "text"
)

// Config is the complete instrument configuration file.
type Config struct {
	Instrument InstrumentConfig `yaml:"instrument"`
	USBTMC     USBTMCConfig     `yaml:"usbtmc"`
	HAL        HALConfig        `yaml:"hal"`
	Log        LogConfig        `yaml:"log"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// InstrumentConfig sizes the acquisition core. ClockHz is the timer input
// clock; MaxRate bounds the sample rate a job may request.
type InstrumentConfig struct {
	ClockHz      uint32  `yaml:"clock_hz"`
	RingCapacity int     `yaml:"ring_capacity"`
	QueueDepth   int     `yaml:"queue_depth"`
	MaxRate      float64 `yaml:"max_rate"`
}

// USBTMCConfig describes the USBTMC interface: its number, its bulk endpoint
// numbers, transfer buffer sizes and the advertised capabilities.
type USBTMCConfig struct {
	Interface        uint8 `yaml:"interface"`
	BulkIn           uint8 `yaml:"bulk_in"`
	BulkOut          uint8 `yaml:"bulk_out"`
	MaxPacketSize    int   `yaml:"max_packet_size"`
	DataBufferSize   int   `yaml:"data_buffer_size"`
	ResponseCapacity int   `yaml:"response_capacity"`
	MessageCapacity  int   `yaml:"message_capacity"`
	IndicatorPulse   bool  `yaml:"indicator_pulse"`
	TalkOnly         bool  `yaml:"talk_only"`
	ListenOnly       bool  `yaml:"listen_only"`
}

// HALConfig selects the hardware abstraction the stack runs on.
type HALConfig struct {
	Kind          string `yaml:"kind"`
	FunctionFSDir string `yaml:"functionfs_dir"`
	HighSpeed     bool   `yaml:"high_speed"`
}

// LogConfig holds the slog level and output format.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig holds the HTTP listen address for /metrics. Empty disables
// the server.
type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

// Load reads and decodes the file at path. Unknown keys are rejected.
// The result is neither validated nor normalized.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration data. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		// An empty document decodes to the zero config.
		if errors.Is(err, io.EOF) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// Default returns the normalized zero configuration.
func Default() *Config {
	cfg := &Config{}
	Normalize(cfg)
	return cfg
}

// Marshal encodes cfg as YAML.
func Marshal(cfg *Config) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
