// Package ads1299 drives an ADS1299-class delta-sigma converter over a
// full-duplex serial bus and implements [daq.Converter].
package ads1299

import (
	"fmt"

	"github.com/ardnew/tmcdaq/daq"
	"github.com/ardnew/tmcdaq/pkg"
)

// Opcodes.
const (
	CmdWakeup  = 0x02
	CmdStandby = 0x04
	CmdReset   = 0x06
	CmdStart   = 0x08
	CmdStop    = 0x0A
	CmdRDATAC  = 0x10
	CmdSDATAC  = 0x11
	CmdRDATA   = 0x12
	CmdRREG    = 0x20
	CmdWREG    = 0x40
)

// Registers.
const (
	RegID      = 0
	RegConfig1 = 1
	RegConfig2 = 2
	RegConfig3 = 3
	RegLOFF    = 4
	RegCH1Set  = 5
	RegMisc1   = 21
	RegConfig4 = 23
)

// Register values.
const (
	Config1Base = 0b11010000
	Config2Init = 0b11000011
	Config3Init = 0b01100000
	Misc1Init   = 0b00100000

	ChannelOn  = 0b00000000
	ChannelOff = 0b10000001
)

// Channels is the number of channels carried in a frame.
const Channels = 6

// StatusMarker is the high nibble of the first status byte of a valid
// conversion.
const StatusMarker = 0xC0

// ReadRetries bounds the re-reads of a conversion with a bad status.
const ReadRetries = 3

// WriteRetries bounds the re-writes of a register that reads back wrong.
const WriteRetries = 3

// Rates lists the output data rates, indexed by rate code.
var Rates = [...]float64{16000, 8000, 4000, 2000, 1000, 500, 250}

// headroom leaves time to move a frame between conversions.
const headroom = 0.8

// RateCode returns the slowest output data rate code that still converts
// faster than rate with headroom.
func RateCode(rate float64) uint8 {
	for code := len(Rates) - 1; code > 0; code-- {
		if rate < Rates[code]*headroom {
			return uint8(code)
		}
	}
	return 0
}

// Bus performs one full-duplex transfer. rx is filled with as many bytes
// as tx holds.
type Bus interface {
	Transfer(tx, rx []byte) error
}

// Device is a converter on a Bus.
type Device struct {
	bus Bus
	tx  [daq.RawFrameSize]byte
	rx  [daq.RawFrameSize]byte
}

// New returns a device on bus. Call Init before use.
func New(bus Bus) *Device {
	return &Device{bus: bus}
}

func (d *Device) command(op byte) error {
	d.tx[0] = op
	return d.bus.Transfer(d.tx[:1], d.rx[:1])
}

// Init stops conversions and loads the power-on register set with all
// channels enabled at the fastest rate.
func (d *Device) Init() error {
	if err := d.command(CmdSDATAC); err != nil {
		return err
	}
	if err := d.command(CmdStop); err != nil {
		return err
	}
	writes := []struct{ reg, val uint8 }{
		{RegConfig1, Config1Base},
		{RegConfig2, Config2Init},
		{RegConfig3, Config3Init},
		{RegMisc1, Misc1Init},
	}
	for _, w := range writes {
		if err := d.WriteRegister(w.reg, w.val); err != nil {
			return err
		}
	}
	if err := d.setChannels(daq.MaxChannelMask); err != nil {
		return err
	}
	pkg.LogDebug(pkg.ComponentDAQ, "converter initialized")
	return nil
}

// Configure selects the data rate for rate and powers the channels in mask.
func (d *Device) Configure(rate float64, mask uint8) error {
	code := RateCode(rate)
	if err := d.WriteRegister(RegConfig1, Config1Base+(code&0x07)); err != nil {
		return err
	}
	return d.setChannels(mask)
}

func (d *Device) setChannels(mask uint8) error {
	for ch := uint8(0); ch < Channels; ch++ {
		val := uint8(ChannelOff)
		if mask&(1<<ch) != 0 {
			val = ChannelOn
		}
		if err := d.WriteRegister(RegCH1Set+ch, val); err != nil {
			return err
		}
	}
	return nil
}

// Enable starts or stops conversions.
func (d *Device) Enable(on bool) error {
	if on {
		return d.command(CmdStart)
	}
	return d.command(CmdStop)
}

// ReadFrame reads one conversion into raw, re-reading while the status
// marker is missing.
func (d *Device) ReadFrame(raw []byte) error {
	if len(raw) < daq.RawFrameSize {
		return pkg.ErrBufferTooSmall
	}
	clear(d.tx[:])
	d.tx[0] = CmdRDATA
	for attempt := 0; attempt <= ReadRetries; attempt++ {
		if err := d.bus.Transfer(d.tx[:], raw[:daq.RawFrameSize]); err != nil {
			return err
		}
		if raw[1]&0xF0 == StatusMarker {
			return nil
		}
	}
	return pkg.ErrFrameInvalid
}

// ReadRegister reads reg.
func (d *Device) ReadRegister(reg uint8) (uint8, error) {
	if reg > RegConfig4 {
		return 0, fmt.Errorf("%w: register %d", pkg.ErrInvalidParameter, reg)
	}
	d.tx[0], d.tx[1], d.tx[2] = CmdRREG+reg, 0, 0
	if err := d.bus.Transfer(d.tx[:3], d.rx[:3]); err != nil {
		return 0, err
	}
	return d.rx[2], nil
}

// WriteRegister writes reg and reads it back, retrying on mismatch.
func (d *Device) WriteRegister(reg, val uint8) error {
	if reg > RegConfig4 {
		return fmt.Errorf("%w: register %d", pkg.ErrInvalidParameter, reg)
	}
	for attempt := 0; attempt <= WriteRetries; attempt++ {
		d.tx[0], d.tx[1], d.tx[2] = CmdWREG+reg, 0, val
		if err := d.bus.Transfer(d.tx[:3], d.rx[:3]); err != nil {
			return err
		}
		got, err := d.ReadRegister(reg)
		if err != nil {
			return err
		}
		if got == val {
			return nil
		}
	}
	return fmt.Errorf("%w: register %d did not take 0x%02X", pkg.ErrProtocol, reg, val)
}

// Compile-time interface check
var _ daq.Converter = (*Device)(nil)
