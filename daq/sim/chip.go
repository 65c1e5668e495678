package sim

import (
	"sync"

	"github.com/ardnew/tmcdaq/daq"
	"github.com/ardnew/tmcdaq/daq/ads1299"
)

// ChipID is the value of the simulated ID register.
const ChipID = 0x3E

const registerCount = ads1299.RegConfig4 + 1

// Chip simulates an ads1299 converter on a bus.
//
// Enabled channels produce a 24-bit ramp that advances on every
// conversion; disabled channels read as zero.
type Chip struct {
	mutex sync.Mutex

	regs    [registerCount]uint8
	running bool
	counter uint32

	badReads  int // conversions to corrupt before a good one
	stuckRegs map[uint8]bool
}

// NewChip returns a chip in its power-on state.
func NewChip() *Chip {
	c := &Chip{stuckRegs: make(map[uint8]bool)}
	c.regs[ads1299.RegID] = ChipID
	return c
}

// Running reports whether conversions are enabled.
func (c *Chip) Running() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.running
}

// Register returns a register without a bus transfer.
func (c *Chip) Register(reg uint8) uint8 {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if int(reg) >= len(c.regs) {
		return 0
	}
	return c.regs[reg]
}

// CorruptReads makes the next n conversions return a bad status byte.
func (c *Chip) CorruptReads(n int) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.badReads = n
}

// StickRegister makes writes to reg have no effect.
func (c *Chip) StickRegister(reg uint8) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.stuckRegs[reg] = true
}

// Transfer implements ads1299.Bus.
func (c *Chip) Transfer(tx, rx []byte) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	clear(rx)
	if len(tx) == 0 {
		return nil
	}

	op := tx[0]
	switch {
	case op == ads1299.CmdStart:
		c.running = true
	case op == ads1299.CmdStop:
		c.running = false
	case op == ads1299.CmdReset:
		c.regs = [registerCount]uint8{}
		c.regs[ads1299.RegID] = ChipID
		c.running = false
	case op == ads1299.CmdRDATA:
		c.convert(rx)
	case op >= ads1299.CmdRREG && op < ads1299.CmdRREG+registerCount:
		if len(rx) > 2 {
			rx[2] = c.regs[op-ads1299.CmdRREG]
		}
	case op >= ads1299.CmdWREG && op < ads1299.CmdWREG+registerCount:
		reg := op - ads1299.CmdWREG
		if reg != ads1299.RegID && len(tx) > 2 && !c.stuckRegs[reg] {
			c.regs[reg] = tx[2]
		}
	}
	return nil
}

// convert fills rx with one raw conversion: command echo, 24-bit status,
// then three bytes per channel.
func (c *Chip) convert(rx []byte) {
	if len(rx) < daq.RawFrameSize {
		return
	}
	if c.badReads > 0 {
		c.badReads--
		return
	}

	c.counter++
	rx[1] = ads1299.StatusMarker
	for ch := 0; ch < ads1299.Channels; ch++ {
		if c.regs[ads1299.RegCH1Set+ch] == ads1299.ChannelOff {
			continue
		}
		v := (c.counter + uint32(ch)<<16) & 0xFFFFFF
		off := daq.FrameOffset + 3*ch
		rx[off] = byte(v >> 16)
		rx[off+1] = byte(v >> 8)
		rx[off+2] = byte(v)
	}
}
