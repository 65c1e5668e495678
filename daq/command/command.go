package command

import (
	"errors"
	"strconv"

	"github.com/ardnew/tmcdaq/daq"
	"github.com/ardnew/tmcdaq/device/class/tmc"
	"github.com/ardnew/tmcdaq/pkg"
	"github.com/ardnew/tmcdaq/pkg/metrics"
)

// Command names.
const (
	ReadRegister = "RREG"
	Add          = "ADD"
	Remove       = "RM"
	Stop         = "STOP"
	Start        = "START"
	Query        = "QRY"
	Reset        = "RST"
	Corrupt      = "CRPT"
)

// Response text.
const (
	RespAdded     = "ADDED"
	RespInvalid   = "INVALID"
	RespFull      = "FULL"
	RespRemoved   = "REMOVED"
	RespEmpty     = "EMPTY"
	RespStarted   = "STARTED"
	RespGoing     = "ALREADY GOING"
	RespStopped   = "STOPPED"
	RespNotExist  = "Does Not Exist"
	RespTrue      = "TRUE"
	RespFalse     = "FALSE"
	RespError     = "ERROR"
	respReset     = "RESET"
	unknownMetric = "unknown"
)

// Instrument is the acquisition engine as seen by the dispatcher.
type Instrument interface {
	Enqueue(count uint32, rate float64, mask uint8) error
	Remove() bool
	Query(i int) (daq.Request, bool)
	Start() (daq.State, error)
	Stop() daq.State
	ReadRegister(reg uint8) (uint8, error)
	Corruption() daq.Corruption
	Reset()
	Drain(dst []byte) int
	Clear()
}

// Dispatcher executes host command messages against an Instrument.
type Dispatcher struct {
	inst Instrument
	rec  metrics.Recorder
}

// New creates a dispatcher. A nil recorder disables metrics.
func New(inst Instrument, rec metrics.Recorder) *Dispatcher {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Dispatcher{inst: inst, rec: rec}
}

// Message executes one command line and returns its response text. RST
// returns no text and an error wrapping pkg.ErrReset.
func (d *Dispatcher) Message(msg []byte) ([]byte, error) {
	args, err := Tokenize(msg)
	if err != nil || len(args) == 0 {
		d.record(unknownMetric, RespError)
		pkg.LogDebug(pkg.ComponentCommand, "unparsable command",
			"message", string(msg),
			"error", err)
		return []byte(RespError), nil
	}

	name := args[0]
	var resp string
	switch name {
	case ReadRegister:
		resp = d.readRegister(args[1:])
	case Add:
		resp = d.add(args[1:])
	case Remove:
		resp = RespEmpty
		if d.inst.Remove() {
			resp = RespRemoved
		}
	case Stop:
		d.inst.Stop()
		resp = RespStopped
	case Start:
		resp = d.start()
	case Query:
		resp = d.query(args[1:])
	case Reset:
		d.inst.Reset()
		d.record(name, respReset)
		pkg.LogInfo(pkg.ComponentCommand, "reset requested")
		return nil, pkg.ErrReset
	case Corrupt:
		resp = RespFalse
		if d.inst.Corruption().Flagged {
			resp = RespTrue
		}
	default:
		d.record(unknownMetric, RespError)
		pkg.LogDebug(pkg.ComponentCommand, "unknown command", "name", name)
		return []byte(RespError), nil
	}

	d.record(name, resp)
	return []byte(resp), nil
}

// Reject answers a message that could not be received.
func (d *Dispatcher) Reject(err error) []byte {
	pkg.LogDebug(pkg.ComponentCommand, "message rejected", "error", err)
	d.record(unknownMetric, RespError)
	return []byte(RespError)
}

// Read drains buffered sample frames into dst.
func (d *Dispatcher) Read(dst []byte) int {
	return d.inst.Drain(dst)
}

// Clear discards buffered samples and the corruption record.
func (d *Dispatcher) Clear() {
	d.inst.Clear()
}

func (d *Dispatcher) record(name, result string) {
	d.rec.Command(name, result)
	pkg.LogDebug(pkg.ComponentCommand, "command",
		"name", name,
		"result", result)
}

func (d *Dispatcher) add(args []string) string {
	if len(args) != 3 {
		return RespError
	}
	count, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return RespInvalid
	}
	rate, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return RespInvalid
	}
	mask, err := strconv.ParseUint(args[2], 10, 8)
	if err != nil {
		return RespInvalid
	}

	switch err := d.inst.Enqueue(uint32(count), rate, uint8(mask)); {
	case err == nil:
		return RespAdded
	case errors.Is(err, pkg.ErrInvalidParameter):
		return RespInvalid
	case errors.Is(err, pkg.ErrQueueFull):
		return RespFull
	default:
		return RespError
	}
}

func (d *Dispatcher) start() string {
	state, err := d.inst.Start()
	switch {
	case errors.Is(err, pkg.ErrAlreadyRunning):
		return RespGoing
	case errors.Is(err, pkg.ErrQueueEmpty):
		return RespEmpty
	case err != nil:
		pkg.LogWarn(pkg.ComponentCommand, "start failed", "error", err)
		return RespError
	case state == daq.Running:
		return RespStarted
	}
	return RespError
}

func (d *Dispatcher) query(args []string) string {
	if len(args) != 1 {
		return RespError
	}
	i, err := strconv.ParseUint(args[0], 10, 31)
	if err != nil {
		return RespNotExist
	}
	req, ok := d.inst.Query(int(i))
	if !ok {
		return RespNotExist
	}
	return req.String()
}

func (d *Dispatcher) readRegister(args []string) string {
	if len(args) != 1 {
		return RespError
	}
	reg, err := strconv.ParseUint(args[0], 10, 8)
	if err != nil {
		return RespError
	}
	val, err := d.inst.ReadRegister(uint8(reg))
	if err != nil {
		pkg.LogDebug(pkg.ComponentCommand, "register read failed",
			"register", reg,
			"error", err)
		return RespError
	}
	return strconv.Itoa(int(val))
}

var _ tmc.Application = (*Dispatcher)(nil)
