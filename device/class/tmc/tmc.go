package tmc

import (
	"context"
	"errors"
	"sync"

	"github.com/ardnew/tmcdaq/daq"
	"github.com/ardnew/tmcdaq/device"
	"github.com/ardnew/tmcdaq/pkg"
	"github.com/ardnew/tmcdaq/pkg/metrics"
)

// Application is the instrument behind the USBTMC interface.
type Application interface {
	// Message handles one complete command message and returns the
	// response text, which may be empty. An error wrapping pkg.ErrReset
	// tells the driver to drop its own transfer state too.
	Message(msg []byte) ([]byte, error)
	// Reject returns the response text for a message that was not
	// received intact.
	Reject(err error) []byte
	// Read moves buffered sample data into dst.
	Read(dst []byte) int
	// Clear discards buffered sample data.
	Clear()
}

// Options configures a TMC driver. Zero values select the defaults.
type Options struct {
	DataBufferSize   int
	ResponseCapacity int
	MessageCapacity  int
	// FrameSize is the smallest transfer size a Bulk-IN request may ask for.
	FrameSize int

	// IndicatorPulse identifies the device. A nil function reports
	// INDICATOR_PULSE as unsupported.
	IndicatorPulse func()
	TalkOnly       bool
	ListenOnly     bool

	Recorder metrics.Recorder
}

// transfer tracks the active Bulk-IN request. Tag 0 is never valid on the
// wire and marks no active transfer.
type transfer struct {
	tag         uint8
	remaining   uint32
	transferred uint32
}

const noTag = 0

// TMC implements the USBTMC class for a data-acquisition instrument.
type TMC struct {
	app  Application
	opts Options
	rec  metrics.Recorder

	// Interface and endpoints
	iface     *device.Interface
	bulkInEP  *device.Endpoint
	bulkOutEP *device.Endpoint

	stack *device.Stack

	mutex      sync.Mutex
	configured bool
	enabled    bool // Bulk-IN session active

	xfer transfer

	// Pending command response, a window into respBuf
	response []byte
	respBuf  []byte

	// Command text received so far
	message  []byte
	overflow bool
	skip     uint32 // bytes of an oversize transfer still to discard
	eomAfter bool   // the oversize transfer carried EOM

	// Buffers, owned by the Run goroutine
	command []byte
	outBuf  []byte
	inBuf  []byte
}

// New creates a USBTMC driver for app.
func New(app Application, opts Options) *TMC {
	if opts.DataBufferSize <= 0 {
		opts.DataBufferSize = DefaultDataBufferSize
	}
	if opts.ResponseCapacity <= 0 {
		opts.ResponseCapacity = DefaultResponseCapacity
	}
	if opts.MessageCapacity <= 0 {
		opts.MessageCapacity = DefaultMessageCapacity
	}
	if opts.FrameSize <= 0 {
		opts.FrameSize = daq.FrameSize
	}
	if opts.Recorder == nil {
		opts.Recorder = metrics.Nop{}
	}
	return &TMC{
		app:     app,
		opts:    opts,
		rec:     opts.Recorder,
		respBuf: make([]byte, 0, opts.ResponseCapacity),
		message: make([]byte, 0, opts.MessageCapacity),
		command: make([]byte, 0, opts.MessageCapacity),
		// header, message and up to 3 alignment bytes
		outBuf: make([]byte, HeaderSize+opts.MessageCapacity+3),
		// header, data and the short-packet pad byte
		inBuf: make([]byte, HeaderSize+opts.DataBufferSize+1),
	}
}

// NewInterface returns a USBTMC interface with one bulk endpoint pair.
func NewInterface(number, bulkIn, bulkOut uint8, maxPacketSize uint16) (*device.Interface, error) {
	iface := device.NewInterface(number, ClassTMC, SubclassTMC, ProtocolTMC)
	iface.Name = "USBTMC"
	if err := iface.AddEndpoint(device.NewEndpoint(bulkIn|device.EndpointDirectionIn, device.EndpointTypeBulk, maxPacketSize)); err != nil {
		return nil, err
	}
	if err := iface.AddEndpoint(device.NewEndpoint(bulkOut&0x0F, device.EndpointTypeBulk, maxPacketSize)); err != nil {
		return nil, err
	}
	return iface, nil
}

// SetStack sets the device stack used for bulk transfers.
func (t *TMC) SetStack(stack *device.Stack) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.stack = stack
}

// Init binds the driver to the interface's bulk endpoints.
func (t *TMC) Init(iface *device.Interface) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	t.iface = iface
	t.bulkInEP = iface.FindEndpoint(device.EndpointTypeBulk, device.EndpointDirectionIn)
	t.bulkOutEP = iface.FindEndpoint(device.EndpointTypeBulk, device.EndpointDirectionOut)
	if t.bulkInEP == nil || t.bulkOutEP == nil {
		return pkg.ErrInvalidEndpoint
	}

	t.configured = true
	pkg.LogDebug(pkg.ComponentTMC, "USBTMC configured",
		"interface", iface.Number,
		"bulkIn", t.bulkInEP.Address,
		"bulkOut", t.bulkOutEP.Address)
	return nil
}

// Enable starts a Bulk-IN session. It is called when the host enables
// the interface.
func (t *TMC) Enable() {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.enabled = true
	pkg.LogDebug(pkg.ComponentTMC, "interface enabled")
}

// Disable aborts the active transfer and ends the Bulk-IN session.
func (t *TMC) Disable() {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.abortTransfer()
	t.resetMessage()
	pkg.LogDebug(pkg.ComponentTMC, "interface disabled")
}

// SetAlternate handles alternate setting changes.
func (t *TMC) SetAlternate(iface *device.Interface, alt uint8) error {
	pkg.LogDebug(pkg.ComponentTMC, "alternate setting",
		"interface", iface.Number,
		"alt", alt)
	return nil
}

// HaltCleared drops state tied to a bulk endpoint the host un-halted.
func (t *TMC) HaltCleared(iface *device.Interface, ep *device.Endpoint) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	switch ep {
	case t.bulkOutEP:
		t.resetMessage()
	case t.bulkInEP:
		t.xfer = transfer{}
	}
}

// Close releases the interface.
func (t *TMC) Close() error {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	t.iface = nil
	t.bulkInEP = nil
	t.bulkOutEP = nil
	t.stack = nil
	t.configured = false
	t.enabled = false
	return nil
}

// abortTransfer clears the tracker and ends the session.
func (t *TMC) abortTransfer() {
	t.xfer = transfer{}
	t.enabled = false
}

func (t *TMC) resetMessage() {
	t.message = t.message[:0]
	t.overflow = false
	t.skip = 0
	t.eomAfter = false
}

// reset drops every piece of per-host state.
func (t *TMC) reset() {
	t.xfer = transfer{}
	t.response = nil
	t.resetMessage()
}

// Run serves Bulk-OUT messages until ctx is done. Call it after the stack
// has started.
func (t *TMC) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := t.serve(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, pkg.ErrNotConfigured) || errors.Is(err, pkg.ErrNotRunning) {
				return err
			}
			pkg.LogWarn(pkg.ComponentTMC, "bulk transfer error", "error", err)
		}
	}
}

// serve reads one Bulk-OUT transfer and acts on it.
func (t *TMC) serve(ctx context.Context) error {
	t.mutex.Lock()
	stack, in, out, configured := t.stack, t.bulkInEP, t.bulkOutEP, t.configured
	t.mutex.Unlock()

	if !configured || stack == nil {
		return pkg.ErrNotConfigured
	}

	n, err := stack.Read(ctx, out, t.outBuf)
	if err != nil {
		return err
	}
	data := t.outBuf[:n]

	if t.discard(data) {
		return nil
	}

	msg, err := Decode(data)
	if err != nil {
		return t.protocolError(stack, out, err)
	}

	switch m := msg.(type) {
	case *DevDepMsgOut:
		t.receive(m)
		return nil

	case *RequestDevDepMsgIn:
		if m.TermCharEnabled {
			return t.protocolError(stack, out, pkg.ErrTermCharUnsupported)
		}
		length, err := t.prepare(m, t.packetSize(stack, in))
		if err != nil {
			return t.protocolError(stack, out, err)
		}
		if _, err := stack.Write(ctx, in, t.inBuf[:length]); err != nil {
			return err
		}
	}
	return nil
}

// protocolError halts Bulk-OUT to signal a malformed or unserviceable
// request to the host.
func (t *TMC) protocolError(stack *device.Stack, out *device.Endpoint, err error) error {
	t.rec.ProtocolError(reason(err))
	pkg.LogWarn(pkg.ComponentTMC, "halting bulk-out", "error", err)
	if serr := stack.Stall(out); serr != nil {
		return errors.Join(err, serr)
	}
	return nil
}

func reason(err error) string {
	switch {
	case errors.Is(err, pkg.ErrHeaderTooShort):
		return "short_header"
	case errors.Is(err, pkg.ErrBadTag):
		return "bad_tag"
	case errors.Is(err, pkg.ErrUnknownMessage):
		return "unknown_msgid"
	case errors.Is(err, pkg.ErrTransferTooSmall):
		return "transfer_too_small"
	case errors.Is(err, pkg.ErrTransferComplete):
		return "transfer_complete"
	case errors.Is(err, pkg.ErrTermCharUnsupported):
		return "termchar"
	default:
		return "other"
	}
}

// packetSize returns the Bulk-IN max packet size at the current speed.
func (t *TMC) packetSize(stack *device.Stack, in *device.Endpoint) int {
	mps := stack.Speed().MaxBulkPacketSize()
	if in.MaxPacketSize != 0 && in.MaxPacketSize < mps {
		mps = in.MaxPacketSize
	}
	return int(mps)
}

// Compile-time interface checks
var (
	_ device.ClassDriver = (*TMC)(nil)
	_ device.HaltHandler = (*TMC)(nil)
)
