package daq

import (
	"sync"

	"github.com/ardnew/tmcdaq/pkg"
	"github.com/ardnew/tmcdaq/pkg/metrics"
)

// Converter is the analog front end.
type Converter interface {
	// Configure selects the output data rate and enabled channels.
	Configure(rate float64, mask uint8) error
	// Enable starts or stops conversions and the data-ready signal.
	Enable(on bool) error
	// ReadFrame reads one raw conversion of RawFrameSize bytes.
	ReadFrame(raw []byte) error
	// ReadRegister returns a configuration register.
	ReadRegister(reg uint8) (uint8, error)
}

// Timer produces the sampling period.
type Timer interface {
	// Configure arms the timer with a clock divider and compare value.
	Configure(prescaler, compare uint32) error
	// Disable stops the timer.
	Disable() error
}

// State is the sampling state.
type State uint8

const (
	Stopped State = iota
	Running
)

// String returns the state name.
func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "stopped"
}

// Options configures an Engine. Zero values select the defaults.
type Options struct {
	ClockHz      float64
	MaxRate      float64
	RingCapacity int
	QueueDepth   int
	Recorder     metrics.Recorder
}

// Status is a point-in-time view of the engine.
type Status struct {
	State        string `json:"state"`
	Jobs         int    `json:"jobs"`
	Buffered     int    `json:"buffered"`
	Corrupt      bool   `json:"corrupt"`
	DroppedBytes uint64 `json:"dropped_bytes"`
}

// Engine runs the job queue against the converter and timer.
//
// Every method takes the engine lock, which stands in for masking the
// sampling interrupts: the queue and ring are never observed mid-update.
type Engine struct {
	mutex sync.Mutex

	conv  Converter
	timer Timer
	rec   metrics.Recorder

	clockHz float64
	minRate float64
	maxRate float64

	queue *Queue
	ring  *Ring
	state State

	// Set by the interrupt entry points since the last serviced sample.
	timerDone bool
	dataReady bool

	raw   [RawFrameSize]byte
	latch [FrameSize]byte
}

// NewEngine creates a stopped engine.
func NewEngine(conv Converter, timer Timer, opts Options) *Engine {
	if opts.ClockHz <= 0 {
		opts.ClockHz = DefaultClockHz
	}
	if opts.MaxRate <= 0 {
		opts.MaxRate = DefaultMaxRate
	}
	if opts.Recorder == nil {
		opts.Recorder = metrics.Nop{}
	}
	return &Engine{
		conv:    conv,
		timer:   timer,
		rec:     opts.Recorder,
		clockHz: opts.ClockHz,
		minRate: MinRate(opts.ClockHz),
		maxRate: opts.MaxRate,
		queue:   NewQueue(opts.QueueDepth),
		ring:    NewRing(opts.RingCapacity, FrameSize),
	}
}

// RateBounds returns the exclusive sample rate bounds.
func (e *Engine) RateBounds() (lo, hi float64) {
	return e.minRate, e.maxRate
}

// Enqueue validates and appends a job. Invalid parameters return an error
// wrapping pkg.ErrInvalidParameter; a full queue returns pkg.ErrQueueFull.
func (e *Engine) Enqueue(count uint32, rate float64, mask uint8) error {
	req := Request{Count: count, Rate: rate, Mask: mask}
	if err := req.Validate(e.minRate, e.maxRate); err != nil {
		return err
	}

	e.mutex.Lock()
	defer e.mutex.Unlock()
	if err := e.queue.Enqueue(req); err != nil {
		return err
	}
	pkg.LogDebug(pkg.ComponentDAQ, "job queued",
		"count", count,
		"rate", rate,
		"mask", mask,
		"depth", e.queue.Len())
	return nil
}

// Remove drops the current job and reports whether another job remains.
// While running, the next job takes over the hardware, or sampling stops
// when none is left.
func (e *Engine) Remove() bool {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	more := e.queue.DequeueHead()
	if e.state == Running {
		if more {
			e.advance()
		} else {
			e.stop()
		}
	}
	return more
}

// Query returns the job at position i, counting from the current job.
func (e *Engine) Query(i int) (Request, bool) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return e.queue.At(i)
}

// Jobs returns the number of queued jobs.
func (e *Engine) Jobs() int {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return e.queue.Len()
}

// State returns the sampling state.
func (e *Engine) State() State {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return e.state
}

// Start arms the hardware for the current job and discards buffered
// samples. It returns pkg.ErrAlreadyRunning while running and
// pkg.ErrQueueEmpty when no job is queued.
func (e *Engine) Start() (State, error) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	if e.state == Running {
		return Running, pkg.ErrAlreadyRunning
	}
	head, ok := e.queue.Head()
	if !ok {
		return Stopped, pkg.ErrQueueEmpty
	}

	e.ring.Discard()
	e.timerDone, e.dataReady = false, false
	if err := e.arm(head); err != nil {
		e.disarm()
		return Stopped, err
	}
	e.state = Running
	e.rec.SamplingState(true)
	e.rec.RingFill(0)

	pkg.LogInfo(pkg.ComponentDAQ, "sampling started",
		"rate", head.Rate,
		"mask", head.Mask,
		"count", head.Count)
	return Running, nil
}

// Stop disables the timer and converter. Stopping a stopped engine has no
// effect.
func (e *Engine) Stop() State {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.stop()
	return Stopped
}

// arm programs the converter and timer for req and enables conversions.
func (e *Engine) arm(req Request) error {
	if err := e.conv.Configure(req.Rate, req.Mask); err != nil {
		return err
	}
	p := PrescalerFor(e.clockHz, req.Rate)
	if err := e.timer.Configure(p, CompareFor(e.clockHz, p, req.Rate)); err != nil {
		return err
	}
	return e.conv.Enable(true)
}

func (e *Engine) disarm() {
	if err := e.conv.Enable(false); err != nil {
		pkg.LogWarn(pkg.ComponentDAQ, "converter disable failed", "error", err)
	}
	if err := e.timer.Disable(); err != nil {
		pkg.LogWarn(pkg.ComponentDAQ, "timer disable failed", "error", err)
	}
}

func (e *Engine) stop() {
	if e.state != Running {
		return
	}
	e.disarm()
	e.state = Stopped
	e.timerDone, e.dataReady = false, false
	e.rec.SamplingState(false)
	pkg.LogInfo(pkg.ComponentDAQ, "sampling stopped")
}

// advance reconfigures the hardware for the new current job.
func (e *Engine) advance() {
	head, _ := e.queue.Head()
	e.timerDone, e.dataReady = false, false
	if err := e.arm(head); err != nil {
		pkg.LogError(pkg.ComponentDAQ, "reconfigure failed", "error", err)
		e.stop()
		return
	}
	pkg.LogDebug(pkg.ComponentDAQ, "next job",
		"rate", head.Rate,
		"mask", head.Mask,
		"count", head.Count)
}

// TimerElapsed is the timer compare-match entry point.
func (e *Engine) TimerElapsed() {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	if e.state != Running {
		return
	}
	e.timerDone = true
	if e.dataReady {
		e.service()
	}
}

// DataReady is the converter data-ready entry point. It latches one frame.
func (e *Engine) DataReady() {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	if e.state != Running {
		return
	}
	if err := e.conv.ReadFrame(e.raw[:]); err != nil {
		pkg.LogDebug(pkg.ComponentDAQ, "frame read failed", "error", err)
		return
	}
	copy(e.latch[:], e.raw[FrameOffset:])
	e.dataReady = true
	if e.timerDone {
		e.service()
	}
}

// service stores the latched frame and advances the current job.
func (e *Engine) service() {
	e.timerDone, e.dataReady = false, false

	if e.queue.Len() == 0 {
		e.stop()
		return
	}

	if e.ring.Append(e.latch[:]) {
		e.rec.SamplesAcquired(1)
	} else {
		e.rec.BytesDropped(FrameSize)
	}
	e.rec.RingFill(e.ring.Len())

	switch e.queue.DecrementCurrent() {
	case JobDone:
		e.rec.JobCompleted()
		e.advance()
	case NoJob:
		e.rec.JobCompleted()
		e.stop()
	}
}

// Drain moves buffered frames into dst. See Ring.Drain.
func (e *Engine) Drain(dst []byte) int {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	n := e.ring.Drain(dst)
	if n > 0 {
		e.rec.RingFill(0)
	}
	return n
}

// Buffered returns the number of bytes waiting in the ring.
func (e *Engine) Buffered() int {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return e.ring.Len()
}

// Corruption returns the overflow record.
func (e *Engine) Corruption() Corruption {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return e.ring.Corruption()
}

// Clear empties the ring and resets the overflow record.
func (e *Engine) Clear() {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.ring.Clear()
	e.rec.RingFill(0)
}

// Reset stops sampling, drops every job and clears the ring.
func (e *Engine) Reset() {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.stop()
	e.queue.Clear()
	e.ring.Clear()
	e.rec.RingFill(0)
	pkg.LogInfo(pkg.ComponentDAQ, "engine reset")
}

// ReadRegister reads a converter register. The converter bus is shared
// with sampling, so the read runs under the engine lock.
func (e *Engine) ReadRegister(reg uint8) (uint8, error) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return e.conv.ReadRegister(reg)
}

// Status returns a snapshot for diagnostics.
func (e *Engine) Status() Status {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	c := e.ring.Corruption()
	return Status{
		State:        e.state.String(),
		Jobs:         e.queue.Len(),
		Buffered:     e.ring.Len(),
		Corrupt:      c.Flagged,
		DroppedBytes: c.DroppedBytes,
	}
}
