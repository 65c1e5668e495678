package sim

import (
	"context"
	"sync"
	"time"

	"github.com/ardnew/tmcdaq/daq"
	"github.com/ardnew/tmcdaq/pkg"
)

// Sink receives the sampling interrupts.
type Sink interface {
	TimerElapsed()
	DataReady()
}

// Board couples a Chip with a compare-match timer. It implements
// daq.Timer; Run delivers the interrupts.
type Board struct {
	Chip *Chip

	clockHz float64

	mutex   sync.Mutex
	armed   bool
	period  time.Duration
	changed chan struct{}
}

// NewBoard returns a board with a fresh chip and a timer fed by clockHz.
func NewBoard(clockHz float64) *Board {
	if clockHz <= 0 {
		clockHz = daq.DefaultClockHz
	}
	return &Board{
		Chip:    NewChip(),
		clockHz: clockHz,
		changed: make(chan struct{}),
	}
}

// Configure arms the timer. The period is prescaler*compare clock cycles.
func (b *Board) Configure(prescaler, compare uint32) error {
	if prescaler == 0 || compare == 0 {
		return pkg.ErrInvalidParameter
	}
	period := time.Duration(float64(time.Second) * float64(prescaler) * float64(compare) / b.clockHz)

	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.armed = true
	b.period = period
	b.notify()
	return nil
}

// Disable stops the timer.
func (b *Board) Disable() error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.armed = false
	b.notify()
	return nil
}

func (b *Board) notify() {
	close(b.changed)
	b.changed = make(chan struct{})
}

// Period returns the armed timer period, or zero when disarmed.
func (b *Board) Period() time.Duration {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if !b.armed {
		return 0
	}
	return b.period
}

// Tick delivers one timer period: a data-ready when the chip is
// converting, then the timer interrupt.
func (b *Board) Tick(sink Sink) {
	if b.Chip.Running() {
		sink.DataReady()
	}
	sink.TimerElapsed()
}

// Run ticks sink at the armed period until ctx is done.
func (b *Board) Run(ctx context.Context, sink Sink) error {
	pkg.LogDebug(pkg.ComponentDAQ, "simulated board running", "clockHz", b.clockHz)
	for {
		b.mutex.Lock()
		armed, period, changed := b.armed, b.period, b.changed
		b.mutex.Unlock()

		if !armed {
			select {
			case <-ctx.Done():
				return nil
			case <-changed:
				continue
			}
		}

		t := time.NewTimer(period)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-changed:
			t.Stop()
			continue
		case <-t.C:
		}
		b.Tick(sink)
	}
}

// Compile-time interface check
var _ daq.Timer = (*Board)(nil)
