package loopback

import (
	"context"
	"sync"

	"github.com/ardnew/tmcdaq/device/hal"
	"github.com/ardnew/tmcdaq/pkg"
)

// MaxEndpoints is the number of endpoint slots (0x00-0x0F OUT, 0x80-0x8F IN).
const MaxEndpoints = 32

// QueueDepth is the number of bulk transfers an endpoint buffers.
const QueueDepth = 4

// endpointIndex converts an endpoint address to an array index.
func endpointIndex(addr uint8) int {
	if addr&0x80 != 0 {
		return int(addr&0x0F) + 16
	}
	return int(addr & 0x0F)
}

// controlResult completes one host control transfer.
type controlResult struct {
	data []byte
	err  error
}

// controlRequest is a SETUP packet with its OUT data stage.
type controlRequest struct {
	setup hal.SetupPacket
	data  []byte
	reply chan controlResult
}

type endpoint struct {
	config  hal.EndpointConfig
	data    chan []byte
	pending []byte // unread remainder of an OUT transfer
	stalled bool
	halt    chan struct{} // closed while stalled
}

// HAL implements hal.DeviceHAL in memory.
type HAL struct {
	mutex sync.Mutex

	speed     hal.Speed
	initDone  bool
	connected bool
	changed   chan struct{} // closed and replaced on every connection change

	endpoints [MaxEndpoints]*endpoint

	setups  chan controlRequest
	resets  chan struct{}
	current *controlRequest

	closeCh   chan struct{}
	closeOnce sync.Once

	host Host
}

// New creates a loopback HAL that reports the given speed.
func New(speed hal.Speed) *HAL {
	h := &HAL{
		speed:   speed,
		changed: make(chan struct{}),
		setups:  make(chan controlRequest),
		resets:  make(chan struct{}, 1),
		closeCh: make(chan struct{}),
	}
	h.host.hal = h
	return h
}

// Host returns the host side of the loopback bus.
func (h *HAL) Host() *Host {
	return &h.host
}

// Init marks the HAL ready.
func (h *HAL) Init(ctx context.Context) error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.initDone {
		return pkg.ErrAlreadyRunning
	}
	h.initDone = true
	pkg.LogDebug(pkg.ComponentHAL, "loopback HAL initialized")
	return nil
}

// Start attaches the device to the loopback bus.
func (h *HAL) Start() error {
	h.mutex.Lock()
	if !h.initDone {
		h.mutex.Unlock()
		return pkg.ErrNotConfigured
	}
	h.mutex.Unlock()

	h.setConnected(true)
	pkg.LogInfo(pkg.ComponentHAL, "loopback HAL started", "speed", h.speed.String())
	return nil
}

// Stop detaches from the bus and fails every blocked operation.
func (h *HAL) Stop() error {
	h.setConnected(false)
	h.closeOnce.Do(func() {
		close(h.closeCh)
	})
	pkg.LogInfo(pkg.ComponentHAL, "loopback HAL stopped")
	return nil
}

// ConfigureEndpoints creates the endpoint queues.
func (h *HAL) ConfigureEndpoints(endpoints []hal.EndpointConfig) error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if err := hal.CheckEndpoints(endpoints); err != nil {
		return err
	}
	for i := range h.endpoints {
		h.endpoints[i] = nil
	}
	for _, cfg := range endpoints {
		h.endpoints[endpointIndex(cfg.Address)] = &endpoint{
			config: cfg,
			data:   make(chan []byte, QueueDepth),
			halt:   make(chan struct{}),
		}
	}

	pkg.LogDebug(pkg.ComponentHAL, "endpoints configured", "count", len(endpoints))
	return nil
}

func (h *HAL) endpoint(address uint8) (*endpoint, error) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	ep := h.endpoints[endpointIndex(address)]
	if ep == nil || ep.config.Address != address {
		return nil, pkg.ErrInvalidEndpoint
	}
	return ep, nil
}

func (h *HAL) setConnected(connected bool) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if h.connected == connected {
		return
	}
	h.connected = connected
	close(h.changed)
	h.changed = make(chan struct{})
}

// ReadSetup blocks until the host issues a control transfer. A pending
// bus reset is reported as pkg.ErrReset.
func (h *HAL) ReadSetup(ctx context.Context, out *hal.SetupPacket) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-h.closeCh:
		return pkg.ErrNotRunning
	case <-h.resets:
		return pkg.ErrReset
	case req := <-h.setups:
		h.mutex.Lock()
		h.current = &req
		h.mutex.Unlock()
		*out = req.setup
		return nil
	}
}

// finish completes the current control transfer.
func (h *HAL) finish(res controlResult) error {
	h.mutex.Lock()
	req := h.current
	h.current = nil
	h.mutex.Unlock()

	if req == nil {
		return pkg.ErrInvalidRequest
	}
	req.reply <- res
	return nil
}

// WriteEP0 sends the IN data stage and completes the transfer.
func (h *HAL) WriteEP0(ctx context.Context, data []byte) error {
	return h.finish(controlResult{data: append([]byte{}, data...)})
}

// ReadEP0 copies the OUT data stage of the current transfer into buf.
func (h *HAL) ReadEP0(ctx context.Context, buf []byte) (int, error) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if h.current == nil {
		return 0, pkg.ErrInvalidRequest
	}
	return copy(buf, h.current.data), nil
}

// StallEP0 fails the current control transfer with pkg.ErrStall.
func (h *HAL) StallEP0() error {
	return h.finish(controlResult{err: pkg.ErrStall})
}

// AckEP0 completes the status stage of an OUT control transfer.
func (h *HAL) AckEP0() error {
	return h.finish(controlResult{})
}

// Read returns the next OUT transfer on address, up to len(buf) bytes.
// Bytes that do not fit are returned by the next Read.
func (h *HAL) Read(ctx context.Context, address uint8, buf []byte) (int, error) {
	ep, err := h.endpoint(address)
	if err != nil {
		return 0, err
	}

	h.mutex.Lock()
	if len(ep.pending) > 0 {
		n := copy(buf, ep.pending)
		ep.pending = ep.pending[n:]
		h.mutex.Unlock()
		return n, nil
	}
	h.mutex.Unlock()

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-h.closeCh:
		return 0, pkg.ErrNotRunning
	case data := <-ep.data:
		n := copy(buf, data)
		if n < len(data) {
			h.mutex.Lock()
			ep.pending = data[n:]
			h.mutex.Unlock()
		}
		return n, nil
	}
}

// Write queues one IN transfer on address for the host to collect.
func (h *HAL) Write(ctx context.Context, address uint8, data []byte) (int, error) {
	ep, err := h.endpoint(address)
	if err != nil {
		return 0, err
	}

	packet := append([]byte{}, data...)
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-h.closeCh:
		return 0, pkg.ErrNotRunning
	case ep.data <- packet:
		return len(data), nil
	}
}

// Stall halts an endpoint. Queued IN data is discarded.
func (h *HAL) Stall(address uint8) error {
	ep, err := h.endpoint(address)
	if err != nil {
		return err
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()
	if ep.stalled {
		return nil
	}
	ep.stalled = true
	close(ep.halt)
	if ep.config.IsIn() {
		drain(ep.data)
	}
	pkg.LogDebug(pkg.ComponentHAL, "endpoint halted", "address", address)
	return nil
}

// ClearStall clears an endpoint halt.
func (h *HAL) ClearStall(address uint8) error {
	ep, err := h.endpoint(address)
	if err != nil {
		return err
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()
	if !ep.stalled {
		return nil
	}
	ep.stalled = false
	ep.halt = make(chan struct{})
	pkg.LogDebug(pkg.ComponentHAL, "endpoint halt cleared", "address", address)
	return nil
}

func drain(ch chan []byte) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}

// IsConnected returns true while the device is attached.
func (h *HAL) IsConnected() bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.connected
}

// GetSpeed returns the configured bus speed.
func (h *HAL) GetSpeed() hal.Speed {
	return h.speed
}

// WaitConnect blocks until the device is attached.
func (h *HAL) WaitConnect(ctx context.Context) error {
	return h.waitState(ctx, true)
}

// WaitDisconnect blocks until the device is detached.
func (h *HAL) WaitDisconnect(ctx context.Context) error {
	return h.waitState(ctx, false)
}

func (h *HAL) waitState(ctx context.Context, connected bool) error {
	for {
		h.mutex.Lock()
		if h.connected == connected {
			h.mutex.Unlock()
			return nil
		}
		changed := h.changed
		h.mutex.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
		}
	}
}

// Compile-time interface check
var _ hal.DeviceHAL = (*HAL)(nil)
