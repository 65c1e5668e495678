//go:build linux

package functionfs

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/ardnew/tmcdaq/device"
	"github.com/ardnew/tmcdaq/device/hal"
	"github.com/ardnew/tmcdaq/pkg"
)

// clearHaltIoctl is FUNCTIONFS_CLEAR_HALT, _IO('g', 3).
const clearHaltIoctl = 0x6703

// Options configures a FunctionFS HAL.
type Options struct {
	// Dir is the FunctionFS mount point.
	Dir string
	// Interface supplies the descriptors written to ep0.
	Interface *device.Interface
	// HighSpeed adds a high-speed descriptor block.
	HighSpeed bool
}

// HAL implements hal.DeviceHAL over a mounted FunctionFS instance.
type HAL struct {
	opts Options

	mutex     sync.Mutex
	ep0       *os.File
	configs   []hal.EndpointConfig
	files     map[uint8]*os.File
	connected bool
	changed   chan struct{}
	speed     hal.Speed

	setups  chan hal.SetupPacket
	resets  chan struct{}
	done    chan struct{} // signals the event loop that EP0 is idle
	current hal.SetupPacket
	active  bool

	closeCh   chan struct{}
	closeOnce sync.Once
	loop      sync.WaitGroup
}

// New creates a FunctionFS HAL.
func New(opts Options) *HAL {
	speed := hal.SpeedFull
	if opts.HighSpeed {
		speed = hal.SpeedHigh
	}
	return &HAL{
		opts:    opts,
		files:   make(map[uint8]*os.File),
		changed: make(chan struct{}),
		speed:   speed,
		setups:  make(chan hal.SetupPacket),
		resets:  make(chan struct{}, 1),
		done:    make(chan struct{}, 1),
		closeCh: make(chan struct{}),
	}
}

// ConfigureEndpoints records the endpoint order. FunctionFS numbers the
// endpoint files in descriptor order, which matches the interface.
func (h *HAL) ConfigureEndpoints(endpoints []hal.EndpointConfig) error {
	if err := hal.CheckEndpoints(endpoints); err != nil {
		return err
	}
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.configs = append([]hal.EndpointConfig{}, endpoints...)
	return nil
}

// Init opens ep0 and writes the descriptors and strings.
func (h *HAL) Init(ctx context.Context) error {
	if h.opts.Interface == nil {
		return pkg.ErrNotConfigured
	}
	if h.opts.Interface.Name != "" {
		h.opts.Interface.StringIndex = 1
	}

	descs, err := BuildDescriptors(h.opts.Interface, h.opts.HighSpeed)
	if err != nil {
		return err
	}

	ep0, err := os.OpenFile(filepath.Join(h.opts.Dir, "ep0"), os.O_RDWR, 0)
	if err != nil {
		return err
	}
	if _, err := ep0.Write(descs); err != nil {
		ep0.Close()
		return err
	}
	if _, err := ep0.Write(BuildStrings(h.opts.Interface.Name)); err != nil {
		ep0.Close()
		return err
	}

	h.mutex.Lock()
	h.ep0 = ep0
	h.mutex.Unlock()

	pkg.LogInfo(pkg.ComponentHAL, "functionfs descriptors written",
		"dir", h.opts.Dir,
		"highSpeed", h.opts.HighSpeed)
	return nil
}

// Start opens the endpoint files and starts the ep0 event loop.
func (h *HAL) Start() error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.ep0 == nil {
		return pkg.ErrNotConfigured
	}
	for i, cfg := range h.configs {
		flag := os.O_RDONLY
		if cfg.IsIn() {
			flag = os.O_WRONLY
		}
		f, err := os.OpenFile(filepath.Join(h.opts.Dir, endpointFile(i)), flag, 0)
		if err != nil {
			return err
		}
		h.files[cfg.Address] = f
	}

	h.loop.Add(1)
	go h.eventLoop()
	return nil
}

// Stop closes every file, which unblocks pending I/O.
func (h *HAL) Stop() error {
	h.closeOnce.Do(func() {
		close(h.closeCh)
	})

	h.mutex.Lock()
	var errs []error
	for addr, f := range h.files {
		errs = append(errs, f.Close())
		delete(h.files, addr)
	}
	if h.ep0 != nil {
		errs = append(errs, h.ep0.Close())
	}
	h.mutex.Unlock()

	h.loop.Wait()
	h.setConnected(false)
	return errors.Join(errs...)
}

// eventLoop reads events from ep0. After a SETUP event it waits until the
// stack completes the data and status stages before reading again.
func (h *HAL) eventLoop() {
	defer h.loop.Done()

	var buf [EventSize]byte
	var ev Event
	for {
		if _, err := io.ReadFull(h.ep0, buf[:]); err != nil {
			select {
			case <-h.closeCh:
			default:
				pkg.LogError(pkg.ComponentHAL, "ep0 event read failed", "error", err)
			}
			return
		}
		if err := ParseEvent(buf[:], &ev); err != nil {
			continue
		}
		pkg.LogDebug(pkg.ComponentHAL, "functionfs event", "type", ev.Type.String())

		switch ev.Type {
		case EventEnable:
			h.setConnected(true)
		case EventDisable, EventUnbind:
			h.setConnected(false)
			select {
			case h.resets <- struct{}{}:
			default:
			}
		case EventSetup:
			select {
			case h.setups <- ev.Setup:
			case <-h.closeCh:
				return
			}
			select {
			case <-h.done:
			case <-h.closeCh:
				return
			}
		}
	}
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

// ReadSetup waits for the next SETUP event.
func (h *HAL) ReadSetup(ctx context.Context, out *hal.SetupPacket) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-h.closeCh:
		return pkg.ErrNotRunning
	case <-h.resets:
		return pkg.ErrReset
	case setup := <-h.setups:
		h.mutex.Lock()
		h.current = setup
		h.active = true
		h.mutex.Unlock()
		*out = setup
		return nil
	}
}

// complete releases the event loop.
func (h *HAL) complete() {
	h.mutex.Lock()
	h.active = false
	h.mutex.Unlock()
	select {
	case h.done <- struct{}{}:
	default:
	}
}

// WriteEP0 writes the IN data stage. The kernel completes the status stage.
func (h *HAL) WriteEP0(ctx context.Context, data []byte) error {
	defer h.complete()
	if len(data) == 0 {
		_, err := unix.Write(int(h.ep0.Fd()), nil)
		return err
	}
	_, err := h.ep0.Write(data)
	return err
}

// ReadEP0 reads the OUT data stage, which also acknowledges it.
func (h *HAL) ReadEP0(ctx context.Context, buf []byte) (int, error) {
	return h.ep0.Read(buf)
}

// StallEP0 halts the control endpoint by performing I/O in the direction
// opposite to the request.
func (h *HAL) StallEP0() error {
	h.mutex.Lock()
	setup, active := h.current, h.active
	h.mutex.Unlock()
	if !active {
		return pkg.ErrInvalidRequest
	}
	defer h.complete()

	fd := int(h.ep0.Fd())
	var err error
	if setup.RequestType&0x80 != 0 {
		_, err = unix.Read(fd, nil)
	} else {
		_, err = unix.Write(fd, nil)
	}
	if errors.Is(err, unix.EL2HLT) {
		return nil
	}
	return err
}

// AckEP0 completes an OUT request. Requests without a data stage are
// acknowledged with a zero-length read.
func (h *HAL) AckEP0() error {
	h.mutex.Lock()
	setup := h.current
	h.mutex.Unlock()
	defer h.complete()

	if setup.Length == 0 {
		_, err := unix.Read(int(h.ep0.Fd()), nil)
		return err
	}
	return nil
}

func (h *HAL) file(address uint8) (*os.File, error) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	f, ok := h.files[address]
	if !ok {
		return nil, pkg.ErrInvalidEndpoint
	}
	return f, nil
}

// Read reads one OUT transfer.
func (h *HAL) Read(ctx context.Context, address uint8, buf []byte) (int, error) {
	f, err := h.file(address)
	if err != nil {
		return 0, err
	}
	n, err := f.Read(buf)
	return n, translate(err)
}

// Write sends one IN transfer.
func (h *HAL) Write(ctx context.Context, address uint8, data []byte) (int, error) {
	f, err := h.file(address)
	if err != nil {
		return 0, err
	}
	n, err := f.Write(data)
	return n, translate(err)
}

// Stall halts a data endpoint with I/O in the wrong direction.
func (h *HAL) Stall(address uint8) error {
	f, err := h.file(address)
	if err != nil {
		return err
	}
	fd := int(f.Fd())
	if address&0x80 != 0 {
		_, err = unix.Read(fd, nil)
	} else {
		_, err = unix.Write(fd, nil)
	}
	if errors.Is(err, unix.EL2HLT) || errors.Is(err, unix.EBADMSG) {
		return nil
	}
	return err
}

// ClearStall issues FUNCTIONFS_CLEAR_HALT on the endpoint file.
func (h *HAL) ClearStall(address uint8) error {
	f, err := h.file(address)
	if err != nil {
		return err
	}
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), clearHaltIoctl, 0)
	if errno != 0 {
		return errno
	}
	return nil
}

// translate maps endpoint I/O errors to package errors.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, unix.ESHUTDOWN), errors.Is(err, os.ErrClosed):
		return pkg.ErrDisconnected
	case errors.Is(err, unix.EL2HLT), errors.Is(err, unix.EBADMSG):
		return pkg.ErrStall
	}
	return err
}

// IsConnected reports whether the function is enabled.
func (h *HAL) IsConnected() bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.connected
}

// GetSpeed returns the highest speed described.
func (h *HAL) GetSpeed() hal.Speed {
	return h.speed
}

// WaitConnect blocks until the function is enabled.
func (h *HAL) WaitConnect(ctx context.Context) error {
	return h.waitState(ctx, true)
}

// WaitDisconnect blocks until the function is disabled.
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
