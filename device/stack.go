package device

import (
	"context"
	"errors"
	"sync"

	"github.com/ardnew/tmcdaq/device/hal"
	"github.com/ardnew/tmcdaq/pkg"
)

// Stack connects class drivers to a HAL. It answers the interface- and
// endpoint-level control requests the HAL forwards and gives drivers
// blocking access to their data endpoints.
type Stack struct {
	hal hal.DeviceHAL

	interfaces     [MaxInterfaces]*Interface
	interfaceCount int

	// State
	running bool
	mutex   sync.RWMutex
	loops   sync.WaitGroup

	// Context for cancellation
	ctx    context.Context
	cancel context.CancelFunc

	// Reusable setup packet for zero-allocation reads
	setupBuf hal.SetupPacket

	// EP0 buffer for control data stages in both directions
	ep0Buf [MaxControlDataSize]byte

	// Event callbacks
	onConnect    func()
	onDisconnect func()
}

// halSpeedToDeviceSpeed converts hal.Speed to device.Speed.
func halSpeedToDeviceSpeed(s hal.Speed) Speed {
	switch s {
	case hal.SpeedLow:
		return SpeedLow
	case hal.SpeedHigh:
		return SpeedHigh
	default:
		return SpeedFull
	}
}

// NewStack creates a new device stack on top of h.
func NewStack(h hal.DeviceHAL) *Stack {
	return &Stack{hal: h}
}

// AddInterface registers an interface with the stack. Interfaces must be
// added before Start.
func (s *Stack) AddInterface(iface *Interface) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.running {
		return pkg.ErrAlreadyRunning
	}
	if s.interfaceCount >= MaxInterfaces {
		return pkg.ErrNoMemory
	}
	for i := 0; i < s.interfaceCount; i++ {
		if s.interfaces[i].Number == iface.Number {
			return pkg.ErrBusy
		}
	}
	s.interfaces[s.interfaceCount] = iface
	s.interfaceCount++
	return nil
}

// Interface returns the registered interface with the given number.
func (s *Stack) Interface(number uint8) *Interface {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	for i := 0; i < s.interfaceCount; i++ {
		if s.interfaces[i].Number == number {
			return s.interfaces[i]
		}
	}
	return nil
}

// endpointOwner returns the interface owning the endpoint address.
func (s *Stack) endpointOwner(address uint8) (*Interface, *Endpoint) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	for i := 0; i < s.interfaceCount; i++ {
		if ep := s.interfaces[i].GetEndpoint(address); ep != nil {
			return s.interfaces[i], ep
		}
	}
	return nil, nil
}

// Start declares the endpoints to the HAL, attaches to the bus and starts
// the control and connection loops.
func (s *Stack) Start(ctx context.Context) error {
	s.mutex.Lock()
	if s.running {
		s.mutex.Unlock()
		return pkg.ErrAlreadyRunning
	}

	var configs [MaxInterfaces * MaxEndpointsPerInterface]hal.EndpointConfig
	n := 0
	for i := 0; i < s.interfaceCount; i++ {
		for _, ep := range s.interfaces[i].Endpoints() {
			configs[n] = hal.EndpointConfig{
				Address:       ep.Address,
				Attributes:    ep.Attributes,
				MaxPacketSize: ep.MaxPacketSize,
			}
			n++
		}
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mutex.Unlock()

	if err := s.hal.ConfigureEndpoints(configs[:n]); err != nil {
		return err
	}

	if err := s.hal.Init(s.ctx); err != nil {
		return err
	}

	if err := s.hal.Start(); err != nil {
		return err
	}

	s.loops.Add(2)
	s.mutex.Lock()
	s.running = true
	s.mutex.Unlock()

	pkg.LogDebug(pkg.ComponentStack, "device stack started",
		"endpoints", n)

	go s.controlLoop()
	go s.connectionLoop()

	return nil
}

// Stop detaches from the bus and waits for the stack loops to exit.
func (s *Stack) Stop() error {
	s.mutex.Lock()
	if !s.running {
		s.mutex.Unlock()
		return nil
	}

	s.running = false
	if s.cancel != nil {
		s.cancel()
	}
	s.mutex.Unlock()

	err := s.hal.Stop()
	s.loops.Wait()

	pkg.LogDebug(pkg.ComponentStack, "device stack stopped")
	return err
}

// IsRunning returns true if the stack is running.
func (s *Stack) IsRunning() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.running
}

// controlLoop handles control transfers on EP0.
func (s *Stack) controlLoop() {
	defer s.loops.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		if err := s.hal.ReadSetup(s.ctx, &s.setupBuf); err != nil {
			if s.ctx.Err() != nil {
				return
			}
			if errors.Is(err, pkg.ErrReset) {
				s.resetEndpoints()
				continue
			}
			if errors.Is(err, pkg.ErrNotRunning) {
				return
			}
			pkg.LogWarn(pkg.ComponentStack, "error reading setup",
				"error", err)
			continue
		}

		var setup SetupPacket
		setup.fromHAL(&s.setupBuf)

		if err := s.handleSetup(&setup); err != nil {
			pkg.LogDebug(pkg.ComponentStack, "stalling setup",
				"error", err,
				"request", setup.String())
			if err := s.hal.StallEP0(); err != nil {
				pkg.LogWarn(pkg.ComponentStack, "error stalling EP0", "error", err)
			}
		}
	}
}

// connectionLoop reports connect and disconnect transitions.
func (s *Stack) connectionLoop() {
	defer s.loops.Done()
	for {
		if err := s.hal.WaitConnect(s.ctx); err != nil {
			return
		}
		s.mutex.RLock()
		cb := s.onConnect
		s.mutex.RUnlock()
		pkg.LogInfo(pkg.ComponentStack, "host connected", "speed", s.Speed().String())
		if cb != nil {
			cb()
		}

		if err := s.hal.WaitDisconnect(s.ctx); err != nil {
			return
		}
		s.mutex.RLock()
		cb = s.onDisconnect
		s.mutex.RUnlock()
		pkg.LogInfo(pkg.ComponentStack, "host disconnected")
		if cb != nil {
			cb()
		}
	}
}

// resetEndpoints clears every halt after a bus reset.
func (s *Stack) resetEndpoints() {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	for i := 0; i < s.interfaceCount; i++ {
		for _, ep := range s.interfaces[i].Endpoints() {
			ep.SetStall(false)
		}
	}
	pkg.LogDebug(pkg.ComponentStack, "bus reset")
}

// handleSetup processes a single SETUP transaction. A returned error
// stalls EP0.
func (s *Stack) handleSetup(setup *SetupPacket) error {
	pkg.LogDebug(pkg.ComponentStack, "setup received",
		"request", setup.String())

	length := int(setup.Length)
	if length > MaxControlDataSize {
		length = MaxControlDataSize
	}
	data := s.ep0Buf[:length]

	// Host-to-device data stage arrives before the request is handled.
	if !setup.IsDeviceToHost() && length > 0 {
		n, err := s.hal.ReadEP0(s.ctx, data)
		if err != nil {
			return err
		}
		data = data[:n]
	}

	var n int
	var err error
	switch {
	case setup.IsStandard():
		n, err = s.handleStandard(setup, data)
	case setup.IsClass():
		iface := s.classTarget(setup)
		if iface == nil {
			return pkg.ErrInvalidRequest
		}
		n, err = iface.HandleSetup(setup, data)
	default:
		err = pkg.ErrInvalidRequest
	}
	if err != nil {
		return err
	}
	if n > len(data) {
		n = len(data)
	}
	return s.completeSetup(setup, data[:n])
}

// classTarget resolves the interface a class request is addressed to.
func (s *Stack) classTarget(setup *SetupPacket) *Interface {
	switch {
	case setup.IsInterfaceRecipient():
		return s.Interface(setup.InterfaceNumber())
	case setup.IsEndpointRecipient():
		iface, _ := s.endpointOwner(setup.EndpointAddress())
		return iface
	}
	return nil
}

// handleStandard answers the standard requests that concern interfaces and
// endpoints the stack owns.
func (s *Stack) handleStandard(setup *SetupPacket, data []byte) (int, error) {
	switch {
	case setup.IsEndpointRecipient():
		iface, ep := s.endpointOwner(setup.EndpointAddress())
		if ep == nil {
			return 0, pkg.ErrInvalidEndpoint
		}
		switch setup.Request {
		case RequestClearFeature:
			if setup.Value != FeatureEndpointHalt {
				return 0, pkg.ErrInvalidRequest
			}
			if err := s.ClearStall(ep); err != nil {
				return 0, err
			}
			iface.haltCleared(ep)
			return 0, nil
		case RequestSetFeature:
			if setup.Value != FeatureEndpointHalt {
				return 0, pkg.ErrInvalidRequest
			}
			return 0, s.Stall(ep)
		case RequestGetStatus:
			if len(data) < 2 {
				return 0, pkg.ErrBufferTooSmall
			}
			data[0], data[1] = 0, 0
			if ep.IsStalled() {
				data[0] = 1
			}
			return 2, nil
		}

	case setup.IsInterfaceRecipient():
		iface := s.Interface(setup.InterfaceNumber())
		if iface == nil {
			return 0, pkg.ErrInvalidRequest
		}
		switch setup.Request {
		case RequestSetInterface:
			return 0, iface.SetAlternate(uint8(setup.Value))
		case RequestGetInterface:
			if len(data) < 1 {
				return 0, pkg.ErrBufferTooSmall
			}
			data[0] = iface.AlternateSetting
			return 1, nil
		}
	}
	return 0, pkg.ErrInvalidRequest
}

// completeSetup completes the control transfer.
func (s *Stack) completeSetup(setup *SetupPacket, data []byte) error {
	if setup.IsDeviceToHost() {
		return s.hal.WriteEP0(s.ctx, data)
	}
	return s.hal.AckEP0()
}

// SetOnConnect sets the connect callback.
func (s *Stack) SetOnConnect(cb func()) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.onConnect = cb
}

// SetOnDisconnect sets the disconnect callback.
func (s *Stack) SetOnDisconnect(cb func()) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.onDisconnect = cb
}

// Speed returns the negotiated USB connection speed.
func (s *Stack) Speed() Speed {
	return halSpeedToDeviceSpeed(s.hal.GetSpeed())
}

// IsConnected returns true if the device is connected to a host.
func (s *Stack) IsConnected() bool {
	return s.hal.IsConnected()
}

// WaitConnect blocks until the device connects to a host or the context is cancelled.
func (s *Stack) WaitConnect(ctx context.Context) error {
	return s.hal.WaitConnect(ctx)
}

// Read performs a blocking read on an OUT endpoint.
func (s *Stack) Read(ctx context.Context, ep *Endpoint, buf []byte) (int, error) {
	if !s.IsRunning() {
		return 0, pkg.ErrNotRunning
	}
	return s.hal.Read(ctx, ep.Address, buf)
}

// Write performs a blocking write on an IN endpoint.
func (s *Stack) Write(ctx context.Context, ep *Endpoint, data []byte) (int, error) {
	if !s.IsRunning() {
		return 0, pkg.ErrNotRunning
	}
	return s.hal.Write(ctx, ep.Address, data)
}

// Stall halts an endpoint.
func (s *Stack) Stall(ep *Endpoint) error {
	if err := s.hal.Stall(ep.Address); err != nil {
		return err
	}
	ep.SetStall(true)
	return nil
}

// ClearStall clears an endpoint halt.
func (s *Stack) ClearStall(ep *Endpoint) error {
	if err := s.hal.ClearStall(ep.Address); err != nil {
		return err
	}
	ep.SetStall(false)
	return nil
}
