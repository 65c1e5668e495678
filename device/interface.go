package device

import (
	"sync"

	"github.com/ardnew/tmcdaq/pkg"
)

// Interface groups the data endpoints served by one class driver.
type Interface struct {
	Number           uint8 // Interface number
	AlternateSetting uint8 // Current alternate setting
	Class            uint8 // Interface class
	SubClass         uint8 // Interface subclass
	Protocol         uint8 // Interface protocol
	StringIndex      uint8 // String descriptor index
	Name             string

	// Endpoints (excluding EP0) - fixed-size array for zero allocation
	endpoints     [MaxEndpointsPerInterface]*Endpoint
	endpointCount int
	mutex         sync.RWMutex

	classDriver ClassDriver
}

// ClassDriver defines the interface for USB class-specific handling.
type ClassDriver interface {
	// Init initializes the class driver for the interface.
	Init(iface *Interface) error

	// HandleSetup processes a class-specific SETUP request addressed to the
	// interface or to one of its endpoints. For device-to-host requests the
	// driver writes its response into data and returns the number of bytes
	// written. For host-to-device requests data holds the received data
	// stage. Requests the driver does not recognize return
	// [pkg.ErrInvalidRequest], which stalls the control endpoint.
	HandleSetup(iface *Interface, setup *SetupPacket, data []byte) (int, error)

	// SetAlternate is called when the alternate setting changes.
	SetAlternate(iface *Interface, alt uint8) error

	// Close releases any resources held by the class driver.
	Close() error
}

// HaltHandler is implemented by class drivers that need to know when the
// host clears an endpoint halt with CLEAR_FEATURE(ENDPOINT_HALT).
type HaltHandler interface {
	HaltCleared(iface *Interface, ep *Endpoint)
}

// NewInterface creates an interface with the given number and class triple.
func NewInterface(number, class, subClass, protocol uint8) *Interface {
	return &Interface{
		Number:   number,
		Class:    class,
		SubClass: subClass,
		Protocol: protocol,
	}
}

// AddEndpoint adds an endpoint to the interface.
func (i *Interface) AddEndpoint(ep *Endpoint) error {
	i.mutex.Lock()
	defer i.mutex.Unlock()

	if i.endpointCount >= MaxEndpointsPerInterface {
		return pkg.ErrNoMemory
	}

	addr := ep.Address
	for idx := 0; idx < i.endpointCount; idx++ {
		if i.endpoints[idx].Address == addr {
			return pkg.ErrBusy
		}
	}

	i.endpoints[i.endpointCount] = ep
	i.endpointCount++

	pkg.LogDebug(pkg.ComponentDevice, "endpoint added to interface",
		"interface", i.Number,
		"endpoint", addr,
		"type", TransferTypeName(ep.TransferType()),
		"direction", DirectionName(ep.Direction()))

	return nil
}

// GetEndpoint returns the endpoint with the given address.
func (i *Interface) GetEndpoint(address uint8) *Endpoint {
	i.mutex.RLock()
	defer i.mutex.RUnlock()

	for idx := 0; idx < i.endpointCount; idx++ {
		if i.endpoints[idx].Address == address {
			return i.endpoints[idx]
		}
	}
	return nil
}

// Endpoints returns all endpoints in the interface.
// The returned slice references internal storage; do not modify.
func (i *Interface) Endpoints() []*Endpoint {
	i.mutex.RLock()
	defer i.mutex.RUnlock()
	return i.endpoints[:i.endpointCount]
}

// FindEndpoint returns the first endpoint with the given transfer type and
// direction.
func (i *Interface) FindEndpoint(transferType, direction uint8) *Endpoint {
	for _, ep := range i.Endpoints() {
		if ep.TransferType() == transferType && ep.Direction() == direction {
			return ep
		}
	}
	return nil
}

// SetClassDriver sets the class driver for this interface.
func (i *Interface) SetClassDriver(driver ClassDriver) error {
	i.mutex.Lock()
	oldDriver := i.classDriver
	i.classDriver = driver
	i.mutex.Unlock()

	if oldDriver != nil {
		if err := oldDriver.Close(); err != nil {
			pkg.LogWarn(pkg.ComponentDevice, "error closing previous class driver",
				"error", err)
		}
	}

	// Init runs outside the lock since drivers call back into the interface.
	if driver != nil {
		return driver.Init(i)
	}
	return nil
}

// ClassDriver returns the current class driver.
func (i *Interface) ClassDriver() ClassDriver {
	i.mutex.RLock()
	defer i.mutex.RUnlock()
	return i.classDriver
}

// HandleSetup forwards a class-specific SETUP request to the driver.
func (i *Interface) HandleSetup(setup *SetupPacket, data []byte) (int, error) {
	driver := i.ClassDriver()
	if driver == nil {
		return 0, pkg.ErrInvalidRequest
	}
	return driver.HandleSetup(i, setup, data)
}

// SetAlternate changes the alternate setting.
func (i *Interface) SetAlternate(alt uint8) error {
	i.mutex.Lock()
	i.AlternateSetting = alt
	driver := i.classDriver
	i.mutex.Unlock()

	if driver != nil {
		return driver.SetAlternate(i, alt)
	}
	return nil
}

// haltCleared notifies the driver that ep left the halted state.
func (i *Interface) haltCleared(ep *Endpoint) {
	if h, ok := i.ClassDriver().(HaltHandler); ok {
		h.HaltCleared(i, ep)
	}
}

// Descriptor returns the interface descriptor.
func (i *Interface) Descriptor() InterfaceDescriptor {
	i.mutex.RLock()
	defer i.mutex.RUnlock()

	return InterfaceDescriptor{
		InterfaceNumber:   i.Number,
		AlternateSetting:  i.AlternateSetting,
		NumEndpoints:      uint8(i.endpointCount),
		InterfaceClass:    i.Class,
		InterfaceSubClass: i.SubClass,
		InterfaceProtocol: i.Protocol,
		InterfaceIndex:    i.StringIndex,
	}
}

// MarshalDescriptors writes the interface descriptor followed by its
// endpoint descriptors to buf. Bulk endpoints use bulkPacketSize when it is
// non-zero, which lets one interface describe both full and high speed.
// Returns the number of bytes written, or 0 if buf is too small.
func (i *Interface) MarshalDescriptors(buf []byte, bulkPacketSize uint16) int {
	eps := i.Endpoints()
	if len(buf) < InterfaceDescriptorSize+len(eps)*EndpointDescriptorSize {
		return 0
	}

	desc := i.Descriptor()
	n := desc.MarshalTo(buf)
	for _, ep := range eps {
		var mps uint16
		if ep.IsBulk() {
			mps = bulkPacketSize
		}
		d := ep.Descriptor(mps)
		n += d.MarshalTo(buf[n:])
	}
	return n
}

// Close releases resources held by the interface.
func (i *Interface) Close() error {
	i.mutex.Lock()
	driver := i.classDriver
	i.classDriver = nil
	i.mutex.Unlock()

	if driver != nil {
		return driver.Close()
	}
	return nil
}
