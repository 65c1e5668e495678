// Package device implements the device side of a USB function: the part
// that remains once the controller has enumerated the device.
//
// It is platform-agnostic and talks to hardware through the
// [hal.DeviceHAL] interface defined in
// [github.com/ardnew/tmcdaq/device/hal].
//
// # Architecture
//
//   - [Stack] runs the control loop, routes class requests to interfaces and
//     answers endpoint halt and alternate setting requests
//   - [Interface] groups endpoints and owns a [ClassDriver]
//   - [Endpoint] tracks address, type, packet size and halt state
//
// Class requests addressed to an interface go to that interface's driver.
// Class requests addressed to an endpoint go to the driver of the interface
// owning the endpoint, which is how USBTMC abort requests arrive.
//
// # Usage
//
//	iface := device.NewInterface(0, device.ClassAppSpecific, 0x03, 0x00)
//	iface.AddEndpoint(device.NewEndpoint(0x81, device.EndpointTypeBulk, 64))
//	iface.AddEndpoint(device.NewEndpoint(0x02, device.EndpointTypeBulk, 64))
//	iface.SetClassDriver(driver)
//
//	stack := device.NewStack(h)
//	stack.AddInterface(iface)
//	stack.Start(ctx)
//
// # Zero-Allocation Design
//
// Serialization uses MarshalTo(buf) and parsing fills caller-provided
// values. Interfaces and endpoints live in fixed-size arrays, and the
// control loop reuses one EP0 buffer for every request.
package device
