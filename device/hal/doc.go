// Package hal defines the Hardware Abstraction Layer between the device
// stack and the USB controller.
//
// The controller side (a USB peripheral, or the Linux gadget framework)
// handles attachment and enumeration. What reaches the stack through
// [DeviceHAL] is the remainder: SETUP packets addressed to interfaces and
// endpoints, bulk data, halt control and connection state.
//
// Two implementations are provided:
//
//   - [github.com/ardnew/tmcdaq/device/hal/loopback] connects the stack to an
//     in-process host handle, for tests and the simulator.
//   - [github.com/ardnew/tmcdaq/device/hal/functionfs] drives a mounted Linux
//     FunctionFS instance.
//
// HAL implementations should reuse caller buffers and avoid allocating on
// the Read/Write path.
package hal
