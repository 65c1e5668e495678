// Package functionfs implements the device HAL on top of the Linux
// FunctionFS gadget interface.
//
// FunctionFS exposes one USB function as a directory of endpoint files.
// The HAL writes the interface descriptors and strings to ep0, reads
// control events from it, and maps each configured endpoint to the epN
// file the kernel creates for it. Enumeration, address assignment and
// configuration selection are handled by the kernel composite driver.
//
// The encoding helpers in this package are portable; the HAL itself is
// only built on Linux.
package functionfs
