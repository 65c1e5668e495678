// Package loopback provides an in-memory implementation of the device HAL
// together with a [Host] handle that plays the USB host.
//
// The two sides exchange control transfers and bulk packets over channels,
// so a complete class driver can run in one process:
//
//	h := loopback.New(hal.SpeedFull)
//	stack := device.NewStack(h)
//	// ... add interfaces, start the stack ...
//	host := h.Host()
//	resp, err := host.Control(ctx, setup, nil)
//	err = host.BulkOut(ctx, 0x02, packet)
//	data, err := host.BulkIn(ctx, 0x81)
//
// Halting an endpoint fails pending and future host transfers on it with
// [pkg.ErrStall] until the halt is cleared, mirroring a real controller.
package loopback
