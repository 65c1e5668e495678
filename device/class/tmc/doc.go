// Package tmc implements the USB Test and Measurement Class (USBTMC 1.0)
// for a data-acquisition instrument.
//
// The driver owns one bulk endpoint pair. Command text arrives in
// DEV_DEP_MSG_OUT transfers and is handed to an [Application] once the
// message is complete. REQUEST_DEV_DEP_MSG_IN transfers are answered with
// the pending command response, if any, or with sample data read from the
// application:
//
//	iface, _ := tmc.NewInterface(0, 1, 2, 64)
//	t := tmc.New(dispatcher, tmc.Options{})
//	iface.SetClassDriver(t)
//	stack.AddInterface(iface)
//	t.SetStack(stack)
//	go t.Run(ctx)
//
// Class requests on the control endpoint (abort, clear, capabilities and
// indicator pulse) are served by [TMC.HandleSetup] from the stack's control
// goroutine.
//
// Malformed Bulk-OUT transfers halt the Bulk-OUT endpoint. The host
// recovers with INITIATE_CLEAR or CLEAR_FEATURE(ENDPOINT_HALT).
package tmc
