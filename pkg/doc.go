// Package pkg provides shared utilities for the tmcdaq instrument.
//
// This package contains common functionality used by the device stack, the
// USBTMC class driver and the acquisition core, including:
//
//   - Structured logging via Go's standard [log/slog] package
//   - Sentinel error values for USB and instrument errors
//   - Component identifiers for log filtering
//
// # Logging
//
// The logging subsystem wraps [log/slog] with a component attribute:
//
//	pkg.SetLogLevel(slog.LevelDebug)
//	pkg.LogInfo(pkg.ComponentTMC, "transfer complete", "tag", 7)
//
// Level and format can be selected from strings, which is how the
// command-line front end configures them:
//
//	level, err := pkg.ParseLogLevel("debug")
//	format, err := pkg.ParseLogFormat("json")
//
// # Errors
//
// Errors are defined as sentinel values and compared with [errors.Is]:
//
//	if errors.Is(err, pkg.ErrQueueFull) {
//	    // reject the job
//	}
package pkg
