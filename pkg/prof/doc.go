// Package prof exposes runtime profiling for the instrument.
//
// Profiling is compiled in only with the "profile" build tag:
//
//	go build -tags profile ./cmd/tmcdaq
//
// Without the tag every function is a no-op and [Enabled] is false, so the
// command-line front end can keep its profiling flags unconditionally.
//
// A CPU profile covers the whole run:
//
//	prof.StartCPU("cpu.prof")
//	defer prof.StopCPU()
//
// Snapshot profiles are written on demand, and [Mount] adds the
// /debug/pprof/ handlers to the metrics router:
//
//	prof.Write(prof.ProfileHeap, "heap.prof")
//	prof.Mount(router)
package prof
