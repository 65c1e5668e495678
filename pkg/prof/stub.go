//go:build !profile

package prof

import (
	"io"

	"github.com/gorilla/mux"
)

// Enabled reports whether profiling is compiled in.
const Enabled = false

// Profiling errors. The stubs never return them.
var (
	ErrCPUProfileActive error
	ErrInvalidProfile   error
)

// Profile names a runtime profile.
type Profile string

const (
	ProfileCPU       Profile = "cpu"
	ProfileHeap      Profile = "heap"
	ProfileAllocs    Profile = "allocs"
	ProfileGoroutine Profile = "goroutine"
	ProfileBlock     Profile = "block"
	ProfileMutex     Profile = "mutex"
)

func (p Profile) String() string { return string(p) }

func StartCPU(string) error { return nil }
func StopCPU() {}
func IsCPUActive() bool { return false }
func Write(Profile, string) error { return nil }
func WriteTo(Profile, io.Writer) error { return nil }
func Mount(*mux.Router) {}
