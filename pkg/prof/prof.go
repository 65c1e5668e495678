//go:build profile

package prof

import (
	"errors"
	"io"
	"net/http"
	"net/http/pprof"
	"os"
	"runtime"
	rpprof "runtime/pprof"
	"sync"

	"github.com/gorilla/mux"
)

// Enabled reports whether profiling is compiled in.
const Enabled = true

// Profiling errors.
var (
	ErrCPUProfileActive = errors.New("cpu profile already active")
	ErrInvalidProfile   = errors.New("invalid profile")
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

var (
	cpuMutex  sync.Mutex
	cpuFile   *os.File
	cpuActive bool
)

// StartCPU starts CPU profiling into the file at path. Block and mutex
// sampling are enabled alongside it.
func StartCPU(path string) error {
	cpuMutex.Lock()
	defer cpuMutex.Unlock()

	if cpuActive {
		return ErrCPUProfileActive
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := rpprof.StartCPUProfile(f); err != nil {
		f.Close()
		return err
	}
	runtime.SetBlockProfileRate(1)
	runtime.SetMutexProfileFraction(1)

	cpuFile = f
	cpuActive = true
	return nil
}

// StopCPU stops CPU profiling. It does nothing if profiling is not active.
func StopCPU() {
	cpuMutex.Lock()
	defer cpuMutex.Unlock()

	if !cpuActive {
		return
	}
	rpprof.StopCPUProfile()
	cpuFile.Close()
	cpuFile = nil
	cpuActive = false
}

// IsCPUActive reports whether CPU profiling is running.
func IsCPUActive() bool {
	cpuMutex.Lock()
	defer cpuMutex.Unlock()
	return cpuActive
}

// Write writes a snapshot profile to the file at path.
func Write(profile Profile, path string) error {
	if profile == ProfileCPU {
		return ErrInvalidProfile
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return WriteTo(profile, f)
}

// WriteTo writes a snapshot profile to w in protobuf form.
func WriteTo(profile Profile, w io.Writer) error {
	p := rpprof.Lookup(string(profile))
	if p == nil || profile == ProfileCPU {
		return ErrInvalidProfile
	}
	return p.WriteTo(w, 0)
}

// Mount registers the pprof handlers under /debug/pprof/ on router.
func Mount(router *mux.Router) {
	sub := router.PathPrefix("/debug/pprof").Subrouter()
	sub.HandleFunc("/cmdline", pprof.Cmdline)
	sub.HandleFunc("/profile", pprof.Profile)
	sub.HandleFunc("/symbol", pprof.Symbol)
	sub.HandleFunc("/trace", pprof.Trace)
	sub.PathPrefix("/").Handler(http.HandlerFunc(pprof.Index))
}
