//go:build profile

package prof

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCPUProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cpu.prof")

	require.NoError(t, StartCPU(path))
	assert.True(t, IsCPUActive())
	assert.ErrorIs(t, StartCPU(filepath.Join(t.TempDir(), "again.prof")), ErrCPUProfileActive)

	StopCPU()
	assert.False(t, IsCPUActive())
	StopCPU()

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestStartCPUInvalidPath(t *testing.T) {
	assert.Error(t, StartCPU(filepath.Join(t.TempDir(), "missing", "cpu.prof")))
	assert.False(t, IsCPUActive())
}

func TestWriteSnapshots(t *testing.T) {
	for _, p := range []Profile{ProfileHeap, ProfileAllocs, ProfileGoroutine, ProfileBlock, ProfileMutex} {
		t.Run(p.String(), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, WriteTo(p, &buf))
			assert.Positive(t, buf.Len())
		})
	}

	path := filepath.Join(t.TempDir(), "heap.prof")
	require.NoError(t, Write(ProfileHeap, path))
	assert.FileExists(t, path)
}

func TestWriteRejects(t *testing.T) {
	assert.ErrorIs(t, Write(ProfileCPU, filepath.Join(t.TempDir(), "cpu.prof")), ErrInvalidProfile)
	assert.ErrorIs(t, WriteTo(Profile("bogus"), &bytes.Buffer{}), ErrInvalidProfile)
}

func TestMount(t *testing.T) {
	router := mux.NewRouter()
	Mount(router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/pprof/goroutine?debug=1", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "goroutine")
}
