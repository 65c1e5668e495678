package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ardnew/tmcdaq/pkg"
)

// Routes served by NewHandler.
const (
	PathMetrics = "/metrics"
	PathHealth  = "/healthz"
	PathStatus  = "/status"
)

// StatusFunc returns a JSON-encodable snapshot of instrument state.
type StatusFunc func() any

// NewHandler returns a router serving the gathered metrics, a liveness
// probe and, when status is non-nil, an instrument state snapshot.
func NewHandler(g prometheus.Gatherer, status StatusFunc) *mux.Router {
	router := mux.NewRouter()
	router.Handle(PathMetrics, promhttp.HandlerFor(g, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	router.HandleFunc(PathHealth, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	}).Methods(http.MethodGet)
	if status != nil {
		router.HandleFunc(PathStatus, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			if err := json.NewEncoder(w).Encode(status()); err != nil {
				pkg.LogWarn(pkg.ComponentMetrics, "encode status", "error", err)
			}
		}).Methods(http.MethodGet)
	}
	return router
}

// Serve listens on addr and serves h until ctx is cancelled.
func Serve(ctx context.Context, addr string, h http.Handler) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return ServeListener(ctx, ln, h)
}

// ServeListener serves h on ln until ctx is cancelled.
func ServeListener(ctx context.Context, ln net.Listener, h http.Handler) error {
	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	pkg.LogInfo(pkg.ComponentMetrics, "metrics server listening", "addr", ln.Addr().String())
	err := srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		<-done
		return nil
	}
	return err
}
