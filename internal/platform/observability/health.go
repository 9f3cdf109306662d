package observability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const (
	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 10 * time.Second
	readinessTimeout  = 2 * time.Second
)

// Readiness states reported by /readyz.
const (
	StateReady       = "ready"
	StateUnavailable = "unavailable"
)

// StoreChecker is the part of the publication store readiness depends on.
type StoreChecker interface {
	Ping(ctx context.Context) error
}

type readiness struct {
	State string `json:"state"`
	Error string `json:"error,omitempty"`
}

// HealthServer exposes /healthz, /readyz and /metrics on the ops port, apart
// from the public API.
type HealthServer struct {
	store  StoreChecker
	port   int
	logger *zerolog.Logger
}

func NewHealthServer(store StoreChecker, port int, logger *zerolog.Logger) *HealthServer {
	return &HealthServer{store: store, port: port, logger: logger}
}

// Handler returns the ops mux.
func (h *HealthServer) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeReadiness(w, http.StatusOK, readiness{State: StateReady})
	})
	mux.HandleFunc("/readyz", h.handleReady)
	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

// The process is ready once the publication store answers.
func (h *HealthServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		h.logger.Warn().Err(err).Msg("readiness check: publication store unreachable")
		writeReadiness(w, http.StatusServiceUnavailable, readiness{
			State: StateUnavailable,
			Error: fmt.Sprintf("publication store unreachable: %v", err),
		})

		return
	}

	writeReadiness(w, http.StatusOK, readiness{State: StateReady})
}

func writeReadiness(w http.ResponseWriter, status int, body readiness) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// Start serves the ops mux until ctx is done.
func (h *HealthServer) Start(ctx context.Context) error {
	return Serve(ctx, fmt.Sprintf(":%d", h.port), h.Handler(), "ops", h.logger)
}

// Serve runs one acitrack listener (api or ops) until ctx is done and then
// drains it.
func Serve(ctx context.Context, addr string, handler http.Handler, listener string, logger *zerolog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	stopped := make(chan struct{})

	go func() {
		defer close(stopped)

		<-ctx.Done()

		drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		//nolint:contextcheck // ctx is already done, draining needs its own deadline
		if err := srv.Shutdown(drainCtx); err != nil {
			logger.Warn().Err(err).Str("listener", listener).Msg("listener did not drain in time")
		}
	}()

	logger.Info().Str("listener", listener).Str("addr", addr).Msg("acitrack listener up")

	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s listener on %s: %w", listener, addr, err)
	}

	<-stopped
	logger.Info().Str("listener", listener).Msg("acitrack listener stopped")

	return nil
}
