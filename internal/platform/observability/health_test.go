package observability

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func decodeReadiness(t *testing.T, rec *httptest.ResponseRecorder) readiness {
	t.Helper()

	var body readiness
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))

	return body
}

func TestHealthHandler(t *testing.T) {
	logger := zerolog.Nop()
	healthy := true

	srv := NewHealthServer(pingFunc(func(context.Context) error {
		if healthy {
			return nil
		}

		return errors.New("pool closed")
	}), 0, &logger)

	h := srv.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, StateReady, decodeReadiness(t, rec).State)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, StateReady, decodeReadiness(t, rec).State)

	healthy = false
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	body := decodeReadiness(t, rec)
	assert.Equal(t, StateUnavailable, body.State)
	assert.Equal(t, "publication store unreachable: pool closed", body.Error)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthHandler_ReadinessDeadline(t *testing.T) {
	logger := zerolog.Nop()

	var deadline time.Time

	srv := NewHealthServer(pingFunc(func(ctx context.Context) error {
		deadline, _ = ctx.Deadline()
		return nil
	}), 0, &logger)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.WithinDuration(t, time.Now().Add(readinessTimeout), deadline, time.Second)
}

func TestServe_StopsOnCancel(t *testing.T) {
	logger := zerolog.Nop()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)

	go func() {
		done <- Serve(ctx, "127.0.0.1:0", http.NotFoundHandler(), "ops", &logger)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(shutdownTimeout + time.Second):
		t.Fatal("listener did not stop")
	}
}
