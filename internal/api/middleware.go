package api

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	apperrors "github.com/lueurxax/acitrack/internal/core/errors"
	"github.com/lueurxax/acitrack/internal/platform/observability"
)

const unmatchedRoute = "unmatched"

// requestLogger logs each request and records the route metrics.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := routePattern(r)
		status := ww.Status()

		if status == 0 {
			status = http.StatusOK
		}

		elapsed := time.Since(start)

		observability.HTTPRequests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		observability.HTTPRequestDuration.WithLabelValues(route, r.Method).Observe(elapsed.Seconds())

		s.logger.Debug().
			Str("method", r.Method).
			Str("route", route).
			Int("status", status).
			Dur("duration", elapsed).
			Str("request_id", chimw.GetReqID(r.Context())).
			Msg("request handled")
	})
}

func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return unmatchedRoute
	}

	if p := rctx.RoutePattern(); p != "" {
		return p
	}

	return unmatchedRoute
}

// requireAPIKey checks the shared secret. Without a configured key every
// request passes.
func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.APIKey == "" {
			next.ServeHTTP(w, r)
			return
		}

		key := r.Header.Get(headerAPIKey)
		if key == "" {
			writeError(w, apperrors.ErrMissingAPIKey)
			return
		}

		if subtle.ConstantTimeCompare([]byte(key), []byte(s.cfg.APIKey)) != 1 {
			writeError(w, apperrors.ErrInvalidAPIKey)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func observeResultSize(r *http.Request, n int) {
	observability.ResultSize.WithLabelValues(routePattern(r)).Set(float64(n))
}
