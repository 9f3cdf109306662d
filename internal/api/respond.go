package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	apperrors "github.com/lueurxax/acitrack/internal/core/errors"
)

// HTTP header constants.
const (
	headerContentType        = "Content-Type"
	headerContentDisposition = "Content-Disposition"
	headerAPIKey             = "X-API-Key"
	headerCacheStatus        = "X-Cache-Status"
	headerResolutionMethod   = "X-Resolution-Method"
	headerResolvedPath       = "X-Resolved-Path"
	headerError              = "X-Error"

	contentTypeJSON     = "application/json"
	contentTypeHTML     = "text/html; charset=utf-8"
	contentTypeMarkdown = "text/markdown; charset=utf-8"
	contentTypeCSV      = "text/csv; charset=utf-8"
	contentTypeGzip     = "application/gzip"

	maxBodyBytes = 16 << 20
)

var (
	errMissingDeps   = errors.New("api: config, store and logger are required")
	errInvalidBody   = fmt.Errorf("invalid JSON body: %w", apperrors.ErrValidation)
	errNotConfigured = fmt.Errorf("feature not configured: %w", apperrors.ErrUnavailable)
)

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON encodes v as JSON and writes it to w.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set(headerContentType, contentTypeJSON)
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "encoding response", http.StatusInternalServerError)
	}
}

// statusForError maps sentinel errors to status codes. Unavailable is checked
// before not-found: artifact failures wrap both.
func statusForError(err error) int {
	switch {
	case errors.Is(err, apperrors.ErrInvalidID), errors.Is(err, apperrors.ErrInvalidDate):
		return http.StatusBadRequest
	case errors.Is(err, apperrors.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, apperrors.ErrMissingAPIKey):
		return http.StatusUnauthorized
	case errors.Is(err, apperrors.ErrInvalidAPIKey):
		return http.StatusForbidden
	case errors.Is(err, apperrors.ErrUnavailable),
		errors.Is(err, apperrors.ErrUpstream),
		errors.Is(err, apperrors.ErrCircuitBreakerOpen):
		return http.StatusServiceUnavailable
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperrors.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError answers with {"error": reason}. Internal errors are not echoed.
func writeError(w http.ResponseWriter, err error) {
	status := statusForError(err)

	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = http.StatusText(status)
	}

	writeJSON(w, status, errorResponse{msg})
}

// fail logs server-side failures before answering.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	level := zerolog.DebugLevel
	if statusForError(err) >= http.StatusInternalServerError {
		level = zerolog.ErrorLevel
	}

	s.logger.WithLevel(level).Err(err).Str("route", routePattern(r)).Msg("request failed")
	writeError(w, err)
}

// decodeJSON reads a bounded JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)

	if err := json.NewDecoder(body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("request body is empty: %w", apperrors.ErrValidation)
		}

		return fmt.Errorf("%w: %w", errInvalidBody, err)
	}

	return nil
}

// Query parsing helpers. Malformed values are validation errors.

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", name, apperrors.ErrValidation)
	}

	return v, nil
}

func queryIntPtr(r *http.Request, name string) (*int, error) {
	if strings.TrimSpace(r.URL.Query().Get(name)) == "" {
		return nil, nil //nolint:nilnil
	}

	v, err := queryInt(r, name, 0)
	if err != nil {
		return nil, err
	}

	return &v, nil
}

func queryBool(r *http.Request, name string, def bool) (bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}

	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean: %w", name, apperrors.ErrValidation)
	}

	return v, nil
}

func queryString(r *http.Request, name, def string) string {
	if v := strings.TrimSpace(r.URL.Query().Get(name)); v != "" {
		return v
	}

	return def
}

func checkRange(name string, v, lo, hi int) error {
	if v < lo || v > hi {
		return fmt.Errorf("%s must be between %d and %d: %w", name, lo, hi, apperrors.ErrValidation)
	}

	return nil
}
