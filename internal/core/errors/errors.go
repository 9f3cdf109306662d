// Package errors provides centralized error definitions for the application.
// Errors are organized by the condition a caller has to branch on, so that the
// HTTP layer can map them to status codes in one place.
//
// Naming conventions:
//   - Exported errors (Err*): Use for errors that callers need to check with errors.Is
//   - Unexported errors (err*): Use for internal package errors
//   - All sentinel errors should be defined as variables, not inline errors.New calls
//   - Use fmt.Errorf with %w to wrap sentinel errors with context
package errors

import "errors"

// Circuit breaker errors.
var (
	// ErrCircuitBreakerOpen indicates the circuit breaker has tripped and requests are blocked.
	ErrCircuitBreakerOpen = errors.New("circuit breaker is open")
)

// Validation errors. Rejected before touching storage or upstream services.
var (
	// ErrValidation indicates malformed input shape or an out-of-range value.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidID indicates an identifier that cannot be parsed.
	ErrInvalidID = errors.New("invalid id")

	// ErrInvalidDate indicates a date that does not match the expected layout.
	ErrInvalidDate = errors.New("invalid date")
)

// Lookup errors.
var (
	// ErrNotFound indicates the referenced entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a uniqueness violation, such as a repeated rating.
	ErrConflict = errors.New("conflict")
)

// Precondition and upstream errors.
var (
	// ErrUnavailable indicates an external dependency is not configured or is empty.
	ErrUnavailable = errors.New("unavailable")

	// ErrUpstream indicates an upstream failure that persisted after retries.
	ErrUpstream = errors.New("upstream failure")
)

// Authorization errors.
var (
	// ErrMissingAPIKey indicates the shared-secret header was absent.
	ErrMissingAPIKey = errors.New("missing X-API-Key header")

	// ErrInvalidAPIKey indicates the shared-secret header did not match.
	ErrInvalidAPIKey = errors.New("invalid API key")
)

// Cache errors.
var (
	// ErrCacheNotFound indicates a cache entry was not found.
	ErrCacheNotFound = errors.New("cache entry not found")
)

// Is is a convenience wrapper around errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As is a convenience wrapper around errors.As.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
