// Package artifacts serves the files the scoring pipeline publishes for each
// run (report, manifest, must-reads, summaries) from a blob store, resolving
// their location through the run manifest and caching flat legacy files.
package artifacts

import (
	"context"
	"errors"
	"fmt"

	apperrors "github.com/lueurxax/acitrack/internal/core/errors"
)

// Backend names.
const (
	BackendNone  = "none"
	BackendLocal = "local"
	BackendS3    = "s3"
)

// Artifact errors.
var (
	ErrArtifactNotFound    = fmt.Errorf("artifact not found: %w", apperrors.ErrNotFound)
	ErrArtifactUnavailable = fmt.Errorf("artifact store unavailable: %w", apperrors.ErrUnavailable)
	ErrNoStore             = errors.New("artifact store not configured")
	errEmptyPath           = errors.New("empty artifact path")
)

// Store reads objects by slash-separated path.
type Store interface {
	// Backend names the implementation ("local", "s3").
	Backend() string

	// Get returns the object content, or ErrArtifactNotFound.
	Get(ctx context.Context, path string) ([]byte, error)

	// Exists reports whether the object is present.
	Exists(ctx context.Context, path string) (bool, error)

	// Check verifies the store is reachable.
	Check(ctx context.Context) error
}
