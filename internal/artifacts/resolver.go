package artifacts

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

const (
	logFieldMode  = "mode"
	logFieldRunID = "run_id"
	logFieldKey   = "file_key"
)

// Resolution records where a file was found.
type Resolution struct {
	Method      string `json:"resolution_method"`
	Path        string `json:"resolved_path"`
	FileKey     string `json:"file_key"`
	ManifestKey string `json:"manifest_key,omitempty"`
}

// Resolver locates run files through an ordered list of strategies.
type Resolver struct {
	store      Store
	strategies []Strategy
	logger     *zerolog.Logger
}

// NewResolver creates a resolver. No strategies selects DefaultStrategies.
func NewResolver(store Store, logger *zerolog.Logger, strategies ...Strategy) *Resolver {
	if len(strategies) == 0 {
		strategies = DefaultStrategies()
	}

	return &Resolver{store: store, strategies: strategies, logger: logger}
}

// Store returns the underlying store.
func (r *Resolver) Store() Store {
	return r.store
}

// Resolve tries every strategy's candidates in order and returns the first
// readable file.
func (r *Resolver) Resolve(ctx context.Context, fileKey string, run *LatestRun) ([]byte, *Resolution, error) {
	log := r.logger.With().
		Str(logFieldMode, run.Mode).
		Str(logFieldRunID, run.RunID).
		Str(logFieldKey, fileKey).
		Logger()

	var tried []string

	for _, strategy := range r.strategies {
		candidates := strategy.Candidates(fileKey, run)
		if len(candidates) == 0 {
			continue
		}

		tried = append(tried, strategy.Name())

		for _, c := range candidates {
			content, err := r.store.Get(ctx, c.Path)
			if err != nil {
				log.Warn().Err(err).Str("method", strategy.Name()).Str("path", c.Path).Msg("artifact candidate failed")

				continue
			}

			log.Info().Str("method", strategy.Name()).Str("path", c.Path).Msg("artifact resolved")

			return content, &Resolution{
				Method:      strategy.Name(),
				Path:        c.Path,
				FileKey:     fileKey,
				ManifestKey: c.ManifestKey,
			}, nil
		}
	}

	return nil, nil, fmt.Errorf("output file '%s' not found via any resolution method for mode=%s, run_id=%s (tried: %s): %w",
		fileKey, run.Mode, run.RunID, strings.Join(tried, ", "), ErrArtifactUnavailable)
}
