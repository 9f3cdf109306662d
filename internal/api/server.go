// Package api is the public HTTP surface: artifact downloads, must-read
// listings, the calibration tool, semantic search, CustomGPT summaries and
// the ingest endpoints used by the scoring pipeline.
package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/lueurxax/acitrack/internal/artifacts"
	"github.com/lueurxax/acitrack/internal/core/calibration"
	"github.com/lueurxax/acitrack/internal/core/feedback"
	"github.com/lueurxax/acitrack/internal/core/ports"
	"github.com/lueurxax/acitrack/internal/core/search"
	"github.com/lueurxax/acitrack/internal/ingest"
	"github.com/lueurxax/acitrack/internal/platform/config"
)

// Version is reported by the root and stats endpoints.
const Version = "2.0.0"

// Deps are the collaborators the handlers use. Resolver and Fetcher are nil
// when no artifact backend is configured.
type Deps struct {
	Config      *config.Config
	Store       ports.Store
	Calibration *calibration.Service
	Search      *search.Service
	Feedback    *feedback.Service
	Ingest      *ingest.Service
	Resolver    *artifacts.Resolver
	Fetcher     *artifacts.CachedFetcher
	Logger      *zerolog.Logger
}

// Server holds the handlers' dependencies.
type Server struct {
	cfg         *config.Config
	store       ports.Store
	calibration *calibration.Service
	search      *search.Service
	feedback    *feedback.Service
	ingest      *ingest.Service
	resolver    *artifacts.Resolver
	fetcher     *artifacts.CachedFetcher
	renderer    *Renderer
	logger      *zerolog.Logger
	now         func() time.Time
}

// NewServer validates deps and parses the page templates.
func NewServer(deps Deps) (*Server, error) {
	if deps.Config == nil || deps.Store == nil || deps.Logger == nil {
		return nil, errMissingDeps
	}

	renderer, err := NewRenderer()
	if err != nil {
		return nil, fmt.Errorf("init renderer: %w", err)
	}

	s := &Server{
		cfg:         deps.Config,
		store:       deps.Store,
		calibration: deps.Calibration,
		search:      deps.Search,
		feedback:    deps.Feedback,
		ingest:      deps.Ingest,
		resolver:    deps.Resolver,
		fetcher:     deps.Fetcher,
		renderer:    renderer,
		logger:      deps.Logger,
		now:         time.Now,
	}

	if s.cfg.APIKey == "" {
		s.logger.Warn().Msg("ACITRACK_API_KEY not set, protected endpoints are open")
	}

	return s, nil
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}
