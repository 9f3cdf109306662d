package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// buildRouter constructs the chi router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(s.requestLogger)
	r.Use(s.corsMiddleware())

	// Public endpoints.
	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Get("/feedback", s.handleFeedback)
	r.Get("/calibration", s.handleCalibrationUI)

	r.Group(func(r chi.Router) {
		r.Use(s.requireAPIKey)

		// Pipeline artifacts.
		r.Get("/report", s.handleReport)
		r.Get("/manifest", s.handleManifest)
		r.Get("/new", s.handleNew)
		r.Get("/api/must-reads", s.handleMustReads)
		r.Get("/must-reads", s.handleMustReads)
		r.Get("/api/must-reads/md", s.handleMustReadsMarkdown)
		r.Get("/api/summaries", s.handleSummaries)
		r.Get("/api/db/snapshot", s.handleDBSnapshot)
		r.Get("/api/artifacts/status", s.handleArtifactsStatus)

		// Calibration.
		r.Post("/calibration/items/seed", s.handleSeed)
		r.Post("/calibration/items/seed-mustreads", s.handleSeedMustReads)
		r.Get("/calibration/next", s.handleNext)
		r.Post("/calibration/submit", s.handleSubmit)
		r.Get("/calibration/stats", s.handleCalibrationStats)
		r.Get("/calibration/export", s.handleExport)
		r.Get("/calibration/items", s.handleListItems)

		// Semantic search.
		r.Get("/search/publications", s.handleSearch)
		r.Get("/search/status", s.handleSearchStatus)
		r.Get("/search/similar/{publication_id}", s.handleSimilar)

		// CustomGPT actions.
		r.Get("/daily-must-reads", s.handleDailyMustReads)
		r.Get("/weekly-must-reads", s.handleWeeklyMustReads)
		r.Get("/stats", s.handleStats)
		r.Get("/whats-new", s.handleWhatsNew)

		// Pipeline ingestion.
		r.Post("/ingest/runs", s.handleIngestRuns)
		r.Post("/ingest/publications", s.handleIngestPublications)
		r.Post("/ingest/embeddings", s.handleIngestEmbeddings)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{"not found"})
	})

	return r
}

// corsMiddleware allows the configured origins (the ChatGPT hosts by default).
func (s *Server) corsMiddleware() func(http.Handler) http.Handler {
	opts := cors.Options{
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", headerAPIKey},
		ExposedHeaders:   []string{headerCacheStatus, headerResolutionMethod, headerResolvedPath, headerError},
		AllowCredentials: true,
		MaxAge:           300,
	}

	origins := s.cfg.CORSAllowedOrigins
	opts.AllowedOrigins = origins

	// Credentials only for explicitly listed origins.
	if len(origins) == 1 && origins[0] == "*" {
		opts.AllowCredentials = false
	}

	return cors.Handler(opts)
}
