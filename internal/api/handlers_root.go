package api

import (
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/lueurxax/acitrack/internal/core/calibration"
	"github.com/lueurxax/acitrack/internal/core/feedback"
	"github.com/lueurxax/acitrack/internal/platform/observability"
)

const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
)

// handleRoot describes the API.
func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":        "AciTrack API",
		"version":     Version,
		"description": "API for accessing latest academic publication reports with daily/weekly mode support",
		"mode_support": map[string]any{
			"description":  "Most endpoints support ?mode=daily|weekly parameter",
			"default":      "daily",
			"valid_values": []string{"daily", "weekly"},
		},
		"endpoints": map[string]string{
			"/report":                 "Get latest report (Markdown) - supports ?mode=daily|weekly",
			"/manifest":               "Get latest manifest (JSON) - supports ?mode=daily|weekly",
			"/new":                    "Get latest new publications (CSV) - supports ?mode=daily|weekly",
			"/api/must-reads":         "Get must-read publications (JSON) - supports ?mode=daily|weekly or ?run_id=",
			"/api/must-reads/md":      "Get must-read publications (Markdown)",
			"/api/summaries":          "Get publication summaries (JSON) - supports ?mode=daily|weekly",
			"/api/db/snapshot":        "Download database snapshot (gzip)",
			"/api/artifacts/status":   "Get artifacts status and cache info",
			"/calibration":            "Human calibration tool (HTML)",
			"/search/publications":    "Semantic search over scored publications",
			"/daily-must-reads":       "Latest daily must-reads above a threshold",
			"/weekly-must-reads":      "Top publications of the last N days",
			"/stats":                  "Database and scoring statistics",
			"/whats-new":              "Digest of the latest daily run",
			"/ingest/runs":            "Ingest pipeline runs (POST)",
			"/ingest/publications":    "Ingest scored publications (POST)",
			"/ingest/embeddings":      "Embed stored publications (POST)",
			"/feedback":               "Record a signed digest vote",
			"/search/similar/{id}":    "Publications similar to a stored one",
			"/search/status":          "Semantic search availability",
			"/calibration/next":       "Next calibration item for an evaluator",
			"/calibration/submit":     "Submit a calibration rating (POST)",
			"/calibration/stats":      "Calibration progress",
			"/calibration/export":     "Export ratings as csv or jsonl",
			"/calibration/items":      "List calibration items",
			"/calibration/items/seed": "Seed calibration items (POST)",
		},
		"examples": map[string]string{
			"daily_must_reads":  "/api/must-reads?mode=daily",
			"weekly_must_reads": "/api/must-reads?mode=weekly",
			"daily_report":      "/report?mode=daily",
			"weekly_manifest":   "/manifest?mode=weekly",
		},
	})
}

type artifactHealth struct {
	Backend   string `json:"backend"`
	Connected bool   `json:"connected"`
	Error     string `json:"error,omitempty"`
}

type healthResponse struct {
	Status        string          `json:"status"`
	Database      string          `json:"database"`
	DatabaseError string          `json:"database_error,omitempty"`
	ArtifactStore *artifactHealth `json:"artifact_store"`
}

// handleHealth checks the database and the artifact store. It always answers
// 200 and reports failures in the body.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: statusHealthy, Database: "connected"}

	if err := s.store.Ping(r.Context()); err != nil {
		s.logger.Warn().Err(err).Msg("health check: database ping failed")

		resp.Status = statusUnhealthy
		resp.Database = "error"
		resp.DatabaseError = err.Error()
	}

	if s.resolver != nil {
		store := s.resolver.Store()
		ah := &artifactHealth{Backend: store.Backend(), Connected: true}

		if err := store.Check(r.Context()); err != nil {
			s.logger.Warn().Err(err).Msg("health check: artifact store unreachable")

			resp.Status = statusUnhealthy
			ah.Connected = false
			ah.Error = err.Error()
		}

		resp.ArtifactStore = ah
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleFeedback verifies a signed digest link and records the vote.
func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	setPageHeaders(w)

	if s.feedback == nil {
		s.renderError(w, http.StatusServiceUnavailable, "Unavailable", feedback.UserMessage(feedback.ErrNotConfigured))
		return
	}

	fb, err := s.feedback.Record(r.Context(), r.URL.Query(), feedback.Client{
		IP:        clientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		code, title := feedbackErrorStatus(err)
		if code >= http.StatusInternalServerError {
			s.logger.Error().Err(err).Msg("Failed to record feedback")
		}

		s.renderError(w, code, title, feedback.UserMessage(err))

		return
	}

	observability.FeedbackVotes.WithLabelValues(fb.Vote).Inc()

	if err := s.renderer.RenderFeedback(w, &FeedbackData{
		Vote:          fb.Vote,
		PublicationID: fb.PublicationID,
		WeekStart:     fb.WeekStart.Format("2006-01-02"),
		WeekEnd:       fb.WeekEnd.Format("2006-01-02"),
	}); err != nil {
		s.logger.Error().Err(err).Msg("Failed to render feedback page")
	}
}

func feedbackErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, feedback.ErrInvalidSignature):
		return http.StatusForbidden, "Invalid Link"
	case errors.Is(err, feedback.ErrExpired):
		return http.StatusGone, "Link Expired"
	case errors.Is(err, feedback.ErrNotConfigured):
		return http.StatusServiceUnavailable, "Unavailable"
	case errors.Is(err, feedback.ErrMissingParams),
		errors.Is(err, feedback.ErrInvalidVote),
		errors.Is(err, feedback.ErrInvalidWeek),
		errors.Is(err, feedback.ErrInvalidTimestamp):
		return http.StatusBadRequest, "Bad Request"
	default:
		return http.StatusInternalServerError, "Error"
	}
}

// clientIP returns the first X-Forwarded-For entry, else the remote address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}

	return r.RemoteAddr
}

// handleCalibrationUI serves the single-page rating tool.
func (s *Server) handleCalibrationUI(w http.ResponseWriter, _ *http.Request) {
	setPageHeaders(w)

	if err := s.renderer.RenderCalibration(w, &CalibrationData{Strategy: string(calibration.StrategyGoldFirst)}); err != nil {
		s.logger.Error().Err(err).Msg("Failed to render calibration page")
	}
}
