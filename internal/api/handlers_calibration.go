package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lueurxax/acitrack/internal/core/calibration"
	"github.com/lueurxax/acitrack/internal/core/domain"
	apperrors "github.com/lueurxax/acitrack/internal/core/errors"
	"github.com/lueurxax/acitrack/internal/platform/observability"
)

const (
	submitStatusOK    = "ok"
	submitStatusError = "error"
)

type calibrationItemResponse struct {
	CalibrationItemID   string      `json:"calibration_item_id"`
	PublicationID       string      `json:"publication_id"`
	Title               string      `json:"title"`
	Source              string      `json:"source"`
	PublishedDate       *string     `json:"published_date"`
	URL                 string      `json:"url,omitempty"`
	Abstract            string      `json:"abstract,omitempty"`
	FinalRelevancyScore *float64    `json:"final_relevancy_score"`
	FinalSummary        string      `json:"final_summary"`
	RunID               string      `json:"run_id"`
	Mode                string      `json:"mode"`
	Tags                domain.Tags `json:"tags"`
}

type calibrationListEntry struct {
	ID                  string      `json:"id"`
	PublicationID       string      `json:"publication_id"`
	Title               string      `json:"title"`
	Source              string      `json:"source"`
	FinalRelevancyScore *float64    `json:"final_relevancy_score"`
	Tags                domain.Tags `json:"tags"`
	CreatedAt           time.Time   `json:"created_at"`
}

type calibrationListResponse struct {
	Total int                    `json:"total"`
	Items []calibrationListEntry `json:"items"`
}

func newCalibrationItemResponse(item *domain.CalibrationItem) calibrationItemResponse {
	resp := calibrationItemResponse{
		CalibrationItemID:   item.ID,
		PublicationID:       item.PublicationID,
		Title:               item.Title,
		Source:              item.Source,
		URL:                 item.URL,
		Abstract:            item.Abstract,
		FinalRelevancyScore: item.FinalRelevancyScore,
		FinalSummary:        item.FinalSummary,
		RunID:               item.RunID,
		Mode:                item.Mode,
		Tags:                item.Tags,
	}

	if item.PublishedDate != nil {
		d := item.PublishedDate.Format(time.RFC3339)
		resp.PublishedDate = &d
	}

	if resp.Tags == nil {
		resp.Tags = domain.Tags{}
	}

	return resp
}

// requireCalibration rejects the request when the service is not wired.
func (s *Server) requireCalibration(w http.ResponseWriter, r *http.Request) bool {
	if s.calibration == nil {
		s.fail(w, r, errNotConfigured)
		return false
	}

	return true
}

func (s *Server) handleSeed(w http.ResponseWriter, r *http.Request) {
	if !s.requireCalibration(w, r) {
		return
	}

	var req calibration.SeedRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	res, err := s.calibration.Seed(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleSeedMustReads(w http.ResponseWriter, r *http.Request) {
	if !s.requireCalibration(w, r) {
		return
	}

	var req calibration.SeedMustReadsRequest

	// The body is optional here: an empty POST seeds the latest run.
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			s.fail(w, r, err)
			return
		}
	}

	res, err := s.calibration.SeedFromMustReads(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// handleNext answers with the next unrated item, or null when none is left.
func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	if !s.requireCalibration(w, r) {
		return
	}

	evaluator := strings.TrimSpace(r.URL.Query().Get("evaluator"))
	if evaluator == "" {
		s.fail(w, r, fmt.Errorf("evaluator is required: %w", apperrors.ErrValidation))
		return
	}

	strategy, err := calibration.ParseStrategy(r.URL.Query().Get("strategy"))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	item, err := s.calibration.Next(r.Context(), evaluator, strategy)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if item == nil {
		writeJSON(w, http.StatusOK, nil)
		return
	}

	writeJSON(w, http.StatusOK, newCalibrationItemResponse(item))
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if !s.requireCalibration(w, r) {
		return
	}

	var req calibration.SubmitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	res, err := s.calibration.Submit(r.Context(), req)
	if err != nil {
		observability.CalibrationSubmissions.WithLabelValues(submitStatusError).Inc()
		s.fail(w, r, err)

		return
	}

	observability.CalibrationSubmissions.WithLabelValues(submitStatusOK).Inc()
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleCalibrationStats(w http.ResponseWriter, r *http.Request) {
	if !s.requireCalibration(w, r) {
		return
	}

	stats, err := s.calibration.Stats(r.Context(), strings.TrimSpace(r.URL.Query().Get("evaluator")))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// handleExport streams every evaluation as csv or jsonl.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if !s.requireCalibration(w, r) {
		return
	}

	format, err := calibration.ParseExportFormat(r.URL.Query().Get("format"))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	rows, err := s.calibration.Export(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}

	w.Header().Set(headerContentType, format.ContentType())
	w.Header().Set(headerContentDisposition, "attachment; filename="+format.Filename())
	w.WriteHeader(http.StatusOK)

	if err := calibration.WriteExport(w, format, rows); err != nil {
		s.logger.Error().Err(err).Msg("Failed to write calibration export")
	}
}

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	if !s.requireCalibration(w, r) {
		return
	}

	limit, err := queryInt(r, "limit", calibration.DefaultItemLimit)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	goldOnly, err := queryBool(r, "gold_only", false)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	items, total, err := s.calibration.ListItems(r.Context(), limit, offset, goldOnly)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	resp := calibrationListResponse{Total: total, Items: make([]calibrationListEntry, 0, len(items))}
	for i := range items {
		it := &items[i]

		tags := it.Tags
		if tags == nil {
			tags = domain.Tags{}
		}

		resp.Items = append(resp.Items, calibrationListEntry{
			ID:                  it.ID,
			PublicationID:       it.PublicationID,
			Title:               it.Title,
			Source:              it.Source,
			FinalRelevancyScore: it.FinalRelevancyScore,
			Tags:                tags,
			CreatedAt:           it.CreatedAt,
		})
	}

	observeResultSize(r, len(resp.Items))
	writeJSON(w, http.StatusOK, resp)
}
