package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	apperrors "github.com/lueurxax/acitrack/internal/core/errors"
	"github.com/lueurxax/acitrack/internal/ingest"
)

const maxIngestBatch = 1000

// decodeBatch accepts either {"<key>": [...]} or a bare JSON array.
func decodeBatch[T any](w http.ResponseWriter, r *http.Request, key string) ([]T, error) {
	var raw json.RawMessage
	if err := decodeJSON(w, r, &raw); err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(raw)

	if len(trimmed) > 0 && trimmed[0] == '{' {
		var wrapped map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &wrapped); err != nil {
			return nil, fmt.Errorf("%w: %w", errInvalidBody, err)
		}

		inner, ok := wrapped[key]
		if !ok {
			return nil, fmt.Errorf("body must contain %q: %w", key, apperrors.ErrValidation)
		}

		trimmed = inner
	}

	var items []T
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, fmt.Errorf("%w: %w", errInvalidBody, err)
	}

	if len(items) == 0 {
		return nil, fmt.Errorf("%s must not be empty: %w", key, apperrors.ErrValidation)
	}

	if len(items) > maxIngestBatch {
		return nil, fmt.Errorf("at most %d %s per request: %w", maxIngestBatch, key, apperrors.ErrValidation)
	}

	return items, nil
}

func (s *Server) requireIngest(w http.ResponseWriter, r *http.Request) bool {
	if s.ingest == nil {
		s.fail(w, r, errNotConfigured)
		return false
	}

	return true
}

func (s *Server) handleIngestRuns(w http.ResponseWriter, r *http.Request) {
	if !s.requireIngest(w, r) {
		return
	}

	runs, err := decodeBatch[ingest.RunPayload](w, r, "runs")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, s.ingest.IngestRuns(r.Context(), runs))
}

func (s *Server) handleIngestPublications(w http.ResponseWriter, r *http.Request) {
	if !s.requireIngest(w, r) {
		return
	}

	pubs, err := decodeBatch[ingest.PublicationPayload](w, r, "publications")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, s.ingest.IngestPublications(r.Context(), pubs))
}

type embedRequest struct {
	PublicationIDs []string `json:"publication_ids"`
}

// handleIngestEmbeddings embeds already stored publications by id.
func (s *Server) handleIngestEmbeddings(w http.ResponseWriter, r *http.Request) {
	if !s.requireIngest(w, r) {
		return
	}

	var req embedRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	if len(req.PublicationIDs) > maxIngestBatch {
		s.fail(w, r, fmt.Errorf("at most %d publication_ids per request: %w", maxIngestBatch, apperrors.ErrValidation))
		return
	}

	res, err := s.ingest.EmbedPublications(r.Context(), req.PublicationIDs)
	if err != nil {
		if errors.Is(err, ingest.ErrNoEmbedder) {
			s.logger.Warn().Msg("embedding requested without a configured provider")
		}

		s.fail(w, r, err)

		return
	}

	writeJSON(w, http.StatusOK, res)
}
