package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/lueurxax/acitrack/internal/artifacts"
	"github.com/lueurxax/acitrack/internal/core/domain"
	apperrors "github.com/lueurxax/acitrack/internal/core/errors"
	"github.com/lueurxax/acitrack/internal/core/mustreads"
)

const manifestRecommendation = "Update pipeline to include drive_file_ids and drive_output_paths in manifest"

var errNoArtifactStore = fmt.Errorf("%w: %w", artifacts.ErrNoStore, apperrors.ErrUnavailable)

// resolveRunFile loads the latest run for the mode in the query and resolves fileKey.
func (s *Server) resolveRunFile(ctx context.Context, r *http.Request, fileKey string) ([]byte, *artifacts.LatestRun, *artifacts.Resolution, error) {
	if s.resolver == nil {
		return nil, nil, nil, errNoArtifactStore
	}

	run, err := s.resolver.LoadLatestRun(ctx, queryString(r, "mode", domain.ModeDaily))
	if err != nil {
		return nil, nil, nil, err
	}

	content, res, err := s.resolver.Resolve(ctx, fileKey, run)
	if err != nil {
		return nil, nil, nil, err
	}

	return content, run, res, nil
}

func setResolutionHeaders(w http.ResponseWriter, r *http.Request, res *artifacts.Resolution) error {
	debug, err := queryBool(r, "debug", false)
	if err != nil {
		return err
	}

	if debug && res != nil {
		w.Header().Set(headerResolutionMethod, res.Method)
		w.Header().Set(headerResolvedPath, res.Path)
	}

	return nil
}

// serveRunFile writes a resolved run file with its media type.
func (s *Server) serveRunFile(w http.ResponseWriter, r *http.Request, fileKey, contentType string, extra map[string]string) {
	content, _, res, err := s.resolveRunFile(r.Context(), r, fileKey)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if err := setResolutionHeaders(w, r, res); err != nil {
		s.fail(w, r, err)
		return
	}

	for k, v := range extra {
		w.Header().Set(k, v)
	}

	w.Header().Set(headerContentType, contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(content)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	s.serveRunFile(w, r, artifacts.KeyReport, contentTypeMarkdown, nil)
}

func (s *Server) handleNew(w http.ResponseWriter, r *http.Request) {
	mode := queryString(r, "mode", domain.ModeDaily)
	s.serveRunFile(w, r, artifacts.KeyNew, contentTypeCSV, map[string]string{
		headerContentDisposition: fmt.Sprintf("inline; filename=new_%s.csv", mode),
	})
}

// handleSummaries re-encodes the summaries file so malformed JSON is caught here.
func (s *Server) handleSummaries(w http.ResponseWriter, r *http.Request) {
	content, _, res, err := s.resolveRunFile(r.Context(), r, artifacts.KeySummaries)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var doc any
	if err := json.Unmarshal(content, &doc); err != nil {
		s.fail(w, r, fmt.Errorf("invalid JSON in summaries file: %w", err))
		return
	}

	if err := setResolutionHeaders(w, r, res); err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

// handleManifest returns the latest manifest, prefixed with warnings about
// missing location fields unless include_warnings=false.
func (s *Server) handleManifest(w http.ResponseWriter, r *http.Request) {
	includeWarnings, err := queryBool(r, "include_warnings", true)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if s.resolver == nil {
		s.fail(w, r, errNoArtifactStore)
		return
	}

	run, err := s.resolver.LoadLatestRun(r.Context(), queryString(r, "mode", domain.ModeDaily))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	warnings := run.Manifest.Warnings()
	if !includeWarnings || len(warnings) == 0 {
		writeJSON(w, http.StatusOK, run.Manifest)
		return
	}

	out := make(map[string]any, len(run.Manifest.Raw)+2)
	for k, v := range run.Manifest.Raw {
		out[k] = v
	}

	out["_warnings"] = warnings
	out["_recommendation"] = manifestRecommendation

	writeJSON(w, http.StatusOK, out)
}

type mustReadsQuery struct {
	mode  string
	runID string
	debug bool
	opts  mustreads.Options
}

func parseMustReadsQuery(r *http.Request) (mustReadsQuery, error) {
	q := mustReadsQuery{
		mode:  queryString(r, "mode", domain.ModeDaily),
		runID: queryString(r, "run_id", ""),
		opts:  mustreads.DefaultOptions(),
	}

	var err error

	if q.opts.Limit, err = queryInt(r, "limit", mustreads.DefaultLimit); err != nil {
		return q, err
	}

	if q.opts.MinRelevance, err = queryInt(r, "min_relevance", mustreads.DefaultMinRelevance); err != nil {
		return q, err
	}

	if q.opts.IncludeZero, err = queryBool(r, "include_zero", false); err != nil {
		return q, err
	}

	if q.debug, err = queryBool(r, "debug", false); err != nil {
		return q, err
	}

	return q, q.opts.Validate()
}

// loadMustReads returns the raw must-reads document: by run id from the
// database, else the latest run of the mode through the artifact store, else
// the latest run of the mode from the database.
func (s *Server) loadMustReads(ctx context.Context, r *http.Request, q mustReadsQuery) ([]byte, string, any, error) {
	if q.runID != "" {
		return s.mustReadsFromDB(ctx, q.runID)
	}

	if s.resolver != nil {
		content, run, res, err := s.resolveRunFile(ctx, r, artifacts.KeyMustReads)
		if err != nil {
			return nil, "", nil, err
		}

		return content, run.RunID, res, nil
	}

	run, err := s.store.LatestRun(ctx, q.mode)
	if err != nil {
		return nil, "", nil, fmt.Errorf("load latest run: %w", err)
	}

	if run == nil {
		return nil, "", nil, fmt.Errorf("no runs found for mode=%s: %w", q.mode, apperrors.ErrNotFound)
	}

	return s.mustReadsFromDB(ctx, run.RunID)
}

func (s *Server) mustReadsFromDB(ctx context.Context, runID string) ([]byte, string, any, error) {
	set, err := s.store.GetMustReads(ctx, runID)
	if err != nil {
		return nil, "", nil, fmt.Errorf("load must-reads: %w", err)
	}

	if set == nil {
		return nil, "", nil, fmt.Errorf("no must-reads found for run_id=%s: %w", runID, apperrors.ErrNotFound)
	}

	return set.Document, runID, map[string]string{"resolution_method": "database", "run_id": runID}, nil
}

// handleMustReads returns normalized, filtered and ranked must-reads.
func (s *Server) handleMustReads(w http.ResponseWriter, r *http.Request) {
	q, err := parseMustReadsQuery(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	content, runID, resolution, err := s.loadMustReads(r.Context(), r, q)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	doc, err := mustreads.ParseDocument(content)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	records := doc.Records()
	ranked := mustreads.FilterAndSort(records, q.opts)

	out := make(map[string]any, len(doc.Metadata)+2)
	for k, v := range doc.Metadata {
		out[k] = v
	}

	out[mustreads.ItemsKey] = ranked

	if q.debug {
		out["_debug"] = map[string]any{
			"total_items_before_filter": len(records),
			"total_items_after_filter":  len(ranked),
			"query_params": map[string]any{
				"limit":         q.opts.Limit,
				"min_relevance": q.opts.MinRelevance,
				"include_zero":  q.opts.IncludeZero,
				"mode":          q.mode,
			},
			"run_id":     runID,
			"resolution": resolution,
		}
	}

	observeResultSize(r, len(ranked))
	writeJSON(w, http.StatusOK, out)
}

// serveLegacy writes a flat artifact through the TTL cache.
func (s *Server) serveLegacy(w http.ResponseWriter, r *http.Request, key, contentType string, extra map[string]string) {
	if s.fetcher == nil {
		s.fail(w, r, errNoArtifactStore)
		return
	}

	f, err := s.fetcher.Get(r.Context(), artifacts.LegacyFiles[key])
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if f.Stale {
		w.Header().Set(headerCacheStatus, "stale")
	}

	if f.Warning != "" {
		w.Header().Set(headerError, f.Warning)
	}

	for k, v := range extra {
		w.Header().Set(k, v)
	}

	w.Header().Set(headerContentType, contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(f.Content)
}

func (s *Server) handleMustReadsMarkdown(w http.ResponseWriter, r *http.Request) {
	s.serveLegacy(w, r, artifacts.LegacyMustMD, contentTypeMarkdown, nil)
}

func (s *Server) handleDBSnapshot(w http.ResponseWriter, r *http.Request) {
	s.serveLegacy(w, r, artifacts.LegacyDBSnapshot, contentTypeGzip, map[string]string{
		headerContentDisposition: "attachment; filename=" + artifacts.LegacyFiles[artifacts.LegacyDBSnapshot],
	})
}

func (s *Server) handleArtifactsStatus(w http.ResponseWriter, r *http.Request) {
	if s.fetcher == nil {
		s.fail(w, r, errNoArtifactStore)
		return
	}

	writeJSON(w, http.StatusOK, s.fetcher.Status(r.Context()))
}
