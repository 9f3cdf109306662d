package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lueurxax/acitrack/internal/core/search"
)

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.search == nil {
		s.fail(w, r, search.ErrSearchUnavailable)
		return
	}

	p := search.Params{
		Query:    r.URL.Query().Get("q"),
		DateFrom: queryString(r, "date_from", ""),
		DateTo:   queryString(r, "date_to", ""),
	}

	var err error

	if p.Limit, err = queryInt(r, "limit", search.DefaultLimit); err != nil {
		s.fail(w, r, err)
		return
	}

	if p.MinRelevancy, err = queryIntPtr(r, "min_relevancy"); err != nil {
		s.fail(w, r, err)
		return
	}

	if p.MinCredibility, err = queryIntPtr(r, "min_credibility"); err != nil {
		s.fail(w, r, err)
		return
	}

	resp, err := s.search.Search(r.Context(), p)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	observeResultSize(r, resp.Count)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSearchStatus(w http.ResponseWriter, r *http.Request) {
	if s.search == nil {
		writeJSON(w, http.StatusOK, search.Status{})
		return
	}

	st, err := s.search.Status(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	if s.search == nil {
		s.fail(w, r, search.ErrSearchUnavailable)
		return
	}

	limit, err := queryInt(r, "limit", search.DefaultLimit)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	resp, err := s.search.Similar(r.Context(), chi.URLParam(r, "publication_id"), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	observeResultSize(r, resp.Count)
	writeJSON(w, http.StatusOK, resp)
}
