package api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/raman-lab/fcpr/internal/httputil"
	"github.com/raman-lab/fcpr/internal/report"
	"github.com/raman-lab/fcpr/internal/search"
	"github.com/raman-lab/fcpr/internal/store"
)

// maxListLimit caps ?limit on GET /api/runs.
const maxListLimit = 500

func (s *Server) requireStore(w http.ResponseWriter) bool {
	if s.runs == nil {
		httputil.NotFound(w, "Run storage is not configured")
		return false
	}
	return true
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if !s.requireStore(w) {
		return
	}

	limit := store.DefaultListLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 || parsed > maxListLimit {
			httputil.BadRequest(w, "Invalid 'limit' parameter")
			return
		}
		limit = parsed
	}

	runs, err := s.runs.List(limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to retrieve runs: %v", err))
		return
	}
	if runs == nil {
		runs = []*store.Run{}
	}
	httputil.WriteJSONOK(w, runs)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.getRun(w, r)
	case http.MethodDelete:
		s.deleteRun(w, r)
	default:
		httputil.MethodNotAllowed(w)
	}
}

func (s *Server) lookupRun(w http.ResponseWriter, r *http.Request) (*store.Run, bool) {
	if !s.requireStore(w) {
		return nil, false
	}
	run, err := s.runs.Get(r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		httputil.NotFound(w, "Run not found")
		return nil, false
	}
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to retrieve run: %v", err))
		return nil, false
	}
	return run, true
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookupRun(w, r)
	if !ok {
		return
	}
	httputil.WriteJSONOK(w, run)
}

func (s *Server) deleteRun(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	err := s.runs.Delete(r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		httputil.NotFound(w, "Run not found")
		return
	}
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to delete run: %v", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// runChart renders the residual landscape of a stored run as HTML.
func (s *Server) runChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	run, ok := s.lookupRun(w, r)
	if !ok {
		return
	}

	surface, err := search.Landscape(r.Context(), run.Target, run.Grid, s.cfg.GetWorkers())
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to compute residual map: %v", err))
		return
	}

	var buf bytes.Buffer
	title := fmt.Sprintf("Run %s", run.RunID)
	if err := report.HTML(&buf, surface, run.Solutions, report.HTMLOptions{Title: title, AssetsHost: s.cfg.GetAssetsHost()}); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
