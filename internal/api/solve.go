package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/raman-lab/fcpr/internal/httputil"
	"github.com/raman-lab/fcpr/internal/search"
	"github.com/raman-lab/fcpr/internal/store"
)

// SolveRequest is the body of POST /api/solve. Omitted optional fields use
// the server configuration.
type SolveRequest struct {
	R1        *float64          `json:"r1"`
	R2        *float64          `json:"r2"`
	I1        *float64          `json:"i1"`
	I2        *float64          `json:"i2"`
	Tolerance float64           `json:"tolerance,omitempty"`
	Mode      string            `json:"mode,omitempty"`
	Theta     *search.RangeSpec `json:"theta,omitempty"`
	Chi       *search.RangeSpec `json:"chi,omitempty"`
	Refine    *int              `json:"refine,omitempty"`
}

// SolveResponse carries the search result and, when persisted, its run ID.
type SolveResponse struct {
	RunID  string         `json:"run_id,omitempty"`
	Found  bool           `json:"found"`
	Result *search.Result `json:"result"`
}

func (s *Server) buildSearch(req SolveRequest) (search.Target, search.Grid, search.Options, error) {
	for name, v := range map[string]*float64{"r1": req.R1, "r2": req.R2, "i1": req.I1, "i2": req.I2} {
		if v == nil {
			return search.Target{}, search.Grid{}, search.Options{}, fmt.Errorf("missing required field %q", name)
		}
	}

	target := search.Target{R1: *req.R1, R2: *req.R2, I1: *req.I1, I2: *req.I2, Tolerance: req.Tolerance}
	if target.Tolerance == 0 {
		target.Tolerance = s.cfg.GetTolerance()
	}

	grid := s.cfg.GetGrid()
	if req.Theta != nil {
		grid.Theta = *req.Theta
	}
	if req.Chi != nil {
		grid.Chi = *req.Chi
	}

	opts := s.cfg.SearchOptions()
	if req.Mode != "" {
		mode, err := search.ParseMode(req.Mode)
		if err != nil {
			return target, grid, opts, err
		}
		opts.Mode = mode
	}
	if req.Refine != nil {
		opts.Refine = *req.Refine
	}
	return target, grid, opts, nil
}

func (s *Server) handleSolve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	var req SolveRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		httputil.BadRequest(w, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	target, grid, opts, err := s.buildSearch(req)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	res, err := search.Solve(r.Context(), target, grid, opts)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, search.ErrInvalidTarget) || errors.Is(err, search.ErrInvalidRange) {
			status = http.StatusBadRequest
		}
		httputil.WriteJSONError(w, status, fmt.Sprintf("Search failed: %v", err))
		return
	}

	resp := SolveResponse{Found: res.Found(), Result: res}
	if s.runs != nil {
		run := store.NewRun(store.KindSolve, "", -1, res)
		if err := s.runs.Insert(run); err != nil {
			httputil.InternalServerError(w, fmt.Sprintf("Failed to save run: %v", err))
			return
		}
		resp.RunID = run.RunID
	}
	httputil.WriteJSONOK(w, resp)
}
