package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/matzehuels/mallows/pkg/buildinfo"
	"github.com/matzehuels/mallows/pkg/errors"
	"github.com/matzehuels/mallows/pkg/pipeline"
	"github.com/matzehuels/mallows/pkg/render"
	"github.com/matzehuels/mallows/pkg/tracking"
)

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status string         `json:"status"`
	Build  buildinfo.Info `json:"build"`
}

// RunResponse is the body of POST /v1/runs.
type RunResponse struct {
	Run       *tracking.Run     `json:"run"`
	Cached    bool              `json:"cached"`
	Artifacts map[string][]byte `json:"artifacts,omitempty"`
}

// ListResponse is the body of GET /v1/runs.
type ListResponse struct {
	Runs []*tracking.Run `json:"runs"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Build: buildinfo.Get()})
}

func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var opts pipeline.Options
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&opts); err != nil {
		s.writeError(w, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode request"))
		return
	}
	if opts.Path != "" {
		s.writeError(w, errors.New(errors.ErrCodeInvalidInput, "path is not accepted over HTTP; use problem or source"))
		return
	}
	opts.DataDir = s.cfg.DataDir

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.MaxRunTime)
	defer cancel()

	res, err := s.runner.Execute(ctx, opts)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, RunResponse{
		Run:       res.Run.Summary(),
		Cached:    res.CacheInfo.RunHit,
		Artifacts: res.Artifacts,
	})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := tracking.ListOptions{
		Problem: q.Get("problem"),
		Status:  tracking.Status(q.Get("status")),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeError(w, errors.New(errors.ErrCodeInvalidInput, "invalid limit %q", v))
			return
		}
		opts.Limit = n
	}
	runs, err := s.store.List(r.Context(), opts)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if runs == nil {
		runs = []*tracking.Run{}
	}
	writeJSON(w, http.StatusOK, ListResponse{Runs: runs})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleTourSVG(w http.ResponseWriter, r *http.Request) {
	run, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if len(run.Tour) == 0 {
		s.writeError(w, errors.New(errors.ErrCodeNotFound, "run %s has no tour yet", run.ID))
		return
	}
	inst, err := pipeline.InstanceForRun(s.cfg.DataDir, "", run)
	if err != nil {
		s.writeError(w, err)
		return
	}
	artifacts, err := s.runner.Render(r.Context(), inst, run, []string{render.FormatSVG}, render.Options{})
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(artifacts[render.FormatSVG])
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := errors.HTTPStatus(err)
	switch {
	case stderrors.Is(err, tracking.ErrNotFound):
		status = http.StatusNotFound
	case stderrors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	case stderrors.Is(err, context.Canceled):
		status = 499
	}
	var maxErr *http.MaxBytesError
	if stderrors.As(err, &maxErr) {
		status = http.StatusRequestEntityTooLarge
	}
	if status >= http.StatusInternalServerError {
		s.cfg.Logger.Error("request failed", "err", err)
	}
	writeJSON(w, status, ErrorResponse{Error: errors.UserMessage(err), Code: string(errors.GetCode(err))})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
