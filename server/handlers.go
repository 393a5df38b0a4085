package server

import (
	"net/http"

	"github.com/teranos/newsdesk/articles"
	"github.com/teranos/newsdesk/errors"
	"github.com/teranos/newsdesk/logger"
	"github.com/teranos/newsdesk/pulse/async"
	"github.com/teranos/newsdesk/version"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// Actions accepted by POST /api/enrich
const (
	ActionPreview = "preview"
	ActionStart   = "start"
	ActionStatus  = "status"
	ActionCancel  = "cancel"
)

// enrichRequest is the body of POST /api/enrich. Which fields apply depends on Action.
type enrichRequest struct {
	Action string          `json:"action"`
	ItemID string          `json:"itemId,omitempty"`
	JobID  string          `json:"jobId,omitempty"`
	Filter articles.Filter `json:"filter"`
}

// JobListResponse is the body of GET /api/enrich/jobs
type JobListResponse struct {
	Jobs  []*async.Job `json:"jobs"`
	Count int          `json:"count"`
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status      string            `json:"status"`
	Version     string            `json:"version"`
	RunningJobs int               `json:"running_jobs"`
	Watchers    int               `json:"watchers"`
	Queue       *async.QueueStats `json:"queue,omitempty"`
}

// HandleEnrichAction dispatches POST /api/enrich to the controller
func (s *Server) HandleEnrichAction(w http.ResponseWriter, r *http.Request) {
	var req enrichRequest
	if err := readJSON(w, r, &req); err != nil {
		s.writeErr(w, r, err)
		return
	}

	ctx := r.Context()
	s.logger.Debugw("Enrich action", logger.FieldAction, req.Action, logger.FieldItemID, req.ItemID, logger.FieldJobID, shortID(req.JobID))

	var (
		result interface{}
		err    error
	)
	switch req.Action {
	case ActionPreview:
		result, err = s.controller.Preview(ctx, req.ItemID)
	case ActionStart:
		result, err = s.controller.Start(ctx, req.Filter)
	case ActionStatus:
		result, err = s.controller.Status(ctx, req.JobID)
	case ActionCancel:
		result, err = s.controller.Cancel(ctx, req.JobID)
	default:
		err = errors.WithHint(
			errors.NewInvalidRequestError("unknown action %q", req.Action),
			"Use one of: preview, start, status, cancel")
	}
	if err != nil {
		s.writeErr(w, r, err)
		return
	}

	status := http.StatusOK
	if req.Action == ActionStart {
		status = http.StatusAccepted
	}
	writeJSON(w, status, result)
}

// HandleListJobs serves GET /api/enrich/jobs?status=&limit=
func (s *Server) HandleListJobs(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultListLimit)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	if limit == 0 || limit > maxListLimit {
		limit = maxListLimit
	}

	var status *async.JobStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		st := async.JobStatus(raw)
		status = &st
	}

	jobs, err := s.controller.List(r.Context(), status, limit)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	if jobs == nil {
		jobs = []*async.Job{}
	}
	writeJSON(w, http.StatusOK, JobListResponse{Jobs: jobs, Count: len(jobs)})
}

// HandleGetJob serves GET /api/enrich/jobs/{id}
func (s *Server) HandleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.controller.Status(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// HandleHealth reports liveness. It needs no credentials.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	state := s.getState()
	resp := HealthResponse{
		Status:  "ok",
		Version: version.Get().Short(),
	}
	if state != ServerStateRunning {
		resp.Status = state.String()
	}
	resp.Watchers = int(s.watchers.Load())
	if s.pool != nil {
		resp.RunningJobs = len(s.pool.Running())
	}
	if stats, err := s.queue.GetStats(); err == nil {
		resp.Queue = stats
	} else {
		s.logger.Warnw("Failed to read queue stats", logger.FieldError, err)
	}

	code := http.StatusOK
	if state != ServerStateRunning {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}
