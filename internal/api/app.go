// Package api exposes matching over HTTP and MCP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mohammedpatel29/ReelResumeBuilderMP1/internal/matching"
	"github.com/mohammedpatel29/ReelResumeBuilderMP1/internal/storage"
	"github.com/mohammedpatel29/ReelResumeBuilderMP1/internal/talent"
	"github.com/mohammedpatel29/ReelResumeBuilderMP1/internal/worker"
)

const maxRequestBodySize = 1 << 20 // 1MB

// MatchService runs a match for a stored posting. *matching.Service implements it.
type MatchService interface {
	MatchJob(ctx context.Context, jobID int64, threshold *float64) (*matching.Report, error)
}

type AppDeps struct {
	Store    *storage.Store
	Matching MatchService
	Token    string
	Logger   *slog.Logger
}

// NewAppHandler returns the JSON API. Everything except /health requires the
// bearer token.
func NewAppHandler(deps AppDeps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Get("/health", handleHealth(deps))

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Get("/stats", handleStats(deps))

		r.Get("/jobs", handleListJobs(deps))
		r.Post("/jobs", handleCreateJob(deps))
		r.Get("/jobs/{id}", handleGetJob(deps))
		r.Patch("/jobs/{id}/status", handleJobStatus(deps))
		r.Post("/jobs/{id}/match", handleMatch(deps))
		r.Post("/jobs/{id}/match/async", handleMatchAsync(deps))
		r.Get("/jobs/{id}/matches", handleListMatches(deps))

		r.Patch("/matches/{id}", handleMatchStatus(deps))

		r.Post("/candidates", handleCreateCandidate(deps))
		r.Get("/candidates/{id}", handleGetCandidate(deps))
		r.Delete("/candidates/{id}", handleDeleteCandidate(deps))

		r.Get("/queue/{id}", handleGetQueueJob(deps))
	})

	return r
}

func handleHealth(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Store.Ping(r.Context()); err != nil {
			httpError(w, http.StatusServiceUnavailable, "api_error", "database unavailable: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func handleStats(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := deps.Store.Stats(r.Context())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to read stats: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

func handleListJobs(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := talent.JobStatus(r.URL.Query().Get("status"))
		if status != "" && !status.Valid() {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "unknown status %q", status)
			return
		}
		jobs, err := deps.Store.ListJobPostings(r.Context(), status)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list job postings: %v", err)
			return
		}
		out := make([]JobPostingView, 0, len(jobs))
		for _, j := range jobs {
			out = append(out, postingView(j))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func handleCreateJob(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req JobPostingRequest
		if !decodeBody(w, r, &req, false) {
			return
		}
		job, err := deps.Store.CreateJobPosting(r.Context(), req.posting())
		if err != nil {
			writeDomainError(w, "job posting", err)
			return
		}
		writeJSON(w, http.StatusCreated, postingView(job))
	}
}

func handleGetJob(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r)
		if !ok {
			return
		}
		job, err := deps.Store.GetJobPosting(r.Context(), id)
		if err != nil {
			writeDomainError(w, "job posting", err)
			return
		}
		writeJSON(w, http.StatusOK, postingView(job))
	}
}

type statusRequest struct {
	Status string `json:"status"`
}

func handleJobStatus(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r)
		if !ok {
			return
		}
		var req statusRequest
		if !decodeBody(w, r, &req, false) {
			return
		}
		status := talent.JobStatus(req.Status)
		if !status.Valid() {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "unknown status %q", req.Status)
			return
		}
		job, err := deps.Store.UpdateJobStatus(r.Context(), id, status)
		if err != nil {
			writeDomainError(w, "job posting", err)
			return
		}
		writeJSON(w, http.StatusOK, postingView(job))
	}
}

type matchRequest struct {
	Threshold *float64 `json:"threshold"`
}

func handleMatch(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r)
		if !ok {
			return
		}
		var req matchRequest
		if !decodeBody(w, r, &req, true) {
			return
		}
		rep, err := deps.Matching.MatchJob(r.Context(), id, req.Threshold)
		if err != nil {
			deps.Logger.Warn("match request failed", "job_posting_id", id, "error", err)
			writeDomainError(w, "job posting", err)
			return
		}
		writeJSON(w, http.StatusOK, reportView(rep))
	}
}

func handleMatchAsync(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r)
		if !ok {
			return
		}
		var req matchRequest
		if !decodeBody(w, r, &req, true) {
			return
		}
		if req.Threshold != nil && (*req.Threshold < 0 || *req.Threshold > 1) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", matching.ErrInvalidThreshold)
			return
		}
		if _, err := deps.Store.GetJobPosting(r.Context(), id); err != nil {
			writeDomainError(w, "job posting", err)
			return
		}

		job, err := worker.NewMatchJob(id, req.Threshold)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to create job payload: %v", err)
			return
		}
		jobID, err := deps.Store.EnqueueJob(r.Context(), job)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to enqueue job: %v", err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{
			"id":     jobID,
			"status": "queued",
		})
	}
}

func handleListMatches(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r)
		if !ok {
			return
		}
		status := talent.MatchStatus(r.URL.Query().Get("status"))
		if status != "" && !status.Valid() {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "unknown status %q", status)
			return
		}
		if _, err := deps.Store.GetJobPosting(r.Context(), id); err != nil {
			writeDomainError(w, "job posting", err)
			return
		}
		limit := parseIntParam(r, "limit", 50, 500)

		matches, err := deps.Store.ListMatches(r.Context(), id, status, limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list matches: %v", err)
			return
		}
		out := make([]MatchView, 0, len(matches))
		for _, m := range matches {
			out = append(out, matchView(m))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func handleMatchStatus(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var req statusRequest
		if !decodeBody(w, r, &req, false) {
			return
		}
		m, err := deps.Store.SetMatchStatus(r.Context(), id, talent.MatchStatus(req.Status))
		if err != nil {
			writeDomainError(w, "match", err)
			return
		}
		writeJSON(w, http.StatusOK, matchView(m))
	}
}

func handleCreateCandidate(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CandidateRequest
		if !decodeBody(w, r, &req, false) {
			return
		}
		c, err := deps.Store.CreateCandidate(r.Context(), req.candidate())
		if err != nil {
			writeDomainError(w, "candidate", err)
			return
		}
		writeJSON(w, http.StatusCreated, candidateView(c))
	}
}

func handleGetCandidate(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r)
		if !ok {
			return
		}
		c, err := deps.Store.GetCandidate(r.Context(), id)
		if err != nil {
			writeDomainError(w, "candidate", err)
			return
		}
		writeJSON(w, http.StatusOK, candidateView(c))
	}
}

func handleDeleteCandidate(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r)
		if !ok {
			return
		}
		if err := deps.Store.DeleteCandidate(r.Context(), id); err != nil {
			writeDomainError(w, "candidate", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

type queueJobView struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Status    string `json:"status"`
	Attempts  int    `json:"attempts"`
	LastError string `json:"last_error,omitempty"`
}

func handleGetQueueJob(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, err := deps.Store.GetJob(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeDomainError(w, "queued job", err)
			return
		}
		writeJSON(w, http.StatusOK, queueJobView{
			ID:        job.ID,
			Type:      job.Type,
			Status:    job.Status,
			Attempts:  job.Attempts,
			LastError: job.LastError,
		})
	}
}

// decodeBody reads a JSON body into v. With optional set, an empty body is
// accepted and leaves v untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, v any, optional bool) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()

	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || (optional && errors.Is(err, io.EOF)) {
		return true
	}
	httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
	return false
}

func idParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid id %q", chi.URLParam(r, "id"))
		return 0, false
	}
	return id, true
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v <= 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}
