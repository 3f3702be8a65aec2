// Package worker runs queued match jobs in the background.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mohammedpatel29/ReelResumeBuilderMP1/internal/matching"
	"github.com/mohammedpatel29/ReelResumeBuilderMP1/internal/storage"
	"github.com/mohammedpatel29/ReelResumeBuilderMP1/internal/talent"
)

// JobTypeMatch is the queue type for matching one job posting.
const JobTypeMatch = "match_job"

// MatchPayload is the JSON payload of a match job.
type MatchPayload struct {
	JobPostingID int64    `json:"job_posting_id"`
	Threshold    *float64 `json:"threshold,omitempty"`
}

// NewMatchJob builds a queue entry for matching the given posting.
func NewMatchJob(jobPostingID int64, threshold *float64) (storage.Job, error) {
	payload, err := json.Marshal(MatchPayload{JobPostingID: jobPostingID, Threshold: threshold})
	if err != nil {
		return storage.Job{}, fmt.Errorf("encoding match payload: %w", err)
	}
	return storage.Job{Type: JobTypeMatch, PayloadJSON: string(payload)}, nil
}

// JobStore abstracts the job queue operations.
type JobStore interface {
	ClaimNextJob(ctx context.Context, types []string) (*storage.Job, error)
	CompleteJob(ctx context.Context, id string) error
	FailJob(ctx context.Context, id string, errMsg string) error
	RequeueJob(ctx context.Context, id string) error
	ResetRunningJobs(ctx context.Context) (int64, error)
}

// JobMatcher runs matching for a stored posting. *matching.Service implements it.
type JobMatcher interface {
	MatchJob(ctx context.Context, jobID int64, threshold *float64) (*matching.Report, error)
}

// Worker processes match jobs from the SQLite job queue.
type Worker struct {
	store   JobStore
	matcher JobMatcher
	poll    time.Duration
	logger  *slog.Logger
}

// NewWorker creates a Worker with the given dependencies.
// If pollInterval is <= 0, it defaults to 500ms.
func NewWorker(store JobStore, matcher JobMatcher, pollInterval time.Duration, logger *slog.Logger) *Worker {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		store:   store,
		matcher: matcher,
		poll:    pollInterval,
		logger:  logger,
	}
}

// Run polls for jobs until ctx is cancelled. Jobs left running by a previous
// process are returned to the queue first.
func (w *Worker) Run(ctx context.Context) {
	if n, err := w.store.ResetRunningJobs(ctx); err != nil {
		w.logger.Error("failed to reset abandoned jobs", "error", err)
	} else if n > 0 {
		w.logger.Info("requeued abandoned jobs", "count", n)
	}

	for {
		if ctx.Err() != nil {
			return
		}

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("worker iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and processes a single match job.
// Returns true if a job was processed (regardless of success/failure).
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextJob(ctx, []string{JobTypeMatch})
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	err = w.processJob(ctx, job)

	// The job row must leave the running state even when ctx is done.
	recordCtx := context.WithoutCancel(ctx)
	switch {
	case err == nil:
	case ctx.Err() != nil:
		w.logger.Info("match job interrupted, requeueing", "job_id", job.ID, "error", err)
		if reqErr := w.store.RequeueJob(recordCtx, job.ID); reqErr != nil {
			w.logger.Error("failed to requeue job", "job_id", job.ID, "error", reqErr)
		}
		return true, nil
	case errors.Is(err, talent.ErrPostingClosed), errors.Is(err, talent.ErrNotFound):
		// Retrying cannot help; drop the job.
		w.logger.Info("match job skipped", "job_id", job.ID, "reason", err)
	default:
		w.logger.Warn("job failed", "job_id", job.ID, "error", err)
		if failErr := w.store.FailJob(recordCtx, job.ID, err.Error()); failErr != nil {
			w.logger.Error("failed to mark job as failed", "job_id", job.ID, "error", failErr)
		}
		return true, nil
	}

	if err := w.store.CompleteJob(recordCtx, job.ID); err != nil {
		return true, fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	return true, nil
}

func (w *Worker) processJob(ctx context.Context, job *storage.Job) error {
	var payload MatchPayload
	if err := json.Unmarshal([]byte(job.PayloadJSON), &payload); err != nil {
		return fmt.Errorf("parsing payload: %w", err)
	}
	if payload.JobPostingID <= 0 {
		return fmt.Errorf("payload has no job_posting_id")
	}

	rep, err := w.matcher.MatchJob(ctx, payload.JobPostingID, payload.Threshold)
	if err != nil {
		return err
	}
	// The ranking is only useful to this job once stored.
	if !rep.Persisted {
		return fmt.Errorf("match results for posting %d not persisted: %w", payload.JobPostingID, rep.StoreErr)
	}
	w.logger.Info("match job completed",
		"job_id", job.ID,
		"job_posting_id", payload.JobPostingID,
		"matched", len(rep.Ranked),
	)
	return nil
}
