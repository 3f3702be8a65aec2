// Package scheduler periodically expires stale job postings and queues a
// re-match for every active one.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mohammedpatel29/ReelResumeBuilderMP1/internal/storage"
	"github.com/mohammedpatel29/ReelResumeBuilderMP1/internal/talent"
	"github.com/mohammedpatel29/ReelResumeBuilderMP1/internal/worker"
)

// DefaultSpec re-matches every six hours.
const DefaultSpec = "@every 6h"

// Store is the subset of storage the scheduler needs.
type Store interface {
	ExpirePostings(ctx context.Context, now time.Time) (int64, error)
	ListJobPostings(ctx context.Context, status talent.JobStatus) ([]talent.JobPosting, error)
	HasOpenJob(ctx context.Context, jobType, payloadJSON string) (bool, error)
	EnqueueJob(ctx context.Context, job storage.Job) (string, error)
}

// Cycle summarises one scheduler run.
type Cycle struct {
	Expired  int64
	Enqueued int
	Skipped  int
}

// Scheduler wraps robfig/cron and drives the re-match cycle.
type Scheduler struct {
	cron   *cron.Cron
	store  Store
	spec   string
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Scheduler firing on spec (standard cron or "@every" syntax).
// An empty spec uses DefaultSpec.
func New(store Store, spec string, logger *slog.Logger) *Scheduler {
	if spec == "" {
		spec = DefaultSpec
	}
	if logger == nil {
		logger = slog.Default()
	}
	cronLog := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))
	return &Scheduler{
		cron:   cron.New(cron.WithLogger(cronLog), cron.WithChain(cron.SkipIfStillRunning(cronLog))),
		store:  store,
		spec:   spec,
		logger: logger,
		now:    time.Now,
	}
}

// Start registers the cycle and starts the scheduler. One cycle also runs
// immediately so expired postings are closed without waiting for the first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		s.run(ctx)
	})
	if err != nil {
		return fmt.Errorf("scheduling %q: %w", s.spec, err)
	}

	s.cron.Start()
	s.logger.Info("scheduler started", "spec", s.spec)

	go s.run(ctx)
	return nil
}

// Stop halts the scheduler and waits for a running cycle to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context) {
	c, err := s.RunOnce(ctx)
	if err != nil {
		s.logger.Error("scheduler cycle failed", "error", err)
		return
	}
	s.logger.Info("scheduler cycle complete", "expired", c.Expired, "enqueued", c.Enqueued, "skipped", c.Skipped)
}

// RunOnce expires postings past their expiry and queues a match job for each
// active posting that does not already have one open.
func (s *Scheduler) RunOnce(ctx context.Context) (Cycle, error) {
	var c Cycle

	expired, err := s.store.ExpirePostings(ctx, s.now())
	if err != nil {
		return c, err
	}
	c.Expired = expired

	active, err := s.store.ListJobPostings(ctx, talent.JobActive)
	if err != nil {
		return c, err
	}

	for _, j := range active {
		job, err := worker.NewMatchJob(j.ID, nil)
		if err != nil {
			return c, err
		}
		open, err := s.store.HasOpenJob(ctx, job.Type, job.PayloadJSON)
		if err != nil {
			return c, err
		}
		if open {
			c.Skipped++
			continue
		}
		if _, err := s.store.EnqueueJob(ctx, job); err != nil {
			return c, fmt.Errorf("queueing match for posting %d: %w", j.ID, err)
		}
		c.Enqueued++
	}
	return c, nil
}
