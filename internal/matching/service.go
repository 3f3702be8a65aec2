package matching

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mohammedpatel29/ReelResumeBuilderMP1/internal/talent"
)

// ErrInvalidThreshold is returned for thresholds outside [0, 1].
var ErrInvalidThreshold = errors.New("threshold must be between 0 and 1")

// TalentSource is the read-only provider of postings and candidates.
type TalentSource interface {
	GetJobPosting(ctx context.Context, id int64) (talent.JobPosting, error)
	// ListJobSeekers returns non-deleted job seekers with videos and tags loaded.
	ListJobSeekers(ctx context.Context) ([]talent.Candidate, error)
}

// ServiceConfig controls threshold resolution.
type ServiceConfig struct {
	// DefaultThreshold is used when the caller passes none. Nil or a value
	// outside [0, 1] means DefaultThreshold.
	DefaultThreshold *float64
	// UsePostingThreshold makes a posting's stored threshold the default when
	// the caller passes none.
	UsePostingThreshold bool
}

// Service loads a posting and the candidate pool, then runs the Matcher.
type Service struct {
	source           TalentSource
	matcher          *Matcher
	defaultThreshold float64
	usePosting       bool
	logger           *slog.Logger
	now              func() time.Time
}

func NewService(source TalentSource, matcher *Matcher, cfg ServiceConfig, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	defaultTh := DefaultThreshold
	if th := cfg.DefaultThreshold; th != nil {
		if *th >= 0 && *th <= 1 {
			defaultTh = *th
		} else {
			logger.Warn("default threshold out of range, using built-in default", "threshold", *th, "default", DefaultThreshold)
		}
	}
	return &Service{
		source:           source,
		matcher:          matcher,
		defaultThreshold: defaultTh,
		usePosting:       cfg.UsePostingThreshold,
		logger:           logger,
		now:              time.Now,
	}
}

// Threshold picks the threshold for job. An explicit threshold always wins.
func (s *Service) Threshold(job talent.JobPosting, threshold *float64) float64 {
	switch {
	case threshold != nil:
		return *threshold
	case s.usePosting:
		return job.Threshold
	default:
		return s.defaultThreshold
	}
}

// MatchJob matches every job seeker against the posting with the given id.
// Postings that are not active, or whose expiry has passed, are refused with
// talent.ErrPostingClosed.
func (s *Service) MatchJob(ctx context.Context, jobID int64, threshold *float64) (*Report, error) {
	if threshold != nil && (*threshold < 0 || *threshold > 1) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidThreshold, *threshold)
	}

	job, err := s.source.GetJobPosting(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("loading job posting %d: %w", jobID, err)
	}
	if job.Status != talent.JobActive || job.Expired(s.now()) {
		return nil, fmt.Errorf("job posting %d (%s): %w", jobID, job.Status, talent.ErrPostingClosed)
	}

	pool, err := s.source.ListJobSeekers(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading candidates: %w", err)
	}

	t := s.Threshold(job, threshold)
	s.logger.Debug("matching job posting", "job_posting_id", jobID, "pool", len(pool), "threshold", t)
	return s.matcher.Run(ctx, job, pool, t)
}
