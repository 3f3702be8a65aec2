// Package matching ranks candidates against a job posting and persists the
// results as one batch.
package matching

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/mohammedpatel29/ReelResumeBuilderMP1/internal/similarity"
	"github.com/mohammedpatel29/ReelResumeBuilderMP1/internal/talent"
	"github.com/mohammedpatel29/ReelResumeBuilderMP1/internal/vectorspace"
)

// DefaultThreshold is the minimum cosine similarity used when the caller
// does not pick one.
const DefaultThreshold = 0.6

// ErrJobNotEmbeddable is returned when the job posting itself cannot be
// embedded. There is nothing to rank against, so the whole run fails.
var ErrJobNotEmbeddable = errors.New("could not rank candidates for this posting")

// Embedder turns text into a vector. *vectorspace.Model implements it.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// RankedCandidate is one entry of the ranked result list.
type RankedCandidate struct {
	Candidate talent.Candidate
	Score     float64
	Skills    talent.SkillDetail
	// MatchID is the persisted match id. It refers to a committed row only
	// when Report.Persisted is true.
	MatchID string
}

// Reason explains what happened to a candidate during a run.
type Reason string

const (
	ReasonMatched        Reason = "matched"
	ReasonNotJobSeeker   Reason = "not_jobseeker"
	ReasonDeleted        Reason = "deleted"
	ReasonEmptyProfile   Reason = "empty_profile"
	ReasonEmbedFailed    Reason = "embed_failed"
	ReasonBelowThreshold Reason = "below_threshold"
	ReasonPersistFailed  Reason = "persist_failed"
)

// Outcome is the per-candidate result of a run.
type Outcome struct {
	CandidateID int64
	Reason      Reason
	Score       float64
	Err         error
}

// Matched reports whether the candidate made it into the ranked list.
func (o Outcome) Matched() bool { return o.Reason == ReasonMatched }

// Report is the full result of one run. Ranked is sorted by score
// descending; equal scores keep candidate-pool order.
type Report struct {
	JobPostingID int64
	Threshold    float64
	Ranked       []RankedCandidate
	Outcomes     []Outcome
	// Persisted is false when the batch could not be opened or committed.
	// Ranked is still valid in that case.
	Persisted bool
	StoreErr  error
}

// Matcher is the match orchestrator. It is safe for concurrent use when its
// Embedder and MatchStore are.
type Matcher struct {
	embedder    Embedder
	store       talent.MatchStore
	logger      *slog.Logger
	concurrency int
}

type Option func(*Matcher)

func WithLogger(l *slog.Logger) Option {
	return func(m *Matcher) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithConcurrency bounds the number of candidates embedded in parallel.
// Values < 1 are ignored.
func WithConcurrency(n int) Option {
	return func(m *Matcher) {
		if n > 0 {
			m.concurrency = n
		}
	}
}

func NewMatcher(e Embedder, store talent.MatchStore, opts ...Option) *Matcher {
	m := &Matcher{
		embedder:    e,
		store:       store,
		logger:      slog.Default(),
		concurrency: 4,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// MatchCandidatesToJob ranks the job seekers in candidates whose similarity to
// job is at least threshold, persisting a match per ranked candidate. It fails
// only when the job cannot be embedded or ctx ends before the batch commits.
// Storage failures are logged and do not hide the ranking.
func (m *Matcher) MatchCandidatesToJob(ctx context.Context, job talent.JobPosting, candidates []talent.Candidate, threshold float64) ([]RankedCandidate, error) {
	rep, err := m.Run(ctx, job, candidates, threshold)
	if err != nil {
		return nil, err
	}
	return rep.Ranked, nil
}

type embedded struct {
	vec    []float32
	reason Reason
	err    error
}

// Run is MatchCandidatesToJob with a per-candidate report.
func (m *Matcher) Run(ctx context.Context, job talent.JobPosting, candidates []talent.Candidate, threshold float64) (*Report, error) {
	rep := &Report{
		JobPostingID: job.ID,
		Threshold:    threshold,
		Ranked:       []RankedCandidate{},
		Outcomes:     make([]Outcome, 0, len(candidates)),
		Persisted:    true,
	}

	jobText, err := talent.JobText(job)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrJobNotEmbeddable, err)
	}
	jobVec, err := m.embedder.Embed(ctx, jobText)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrJobNotEmbeddable, err)
	}

	if len(candidates) == 0 {
		return rep, nil
	}

	vecs, err := m.embedCandidates(ctx, candidates)
	if err != nil {
		return nil, err
	}

	var batch talent.MatchBatch
	for i, c := range candidates {
		e := vecs[i]
		if e.reason != "" {
			rep.Outcomes = append(rep.Outcomes, Outcome{CandidateID: c.ID, Reason: e.reason, Err: e.err})
			continue
		}

		score := similarity.Cosine(jobVec, e.vec)
		if score < threshold {
			m.logger.Debug("candidate below threshold", "job_posting_id", job.ID, "candidate_id", c.ID, "score", score)
			rep.Outcomes = append(rep.Outcomes, Outcome{CandidateID: c.ID, Reason: ReasonBelowThreshold, Score: score})
			continue
		}

		skills := similarity.SkillOverlap(talent.CandidateSkills(c), job.RequiredSkills, job.PreferredSkills)
		ranked := RankedCandidate{Candidate: c, Score: score, Skills: skills}

		if batch == nil && rep.StoreErr == nil {
			batch, err = m.store.BeginMatchBatch(ctx)
			if err != nil {
				m.logger.Error("opening match batch", "job_posting_id", job.ID, "error", err)
				rep.StoreErr = err
				rep.Persisted = false
				batch = nil
			}
		}
		if batch != nil {
			match, err := batch.Upsert(ctx, job.ID, c.ID, score, skills)
			if err != nil {
				m.logger.Warn("persisting match, skipping candidate", "job_posting_id", job.ID, "candidate_id", c.ID, "error", err)
				rep.Outcomes = append(rep.Outcomes, Outcome{CandidateID: c.ID, Reason: ReasonPersistFailed, Score: score, Err: err})
				continue
			}
			ranked.MatchID = match.ID
		}

		rep.Ranked = append(rep.Ranked, ranked)
		rep.Outcomes = append(rep.Outcomes, Outcome{CandidateID: c.ID, Reason: ReasonMatched, Score: score})
	}

	if batch != nil {
		if err := ctx.Err(); err != nil {
			if rbErr := batch.Rollback(); rbErr != nil {
				m.logger.Error("rolling back match batch", "job_posting_id", job.ID, "error", rbErr)
			}
			return nil, err
		}
		if err := batch.Commit(); err != nil {
			m.logger.Error("committing match batch, results not persisted", "job_posting_id", job.ID, "error", err)
			if rbErr := batch.Rollback(); rbErr != nil {
				m.logger.Error("rolling back match batch", "job_posting_id", job.ID, "error", rbErr)
			}
			rep.StoreErr = err
			rep.Persisted = false
		}
	}

	sort.SliceStable(rep.Ranked, func(i, j int) bool {
		return rep.Ranked[i].Score > rep.Ranked[j].Score
	})

	m.logger.Info("matched candidates",
		"job_posting_id", job.ID,
		"pool", len(candidates),
		"matched", len(rep.Ranked),
		"threshold", threshold,
		"persisted", rep.Persisted,
	)
	return rep, nil
}

// embedCandidates embeds every eligible candidate with bounded parallelism.
// Ineligible or empty candidates are marked with a skip reason. Only context
// cancellation or an uninitialized model abort the run.
func (m *Matcher) embedCandidates(ctx context.Context, candidates []talent.Candidate) ([]embedded, error) {
	out := make([]embedded, len(candidates))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)

	for i, c := range candidates {
		switch {
		case c.Kind != talent.KindJobSeeker:
			out[i] = embedded{reason: ReasonNotJobSeeker}
			continue
		case c.Deleted:
			out[i] = embedded{reason: ReasonDeleted}
			continue
		}
		g.Go(func() error {
			text, err := talent.CandidateText(c)
			if err != nil {
				m.logger.Warn("candidate has no profile text, skipping", "candidate_id", c.ID)
				out[i] = embedded{reason: ReasonEmptyProfile, err: err}
				return nil
			}
			vec, err := m.embedder.Embed(gCtx, text)
			switch {
			case err == nil:
				out[i] = embedded{vec: vec}
			case errors.Is(err, talent.ErrEmptyInput):
				m.logger.Warn("candidate has no profile text, skipping", "candidate_id", c.ID)
				out[i] = embedded{reason: ReasonEmptyProfile, err: err}
			case errors.Is(err, vectorspace.ErrNotInitialized), gCtx.Err() != nil:
				return fmt.Errorf("embedding candidate %d: %w", c.ID, err)
			default:
				m.logger.Warn("embedding candidate, skipping", "candidate_id", c.ID, "error", err)
				out[i] = embedded{reason: ReasonEmbedFailed, err: err}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	return out, nil
}
