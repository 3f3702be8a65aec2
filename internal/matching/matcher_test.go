package matching

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/mohammedpatel29/ReelResumeBuilderMP1/internal/talent"
	"github.com/mohammedpatel29/ReelResumeBuilderMP1/internal/vectorspace"
)

// fakeEmbedder maps exact text to a fixed vector.
type fakeEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 0}, nil
}

type pair struct{ job, cand int64 }

// fakeStore is an in-memory match store. Writes are staged per batch and
// applied on Commit.
type fakeStore struct {
	mu        sync.Mutex
	rows      map[pair]talent.Match
	seq       int
	begins    int
	commits   int
	rollbacks int

	beginErr  error
	commitErr error
	failFor   map[int64]error
	onUpsert  func()
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: make(map[pair]talent.Match)}
}

func (s *fakeStore) BeginMatchBatch(_ context.Context) (talent.MatchBatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.begins++
	if s.beginErr != nil {
		return nil, s.beginErr
	}
	return &fakeBatch{store: s, staged: make(map[pair]talent.Match)}, nil
}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

type fakeBatch struct {
	store  *fakeStore
	staged map[pair]talent.Match
}

func (b *fakeBatch) FindByPair(_ context.Context, jobID, candID int64) (talent.Match, error) {
	if m, ok := b.staged[pair{jobID, candID}]; ok {
		return m, nil
	}
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	if m, ok := b.store.rows[pair{jobID, candID}]; ok {
		return m, nil
	}
	return talent.Match{}, talent.ErrNotFound
}

func (b *fakeBatch) Insert(ctx context.Context, m talent.Match) (talent.Match, error) {
	if _, err := b.FindByPair(ctx, m.JobPostingID, m.CandidateID); err == nil {
		return talent.Match{}, talent.ErrDuplicateMatch
	}
	b.store.mu.Lock()
	b.store.seq++
	m.ID = fmt.Sprintf("m%d", b.store.seq)
	b.store.mu.Unlock()
	m.Status = talent.MatchPending
	b.staged[pair{m.JobPostingID, m.CandidateID}] = m
	return m, nil
}

func (b *fakeBatch) Update(ctx context.Context, m talent.Match) (talent.Match, error) {
	existing, err := b.FindByPair(ctx, m.JobPostingID, m.CandidateID)
	if err != nil {
		return talent.Match{}, err
	}
	existing.Score = m.Score
	existing.Skills = m.Skills
	b.staged[pair{m.JobPostingID, m.CandidateID}] = existing
	return existing, nil
}

func (b *fakeBatch) Upsert(ctx context.Context, jobID, candID int64, score float64, skills talent.SkillDetail) (talent.Match, error) {
	if b.store.onUpsert != nil {
		b.store.onUpsert()
	}
	if err := b.store.failFor[candID]; err != nil {
		return talent.Match{}, err
	}
	m := talent.Match{JobPostingID: jobID, CandidateID: candID, Score: score, Skills: skills}
	if _, err := b.FindByPair(ctx, jobID, candID); err == nil {
		return b.Update(ctx, m)
	}
	return b.Insert(ctx, m)
}

func (b *fakeBatch) Commit() error {
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	b.store.commits++
	if b.store.commitErr != nil {
		return b.store.commitErr
	}
	for k, m := range b.staged {
		b.store.rows[k] = m
	}
	b.staged = nil
	return nil
}

func (b *fakeBatch) Rollback() error {
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	b.store.rollbacks++
	b.staged = nil
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// unit returns a 2-d unit vector whose cosine with [1, 0] is c.
func unit(c float64) []float32 {
	return []float32{float32(c), float32(math.Sqrt(1 - c*c))}
}

func seeker(id int64, name string) talent.Candidate {
	return talent.Candidate{ID: id, Kind: talent.KindJobSeeker, FirstName: name}
}

func testJob() talent.JobPosting {
	return talent.JobPosting{ID: 7, Title: "job", Status: talent.JobActive}
}

func newTestMatcher(emb *fakeEmbedder, store *fakeStore) *Matcher {
	return NewMatcher(emb, store, WithLogger(quietLogger()), WithConcurrency(2))
}

func TestMatch_RankingOrder(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float32{
		"job": {1, 0},
		"a":   unit(0.9),
		"b":   unit(0.6),
		"c":   unit(0.75),
	}}
	m := newTestMatcher(emb, newFakeStore())

	got, err := m.MatchCandidatesToJob(context.Background(), testJob(),
		[]talent.Candidate{seeker(1, "a"), seeker(2, "b"), seeker(3, "c")}, 0.5)
	if err != nil {
		t.Fatalf("MatchCandidatesToJob: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d results, want 3", len(got))
	}
	wantIDs := []int64{1, 3, 2}
	for i, r := range got {
		if r.Candidate.ID != wantIDs[i] {
			t.Errorf("result[%d] = candidate %d, want %d", i, r.Candidate.ID, wantIDs[i])
		}
	}
	if got[0].Score < got[1].Score || got[1].Score < got[2].Score {
		t.Errorf("scores not descending: %v %v %v", got[0].Score, got[1].Score, got[2].Score)
	}
}

func TestMatch_TiesKeepPoolOrder(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float32{
		"job": {1, 0}, "a": {1, 0}, "b": {2, 0}, "c": {3, 0},
	}}
	m := newTestMatcher(emb, newFakeStore())
	got, err := m.MatchCandidatesToJob(context.Background(), testJob(),
		[]talent.Candidate{seeker(5, "c"), seeker(4, "a"), seeker(6, "b")}, 0.5)
	if err != nil {
		t.Fatalf("MatchCandidatesToJob: %v", err)
	}
	for i, want := range []int64{5, 4, 6} {
		if got[i].Candidate.ID != want {
			t.Errorf("result[%d] = %d, want %d", i, got[i].Candidate.ID, want)
		}
	}
}

func TestMatch_ThresholdInclusive(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float32{
		"job": {1, 0},
		"a":   {3, 4}, // cosine exactly 0.6
	}}
	pool := []talent.Candidate{seeker(1, "a")}

	m := newTestMatcher(emb, newFakeStore())
	got, err := m.MatchCandidatesToJob(context.Background(), testJob(), pool, 0.6)
	if err != nil {
		t.Fatalf("MatchCandidatesToJob: %v", err)
	}
	if len(got) != 1 || got[0].Score != 0.6 {
		t.Fatalf("at threshold: got %+v, want one result scored 0.6", got)
	}

	got, err = m.MatchCandidatesToJob(context.Background(), testJob(), pool, math.Nextafter(0.6, 1))
	if err != nil {
		t.Fatalf("MatchCandidatesToJob: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("above score: got %d results, want 0", len(got))
	}
}

func TestMatch_GracefulSkip(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float32{
		"job": {1, 0}, "a": {1, 0}, "b": {1, 0}, "d": {1, 0}, "e": {1, 0},
	}}
	pool := []talent.Candidate{
		seeker(1, "a"),
		seeker(2, "b"),
		{ID: 3, Kind: talent.KindJobSeeker},
		seeker(4, "d"),
		seeker(5, "e"),
	}
	store := newFakeStore()
	rep, err := newTestMatcher(emb, store).Run(context.Background(), testJob(), pool, 0.6)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(rep.Ranked) != 4 {
		t.Fatalf("got %d ranked, want 4", len(rep.Ranked))
	}
	for _, r := range rep.Ranked {
		if r.Candidate.ID == 3 {
			t.Error("candidate 3 has no text and should be skipped")
		}
	}
	if rep.Outcomes[2].Reason != ReasonEmptyProfile || !errors.Is(rep.Outcomes[2].Err, talent.ErrEmptyInput) {
		t.Errorf("outcome[2] = %+v, want empty_profile", rep.Outcomes[2])
	}
	if store.count() != 4 {
		t.Errorf("stored %d matches, want 4", store.count())
	}
}

func TestMatch_NonJobSeekerExcluded(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float32{"job": {1, 0}, "boss": {1, 0}, "a": {1, 0}}}
	pool := []talent.Candidate{
		{ID: 1, Kind: talent.KindEmployer, FirstName: "boss"},
		seeker(2, "a"),
		{ID: 3, Kind: talent.KindJobSeeker, FirstName: "a", Deleted: true},
	}
	store := newFakeStore()
	rep, err := newTestMatcher(emb, store).Run(context.Background(), testJob(), pool, 0.1)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(rep.Ranked) != 1 || rep.Ranked[0].Candidate.ID != 2 {
		t.Fatalf("ranked = %+v, want only candidate 2", rep.Ranked)
	}
	if rep.Outcomes[0].Reason != ReasonNotJobSeeker {
		t.Errorf("employer outcome = %s, want %s", rep.Outcomes[0].Reason, ReasonNotJobSeeker)
	}
	if rep.Outcomes[2].Reason != ReasonDeleted {
		t.Errorf("deleted outcome = %s, want %s", rep.Outcomes[2].Reason, ReasonDeleted)
	}
	if _, err := (&fakeBatch{store: store}).FindByPair(context.Background(), 7, 1); !errors.Is(err, talent.ErrNotFound) {
		t.Error("employer should never get a match row")
	}
}

func TestMatch_IdempotentUpsert(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float32{"job": {1, 0}, "a": {1, 0}, "b": unit(0.8)}}
	pool := []talent.Candidate{seeker(1, "a"), seeker(2, "b")}
	store := newFakeStore()
	m := newTestMatcher(emb, store)

	first, err := m.MatchCandidatesToJob(context.Background(), testJob(), pool, 0.5)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := m.MatchCandidatesToJob(context.Background(), testJob(), pool, 0.5)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if store.count() != 2 {
		t.Errorf("stored %d matches, want 2", store.count())
	}
	for i := range first {
		if first[i].MatchID != second[i].MatchID {
			t.Errorf("match id changed for candidate %d: %s -> %s", first[i].Candidate.ID, first[i].MatchID, second[i].MatchID)
		}
	}
}

func TestMatch_SkillDetail(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float32{}}
	job := talent.JobPosting{ID: 1, Title: "dev", RequiredSkills: []string{"Go", "SQL"}, PreferredSkills: []string{"Docker"}}
	emb.vectors["dev Go SQL Docker"] = []float32{1, 0}
	c := talent.Candidate{ID: 9, Kind: talent.KindJobSeeker, FirstName: "x", Videos: []talent.Video{
		{Title: "intro", Tags: []string{"go", "Docker"}},
	}}
	emb.vectors["x intro go Docker"] = []float32{1, 0}

	got, err := newTestMatcher(emb, newFakeStore()).MatchCandidatesToJob(context.Background(), job, []talent.Candidate{c}, 0.5)
	if err != nil {
		t.Fatalf("MatchCandidatesToJob: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d results, want 1", len(got))
	}
	d := got[0].Skills
	if d.Percentage != 2.0/3.0 {
		t.Errorf("percentage = %f, want 2/3", d.Percentage)
	}
	if len(d.MissingRequired) != 1 || d.MissingRequired[0] != "sql" {
		t.Errorf("missing required = %v, want [sql]", d.MissingRequired)
	}
}

func TestMatch_NoPostingSkills(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float32{"job": {1, 0}, "a intro go": {1, 0}}}
	c := talent.Candidate{ID: 1, Kind: talent.KindJobSeeker, FirstName: "a", Videos: []talent.Video{{Title: "intro", Tags: []string{"go"}}}}
	got, err := newTestMatcher(emb, newFakeStore()).MatchCandidatesToJob(context.Background(), testJob(), []talent.Candidate{c}, 0.5)
	if err != nil {
		t.Fatalf("MatchCandidatesToJob: %v", err)
	}
	if len(got) != 1 || got[0].Skills.Percentage != 0 {
		t.Errorf("got %+v, want one result with 0 skill percentage", got)
	}
}

func TestMatch_CommitFailureStillReturnsRanking(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float32{"job": {1, 0}, "a": {1, 0}, "b": unit(0.7)}}
	store := newFakeStore()
	store.commitErr = errors.New("disk unavailable")

	rep, err := newTestMatcher(emb, store).Run(context.Background(), testJob(),
		[]talent.Candidate{seeker(1, "a"), seeker(2, "b")}, 0.5)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(rep.Ranked) != 2 {
		t.Fatalf("got %d ranked, want 2", len(rep.Ranked))
	}
	if rep.Persisted {
		t.Error("Persisted should be false after commit failure")
	}
	if !errors.Is(rep.StoreErr, store.commitErr) {
		t.Errorf("StoreErr = %v, want commit error", rep.StoreErr)
	}
	if store.rollbacks != 1 {
		t.Errorf("rollbacks = %d, want 1", store.rollbacks)
	}
	if store.count() != 0 {
		t.Errorf("stored %d matches after failed commit, want 0", store.count())
	}
}

func TestMatch_BeginFailureStillReturnsRanking(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float32{"job": {1, 0}, "a": {1, 0}, "b": {1, 0}}}
	store := newFakeStore()
	store.beginErr = errors.New("database locked")

	rep, err := newTestMatcher(emb, store).Run(context.Background(), testJob(),
		[]talent.Candidate{seeker(1, "a"), seeker(2, "b")}, 0.5)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(rep.Ranked) != 2 || rep.Persisted {
		t.Errorf("ranked = %d persisted = %v, want 2 and false", len(rep.Ranked), rep.Persisted)
	}
	if store.begins != 1 {
		t.Errorf("begins = %d, want 1", store.begins)
	}
}

func TestMatch_PerCandidatePersistFailureSkipped(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float32{"job": {1, 0}, "a": {1, 0}, "b": {1, 0}, "c": {1, 0}}}
	store := newFakeStore()
	store.failFor = map[int64]error{2: errors.New("constraint failed")}

	rep, err := newTestMatcher(emb, store).Run(context.Background(), testJob(),
		[]talent.Candidate{seeker(1, "a"), seeker(2, "b"), seeker(3, "c")}, 0.5)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(rep.Ranked) != 2 {
		t.Fatalf("got %d ranked, want 2", len(rep.Ranked))
	}
	if rep.Outcomes[1].Reason != ReasonPersistFailed {
		t.Errorf("outcome[1] = %s, want %s", rep.Outcomes[1].Reason, ReasonPersistFailed)
	}
	if !rep.Persisted || store.count() != 2 {
		t.Errorf("persisted = %v stored = %d, want true and 2", rep.Persisted, store.count())
	}
}

func TestMatch_EmptyPool(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float32{"job": {1, 0}}}
	store := newFakeStore()
	got, err := newTestMatcher(emb, store).MatchCandidatesToJob(context.Background(), testJob(), nil, 0.6)
	if err != nil {
		t.Fatalf("MatchCandidatesToJob: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("got %v, want empty non-nil list", got)
	}
	if store.begins != 0 {
		t.Errorf("begins = %d, want 0", store.begins)
	}
}

func TestMatch_JobNotEmbeddable(t *testing.T) {
	m := newTestMatcher(&fakeEmbedder{}, newFakeStore())
	_, err := m.MatchCandidatesToJob(context.Background(), talent.JobPosting{ID: 1}, []talent.Candidate{seeker(1, "a")}, 0.6)
	if !errors.Is(err, ErrJobNotEmbeddable) || !errors.Is(err, talent.ErrEmptyInput) {
		t.Errorf("err = %v, want ErrJobNotEmbeddable wrapping ErrEmptyInput", err)
	}

	m = newTestMatcher(&fakeEmbedder{err: vectorspace.ErrNotInitialized}, newFakeStore())
	_, err = m.MatchCandidatesToJob(context.Background(), testJob(), []talent.Candidate{seeker(1, "a")}, 0.6)
	if !errors.Is(err, ErrJobNotEmbeddable) || !errors.Is(err, vectorspace.ErrNotInitialized) {
		t.Errorf("err = %v, want ErrJobNotEmbeddable wrapping ErrNotInitialized", err)
	}
}

func TestMatch_CancelledBeforeCommitRollsBack(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float32{"job": {1, 0}, "a": {1, 0}}}
	store := newFakeStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store.onUpsert = cancel

	_, err := newTestMatcher(emb, store).Run(ctx, testJob(), []talent.Candidate{seeker(1, "a")}, 0.5)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if store.commits != 0 || store.rollbacks != 1 {
		t.Errorf("commits = %d rollbacks = %d, want 0 and 1", store.commits, store.rollbacks)
	}
	if store.count() != 0 {
		t.Errorf("stored %d matches, want 0", store.count())
	}
}

func TestMatch_WithVectorSpaceModel(t *testing.T) {
	model := vectorspace.New(vectorspace.WithLogger(quietLogger()))
	job := talent.JobPosting{
		ID:             3,
		Title:          "Data Engineer",
		Description:    "Build kafka streaming pipelines and spark etl jobs",
		RequiredSkills: []string{"kafka", "spark"},
		Status:         talent.JobActive,
		CreatedAt:      time.Now(),
	}
	pool := []talent.Candidate{
		{ID: 1, Kind: talent.KindJobSeeker, FirstName: "Ana", Videos: []talent.Video{
			{Title: "Data engineering", Description: "I build streaming pipelines with kafka and spark", Tags: []string{"Kafka", "Spark"}},
		}},
		{ID: 2, Kind: talent.KindJobSeeker, FirstName: "Ben", Videos: []talent.Video{
			{Title: "Nursing", Description: "patient care clinical documentation", Tags: []string{"healthcare"}},
		}},
	}
	m := NewMatcher(model, newFakeStore(), WithLogger(quietLogger()))

	got, err := m.MatchCandidatesToJob(context.Background(), job, pool, 0.3)
	if err != nil {
		t.Fatalf("MatchCandidatesToJob: %v", err)
	}
	if len(got) != 1 || got[0].Candidate.ID != 1 {
		t.Fatalf("got %+v, want only candidate 1", got)
	}
	if got[0].Skills.Percentage != 1 {
		t.Errorf("skill percentage = %f, want 1", got[0].Skills.Percentage)
	}
}
