package talent

import "context"

// MatchBatch is one unit of work against the match store. Writes made through
// it become visible only after Commit; Rollback discards them. A batch is not
// safe for concurrent use.
type MatchBatch interface {
	// FindByPair returns ErrNotFound when no match exists for the pair.
	FindByPair(ctx context.Context, jobPostingID, candidateID int64) (Match, error)
	// Insert returns ErrDuplicateMatch when the pair already exists.
	Insert(ctx context.Context, m Match) (Match, error)
	// Update overwrites score and skill detail of an existing match. Status
	// is left as stored.
	Update(ctx context.Context, m Match) (Match, error)
	// Upsert creates the match for the pair or overwrites its score and skill
	// detail. A concurrent insert of the same pair is retried as an update.
	Upsert(ctx context.Context, jobPostingID, candidateID int64, score float64, skills SkillDetail) (Match, error)
	Commit() error
	Rollback() error
}

// MatchStore opens match batches.
type MatchStore interface {
	BeginMatchBatch(ctx context.Context) (MatchBatch, error)
}
