package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/mohammedpatel29/ReelResumeBuilderMP1/internal/talent"
)

const matchColumns = `id, job_posting_id, candidate_id, match_score, skill_match_details, status, created_at, updated_at`

// MatchBatch is a match-store unit of work backed by one SQLite transaction.
// Each Upsert runs inside its own savepoint so a failed candidate leaves the
// rest of the batch intact.
type MatchBatch struct {
	store *Store
	tx    *sql.Tx
	seq   int
}

var _ talent.MatchBatch = (*MatchBatch)(nil)

// BeginMatchBatch opens a transaction for match writes. The store's single
// connection is held until Commit or Rollback.
func (s *Store) BeginMatchBatch(ctx context.Context) (talent.MatchBatch, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning match batch: %w", err)
	}
	return &MatchBatch{store: s, tx: tx}, nil
}

func (b *MatchBatch) FindByPair(ctx context.Context, jobPostingID, candidateID int64) (talent.Match, error) {
	row := b.tx.QueryRowContext(ctx, `SELECT `+matchColumns+`
		FROM candidate_matches WHERE job_posting_id = ? AND candidate_id = ?`, jobPostingID, candidateID)
	m, err := scanMatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return talent.Match{}, talent.ErrNotFound
	}
	return m, err
}

// Insert creates a pending match with a fresh id. It returns
// talent.ErrDuplicateMatch when the pair already exists.
func (b *MatchBatch) Insert(ctx context.Context, m talent.Match) (talent.Match, error) {
	details, err := json.Marshal(m.Skills)
	if err != nil {
		return talent.Match{}, fmt.Errorf("encoding skill detail: %w", err)
	}
	if hook := b.store.beforeInsert; hook != nil {
		hook(ctx, b.tx, m.JobPostingID, m.CandidateID)
	}

	now := b.store.now().UTC()
	m.ID = uuid.New().String()
	m.Status = talent.MatchPending
	m.CreatedAt = now
	m.UpdatedAt = now

	_, err = b.tx.ExecContext(ctx, `
		INSERT INTO candidate_matches (id, job_posting_id, candidate_id, match_score, skill_match_details, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.JobPostingID, m.CandidateID, m.Score, string(details), string(m.Status),
		formatTime(now), formatTime(now),
	)
	if isUniqueViolation(err) {
		return talent.Match{}, fmt.Errorf("job posting %d, candidate %d: %w", m.JobPostingID, m.CandidateID, talent.ErrDuplicateMatch)
	}
	if err != nil {
		return talent.Match{}, fmt.Errorf("inserting match: %w", err)
	}
	return m, nil
}

// Update overwrites score and skill detail of the pair's match and bumps
// updated_at. Status and created_at are kept.
func (b *MatchBatch) Update(ctx context.Context, m talent.Match) (talent.Match, error) {
	details, err := json.Marshal(m.Skills)
	if err != nil {
		return talent.Match{}, fmt.Errorf("encoding skill detail: %w", err)
	}
	res, err := b.tx.ExecContext(ctx, `
		UPDATE candidate_matches SET match_score = ?, skill_match_details = ?, updated_at = ?
		WHERE job_posting_id = ? AND candidate_id = ?`,
		m.Score, string(details), formatTime(b.store.now()), m.JobPostingID, m.CandidateID,
	)
	if err != nil {
		return talent.Match{}, fmt.Errorf("updating match: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return talent.Match{}, err
	}
	if n == 0 {
		return talent.Match{}, talent.ErrNotFound
	}
	return b.FindByPair(ctx, m.JobPostingID, m.CandidateID)
}

// Upsert creates or refreshes the match for the pair. An insert that loses a
// race on the unique pair is retried as an update.
func (b *MatchBatch) Upsert(ctx context.Context, jobPostingID, candidateID int64, score float64, skills talent.SkillDetail) (talent.Match, error) {
	b.seq++
	sp := fmt.Sprintf("match_upsert_%d", b.seq)
	if _, err := b.tx.ExecContext(ctx, "SAVEPOINT "+sp); err != nil {
		return talent.Match{}, fmt.Errorf("opening savepoint: %w", err)
	}

	m, err := b.upsert(ctx, talent.Match{
		JobPostingID: jobPostingID,
		CandidateID:  candidateID,
		Score:        score,
		Skills:       skills,
	})
	if err != nil {
		// Undo only this candidate's writes and keep the outer transaction.
		if _, rbErr := b.tx.ExecContext(context.WithoutCancel(ctx), "ROLLBACK TO "+sp); rbErr != nil {
			return talent.Match{}, fmt.Errorf("%w (rollback to savepoint: %v)", err, rbErr)
		}
		_, _ = b.tx.ExecContext(context.WithoutCancel(ctx), "RELEASE "+sp)
		return talent.Match{}, err
	}
	if _, err := b.tx.ExecContext(ctx, "RELEASE "+sp); err != nil {
		return talent.Match{}, fmt.Errorf("releasing savepoint: %w", err)
	}
	return m, nil
}

func (b *MatchBatch) upsert(ctx context.Context, m talent.Match) (talent.Match, error) {
	_, err := b.FindByPair(ctx, m.JobPostingID, m.CandidateID)
	switch {
	case err == nil:
		return b.Update(ctx, m)
	case !errors.Is(err, talent.ErrNotFound):
		return talent.Match{}, err
	}

	inserted, err := b.Insert(ctx, m)
	if errors.Is(err, talent.ErrDuplicateMatch) {
		b.store.logger.Debug("match inserted concurrently, updating instead",
			"job_posting_id", m.JobPostingID, "candidate_id", m.CandidateID)
		return b.Update(ctx, m)
	}
	return inserted, err
}

func (b *MatchBatch) Commit() error {
	if err := b.tx.Commit(); err != nil {
		return fmt.Errorf("committing match batch: %w", err)
	}
	return nil
}

// Rollback discards the batch. Rolling back a finished batch is a no-op.
func (b *MatchBatch) Rollback() error {
	if err := b.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rolling back match batch: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return false
}

// GetMatch returns talent.ErrNotFound when no match has the given id.
func (s *Store) GetMatch(ctx context.Context, id string) (talent.Match, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+matchColumns+` FROM candidate_matches WHERE id = ?`, id)
	m, err := scanMatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return talent.Match{}, talent.ErrNotFound
	}
	return m, err
}

// ListMatches returns a posting's matches ordered by score descending. A
// non-positive limit returns all of them. An empty status lists every status.
func (s *Store) ListMatches(ctx context.Context, jobPostingID int64, status talent.MatchStatus, limit int) ([]talent.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM candidate_matches WHERE job_posting_id = ?`
	args := []any{jobPostingID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY match_score DESC, candidate_id ASC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing matches: %w", err)
	}
	defer rows.Close()

	var out []talent.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// SetMatchStatus records an employer decision on a match. Score and skill
// detail are untouched.
func (s *Store) SetMatchStatus(ctx context.Context, id string, status talent.MatchStatus) (talent.Match, error) {
	if !status.Valid() {
		return talent.Match{}, fmt.Errorf("%w: unknown match status %q", talent.ErrInvalid, status)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE candidate_matches SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), formatTime(s.now()), id)
	if err != nil {
		return talent.Match{}, fmt.Errorf("updating match %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return talent.Match{}, err
	}
	if n == 0 {
		return talent.Match{}, talent.ErrNotFound
	}
	return s.GetMatch(ctx, id)
}

func scanMatch(sc scanner) (talent.Match, error) {
	var (
		m                    talent.Match
		details, status      string
		createdAt, updatedAt string
	)
	if err := sc.Scan(&m.ID, &m.JobPostingID, &m.CandidateID, &m.Score, &details, &status, &createdAt, &updatedAt); err != nil {
		return talent.Match{}, err
	}
	m.Status = talent.MatchStatus(status)
	if err := json.Unmarshal([]byte(details), &m.Skills); err != nil {
		return talent.Match{}, fmt.Errorf("decoding skill detail of match %s: %w", m.ID, err)
	}
	var err error
	if m.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return talent.Match{}, err
	}
	if m.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return talent.Match{}, err
	}
	return m, nil
}
