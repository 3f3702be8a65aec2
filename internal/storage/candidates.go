package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mohammedpatel29/ReelResumeBuilderMP1/internal/talent"
)

// CreateCandidate stores c with its videos and tags in one transaction. Tags
// are shared by name (case-insensitive) across all videos.
func (s *Store) CreateCandidate(ctx context.Context, c talent.Candidate) (talent.Candidate, error) {
	if err := c.Validate(); err != nil {
		return talent.Candidate{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return talent.Candidate{}, fmt.Errorf("beginning candidate transaction: %w", err)
	}
	defer tx.Rollback()

	now := s.now().UTC()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO candidates (email, kind, first_name, last_name, is_deleted, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.Email, string(c.Kind), c.FirstName, c.LastName, c.Deleted, formatTime(now),
	)
	if isUniqueViolation(err) {
		return talent.Candidate{}, fmt.Errorf("%w: %s", talent.ErrCandidateExists, c.Email)
	}
	if err != nil {
		return talent.Candidate{}, fmt.Errorf("inserting candidate %s: %w", c.Email, err)
	}
	if c.ID, err = res.LastInsertId(); err != nil {
		return talent.Candidate{}, err
	}
	c.CreatedAt = now

	for i := range c.Videos {
		v := &c.Videos[i]
		res, err := tx.ExecContext(ctx, `
			INSERT INTO videos (candidate_id, title, description, created_at) VALUES (?, ?, ?, ?)`,
			c.ID, v.Title, v.Description, formatTime(now),
		)
		if err != nil {
			return talent.Candidate{}, fmt.Errorf("inserting video %q: %w", v.Title, err)
		}
		if v.ID, err = res.LastInsertId(); err != nil {
			return talent.Candidate{}, err
		}
		v.CreatedAt = now
		if err := attachTags(ctx, tx, v.ID, v.Tags); err != nil {
			return talent.Candidate{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return talent.Candidate{}, fmt.Errorf("committing candidate: %w", err)
	}
	return c, nil
}

func attachTags(ctx context.Context, tx *sql.Tx, videoID int64, tags []string) error {
	for _, name := range tags {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO tags (name) VALUES (?) ON CONFLICT(name) DO NOTHING`, name); err != nil {
			return fmt.Errorf("inserting tag %q: %w", name, err)
		}
		var tagID int64
		if err := tx.QueryRowContext(ctx, `SELECT id FROM tags WHERE name = ?`, name).Scan(&tagID); err != nil {
			return fmt.Errorf("looking up tag %q: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO video_tags (video_id, tag_id) VALUES (?, ?)`, videoID, tagID); err != nil {
			return fmt.Errorf("tagging video %d: %w", videoID, err)
		}
	}
	return nil
}

// GetCandidate returns the candidate with videos and tags loaded, including
// soft-deleted candidates.
func (s *Store) GetCandidate(ctx context.Context, id int64) (talent.Candidate, error) {
	cands, err := s.loadCandidates(ctx, "c.id = ?", id)
	if err != nil {
		return talent.Candidate{}, err
	}
	if len(cands) == 0 {
		return talent.Candidate{}, talent.ErrNotFound
	}
	return cands[0], nil
}

// ListJobSeekers returns all non-deleted job seekers with videos and tags
// loaded, ordered by id.
func (s *Store) ListJobSeekers(ctx context.Context) ([]talent.Candidate, error) {
	return s.loadCandidates(ctx, "c.kind = 'jobseeker' AND c.is_deleted = 0")
}

// DeleteCandidate soft-deletes a candidate. Deleted candidates leave the
// matching pool but keep their existing matches.
func (s *Store) DeleteCandidate(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE candidates SET is_deleted = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting candidate %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return talent.ErrNotFound
	}
	return nil
}

// loadCandidates runs three queries (candidates, videos, tags) filtered by
// where on the candidates table aliased c. Each result set is drained before
// the next query since the store holds a single connection.
func (s *Store) loadCandidates(ctx context.Context, where string, args ...any) ([]talent.Candidate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.email, c.kind, c.first_name, c.last_name, c.is_deleted, c.created_at
		FROM candidates c WHERE `+where+` ORDER BY c.id`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying candidates: %w", err)
	}
	var cands []talent.Candidate
	index := make(map[int64]int)
	for rows.Next() {
		var c talent.Candidate
		var kind, createdAt string
		if err := rows.Scan(&c.ID, &c.Email, &kind, &c.FirstName, &c.LastName, &c.Deleted, &createdAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning candidate: %w", err)
		}
		c.Kind = talent.Kind(kind)
		if c.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
			rows.Close()
			return nil, err
		}
		index[c.ID] = len(cands)
		cands = append(cands, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(cands) == 0 {
		return nil, nil
	}

	rows, err = s.db.QueryContext(ctx, `
		SELECT v.id, v.candidate_id, v.title, v.description, v.created_at
		FROM videos v JOIN candidates c ON c.id = v.candidate_id
		WHERE `+where+` ORDER BY v.candidate_id, v.id`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying videos: %w", err)
	}
	type videoRef struct{ cand, pos int }
	videos := make(map[int64]videoRef)
	for rows.Next() {
		var v talent.Video
		var candID int64
		var createdAt string
		if err := rows.Scan(&v.ID, &candID, &v.Title, &v.Description, &createdAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning video: %w", err)
		}
		if v.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
			rows.Close()
			return nil, err
		}
		ci := index[candID]
		videos[v.ID] = videoRef{cand: ci, pos: len(cands[ci].Videos)}
		cands[ci].Videos = append(cands[ci].Videos, v)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(videos) == 0 {
		return cands, nil
	}

	rows, err = s.db.QueryContext(ctx, `
		SELECT vt.video_id, t.name
		FROM video_tags vt
		JOIN tags t ON t.id = vt.tag_id
		JOIN videos v ON v.id = vt.video_id
		JOIN candidates c ON c.id = v.candidate_id
		WHERE `+where+` ORDER BY vt.video_id, vt.rowid`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying tags: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var videoID int64
		var name string
		if err := rows.Scan(&videoID, &name); err != nil {
			return nil, fmt.Errorf("scanning tag: %w", err)
		}
		ref, ok := videos[videoID]
		if !ok {
			continue
		}
		v := &cands[ref.cand].Videos[ref.pos]
		v.Tags = append(v.Tags, name)
	}
	return cands, rows.Err()
}

// CandidateByEmail returns talent.ErrNotFound when no candidate has email.
func (s *Store) CandidateByEmail(ctx context.Context, email string) (talent.Candidate, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM candidates WHERE email = ?`, email).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return talent.Candidate{}, talent.ErrNotFound
	}
	if err != nil {
		return talent.Candidate{}, err
	}
	return s.GetCandidate(ctx, id)
}
