package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mohammedpatel29/ReelResumeBuilderMP1/internal/talent"
)

const postingColumns = `id, employer_id, title, description, requirements, responsibilities,
	required_skills, preferred_skills, experience_level, matching_score_threshold,
	status, created_at, expires_at`

// CreateJobPosting stores j and returns it with its id and timestamps set.
// The threshold is stored as given, zero included. An empty status becomes
// active.
func (s *Store) CreateJobPosting(ctx context.Context, j talent.JobPosting) (talent.JobPosting, error) {
	if err := j.Validate(); err != nil {
		return talent.JobPosting{}, err
	}
	if j.Status == "" {
		j.Status = talent.JobActive
	}
	if j.RequiredSkills == nil {
		j.RequiredSkills = []string{}
	}
	if j.PreferredSkills == nil {
		j.PreferredSkills = []string{}
	}
	required, err := json.Marshal(j.RequiredSkills)
	if err != nil {
		return talent.JobPosting{}, fmt.Errorf("encoding required skills: %w", err)
	}
	preferred, err := json.Marshal(j.PreferredSkills)
	if err != nil {
		return talent.JobPosting{}, fmt.Errorf("encoding preferred skills: %w", err)
	}

	now := s.now().UTC()
	var expires sql.NullString
	if j.ExpiresAt != nil {
		expires = sql.NullString{String: formatTime(*j.ExpiresAt), Valid: true}
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO job_postings (employer_id, title, description, requirements, responsibilities,
			required_skills, preferred_skills, experience_level, matching_score_threshold,
			status, created_at, updated_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.EmployerID, j.Title, j.Description, j.Requirements, j.Responsibilities,
		string(required), string(preferred), j.ExperienceLevel, j.Threshold,
		string(j.Status), formatTime(now), formatTime(now), expires,
	)
	if err != nil {
		return talent.JobPosting{}, fmt.Errorf("inserting job posting: %w", err)
	}
	if j.ID, err = res.LastInsertId(); err != nil {
		return talent.JobPosting{}, err
	}
	j.CreatedAt = now
	return j, nil
}

// GetJobPosting returns talent.ErrNotFound when no posting has the given id.
func (s *Store) GetJobPosting(ctx context.Context, id int64) (talent.JobPosting, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+postingColumns+` FROM job_postings WHERE id = ?`, id)
	j, err := scanPosting(row)
	if errors.Is(err, sql.ErrNoRows) {
		return talent.JobPosting{}, talent.ErrNotFound
	}
	return j, err
}

// ListJobPostings returns postings with the given status, newest first. An
// empty status lists all postings.
func (s *Store) ListJobPostings(ctx context.Context, status talent.JobStatus) ([]talent.JobPosting, error) {
	query := `SELECT ` + postingColumns + ` FROM job_postings`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing job postings: %w", err)
	}
	defer rows.Close()

	var out []talent.JobPosting
	for rows.Next() {
		j, err := scanPosting(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// UpdateJobStatus moves a posting to status, enforcing the lifecycle rules.
func (s *Store) UpdateJobStatus(ctx context.Context, id int64, status talent.JobStatus) (talent.JobPosting, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return talent.JobPosting{}, fmt.Errorf("beginning status transaction: %w", err)
	}
	defer tx.Rollback()

	j, err := scanPosting(tx.QueryRowContext(ctx, `SELECT `+postingColumns+` FROM job_postings WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return talent.JobPosting{}, talent.ErrNotFound
	}
	if err != nil {
		return talent.JobPosting{}, err
	}
	if err := talent.ValidateJobTransition(j.Status, status); err != nil {
		return talent.JobPosting{}, err
	}
	if j.Status == status {
		return j, nil
	}

	if _, err := tx.ExecContext(ctx, `UPDATE job_postings SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), formatTime(s.now()), id); err != nil {
		return talent.JobPosting{}, fmt.Errorf("updating job posting %d: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return talent.JobPosting{}, fmt.Errorf("committing status change: %w", err)
	}
	j.Status = status
	return j, nil
}

// ExpirePostings marks active postings whose expiry is at or before now as
// expired and returns how many changed.
func (s *Store) ExpirePostings(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE job_postings SET status = 'expired', updated_at = ?
		WHERE status = 'active' AND expires_at IS NOT NULL AND expires_at <= ?`,
		formatTime(now), formatTime(now),
	)
	if err != nil {
		return 0, fmt.Errorf("expiring job postings: %w", err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPosting(sc scanner) (talent.JobPosting, error) {
	var (
		j                   talent.JobPosting
		required, preferred string
		status, createdAt   string
		expires             sql.NullString
	)
	err := sc.Scan(&j.ID, &j.EmployerID, &j.Title, &j.Description, &j.Requirements, &j.Responsibilities,
		&required, &preferred, &j.ExperienceLevel, &j.Threshold, &status, &createdAt, &expires)
	if err != nil {
		return talent.JobPosting{}, err
	}
	j.Status = talent.JobStatus(status)
	if err := json.Unmarshal([]byte(required), &j.RequiredSkills); err != nil {
		return talent.JobPosting{}, fmt.Errorf("decoding required skills of posting %d: %w", j.ID, err)
	}
	if err := json.Unmarshal([]byte(preferred), &j.PreferredSkills); err != nil {
		return talent.JobPosting{}, fmt.Errorf("decoding preferred skills of posting %d: %w", j.ID, err)
	}
	if j.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return talent.JobPosting{}, err
	}
	if expires.Valid {
		t, err := parseTime("expires_at", expires.String)
		if err != nil {
			return talent.JobPosting{}, err
		}
		j.ExpiresAt = &t
	}
	return j, nil
}
