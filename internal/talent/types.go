package talent

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateMatch is returned by a match store when an insert collides
	// with an existing (job posting, candidate) pair.
	ErrDuplicateMatch = errors.New("match already exists for job posting and candidate")

	// ErrInvalidTransition is returned when a status change is not allowed.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrPostingClosed is returned when matching is requested for a posting
	// that is no longer active.
	ErrPostingClosed = errors.New("job posting is not active")

	// ErrInvalid is returned when a record fails validation.
	ErrInvalid = errors.New("invalid record")

	// ErrCandidateExists is returned when a candidate email is already taken.
	ErrCandidateExists = errors.New("candidate email already registered")
)

// Kind distinguishes job seekers from employers. Only job seekers take part
// in matching.
type Kind string

const (
	KindJobSeeker Kind = "jobseeker"
	KindEmployer  Kind = "employer"
)

type Candidate struct {
	ID        int64
	Email     string
	Kind      Kind
	FirstName string
	LastName  string
	Deleted   bool
	Videos    []Video
	CreatedAt time.Time
}

// Validate checks the fields required to store a candidate.
func (c Candidate) Validate() error {
	if strings.TrimSpace(c.Email) == "" {
		return fmt.Errorf("%w: candidate email is required", ErrInvalid)
	}
	if c.Kind != KindJobSeeker && c.Kind != KindEmployer {
		return fmt.Errorf("%w: unknown candidate kind %q", ErrInvalid, c.Kind)
	}
	return nil
}

// FullName joins the non-empty name parts with a single space.
func (c Candidate) FullName() string {
	switch {
	case c.FirstName != "" && c.LastName != "":
		return c.FirstName + " " + c.LastName
	case c.FirstName != "":
		return c.FirstName
	default:
		return c.LastName
	}
}

type Video struct {
	ID          int64
	Title       string
	Description string
	Tags        []string
	CreatedAt   time.Time
}

type JobPosting struct {
	ID               int64
	EmployerID       int64
	Title            string
	Description      string
	Requirements     string
	Responsibilities string
	RequiredSkills   []string
	PreferredSkills  []string
	ExperienceLevel  string
	// Threshold is the posting's own minimum match score.
	Threshold float64
	Status    JobStatus
	CreatedAt time.Time
	ExpiresAt *time.Time
}

// DefaultPostingThreshold is the stored threshold for postings that do not set one.
const DefaultPostingThreshold = 0.7

// Validate checks the fields required to store a posting.
func (j JobPosting) Validate() error {
	switch {
	case strings.TrimSpace(j.Title) == "":
		return fmt.Errorf("%w: job posting title is required", ErrInvalid)
	case strings.TrimSpace(j.Description) == "":
		return fmt.Errorf("%w: job posting description is required", ErrInvalid)
	case j.Threshold < 0 || j.Threshold > 1:
		return fmt.Errorf("%w: threshold %v outside [0, 1]", ErrInvalid, j.Threshold)
	case j.Status != "" && !j.Status.Valid():
		return fmt.Errorf("%w: unknown job status %q", ErrInvalid, j.Status)
	}
	return nil
}

// Expired reports whether the posting has an expiry time at or before now.
func (j JobPosting) Expired(now time.Time) bool {
	return j.ExpiresAt != nil && !j.ExpiresAt.After(now)
}

// SkillDetail is the skill-overlap breakdown stored alongside a match.
type SkillDetail struct {
	MatchedRequired  []string `json:"matched_required_skills"`
	MatchedPreferred []string `json:"matched_preferred_skills"`
	MissingRequired  []string `json:"missing_required_skills"`
	Percentage       float64  `json:"total_skill_match_percentage"`
}

type Match struct {
	ID           string
	JobPostingID int64
	CandidateID  int64
	Score        float64
	Skills       SkillDetail
	Status       MatchStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
