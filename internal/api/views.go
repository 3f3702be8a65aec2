package api

import (
	"time"

	"github.com/mohammedpatel29/ReelResumeBuilderMP1/internal/matching"
	"github.com/mohammedpatel29/ReelResumeBuilderMP1/internal/talent"
)

// JobPostingRequest is the body of POST /jobs.
type JobPostingRequest struct {
	EmployerID       int64      `json:"employer_id"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	Requirements     string     `json:"requirements"`
	Responsibilities string     `json:"responsibilities"`
	RequiredSkills   []string   `json:"required_skills"`
	PreferredSkills  []string   `json:"preferred_skills"`
	ExperienceLevel  string     `json:"experience_level"`
	Threshold        *float64   `json:"matching_score_threshold,omitempty"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
}

// posting converts the request. An omitted threshold becomes
// talent.DefaultPostingThreshold; an explicit 0 is kept.
func (r JobPostingRequest) posting() talent.JobPosting {
	threshold := talent.DefaultPostingThreshold
	if r.Threshold != nil {
		threshold = *r.Threshold
	}
	return talent.JobPosting{
		EmployerID:       r.EmployerID,
		Title:            r.Title,
		Description:      r.Description,
		Requirements:     r.Requirements,
		Responsibilities: r.Responsibilities,
		RequiredSkills:   r.RequiredSkills,
		PreferredSkills:  r.PreferredSkills,
		ExperienceLevel:  r.ExperienceLevel,
		Threshold:        threshold,
		ExpiresAt:        r.ExpiresAt,
	}
}

type JobPostingView struct {
	ID               int64      `json:"id"`
	EmployerID       int64      `json:"employer_id"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	Requirements     string     `json:"requirements,omitempty"`
	Responsibilities string     `json:"responsibilities,omitempty"`
	RequiredSkills   []string   `json:"required_skills"`
	PreferredSkills  []string   `json:"preferred_skills"`
	ExperienceLevel  string     `json:"experience_level,omitempty"`
	Threshold        float64    `json:"matching_score_threshold"`
	Status           string     `json:"status"`
	CreatedAt        time.Time  `json:"created_at"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
}

func postingView(j talent.JobPosting) JobPostingView {
	return JobPostingView{
		ID:               j.ID,
		EmployerID:       j.EmployerID,
		Title:            j.Title,
		Description:      j.Description,
		Requirements:     j.Requirements,
		Responsibilities: j.Responsibilities,
		RequiredSkills:   nonNil(j.RequiredSkills),
		PreferredSkills:  nonNil(j.PreferredSkills),
		ExperienceLevel:  j.ExperienceLevel,
		Threshold:        j.Threshold,
		Status:           string(j.Status),
		CreatedAt:        j.CreatedAt,
		ExpiresAt:        j.ExpiresAt,
	}
}

// CandidateRequest is the body of POST /candidates.
type CandidateRequest struct {
	Email     string         `json:"email"`
	Kind      string         `json:"kind"`
	FirstName string         `json:"first_name"`
	LastName  string         `json:"last_name"`
	Videos    []VideoPayload `json:"videos"`
}

type VideoPayload struct {
	ID          int64    `json:"id,omitempty"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

func (r CandidateRequest) candidate() talent.Candidate {
	kind := talent.Kind(r.Kind)
	if kind == "" {
		kind = talent.KindJobSeeker
	}
	c := talent.Candidate{
		Email:     r.Email,
		Kind:      kind,
		FirstName: r.FirstName,
		LastName:  r.LastName,
	}
	for _, v := range r.Videos {
		c.Videos = append(c.Videos, talent.Video{Title: v.Title, Description: v.Description, Tags: v.Tags})
	}
	return c
}

type CandidateView struct {
	ID        int64          `json:"id"`
	Email     string         `json:"email"`
	Kind      string         `json:"kind"`
	Name      string         `json:"name"`
	Videos    []VideoPayload `json:"videos"`
	CreatedAt time.Time      `json:"created_at"`
}

func candidateView(c talent.Candidate) CandidateView {
	v := CandidateView{
		ID:        c.ID,
		Email:     c.Email,
		Kind:      string(c.Kind),
		Name:      c.FullName(),
		Videos:    make([]VideoPayload, 0, len(c.Videos)),
		CreatedAt: c.CreatedAt,
	}
	for _, vid := range c.Videos {
		v.Videos = append(v.Videos, VideoPayload{ID: vid.ID, Title: vid.Title, Description: vid.Description, Tags: nonNil(vid.Tags)})
	}
	return v
}

type MatchView struct {
	ID           string             `json:"id"`
	JobPostingID int64              `json:"job_posting_id"`
	CandidateID  int64              `json:"candidate_id"`
	Score        float64            `json:"match_score"`
	Skills       talent.SkillDetail `json:"match_details"`
	Status       string             `json:"status"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

func matchView(m talent.Match) MatchView {
	return MatchView{
		ID:           m.ID,
		JobPostingID: m.JobPostingID,
		CandidateID:  m.CandidateID,
		Score:        m.Score,
		Skills:       skillView(m.Skills),
		Status:       string(m.Status),
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

// RankedView is one entry of a match run response.
type RankedView struct {
	CandidateID int64              `json:"candidate_id"`
	Name        string             `json:"name"`
	Email       string             `json:"email"`
	Score       float64            `json:"match_score"`
	MatchID     string             `json:"match_id,omitempty"`
	Skills      talent.SkillDetail `json:"match_details"`
}

type SkippedView struct {
	CandidateID int64   `json:"candidate_id"`
	Reason      string  `json:"reason"`
	Score       float64 `json:"score,omitempty"`
}

// ReportView is the response of a synchronous match run.
type ReportView struct {
	JobPostingID int64         `json:"job_posting_id"`
	Threshold    float64       `json:"threshold"`
	Persisted    bool          `json:"persisted"`
	StoreError   string        `json:"store_error,omitempty"`
	Matches      []RankedView  `json:"matches"`
	Skipped      []SkippedView `json:"skipped"`
}

func reportView(rep *matching.Report) ReportView {
	v := ReportView{
		JobPostingID: rep.JobPostingID,
		Threshold:    rep.Threshold,
		Persisted:    rep.Persisted,
		Matches:      make([]RankedView, 0, len(rep.Ranked)),
		Skipped:      []SkippedView{},
	}
	if rep.StoreErr != nil {
		v.StoreError = rep.StoreErr.Error()
	}
	for _, r := range rep.Ranked {
		v.Matches = append(v.Matches, RankedView{
			CandidateID: r.Candidate.ID,
			Name:        r.Candidate.FullName(),
			Email:       r.Candidate.Email,
			Score:       r.Score,
			MatchID:     r.MatchID,
			Skills:      skillView(r.Skills),
		})
	}
	for _, o := range rep.Outcomes {
		if o.Matched() {
			continue
		}
		v.Skipped = append(v.Skipped, SkippedView{CandidateID: o.CandidateID, Reason: string(o.Reason), Score: o.Score})
	}
	return v
}

// skillView keeps empty skill lists as [] rather than null.
func skillView(d talent.SkillDetail) talent.SkillDetail {
	d.MatchedRequired = nonNil(d.MatchedRequired)
	d.MatchedPreferred = nonNil(d.MatchedPreferred)
	d.MissingRequired = nonNil(d.MissingRequired)
	return d
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
