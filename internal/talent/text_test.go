package talent

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestCandidateText_Order(t *testing.T) {
	c := Candidate{
		ID:        1,
		FirstName: "Ada",
		LastName:  "Lovelace",
		Videos: []Video{
			{Title: "Intro", Description: "Backend engineer", Tags: []string{"Go", "SQL"}},
			{Title: "Projects", Tags: []string{"Kubernetes"}},
		},
	}

	got, err := CandidateText(c)
	if err != nil {
		t.Fatalf("CandidateText: %v", err)
	}
	want := "Ada Lovelace Intro Backend engineer Go SQL Projects Kubernetes"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestCandidateText_SkipsEmptyParts(t *testing.T) {
	c := Candidate{
		ID:     2,
		Videos: []Video{{Title: "  ", Description: "", Tags: []string{"", " "}}, {Title: "Demo reel"}},
	}

	got, err := CandidateText(c)
	if err != nil {
		t.Fatalf("CandidateText: %v", err)
	}
	if got != "Demo reel" {
		t.Errorf("got %q, want %q", got, "Demo reel")
	}
}

func TestCandidateText_Empty(t *testing.T) {
	_, err := CandidateText(Candidate{ID: 3})
	if !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("err = %v, want ErrEmptyInput", err)
	}
}

func TestCandidateText_FirstNameOnly(t *testing.T) {
	got, err := CandidateText(Candidate{FirstName: "Grace"})
	if err != nil {
		t.Fatalf("CandidateText: %v", err)
	}
	if got != "Grace" {
		t.Errorf("got %q, want Grace", got)
	}
}

func TestJobText_Order(t *testing.T) {
	j := JobPosting{
		ID:               7,
		Title:            "Backend Engineer",
		Description:      "Build APIs",
		Requirements:     "3 years",
		Responsibilities: "Own services",
		RequiredSkills:   []string{"Go", "PostgreSQL"},
		PreferredSkills:  []string{"Kafka"},
	}

	got, err := JobText(j)
	if err != nil {
		t.Fatalf("JobText: %v", err)
	}
	want := "Backend Engineer Build APIs 3 years Own services Go PostgreSQL Kafka"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestJobText_OptionalFieldsAbsent(t *testing.T) {
	got, err := JobText(JobPosting{Title: "Designer", Description: "Figma work"})
	if err != nil {
		t.Fatalf("JobText: %v", err)
	}
	if got != "Designer Figma work" {
		t.Errorf("got %q", got)
	}
}

func TestJobText_Empty(t *testing.T) {
	_, err := JobText(JobPosting{ID: 9})
	if !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("err = %v, want ErrEmptyInput", err)
	}
}

func TestCandidateSkills_FoldsAndDedupes(t *testing.T) {
	c := Candidate{Videos: []Video{
		{Tags: []string{"Go", "SQL"}},
		{Tags: []string{"go", " Docker ", ""}},
	}}

	got := SortedSkills(CandidateSkills(c))
	want := []string{"docker", "go", "sql"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestCandidateSkills_NoVideos(t *testing.T) {
	if got := CandidateSkills(Candidate{}); len(got) != 0 {
		t.Errorf("got %v, want empty set", got)
	}
}

func TestJobStatusTransitions(t *testing.T) {
	if err := ValidateJobTransition(JobActive, JobFilled); err != nil {
		t.Errorf("active -> filled: %v", err)
	}
	if err := ValidateJobTransition(JobActive, JobExpired); err != nil {
		t.Errorf("active -> expired: %v", err)
	}
	if err := ValidateJobTransition(JobFilled, JobActive); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("filled -> active: err = %v, want ErrInvalidTransition", err)
	}
	if err := ValidateJobTransition(JobExpired, JobFilled); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expired -> filled: err = %v, want ErrInvalidTransition", err)
	}
	if err := ValidateJobTransition(JobActive, "archived"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("unknown status: err = %v, want ErrInvalidTransition", err)
	}
	if err := ValidateJobTransition(JobFilled, JobFilled); err != nil {
		t.Errorf("same status should be a no-op, got %v", err)
	}
}

func TestJobPostingExpired(t *testing.T) {
	now := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	if (JobPosting{}).Expired(now) {
		t.Error("posting without expiry should not be expired")
	}
	if !(JobPosting{ExpiresAt: &past}).Expired(now) {
		t.Error("posting with past expiry should be expired")
	}
	if (JobPosting{ExpiresAt: &future}).Expired(now) {
		t.Error("posting with future expiry should not be expired")
	}
}

func TestValidate(t *testing.T) {
	if err := (JobPosting{Title: "t", Description: "d"}).Validate(); err != nil {
		t.Errorf("valid posting: %v", err)
	}
	bad := []JobPosting{
		{Description: "d"},
		{Title: "t"},
		{Title: "t", Description: "d", Threshold: 1.2},
		{Title: "t", Description: "d", Status: "open"},
	}
	for i, j := range bad {
		if err := j.Validate(); !errors.Is(err, ErrInvalid) {
			t.Errorf("posting %d: err = %v, want ErrInvalid", i, err)
		}
	}

	if err := (Candidate{Email: "a@b.c", Kind: KindJobSeeker}).Validate(); err != nil {
		t.Errorf("valid candidate: %v", err)
	}
	if err := (Candidate{Email: "a@b.c", Kind: "recruiter"}).Validate(); !errors.Is(err, ErrInvalid) {
		t.Errorf("unknown kind: err = %v, want ErrInvalid", err)
	}
	if err := (Candidate{Kind: KindEmployer}).Validate(); !errors.Is(err, ErrInvalid) {
		t.Errorf("missing email: err = %v, want ErrInvalid", err)
	}
}

func TestCandidateText_LastNameOnly(t *testing.T) {
	got, err := CandidateText(Candidate{LastName: "Hopper", Videos: []Video{{Title: "Compilers"}}})
	if err != nil {
		t.Fatalf("CandidateText: %v", err)
	}
	if got != "Hopper Compilers" {
		t.Errorf("got %q, want %q", got, "Hopper Compilers")
	}
}
