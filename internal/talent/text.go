package talent

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrEmptyInput is returned when an entity carries no text that can be embedded.
var ErrEmptyInput = errors.New("no embeddable text")

// CandidateText assembles the profile text of a candidate: full name, then for
// each video its title, description and space-joined tag names. Empty parts
// are skipped.
func CandidateText(c Candidate) (string, error) {
	parts := make([]string, 0, 1+3*len(c.Videos))
	parts = appendPart(parts, c.FullName())
	for _, v := range c.Videos {
		parts = appendPart(parts, v.Title)
		parts = appendPart(parts, v.Description)
		parts = appendPart(parts, joinNonEmpty(v.Tags))
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("candidate %d: %w", c.ID, ErrEmptyInput)
	}
	return strings.Join(parts, " "), nil
}

// JobText assembles the text of a job posting: title, description,
// requirements, responsibilities, required skills and preferred skills.
func JobText(j JobPosting) (string, error) {
	parts := make([]string, 0, 6)
	parts = appendPart(parts, j.Title)
	parts = appendPart(parts, j.Description)
	parts = appendPart(parts, j.Requirements)
	parts = appendPart(parts, j.Responsibilities)
	parts = appendPart(parts, joinNonEmpty(j.RequiredSkills))
	parts = appendPart(parts, joinNonEmpty(j.PreferredSkills))
	if len(parts) == 0 {
		return "", fmt.Errorf("job posting %d: %w", j.ID, ErrEmptyInput)
	}
	return strings.Join(parts, " "), nil
}

// CandidateSkills derives the candidate's skill set: the case-folded union of
// tag names across all videos.
func CandidateSkills(c Candidate) map[string]struct{} {
	skills := make(map[string]struct{})
	for _, v := range c.Videos {
		for _, tag := range v.Tags {
			if s := FoldSkill(tag); s != "" {
				skills[s] = struct{}{}
			}
		}
	}
	return skills
}

// SkillSet folds a list of skills into a set, dropping blanks and duplicates.
func SkillSet(skills []string) map[string]struct{} {
	set := make(map[string]struct{}, len(skills))
	for _, s := range skills {
		if f := FoldSkill(s); f != "" {
			set[f] = struct{}{}
		}
	}
	return set
}

// FoldSkill normalises a skill or tag name for case-insensitive comparison.
func FoldSkill(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// SortedSkills returns the members of set in ascending order.
func SortedSkills(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func appendPart(parts []string, s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return parts
	}
	return append(parts, s)
}

func joinNonEmpty(items []string) string {
	kept := make([]string, 0, len(items))
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			kept = append(kept, it)
		}
	}
	return strings.Join(kept, " ")
}
