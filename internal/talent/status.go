package talent

import "fmt"

// JobStatus is the lifecycle state of a job posting. Filled and expired are
// terminal.
type JobStatus string

const (
	JobActive  JobStatus = "active"
	JobFilled  JobStatus = "filled"
	JobExpired JobStatus = "expired"
)

var jobTransitions = map[JobStatus][]JobStatus{
	JobActive: {JobFilled, JobExpired},
}

// Valid reports whether s is a known job status.
func (s JobStatus) Valid() bool {
	switch s {
	case JobActive, JobFilled, JobExpired:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible from s.
func (s JobStatus) Terminal() bool {
	return s == JobFilled || s == JobExpired
}

// CanTransitionTo reports whether a posting in status s may move to next.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	for _, allowed := range jobTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ValidateJobTransition returns ErrInvalidTransition wrapped with context when
// from cannot move to to.
func ValidateJobTransition(from, to JobStatus) error {
	if !to.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, to)
	}
	if from == to {
		return nil
	}
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// MatchStatus is set by employer actions and is independent of the score.
type MatchStatus string

const (
	MatchPending  MatchStatus = "pending"
	MatchAccepted MatchStatus = "accepted"
	MatchRejected MatchStatus = "rejected"
)

// Valid reports whether s is a known match status.
func (s MatchStatus) Valid() bool {
	switch s {
	case MatchPending, MatchAccepted, MatchRejected:
		return true
	}
	return false
}
