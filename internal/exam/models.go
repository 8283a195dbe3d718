package exam

import (
	"fmt"

	"github.com/mind-engage/mindengage-academy/internal/store"
)

// State is a session's position in its lifecycle:
// Loading -> Ready -> InProgress -> Submitting -> Completed | Failed.
type State int

const (
	StateLoading State = iota
	StateReady
	StateInProgress
	StateSubmitting
	StateCompleted
	StateFailed
)

var stateNames = [...]string{"loading", "ready", "in_progress", "submitting", "completed", "failed"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *State) UnmarshalText(b []byte) error {
	for i, n := range stateNames {
		if n == string(b) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown session state %q", b)
}

// Terminal reports whether no further transition is expected without a retry.
func (s State) Terminal() bool { return s == StateCompleted || s == StateFailed }

// Result is the outcome of a submission.
type Result struct {
	AttemptID     string   `json:"attempt_id"`
	EarnedPoints  int      `json:"earned_points"`
	TotalPoints   int      `json:"total_points"`
	Score         int      `json:"score"`
	PassingScore  int      `json:"passing_score"`
	Passed        bool     `json:"passed"`
	TimedOut      bool     `json:"timed_out"`
	Unanswered    int      `json:"unanswered"`
	CertificateID string   `json:"certificate_id,omitempty"`
	Warnings      []string `json:"warnings,omitempty"`
}

// Snapshot is a consistent copy of a session for presentation. Questions
// never carry answer keys unless the actor may read them.
type Snapshot struct {
	ID               string           `json:"id,omitempty"`
	State            State            `json:"state"`
	CourseID         string           `json:"course_id"`
	Exam             store.Exam       `json:"exam"`
	Questions        []store.Question `json:"questions"`
	Answers          []int            `json:"answers"`
	RemainingSeconds int              `json:"remaining_seconds"`
	Result           *Result          `json:"result,omitempty"`
	Error            string           `json:"error,omitempty"`
}
