package store

import (
	"time"

	"github.com/mind-engage/mindengage-academy/internal/rbac"
)

type Account struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Role         rbac.Role `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

type Course struct {
	ID           string    `json:"id"`
	InstructorID string    `json:"instructor_id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Published    bool      `json:"published"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Video struct {
	ID          string    `json:"id"`
	CourseID    string    `json:"course_id"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Position    int       `json:"position"`
	DurationSec int       `json:"duration_sec,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type Enrollment struct {
	ID                string    `json:"id"`
	StudentID         string    `json:"student_id"`
	CourseID          string    `json:"course_id"`
	Progress          int       `json:"progress"`
	Completed         bool      `json:"completed"`
	CertificateIssued bool      `json:"certificate_issued"`
	CreatedAt         time.Time `json:"created_at"`
	LastAccessedAt    time.Time `json:"last_accessed_at"`
}

type Exam struct {
	ID              string    `json:"id"`
	CourseID        string    `json:"course_id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	DurationMinutes int       `json:"duration_minutes"`
	PassingScore    int       `json:"passing_score"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Question.CorrectIndex is nil whenever the reader may not see the answer
// key, which drops it from the JSON shape entirely.
type Question struct {
	ID           string   `json:"id"`
	ExamID       string   `json:"exam_id"`
	Text         string   `json:"text"`
	Options      []string `json:"options"`
	CorrectIndex *int     `json:"correct_index,omitempty"`
	Position     int      `json:"position"`
	Points       int      `json:"points"`
}

// Attempt.Answers holds one option index per question in question order,
// -1 for unanswered.
type Attempt struct {
	ID          string     `json:"id"`
	ExamID      string     `json:"exam_id"`
	CourseID    string     `json:"course_id"`
	StudentID   string     `json:"student_id"`
	Answers     []int      `json:"answers"`
	Score       int        `json:"score"`
	Passed      bool       `json:"passed"`
	Completed   bool       `json:"completed"`
	TimedOut    bool       `json:"timed_out"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

type Certificate struct {
	ID        string    `json:"id"`
	StudentID string    `json:"student_id"`
	CourseID  string    `json:"course_id"`
	ExamID    string    `json:"exam_id"`
	Score     int       `json:"score"`
	IssuedAt  time.Time `json:"issued_at"`
}

// CourseFacts are the course-level attributes every child row inherits for
// policy evaluation.
type CourseFacts struct {
	CourseID     string
	InstructorID string
	Published    bool
	Enrolled     bool
}

// Resource builds the policy view of a row of the given kind in this course.
func (f CourseFacts) Resource(kind rbac.Kind, ownerID string) rbac.Resource {
	return rbac.Resource{
		Kind:               kind,
		OwnerID:            ownerID,
		CourseInstructorID: f.InstructorID,
		CoursePublished:    f.Published,
		Enrolled:           f.Enrolled,
	}
}
