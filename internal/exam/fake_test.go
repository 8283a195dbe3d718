package exam

import (
	"context"
	"fmt"
	"sync"

	"github.com/mind-engage/mindengage-academy/internal/errs"
	"github.com/mind-engage/mindengage-academy/internal/rbac"
	"github.com/mind-engage/mindengage-academy/internal/store"
	syncx "github.com/mind-engage/mindengage-academy/internal/sync"
)

// memRepo is an in-memory Repository holding a single course and exam.
// Policy is reduced to: the student must be enrolled to take the exam.
type memRepo struct {
	mu sync.Mutex

	exam      store.Exam
	questions []store.Question
	enrolled  map[string]bool
	noExam    bool

	attempts     []store.Attempt
	certificates map[string]store.Certificate
	completed    map[string]bool

	failAttemptWrites int
	failEnrollment    error
	failCertificate   error
	recordStarted     chan struct{} // optional: signalled when RecordAttempt begins
	recordRelease     chan struct{} // optional: RecordAttempt blocks until closed
}

func newMemRepo(points []int, correct []int, passing int) *memRepo {
	r := &memRepo{
		exam:         store.Exam{ID: "exam-1", CourseID: "course-1", Title: "Final", DurationMinutes: 1, PassingScore: passing},
		enrolled:     map[string]bool{"alice": true},
		certificates: map[string]store.Certificate{},
		completed:    map[string]bool{},
	}
	for i := range points {
		c := correct[i]
		r.questions = append(r.questions, store.Question{
			ID: fmt.Sprintf("q%d", i+1), ExamID: "exam-1", Text: fmt.Sprintf("question %d", i+1),
			Options: []string{"a", "b", "c"}, CorrectIndex: &c, Position: i + 1, Points: points[i],
		})
	}
	return r
}

func (r *memRepo) ExamForCourse(_ context.Context, _ rbac.Actor, courseID string) (store.Exam, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.noExam || courseID != r.exam.CourseID {
		return store.Exam{}, fmt.Errorf("course %s: %w", courseID, errs.ErrExamNotFound)
	}
	return r.exam, nil
}

func (r *memRepo) Questions(_ context.Context, actor rbac.Actor, _ string) ([]store.Question, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]store.Question, len(r.questions))
	for i, q := range r.questions {
		if actor.Role() != rbac.RoleAdmin {
			q.CorrectIndex = nil
		}
		out[i] = q
	}
	return out, nil
}

func (r *memRepo) GradingQuestions(_ context.Context, actor rbac.Actor, _ string) ([]store.Question, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if actor.Role() != rbac.RoleAdmin && !r.enrolled[actor.ID()] {
		return nil, fmt.Errorf("take exam: %w", errs.ErrAuthorizationDenied)
	}
	return append([]store.Question(nil), r.questions...), nil
}

func (r *memRepo) RecordAttempt(_ context.Context, actor rbac.Actor, a store.Attempt) (store.Attempt, error) {
	if r.recordStarted != nil {
		r.recordStarted <- struct{}{}
	}
	if r.recordRelease != nil {
		<-r.recordRelease
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if a.StudentID != actor.ID() {
		return store.Attempt{}, fmt.Errorf("create attempt: %w", errs.ErrAuthorizationDenied)
	}
	if r.failAttemptWrites > 0 {
		r.failAttemptWrites--
		return store.Attempt{}, fmt.Errorf("create attempt: %w", errs.ErrPersistence)
	}
	a.ID = fmt.Sprintf("attempt-%d", len(r.attempts)+1)
	r.attempts = append(r.attempts, a)
	return a, nil
}

func (r *memRepo) CompleteEnrollment(_ context.Context, actor rbac.Actor, courseID string) (store.Enrollment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failEnrollment != nil {
		return store.Enrollment{}, r.failEnrollment
	}
	r.completed[actor.ID()] = true
	return store.Enrollment{ID: "enr-" + actor.ID(), StudentID: actor.ID(), CourseID: courseID, Progress: 100, Completed: true}, nil
}

func (r *memRepo) IssueCertificate(_ context.Context, actor rbac.Actor, c store.Certificate) (store.Certificate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failCertificate != nil {
		return store.Certificate{}, r.failCertificate
	}
	key := c.StudentID + "/" + c.CourseID
	if existing, ok := r.certificates[key]; ok {
		return existing, fmt.Errorf("certificate: %w", errs.ErrDuplicate)
	}
	c.ID = "cert-" + actor.ID()
	r.certificates[key] = c
	return c, nil
}

func (r *memRepo) counts() (attempts, certificates int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.attempts), len(r.certificates)
}

type memEvents struct {
	mu     sync.Mutex
	events []syncx.Event
}

func (m *memEvents) Append(_ context.Context, e syncx.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

func (m *memEvents) types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.events))
	for i, e := range m.events {
		out[i] = e.Type
	}
	return out
}
