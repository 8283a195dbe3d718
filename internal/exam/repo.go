package exam

import (
	"context"

	"github.com/mind-engage/mindengage-academy/internal/rbac"
	"github.com/mind-engage/mindengage-academy/internal/store"
	syncx "github.com/mind-engage/mindengage-academy/internal/sync"
)

// Repository is the policy-checked store as the session engine sees it.
// *store.Guarded implements it.
type Repository interface {
	ExamForCourse(ctx context.Context, actor rbac.Actor, courseID string) (store.Exam, error)
	// Questions returns the actor-facing view.
	Questions(ctx context.Context, actor rbac.Actor, examID string) ([]store.Question, error)
	// GradingQuestions returns answer keys for server-side grading only.
	GradingQuestions(ctx context.Context, actor rbac.Actor, examID string) ([]store.Question, error)
	RecordAttempt(ctx context.Context, actor rbac.Actor, a store.Attempt) (store.Attempt, error)
	CompleteEnrollment(ctx context.Context, actor rbac.Actor, courseID string) (store.Enrollment, error)
	IssueCertificate(ctx context.Context, actor rbac.Actor, c store.Certificate) (store.Certificate, error)
}

// EventSink receives the domain events of a submission.
type EventSink interface {
	Append(ctx context.Context, e syncx.Event) error
}

var _ Repository = (*store.Guarded)(nil)
var _ EventSink = (*syncx.EventRepo)(nil)
