package store

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/mind-engage/mindengage-academy/internal/errs"
	"github.com/mind-engage/mindengage-academy/internal/grading"
	"github.com/mind-engage/mindengage-academy/internal/rbac"
	"github.com/mind-engage/mindengage-academy/internal/tracing"
)

func validExam(e *Exam) error {
	e.Title = strings.TrimSpace(e.Title)
	return grading.ValidateExam(e.Title, e.DurationMinutes, e.PassingScore)
}

// CreateExam attaches the single exam of a course. A second exam for the
// same course fails with ErrDuplicate.
func (g *Guarded) CreateExam(ctx context.Context, actor rbac.Actor, e Exam) (Exam, error) {
	f, err := g.facts(ctx, actor, e.CourseID)
	if err != nil {
		return Exam{}, err
	}
	if err := g.check(actor, rbac.ActionCreate, f.Resource(rbac.KindExam, "")); err != nil {
		return Exam{}, err
	}
	if err := validExam(&e); err != nil {
		return Exam{}, err
	}
	e.ID = newID()
	e.CreatedAt = now()
	e.UpdatedAt = e.CreatedAt
	if err := g.s.CreateExam(ctx, e); err != nil {
		return Exam{}, err
	}
	return e, nil
}

func (g *Guarded) exam(ctx context.Context, actor rbac.Actor, id string) (Exam, CourseFacts, error) {
	e, err := g.s.GetExam(ctx, id)
	if err != nil {
		return Exam{}, CourseFacts{}, err
	}
	f, err := g.facts(ctx, actor, e.CourseID)
	return e, f, err
}

func (g *Guarded) Exam(ctx context.Context, actor rbac.Actor, id string) (Exam, error) {
	e, f, err := g.exam(ctx, actor, id)
	if err != nil {
		return Exam{}, err
	}
	if err := g.check(actor, rbac.ActionRead, f.Resource(rbac.KindExam, "")); err != nil {
		return Exam{}, err
	}
	return e, nil
}

// ExamForCourse returns the exam of a course. A course without an exam, a
// hidden course and a missing course all yield ErrExamNotFound.
func (g *Guarded) ExamForCourse(ctx context.Context, actor rbac.Actor, courseID string) (Exam, error) {
	ctx, span := tracing.Tracer().Start(ctx, "store.ExamForCourse")
	defer span.End()
	span.SetAttributes(attribute.String("course.id", courseID))

	f, err := g.facts(ctx, actor, courseID)
	if err == nil {
		err = g.check(actor, rbac.ActionRead, f.Resource(rbac.KindExam, ""))
	}
	var e Exam
	if err == nil {
		e, err = g.s.GetExamByCourse(ctx, courseID)
	}
	if isNotFound(err) {
		return Exam{}, fmt.Errorf("course %s: %w", courseID, errs.ErrExamNotFound)
	}
	return e, err
}

func (g *Guarded) UpdateExam(ctx context.Context, actor rbac.Actor, e Exam) (Exam, error) {
	cur, f, err := g.exam(ctx, actor, e.ID)
	if err != nil {
		return Exam{}, err
	}
	if err := g.check(actor, rbac.ActionUpdate, f.Resource(rbac.KindExam, "")); err != nil {
		return Exam{}, err
	}
	if err := validExam(&e); err != nil {
		return Exam{}, err
	}
	e.CourseID = cur.CourseID
	e.CreatedAt = cur.CreatedAt
	e.UpdatedAt = now()
	if err := g.s.UpdateExam(ctx, e); err != nil {
		return Exam{}, err
	}
	return e, nil
}

func (g *Guarded) DeleteExam(ctx context.Context, actor rbac.Actor, id string) error {
	_, f, err := g.exam(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := g.check(actor, rbac.ActionDelete, f.Resource(rbac.KindExam, "")); err != nil {
		return err
	}
	return g.s.DeleteExam(ctx, id)
}

// ---------- Questions ----------

// Questions returns the exam's questions in order. CorrectIndex is cleared
// unless the actor may read the answer key.
func (g *Guarded) Questions(ctx context.Context, actor rbac.Actor, examID string) ([]Question, error) {
	_, f, err := g.exam(ctx, actor, examID)
	if err != nil {
		return nil, err
	}
	r := f.Resource(rbac.KindQuestion, "")
	if err := g.check(actor, rbac.ActionRead, r); err != nil {
		return nil, err
	}
	qs, err := g.s.ListQuestions(ctx, examID)
	if err != nil {
		return nil, err
	}
	if !rbac.CanAccess(actor, rbac.ActionReadAnswerKey, r) {
		for i := range qs {
			qs[i].CorrectIndex = nil
		}
	}
	return qs, nil
}

// GradingQuestions returns questions with their answer keys for
// server-side grading. The actor must be able to take the exam or read its
// answer key. The result must never be serialized to the actor.
func (g *Guarded) GradingQuestions(ctx context.Context, actor rbac.Actor, examID string) ([]Question, error) {
	ctx, span := tracing.Tracer().Start(ctx, "store.GradingQuestions")
	defer span.End()

	_, f, err := g.exam(ctx, actor, examID)
	if err != nil {
		return nil, err
	}
	if err := g.check(actor, rbac.ActionRead, f.Resource(rbac.KindExam, "")); err != nil {
		return nil, err
	}
	if !rbac.CanAccess(actor, rbac.ActionReadAnswerKey, f.Resource(rbac.KindQuestion, "")) {
		if err := g.check(actor, rbac.ActionTake, f.Resource(rbac.KindExam, "")); err != nil {
			return nil, err
		}
	}
	return g.s.ListQuestions(ctx, examID)
}

func validQuestion(q *Question) error {
	q.Text = strings.TrimSpace(q.Text)
	for i := range q.Options {
		q.Options[i] = strings.TrimSpace(q.Options[i])
	}
	if q.Points == 0 {
		q.Points = 1
	}
	if q.CorrectIndex == nil {
		return fmt.Errorf("correct answer: %w", errs.ErrInvalidInput)
	}
	return grading.ValidateQuestion(q.Text, q.Options, *q.CorrectIndex, q.Points)
}

func (g *Guarded) CreateQuestion(ctx context.Context, actor rbac.Actor, q Question) (Question, error) {
	_, f, err := g.exam(ctx, actor, q.ExamID)
	if err != nil {
		return Question{}, err
	}
	if err := g.check(actor, rbac.ActionCreate, f.Resource(rbac.KindQuestion, "")); err != nil {
		return Question{}, err
	}
	if err := validQuestion(&q); err != nil {
		return Question{}, err
	}
	if q.Position <= 0 {
		if q.Position, err = g.s.NextQuestionPosition(ctx, q.ExamID); err != nil {
			return Question{}, err
		}
	}
	q.ID = newID()
	if err := g.s.CreateQuestion(ctx, q); err != nil {
		return Question{}, err
	}
	return q, nil
}

func (g *Guarded) question(ctx context.Context, actor rbac.Actor, id string) (Question, CourseFacts, error) {
	q, err := g.s.GetQuestion(ctx, id)
	if err != nil {
		return Question{}, CourseFacts{}, err
	}
	courseID, err := g.s.ExamCourseID(ctx, q.ExamID)
	if err != nil {
		return Question{}, CourseFacts{}, err
	}
	f, err := g.facts(ctx, actor, courseID)
	return q, f, err
}

func (g *Guarded) UpdateQuestion(ctx context.Context, actor rbac.Actor, q Question) (Question, error) {
	cur, f, err := g.question(ctx, actor, q.ID)
	if err != nil {
		return Question{}, err
	}
	if err := g.check(actor, rbac.ActionUpdate, f.Resource(rbac.KindQuestion, "")); err != nil {
		return Question{}, err
	}
	q.ExamID = cur.ExamID
	if q.Position <= 0 {
		q.Position = cur.Position
	}
	if q.CorrectIndex == nil {
		q.CorrectIndex = cur.CorrectIndex
	}
	if err := validQuestion(&q); err != nil {
		return Question{}, err
	}
	if err := g.s.UpdateQuestion(ctx, q); err != nil {
		return Question{}, err
	}
	return q, nil
}

func (g *Guarded) DeleteQuestion(ctx context.Context, actor rbac.Actor, id string) error {
	_, f, err := g.question(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := g.check(actor, rbac.ActionDelete, f.Resource(rbac.KindQuestion, "")); err != nil {
		return err
	}
	return g.s.DeleteQuestion(ctx, id)
}
