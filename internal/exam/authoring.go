package exam

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mind-engage/mindengage-academy/internal/errs"
	"github.com/mind-engage/mindengage-academy/internal/grading"
	"github.com/mind-engage/mindengage-academy/internal/rbac"
	"github.com/mind-engage/mindengage-academy/internal/store"
)

// AuthorRepository is the guarded store as exam authoring sees it.
type AuthorRepository interface {
	CreateExam(ctx context.Context, actor rbac.Actor, e store.Exam) (store.Exam, error)
	ExamForCourse(ctx context.Context, actor rbac.Actor, courseID string) (store.Exam, error)
	Exam(ctx context.Context, actor rbac.Actor, id string) (store.Exam, error)
	UpdateExam(ctx context.Context, actor rbac.Actor, e store.Exam) (store.Exam, error)
	DeleteExam(ctx context.Context, actor rbac.Actor, id string) error
	Questions(ctx context.Context, actor rbac.Actor, examID string) ([]store.Question, error)
	CreateQuestion(ctx context.Context, actor rbac.Actor, q store.Question) (store.Question, error)
	UpdateQuestion(ctx context.Context, actor rbac.Actor, q store.Question) (store.Question, error)
	DeleteQuestion(ctx context.Context, actor rbac.Actor, id string) error
}

// QuestionInput is an authored question. The correct answer is given as
// an option index or, for older clients, as the option text.
type QuestionInput struct {
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	CorrectIndex  *int     `json:"correct_index,omitempty"`
	CorrectAnswer string   `json:"correct_answer,omitempty"`
	Points        int      `json:"points"`
	Position      int      `json:"position"`
}

// ExamInput is an authored exam. PassingScore defaults to 70.
type ExamInput struct {
	Title           string `json:"title"`
	Description     string `json:"description"`
	DurationMinutes int    `json:"duration_minutes"`
	PassingScore    *int   `json:"passing_score,omitempty"`
}

const defaultPassingScore = 70

// Authoring validates authored exams and questions and stores them through
// the policy layer.
type Authoring struct {
	repo AuthorRepository
}

func NewAuthoring(repo AuthorRepository) *Authoring { return &Authoring{repo: repo} }

func (in ExamInput) exam() store.Exam {
	pass := defaultPassingScore
	if in.PassingScore != nil {
		pass = *in.PassingScore
	}
	return store.Exam{
		Title:           strings.TrimSpace(in.Title),
		Description:     strings.TrimSpace(in.Description),
		DurationMinutes: in.DurationMinutes,
		PassingScore:    pass,
	}
}

func (a *Authoring) CreateExam(ctx context.Context, actor rbac.Actor, courseID string, in ExamInput) (store.Exam, error) {
	e := in.exam()
	e.CourseID = courseID
	return a.repo.CreateExam(ctx, actor, e)
}

func (a *Authoring) UpdateExam(ctx context.Context, actor rbac.Actor, examID string, in ExamInput) (store.Exam, error) {
	if in.PassingScore == nil {
		cur, err := a.repo.Exam(ctx, actor, examID)
		if err != nil {
			return store.Exam{}, err
		}
		in.PassingScore = &cur.PassingScore
	}
	e := in.exam()
	e.ID = examID
	return a.repo.UpdateExam(ctx, actor, e)
}

func (a *Authoring) DeleteExam(ctx context.Context, actor rbac.Actor, examID string) error {
	return a.repo.DeleteExam(ctx, actor, examID)
}

// ExamWithQuestions returns a course's exam and its actor-facing questions.
func (a *Authoring) ExamWithQuestions(ctx context.Context, actor rbac.Actor, courseID string) (store.Exam, []store.Question, error) {
	e, err := a.repo.ExamForCourse(ctx, actor, courseID)
	if err != nil {
		return store.Exam{}, nil, err
	}
	// Exam metadata of a published course is public; its questions are not.
	qs, err := a.repo.Questions(ctx, actor, e.ID)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return store.Exam{}, nil, err
	}
	return e, qs, nil
}

// question converts the input to the canonical index form.
func (in QuestionInput) question() (store.Question, error) {
	q := store.Question{
		Text:     strings.TrimSpace(in.Text),
		Options:  append([]string(nil), in.Options...),
		Points:   in.Points,
		Position: in.Position,
	}
	switch {
	case in.CorrectIndex != nil:
		c := *in.CorrectIndex
		q.CorrectIndex = &c
	case strings.TrimSpace(in.CorrectAnswer) != "":
		c, err := grading.ResolveChoice(q.Options, in.CorrectAnswer)
		if err != nil {
			return store.Question{}, fmt.Errorf("correct answer %q: %w", in.CorrectAnswer, err)
		}
		q.CorrectIndex = &c
	}
	return q, nil
}

func (a *Authoring) AddQuestion(ctx context.Context, actor rbac.Actor, examID string, in QuestionInput) (store.Question, error) {
	q, err := in.question()
	if err != nil {
		return store.Question{}, err
	}
	if q.CorrectIndex == nil {
		return store.Question{}, fmt.Errorf("correct answer: %w", errs.ErrInvalidInput)
	}
	q.ExamID = examID
	return a.repo.CreateQuestion(ctx, actor, q)
}

// EditQuestion replaces a question's content. Without a correct answer in
// the input the stored one is kept.
func (a *Authoring) EditQuestion(ctx context.Context, actor rbac.Actor, questionID string, in QuestionInput) (store.Question, error) {
	q, err := in.question()
	if err != nil {
		return store.Question{}, err
	}
	q.ID = questionID
	return a.repo.UpdateQuestion(ctx, actor, q)
}

func (a *Authoring) DeleteQuestion(ctx context.Context, actor rbac.Actor, questionID string) error {
	return a.repo.DeleteQuestion(ctx, actor, questionID)
}

var _ AuthorRepository = (*store.Guarded)(nil)
