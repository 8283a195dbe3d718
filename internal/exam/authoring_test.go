package exam

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mind-engage/mindengage-academy/internal/db"
	"github.com/mind-engage/mindengage-academy/internal/errs"
	"github.com/mind-engage/mindengage-academy/internal/rbac"
	"github.com/mind-engage/mindengage-academy/internal/store"
	syncx "github.com/mind-engage/mindengage-academy/internal/sync"
)

type sqlFixture struct {
	guard  *store.Guarded
	events *syncx.EventRepo
	ines   rbac.Actor
	alice  rbac.Actor
	course store.Course
}

func newSQLFixture(t *testing.T) *sqlFixture {
	t.Helper()
	ctx := context.Background()
	h, err := db.Open(ctx, db.DriverSQLite, "file:"+filepath.Join(t.TempDir(), "exam.db")+"?_pragma=foreign_keys(1)")
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })

	g := store.NewGuarded(store.NewSQLStore(h, db.DriverSQLite), zaptest.NewLogger(t))
	signup := func(email string, role rbac.Role) rbac.Actor {
		a, err := g.Signup(ctx, rbac.Anonymous{}, store.Account{Email: email, Role: role, PasswordHash: "x"})
		require.NoError(t, err)
		return rbac.NewActor(a.Role, a.ID)
	}
	f := &sqlFixture{guard: g, events: syncx.NewEventRepo(h, ""), ines: signup("ines@example.com", rbac.RoleInstructor), alice: signup("alice@example.com", rbac.RoleStudent)}

	c, err := g.CreateCourse(ctx, f.ines, store.Course{Title: "Geography", Published: true})
	require.NoError(t, err)
	f.course = c
	return f
}

func TestAuthoringResolvesTextAnswers(t *testing.T) {
	f := newSQLFixture(t)
	a := NewAuthoring(f.guard)
	ctx := context.Background()

	e, err := a.CreateExam(ctx, f.ines, f.course.ID, ExamInput{Title: "Capitals", DurationMinutes: 5})
	require.NoError(t, err)
	assert.Equal(t, 70, e.PassingScore)

	q, err := a.AddQuestion(ctx, f.ines, e.ID, QuestionInput{
		Text: "Capital of France?", Options: []string{"Lyon", "Paris", "Nice"}, CorrectAnswer: "paris",
	})
	require.NoError(t, err)
	require.NotNil(t, q.CorrectIndex)
	assert.Equal(t, 1, *q.CorrectIndex)

	_, err = a.AddQuestion(ctx, f.ines, e.ID, QuestionInput{Text: "x", Options: []string{"a", "b"}, CorrectAnswer: "c"})
	assert.ErrorIs(t, err, errs.ErrInvalidInput)
	_, err = a.AddQuestion(ctx, f.ines, e.ID, QuestionInput{Text: "x", Options: []string{"a", "b"}})
	assert.ErrorIs(t, err, errs.ErrInvalidInput)

	// Editing without an answer keeps the stored key.
	edited, err := a.EditQuestion(ctx, f.ines, q.ID, QuestionInput{Text: "Capital city of France?", Options: []string{"Lyon", "Paris", "Nice"}})
	require.NoError(t, err)
	assert.Equal(t, 1, *edited.CorrectIndex)

	updated, err := a.UpdateExam(ctx, f.ines, e.ID, ExamInput{Title: "Capitals II", DurationMinutes: 10})
	require.NoError(t, err)
	assert.Equal(t, 70, updated.PassingScore)

	ex, qs, err := a.ExamWithQuestions(ctx, rbac.Anonymous{}, f.course.ID)
	require.NoError(t, err)
	assert.Equal(t, "Capitals II", ex.Title)
	assert.Nil(t, qs)

	_, qs, err = a.ExamWithQuestions(ctx, f.ines, f.course.ID)
	require.NoError(t, err)
	require.Len(t, qs, 1)
	assert.NotNil(t, qs[0].CorrectIndex)
}

// A passing exam submitted twice leaves one attempt and one certificate.
func TestDoubleSubmitAgainstSQLStore(t *testing.T) {
	f := newSQLFixture(t)
	ctx := context.Background()
	a := NewAuthoring(f.guard)
	pass := 50
	e, err := a.CreateExam(ctx, f.ines, f.course.ID, ExamInput{Title: "Final", DurationMinutes: 1, PassingScore: &pass})
	require.NoError(t, err)
	for _, ans := range []string{"a", "c"} {
		_, err := a.AddQuestion(ctx, f.ines, e.ID, QuestionInput{Text: "pick " + ans, Options: []string{"a", "b", "c"}, CorrectAnswer: ans})
		require.NoError(t, err)
	}
	_, _, err = f.guard.Enroll(ctx, f.alice, f.course.ID)
	require.NoError(t, err)

	s := NewSession(f.guard, f.alice, Options{Clock: clock.NewMock(), Logger: zaptest.NewLogger(t), Events: f.events})
	t.Cleanup(s.Cancel)
	require.NoError(t, s.Load(ctx, f.course.ID))
	for _, q := range s.Snapshot().Questions {
		assert.Nil(t, q.CorrectIndex)
	}
	require.NoError(t, s.Start(ctx))
	require.NoError(t, s.SelectAnswer(0, 0))
	require.NoError(t, s.SelectAnswer(1, 2))

	first, err := s.Submit(ctx)
	require.NoError(t, err)
	second, err := s.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Empty(t, first.Warnings)
	assert.NotEmpty(t, first.CertificateID)

	attempts, err := f.guard.Attempts(ctx, f.alice, f.course.ID)
	require.NoError(t, err)
	assert.Len(t, attempts, 1)
	certs, err := f.guard.Certificates(ctx, f.alice)
	require.NoError(t, err)
	assert.Len(t, certs, 1)

	enr, err := f.guard.Enrollment(ctx, f.alice, f.course.ID, f.alice.ID())
	require.NoError(t, err)
	assert.True(t, enr.Completed)
	assert.True(t, enr.CertificateIssued)

	evs, err := f.events.Since(ctx, 0, 0)
	require.NoError(t, err)
	assert.Len(t, evs, 3)

	// A second session for the same student passes again without a second certificate.
	s2 := NewSession(f.guard, f.alice, Options{Clock: clock.NewMock()})
	t.Cleanup(s2.Cancel)
	require.NoError(t, s2.Load(ctx, f.course.ID))
	require.NoError(t, s2.Start(ctx))
	require.NoError(t, s2.SelectAnswer(0, 0))
	require.NoError(t, s2.SelectAnswer(1, 2))
	res, err := s2.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.CertificateID, res.CertificateID)
	certs, err = f.guard.Certificates(ctx, f.alice)
	require.NoError(t, err)
	assert.Len(t, certs, 1)
}

func TestInstructorPreviewCannotRecordAttempt(t *testing.T) {
	f := newSQLFixture(t)
	ctx := context.Background()
	a := NewAuthoring(f.guard)
	e, err := a.CreateExam(ctx, f.ines, f.course.ID, ExamInput{Title: "Final", DurationMinutes: 1})
	require.NoError(t, err)
	zero := 0
	_, err = a.AddQuestion(ctx, f.ines, e.ID, QuestionInput{Text: "q", Options: []string{"a", "b"}, CorrectIndex: &zero})
	require.NoError(t, err)

	s := NewSession(f.guard, f.ines, Options{Clock: clock.NewMock()})
	t.Cleanup(s.Cancel)
	require.NoError(t, s.Load(ctx, f.course.ID))
	assert.NotNil(t, s.Snapshot().Questions[0].CorrectIndex, "owners see the answer key")
	require.NoError(t, s.Start(ctx))
	_, err = s.Submit(ctx)
	assert.ErrorIs(t, err, errs.ErrAuthorizationDenied)
	assert.Equal(t, StateFailed, s.State())
}
