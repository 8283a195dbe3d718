package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mind-engage/mindengage-academy/internal/db"
	"github.com/mind-engage/mindengage-academy/internal/errs"
	"github.com/mind-engage/mindengage-academy/internal/rbac"
)

type fixture struct {
	g          *Guarded
	ines, otto rbac.Actor
	alice, bob rbac.Actor
	root       rbac.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	dsn := "file:" + filepath.Join(t.TempDir(), "academy.db") + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	h, err := db.Open(ctx, db.DriverSQLite, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })

	g := NewGuarded(NewSQLStore(h, db.DriverSQLite), zaptest.NewLogger(t))
	signup := func(email string, role rbac.Role) rbac.Actor {
		var by rbac.Actor = rbac.Anonymous{}
		if role == rbac.RoleAdmin {
			by = rbac.Admin{AccountID: "bootstrap"}
		}
		a, err := g.Signup(ctx, by, Account{Email: email, Name: email, Role: role, PasswordHash: "x"})
		require.NoError(t, err)
		return rbac.NewActor(a.Role, a.ID)
	}
	return &fixture{
		g:     g,
		ines:  signup("ines@example.com", rbac.RoleInstructor),
		otto:  signup("otto@example.com", rbac.RoleInstructor),
		alice: signup("alice@example.com", rbac.RoleStudent),
		bob:   signup("bob@example.com", rbac.RoleStudent),
		root:  signup("root@example.com", rbac.RoleAdmin),
	}
}

func (f *fixture) course(t *testing.T, published bool) Course {
	t.Helper()
	ctx := context.Background()
	c, err := f.g.CreateCourse(ctx, f.ines, Course{Title: "Go 101"})
	require.NoError(t, err)
	if published {
		c.Published = true
		c, err = f.g.UpdateCourse(ctx, f.ines, c)
		require.NoError(t, err)
	}
	return c
}

// examWithTwoQuestions returns an exam with points [1,1], passing 50 and
// correct answers [0, 2].
func (f *fixture) examWithTwoQuestions(t *testing.T, courseID string) Exam {
	t.Helper()
	ctx := context.Background()
	e, err := f.g.CreateExam(ctx, f.ines, Exam{CourseID: courseID, Title: "Final", DurationMinutes: 10, PassingScore: 50})
	require.NoError(t, err)
	for i, correct := range []int{0, 2} {
		c := correct
		_, err := f.g.CreateQuestion(ctx, f.ines, Question{
			ExamID: e.ID, Text: "q" + string(rune('1'+i)), Options: []string{"a", "b", "c"}, CorrectIndex: &c,
		})
		require.NoError(t, err)
	}
	return e
}

func TestSignupRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.g.Signup(ctx, rbac.Anonymous{}, Account{Email: "x@example.com", Role: rbac.RoleAdmin, PasswordHash: "x"})
	assert.ErrorIs(t, err, errs.ErrAuthorizationDenied)

	_, err = f.g.Signup(ctx, rbac.Anonymous{}, Account{Email: "ALICE@example.com", Role: rbac.RoleStudent, PasswordHash: "x"})
	assert.ErrorIs(t, err, errs.ErrDuplicate)

	_, err = f.g.Signup(ctx, rbac.Anonymous{}, Account{Email: "not-an-email", Role: rbac.RoleStudent, PasswordHash: "x"})
	assert.ErrorIs(t, err, errs.ErrInvalidInput)

	_, err = f.g.Signup(ctx, f.alice, Account{Email: "y@example.com", Role: rbac.RoleStudent, PasswordHash: "x"})
	assert.ErrorIs(t, err, errs.ErrAuthorizationDenied)

	_, err = f.g.Account(ctx, f.bob, f.alice.ID())
	assert.ErrorIs(t, err, errs.ErrNotFound)
	me, err := f.g.Account(ctx, f.alice, f.alice.ID())
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", me.Email)
}

func TestCourseVisibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	draft := f.course(t, false)
	pub := f.course(t, true)

	for name, actor := range map[string]rbac.Actor{"anon": rbac.Anonymous{}, "student": f.alice, "other instructor": f.otto} {
		_, err := f.g.Course(ctx, actor, draft.ID)
		assert.ErrorIs(t, err, errs.ErrNotFound, name)
		_, err = f.g.Course(ctx, actor, pub.ID)
		assert.NoError(t, err, name)

		list, err := f.g.Courses(ctx, actor, "", 0, 0)
		require.NoError(t, err)
		assert.Len(t, list, 1, name)
	}

	// A missing row and a hidden row are indistinguishable.
	_, errHidden := f.g.Course(ctx, f.alice, draft.ID)
	_, errMissing := f.g.Course(ctx, f.alice, "no-such-course")
	assert.ErrorIs(t, errHidden, errs.ErrNotFound)
	assert.ErrorIs(t, errMissing, errs.ErrNotFound)

	for _, actor := range []rbac.Actor{f.ines, f.root} {
		list, err := f.g.Courses(ctx, actor, "", 0, 0)
		require.NoError(t, err)
		assert.Len(t, list, 2)
	}

	list, err := f.g.Courses(ctx, f.ines, "nothing matches", 0, 0)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestWriteDenials(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	draft := f.course(t, false)
	pub := f.course(t, true)

	_, err := f.g.UpdateCourse(ctx, f.otto, Course{ID: pub.ID, Title: "mine now"})
	assert.ErrorIs(t, err, errs.ErrAuthorizationDenied)
	_, err = f.g.UpdateCourse(ctx, f.otto, Course{ID: draft.ID, Title: "mine now"})
	assert.ErrorIs(t, err, errs.ErrNotFound)

	_, err = f.g.CreateVideo(ctx, f.alice, Video{CourseID: pub.ID, Title: "v", URL: "https://youtu.be/x"})
	assert.ErrorIs(t, err, errs.ErrAuthorizationDenied)

	_, err = f.g.CreateCourse(ctx, f.alice, Course{Title: "nope"})
	assert.ErrorIs(t, err, errs.ErrAuthorizationDenied)

	assert.ErrorIs(t, f.g.DeleteCourse(ctx, f.otto, pub.ID), errs.ErrAuthorizationDenied)
	require.NoError(t, f.g.DeleteCourse(ctx, f.ines, pub.ID))
	_, err = f.g.Course(ctx, f.ines, pub.ID)
	assert.ErrorIs(t, err, errs.ErrNotFound)

	// Ownership survives an update that tries to move it.
	c, err := f.g.UpdateCourse(ctx, f.ines, Course{ID: draft.ID, Title: "Renamed", InstructorID: f.otto.ID()})
	require.NoError(t, err)
	assert.Equal(t, f.ines.ID(), c.InstructorID)
}

func TestVideosOrderedAndGuarded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.course(t, true)

	v1, err := f.g.CreateVideo(ctx, f.ines, Video{CourseID: c.ID, Title: "one", URL: "https://youtu.be/1"})
	require.NoError(t, err)
	v2, err := f.g.CreateVideo(ctx, f.ines, Video{CourseID: c.ID, Title: "two", URL: "https://youtu.be/2"})
	require.NoError(t, err)
	assert.Equal(t, 1, v1.Position)
	assert.Equal(t, 2, v2.Position)

	_, err = f.g.CreateVideo(ctx, f.ines, Video{CourseID: c.ID, Title: "clash", URL: "https://youtu.be/3", Position: 2})
	assert.ErrorIs(t, err, errs.ErrDuplicate)

	vs, err := f.g.Videos(ctx, rbac.Anonymous{}, c.ID)
	require.NoError(t, err)
	require.Len(t, vs, 2)
	assert.Equal(t, []string{"one", "two"}, []string{vs[0].Title, vs[1].Title})

	assert.ErrorIs(t, f.g.DeleteVideo(ctx, f.otto, v1.ID), errs.ErrAuthorizationDenied)
	require.NoError(t, f.g.DeleteVideo(ctx, f.ines, v1.ID))
}

func TestEnrollAndProgress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	draft := f.course(t, false)
	c := f.course(t, true)

	_, _, err := f.g.Enroll(ctx, f.alice, draft.ID)
	assert.ErrorIs(t, err, errs.ErrNotFound)

	e, created, err := f.g.Enroll(ctx, f.alice, c.ID)
	require.NoError(t, err)
	assert.True(t, created)
	again, created, err := f.g.Enroll(ctx, f.alice, c.ID)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, e.ID, again.ID)

	v1, err := f.g.CreateVideo(ctx, f.ines, Video{CourseID: c.ID, Title: "one", URL: "https://youtu.be/1"})
	require.NoError(t, err)
	v2, err := f.g.CreateVideo(ctx, f.ines, Video{CourseID: c.ID, Title: "two", URL: "https://youtu.be/2"})
	require.NoError(t, err)

	e, err = f.g.RecordVideoCompletion(ctx, f.alice, v1.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, e.Progress)
	e, err = f.g.RecordVideoCompletion(ctx, f.alice, v1.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, e.Progress)
	e, err = f.g.RecordVideoCompletion(ctx, f.alice, v2.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, e.Progress)

	// Bob is not enrolled.
	_, err = f.g.RecordVideoCompletion(ctx, f.bob, v1.ID)
	assert.ErrorIs(t, err, errs.ErrNotFound)

	_, _, err = f.g.Enroll(ctx, f.bob, c.ID)
	require.NoError(t, err)

	owned, err := f.g.CourseEnrollments(ctx, f.ines, c.ID)
	require.NoError(t, err)
	assert.Len(t, owned, 2)
	own, err := f.g.CourseEnrollments(ctx, f.alice, c.ID)
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, f.alice.ID(), own[0].StudentID)
	other, err := f.g.CourseEnrollments(ctx, f.otto, c.ID)
	require.NoError(t, err)
	assert.Empty(t, other)

	_, err = f.g.Enrollment(ctx, f.bob, c.ID, f.alice.ID())
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestAnswerKeyWithheld(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.course(t, true)
	e := f.examWithTwoQuestions(t, c.ID)

	_, err := f.g.Questions(ctx, rbac.Anonymous{}, e.ID)
	assert.ErrorIs(t, err, errs.ErrNotFound)
	_, err = f.g.GradingQuestions(ctx, rbac.Anonymous{}, e.ID)
	assert.Error(t, err)

	_, _, err = f.g.Enroll(ctx, f.alice, c.ID)
	require.NoError(t, err)
	qs, err := f.g.Questions(ctx, f.alice, e.ID)
	require.NoError(t, err)
	require.Len(t, qs, 2)
	for _, q := range qs {
		assert.Nil(t, q.CorrectIndex)
	}

	keys, err := f.g.GradingQuestions(ctx, f.alice, e.ID)
	require.NoError(t, err)
	require.NotNil(t, keys[1].CorrectIndex)
	assert.Equal(t, 2, *keys[1].CorrectIndex)

	// Published but not enrolled: visible, not takeable.
	_, err = f.g.GradingQuestions(ctx, f.bob, e.ID)
	assert.ErrorIs(t, err, errs.ErrAuthorizationDenied)

	qs, err = f.g.Questions(ctx, f.ines, e.ID)
	require.NoError(t, err)
	require.NotNil(t, qs[0].CorrectIndex)
	assert.Equal(t, 0, *qs[0].CorrectIndex)

	_, err = f.g.Questions(ctx, f.otto, e.ID)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestExamAuthoring(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.course(t, false)
	e := f.examWithTwoQuestions(t, c.ID)

	_, err := f.g.CreateExam(ctx, f.ines, Exam{CourseID: c.ID, Title: "Second", DurationMinutes: 5, PassingScore: 50})
	assert.ErrorIs(t, err, errs.ErrDuplicate)

	_, err = f.g.ExamForCourse(ctx, f.alice, c.ID)
	assert.ErrorIs(t, err, errs.ErrExamNotFound)
	got, err := f.g.ExamForCourse(ctx, f.ines, c.ID)
	require.NoError(t, err)
	assert.Equal(t, e.ID, got.ID)

	bad := 3
	_, err = f.g.CreateQuestion(ctx, f.ines, Question{ExamID: e.ID, Text: "q", Options: []string{"a", "b"}, CorrectIndex: &bad})
	assert.ErrorIs(t, err, errs.ErrInvalidInput)
	ok := 1
	_, err = f.g.CreateQuestion(ctx, f.ines, Question{ExamID: e.ID, Text: "q", Options: []string{"a", "b"}, CorrectIndex: &ok, Points: -2})
	assert.ErrorIs(t, err, errs.ErrInvalidInput)
	q, err := f.g.CreateQuestion(ctx, f.ines, Question{ExamID: e.ID, Text: "q3", Options: []string{"a", "b"}, CorrectIndex: &ok})
	require.NoError(t, err)
	assert.Equal(t, 1, q.Points)
	assert.Equal(t, 3, q.Position)

	_, err = f.g.UpdateExam(ctx, f.ines, Exam{ID: e.ID, Title: "Final", DurationMinutes: 0, PassingScore: 50})
	assert.ErrorIs(t, err, errs.ErrInvalidInput)

	q.Text = "q3 edited"
	_, err = f.g.UpdateQuestion(ctx, f.otto, q)
	assert.ErrorIs(t, err, errs.ErrNotFound)
	_, err = f.g.UpdateQuestion(ctx, f.ines, q)
	require.NoError(t, err)
	require.NoError(t, f.g.DeleteQuestion(ctx, f.ines, q.ID))

	require.NoError(t, f.g.DeleteExam(ctx, f.ines, e.ID))
	_, err = f.g.ExamForCourse(ctx, f.ines, c.ID)
	assert.ErrorIs(t, err, errs.ErrExamNotFound)
}

func TestAttemptsAndCertificate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.course(t, true)
	e := f.examWithTwoQuestions(t, c.ID)
	_, _, err := f.g.Enroll(ctx, f.alice, c.ID)
	require.NoError(t, err)

	_, err = f.g.IssueCertificate(ctx, f.alice, Certificate{CourseID: c.ID, ExamID: e.ID, Score: 100})
	assert.ErrorIs(t, err, errs.ErrInvalidState)

	done := time.Now().UTC().Truncate(time.Second)
	attempt := Attempt{ExamID: e.ID, StudentID: f.alice.ID(), Answers: []int{0, 2}, Score: 100, Passed: true,
		Completed: true, StartedAt: done.Add(-time.Minute), CompletedAt: &done}

	forged := attempt
	_, err = f.g.RecordAttempt(ctx, f.bob, forged)
	assert.ErrorIs(t, err, errs.ErrAuthorizationDenied)
	_, err = f.g.RecordAttempt(ctx, f.root, forged)
	assert.ErrorIs(t, err, errs.ErrAuthorizationDenied)

	saved, err := f.g.RecordAttempt(ctx, f.alice, attempt)
	require.NoError(t, err)
	assert.Equal(t, c.ID, saved.CourseID)

	got, err := f.g.Attempt(ctx, f.alice, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2}, got.Answers)
	require.NotNil(t, got.CompletedAt)
	assert.True(t, got.CompletedAt.Equal(done))

	_, err = f.g.Attempt(ctx, f.bob, saved.ID)
	assert.ErrorIs(t, err, errs.ErrNotFound)
	list, err := f.g.Attempts(ctx, f.ines, c.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	list, err = f.g.Attempts(ctx, f.otto, c.ID)
	require.NoError(t, err)
	assert.Empty(t, list)

	cert, err := f.g.IssueCertificate(ctx, f.alice, Certificate{CourseID: c.ID, ExamID: e.ID, Score: 100})
	require.NoError(t, err)
	dup, err := f.g.IssueCertificate(ctx, f.alice, Certificate{CourseID: c.ID, ExamID: e.ID, Score: 100})
	assert.ErrorIs(t, err, errs.ErrDuplicate)
	assert.Equal(t, cert.ID, dup.ID)

	certs, err := f.g.Certificates(ctx, f.alice)
	require.NoError(t, err)
	assert.Len(t, certs, 1)

	enr, err := f.g.Enrollment(ctx, f.alice, c.ID, f.alice.ID())
	require.NoError(t, err)
	assert.True(t, enr.CertificateIssued)

	enr, err = f.g.CompleteEnrollment(ctx, f.alice, c.ID)
	require.NoError(t, err)
	assert.True(t, enr.Completed)
	assert.Equal(t, 100, enr.Progress)

	// Bob passed nothing and is not enrolled.
	_, err = f.g.IssueCertificate(ctx, f.bob, Certificate{CourseID: c.ID, ExamID: e.ID, Score: 100})
	assert.ErrorIs(t, err, errs.ErrAuthorizationDenied)
}

func TestCertificateNeedsEnrollmentForAdmins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.course(t, true)
	e := f.examWithTwoQuestions(t, c.ID)

	done := time.Now().UTC().Truncate(time.Second)
	_, err := f.g.RecordAttempt(ctx, f.root, Attempt{ExamID: e.ID, StudentID: f.root.ID(), Answers: []int{0, 2},
		Score: 100, Passed: true, Completed: true, StartedAt: done.Add(-time.Minute), CompletedAt: &done})
	require.NoError(t, err)

	_, err = f.g.IssueCertificate(ctx, f.root, Certificate{CourseID: c.ID, ExamID: e.ID, Score: 100})
	assert.ErrorIs(t, err, errs.ErrInvalidState)
	certs, err := f.g.Certificates(ctx, f.root)
	require.NoError(t, err)
	assert.Empty(t, certs)
}
