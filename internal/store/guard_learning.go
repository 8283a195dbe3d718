package store

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.opentelemetry.io/otel/attribute"

	"github.com/mind-engage/mindengage-academy/internal/errs"
	"github.com/mind-engage/mindengage-academy/internal/rbac"
	"github.com/mind-engage/mindengage-academy/internal/tracing"
)

// ---------- Enrollments ----------

// Enroll enrolls the actor in a course. Enrolling twice returns the
// existing row with created=false.
func (g *Guarded) Enroll(ctx context.Context, actor rbac.Actor, courseID string) (Enrollment, bool, error) {
	f, err := g.facts(ctx, actor, courseID)
	if err != nil {
		return Enrollment{}, false, err
	}
	if f.Enrolled {
		e, err := g.s.FindEnrollment(ctx, actor.ID(), courseID)
		return e, false, err
	}
	if err := g.check(actor, rbac.ActionCreate, f.Resource(rbac.KindEnrollment, actor.ID())); err != nil {
		return Enrollment{}, false, err
	}
	t := now()
	e := Enrollment{ID: newID(), StudentID: actor.ID(), CourseID: courseID, CreatedAt: t, LastAccessedAt: t}
	if err := g.s.CreateEnrollment(ctx, e); err != nil {
		if errors.Is(err, errs.ErrDuplicate) {
			e, err = g.s.FindEnrollment(ctx, actor.ID(), courseID)
			return e, false, err
		}
		return Enrollment{}, false, err
	}
	return e, true, nil
}

// Enrollment returns studentID's enrollment in a course.
func (g *Guarded) Enrollment(ctx context.Context, actor rbac.Actor, courseID, studentID string) (Enrollment, error) {
	f, err := g.facts(ctx, actor, courseID)
	if err != nil {
		return Enrollment{}, err
	}
	if err := g.check(actor, rbac.ActionRead, f.Resource(rbac.KindEnrollment, studentID)); err != nil {
		return Enrollment{}, err
	}
	return g.s.FindEnrollment(ctx, studentID, courseID)
}

// CourseEnrollments lists the enrollments of a course the actor may read:
// all of them for the owning instructor, the actor's own for a student.
func (g *Guarded) CourseEnrollments(ctx context.Context, actor rbac.Actor, courseID string) ([]Enrollment, error) {
	f, err := g.facts(ctx, actor, courseID)
	if err != nil {
		return nil, err
	}
	if err := g.check(actor, rbac.ActionRead, f.Resource(rbac.KindCourse, "")); err != nil {
		return nil, err
	}
	rows, err := g.s.ListEnrollmentsByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	out := rows[:0]
	for _, e := range rows {
		if rbac.CanAccess(actor, rbac.ActionRead, f.Resource(rbac.KindEnrollment, e.StudentID)) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (g *Guarded) MyEnrollments(ctx context.Context, actor rbac.Actor) ([]Enrollment, error) {
	if actor.ID() == "" {
		return nil, nil
	}
	return g.s.ListEnrollmentsByStudent(ctx, actor.ID())
}

func (g *Guarded) enrollmentForUpdate(ctx context.Context, actor rbac.Actor, courseID string) (Enrollment, error) {
	f, err := g.facts(ctx, actor, courseID)
	if err != nil {
		return Enrollment{}, err
	}
	if err := g.check(actor, rbac.ActionUpdate, f.Resource(rbac.KindEnrollment, actor.ID())); err != nil {
		return Enrollment{}, err
	}
	return g.s.FindEnrollment(ctx, actor.ID(), courseID)
}

// CompleteEnrollment marks the actor's enrollment completed with progress 100.
func (g *Guarded) CompleteEnrollment(ctx context.Context, actor rbac.Actor, courseID string) (Enrollment, error) {
	ctx, span := tracing.Tracer().Start(ctx, "store.CompleteEnrollment")
	defer span.End()

	e, err := g.enrollmentForUpdate(ctx, actor, courseID)
	if err != nil {
		return Enrollment{}, err
	}
	e.Completed = true
	e.Progress = 100
	e.LastAccessedAt = now()
	if err := g.s.UpdateEnrollment(ctx, e); err != nil {
		return Enrollment{}, err
	}
	return e, nil
}

// RecordVideoCompletion marks a video watched and recomputes progress as
// the rounded share of completed videos. Progress never decreases.
func (g *Guarded) RecordVideoCompletion(ctx context.Context, actor rbac.Actor, videoID string) (Enrollment, error) {
	v, f, err := g.video(ctx, actor, videoID)
	if err != nil {
		return Enrollment{}, err
	}
	if err := g.check(actor, rbac.ActionRead, f.Resource(rbac.KindVideo, "")); err != nil {
		return Enrollment{}, err
	}
	e, err := g.enrollmentForUpdate(ctx, actor, v.CourseID)
	if err != nil {
		return Enrollment{}, err
	}
	done, err := g.s.MarkVideoComplete(ctx, e.ID, videoID)
	if err != nil {
		return Enrollment{}, err
	}
	total, err := g.s.CountVideos(ctx, v.CourseID)
	if err != nil {
		return Enrollment{}, err
	}
	if total > 0 {
		p := int(math.Round(100 * float64(done) / float64(total)))
		if p > 100 {
			p = 100
		}
		if p > e.Progress {
			e.Progress = p
		}
	}
	e.LastAccessedAt = now()
	if err := g.s.UpdateEnrollment(ctx, e); err != nil {
		return Enrollment{}, err
	}
	return e, nil
}

// ---------- Attempts ----------

// RecordAttempt persists a finished attempt. Only the student an attempt
// names may write it.
func (g *Guarded) RecordAttempt(ctx context.Context, actor rbac.Actor, a Attempt) (Attempt, error) {
	ctx, span := tracing.Tracer().Start(ctx, "store.RecordAttempt")
	defer span.End()
	span.SetAttributes(attribute.String("exam.id", a.ExamID), attribute.String("course.id", a.CourseID))

	courseID, err := g.s.ExamCourseID(ctx, a.ExamID)
	if err != nil {
		return Attempt{}, err
	}
	if a.CourseID != "" && a.CourseID != courseID {
		return Attempt{}, fmt.Errorf("attempt course: %w", errs.ErrInvalidInput)
	}
	a.CourseID = courseID
	f, err := g.facts(ctx, actor, courseID)
	if err != nil {
		return Attempt{}, err
	}
	if err := g.check(actor, rbac.ActionCreate, f.Resource(rbac.KindAttempt, a.StudentID)); err != nil {
		span.RecordError(err)
		return Attempt{}, err
	}
	if a.ID == "" {
		a.ID = newID()
	}
	if err := g.s.CreateAttempt(ctx, a); err != nil {
		span.RecordError(err)
		return Attempt{}, err
	}
	return a, nil
}

func (g *Guarded) Attempt(ctx context.Context, actor rbac.Actor, id string) (Attempt, error) {
	a, err := g.s.GetAttempt(ctx, id)
	if err != nil {
		return Attempt{}, err
	}
	f, err := g.facts(ctx, actor, a.CourseID)
	if err != nil {
		return Attempt{}, err
	}
	if err := g.check(actor, rbac.ActionRead, f.Resource(rbac.KindAttempt, a.StudentID)); err != nil {
		return Attempt{}, err
	}
	return a, nil
}

// Attempts lists a course's attempts visible to the actor.
func (g *Guarded) Attempts(ctx context.Context, actor rbac.Actor, courseID string) ([]Attempt, error) {
	f, err := g.facts(ctx, actor, courseID)
	if err != nil {
		return nil, err
	}
	if err := g.check(actor, rbac.ActionRead, f.Resource(rbac.KindCourse, "")); err != nil {
		return nil, err
	}
	student := ""
	if actor.Role() == rbac.RoleStudent {
		student = actor.ID()
	}
	rows, err := g.s.ListAttempts(ctx, courseID, student)
	if err != nil {
		return nil, err
	}
	out := rows[:0]
	for _, a := range rows {
		if rbac.CanAccess(actor, rbac.ActionRead, f.Resource(rbac.KindAttempt, a.StudentID)) {
			out = append(out, a)
		}
	}
	return out, nil
}

// ---------- Certificates ----------

// IssueCertificate creates the actor's certificate for a course. The
// student needs an enrollment and a passing attempt whatever the actor's
// role. When one already exists it returns the existing certificate
// together with ErrDuplicate.
func (g *Guarded) IssueCertificate(ctx context.Context, actor rbac.Actor, c Certificate) (Certificate, error) {
	ctx, span := tracing.Tracer().Start(ctx, "store.IssueCertificate")
	defer span.End()

	f, err := g.facts(ctx, actor, c.CourseID)
	if err != nil {
		return Certificate{}, err
	}
	if c.StudentID == "" {
		c.StudentID = actor.ID()
	}
	if err := g.check(actor, rbac.ActionCreate, f.Resource(rbac.KindCertificate, c.StudentID)); err != nil {
		return Certificate{}, err
	}
	if existing, err := g.s.FindCertificate(ctx, c.StudentID, c.CourseID); err == nil {
		return existing, fmt.Errorf("certificate: %w", errs.ErrDuplicate)
	} else if !isNotFound(err) {
		return Certificate{}, err
	}
	if _, err := g.s.FindEnrollment(ctx, c.StudentID, c.CourseID); err != nil {
		if isNotFound(err) {
			return Certificate{}, fmt.Errorf("certificate without enrollment: %w", errs.ErrInvalidState)
		}
		return Certificate{}, err
	}
	passed, err := g.s.HasPassingAttempt(ctx, c.StudentID, c.CourseID)
	if err != nil {
		return Certificate{}, err
	}
	if !passed {
		return Certificate{}, fmt.Errorf("certificate without passing attempt: %w", errs.ErrInvalidState)
	}
	c.ID = newID()
	c.IssuedAt = now()
	if err := g.s.CreateCertificate(ctx, c); err != nil {
		if errors.Is(err, errs.ErrDuplicate) {
			existing, ferr := g.s.FindCertificate(ctx, c.StudentID, c.CourseID)
			if ferr != nil {
				return Certificate{}, ferr
			}
			return existing, err
		}
		return Certificate{}, err
	}
	return c, nil
}

// Certificates lists the actor's own certificates.
func (g *Guarded) Certificates(ctx context.Context, actor rbac.Actor) ([]Certificate, error) {
	if actor.ID() == "" {
		return nil, nil
	}
	return g.s.ListCertificates(ctx, actor.ID())
}
