package store

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mind-engage/mindengage-academy/internal/errs"
	"github.com/mind-engage/mindengage-academy/internal/metrics"
	"github.com/mind-engage/mindengage-academy/internal/rbac"
)

// Guarded is the actor-scoped repository. Every method resolves the facts
// of the rows it touches, evaluates rbac.CanAccess per row and only then
// reads or writes through SQLStore.
//
// Denied reads look exactly like missing rows (ErrNotFound). Denied writes
// return ErrAuthorizationDenied when the actor can see the target and
// ErrNotFound when it cannot.
type Guarded struct {
	s   *SQLStore
	log *zap.Logger
}

func NewGuarded(s *SQLStore, log *zap.Logger) *Guarded {
	if log == nil {
		log = zap.NewNop()
	}
	return &Guarded{s: s, log: log}
}

func (g *Guarded) Store() *SQLStore { return g.s }

func newID() string { return uuid.NewString() }

// check evaluates one rule and shapes the denial error.
func (g *Guarded) check(actor rbac.Actor, action rbac.Action, r rbac.Resource) error {
	if rbac.CanAccess(actor, action, r) {
		return nil
	}
	metrics.PolicyDenials.WithLabelValues(string(r.Kind), string(action)).Inc()
	g.log.Debug("policy denied",
		zap.String("role", string(actor.Role())),
		zap.String("actor", actor.ID()),
		zap.String("action", string(action)),
		zap.String("kind", string(r.Kind)))

	if action == rbac.ActionRead {
		return fmt.Errorf("%s: %w", r.Kind, errs.ErrNotFound)
	}
	// Creates are visible when the parent course is; other writes when the
	// row itself is.
	probe := r
	if action == rbac.ActionCreate && r.Kind != rbac.KindAccount {
		probe.Kind = rbac.KindCourse
	}
	if rbac.CanAccess(actor, rbac.ActionRead, probe) {
		return fmt.Errorf("%s %s: %w", action, r.Kind, errs.ErrAuthorizationDenied)
	}
	return fmt.Errorf("%s: %w", r.Kind, errs.ErrNotFound)
}

// facts resolves course-level facts; a missing course is ErrNotFound.
func (g *Guarded) facts(ctx context.Context, actor rbac.Actor, courseID string) (CourseFacts, error) {
	return g.s.CourseFacts(ctx, courseID, actor.ID())
}

// ---------- Accounts ----------

// Signup creates an account. Anonymous callers may create student or
// instructor accounts; only admins may create admins.
func (g *Guarded) Signup(ctx context.Context, actor rbac.Actor, a Account) (Account, error) {
	a.Email = strings.ToLower(strings.TrimSpace(a.Email))
	a.Name = strings.TrimSpace(a.Name)
	if _, err := mail.ParseAddress(a.Email); err != nil {
		return Account{}, fmt.Errorf("email: %w", errs.ErrInvalidInput)
	}
	if a.PasswordHash == "" {
		return Account{}, fmt.Errorf("password: %w", errs.ErrInvalidInput)
	}
	switch a.Role {
	case rbac.RoleStudent, rbac.RoleInstructor:
	case rbac.RoleAdmin:
		if actor.Role() != rbac.RoleAdmin {
			return Account{}, fmt.Errorf("create admin: %w", errs.ErrAuthorizationDenied)
		}
	default:
		return Account{}, fmt.Errorf("role: %w", errs.ErrInvalidInput)
	}
	if a.ID == "" {
		a.ID = newID()
	}
	if !rbac.CanAccess(actor, rbac.ActionCreate, rbac.Resource{Kind: rbac.KindAccount, OwnerID: a.ID}) {
		metrics.PolicyDenials.WithLabelValues(string(rbac.KindAccount), string(rbac.ActionCreate)).Inc()
		return Account{}, fmt.Errorf("signup: %w", errs.ErrAuthorizationDenied)
	}
	a.CreatedAt = now()
	if err := g.s.CreateAccount(ctx, a); err != nil {
		return Account{}, err
	}
	return a, nil
}

// Credentials looks an account up by email for password verification. It
// runs before an actor exists and is not policy-scoped.
func (g *Guarded) Credentials(ctx context.Context, email string) (Account, error) {
	return g.s.GetAccountByEmail(ctx, email)
}

func (g *Guarded) Account(ctx context.Context, actor rbac.Actor, id string) (Account, error) {
	if err := g.check(actor, rbac.ActionRead, rbac.Resource{Kind: rbac.KindAccount, OwnerID: id}); err != nil {
		return Account{}, err
	}
	return g.s.GetAccount(ctx, id)
}

func (g *Guarded) RenameAccount(ctx context.Context, actor rbac.Actor, id, name string) (Account, error) {
	if err := g.check(actor, rbac.ActionUpdate, rbac.Resource{Kind: rbac.KindAccount, OwnerID: id}); err != nil {
		return Account{}, err
	}
	if err := g.s.UpdateAccountName(ctx, id, strings.TrimSpace(name)); err != nil {
		return Account{}, err
	}
	return g.s.GetAccount(ctx, id)
}

// ---------- Courses ----------

func (g *Guarded) CreateCourse(ctx context.Context, actor rbac.Actor, c Course) (Course, error) {
	c.Title = strings.TrimSpace(c.Title)
	if c.Title == "" {
		return Course{}, fmt.Errorf("title: %w", errs.ErrInvalidInput)
	}
	if c.InstructorID == "" || actor.Role() != rbac.RoleAdmin {
		c.InstructorID = actor.ID()
	}
	r := rbac.Resource{Kind: rbac.KindCourse, CourseInstructorID: c.InstructorID}
	if !rbac.CanAccess(actor, rbac.ActionCreate, r) {
		metrics.PolicyDenials.WithLabelValues(string(rbac.KindCourse), string(rbac.ActionCreate)).Inc()
		return Course{}, fmt.Errorf("create course: %w", errs.ErrAuthorizationDenied)
	}
	c.ID = newID()
	c.CreatedAt = now()
	c.UpdatedAt = c.CreatedAt
	if err := g.s.CreateCourse(ctx, c); err != nil {
		return Course{}, err
	}
	return c, nil
}

func (g *Guarded) Course(ctx context.Context, actor rbac.Actor, id string) (Course, error) {
	f, err := g.facts(ctx, actor, id)
	if err != nil {
		return Course{}, err
	}
	if err := g.check(actor, rbac.ActionRead, f.Resource(rbac.KindCourse, "")); err != nil {
		return Course{}, err
	}
	return g.s.GetCourse(ctx, id)
}

// UpdateCourse applies the mutable fields of c. Ownership never moves.
func (g *Guarded) UpdateCourse(ctx context.Context, actor rbac.Actor, c Course) (Course, error) {
	f, err := g.facts(ctx, actor, c.ID)
	if err != nil {
		return Course{}, err
	}
	if err := g.check(actor, rbac.ActionUpdate, f.Resource(rbac.KindCourse, "")); err != nil {
		return Course{}, err
	}
	c.Title = strings.TrimSpace(c.Title)
	if c.Title == "" {
		return Course{}, fmt.Errorf("title: %w", errs.ErrInvalidInput)
	}
	c.InstructorID = f.InstructorID
	c.UpdatedAt = now()
	if err := g.s.UpdateCourse(ctx, c); err != nil {
		return Course{}, err
	}
	return g.s.GetCourse(ctx, c.ID)
}

func (g *Guarded) DeleteCourse(ctx context.Context, actor rbac.Actor, id string) error {
	f, err := g.facts(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := g.check(actor, rbac.ActionDelete, f.Resource(rbac.KindCourse, "")); err != nil {
		return err
	}
	return g.s.DeleteCourse(ctx, id)
}

// Courses lists the courses the actor may read.
func (g *Guarded) Courses(ctx context.Context, actor rbac.Actor, q string, limit, offset int) ([]Course, error) {
	rows, err := g.s.ListCourses(ctx, CourseListOpts{
		ViewerID: actor.ID(),
		All:      actor.Role() == rbac.RoleAdmin,
		Q:        strings.TrimSpace(q),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		return nil, err
	}
	out := make([]Course, 0, len(rows))
	for _, row := range rows {
		f := CourseFacts{CourseID: row.ID, InstructorID: row.InstructorID, Published: row.Published, Enrolled: row.Enrolled}
		if rbac.CanAccess(actor, rbac.ActionRead, f.Resource(rbac.KindCourse, "")) {
			out = append(out, row.Course)
		}
	}
	return out, nil
}

// ---------- Videos ----------

// CreateVideo appends the video at the next free position when v.Position
// is zero. URL validation belongs to the caller.
func (g *Guarded) CreateVideo(ctx context.Context, actor rbac.Actor, v Video) (Video, error) {
	f, err := g.facts(ctx, actor, v.CourseID)
	if err != nil {
		return Video{}, err
	}
	if err := g.check(actor, rbac.ActionCreate, f.Resource(rbac.KindVideo, "")); err != nil {
		return Video{}, err
	}
	if v.Position <= 0 {
		if v.Position, err = g.s.NextVideoPosition(ctx, v.CourseID); err != nil {
			return Video{}, err
		}
	}
	v.ID = newID()
	v.CreatedAt = now()
	if err := g.s.CreateVideo(ctx, v); err != nil {
		return Video{}, err
	}
	return v, nil
}

// video loads a video and the facts of its course.
func (g *Guarded) video(ctx context.Context, actor rbac.Actor, id string) (Video, CourseFacts, error) {
	v, err := g.s.GetVideo(ctx, id)
	if err != nil {
		return Video{}, CourseFacts{}, err
	}
	f, err := g.facts(ctx, actor, v.CourseID)
	return v, f, err
}

func (g *Guarded) Video(ctx context.Context, actor rbac.Actor, id string) (Video, error) {
	v, f, err := g.video(ctx, actor, id)
	if err != nil {
		return Video{}, err
	}
	if err := g.check(actor, rbac.ActionRead, f.Resource(rbac.KindVideo, "")); err != nil {
		return Video{}, err
	}
	return v, nil
}

func (g *Guarded) Videos(ctx context.Context, actor rbac.Actor, courseID string) ([]Video, error) {
	f, err := g.facts(ctx, actor, courseID)
	if err != nil {
		return nil, err
	}
	if err := g.check(actor, rbac.ActionRead, f.Resource(rbac.KindVideo, "")); err != nil {
		return nil, err
	}
	return g.s.ListVideos(ctx, courseID)
}

func (g *Guarded) UpdateVideo(ctx context.Context, actor rbac.Actor, v Video) (Video, error) {
	cur, f, err := g.video(ctx, actor, v.ID)
	if err != nil {
		return Video{}, err
	}
	if err := g.check(actor, rbac.ActionUpdate, f.Resource(rbac.KindVideo, "")); err != nil {
		return Video{}, err
	}
	v.CourseID = cur.CourseID
	v.CreatedAt = cur.CreatedAt
	if v.Position <= 0 {
		v.Position = cur.Position
	}
	if err := g.s.UpdateVideo(ctx, v); err != nil {
		return Video{}, err
	}
	return v, nil
}

func (g *Guarded) DeleteVideo(ctx context.Context, actor rbac.Actor, id string) error {
	_, f, err := g.video(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := g.check(actor, rbac.ActionDelete, f.Resource(rbac.KindVideo, "")); err != nil {
		return err
	}
	return g.s.DeleteVideo(ctx, id)
}

func isNotFound(err error) bool { return errors.Is(err, errs.ErrNotFound) }
