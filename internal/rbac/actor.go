package rbac

import (
	"context"
	"strings"
)

type Role string

const (
	RoleAnonymous  Role = "anonymous"
	RoleStudent    Role = "student"
	RoleInstructor Role = "instructor"
	RoleAdmin      Role = "admin"
)

// ParseRole maps a stored or claimed role name to a Role. Unknown values
// resolve to RoleAnonymous.
func ParseRole(s string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleStudent:
		return RoleStudent
	case RoleInstructor, "teacher":
		return RoleInstructor
	case RoleAdmin:
		return RoleAdmin
	default:
		return RoleAnonymous
	}
}

// Actor is the identity an operation runs on behalf of. The set of
// implementations is closed: Anonymous, Student, Instructor, Admin.
type Actor interface {
	ID() string
	Role() Role
	isActor()
}

type Anonymous struct{}

type Student struct{ AccountID string }

type Instructor struct{ AccountID string }

type Admin struct{ AccountID string }

func (Anonymous) ID() string    { return "" }
func (Anonymous) Role() Role    { return RoleAnonymous }
func (Anonymous) isActor()      {}
func (s Student) ID() string    { return s.AccountID }
func (Student) Role() Role      { return RoleStudent }
func (Student) isActor()        {}
func (i Instructor) ID() string { return i.AccountID }
func (Instructor) Role() Role   { return RoleInstructor }
func (Instructor) isActor()     {}
func (a Admin) ID() string      { return a.AccountID }
func (Admin) Role() Role        { return RoleAdmin }
func (Admin) isActor()          {}

// NewActor builds the actor for an authenticated account. An empty id or an
// unknown role yields Anonymous.
func NewActor(role Role, id string) Actor {
	if strings.TrimSpace(id) == "" {
		return Anonymous{}
	}
	switch role {
	case RoleStudent:
		return Student{AccountID: id}
	case RoleInstructor:
		return Instructor{AccountID: id}
	case RoleAdmin:
		return Admin{AccountID: id}
	default:
		return Anonymous{}
	}
}

// ---- actor in context ----

type ctxKey struct{}

var ctxKeyActor = ctxKey{}

func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, ctxKeyActor, a)
}

// ActorFromContext returns Anonymous when no actor was attached.
func ActorFromContext(ctx context.Context) Actor {
	if v := ctx.Value(ctxKeyActor); v != nil {
		if a, ok := v.(Actor); ok {
			return a
		}
	}
	return Anonymous{}
}

func RoleFromContext(ctx context.Context) Role {
	return ActorFromContext(ctx).Role()
}
