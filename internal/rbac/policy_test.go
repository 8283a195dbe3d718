package rbac

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanAccess(t *testing.T) {
	alice := Student{AccountID: "alice"}
	bob := Student{AccountID: "bob"}
	ines := Instructor{AccountID: "ines"}
	otto := Instructor{AccountID: "otto"}
	root := Admin{AccountID: "root"}

	published := Resource{CourseInstructorID: "ines", CoursePublished: true}
	draft := Resource{CourseInstructorID: "ines"}

	with := func(base Resource, kind Kind, mod func(*Resource)) Resource {
		base.Kind = kind
		if mod != nil {
			mod(&base)
		}
		return base
	}
	enrolled := func(r *Resource) { r.Enrolled = true }
	ownedBy := func(id string) func(*Resource) { return func(r *Resource) { r.OwnerID = id } }

	tests := []struct {
		name   string
		actor  Actor
		action Action
		row    Resource
		want   bool
	}{
		// anonymous
		{"anon reads published course", Anonymous{}, ActionRead, with(published, KindCourse, nil), true},
		{"anon cannot read draft course", Anonymous{}, ActionRead, with(draft, KindCourse, nil), false},
		{"anon reads published video", Anonymous{}, ActionRead, with(published, KindVideo, nil), true},
		{"anon reads published exam metadata", Anonymous{}, ActionRead, with(published, KindExam, nil), true},
		{"anon cannot read questions", Anonymous{}, ActionRead, with(published, KindQuestion, nil), false},
		{"anon cannot read answer key", Anonymous{}, ActionReadAnswerKey, with(published, KindQuestion, nil), false},
		{"anon cannot create course", Anonymous{}, ActionCreate, with(published, KindCourse, nil), false},
		{"anon may sign up", Anonymous{}, ActionCreate, Resource{Kind: KindAccount}, true},

		// student
		{"student reads own account", alice, ActionRead, Resource{Kind: KindAccount, OwnerID: "alice"}, true},
		{"student cannot read other account", alice, ActionRead, Resource{Kind: KindAccount, OwnerID: "bob"}, false},
		{"student reads draft course when enrolled", alice, ActionRead, with(draft, KindCourse, enrolled), true},
		{"student cannot read draft course", alice, ActionRead, with(draft, KindCourse, nil), false},
		{"student enrolls in published course", alice, ActionCreate, with(published, KindEnrollment, ownedBy("alice")), true},
		{"student cannot enroll in draft course", alice, ActionCreate, with(draft, KindEnrollment, ownedBy("alice")), false},
		{"student cannot enroll someone else", alice, ActionCreate, with(published, KindEnrollment, ownedBy("bob")), false},
		{"student cannot read other enrollment", alice, ActionRead, with(published, KindEnrollment, ownedBy("bob")), false},
		{"student takes exam when enrolled", alice, ActionTake, with(published, KindExam, enrolled), true},
		{"student cannot take exam unenrolled", alice, ActionTake, with(published, KindExam, nil), false},
		{"student never reads answer key", alice, ActionReadAnswerKey, with(published, KindQuestion, enrolled), false},
		{"student writes own attempt", alice, ActionCreate, with(published, KindAttempt, ownedBy("alice")), true},
		{"student cannot write attempt for other", bob, ActionCreate, with(published, KindAttempt, ownedBy("alice")), false},
		{"attempts are immutable", alice, ActionUpdate, with(published, KindAttempt, ownedBy("alice")), false},
		{"student cannot read other attempt", bob, ActionRead, with(published, KindAttempt, ownedBy("alice")), false},
		{"certificate needs enrollment", alice, ActionCreate, with(published, KindCertificate, ownedBy("alice")), false},
		{"certificate with enrollment", alice, ActionCreate, with(published, KindCertificate, func(r *Resource) { r.OwnerID = "alice"; r.Enrolled = true }), true},
		{"student cannot read other certificate", bob, ActionRead, with(published, KindCertificate, ownedBy("alice")), false},

		// instructor
		{"owner updates course", ines, ActionUpdate, with(draft, KindCourse, nil), true},
		{"other instructor cannot update", otto, ActionUpdate, with(published, KindCourse, nil), false},
		{"other instructor cannot read draft", otto, ActionRead, with(draft, KindCourse, nil), false},
		{"owner reads answer key", ines, ActionReadAnswerKey, with(draft, KindQuestion, nil), true},
		{"other instructor cannot read questions", otto, ActionRead, with(published, KindQuestion, nil), false},
		{"owner reads enrollments", ines, ActionRead, with(draft, KindEnrollment, ownedBy("alice")), true},
		{"other instructor cannot read enrollments", otto, ActionRead, with(published, KindEnrollment, ownedBy("alice")), false},
		{"owner reads attempts", ines, ActionRead, with(draft, KindAttempt, ownedBy("alice")), true},
		{"owner cannot write attempts", ines, ActionCreate, with(draft, KindAttempt, ownedBy("alice")), false},
		{"instructor cannot take exam", ines, ActionTake, with(published, KindExam, nil), false},

		// admin
		{"admin reads anything", root, ActionRead, with(draft, KindAttempt, ownedBy("alice")), true},
		{"admin cannot forge attempts", root, ActionCreate, with(draft, KindAttempt, ownedBy("alice")), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanAccess(tt.actor, tt.action, tt.row))
		})
	}
}

func TestNewActor(t *testing.T) {
	assert.Equal(t, Student{AccountID: "a"}, NewActor(RoleStudent, "a"))
	assert.Equal(t, Instructor{AccountID: "a"}, NewActor(ParseRole("teacher"), "a"))
	assert.Equal(t, Admin{AccountID: "a"}, NewActor(RoleAdmin, "a"))
	assert.Equal(t, Anonymous{}, NewActor(RoleAdmin, ""))
	assert.Equal(t, Anonymous{}, NewActor(ParseRole("root"), "a"))
}

func TestRequire(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := Require("course:create")(ok)

	cases := []struct {
		actor Actor
		code  int
	}{
		{Anonymous{}, http.StatusUnauthorized},
		{Student{AccountID: "s"}, http.StatusForbidden},
		{Instructor{AccountID: "i"}, http.StatusNoContent},
		{Admin{AccountID: "a"}, http.StatusNoContent},
	}
	for _, c := range cases {
		req := httptest.NewRequest(http.MethodPost, "/courses", nil)
		req = req.WithContext(WithActor(context.Background(), c.actor))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, c.code, rec.Code, "role %s", c.actor.Role())
	}
}

func TestCheckerWildcard(t *testing.T) {
	c := NewChecker(nil)
	assert.True(t, c.Has(RoleStudent, "session:submit"))
	assert.False(t, c.Has(RoleAnonymous, "session:submit"))
	assert.True(t, c.Has(RoleAdmin, "anything:at-all"))
}
