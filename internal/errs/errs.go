// Package errs holds the sentinel errors shared by the store, the policy
// layer and the exam engine. Callers wrap them with fmt.Errorf("...: %w")
// and test with errors.Is.
package errs

import "errors"

var (
	// ErrAuthorizationDenied: a visible row exists but no policy rule lets
	// the actor perform the operation.
	ErrAuthorizationDenied = errors.New("authorization denied")

	// ErrNotFound is returned both for missing rows and for rows the actor
	// cannot see.
	ErrNotFound = errors.New("not found")

	ErrExamNotFound   = errors.New("exam not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrDegenerateExam = errors.New("degenerate exam: total points is zero")
	ErrPersistence    = errors.New("persistence failure")
	ErrInvalidState   = errors.New("invalid session state")

	// ErrDuplicate marks a unique-key violation (e.g. a second certificate
	// for the same student and course).
	ErrDuplicate = errors.New("duplicate")
)
