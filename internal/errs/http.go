package errs

import (
	"errors"
	"net/http"
)

// HTTPStatus maps an error chain onto a response status. Unknown errors
// are 500.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrAuthorizationDenied):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrExamNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrInvalidState), errors.Is(err, ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, ErrDegenerateExam):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrPersistence):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
