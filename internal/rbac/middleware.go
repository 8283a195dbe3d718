package rbac

import (
	"net/http"
)

var defaultChecker = NewChecker(nil)

// Require enforces a single permission for the actor's role.
func Require(perm string) func(http.Handler) http.Handler {
	return gate(func(role Role) bool { return defaultChecker.Has(role, perm) })
}

// RequireAny enforces that the role has at least one of the permissions.
func RequireAny(perms ...string) func(http.Handler) http.Handler {
	return gate(func(role Role) bool { return defaultChecker.Any(role, perms...) })
}

// RequireAuthenticated rejects anonymous actors.
func RequireAuthenticated(next http.Handler) http.Handler {
	return gate(func(role Role) bool { return role != RoleAnonymous })(next)
}

// gate answers 401 to anonymous callers that lack the permission, since
// signing in may grant it, and 403 to everyone else.
func gate(allowed func(Role) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := RoleFromContext(r.Context())
			switch {
			case allowed(role):
				next.ServeHTTP(w, r)
			case role == RoleAnonymous:
				http.Error(w, "unauthorized", http.StatusUnauthorized)
			default:
				http.Error(w, "forbidden", http.StatusForbidden)
			}
		})
	}
}
