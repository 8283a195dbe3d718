package auth

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/mind-engage/mindengage-academy/internal/errs"
	"github.com/mind-engage/mindengage-academy/internal/rbac"
)

// RoleLookup returns the stored role of an account.
type RoleLookup func(ctx context.Context, accountID string) (rbac.Role, error)

// AttachRoleFromDB replaces the role claimed in the token with the stored
// one, so a demotion takes effect before the token expires. Tokens for
// deleted accounts are rejected.
//
// allowClaimFallback=true in offline mode: a lookup failure other than a
// missing account keeps the claimed role instead of failing the request.
func AttachRoleFromDB(lookup RoleLookup, allowClaimFallback bool, log *zap.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			claimed := rbac.ActorFromContext(ctx)
			if claimed.Role() == rbac.RoleAnonymous {
				next.ServeHTTP(w, r)
				return
			}

			role, err := lookup(ctx, claimed.ID())
			switch {
			case err == nil:
				actor := rbac.NewActor(role, claimed.ID())
				if actor.Role() == rbac.RoleAnonymous {
					http.Error(w, "unauthorized", http.StatusUnauthorized)
					return
				}
				next.ServeHTTP(w, r.WithContext(rbac.WithActor(ctx, actor)))

			case errors.Is(err, errs.ErrNotFound):
				http.Error(w, "unauthorized", http.StatusUnauthorized)

			default:
				log.Warn("role lookup failed", zap.String("account", claimed.ID()), zap.Error(err))
				if allowClaimFallback {
					next.ServeHTTP(w, r)
					return
				}
				http.Error(w, "service unavailable", http.StatusServiceUnavailable)
			}
		})
	}
}
