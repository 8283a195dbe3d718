package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-academy/internal/rbac"
	"github.com/mind-engage/mindengage-academy/internal/store"
	syncx "github.com/mind-engage/mindengage-academy/internal/sync"
)

// Records reads graded attempts and certificates.
type Records interface {
	Attempt(ctx context.Context, actor rbac.Actor, id string) (store.Attempt, error)
	Attempts(ctx context.Context, actor rbac.Actor, courseID string) ([]store.Attempt, error)
	Certificates(ctx context.Context, actor rbac.Actor) ([]store.Certificate, error)
}

type Accounts interface {
	Account(ctx context.Context, actor rbac.Actor, id string) (store.Account, error)
	RenameAccount(ctx context.Context, actor rbac.Actor, id, name string) (store.Account, error)
}

type EventFeed interface {
	Since(ctx context.Context, after int64, limit int) ([]syncx.Event, error)
}

// GET /courses/{courseID}/attempts
// Students see their own attempts; the course owner and admins see all.
func ListAttemptsHandler(rec Records) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := rec.Attempts(r.Context(), rbac.ActorFromContext(r.Context()), chi.URLParam(r, "courseID"))
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, orEmpty(list))
	}
}

func GetAttemptHandler(rec Records) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := rec.Attempt(r.Context(), rbac.ActorFromContext(r.Context()), chi.URLParam(r, "attemptID"))
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, a)
	}
}

func MyCertificatesHandler(rec Records) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := rec.Certificates(r.Context(), rbac.ActorFromContext(r.Context()))
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, orEmpty(list))
	}
}

// ---- account ----

func GetMeHandler(acc Accounts) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := rbac.ActorFromContext(r.Context())
		a, err := acc.Account(r.Context(), actor, actor.ID())
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, a)
	}
}

// PUT /me  { "name": "..." }
func UpdateMeHandler(acc Accounts) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name string `json:"name"`
		}
		if err := decodeJSON(w, r, &req); err != nil {
			respondError(w, r, err)
			return
		}
		actor := rbac.ActorFromContext(r.Context())
		a, err := acc.RenameAccount(r.Context(), actor, actor.ID(), strings.TrimSpace(req.Name))
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, a)
	}
}

// GET /admin/events?after=0&limit=100 pages through submission side effects.
func ListEventsHandler(feed EventFeed) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		after := int64(parseIntDefault(r.URL.Query().Get("after"), 0))
		limit := parseIntDefault(r.URL.Query().Get("limit"), 100)
		list, err := feed.Since(r.Context(), after, limit)
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, orEmpty(list))
	}
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
