package http

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-academy/internal/errs"
	"github.com/mind-engage/mindengage-academy/internal/exam"
	"github.com/mind-engage/mindengage-academy/internal/rbac"
)

// POST /courses/{courseID}/exam/sessions loads the course exam into a new
// session bound to the caller. The countdown starts with /start.
func CreateSessionHandler(m *exam.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, snap, err := m.Create(r.Context(), rbac.ActorFromContext(r.Context()), chi.URLParam(r, "courseID"))
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusCreated, snap)
	}
}

func GetSessionHandler(m *exam.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := m.Snapshot(rbac.ActorFromContext(r.Context()), chi.URLParam(r, "sessionID"))
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, snap)
	}
}

func StartSessionHandler(m *exam.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := m.Start(rbac.ActorFromContext(r.Context()), chi.URLParam(r, "sessionID"))
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, snap)
	}
}

// PUT /sessions/{sessionID}/answers/{index}  { "choice": 2 }
func SelectAnswerHandler(m *exam.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		idx, err := strconv.Atoi(chi.URLParam(r, "index"))
		if err != nil {
			respondError(w, r, fmt.Errorf("question index: %w", errs.ErrInvalidInput))
			return
		}
		var req struct {
			Choice *int `json:"choice"`
		}
		if err := decodeJSON(w, r, &req); err != nil {
			respondError(w, r, err)
			return
		}
		if req.Choice == nil {
			respondError(w, r, fmt.Errorf("choice: %w", errs.ErrInvalidInput))
			return
		}
		snap, err := m.SelectAnswer(rbac.ActorFromContext(r.Context()), chi.URLParam(r, "sessionID"), idx, *req.Choice)
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, snap)
	}
}

// POST /sessions/{sessionID}/submit grades and records the attempt. Repeat
// calls return the same result.
func SubmitSessionHandler(m *exam.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := m.Submit(r.Context(), rbac.ActorFromContext(r.Context()), chi.URLParam(r, "sessionID"))
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, res)
	}
}

func DiscardSessionHandler(m *exam.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := m.Discard(rbac.ActorFromContext(r.Context()), chi.URLParam(r, "sessionID")); err != nil {
			respondError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
