package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-academy/internal/exam"
	"github.com/mind-engage/mindengage-academy/internal/rbac"
	"github.com/mind-engage/mindengage-academy/internal/store"
)

type examResponse struct {
	store.Exam
	// Questions is omitted for readers who may see the exam but not its
	// content.
	Questions []store.Question `json:"questions,omitempty"`
}

// GET /courses/{courseID}/exam
func GetCourseExamHandler(a *exam.Authoring) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, qs, err := a.ExamWithQuestions(r.Context(), rbac.ActorFromContext(r.Context()), chi.URLParam(r, "courseID"))
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, examResponse{Exam: e, Questions: qs})
	}
}

// POST /courses/{courseID}/exam
func CreateExamHandler(a *exam.Authoring) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in exam.ExamInput
		if err := decodeJSON(w, r, &in); err != nil {
			respondError(w, r, err)
			return
		}
		e, err := a.CreateExam(r.Context(), rbac.ActorFromContext(r.Context()), chi.URLParam(r, "courseID"), in)
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusCreated, e)
	}
}

func UpdateExamHandler(a *exam.Authoring) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in exam.ExamInput
		if err := decodeJSON(w, r, &in); err != nil {
			respondError(w, r, err)
			return
		}
		e, err := a.UpdateExam(r.Context(), rbac.ActorFromContext(r.Context()), chi.URLParam(r, "examID"), in)
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, e)
	}
}

func DeleteExamHandler(a *exam.Authoring) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := a.DeleteExam(r.Context(), rbac.ActorFromContext(r.Context()), chi.URLParam(r, "examID")); err != nil {
			respondError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// ---- questions ----

func AddQuestionHandler(a *exam.Authoring) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in exam.QuestionInput
		if err := decodeJSON(w, r, &in); err != nil {
			respondError(w, r, err)
			return
		}
		q, err := a.AddQuestion(r.Context(), rbac.ActorFromContext(r.Context()), chi.URLParam(r, "examID"), in)
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusCreated, q)
	}
}

func EditQuestionHandler(a *exam.Authoring) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in exam.QuestionInput
		if err := decodeJSON(w, r, &in); err != nil {
			respondError(w, r, err)
			return
		}
		q, err := a.EditQuestion(r.Context(), rbac.ActorFromContext(r.Context()), chi.URLParam(r, "questionID"), in)
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, q)
	}
}

func DeleteQuestionHandler(a *exam.Authoring) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := a.DeleteQuestion(r.Context(), rbac.ActorFromContext(r.Context()), chi.URLParam(r, "questionID")); err != nil {
			respondError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
