package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-academy/internal/course"
	"github.com/mind-engage/mindengage-academy/internal/rbac"
)

// GET /courses?q=&limit=50&offset=0
func ListCoursesHandler(svc *course.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := strings.TrimSpace(r.URL.Query().Get("q"))
		limit := parseIntDefault(r.URL.Query().Get("limit"), 50)
		offset := parseIntDefault(r.URL.Query().Get("offset"), 0)

		list, err := svc.List(r.Context(), rbac.ActorFromContext(r.Context()), q, limit, offset)
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, orEmpty(list))
	}
}

func CreateCourseHandler(svc *course.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in course.CourseInput
		if err := decodeJSON(w, r, &in); err != nil {
			respondError(w, r, err)
			return
		}
		c, err := svc.Create(r.Context(), rbac.ActorFromContext(r.Context()), in)
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusCreated, c)
	}
}

func GetCourseHandler(svc *course.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := svc.Get(r.Context(), rbac.ActorFromContext(r.Context()), chi.URLParam(r, "courseID"))
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, c)
	}
}

func UpdateCourseHandler(svc *course.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in course.CourseInput
		if err := decodeJSON(w, r, &in); err != nil {
			respondError(w, r, err)
			return
		}
		c, err := svc.Update(r.Context(), rbac.ActorFromContext(r.Context()), chi.URLParam(r, "courseID"), in)
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, c)
	}
}

func DeleteCourseHandler(svc *course.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Delete(r.Context(), rbac.ActorFromContext(r.Context()), chi.URLParam(r, "courseID")); err != nil {
			respondError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// ---- videos ----

func ListVideosHandler(svc *course.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.Videos(r.Context(), rbac.ActorFromContext(r.Context()), chi.URLParam(r, "courseID"))
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, orEmpty(list))
	}
}

func AddVideoHandler(svc *course.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in course.VideoInput
		if err := decodeJSON(w, r, &in); err != nil {
			respondError(w, r, err)
			return
		}
		v, err := svc.AddVideo(r.Context(), rbac.ActorFromContext(r.Context()), chi.URLParam(r, "courseID"), in)
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusCreated, v)
	}
}

func UpdateVideoHandler(svc *course.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in course.VideoInput
		if err := decodeJSON(w, r, &in); err != nil {
			respondError(w, r, err)
			return
		}
		v, err := svc.UpdateVideo(r.Context(), rbac.ActorFromContext(r.Context()), chi.URLParam(r, "videoID"), in)
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, v)
	}
}

func DeleteVideoHandler(svc *course.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.DeleteVideo(r.Context(), rbac.ActorFromContext(r.Context()), chi.URLParam(r, "videoID")); err != nil {
			respondError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// POST /videos/{videoID}/complete marks the video watched and returns the
// updated enrollment.
func CompleteVideoHandler(svc *course.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, err := svc.CompleteVideo(r.Context(), rbac.ActorFromContext(r.Context()), chi.URLParam(r, "videoID"))
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, e)
	}
}

// ---- enrollments ----

// POST /courses/{courseID}/enroll is idempotent: 201 on the first call,
// 200 with the existing enrollment afterwards.
func EnrollHandler(svc *course.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, created, err := svc.Enroll(r.Context(), rbac.ActorFromContext(r.Context()), chi.URLParam(r, "courseID"))
		if err != nil {
			respondError(w, r, err)
			return
		}
		status := http.StatusOK
		if created {
			status = http.StatusCreated
		}
		respondJSON(w, status, e)
	}
}

func CourseEnrollmentsHandler(svc *course.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.Enrollments(r.Context(), rbac.ActorFromContext(r.Context()), chi.URLParam(r, "courseID"))
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, orEmpty(list))
	}
}

func MyEnrollmentsHandler(svc *course.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.MyEnrollments(r.Context(), rbac.ActorFromContext(r.Context()))
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, orEmpty(list))
	}
}
