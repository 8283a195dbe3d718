package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/mind-engage/mindengage-academy/internal/auth"
	"github.com/mind-engage/mindengage-academy/internal/course"
	"github.com/mind-engage/mindengage-academy/internal/exam"
	"github.com/mind-engage/mindengage-academy/internal/metrics"
	"github.com/mind-engage/mindengage-academy/internal/rbac"
	"github.com/mind-engage/mindengage-academy/internal/tracing"
)

// Deps is everything the router mounts.
type Deps struct {
	Log *zap.Logger

	Tokens *auth.AuthService
	// Login is nil when local signup/login is disabled.
	Login *auth.Service
	// Roles re-reads the stored role of authenticated callers; nil trusts
	// the token.
	Roles         auth.RoleLookup
	ClaimFallback bool

	Courses   *course.Service
	Authoring *exam.Authoring
	Sessions  *exam.Manager
	Records   Records
	Accounts  Accounts
	Events    EventFeed

	CORSOrigins []string
	// Ready reports whether dependencies (the database) are reachable.
	Ready func(ctx context.Context) error
}

func NewRouter(d Deps) http.Handler {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, requestLogger(d.Log), middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(metrics.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", readyHandler(d.Ready))
	r.Handle("/metrics", metrics.Handler())

	// API: bearer → actor in context → route permission → row policy.
	r.Group(func(pr chi.Router) {
		pr.Use(middleware.Timeout(30*time.Second), tracing.Middleware, auth.JWTMiddleware(d.Tokens))
		if d.Roles != nil {
			pr.Use(auth.AttachRoleFromDB(d.Roles, d.ClaimFallback, d.Log))
		}

		if d.Login != nil {
			pr.With(rbac.Require("account:signup")).Post("/auth/signup", d.Login.SignupHandler())
			pr.Post("/auth/login", d.Login.LoginHandler())
		}

		pr.Route("/me", func(mr chi.Router) {
			mr.Use(rbac.RequireAuthenticated)
			mr.Get("/", GetMeHandler(d.Accounts))
			mr.Put("/", UpdateMeHandler(d.Accounts))
			mr.Get("/enrollments", MyEnrollmentsHandler(d.Courses))
			mr.With(rbac.Require("certificate:view-own")).Get("/certificates", MyCertificatesHandler(d.Records))
		})

		pr.Route("/courses", func(cr chi.Router) {
			cr.With(rbac.Require("course:view")).Get("/", ListCoursesHandler(d.Courses))
			cr.With(rbac.Require("course:create")).Post("/", CreateCourseHandler(d.Courses))

			cr.Route("/{courseID}", func(c chi.Router) {
				c.With(rbac.Require("course:view")).Get("/", GetCourseHandler(d.Courses))
				c.With(rbac.Require("course:manage")).Put("/", UpdateCourseHandler(d.Courses))
				c.With(rbac.Require("course:manage")).Delete("/", DeleteCourseHandler(d.Courses))

				c.With(rbac.Require("course:view")).Get("/videos", ListVideosHandler(d.Courses))
				c.With(rbac.Require("video:manage")).Post("/videos", AddVideoHandler(d.Courses))

				c.With(rbac.Require("course:enroll")).Post("/enroll", EnrollHandler(d.Courses))
				c.With(rbac.Require("enrollment:view-course")).Get("/enrollments", CourseEnrollmentsHandler(d.Courses))

				c.With(rbac.Require("exam:view")).Get("/exam", GetCourseExamHandler(d.Authoring))
				c.With(rbac.Require("exam:manage")).Post("/exam", CreateExamHandler(d.Authoring))

				c.With(rbac.RequireAny("attempt:view-own", "attempt:view-course")).
					Get("/attempts", ListAttemptsHandler(d.Records))

				c.With(rbac.RequireAuthenticated, rbac.Require("session:create")).
					Post("/exam/sessions", CreateSessionHandler(d.Sessions))
			})
		})

		pr.Route("/videos/{videoID}", func(vr chi.Router) {
			vr.With(rbac.Require("video:manage")).Put("/", UpdateVideoHandler(d.Courses))
			vr.With(rbac.Require("video:manage")).Delete("/", DeleteVideoHandler(d.Courses))
			vr.With(rbac.Require("video:complete")).Post("/complete", CompleteVideoHandler(d.Courses))
		})

		pr.Route("/exams/{examID}", func(er chi.Router) {
			er.Use(rbac.Require("exam:manage"))
			er.Put("/", UpdateExamHandler(d.Authoring))
			er.Delete("/", DeleteExamHandler(d.Authoring))
			er.Post("/questions", AddQuestionHandler(d.Authoring))
		})
		pr.Route("/questions/{questionID}", func(qr chi.Router) {
			qr.Use(rbac.Require("exam:manage"))
			qr.Put("/", EditQuestionHandler(d.Authoring))
			qr.Delete("/", DeleteQuestionHandler(d.Authoring))
		})

		pr.With(rbac.RequireAny("attempt:view-own", "attempt:view-course")).
			Get("/attempts/{attemptID}", GetAttemptHandler(d.Records))

		pr.Route("/sessions/{sessionID}", func(sr chi.Router) {
			sr.Use(rbac.RequireAuthenticated)
			sr.With(rbac.Require("session:view")).Get("/", GetSessionHandler(d.Sessions))
			sr.With(rbac.Require("session:discard")).Delete("/", DiscardSessionHandler(d.Sessions))
			sr.With(rbac.Require("session:start")).Post("/start", StartSessionHandler(d.Sessions))
			sr.With(rbac.Require("session:answer")).Put("/answers/{index}", SelectAnswerHandler(d.Sessions))
			sr.With(rbac.Require("session:submit")).Post("/submit", SubmitSessionHandler(d.Sessions))
		})

		if d.Events != nil {
			pr.With(rbac.Require("events:view")).Get("/admin/events", ListEventsHandler(d.Events))
		}
	})

	return r
}

func readyHandler(ready func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ready != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := ready(ctx); err != nil {
				logFrom(r.Context()).Warn("not ready", zap.Error(err))
				http.Error(w, "not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	}
}
