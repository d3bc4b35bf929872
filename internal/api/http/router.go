package http

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	auth "github.com/Dajus/daal-sub000/internal/auth/middleware"
	"github.com/Dajus/daal-sub000/internal/events"
	"github.com/Dajus/daal-sub000/internal/rbac"
	"github.com/Dajus/daal-sub000/internal/storage"
	"github.com/Dajus/daal-sub000/internal/training"
)

type Deps struct {
	Service     *training.Service
	Auth        *auth.AuthService
	Blobs       storage.BlobStore
	DB          *sql.DB
	Events      *events.Repo
	Logger      *slog.Logger
	CORSOrigins []string
}

// NewRouter wires every route of the gateway.
func NewRouter(d Deps) http.Handler {
	log := d.Logger
	if log == nil {
		log = slog.Default()
	}
	svc := d.Service

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, requestLogger(log), middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := d.DB.PingContext(ctx); err != nil {
			log.WarnContext(ctx, "readiness check failed", "err", err)
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})

	r.Post("/auth/student/login", StudentLoginHandler(svc, d.Auth, log))
	r.Post("/auth/admin/login", AdminLoginHandler(svc, d.Auth, log))
	r.Post("/auth/company-admin/login", CompanyAdminLoginHandler(svc, d.Auth, log))

	// public
	r.Get("/verify/{verificationCode}", VerifyHandler(svc, log))
	if d.Blobs != nil {
		r.Route("/assets", func(ar chi.Router) { MountAssets(ar, d.Blobs, log) })
	}

	r.Route("/student", func(sr chi.Router) {
		sr.Use(auth.JWTMiddleware(d.Auth))
		sr.With(rbac.Require("theory:read")).Get("/theory", TheoryHandler(svc, log))
		sr.With(rbac.Require("theory:read")).Post("/theory/complete", CompleteTheoryHandler(svc, log))
		sr.With(rbac.Require("test:take")).Get("/test", TestHandler(svc, log))
		sr.With(rbac.Require("test:take")).Post("/test/submit", SubmitTestHandler(svc, log))
		sr.With(rbac.Require("certificate:view-own")).Get("/certificate", CertificateHandler(svc, log))
		sr.With(rbac.Require("attempt:view-own")).Get("/progress", ProgressHandler(svc, log))
		sr.With(rbac.Require("attempt:view-own")).Get("/attempts", StudentAttemptsHandler(svc, log))
	})

	r.Route("/admin", func(ar chi.Router) {
		ar.Use(auth.JWTMiddleware(d.Auth), auth.AttachScopeFromDB(d.DB))

		ar.With(rbac.Require("course:list")).Get("/courses", ListCoursesHandler(svc, log))
		ar.Group(func(cr chi.Router) {
			cr.Use(rbac.Require("course:manage"))
			cr.Post("/courses", CreateCourseHandler(svc, log))
			cr.Post("/courses/import", ImportCourseHandler(svc, log))
			cr.Get("/courses/{id}", GetCourseHandler(svc, log))
			cr.Put("/courses/{id}", UpdateCourseHandler(svc, log))
			cr.Delete("/courses/{id}", DeleteCourseHandler(svc, log))
			cr.Post("/courses/{id}/slides", AddSlideHandler(svc, log))
			cr.Post("/courses/{id}/questions", AddQuestionHandler(svc, log))
			cr.Put("/questions/{id}", UpdateQuestionHandler(svc, log))
			cr.Delete("/questions/{id}", DeleteQuestionHandler(svc, log))
			if d.Blobs != nil {
				cr.Post("/assets", UploadAssetHandler(d.Blobs, log))
			}
		})

		ar.Group(func(cr chi.Router) {
			cr.Use(rbac.Require("company:manage"))
			cr.Post("/companies", CreateCompanyHandler(svc, log))
			cr.Get("/companies", ListCompaniesHandler(svc, log))
			cr.Post("/company-admins", CreateCompanyAdminHandler(svc, log))
		})

		ar.With(rbac.Require("access_code:create")).Post("/access-codes", GenerateAccessCodesHandler(svc, log))
		ar.With(rbac.Require("access_code:list")).Get("/access-codes", ListAccessCodesHandler(svc, log))
		ar.With(rbac.Require("access_code:update")).Patch("/access-codes/{id}", UpdateAccessCodeHandler(svc, log))
		ar.With(rbac.Require("session:view")).Get("/access-codes/{id}/sessions", CodeSessionsHandler(svc, log))
		ar.With(rbac.Require("session:view")).Get("/sessions/{id}/attempts", SessionAttemptsHandler(svc, log))

		if d.Events != nil {
			ar.With(rbac.Require("audit:view")).Get("/events", AuditEventsHandler(d.Events, log))
		}
	})

	return r
}

// requestLogger is chi's middleware.Logger on slog.
func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				log.InfoContext(r.Context(), "http request",
					"request_id", middleware.GetReqID(r.Context()),
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"remote", r.RemoteAddr,
					"duration", time.Since(start))
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
