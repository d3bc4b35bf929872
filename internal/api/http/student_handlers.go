package http

import (
	"log/slog"
	"net/http"

	auth "github.com/Dajus/daal-sub000/internal/auth/middleware"
	"github.com/Dajus/daal-sub000/internal/grading"
	"github.com/Dajus/daal-sub000/internal/rbac"
	"github.com/Dajus/daal-sub000/internal/training"
)

// studentSession returns the session id carried by a student token. Admin
// tokens are refused here even though their role may hold the permission.
func studentSession(w http.ResponseWriter, r *http.Request) (string, bool) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok || p.Role != rbac.RoleStudent || p.Subject == "" {
		respondJSON(w, http.StatusForbidden, errorBody{Error: "student session required", Code: "forbidden"})
		return "", false
	}
	return p.Subject, true
}

// GET /student/theory
func TheoryHandler(svc *training.Service, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sid, ok := studentSession(w, r)
		if !ok {
			return
		}
		view, err := svc.Theory(r.Context(), sid)
		if err != nil {
			respondError(w, r, log, err)
			return
		}
		respondJSON(w, http.StatusOK, view)
	}
}

type theoryCompleteResponse struct {
	Success      bool                  `json:"success"`
	TheoryToTest bool                  `json:"theoryToTest"`
	Certificate  *training.Certificate `json:"certificate"`
}

// POST /student/theory/complete
func CompleteTheoryHandler(svc *training.Service, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sid, ok := studentSession(w, r)
		if !ok {
			return
		}
		res, err := svc.CompleteTheory(r.Context(), sid)
		if err != nil {
			respondError(w, r, log, err)
			return
		}
		respondJSON(w, http.StatusOK, theoryCompleteResponse{
			Success:      true,
			TheoryToTest: res.TheoryToTest,
			Certificate:  res.Certificate,
		})
	}
}

// GET /student/test
func TestHandler(svc *training.Service, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sid, ok := studentSession(w, r)
		if !ok {
			return
		}
		qs, err := svc.BuildTest(r.Context(), sid)
		if err != nil {
			respondError(w, r, log, err)
			return
		}
		respondJSON(w, http.StatusOK, qs)
	}
}

type submitRequest struct {
	Answers          map[string]grading.Answer `json:"answers" validate:"required"`
	TimeTakenSeconds int                       `json:"timeTakenSeconds" validate:"min=0"`
}

// POST /student/test/submit
func SubmitTestHandler(svc *training.Service, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sid, ok := studentSession(w, r)
		if !ok {
			return
		}
		var req submitRequest
		if !decode(w, r, &req) {
			return
		}
		res, err := svc.SubmitTest(r.Context(), sid, training.SubmitInput{
			Answers:          req.Answers,
			TimeTakenSeconds: req.TimeTakenSeconds,
		})
		if err != nil {
			respondError(w, r, log, err)
			return
		}
		respondJSON(w, http.StatusOK, res)
	}
}

// GET /student/certificate
func CertificateHandler(svc *training.Service, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sid, ok := studentSession(w, r)
		if !ok {
			return
		}
		view, err := svc.Certificate(r.Context(), sid)
		if err != nil {
			respondError(w, r, log, err)
			return
		}
		respondJSON(w, http.StatusOK, view)
	}
}

// GET /student/progress
func ProgressHandler(svc *training.Service, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sid, ok := studentSession(w, r)
		if !ok {
			return
		}
		p, err := svc.Progress(r.Context(), sid)
		if err != nil {
			respondError(w, r, log, err)
			return
		}
		respondJSON(w, http.StatusOK, p)
	}
}

// GET /student/attempts, most recent first
func StudentAttemptsHandler(svc *training.Service, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sid, ok := studentSession(w, r)
		if !ok {
			return
		}
		list, err := svc.Attempts(r.Context(), sid)
		if err != nil {
			respondError(w, r, log, err)
			return
		}
		respondJSON(w, http.StatusOK, list)
	}
}
