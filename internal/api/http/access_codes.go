package http

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	auth "github.com/Dajus/daal-sub000/internal/auth/middleware"
	"github.com/Dajus/daal-sub000/internal/rbac"
	"github.com/Dajus/daal-sub000/internal/training"
)

// adminScope derives the company scope of the caller. Company admins are
// always pinned to their own company.
func adminScope(w http.ResponseWriter, r *http.Request) (training.Scope, bool) {
	p, ok := auth.PrincipalFromContext(r.Context())
	switch {
	case !ok:
	case p.Role == rbac.RoleSuperAdmin:
		return training.Scope{}, true
	case p.Role == rbac.RoleCompanyAdmin && p.CompanyID != "":
		return training.Scope{CompanyID: p.CompanyID}, true
	}
	respondJSON(w, http.StatusForbidden, errorBody{Error: "admin access required", Code: "forbidden"})
	return training.Scope{}, false
}

type generateCodesRequest struct {
	CourseID              string  `json:"courseId" validate:"required"`
	CompanyID             *string `json:"companyId"`
	Count                 int     `json:"count" validate:"omitempty,min=1,max=100"`
	UnlimitedParticipants bool    `json:"unlimitedParticipants"`
	MaxParticipants       *int    `json:"maxParticipants" validate:"omitempty,min=1"`
	TheoryToTest          *bool   `json:"theoryToTest"`
	ValidUntil            string  `json:"validUntil" validate:"required"`
}

// parseValidUntil accepts RFC 3339 or a bare date, which means the end of
// that day in UTC.
func parseValidUntil(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if d, err := time.Parse(time.DateOnly, s); err == nil {
		return d.Add(24*time.Hour - time.Second), true
	}
	return time.Time{}, false
}

// POST /admin/access-codes
// Generates 1..100 codes for one course. theoryToTest defaults to true.
func GenerateAccessCodesHandler(svc *training.Service, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sc, ok := adminScope(w, r)
		if !ok {
			return
		}
		var req generateCodesRequest
		if !decode(w, r, &req) {
			return
		}
		validUntil, ok := parseValidUntil(req.ValidUntil)
		if !ok {
			badRequest(w, "validation failed", map[string]string{"validUntil": "datetime"})
			return
		}
		in := training.GenerateCodesInput{
			CourseID:              req.CourseID,
			Count:                 req.Count,
			UnlimitedParticipants: req.UnlimitedParticipants,
			MaxParticipants:       req.MaxParticipants,
			TheoryToTest:          true,
			ValidUntil:            validUntil,
		}
		if in.Count == 0 {
			in.Count = 1
		}
		if req.TheoryToTest != nil {
			in.TheoryToTest = *req.TheoryToTest
		}
		if req.CompanyID != nil && strings.TrimSpace(*req.CompanyID) != "" {
			id := strings.TrimSpace(*req.CompanyID)
			in.CompanyID = &id
		}
		codes, err := svc.GenerateAccessCodes(r.Context(), sc, in)
		if err != nil {
			respondError(w, r, log, err)
			return
		}
		respondJSON(w, http.StatusCreated, codes)
	}
}

// GET /admin/access-codes
func ListAccessCodesHandler(svc *training.Service, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sc, ok := adminScope(w, r)
		if !ok {
			return
		}
		list, err := svc.ListAccessCodes(r.Context(), sc)
		if err != nil {
			respondError(w, r, log, err)
			return
		}
		respondJSON(w, http.StatusOK, list)
	}
}

type accessCodePatch struct {
	IsActive *bool `json:"isActive" validate:"required"`
}

// PATCH /admin/access-codes/{id}
func UpdateAccessCodeHandler(svc *training.Service, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sc, ok := adminScope(w, r)
		if !ok {
			return
		}
		var req accessCodePatch
		if !decode(w, r, &req) {
			return
		}
		c, err := svc.SetAccessCodeActive(r.Context(), sc, chi.URLParam(r, "id"), *req.IsActive)
		if err != nil {
			respondError(w, r, log, err)
			return
		}
		respondJSON(w, http.StatusOK, c)
	}
}

// GET /admin/access-codes/{id}/sessions
func CodeSessionsHandler(svc *training.Service, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sc, ok := adminScope(w, r)
		if !ok {
			return
		}
		u, err := svc.CodeSessions(r.Context(), sc, chi.URLParam(r, "id"))
		if err != nil {
			respondError(w, r, log, err)
			return
		}
		respondJSON(w, http.StatusOK, u)
	}
}

// GET /admin/sessions/{id}/attempts
func SessionAttemptsHandler(svc *training.Service, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sc, ok := adminScope(w, r)
		if !ok {
			return
		}
		list, err := svc.SessionAttempts(r.Context(), sc, chi.URLParam(r, "id"))
		if err != nil {
			respondError(w, r, log, err)
			return
		}
		respondJSON(w, http.StatusOK, list)
	}
}
