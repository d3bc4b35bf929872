package http

import (
	"log/slog"
	"net/http"

	auth "github.com/Dajus/daal-sub000/internal/auth/middleware"
	"github.com/Dajus/daal-sub000/internal/rbac"
	"github.com/Dajus/daal-sub000/internal/training"
)

type studentLoginRequest struct {
	StudentName  string `json:"studentName" validate:"required,max=200"`
	StudentEmail string `json:"studentEmail" validate:"required,email,max=320"`
	AccessCode   string `json:"accessCode" validate:"required,max=64"`
}

type studentLoginResponse struct {
	Token   string           `json:"token"`
	Session training.Session `json:"session"`
}

// POST /auth/student/login
// Returning students (same name, email and code) get their existing session.
func StudentLoginHandler(svc *training.Service, a *auth.AuthService, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req studentLoginRequest
		if !decode(w, r, &req) {
			return
		}
		sess, _, err := svc.Login(r.Context(), training.LoginInput{
			StudentName:  req.StudentName,
			StudentEmail: req.StudentEmail,
			AccessCode:   req.AccessCode,
			IPAddress:    r.RemoteAddr,
			UserAgent:    r.UserAgent(),
		})
		if err != nil {
			respondError(w, r, log, err)
			return
		}
		tok, err := a.IssueJWT(auth.Principal{Subject: sess.ID, Role: rbac.RoleStudent})
		if err != nil {
			respondError(w, r, log, err)
			return
		}
		respondJSON(w, http.StatusOK, studentLoginResponse{Token: tok, Session: sess})
	}
}

type adminLoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// POST /auth/admin/login
func AdminLoginHandler(svc *training.Service, a *auth.AuthService, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req adminLoginRequest
		if !decode(w, r, &req) {
			return
		}
		admin, err := svc.AuthenticateSuperAdmin(r.Context(), req.Username, req.Password)
		if err != nil {
			respondError(w, r, log, err)
			return
		}
		tok, err := a.IssueJWT(auth.Principal{Subject: admin.ID, Role: rbac.RoleSuperAdmin})
		if err != nil {
			respondError(w, r, log, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"token": tok})
	}
}

type companyAdminLoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// POST /auth/company-admin/login
func CompanyAdminLoginHandler(svc *training.Service, a *auth.AuthService, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req companyAdminLoginRequest
		if !decode(w, r, &req) {
			return
		}
		admin, err := svc.AuthenticateCompanyAdmin(r.Context(), req.Email, req.Password)
		if err != nil {
			respondError(w, r, log, err)
			return
		}
		tok, err := a.IssueJWT(auth.Principal{Subject: admin.ID, Role: rbac.RoleCompanyAdmin, CompanyID: admin.CompanyID})
		if err != nil {
			respondError(w, r, log, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"token": tok})
	}
}
