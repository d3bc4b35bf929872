package http

import (
	"log/slog"
	"net/http"

	"github.com/Dajus/daal-sub000/internal/training"
)

type companyRequest struct {
	Name         string `json:"name" validate:"required,max=200"`
	ContactEmail string `json:"contactEmail" validate:"omitempty,email"`
}

// POST /admin/companies
func CreateCompanyHandler(svc *training.Service, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req companyRequest
		if !decode(w, r, &req) {
			return
		}
		c, err := svc.CreateCompany(r.Context(), req.Name, req.ContactEmail)
		if err != nil {
			respondError(w, r, log, err)
			return
		}
		respondJSON(w, http.StatusCreated, c)
	}
}

// GET /admin/companies
func ListCompaniesHandler(svc *training.Service, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.ListCompanies(r.Context())
		if err != nil {
			respondError(w, r, log, err)
			return
		}
		respondJSON(w, http.StatusOK, list)
	}
}

type companyAdminRequest struct {
	CompanyID string `json:"companyId" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Name      string `json:"name" validate:"required,max=200"`
	Password  string `json:"password" validate:"required,min=8,max=72"`
}

// POST /admin/company-admins
func CreateCompanyAdminHandler(svc *training.Service, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req companyAdminRequest
		if !decode(w, r, &req) {
			return
		}
		a, err := svc.CreateCompanyAdmin(r.Context(), req.CompanyID, req.Email, req.Name, req.Password)
		if err != nil {
			respondError(w, r, log, err)
			return
		}
		respondJSON(w, http.StatusCreated, a)
	}
}
