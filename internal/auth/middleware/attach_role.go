package auth

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/Dajus/daal-sub000/internal/rbac"
)

// AttachScopeFromDB re-reads admin principals from the database so a
// removed company admin, or one moved to another company, loses access
// before the token expires. The database company id replaces the claim.
// Student tokens pass through; their session is loaded by the handler.
func AttachScopeFromDB(db *sql.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			p, ok := PrincipalFromContext(ctx)
			if !ok {
				unauthorized(w, "missing principal")
				return
			}

			var err error
			switch p.Role {
			case rbac.RoleCompanyAdmin:
				err = db.QueryRowContext(ctx, `SELECT company_id FROM company_admins WHERE id=$1`, p.Subject).Scan(&p.CompanyID)
			case rbac.RoleSuperAdmin:
				var one int
				err = db.QueryRowContext(ctx, `SELECT 1 FROM super_admins WHERE id=$1`, p.Subject).Scan(&one)
				p.CompanyID = ""
			default:
				next.ServeHTTP(w, r)
				return
			}

			switch {
			case errors.Is(err, sql.ErrNoRows):
				unauthorized(w, "account no longer exists")
			case err != nil:
				// fail closed on database errors
				writeErr(w, http.StatusInternalServerError, "internal server error", "internal")
			default:
				next.ServeHTTP(w, r.WithContext(WithPrincipal(ctx, p)))
			}
		})
	}
}
