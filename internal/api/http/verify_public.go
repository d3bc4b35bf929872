package http

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Dajus/daal-sub000/internal/training"
)

// GET /verify/{verificationCode}
// Public: anyone holding a certificate's verification code may check it.
// Revoked certificates resolve with valid=false.
func VerifyHandler(svc *training.Service, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := strings.TrimSpace(chi.URLParam(r, "verificationCode"))
		if code == "" {
			badRequest(w, "verification code required", nil)
			return
		}
		v, err := svc.Verify(r.Context(), code)
		if err != nil {
			respondError(w, r, log, err)
			return
		}
		respondJSON(w, http.StatusOK, v)
	}
}
