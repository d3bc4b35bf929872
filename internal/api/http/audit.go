package http

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/Dajus/daal-sub000/internal/events"
)

// GET /admin/events?key=<session or course id>&limit=100
// Newest first.
func AuditEventsHandler(repo *events.Repo, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimSpace(r.URL.Query().Get("key"))
		limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
		if err != nil {
			limit = 100
		}
		list, err := repo.Recent(r.Context(), key, limit)
		if err != nil {
			respondError(w, r, log, err)
			return
		}
		respondJSON(w, http.StatusOK, list)
	}
}
