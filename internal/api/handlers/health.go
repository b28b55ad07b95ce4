package handlers

import (
	"net/http"

	"github.com/kirito3009/ad-time-cash/internal/config"
	"github.com/kirito3009/ad-time-cash/internal/httputil"
	"github.com/kirito3009/ad-time-cash/internal/store"
)

// HealthHandler returns a handler for GET /api/health.
// No auth, always open.
func HealthHandler(db *store.DB, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.Conn().PingContext(r.Context()); err != nil {
			httputil.Error(w, http.StatusServiceUnavailable, config.ErrorDatabase, "Database unavailable")
			return
		}
		httputil.JSON(w, http.StatusOK, map[string]interface{}{
			"status":  "ok",
			"version": version,
		})
	}
}
