package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kirito3009/ad-time-cash/internal/config"
	"github.com/kirito3009/ad-time-cash/internal/httputil"
	"github.com/kirito3009/ad-time-cash/internal/ledger"
	"github.com/kirito3009/ad-time-cash/internal/store"
)

// GetPublicSettings handles GET /api/settings/public.
func GetPublicSettings(l *ledger.Reconciler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		settings, err := l.PublicSettings(r.Context())
		if err != nil {
			httputil.FromError(w, err)
			return
		}
		httputil.JSON(w, http.StatusOK, settings)
	}
}

// GetPlacement handles GET /api/placements/{slot}. The markup is returned
// as an opaque string; rendering it is the frontend's concern.
func GetPlacement(l *ledger.Reconciler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slot := chi.URLParam(r, "slot")
		markup, err := l.Placement(r.Context(), slot)
		if err != nil {
			httputil.FromError(w, err)
			return
		}
		httputil.JSON(w, http.StatusOK, map[string]string{
			"slot":   slot,
			"markup": markup,
		})
	}
}

// GetSettings handles GET /api/admin/settings.
func GetSettings(db *store.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		settings, err := db.GetAllSettings(r.Context())
		if err != nil {
			slog.Error("failed to get settings", "error", err)
			httputil.Error(w, http.StatusInternalServerError, config.ErrorDatabase, "Failed to get settings")
			return
		}
		httputil.JSON(w, http.StatusOK, settings)
	}
}

// UpdateSettings handles PUT /api/admin/settings. The body is a flat
// key/value object; an invalid entry rejects the whole update.
func UpdateSettings(l *ledger.Reconciler, db *store.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := caller(w, r)
		if !ok {
			return
		}
		var body map[string]string
		if !decodeJSON(w, r, &body) {
			return
		}
		if len(body) == 0 {
			httputil.Error(w, http.StatusBadRequest, config.ErrorInvalidRequest, "No settings provided")
			return
		}

		if err := l.UpdateSettings(r.Context(), id.UserID, body); err != nil {
			httputil.FromError(w, err)
			return
		}

		settings, err := db.GetAllSettings(r.Context())
		if err != nil {
			slog.Error("failed to get settings after update", "error", err)
			httputil.Error(w, http.StatusInternalServerError, config.ErrorDatabase, "Failed to get settings")
			return
		}
		httputil.JSON(w, http.StatusOK, settings)
	}
}
