package handlers

import (
	"log/slog"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"

	"github.com/kirito3009/ad-time-cash/internal/config"
	"github.com/kirito3009/ad-time-cash/internal/httputil"
	"github.com/kirito3009/ad-time-cash/internal/ledger"
	"github.com/kirito3009/ad-time-cash/internal/models"
	"github.com/kirito3009/ad-time-cash/internal/store"
)

// ListActiveAds handles GET /api/ads?placement=.
func ListActiveAds(db *store.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		placement := r.URL.Query().Get("placement")
		if placement != "" && !slices.Contains(config.Placements, placement) {
			httputil.Error(w, http.StatusBadRequest, config.ErrorInvalidRequest, "Unknown placement")
			return
		}

		ads, err := db.ListActiveAds(r.Context(), placement)
		if err != nil {
			slog.Error("failed to list active ads", "placement", placement, "error", err)
			httputil.Error(w, http.StatusInternalServerError, config.ErrorDatabase, "Failed to list ads")
			return
		}
		if ads == nil {
			ads = []models.Ad{}
		}
		httputil.JSON(w, http.StatusOK, ads)
	}
}

// ListAllAds handles GET /api/admin/ads, inactive ads included.
func ListAllAds(db *store.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ads, err := db.ListAds(r.Context())
		if err != nil {
			slog.Error("failed to list ads", "error", err)
			httputil.Error(w, http.StatusInternalServerError, config.ErrorDatabase, "Failed to list ads")
			return
		}
		if ads == nil {
			ads = []models.Ad{}
		}
		httputil.JSON(w, http.StatusOK, ads)
	}
}

// CreateAd handles POST /api/admin/ads.
func CreateAd(l *ledger.Reconciler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := caller(w, r)
		if !ok {
			return
		}
		var in models.AdInput
		if !decodeJSON(w, r, &in) {
			return
		}

		ad, err := l.CreateAd(r.Context(), id.UserID, in)
		if err != nil {
			httputil.FromError(w, err)
			return
		}
		httputil.JSON(w, http.StatusCreated, ad)
	}
}

// UpdateAd handles PUT /api/admin/ads/{id}.
func UpdateAd(l *ledger.Reconciler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := caller(w, r)
		if !ok {
			return
		}
		var in models.AdInput
		if !decodeJSON(w, r, &in) {
			return
		}

		ad, err := l.UpdateAd(r.Context(), id.UserID, chi.URLParam(r, "id"), in)
		if err != nil {
			httputil.FromError(w, err)
			return
		}
		httputil.JSON(w, http.StatusOK, ad)
	}
}

// SetAdActive handles PUT /api/admin/ads/{id}/active.
func SetAdActive(l *ledger.Reconciler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := caller(w, r)
		if !ok {
			return
		}
		var body struct {
			IsActive *bool `json:"is_active"`
		}
		if !decodeJSON(w, r, &body) {
			return
		}
		if body.IsActive == nil {
			httputil.Error(w, http.StatusBadRequest, config.ErrorInvalidRequest, "is_active is required")
			return
		}

		adID := chi.URLParam(r, "id")
		if err := l.SetAdActive(r.Context(), id.UserID, adID, *body.IsActive); err != nil {
			httputil.FromError(w, err)
			return
		}
		httputil.JSON(w, http.StatusOK, map[string]interface{}{
			"id":        adID,
			"is_active": *body.IsActive,
		})
	}
}

// DeleteAd handles DELETE /api/admin/ads/{id}.
func DeleteAd(l *ledger.Reconciler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := caller(w, r)
		if !ok {
			return
		}
		if err := l.DeleteAd(r.Context(), id.UserID, chi.URLParam(r, "id")); err != nil {
			httputil.FromError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
