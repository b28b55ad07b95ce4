package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kirito3009/ad-time-cash/internal/config"
	"github.com/kirito3009/ad-time-cash/internal/httputil"
	"github.com/kirito3009/ad-time-cash/internal/ledger"
	"github.com/kirito3009/ad-time-cash/internal/models"
	"github.com/kirito3009/ad-time-cash/internal/store"
)

// ListUsers handles GET /api/admin/users.
func ListUsers(db *store.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page := parsePagination(r)

		profiles, total, err := db.ListProfiles(r.Context(), page)
		if err != nil {
			slog.Error("failed to list profiles", "error", err)
			httputil.Error(w, http.StatusInternalServerError, config.ErrorDatabase, "Failed to list users")
			return
		}
		if profiles == nil {
			profiles = []models.Profile{}
		}
		httputil.JSONList(w, profiles, page.Page, page.PageSize, total)
	}
}

// RebuildUser handles POST /api/admin/users/{id}/rebuild and returns the
// totals before and after the replay.
func RebuildUser(l *ledger.Reconciler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := caller(w, r)
		if !ok {
			return
		}
		report, err := l.Rebuild(r.Context(), id.UserID, chi.URLParam(r, "id"))
		if err != nil {
			httputil.FromError(w, err)
			return
		}
		httputil.JSON(w, http.StatusOK, map[string]interface{}{
			"user_id": report.UserID,
			"stored":  report.Stored,
			"ledger":  report.Ledger,
			"changed": !report.Stored.Equal(report.Ledger),
		})
	}
}

// ListAudit handles GET /api/admin/audit.
func ListAudit(db *store.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page := parsePagination(r)

		entries, total, err := db.ListAudit(r.Context(), page)
		if err != nil {
			slog.Error("failed to list audit log", "error", err)
			httputil.Error(w, http.StatusInternalServerError, config.ErrorDatabase, "Failed to list audit log")
			return
		}
		if entries == nil {
			entries = []models.AuditEntry{}
		}
		httputil.JSONList(w, entries, page.Page, page.PageSize, total)
	}
}

// ListErrors handles GET /api/admin/errors, unresolved only.
func ListErrors(db *store.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		errs, err := db.ListUnresolved(r.Context())
		if err != nil {
			slog.Error("failed to list system errors", "error", err)
			httputil.Error(w, http.StatusInternalServerError, config.ErrorDatabase, "Failed to list errors")
			return
		}
		if errs == nil {
			errs = []models.SystemError{}
		}
		httputil.JSON(w, http.StatusOK, errs)
	}
}
