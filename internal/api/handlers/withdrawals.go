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

// RequestWithdrawal handles POST /api/withdrawals.
func RequestWithdrawal(l *ledger.Reconciler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := caller(w, r)
		if !ok {
			return
		}
		var req models.WithdrawalRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		req.UserID = id.UserID

		res, err := l.RequestWithdrawal(r.Context(), req)
		if err != nil {
			httputil.FromError(w, err)
			return
		}
		httputil.JSON(w, http.StatusCreated, res)
	}
}

// ListMyWithdrawals handles GET /api/withdrawals.
func ListMyWithdrawals(l *ledger.Reconciler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := caller(w, r)
		if !ok {
			return
		}
		page := parsePagination(r)

		list, total, err := l.UserWithdrawals(r.Context(), id.UserID, page)
		if err != nil {
			httputil.FromError(w, err)
			return
		}
		if list == nil {
			list = []models.Withdrawal{}
		}
		httputil.JSONList(w, list, page.Page, page.PageSize, total)
	}
}

// ListWithdrawals handles GET /api/admin/withdrawals?status=&user_id=.
func ListWithdrawals(db *store.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page := parsePagination(r)

		var filters models.WithdrawalFilters
		if s := r.URL.Query().Get("status"); s != "" {
			status := models.WithdrawalStatus(s)
			if !status.Valid() {
				httputil.Error(w, http.StatusBadRequest, config.ErrorInvalidStatus, "Unknown withdrawal status")
				return
			}
			filters.Status = &status
		}
		if u := r.URL.Query().Get("user_id"); u != "" {
			filters.UserID = &u
		}

		list, total, err := db.ListWithdrawals(r.Context(), filters, page)
		if err != nil {
			slog.Error("failed to list withdrawals", "error", err)
			httputil.Error(w, http.StatusInternalServerError, config.ErrorDatabase, "Failed to list withdrawals")
			return
		}
		if list == nil {
			list = []models.Withdrawal{}
		}
		httputil.JSONList(w, list, page.Page, page.PageSize, total)
	}
}

// SetWithdrawalStatus handles PUT /api/admin/withdrawals/{id}/status.
func SetWithdrawalStatus(l *ledger.Reconciler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := caller(w, r)
		if !ok {
			return
		}
		var body struct {
			Status     models.WithdrawalStatus `json:"status"`
			AdminNotes *string                 `json:"admin_notes"`
		}
		if !decodeJSON(w, r, &body) {
			return
		}

		wd, err := l.SetWithdrawalStatus(r.Context(), id.UserID, chi.URLParam(r, "id"), body.Status, body.AdminNotes)
		if err != nil {
			httputil.FromError(w, err)
			return
		}
		httputil.JSON(w, http.StatusOK, wd)
	}
}

// DecryptPaymentDetails handles POST /api/admin/withdrawals/{id}/decrypt.
// Every call leaves an audit entry.
func DecryptPaymentDetails(l *ledger.Reconciler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := caller(w, r)
		if !ok {
			return
		}
		withdrawalID := chi.URLParam(r, "id")

		details, err := l.DecryptPaymentDetails(r.Context(), id.UserID, withdrawalID)
		if err != nil {
			httputil.FromError(w, err)
			return
		}
		w.Header().Set("Cache-Control", "no-store")
		httputil.JSON(w, http.StatusOK, map[string]string{
			"id":              withdrawalID,
			"payment_details": details,
		})
	}
}
