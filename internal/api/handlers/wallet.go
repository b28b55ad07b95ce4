package handlers

import (
	"net/http"

	"github.com/kirito3009/ad-time-cash/internal/httputil"
	"github.com/kirito3009/ad-time-cash/internal/ledger"
)

// GetWallet handles GET /api/wallet.
func GetWallet(l *ledger.Reconciler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := caller(w, r)
		if !ok {
			return
		}
		summary, err := l.WalletSummary(r.Context(), id.UserID)
		if err != nil {
			httputil.FromError(w, err)
			return
		}
		httputil.JSON(w, http.StatusOK, summary)
	}
}

// GetStreak handles GET /api/streak.
func GetStreak(l *ledger.Reconciler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := caller(w, r)
		if !ok {
			return
		}
		summary, err := l.Streak(r.Context(), id.UserID)
		if err != nil {
			httputil.FromError(w, err)
			return
		}
		httputil.JSON(w, http.StatusOK, summary)
	}
}

// GetMe handles GET /api/me. The first call after sign-up creates the
// profile row; later calls refresh the stored email.
func GetMe(l *ledger.Reconciler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := caller(w, r)
		if !ok {
			return
		}
		profile, err := l.TouchProfile(r.Context(), id.UserID, id.Email)
		if err != nil {
			httputil.FromError(w, err)
			return
		}
		admin, err := l.IsAdmin(r.Context(), id.UserID)
		if err != nil {
			httputil.FromError(w, err)
			return
		}
		httputil.JSON(w, http.StatusOK, map[string]interface{}{
			"profile":  profile,
			"is_admin": admin,
		})
	}
}
