package handlers

import (
	"net/http"

	"github.com/kirito3009/ad-time-cash/internal/config"
	"github.com/kirito3009/ad-time-cash/internal/httputil"
	"github.com/kirito3009/ad-time-cash/internal/ledger"
	"github.com/kirito3009/ad-time-cash/internal/models"
)

// SubmitWatchEvent handles POST /api/watch-events. Only session_id, ad_id,
// watch_time and completed are read from the body; the amount is always
// computed server side. A repeated session_id answers 200 with the
// original entry.
func SubmitWatchEvent(l *ledger.Reconciler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := caller(w, r)
		if !ok {
			return
		}
		var sub models.WatchSubmission
		if !decodeJSON(w, r, &sub) {
			return
		}
		sub.UserID = id.UserID

		res, err := l.RecordWatchEvent(r.Context(), sub)
		if err != nil {
			httputil.FromError(w, err)
			return
		}
		status := http.StatusCreated
		if res.Duplicate {
			status = http.StatusOK
		}
		httputil.JSON(w, status, res)
	}
}

// ListWatchEvents handles GET /api/watch-events?limit=.
func ListWatchEvents(l *ledger.Reconciler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := caller(w, r)
		if !ok {
			return
		}
		limit := parseIntParam(r, "limit", config.DefaultWatchHistoryPage)

		events, err := l.WatchHistory(r.Context(), id.UserID, limit)
		if err != nil {
			httputil.FromError(w, err)
			return
		}
		if events == nil {
			events = []models.WatchEvent{}
		}
		httputil.JSON(w, http.StatusOK, events)
	}
}
