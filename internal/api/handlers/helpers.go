package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/kirito3009/ad-time-cash/internal/api/middleware"
	"github.com/kirito3009/ad-time-cash/internal/config"
	"github.com/kirito3009/ad-time-cash/internal/httputil"
	"github.com/kirito3009/ad-time-cash/internal/models"
)

// decodeJSON reads the request body into dst and writes a 400 (or 413) on
// failure. It reports whether the handler should continue.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.Error(w, http.StatusRequestEntityTooLarge, config.ErrorInvalidRequest, "Request body too large")
			return false
		}
		slog.Debug("invalid request body", "path", r.URL.Path, "error", err)
		httputil.Error(w, http.StatusBadRequest, config.ErrorInvalidRequest, "Invalid request body")
		return false
	}
	return true
}

// caller returns the authenticated identity. Routes using it sit behind the
// auth middleware, so a missing identity is a wiring bug.
func caller(w http.ResponseWriter, r *http.Request) (middleware.Identity, bool) {
	id, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		slog.Error("handler reached without identity", "path", r.URL.Path)
		httputil.Error(w, http.StatusUnauthorized, config.ErrorUnauthorized, "Missing bearer token")
	}
	return id, ok
}

// parseIntParam reads an integer query parameter, falling back to defaultVal.
func parseIntParam(r *http.Request, key string, defaultVal int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		slog.Debug("invalid int param, using default",
			"key", key,
			"value", val,
			"default", defaultVal,
		)
		return defaultVal
	}
	return n
}

// parsePagination reads page and page_size, clamped to sane bounds.
func parsePagination(r *http.Request) models.Pagination {
	p := models.Pagination{
		Page:     parseIntParam(r, "page", 1),
		PageSize: parseIntParam(r, "page_size", config.DefaultPageSize),
	}
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = config.DefaultPageSize
	}
	if p.PageSize > config.MaxPageSize {
		p.PageSize = config.MaxPageSize
	}
	return p
}
