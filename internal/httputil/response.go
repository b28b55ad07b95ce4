// Package httputil writes the JSON envelopes shared by every API response.
package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/kirito3009/ad-time-cash/internal/config"
)

// successResponse wraps data in the standard {"data": ...} envelope.
type successResponse struct {
	Data interface{} `json:"data"`
}

// listResponse wraps data with pagination metadata.
type listResponse struct {
	Data interface{} `json:"data"`
	Meta PageMeta    `json:"meta"`
}

// PageMeta describes one page of a list response.
type PageMeta struct {
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
	Total    int64 `json:"total"`
}

// ErrorResponse is the standard error envelope.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody carries a machine code and a human message.
type ErrorBody struct {
	Code              string `json:"code"`
	Message           string `json:"message"`
	RetryAfterSeconds int    `json:"retry_after_seconds,omitempty"`
}

// JSON writes a success response with the given status code.
func JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(successResponse{Data: data}); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// JSONList writes a paginated list response.
func JSONList(w http.ResponseWriter, data interface{}, page, pageSize int, total int64) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	resp := listResponse{
		Data: data,
		Meta: PageMeta{
			Page:     page,
			PageSize: pageSize,
			Total:    total,
		},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode JSON list response", "error", err)
	}
}

// Error writes an error response with the given status code, error code, and message.
func Error(w http.ResponseWriter, status int, code, message string) {
	writeError(w, status, ErrorBody{Code: code, Message: message})
}

// RateLimited writes a 429 with a Retry-After header rounded up to whole seconds.
func RateLimited(w http.ResponseWriter, message string, retryAfter time.Duration) {
	secs := RetryAfterSeconds(retryAfter)
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	writeError(w, http.StatusTooManyRequests, ErrorBody{
		Code:              config.ErrorRateLimited,
		Message:           message,
		RetryAfterSeconds: secs,
	})
}

// RetryAfterSeconds rounds d up to whole seconds, minimum one.
func RetryAfterSeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}

// FromError maps the rejection taxonomy onto HTTP statuses. Anything else is
// logged and reported as an internal error without detail.
func FromError(w http.ResponseWriter, err error) {
	var (
		ve *config.ValidationError
		ne *config.NotFoundError
		se *config.StateConflictError
		re *config.RateLimitError
		be *config.InsufficientBalanceError
		ae *config.AuthorizationError
	)

	switch {
	case errors.As(err, &ve):
		Error(w, http.StatusBadRequest, ve.Code, ve.Message)
	case errors.As(err, &ne):
		Error(w, http.StatusNotFound, ne.Code, ne.Message)
	case errors.As(err, &se):
		Error(w, http.StatusConflict, se.Code, se.Message)
	case errors.As(err, &re):
		RateLimited(w, re.Error(), re.RetryAfter)
	case errors.As(err, &be):
		Error(w, http.StatusUnprocessableEntity, config.ErrorInsufficientBalance, be.Error())
	case errors.As(err, &ae):
		Error(w, http.StatusForbidden, config.ErrorForbidden, "Forbidden")
	default:
		slog.Error("request failed", "error", err)
		Error(w, http.StatusInternalServerError, config.ErrorInternal, "Internal server error")
	}
}

func writeError(w http.ResponseWriter, status int, body ErrorBody) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(ErrorResponse{Error: body}); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
