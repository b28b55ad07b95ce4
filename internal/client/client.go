// Package client is a typed HTTP client for the reward API. It is used by
// the watch simulator and by anything else that needs to act as a viewer.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/kirito3009/ad-time-cash/internal/config"
	"github.com/kirito3009/ad-time-cash/internal/httputil"
	"github.com/kirito3009/ad-time-cash/internal/models"
)

// Client talks to the reward API as one authenticated viewer.
type Client struct {
	http *resty.Client
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.SetTimeout(d) }
}

// idempotencyHeader marks a POST that the server deduplicates, which makes
// it safe to send again.
const idempotencyHeader = "Idempotency-Key"

// WithRetries retries transport failures and 5xx responses up to n times.
// Only reads and keyed submissions are retried; rejections never are.
func WithRetries(n int, wait time.Duration) Option {
	return func(c *Client) {
		c.http.SetRetryCount(n).
			SetRetryWaitTime(wait).
			AddRetryCondition(func(r *resty.Response, err error) bool {
				if r == nil || r.Request == nil || !retryable(r.Request) {
					return false
				}
				return err != nil || r.StatusCode() >= http.StatusInternalServerError
			})
	}
}

func retryable(req *resty.Request) bool {
	switch req.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return req.Header.Get(idempotencyHeader) != ""
}

// New creates a Client for baseURL that sends token as a bearer credential.
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetAuthToken(token).
			SetTimeout(config.APITimeout).
			SetHeader("Accept", "application/json"),
	}
	for _, opt := range opts {
		opt(c)
	}

	slog.Debug("api client initialized", "baseURL", baseURL)
	return c
}

type envelope[T any] struct {
	Data T `json:"data"`
}

// APIError is a non-2xx response. Unwrap exposes the matching rejection
// type, so callers can use errors.As with the config error taxonomy.
type APIError struct {
	Status     int
	Code       string
	Message    string
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d %s: %s", e.Status, e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusBadRequest:
		return &config.ValidationError{Code: e.Code, Message: e.Message}
	case http.StatusNotFound:
		return &config.NotFoundError{Code: e.Code, Message: e.Message}
	case http.StatusConflict:
		return &config.StateConflictError{Code: e.Code, Message: e.Message}
	case http.StatusTooManyRequests:
		return &config.RateLimitError{Action: e.Message, RetryAfter: e.RetryAfter}
	case http.StatusUnprocessableEntity:
		return &config.InsufficientBalanceError{Message: e.Message}
	case http.StatusForbidden:
		return &config.AuthorizationError{Message: e.Message}
	case http.StatusUnauthorized:
		return config.ErrInvalidToken
	}
	return nil
}

// IsCode reports whether err is an APIError carrying code.
func IsCode(err error, code string) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Code == code
}

func call[T any](ctx context.Context, c *Client, method, path string, prep func(*resty.Request)) (*T, error) {
	req := c.http.R().
		SetContext(ctx).
		SetResult(&envelope[T]{}).
		SetError(&httputil.ErrorResponse{})
	if prep != nil {
		prep(req)
	}

	start := time.Now()
	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}

	slog.Debug("api call completed",
		"method", method,
		"path", path,
		"status", resp.StatusCode(),
		"duration", time.Since(start).String(),
	)

	if resp.IsError() {
		return nil, toAPIError(resp)
	}

	out, ok := resp.Result().(*envelope[T])
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", method, path, config.ErrUnexpectedPayload)
	}
	return &out.Data, nil
}

func toAPIError(resp *resty.Response) *APIError {
	apiErr := &APIError{
		Status:  resp.StatusCode(),
		Code:    config.ErrorInternal,
		Message: http.StatusText(resp.StatusCode()),
	}
	body, ok := resp.Error().(*httputil.ErrorResponse)
	if ok && body.Error.Code != "" {
		apiErr.Code = body.Error.Code
		apiErr.Message = body.Error.Message
	}

	if apiErr.Status == http.StatusTooManyRequests {
		apiErr.RetryAfter = parseRetryAfter(resp.Header())
		if apiErr.RetryAfter == 0 && ok && body.Error.RetryAfterSeconds > 0 {
			apiErr.RetryAfter = time.Duration(body.Error.RetryAfterSeconds) * time.Second
		}
	}
	return apiErr
}

// ListAds returns active ads, optionally restricted to one placement.
func (c *Client) ListAds(ctx context.Context, placement string) ([]models.Ad, error) {
	ads, err := call[[]models.Ad](ctx, c, http.MethodGet, "/api/ads", func(r *resty.Request) {
		if placement != "" {
			r.SetQueryParam("placement", placement)
		}
	})
	if err != nil {
		return nil, err
	}
	return *ads, nil
}

// SubmitWatchEvent reports a finished session. It satisfies session.Reporter.
// A submission with a SessionID may be retried; without one it is sent once.
func (c *Client) SubmitWatchEvent(ctx context.Context, sub models.WatchSubmission) (*models.WatchResult, error) {
	return call[models.WatchResult](ctx, c, http.MethodPost, "/api/watch-events", func(r *resty.Request) {
		r.SetBody(sub)
		if sub.SessionID != "" {
			r.SetHeader(idempotencyHeader, sub.SessionID)
		}
	})
}

// RequestWithdrawal asks for a payout.
func (c *Client) RequestWithdrawal(ctx context.Context, req models.WithdrawalRequest) (*models.WithdrawalResult, error) {
	return call[models.WithdrawalResult](ctx, c, http.MethodPost, "/api/withdrawals", func(r *resty.Request) {
		r.SetBody(req)
	})
}

// WalletSummary returns the caller's balances.
func (c *Client) WalletSummary(ctx context.Context) (*models.WalletSummary, error) {
	return call[models.WalletSummary](ctx, c, http.MethodGet, "/api/wallet", nil)
}

// Streak returns the caller's streak summary.
func (c *Client) Streak(ctx context.Context) (*models.StreakSummary, error) {
	return call[models.StreakSummary](ctx, c, http.MethodGet, "/api/streak", nil)
}
