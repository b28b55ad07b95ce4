package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Sentinel errors for internal use.
var (
	ErrInvalidToken      = errors.New("invalid access token")
	ErrVaultKey          = errors.New("invalid payment encryption key")
	ErrVaultCiphertext   = errors.New("malformed sealed payment details")
	ErrTickerStopped     = errors.New("session tick source stopped")
	ErrSessionClosed     = errors.New("session closed")
	ErrNothingToCollect  = errors.New("nothing to collect")
	ErrProfileDrift      = errors.New("profile aggregate differs from ledger")
	ErrUnexpectedPayload = errors.New("unexpected API response payload")
)

// Error codes, shared with frontend via API responses.
const (
	ErrorInvalidRequest       = "ERROR_INVALID_REQUEST"
	ErrorInternal             = "ERROR_INTERNAL"
	ErrorDatabase             = "ERROR_DATABASE"
	ErrorUnauthorized         = "ERROR_UNAUTHORIZED"
	ErrorForbidden            = "ERROR_FORBIDDEN"
	ErrorIPNotAllowed         = "ERROR_IP_NOT_ALLOWED"
	ErrorRateLimited          = "ERROR_RATE_LIMITED"
	ErrorAdNotFound           = "ERROR_AD_NOT_FOUND"
	ErrorAdInactive           = "ERROR_AD_INACTIVE"
	ErrorInvalidAd            = "ERROR_INVALID_AD"
	ErrorWatchTimeOutOfRange  = "ERROR_WATCH_TIME_OUT_OF_RANGE"
	ErrorCompletionMismatch   = "ERROR_COMPLETION_MISMATCH"
	ErrorBelowMinimum         = "ERROR_BELOW_MINIMUM_WITHDRAWAL"
	ErrorInvalidAmount        = "ERROR_INVALID_AMOUNT"
	ErrorInvalidPayment       = "ERROR_INVALID_PAYMENT_DETAILS"
	ErrorInsufficientBalance  = "ERROR_INSUFFICIENT_BALANCE"
	ErrorWithdrawalNotFound   = "ERROR_WITHDRAWAL_NOT_FOUND"
	ErrorWithdrawalNotPending = "ERROR_WITHDRAWAL_NOT_PENDING"
	ErrorInvalidStatus        = "ERROR_INVALID_STATUS"
	ErrorInvalidSetting       = "ERROR_INVALID_SETTING"
	ErrorSessionState         = "ERROR_SESSION_STATE"
	ErrorInvalidSession       = "ERROR_INVALID_SESSION_ID"
	ErrorDuplicateSession     = "ERROR_DUPLICATE_SESSION"
	ErrorUserNotFound         = "ERROR_USER_NOT_FOUND"
	ErrorNotFound             = "ERROR_NOT_FOUND"
)

// ValidationError reports malformed or out-of-range input.
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// NotFoundError reports an unknown ad, withdrawal or user id.
type NotFoundError struct {
	Code    string
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// StateConflictError reports an operation that is invalid in the target's current state.
type StateConflictError struct {
	Code    string
	Message string
}

func (e *StateConflictError) Error() string { return e.Message }

// RateLimitError reports that a submission cadence cap was exceeded.
type RateLimitError struct {
	Action     string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s, retry after %s", e.Action, e.RetryAfter.Round(time.Second))
}

// InsufficientBalanceError reports a withdrawal larger than the available balance.
// Message, when set, replaces the formatted amounts; API clients only see text.
type InsufficientBalanceError struct {
	Requested decimal.Decimal
	Available decimal.Decimal
	Message   string
}

func (e *InsufficientBalanceError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("requested %s exceeds available balance %s", e.Requested.String(), e.Available.String())
}

// AuthorizationError reports a caller acting outside its privileges.
type AuthorizationError struct {
	Message string
}

func (e *AuthorizationError) Error() string { return e.Message }

// NewValidationError builds a ValidationError with a formatted message.
func NewValidationError(code, format string, args ...interface{}) error {
	return &ValidationError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// NewNotFoundError builds a NotFoundError with a formatted message.
func NewNotFoundError(code, format string, args ...interface{}) error {
	return &NotFoundError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// NewStateConflictError builds a StateConflictError with a formatted message.
func NewStateConflictError(code, format string, args ...interface{}) error {
	return &StateConflictError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// GetRetryAfter returns the retry delay of a RateLimitError, or 0.
func GetRetryAfter(err error) time.Duration {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl.RetryAfter
	}
	return 0
}

// IsRejection reports whether err belongs to the typed rejection taxonomy,
// as opposed to an infrastructure failure.
func IsRejection(err error) bool {
	var (
		ve *ValidationError
		ne *NotFoundError
		se *StateConflictError
		re *RateLimitError
		be *InsufficientBalanceError
		ae *AuthorizationError
	)
	return errors.As(err, &ve) || errors.As(err, &ne) || errors.As(err, &se) ||
		errors.As(err, &re) || errors.As(err, &be) || errors.As(err, &ae)
}
