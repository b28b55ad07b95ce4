package ledger

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kirito3009/ad-time-cash/internal/config"
	"github.com/kirito3009/ad-time-cash/internal/models"
	"github.com/kirito3009/ad-time-cash/internal/store"
)

// heldStatuses are the withdrawal states whose amounts are no longer available.
var heldStatuses = []models.WithdrawalStatus{models.WithdrawalPending, models.WithdrawalApproved}

// RequestWithdrawal files a pending cash-out. Payment details are sealed
// before they reach the store.
func (r *Reconciler) RequestWithdrawal(ctx context.Context, req models.WithdrawalRequest) (*models.WithdrawalResult, error) {
	method, details, err := validateWithdrawal(req)
	if err != nil {
		return nil, err
	}

	sealed, err := r.vault.Seal(details, req.UserID)
	if err != nil {
		return nil, err
	}

	unlock := r.lockUser(req.UserID)
	defer unlock()

	now, at := r.clock()
	var result *models.WithdrawalResult

	err = r.db.WithTx(ctx, func(tx *store.Tx) error {
		minStr, err := tx.GetSetting(ctx, config.SettingMinWithdrawal)
		if err != nil {
			return err
		}
		minimum, err := decimal.NewFromString(minStr)
		if err != nil {
			return err
		}
		if req.Amount.LessThan(minimum) {
			return config.NewValidationError(config.ErrorBelowMinimum,
				"minimum withdrawal is %s, requested %s", minimum.String(), req.Amount.String())
		}

		if err := checkRate(ctx, tx, req.UserID, config.ActionWithdrawal, now,
			rateWindow{span: config.RateWindowDay, limit: r.limits.WithdrawalsPerDay},
		); err != nil {
			return err
		}

		available, err := availableBalance(ctx, tx, req.UserID)
		if err != nil {
			return err
		}
		if req.Amount.GreaterThan(available) {
			return &config.InsufficientBalanceError{Requested: req.Amount, Available: available}
		}

		w := &models.Withdrawal{
			ID:             uuid.New().String(),
			UserID:         req.UserID,
			Amount:         req.Amount,
			Status:         models.WithdrawalPending,
			PaymentMethod:  method,
			PaymentDetails: sealed,
			CreatedAt:      at,
		}
		if err := tx.InsertWithdrawal(ctx, w); err != nil {
			return err
		}
		if err := tx.RecordAction(ctx, req.UserID, config.ActionWithdrawal, at); err != nil {
			return err
		}

		result = &models.WithdrawalResult{Accepted: true, WithdrawalID: w.ID, Status: w.Status}
		return nil
	})
	if err != nil {
		if config.IsRejection(err) {
			slog.Info("withdrawal rejected",
				"userID", req.UserID,
				"amount", req.Amount.String(),
				"reason", err,
			)
		}
		return nil, err
	}
	return result, nil
}

// validateWithdrawal checks the request shape and returns the normalized
// payment method and details.
func validateWithdrawal(req models.WithdrawalRequest) (string, string, error) {
	if req.UserID == "" {
		return "", "", config.NewValidationError(config.ErrorInvalidRequest, "user id is required")
	}
	if !req.Amount.IsPositive() {
		return "", "", config.NewValidationError(config.ErrorInvalidAmount, "amount must be positive")
	}
	if tooPrecise(req.Amount) {
		return "", "", config.NewValidationError(config.ErrorInvalidAmount,
			"amount has more than %d decimal places", config.MoneyScale)
	}

	method := strings.ToLower(strings.TrimSpace(req.PaymentMethod))
	if !slices.Contains(config.PaymentMethods, method) {
		return "", "", config.NewValidationError(config.ErrorInvalidPayment,
			"payment_method must be one of %s", strings.Join(config.PaymentMethods, ", "))
	}

	details := strings.TrimSpace(req.PaymentDetails)
	if details == "" {
		return "", "", config.NewValidationError(config.ErrorInvalidPayment, "payment_details is required")
	}
	if len(details) > config.MaxPaymentDetailsLength {
		return "", "", config.NewValidationError(config.ErrorInvalidPayment,
			"payment_details must be at most %d characters", config.MaxPaymentDetailsLength)
	}
	return method, details, nil
}

// availableBalance is total earnings less every pending or approved withdrawal.
func availableBalance(ctx context.Context, tx *store.Tx, userID string) (decimal.Decimal, error) {
	profile, err := tx.GetProfile(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	if profile != nil {
		total = profile.TotalEarnings
	}

	held, err := tx.SumWithdrawals(ctx, userID, heldStatuses...)
	if err != nil {
		return decimal.Zero, err
	}
	return total.Sub(held), nil
}

// SetWithdrawalStatus approves or rejects a pending withdrawal. It never
// touches the balance: rejected amounts simply stop being held.
func (r *Reconciler) SetWithdrawalStatus(ctx context.Context, adminID, id string, status models.WithdrawalStatus, notes *string) (*models.Withdrawal, error) {
	if status != models.WithdrawalApproved && status != models.WithdrawalRejected {
		return nil, config.NewValidationError(config.ErrorInvalidStatus,
			"status must be %s or %s", models.WithdrawalApproved, models.WithdrawalRejected)
	}
	if notes != nil && len(*notes) > config.MaxAdminNotesLength {
		return nil, config.NewValidationError(config.ErrorInvalidRequest,
			"admin_notes must be at most %d characters", config.MaxAdminNotesLength)
	}

	_, at := r.clock()
	var updated *models.Withdrawal

	err := r.db.WithTx(ctx, func(tx *store.Tx) error {
		if err := requireAdmin(ctx, tx, adminID); err != nil {
			return err
		}

		w, err := tx.GetWithdrawal(ctx, id)
		if err != nil {
			return err
		}
		if w == nil {
			return config.NewNotFoundError(config.ErrorWithdrawalNotFound, "withdrawal %s not found", id)
		}

		ok, err := tx.UpdateWithdrawalStatus(ctx, id, status, notes, adminID, at)
		if err != nil {
			return err
		}
		if !ok {
			return config.NewStateConflictError(config.ErrorWithdrawalNotPending,
				"withdrawal %s is already %s", id, w.Status)
		}

		if err := audit(ctx, tx, adminID, config.AuditWithdrawalStatus, id, map[string]interface{}{
			"status": status,
			"userID": w.UserID,
			"amount": w.Amount.String(),
		}, at); err != nil {
			return err
		}

		updated, err = tx.GetWithdrawal(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DecryptPaymentDetails opens the sealed payment details of a withdrawal for
// an admin. Every call is written to the audit log.
func (r *Reconciler) DecryptPaymentDetails(ctx context.Context, adminID, id string) (string, error) {
	_, at := r.clock()
	var plaintext string

	err := r.db.WithTx(ctx, func(tx *store.Tx) error {
		if err := requireAdmin(ctx, tx, adminID); err != nil {
			return err
		}

		w, err := tx.GetWithdrawal(ctx, id)
		if err != nil {
			return err
		}
		if w == nil {
			return config.NewNotFoundError(config.ErrorWithdrawalNotFound, "withdrawal %s not found", id)
		}

		plaintext, err = r.vault.Open(w.PaymentDetails, w.UserID)
		if err != nil {
			return err
		}

		return audit(ctx, tx, adminID, config.AuditDecryptPayment, id, map[string]interface{}{
			"userID": w.UserID,
		}, at)
	})
	if err != nil {
		return "", err
	}

	slog.Info("payment details decrypted", "withdrawalID", id, "adminID", adminID)
	return plaintext, nil
}

// UserWithdrawals lists a user's own withdrawals, newest first.
func (r *Reconciler) UserWithdrawals(ctx context.Context, userID string, page models.Pagination) ([]models.Withdrawal, int64, error) {
	return r.db.ListWithdrawals(ctx, models.WithdrawalFilters{UserID: &userID}, page)
}

// tooPrecise reports whether d carries value beyond MoneyScale decimal
// places. Trailing zeros do not count.
func tooPrecise(d decimal.Decimal) bool {
	return !d.Equal(d.Round(config.MoneyScale))
}
