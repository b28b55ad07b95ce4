package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/kirito3009/ad-time-cash/internal/models"
)

const withdrawalColumns = `id, user_id, amount, status, payment_method, payment_details,
	admin_notes, processed_by, processed_at, created_at`

// InsertWithdrawal stores a new withdrawal request. PaymentDetails must
// already be sealed.
func (s *queries) InsertWithdrawal(ctx context.Context, w *models.Withdrawal) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO withdrawals (id, user_id, amount, status, payment_method, payment_details, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		w.ID, w.UserID, w.Amount, w.Status, w.PaymentMethod, w.PaymentDetails, w.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert withdrawal %s: %w", w.ID, err)
	}

	slog.Info("withdrawal requested",
		"withdrawalID", w.ID,
		"userID", w.UserID,
		"amount", w.Amount.String(),
		"paymentMethod", w.PaymentMethod,
	)
	return nil
}

// GetWithdrawal retrieves a withdrawal by ID. Returns nil if not found.
func (s *queries) GetWithdrawal(ctx context.Context, id string) (*models.Withdrawal, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+withdrawalColumns+` FROM withdrawals WHERE id = ?`, id)

	w, err := scanWithdrawal(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get withdrawal %s: %w", id, err)
	}
	return w, nil
}

// ListWithdrawals returns a filtered page of withdrawals, newest first, and the total count.
func (s *queries) ListWithdrawals(ctx context.Context, filters models.WithdrawalFilters, page models.Pagination) ([]models.Withdrawal, int64, error) {
	where := " WHERE 1=1"
	var args []interface{}

	if filters.UserID != nil {
		where += " AND user_id = ?"
		args = append(args, *filters.UserID)
	}
	if filters.Status != nil {
		where += " AND status = ?"
		args = append(args, *filters.Status)
	}

	var total int64
	if err := s.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM withdrawals"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count withdrawals: %w", err)
	}

	query := "SELECT " + withdrawalColumns + " FROM withdrawals" + where +
		" ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, page.PageSize, page.Offset())

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list withdrawals: %w", err)
	}
	defer rows.Close()

	list := []models.Withdrawal{}
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan withdrawal row: %w", err)
		}
		list = append(list, *w)
	}
	return list, total, rows.Err()
}

// SumWithdrawals totals a user's withdrawals in the given statuses.
func (s *queries) SumWithdrawals(ctx context.Context, userID string, statuses ...models.WithdrawalStatus) (decimal.Decimal, error) {
	if len(statuses) == 0 {
		return decimal.Zero, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(statuses)), ",")
	args := []interface{}{userID}
	for _, st := range statuses {
		args = append(args, st)
	}

	rows, err := s.q.QueryContext(ctx,
		`SELECT amount FROM withdrawals WHERE user_id = ? AND status IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum withdrawals for %s: %w", userID, err)
	}
	defer rows.Close()

	sum := decimal.Zero
	for rows.Next() {
		var amount decimal.Decimal
		if err := rows.Scan(&amount); err != nil {
			return decimal.Zero, fmt.Errorf("failed to scan withdrawal amount: %w", err)
		}
		sum = sum.Add(amount)
	}
	return sum, rows.Err()
}

// UpdateWithdrawalStatus moves a pending withdrawal to a terminal status.
// Returns false when the withdrawal is missing or no longer pending.
func (s *queries) UpdateWithdrawalStatus(ctx context.Context, id string, status models.WithdrawalStatus, notes *string, adminID, now string) (bool, error) {
	result, err := s.q.ExecContext(ctx, `
		UPDATE withdrawals
		SET status = ?, admin_notes = ?, processed_by = ?, processed_at = ?
		WHERE id = ? AND status = ?`,
		status, notes, adminID, now, id, models.WithdrawalPending,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update withdrawal %s: %w", id, err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return false, nil
	}

	slog.Info("withdrawal processed",
		"withdrawalID", id,
		"status", status,
		"adminID", adminID,
	)
	return true, nil
}

func scanWithdrawal(r rowScanner) (*models.Withdrawal, error) {
	var w models.Withdrawal
	if err := r.Scan(
		&w.ID, &w.UserID, &w.Amount, &w.Status, &w.PaymentMethod, &w.PaymentDetails,
		&w.AdminNotes, &w.ProcessedBy, &w.ProcessedAt, &w.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &w, nil
}
