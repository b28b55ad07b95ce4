package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/kirito3009/ad-time-cash/internal/models"
)

// InsertWatchEvent appends one ledger entry.
func (s *queries) InsertWatchEvent(ctx context.Context, e *models.WatchEvent) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO watch_history (id, user_id, ad_id, session_id, watch_time, earned_amount, completed, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, e.AdID, e.SessionID, e.WatchTimeSeconds, e.EarnedAmount, e.Completed, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert watch event %s: %w", e.ID, err)
	}

	slog.Info("watch event recorded",
		"eventID", e.ID,
		"userID", e.UserID,
		"watchTime", e.WatchTimeSeconds,
		"earned", e.EarnedAmount.String(),
		"completed", e.Completed,
	)
	return nil
}

const watchEventColumns = `id, user_id, ad_id, session_id, watch_time, earned_amount, completed, created_at`

func scanWatchEvent(r rowScanner) (*models.WatchEvent, error) {
	var e models.WatchEvent
	if err := r.Scan(&e.ID, &e.UserID, &e.AdID, &e.SessionID, &e.WatchTimeSeconds, &e.EarnedAmount, &e.Completed, &e.CreatedAt); err != nil {
		return nil, err
	}
	return &e, nil
}

// GetWatchEventBySession finds the entry recorded for a client session.
// Returns nil if the session has not been recorded.
func (s *queries) GetWatchEventBySession(ctx context.Context, sessionID string) (*models.WatchEvent, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+watchEventColumns+` FROM watch_history WHERE session_id = ?`, sessionID)

	e, err := scanWatchEvent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get watch event for session %s: %w", sessionID, err)
	}
	return e, nil
}

// ListWatchEvents returns a user's most recent ledger entries, newest first.
func (s *queries) ListWatchEvents(ctx context.Context, userID string, limit int) ([]models.WatchEvent, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+watchEventColumns+`
		FROM watch_history WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list watch events for %s: %w", userID, err)
	}
	defer rows.Close()

	events := []models.WatchEvent{}
	for rows.Next() {
		e, err := scanWatchEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan watch event row: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

// SumSince totals a user's ledger entries created at or after since.
// Amounts are added as decimals, not in SQL.
func (s *queries) SumSince(ctx context.Context, userID, since string) (models.Totals, error) {
	return s.sumEvents(ctx, `
		SELECT earned_amount, watch_time, completed FROM watch_history
		WHERE user_id = ? AND created_at >= ?`,
		userID, since,
	)
}

// ReplayTotals recomputes a user's aggregate counters from the full ledger.
func (s *queries) ReplayTotals(ctx context.Context, userID string) (models.Totals, error) {
	return s.sumEvents(ctx, `
		SELECT earned_amount, watch_time, completed FROM watch_history
		WHERE user_id = ?`,
		userID,
	)
}

func (s *queries) sumEvents(ctx context.Context, query string, args ...interface{}) (models.Totals, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return models.Totals{}, fmt.Errorf("failed to sum watch events: %w", err)
	}
	defer rows.Close()

	totals := models.Totals{Earnings: decimal.Zero}
	for rows.Next() {
		var (
			earned    decimal.Decimal
			watchTime int
			completed bool
		)
		if err := rows.Scan(&earned, &watchTime, &completed); err != nil {
			return models.Totals{}, fmt.Errorf("failed to scan watch event amount: %w", err)
		}
		totals.Earnings = totals.Earnings.Add(earned)
		totals.WatchTime += watchTime
		if completed {
			totals.AdsWatched++
		}
	}
	return totals, rows.Err()
}
