package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/kirito3009/ad-time-cash/internal/models"
)

// InsertError records a system error.
func (s *queries) InsertError(ctx context.Context, severity, category, message, details, now string) (int64, error) {
	result, err := s.q.ExecContext(ctx, `
		INSERT INTO system_errors (severity, category, message, details, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		severity, category, message, details, now,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert system error: %w", err)
	}

	id, _ := result.LastInsertId()
	slog.Warn("system error recorded",
		"id", id,
		"severity", severity,
		"category", category,
		"message", message,
	)
	return id, nil
}

// ListUnresolved returns all unresolved system errors.
func (s *queries) ListUnresolved(ctx context.Context) ([]models.SystemError, error) {
	return s.queryErrors(ctx, `
		SELECT id, severity, category, message, details, resolved, created_at
		FROM system_errors WHERE resolved = 0
		ORDER BY created_at DESC, id DESC`)
}

// MarkResolved marks a system error as resolved.
func (s *queries) MarkResolved(ctx context.Context, id int) error {
	result, err := s.q.ExecContext(ctx, `UPDATE system_errors SET resolved = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to resolve system error %d: %w", id, err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("system error %d not found", id)
	}

	slog.Info("system error resolved", "id", id)
	return nil
}

func (s *queries) queryErrors(ctx context.Context, query string, args ...interface{}) ([]models.SystemError, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query system errors: %w", err)
	}
	defer rows.Close()

	list := []models.SystemError{}
	for rows.Next() {
		var e models.SystemError
		var details sql.NullString
		if err := rows.Scan(&e.ID, &e.Severity, &e.Category, &e.Message, &details, &e.Resolved, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan system error row: %w", err)
		}
		if details.Valid {
			e.Details = details.String
		}
		list = append(list, e)
	}
	return list, rows.Err()
}
