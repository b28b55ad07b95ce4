package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/kirito3009/ad-time-cash/internal/models"
)

// InsertAudit records a privileged action.
func (s *queries) InsertAudit(ctx context.Context, e *models.AuditEntry) (int64, error) {
	result, err := s.q.ExecContext(ctx, `
		INSERT INTO audit_log (actor_id, action, target_id, details, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		e.ActorID, e.Action, e.TargetID, e.Details, e.CreatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert audit entry: %w", err)
	}

	id, _ := result.LastInsertId()
	slog.Info("audit entry recorded",
		"id", id,
		"actorID", e.ActorID,
		"action", e.Action,
		"targetID", e.TargetID,
	)
	return id, nil
}

// ListAudit returns a page of audit entries, newest first, and the total count.
func (s *queries) ListAudit(ctx context.Context, page models.Pagination) ([]models.AuditEntry, int64, error) {
	var total int64
	if err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_log`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count audit entries: %w", err)
	}

	rows, err := s.q.QueryContext(ctx, `
		SELECT id, actor_id, action, target_id, details, created_at
		FROM audit_log ORDER BY id DESC LIMIT ? OFFSET ?`,
		page.PageSize, page.Offset(),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	entries := []models.AuditEntry{}
	for rows.Next() {
		var (
			e       models.AuditEntry
			details sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.ActorID, &e.Action, &e.TargetID, &details, &e.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan audit row: %w", err)
		}
		e.Details = details.String
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}
