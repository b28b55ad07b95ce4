package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// CountActionsSince counts a user's recorded actions at or after since.
func (s *queries) CountActionsSince(ctx context.Context, userID, action, since string) (int, error) {
	var n int
	err := s.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM rate_limits
		WHERE user_id = ? AND action_type = ? AND created_at >= ?`,
		userID, action, since,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s actions for %s: %w", action, userID, err)
	}
	return n, nil
}

// OldestActionSince returns the earliest action timestamp at or after since,
// or "" when there is none.
func (s *queries) OldestActionSince(ctx context.Context, userID, action, since string) (string, error) {
	var oldest sql.NullString
	err := s.q.QueryRowContext(ctx, `
		SELECT MIN(created_at) FROM rate_limits
		WHERE user_id = ? AND action_type = ? AND created_at >= ?`,
		userID, action, since,
	).Scan(&oldest)
	if err != nil {
		return "", fmt.Errorf("failed to find oldest %s action for %s: %w", action, userID, err)
	}
	return oldest.String, nil
}

// RecordAction logs one accepted action.
func (s *queries) RecordAction(ctx context.Context, userID, action, at string) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO rate_limits (user_id, action_type, created_at) VALUES (?, ?, ?)`,
		userID, action, at,
	)
	if err != nil {
		return fmt.Errorf("failed to record %s action for %s: %w", action, userID, err)
	}
	return nil
}

// PruneActions deletes action rows older than before. Returns the number removed.
func (s *queries) PruneActions(ctx context.Context, before string) (int64, error) {
	result, err := s.q.ExecContext(ctx, `DELETE FROM rate_limits WHERE created_at < ?`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to prune rate limit rows: %w", err)
	}

	removed, _ := result.RowsAffected()
	if removed > 0 {
		slog.Info("rate limit rows pruned", "removed", removed, "before", before)
	}
	return removed, nil
}
