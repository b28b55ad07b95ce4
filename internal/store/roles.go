package store

import (
	"context"
	"fmt"
	"log/slog"
)

// HasRole reports whether a user holds role.
func (s *queries) HasRole(ctx context.Context, userID, role string) (bool, error) {
	var n int
	err := s.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM user_roles WHERE user_id = ? AND role = ?`,
		userID, role,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check role %s for %s: %w", role, userID, err)
	}
	return n > 0, nil
}

// GrantRole gives a user role. Granting an existing role is a no-op.
func (s *queries) GrantRole(ctx context.Context, userID, role, now string) error {
	result, err := s.q.ExecContext(ctx,
		`INSERT OR IGNORE INTO user_roles (user_id, role, created_at) VALUES (?, ?, ?)`,
		userID, role, now,
	)
	if err != nil {
		return fmt.Errorf("failed to grant role %s to %s: %w", role, userID, err)
	}

	if affected, _ := result.RowsAffected(); affected > 0 {
		slog.Info("role granted", "userID", userID, "role", role)
	}
	return nil
}
