package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/kirito3009/ad-time-cash/internal/models"
	"github.com/kirito3009/ad-time-cash/internal/streak"
)

const profileColumns = `user_id, email, total_earnings, total_watch_time, ads_watched,
	current_streak, longest_streak, last_streak_date, created_at, updated_at`

// GetOrCreateProfile retrieves the profile for a user, creating an empty one
// if it doesn't exist. A non-empty email refreshes the stored one.
func (s *queries) GetOrCreateProfile(ctx context.Context, userID, email, now string) (*models.Profile, error) {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO profiles (user_id, email, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET email = excluded.email
		WHERE excluded.email != '' AND excluded.email != profiles.email`,
		userID, email, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure profile for %s: %w", userID, err)
	}

	p, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("profile for %s missing after insert", userID)
	}
	return p, nil
}

// GetProfile retrieves a profile. Returns nil if not found.
func (s *queries) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM profiles WHERE user_id = ?`, userID)

	p, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile %s: %w", userID, err)
	}
	return p, nil
}

// ListProfiles returns a page of profiles, highest earners first, and the total count.
func (s *queries) ListProfiles(ctx context.Context, page models.Pagination) ([]models.Profile, int64, error) {
	var total int64
	if err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM profiles`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count profiles: %w", err)
	}

	rows, err := s.q.QueryContext(ctx, `
		SELECT `+profileColumns+` FROM profiles
		ORDER BY CAST(total_earnings AS REAL) DESC, user_id
		LIMIT ? OFFSET ?`,
		page.PageSize, page.Offset(),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list profiles: %w", err)
	}
	defer rows.Close()

	profiles := []models.Profile{}
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan profile row: %w", err)
		}
		profiles = append(profiles, *p)
	}
	return profiles, total, rows.Err()
}

// ListProfileIDs returns every user id that has a profile or a ledger entry.
func (s *queries) ListProfileIDs(ctx context.Context) ([]string, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT user_id FROM profiles
		UNION
		SELECT DISTINCT user_id FROM watch_history
		ORDER BY 1`)
	if err != nil {
		return nil, fmt.Errorf("failed to list profile ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan profile id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ApplyWatch adds one ledger entry's effect to the aggregate. Call it inside
// the transaction that inserts the entry.
func (s *queries) ApplyWatch(ctx context.Context, userID string, earned decimal.Decimal, watchTime int, completed bool, now string) (decimal.Decimal, error) {
	var current decimal.Decimal
	if err := s.q.QueryRowContext(ctx,
		`SELECT total_earnings FROM profiles WHERE user_id = ?`, userID,
	).Scan(&current); err != nil {
		return decimal.Zero, fmt.Errorf("failed to read earnings for %s: %w", userID, err)
	}

	total := current.Add(earned)
	adsDelta := 0
	if completed {
		adsDelta = 1
	}

	_, err := s.q.ExecContext(ctx, `
		UPDATE profiles
		SET total_earnings = ?,
		    total_watch_time = total_watch_time + ?,
		    ads_watched = ads_watched + ?,
		    updated_at = ?
		WHERE user_id = ?`,
		total, watchTime, adsDelta, now, userID,
	)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to apply watch to profile %s: %w", userID, err)
	}

	slog.Debug("profile aggregate updated",
		"userID", userID,
		"earned", earned.String(),
		"totalEarnings", total.String(),
		"watchTime", watchTime,
		"completed", completed,
	)
	return total, nil
}

// SaveStreak stores the streak portion of a profile.
func (s *queries) SaveStreak(ctx context.Context, userID string, st streak.State, now string) error {
	_, err := s.q.ExecContext(ctx, `
		UPDATE profiles
		SET current_streak = ?, longest_streak = ?, last_streak_date = ?, updated_at = ?
		WHERE user_id = ?`,
		st.CurrentStreak, st.LongestStreak, st.LastStreakDate, now, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to save streak for %s: %w", userID, err)
	}
	return nil
}

// ReplaceAggregate overwrites the ledger-derived counters of a profile.
func (s *queries) ReplaceAggregate(ctx context.Context, userID string, totals models.Totals, now string) error {
	_, err := s.q.ExecContext(ctx, `
		UPDATE profiles
		SET total_earnings = ?, total_watch_time = ?, ads_watched = ?, updated_at = ?
		WHERE user_id = ?`,
		totals.Earnings, totals.WatchTime, totals.AdsWatched, now, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to replace aggregate for %s: %w", userID, err)
	}

	slog.Info("profile aggregate replaced",
		"userID", userID,
		"totalEarnings", totals.Earnings.String(),
		"totalWatchTime", totals.WatchTime,
		"adsWatched", totals.AdsWatched,
	)
	return nil
}

func scanProfile(r rowScanner) (*models.Profile, error) {
	var p models.Profile
	if err := r.Scan(
		&p.UserID, &p.Email, &p.TotalEarnings, &p.TotalWatchTime, &p.AdsWatched,
		&p.CurrentStreak, &p.LongestStreak, &p.LastStreakDate, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &p, nil
}

