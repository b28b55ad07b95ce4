package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/kirito3009/ad-time-cash/internal/models"
)

const adColumns = `id, title, description, ad_type, video_url, image_url, link_url,
	duration, reward_amount, is_active, placements, priority, created_at, updated_at`

// CreateAd inserts a new ad. ID and timestamps must already be set.
func (s *queries) CreateAd(ctx context.Context, ad *models.Ad) error {
	placements, err := json.Marshal(ad.Placements)
	if err != nil {
		return fmt.Errorf("failed to encode placements for ad %s: %w", ad.ID, err)
	}

	_, err = s.q.ExecContext(ctx, `
		INSERT INTO ads (`+adColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ad.ID, ad.Title, ad.Description, ad.AdType, ad.VideoURL, ad.ImageURL, ad.LinkURL,
		ad.DurationSeconds, ad.RewardAmount, ad.IsActive, string(placements), ad.Priority,
		ad.CreatedAt, ad.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert ad %s: %w", ad.ID, err)
	}

	slog.Info("ad created",
		"adID", ad.ID,
		"title", ad.Title,
		"duration", ad.DurationSeconds,
		"reward", ad.RewardAmount.String(),
	)
	return nil
}

// UpdateAd overwrites the editable fields of an ad. Returns false if the ad
// does not exist.
func (s *queries) UpdateAd(ctx context.Context, ad *models.Ad) (bool, error) {
	placements, err := json.Marshal(ad.Placements)
	if err != nil {
		return false, fmt.Errorf("failed to encode placements for ad %s: %w", ad.ID, err)
	}

	result, err := s.q.ExecContext(ctx, `
		UPDATE ads
		SET title = ?, description = ?, ad_type = ?, video_url = ?, image_url = ?, link_url = ?,
		    duration = ?, reward_amount = ?, is_active = ?, placements = ?, priority = ?, updated_at = ?
		WHERE id = ?`,
		ad.Title, ad.Description, ad.AdType, ad.VideoURL, ad.ImageURL, ad.LinkURL,
		ad.DurationSeconds, ad.RewardAmount, ad.IsActive, string(placements), ad.Priority, ad.UpdatedAt,
		ad.ID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update ad %s: %w", ad.ID, err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return false, nil
	}

	slog.Info("ad updated", "adID", ad.ID, "active", ad.IsActive)
	return true, nil
}

// SetAdActive toggles an ad in or out of rotation. Returns false if the ad
// does not exist.
func (s *queries) SetAdActive(ctx context.Context, id string, active bool, updatedAt string) (bool, error) {
	result, err := s.q.ExecContext(ctx,
		`UPDATE ads SET is_active = ?, updated_at = ? WHERE id = ?`,
		active, updatedAt, id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to set active=%v for ad %s: %w", active, id, err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return false, nil
	}

	slog.Info("ad activity changed", "adID", id, "active", active)
	return true, nil
}

// DeleteAd removes an ad. Ledger rows keep their ad_id.
func (s *queries) DeleteAd(ctx context.Context, id string) (bool, error) {
	result, err := s.q.ExecContext(ctx, `DELETE FROM ads WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete ad %s: %w", id, err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return false, nil
	}

	slog.Info("ad deleted", "adID", id)
	return true, nil
}

// GetAd retrieves an ad by ID. Returns nil if not found.
func (s *queries) GetAd(ctx context.Context, id string) (*models.Ad, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+adColumns+` FROM ads WHERE id = ?`, id)

	ad, err := scanAd(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ad %s: %w", id, err)
	}
	return ad, nil
}

// ListAds returns every ad for the admin inventory view, highest priority first.
func (s *queries) ListAds(ctx context.Context) ([]models.Ad, error) {
	return s.queryAds(ctx, `SELECT `+adColumns+` FROM ads ORDER BY priority DESC, created_at DESC`)
}

// ListActiveAds returns active ads ordered by priority. An empty placement
// matches every placement.
func (s *queries) ListActiveAds(ctx context.Context, placement string) ([]models.Ad, error) {
	query := `SELECT ` + adColumns + ` FROM ads WHERE is_active = 1`
	var args []interface{}

	if placement != "" {
		query += ` AND EXISTS (SELECT 1 FROM json_each(ads.placements) WHERE json_each.value = ?)`
		args = append(args, placement)
	}

	query += ` ORDER BY priority DESC, created_at DESC`
	return s.queryAds(ctx, query, args...)
}

func (s *queries) queryAds(ctx context.Context, query string, args ...interface{}) ([]models.Ad, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list ads: %w", err)
	}
	defer rows.Close()

	ads := []models.Ad{}
	for rows.Next() {
		ad, err := scanAd(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ad row: %w", err)
		}
		ads = append(ads, *ad)
	}
	return ads, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAd(r rowScanner) (*models.Ad, error) {
	var (
		ad         models.Ad
		placements string
	)
	if err := r.Scan(
		&ad.ID, &ad.Title, &ad.Description, &ad.AdType, &ad.VideoURL, &ad.ImageURL, &ad.LinkURL,
		&ad.DurationSeconds, &ad.RewardAmount, &ad.IsActive, &placements, &ad.Priority,
		&ad.CreatedAt, &ad.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(placements), &ad.Placements); err != nil {
		return nil, fmt.Errorf("decode placements of ad %s: %w", ad.ID, err)
	}
	return &ad, nil
}
