package ledger

import (
	"context"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kirito3009/ad-time-cash/internal/config"
	"github.com/kirito3009/ad-time-cash/internal/models"
	"github.com/kirito3009/ad-time-cash/internal/store"
)

var adTypes = []string{config.AdTypeVideo, config.AdTypeImage, config.AdTypeBanner, config.AdTypeLink}

// ValidateAd checks an ad definition and returns it with trimmed strings and
// de-duplicated placements.
func ValidateAd(in models.AdInput) (models.AdInput, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.AdType = strings.ToLower(strings.TrimSpace(in.AdType))
	in.VideoURL = strings.TrimSpace(in.VideoURL)
	in.ImageURL = strings.TrimSpace(in.ImageURL)
	in.LinkURL = strings.TrimSpace(in.LinkURL)

	if in.Title == "" || len(in.Title) > config.MaxAdTitleLength {
		return in, config.NewValidationError(config.ErrorInvalidAd,
			"title must be 1-%d characters", config.MaxAdTitleLength)
	}
	if in.AdType == "" {
		in.AdType = config.AdTypeVideo
	}
	if !slices.Contains(adTypes, in.AdType) {
		return in, config.NewValidationError(config.ErrorInvalidAd,
			"ad_type must be one of %s", strings.Join(adTypes, ", "))
	}

	switch in.AdType {
	case config.AdTypeVideo:
		if in.VideoURL == "" {
			return in, config.NewValidationError(config.ErrorInvalidAd, "video ads need a video_url")
		}
	case config.AdTypeImage, config.AdTypeBanner:
		if in.ImageURL == "" {
			return in, config.NewValidationError(config.ErrorInvalidAd, "%s ads need an image_url", in.AdType)
		}
	case config.AdTypeLink:
		if in.LinkURL == "" {
			return in, config.NewValidationError(config.ErrorInvalidAd, "link ads need a link_url")
		}
	}

	if in.DurationSeconds < config.MinAdDurationSeconds || in.DurationSeconds > config.MaxAdDurationSeconds {
		return in, config.NewValidationError(config.ErrorInvalidAd,
			"duration must be %d-%d seconds, got %d",
			config.MinAdDurationSeconds, config.MaxAdDurationSeconds, in.DurationSeconds)
	}
	if in.RewardAmount.IsNegative() || in.RewardAmount.GreaterThan(decimal.NewFromInt(config.MaxAdReward)) {
		return in, config.NewValidationError(config.ErrorInvalidAd,
			"reward_amount must be 0-%d, got %s", config.MaxAdReward, in.RewardAmount.String())
	}
	if tooPrecise(in.RewardAmount) {
		return in, config.NewValidationError(config.ErrorInvalidAd,
			"reward_amount has more than %d decimal places", config.MoneyScale)
	}

	var placements []string
	for _, p := range in.Placements {
		p = strings.TrimSpace(p)
		if !slices.Contains(config.Placements, p) {
			return in, config.NewValidationError(config.ErrorInvalidAd, "unknown placement %q", p)
		}
		if !slices.Contains(placements, p) {
			placements = append(placements, p)
		}
	}
	if len(placements) == 0 {
		return in, config.NewValidationError(config.ErrorInvalidAd, "at least one placement is required")
	}
	in.Placements = placements

	return in, nil
}

func adFromInput(id string, in models.AdInput, createdAt, updatedAt string) *models.Ad {
	return &models.Ad{
		ID:              id,
		Title:           in.Title,
		Description:     in.Description,
		AdType:          in.AdType,
		VideoURL:        in.VideoURL,
		ImageURL:        in.ImageURL,
		LinkURL:         in.LinkURL,
		DurationSeconds: in.DurationSeconds,
		RewardAmount:    in.RewardAmount,
		IsActive:        in.IsActive,
		Placements:      in.Placements,
		Priority:        in.Priority,
		CreatedAt:       createdAt,
		UpdatedAt:       updatedAt,
	}
}

// CreateAd adds an ad to the inventory.
func (r *Reconciler) CreateAd(ctx context.Context, adminID string, in models.AdInput) (*models.Ad, error) {
	in, err := ValidateAd(in)
	if err != nil {
		return nil, err
	}

	_, at := r.clock()
	ad := adFromInput(uuid.New().String(), in, at, at)

	err = r.db.WithTx(ctx, func(tx *store.Tx) error {
		if err := requireAdmin(ctx, tx, adminID); err != nil {
			return err
		}
		if err := tx.CreateAd(ctx, ad); err != nil {
			return err
		}
		return audit(ctx, tx, adminID, config.AuditAdChange, ad.ID, map[string]interface{}{
			"op":     "create",
			"reward": ad.RewardAmount.String(),
		}, at)
	})
	if err != nil {
		return nil, err
	}
	return ad, nil
}

// UpdateAd replaces the editable fields of an ad. Existing ledger entries
// keep the amounts they were credited with.
func (r *Reconciler) UpdateAd(ctx context.Context, adminID, id string, in models.AdInput) (*models.Ad, error) {
	in, err := ValidateAd(in)
	if err != nil {
		return nil, err
	}

	_, at := r.clock()
	var ad *models.Ad

	err = r.db.WithTx(ctx, func(tx *store.Tx) error {
		if err := requireAdmin(ctx, tx, adminID); err != nil {
			return err
		}
		existing, err := tx.GetAd(ctx, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return config.NewNotFoundError(config.ErrorAdNotFound, "ad %s not found", id)
		}

		ad = adFromInput(id, in, existing.CreatedAt, at)
		if _, err := tx.UpdateAd(ctx, ad); err != nil {
			return err
		}
		return audit(ctx, tx, adminID, config.AuditAdChange, id, map[string]interface{}{
			"op":     "update",
			"reward": ad.RewardAmount.String(),
		}, at)
	})
	if err != nil {
		return nil, err
	}
	return ad, nil
}

// SetAdActive shows or hides an ad. Inactive ads stop earning immediately.
func (r *Reconciler) SetAdActive(ctx context.Context, adminID, id string, active bool) error {
	_, at := r.clock()
	return r.db.WithTx(ctx, func(tx *store.Tx) error {
		if err := requireAdmin(ctx, tx, adminID); err != nil {
			return err
		}
		ok, err := tx.SetAdActive(ctx, id, active, at)
		if err != nil {
			return err
		}
		if !ok {
			return config.NewNotFoundError(config.ErrorAdNotFound, "ad %s not found", id)
		}
		return audit(ctx, tx, adminID, config.AuditAdChange, id, map[string]interface{}{
			"op":     "set_active",
			"active": active,
		}, at)
	})
}

// DeleteAd removes an ad from the inventory. Ledger entries keep its id.
func (r *Reconciler) DeleteAd(ctx context.Context, adminID, id string) error {
	_, at := r.clock()
	return r.db.WithTx(ctx, func(tx *store.Tx) error {
		if err := requireAdmin(ctx, tx, adminID); err != nil {
			return err
		}
		ok, err := tx.DeleteAd(ctx, id)
		if err != nil {
			return err
		}
		if !ok {
			return config.NewNotFoundError(config.ErrorAdNotFound, "ad %s not found", id)
		}
		return audit(ctx, tx, adminID, config.AuditAdChange, id, map[string]interface{}{"op": "delete"}, at)
	})
}

// ValidateSetting checks one settings value. Free-text keys accept anything.
func ValidateSetting(key, value string) error {
	if !store.IsKnownSetting(key) {
		return config.NewValidationError(config.ErrorInvalidSetting, "unknown setting %q", key)
	}

	switch key {
	case config.SettingMinWithdrawal:
		d, err := decimal.NewFromString(value)
		if err != nil || !d.IsPositive() {
			return config.NewValidationError(config.ErrorInvalidSetting, "%s must be a positive amount", key)
		}
	case config.SettingRevenueSharePercent:
		d, err := decimal.NewFromString(value)
		if err != nil || d.IsNegative() || d.GreaterThan(decimal.NewFromInt(100)) {
			return config.NewValidationError(config.ErrorInvalidSetting, "%s must be 0-100", key)
		}
	case config.SettingExternalAdReward:
		d, err := decimal.NewFromString(value)
		if err != nil || d.IsNegative() || d.GreaterThan(decimal.NewFromInt(config.MaxAdReward)) {
			return config.NewValidationError(config.ErrorInvalidSetting, "%s must be 0-%d", key, config.MaxAdReward)
		}
	case config.SettingExternalAdDuration:
		n, err := strconv.Atoi(value)
		if err != nil || n < config.MinAdDurationSeconds || n > config.MaxAdDurationSeconds {
			return config.NewValidationError(config.ErrorInvalidSetting,
				"%s must be %d-%d seconds", key, config.MinAdDurationSeconds, config.MaxAdDurationSeconds)
		}
	}
	return nil
}

// UpdateSettings validates every value first and then writes them together.
func (r *Reconciler) UpdateSettings(ctx context.Context, adminID string, values map[string]string) error {
	if len(values) == 0 {
		return config.NewValidationError(config.ErrorInvalidSetting, "no settings given")
	}
	keys := make([]string, 0, len(values))
	for k, v := range values {
		if err := ValidateSetting(k, v); err != nil {
			return err
		}
		keys = append(keys, k)
	}
	slices.Sort(keys)

	_, at := r.clock()
	err := r.db.WithTx(ctx, func(tx *store.Tx) error {
		if err := requireAdmin(ctx, tx, adminID); err != nil {
			return err
		}
		for _, k := range keys {
			if err := tx.SetSetting(ctx, k, values[k], at); err != nil {
				return err
			}
		}
		return audit(ctx, tx, adminID, config.AuditSettingsChange, strings.Join(keys, ","), nil, at)
	})
	if err != nil {
		return err
	}

	slog.Info("settings updated", "adminID", adminID, "keys", keys)
	return nil
}

// PublicSettings returns the settings any visitor may read.
func (r *Reconciler) PublicSettings(ctx context.Context) (map[string]string, error) {
	out := make(map[string]string, 4)
	for _, key := range []string{
		config.SettingMinWithdrawal,
		config.SettingRevenueSharePercent,
		config.SettingLandingText,
		config.SettingHowItWorks,
	} {
		v, err := r.db.GetSetting(ctx, key)
		if err != nil {
			return nil, err
		}
		out[key] = v
	}
	return out, nil
}

// Placement returns the operator markup for a named page slot. The value is
// opaque; the frontend renders it inside its sandboxed region.
func (r *Reconciler) Placement(ctx context.Context, slot string) (string, error) {
	key, ok := config.PlacementSlots[slot]
	if !ok {
		return "", config.NewNotFoundError(config.ErrorNotFound, "unknown placement slot %q", slot)
	}
	return r.db.GetSetting(ctx, key)
}
