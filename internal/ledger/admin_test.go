package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/kirito3009/ad-time-cash/internal/config"
	"github.com/kirito3009/ad-time-cash/internal/models"
)

func validAdInput() models.AdInput {
	return models.AdInput{
		Title:           "  Spring sale  ",
		AdType:          "Video",
		VideoURL:        "https://cdn.example.com/sale.mp4",
		DurationSeconds: 30,
		RewardAmount:    dec("0.01"),
		IsActive:        true,
		Placements:      []string{"home", "watch_page", "home"},
		Priority:        5,
	}
}

func TestValidateAd(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*models.AdInput)
		wantErr bool
	}{
		{"valid", func(*models.AdInput) {}, false},
		{"empty title", func(in *models.AdInput) { in.Title = " " }, true},
		{"unknown type", func(in *models.AdInput) { in.AdType = "hologram" }, true},
		{"video without url", func(in *models.AdInput) { in.VideoURL = "" }, true},
		{"banner without image", func(in *models.AdInput) { in.AdType = "banner" }, true},
		{"link with url", func(in *models.AdInput) { in.AdType = "link"; in.LinkURL = "https://example.com" }, false},
		{"zero duration", func(in *models.AdInput) { in.DurationSeconds = 0 }, true},
		{"duration too long", func(in *models.AdInput) { in.DurationSeconds = config.MaxAdDurationSeconds + 1 }, true},
		{"negative reward", func(in *models.AdInput) { in.RewardAmount = dec("-0.01") }, true},
		{"reward too large", func(in *models.AdInput) { in.RewardAmount = dec("1000.01") }, true},
		{"free ad", func(in *models.AdInput) { in.RewardAmount = dec("0") }, false},
		{"no placements", func(in *models.AdInput) { in.Placements = nil }, true},
		{"unknown placement", func(in *models.AdInput) { in.Placements = []string{"footer"} }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validAdInput()
			tt.mutate(&in)
			_, err := ValidateAd(in)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAd() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !isValidation(config.ErrorInvalidAd)(err) {
				t.Errorf("error = %v, want ValidationError %s", err, config.ErrorInvalidAd)
			}
		})
	}
}

func TestValidateAd_Normalizes(t *testing.T) {
	out, err := ValidateAd(validAdInput())
	if err != nil {
		t.Fatalf("ValidateAd() error = %v", err)
	}
	if out.Title != "Spring sale" || out.AdType != config.AdTypeVideo {
		t.Errorf("title/type = %q/%q", out.Title, out.AdType)
	}
	if len(out.Placements) != 2 {
		t.Errorf("Placements = %v, want de-duplicated", out.Placements)
	}
}

func TestAdLifecycle(t *testing.T) {
	f := newFixture(t, defaultTestLimits)
	ctx := context.Background()

	var ae *config.AuthorizationError
	if _, err := f.r.CreateAd(ctx, testUser, validAdInput()); !errors.As(err, &ae) {
		t.Fatalf("non-admin create error = %v, want AuthorizationError", err)
	}

	ad, err := f.r.CreateAd(ctx, testAdmin, validAdInput())
	if err != nil {
		t.Fatalf("CreateAd() error = %v", err)
	}

	in := validAdInput()
	in.RewardAmount = dec("0.02")
	updated, err := f.r.UpdateAd(ctx, testAdmin, ad.ID, in)
	if err != nil {
		t.Fatalf("UpdateAd() error = %v", err)
	}
	if updated.CreatedAt != ad.CreatedAt {
		t.Errorf("CreatedAt changed from %s to %s", ad.CreatedAt, updated.CreatedAt)
	}
	if res := f.watch(t, testUser, ad.ID, 30, true); !res.EarnedAmount.Equal(dec("0.02")) {
		t.Errorf("earned = %s, want the updated 0.02", res.EarnedAmount)
	}

	if err := f.r.SetAdActive(ctx, testAdmin, ad.ID, false); err != nil {
		t.Fatalf("SetAdActive() error = %v", err)
	}
	_, err = f.r.RecordWatchEvent(ctx, models.WatchSubmission{UserID: "user-2", AdID: ad.ID, WatchTimeSeconds: 10})
	var se *config.StateConflictError
	if !errors.As(err, &se) {
		t.Errorf("watch of deactivated ad error = %v, want StateConflictError", err)
	}

	if err := f.r.DeleteAd(ctx, testAdmin, ad.ID); err != nil {
		t.Fatalf("DeleteAd() error = %v", err)
	}
	var ne *config.NotFoundError
	if err := f.r.DeleteAd(ctx, testAdmin, ad.ID); !errors.As(err, &ne) {
		t.Errorf("second delete error = %v, want NotFoundError", err)
	}
	if _, err := f.r.UpdateAd(ctx, testAdmin, ad.ID, in); !errors.As(err, &ne) {
		t.Errorf("update deleted ad error = %v, want NotFoundError", err)
	}

	// The ledger keeps the deleted ad's id.
	events, _ := f.db.ListWatchEvents(ctx, testUser, 10)
	if len(events) != 1 || events[0].AdID == nil || *events[0].AdID != ad.ID {
		t.Errorf("ledger entry lost its ad id: %+v", events)
	}

	entries, total, _ := f.db.ListAudit(ctx, models.Pagination{Page: 1, PageSize: 20})
	if total != 4 || len(entries) != 4 {
		t.Errorf("audit entries = %d, want 4 (create, update, deactivate, delete)", total)
	}
}

func TestValidateSetting(t *testing.T) {
	tests := []struct {
		key, value string
		wantErr    bool
	}{
		{config.SettingMinWithdrawal, "50", false},
		{config.SettingMinWithdrawal, "0", true},
		{config.SettingMinWithdrawal, "abc", true},
		{config.SettingRevenueSharePercent, "100", false},
		{config.SettingRevenueSharePercent, "101", true},
		{config.SettingExternalAdReward, "0.10", false},
		{config.SettingExternalAdReward, "-1", true},
		{config.SettingExternalAdDuration, "45", false},
		{config.SettingExternalAdDuration, "0", true},
		{config.SettingLandingText, "<b>anything</b>", false},
		{"not_a_setting", "x", true},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			err := ValidateSetting(tt.key, tt.value)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSetting() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestUpdateSettings(t *testing.T) {
	f := newFixture(t, defaultTestLimits)
	ctx := context.Background()

	err := f.r.UpdateSettings(ctx, testAdmin, map[string]string{
		config.SettingExternalAdReward:   "0.10",
		config.SettingExternalAdDuration: "20",
		config.SettingHomePageScript:     "<div id=slot></div>",
	})
	if err != nil {
		t.Fatalf("UpdateSettings() error = %v", err)
	}

	if res := f.watch(t, testUser, "", 10, false); !res.EarnedAmount.Equal(dec("0.05")) {
		t.Errorf("earning session earned %s, want 0.05 from the new settings", res.EarnedAmount)
	}

	markup, err := f.r.Placement(ctx, "home")
	if err != nil || markup != "<div id=slot></div>" {
		t.Errorf("Placement(home) = %q, %v", markup, err)
	}
	var ne *config.NotFoundError
	if _, err := f.r.Placement(ctx, "footer"); !errors.As(err, &ne) {
		t.Errorf("unknown slot error = %v, want NotFoundError", err)
	}

	// One bad value rejects the whole batch.
	err = f.r.UpdateSettings(ctx, testAdmin, map[string]string{
		config.SettingLandingText:   "new text",
		config.SettingMinWithdrawal: "-3",
	})
	if !isValidation(config.ErrorInvalidSetting)(err) {
		t.Fatalf("error = %v, want ValidationError", err)
	}
	public, err := f.r.PublicSettings(ctx)
	if err != nil {
		t.Fatalf("PublicSettings() error = %v", err)
	}
	if public[config.SettingLandingText] == "new text" || public[config.SettingMinWithdrawal] != "100" {
		t.Errorf("public settings = %v", public)
	}

	var ae *config.AuthorizationError
	if err := f.r.UpdateSettings(ctx, testUser, map[string]string{config.SettingLandingText: "x"}); !errors.As(err, &ae) {
		t.Errorf("non-admin error = %v, want AuthorizationError", err)
	}
}
