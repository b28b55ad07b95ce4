package store

import (
	"context"
	"testing"

	"github.com/kirito3009/ad-time-cash/internal/config"
)

func TestGetSetting_Default(t *testing.T) {
	db := newTestDB(t)

	val, err := db.GetSetting(context.Background(), config.SettingMinWithdrawal)
	if err != nil {
		t.Fatalf("GetSetting() error = %v", err)
	}
	if val != "100" {
		t.Errorf("min_withdrawal = %q, want 100", val)
	}
}

func TestGetSetting_Unknown(t *testing.T) {
	db := newTestDB(t)

	if _, err := db.GetSetting(context.Background(), "no_such_key"); err == nil {
		t.Error("expected error for unknown key")
	}
	if IsKnownSetting("no_such_key") || !IsKnownSetting(config.SettingWatchPageScript) {
		t.Error("IsKnownSetting() mismatch")
	}
}

func TestSetSetting_Upsert(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if err := db.SetSetting(ctx, config.SettingMinWithdrawal, "250", ts(0)); err != nil {
		t.Fatalf("SetSetting() error = %v", err)
	}
	if err := db.SetSetting(ctx, config.SettingMinWithdrawal, "300", ts(1)); err != nil {
		t.Fatalf("SetSetting() second error = %v", err)
	}

	val, _ := db.GetSetting(ctx, config.SettingMinWithdrawal)
	if val != "300" {
		t.Errorf("min_withdrawal = %q, want 300", val)
	}

	all, err := db.GetAllSettings(ctx)
	if err != nil {
		t.Fatalf("GetAllSettings() error = %v", err)
	}
	if all[config.SettingMinWithdrawal] != "300" {
		t.Errorf("all[min_withdrawal] = %q", all[config.SettingMinWithdrawal])
	}
	if all[config.SettingExternalAdDuration] != "30" {
		t.Errorf("default external_ad_duration missing: %q", all[config.SettingExternalAdDuration])
	}
}
