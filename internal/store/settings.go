package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/kirito3009/ad-time-cash/internal/config"
)

// defaultSettings are returned for keys an admin has not set yet.
var defaultSettings = map[string]string{
	config.SettingMinWithdrawal:       "100",
	config.SettingRevenueSharePercent: "70",
	config.SettingLandingText:         "Watch ads. Earn money. Withdraw anytime.",
	config.SettingHowItWorks:          "",
	config.SettingGlobalHeadScript:    "",
	config.SettingGlobalBodyScript:    "",
	config.SettingHomePageScript:      "",
	config.SettingDashboardPageScript: "",
	config.SettingWatchPageScript:     "",
	config.SettingExternalAdReward:    "0.05",
	config.SettingExternalAdDuration:  "30",
}

// IsKnownSetting reports whether key is an editable setting.
func IsKnownSetting(key string) bool {
	_, ok := defaultSettings[key]
	return ok
}

// GetSetting retrieves a single setting value by key, returning the default if not set.
func (s *queries) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.q.QueryRowContext(ctx, "SELECT value FROM app_settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		if defVal, ok := defaultSettings[key]; ok {
			return defVal, nil
		}
		return "", fmt.Errorf("get setting %q: %w", key, err)
	}
	if err != nil {
		return "", fmt.Errorf("get setting %q: %w", key, err)
	}
	return value, nil
}

// SetSetting upserts a setting key-value pair.
func (s *queries) SetSetting(ctx context.Context, key, value, now string) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO app_settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, now,
	)
	if err != nil {
		return fmt.Errorf("set setting %q: %w", key, err)
	}

	slog.Info("setting updated", "key", key)
	return nil
}

// GetAllSettings retrieves all settings, filling in defaults for missing keys.
func (s *queries) GetAllSettings(ctx context.Context) (map[string]string, error) {
	result := make(map[string]string, len(defaultSettings))
	for k, v := range defaultSettings {
		result[k] = v
	}

	rows, err := s.q.QueryContext(ctx, "SELECT key, value FROM app_settings")
	if err != nil {
		return nil, fmt.Errorf("query settings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		result[k] = v
	}
	return result, rows.Err()
}
