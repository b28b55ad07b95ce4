package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kirito3009/ad-time-cash/internal/config"
	"github.com/kirito3009/ad-time-cash/internal/models"
)

func TestWalletSummary(t *testing.T) {
	f := newFixture(t, defaultTestLimits)
	f.setMinWithdrawal(t, "10")
	f.seedAd(t, "ad-30", 30, "0.01", true)
	ctx := context.Background()

	// Yesterday's earnings count toward the total but not toward today.
	f.clock.Advance(-13 * time.Hour)
	f.fundUser(t, testUser, "50")
	f.clock.Advance(13 * time.Hour)
	f.watch(t, testUser, "ad-30", 15, false)

	approved, err := withdraw(f, testUser, "20")
	if err != nil {
		t.Fatalf("withdraw error = %v", err)
	}
	if _, err := f.r.SetWithdrawalStatus(ctx, testAdmin, approved.WithdrawalID, models.WithdrawalApproved, nil); err != nil {
		t.Fatalf("approve error = %v", err)
	}
	if _, err := withdraw(f, testUser, "10"); err != nil {
		t.Fatalf("withdraw error = %v", err)
	}

	s, err := f.r.WalletSummary(ctx, testUser)
	if err != nil {
		t.Fatalf("WalletSummary() error = %v", err)
	}

	checks := []struct {
		name      string
		got, want string
	}{
		{"TotalEarnings", s.TotalEarnings.String(), "50.005"},
		{"PendingAmount", s.PendingAmount.String(), "10"},
		{"ApprovedAmount", s.ApprovedAmount.String(), "20"},
		{"AvailableBalance", s.AvailableBalance.String(), "20.005"},
		{"TodayEarnings", s.TodayEarnings.String(), "0.005"},
		{"MinWithdrawal", s.MinWithdrawal.String(), "10"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %s, want %s", c.name, c.got, c.want)
		}
	}
	if s.TodayWatchTime != 15 {
		t.Errorf("TodayWatchTime = %d, want 15", s.TodayWatchTime)
	}
}

func TestWalletSummary_UnknownUser(t *testing.T) {
	f := newFixture(t, defaultTestLimits)

	s, err := f.r.WalletSummary(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("WalletSummary() error = %v", err)
	}
	if !s.TotalEarnings.IsZero() || !s.AvailableBalance.IsZero() {
		t.Errorf("summary = %+v, want zeros", s)
	}
}

func TestStreakSummary(t *testing.T) {
	f := newFixture(t, defaultTestLimits)
	f.seedAd(t, "ad-30", 30, "0.01", true)
	ctx := context.Background()

	f.watch(t, testUser, "ad-30", 10, false)

	s, err := f.r.Streak(ctx, testUser)
	if err != nil {
		t.Fatalf("Streak() error = %v", err)
	}
	if s.CurrentStreak != 1 || !s.ActiveToday || s.NextMilestone != 7 || s.DaysToNext != 6 {
		t.Errorf("summary = %+v", s)
	}
	if s.NextBonus == nil || !s.NextBonus.Equal(dec("0.5")) {
		t.Errorf("NextBonus = %v, want 0.5", s.NextBonus)
	}

	// Two days later the streak is broken but the record stays.
	f.clock.Advance(48 * time.Hour)
	s, _ = f.r.Streak(ctx, testUser)
	if s.CurrentStreak != 0 || s.ActiveToday || s.LongestStreak != 1 {
		t.Errorf("broken summary = %+v", s)
	}
}

func TestStartOfDay(t *testing.T) {
	kolkata := time.FixedZone("IST", 5*3600+1800)
	now := time.Date(2024, 3, 10, 20, 0, 0, 0, time.UTC) // 01:30 on the 11th in IST

	got := startOfDay(now, kolkata).UTC()
	want := time.Date(2024, 3, 10, 18, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("startOfDay() = %v, want %v", got, want)
	}
}

func TestRebuildAndCheckDrift(t *testing.T) {
	f := newFixture(t, defaultTestLimits)
	f.seedAd(t, "ad-30", 30, "0.01", true)
	ctx := context.Background()

	f.watch(t, testUser, "ad-30", 30, true)
	f.watch(t, "user-2", "ad-30", 15, false)

	if drift, err := f.r.CheckDrift(ctx); err != nil || len(drift) != 0 {
		t.Fatalf("CheckDrift() = %+v, %v; want none", drift, err)
	}

	corrupt := models.Totals{Earnings: dec("9"), WatchTime: 1, AdsWatched: 4}
	if err := f.db.ReplaceAggregate(ctx, testUser, corrupt, "2024-01-01T00:00:00.000000Z"); err != nil {
		t.Fatalf("ReplaceAggregate() error = %v", err)
	}

	drift, err := f.r.CheckDrift(ctx)
	if err != nil || len(drift) != 1 || drift[0].UserID != testUser {
		t.Fatalf("CheckDrift() = %+v, %v; want %s", drift, err, testUser)
	}
	if !drift[0].Ledger.Earnings.Equal(dec("0.01")) {
		t.Errorf("ledger earnings = %s, want 0.01", drift[0].Ledger.Earnings)
	}

	var ae *config.AuthorizationError
	if _, err := f.r.Rebuild(ctx, testUser, testUser); !errors.As(err, &ae) {
		t.Errorf("non-admin rebuild error = %v, want AuthorizationError", err)
	}

	report, err := f.r.Rebuild(ctx, testAdmin, testUser)
	if err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}
	if !report.Stored.Equal(corrupt) {
		t.Errorf("report.Stored = %+v, want the corrupt totals", report.Stored)
	}
	if p := f.profile(t, testUser); !p.Totals().Equal(report.Ledger) {
		t.Errorf("profile %+v not replaced with %+v", p.Totals(), report.Ledger)
	}

	if drift, _ := f.r.CheckDrift(ctx); len(drift) != 0 {
		t.Errorf("drift after rebuild = %+v", drift)
	}

	var ne *config.NotFoundError
	if _, err := f.r.Rebuild(ctx, testAdmin, "ghost"); !errors.As(err, &ne) {
		t.Errorf("unknown user error = %v, want NotFoundError", err)
	}
}

func TestRebuildAll(t *testing.T) {
	f := newFixture(t, defaultTestLimits)
	f.seedAd(t, "ad-30", 30, "0.01", true)
	ctx := context.Background()

	f.watch(t, testUser, "ad-30", 30, true)
	f.watch(t, "user-2", "ad-30", 30, true)
	if err := f.db.ReplaceAggregate(ctx, "user-2", models.Totals{}, "2024-01-01T00:00:00.000000Z"); err != nil {
		t.Fatalf("ReplaceAggregate() error = %v", err)
	}

	changed, err := f.r.RebuildAll(ctx, SystemActor)
	if err != nil || changed != 1 {
		t.Fatalf("RebuildAll() = %d, %v; want 1", changed, err)
	}
	if p := f.profile(t, "user-2"); p.AdsWatched != 1 {
		t.Errorf("user-2 AdsWatched = %d, want 1", p.AdsWatched)
	}
}
