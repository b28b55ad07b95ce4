package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kirito3009/ad-time-cash/internal/config"
	"github.com/kirito3009/ad-time-cash/internal/models"
	"github.com/kirito3009/ad-time-cash/internal/store"
	"github.com/kirito3009/ad-time-cash/internal/streak"
)

// WalletSummary returns the balance view of a user. Users without a profile
// read as all zeros.
func (r *Reconciler) WalletSummary(ctx context.Context, userID string) (*models.WalletSummary, error) {
	now, _ := r.clock()
	var summary *models.WalletSummary

	err := r.db.WithTx(ctx, func(tx *store.Tx) error {
		profile, err := tx.GetProfile(ctx, userID)
		if err != nil {
			return err
		}
		total := decimal.Zero
		if profile != nil {
			total = profile.TotalEarnings
		}

		pending, err := tx.SumWithdrawals(ctx, userID, models.WithdrawalPending)
		if err != nil {
			return err
		}
		approved, err := tx.SumWithdrawals(ctx, userID, models.WithdrawalApproved)
		if err != nil {
			return err
		}

		today, err := tx.SumSince(ctx, userID, store.FormatTime(startOfDay(now, r.loc)))
		if err != nil {
			return err
		}

		minStr, err := tx.GetSetting(ctx, config.SettingMinWithdrawal)
		if err != nil {
			return err
		}
		minimum, err := decimal.NewFromString(minStr)
		if err != nil {
			return err
		}

		summary = &models.WalletSummary{
			TotalEarnings:    total,
			AvailableBalance: total.Sub(pending).Sub(approved),
			PendingAmount:    pending,
			ApprovedAmount:   approved,
			TodayEarnings:    today.Earnings,
			TodayWatchTime:   today.WatchTime,
			MinWithdrawal:    minimum,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}

// Streak returns the streak view of a user as of today in the platform calendar.
func (r *Reconciler) Streak(ctx context.Context, userID string) (*models.StreakSummary, error) {
	profile, err := r.db.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	var st streak.State
	if profile != nil {
		st = streak.State{
			CurrentStreak:  profile.CurrentStreak,
			LongestStreak:  profile.LongestStreak,
			LastStreakDate: profile.LastStreakDate,
		}
	}

	now, _ := r.clock()
	today := streak.Today(now, r.loc)
	current := streak.Current(st, today)

	summary := &models.StreakSummary{
		CurrentStreak:  current,
		LongestStreak:  st.LongestStreak,
		LastStreakDate: st.LastStreakDate,
		ActiveToday:    streak.ActiveToday(st, today),
	}
	if next := streak.NextMilestone(current); next > 0 {
		summary.NextMilestone = next
		summary.DaysToNext = next - current
		if bonus, ok := streak.MilestoneBonus(next); ok {
			summary.NextBonus = &bonus
		}
	}
	return summary, nil
}

// startOfDay returns midnight of now's calendar day in loc.
func startOfDay(now time.Time, loc *time.Location) time.Time {
	y, m, d := now.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
