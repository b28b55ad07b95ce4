package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kirito3009/ad-time-cash/internal/config"
	"github.com/kirito3009/ad-time-cash/internal/earnings"
	"github.com/kirito3009/ad-time-cash/internal/models"
	"github.com/kirito3009/ad-time-cash/internal/store"
	"github.com/kirito3009/ad-time-cash/internal/streak"
)

// watchTarget is the server-held metadata a watch event is priced against.
type watchTarget struct {
	adID      *string
	duration  int
	maxReward decimal.Decimal
}

// RecordWatchEvent credits one finished session. The earned amount is always
// recomputed from the stored ad; the submission only contributes elapsed
// time. An empty AdID is an earning session priced from app settings.
// WatchTimeSeconds must be positive; a zero-second session has nothing to
// credit and is rejected rather than recorded.
//
// A submission carrying a SessionID that is already in the ledger is not
// credited again; the original entry is returned with Duplicate set.
//
// The ledger insert, the aggregate update, the streak advance and the rate
// limit bookkeeping commit together or not at all.
func (r *Reconciler) RecordWatchEvent(ctx context.Context, sub models.WatchSubmission) (*models.WatchResult, error) {
	if sub.UserID == "" {
		return nil, config.NewValidationError(config.ErrorInvalidRequest, "user id is required")
	}
	if sub.WatchTimeSeconds <= 0 {
		return nil, config.NewValidationError(config.ErrorWatchTimeOutOfRange,
			"watch_time must be a positive number of seconds, got %d", sub.WatchTimeSeconds)
	}
	if sub.SessionID != "" {
		if _, err := uuid.Parse(sub.SessionID); err != nil {
			return nil, config.NewValidationError(config.ErrorInvalidSession, "session_id must be a UUID")
		}
	}

	unlock := r.lockUser(sub.UserID)
	defer unlock()

	now, at := r.clock()
	var result *models.WatchResult

	err := r.db.WithTx(ctx, func(tx *store.Tx) error {
		if sub.SessionID != "" {
			prior, err := tx.GetWatchEventBySession(ctx, sub.SessionID)
			if err != nil {
				return err
			}
			if prior != nil {
				result, err = recordedResult(ctx, tx, sub.UserID, prior)
				return err
			}
		}

		target, err := loadWatchTarget(ctx, tx, sub.AdID)
		if err != nil {
			return err
		}

		watchTime, err := r.boundWatchTime(sub.WatchTimeSeconds, target.duration)
		if err != nil {
			return err
		}
		completed := earnings.Completed(watchTime, target.duration)
		if sub.Completed && !completed {
			return config.NewValidationError(config.ErrorCompletionMismatch,
				"completed reported with %d of %d seconds watched", watchTime, target.duration)
		}

		if err := checkRate(ctx, tx, sub.UserID, config.ActionWatchEvent, now,
			rateWindow{span: config.RateWindowMinute, limit: r.limits.WatchPerMinute},
			rateWindow{span: config.RateWindowDay, limit: r.limits.WatchPerDay},
		); err != nil {
			return err
		}

		profile, err := tx.GetOrCreateProfile(ctx, sub.UserID, "", at)
		if err != nil {
			return err
		}

		earned := earnings.Reward(watchTime, target.duration, target.maxReward)
		event := &models.WatchEvent{
			ID:               uuid.New().String(),
			UserID:           sub.UserID,
			AdID:             target.adID,
			WatchTimeSeconds: watchTime,
			EarnedAmount:     earned,
			Completed:        completed,
			CreatedAt:        at,
		}
		if sub.SessionID != "" {
			sessionID := sub.SessionID
			event.SessionID = &sessionID
		}
		if err := tx.InsertWatchEvent(ctx, event); err != nil {
			return err
		}

		total, err := tx.ApplyWatch(ctx, sub.UserID, earned, watchTime, completed, at)
		if err != nil {
			return err
		}

		st := streak.State{
			CurrentStreak:  profile.CurrentStreak,
			LongestStreak:  profile.LongestStreak,
			LastStreakDate: profile.LastStreakDate,
		}
		next, changed := streak.Advance(st, streak.Today(now, r.loc))
		if changed {
			if err := tx.SaveStreak(ctx, sub.UserID, next, at); err != nil {
				return err
			}
		}

		if err := tx.RecordAction(ctx, sub.UserID, config.ActionWatchEvent, at); err != nil {
			return err
		}

		result = &models.WatchResult{
			Accepted:         true,
			EventID:          event.ID,
			WatchTimeSeconds: watchTime,
			EarnedAmount:     earned,
			Completed:        completed,
			NewBalance:       total,
			CurrentStreak:    next.CurrentStreak,
		}
		return nil
	})
	if err != nil {
		if config.IsRejection(err) {
			slog.Info("watch event rejected",
				"userID", sub.UserID,
				"adID", sub.AdID,
				"watchTime", sub.WatchTimeSeconds,
				"reason", err,
			)
		}
		return nil, err
	}

	if result.Duplicate {
		slog.Info("watch session already recorded",
			"userID", sub.UserID,
			"sessionID", sub.SessionID,
			"eventID", result.EventID,
		)
		return result, nil
	}

	slog.Info("watch event credited",
		"userID", sub.UserID,
		"adID", sub.AdID,
		"sessionID", sub.SessionID,
		"reported", sub.WatchTimeSeconds,
		"watchTime", result.WatchTimeSeconds,
		"earned", result.EarnedAmount.String(),
		"completed", result.Completed,
		"currentStreak", result.CurrentStreak,
	)
	return result, nil
}

// recordedResult rebuilds the response for a session that is already in the
// ledger. Balance and streak are current, not as of the original entry.
func recordedResult(ctx context.Context, tx *store.Tx, userID string, prior *models.WatchEvent) (*models.WatchResult, error) {
	if prior.UserID != userID {
		return nil, config.NewStateConflictError(config.ErrorDuplicateSession,
			"session %s was recorded for another user", *prior.SessionID)
	}
	profile, err := tx.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, fmt.Errorf("profile %s missing for recorded event %s", userID, prior.ID)
	}
	return &models.WatchResult{
		Accepted:         true,
		EventID:          prior.ID,
		WatchTimeSeconds: prior.WatchTimeSeconds,
		EarnedAmount:     prior.EarnedAmount,
		Completed:        prior.Completed,
		NewBalance:       profile.TotalEarnings,
		CurrentStreak:    profile.CurrentStreak,
		Duplicate:        true,
	}, nil
}

// boundWatchTime accepts reports up to the ad duration plus the grace
// allowance and clamps them to the duration. Anything longer is malformed.
// Clamped reports stay visible in the credited log line.
func (r *Reconciler) boundWatchTime(reported, duration int) (int, error) {
	limit := duration + r.limits.WatchTimeGraceSeconds
	if reported > limit {
		return 0, config.NewValidationError(config.ErrorWatchTimeOutOfRange,
			"watch_time %d exceeds the %d second ad (allowed up to %d)", reported, duration, limit)
	}
	if reported > duration {
		return duration, nil
	}
	return reported, nil
}

// loadWatchTarget resolves what the session is priced against.
func loadWatchTarget(ctx context.Context, tx *store.Tx, adID string) (watchTarget, error) {
	if adID == "" {
		return earningSessionTarget(ctx, tx)
	}

	ad, err := tx.GetAd(ctx, adID)
	if err != nil {
		return watchTarget{}, err
	}
	if ad == nil {
		return watchTarget{}, config.NewNotFoundError(config.ErrorAdNotFound, "ad %s not found", adID)
	}
	if !ad.IsActive {
		return watchTarget{}, config.NewStateConflictError(config.ErrorAdInactive, "ad %s is not active", adID)
	}

	id := ad.ID
	return watchTarget{adID: &id, duration: ad.DurationSeconds, maxReward: ad.RewardAmount}, nil
}

func earningSessionTarget(ctx context.Context, tx *store.Tx) (watchTarget, error) {
	rewardStr, err := tx.GetSetting(ctx, config.SettingExternalAdReward)
	if err != nil {
		return watchTarget{}, err
	}
	durationStr, err := tx.GetSetting(ctx, config.SettingExternalAdDuration)
	if err != nil {
		return watchTarget{}, err
	}

	reward, err := decimal.NewFromString(rewardStr)
	if err != nil {
		return watchTarget{}, fmt.Errorf("setting %s=%q: %w", config.SettingExternalAdReward, rewardStr, err)
	}
	duration, err := strconv.Atoi(durationStr)
	if err != nil || duration <= 0 {
		return watchTarget{}, fmt.Errorf("setting %s=%q is not a positive integer", config.SettingExternalAdDuration, durationStr)
	}
	return watchTarget{duration: duration, maxReward: reward}, nil
}

// WatchHistory returns a user's most recent ledger entries.
func (r *Reconciler) WatchHistory(ctx context.Context, userID string, limit int) ([]models.WatchEvent, error) {
	if limit <= 0 {
		limit = config.DefaultWatchHistoryPage
	}
	if limit > config.MaxWatchHistoryPage {
		limit = config.MaxWatchHistoryPage
	}
	return r.db.ListWatchEvents(ctx, userID, limit)
}
