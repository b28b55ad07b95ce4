package ledger

import (
	"context"
	"log/slog"

	"github.com/kirito3009/ad-time-cash/internal/config"
	"github.com/kirito3009/ad-time-cash/internal/models"
	"github.com/kirito3009/ad-time-cash/internal/store"
)

// SystemActor is the audit identity of scheduled and command-line repairs.
const SystemActor = "system"

// Rebuild replaces a user's aggregate with a fresh replay of the ledger and
// reports the stored and replayed totals. It takes the user's lock, so it
// never races a credit.
func (r *Reconciler) Rebuild(ctx context.Context, actorID, userID string) (*models.DriftReport, error) {
	unlock := r.lockUser(userID)
	defer unlock()

	_, at := r.clock()
	var report *models.DriftReport

	err := r.db.WithTx(ctx, func(tx *store.Tx) error {
		if actorID != SystemActor {
			if err := requireAdmin(ctx, tx, actorID); err != nil {
				return err
			}
		}

		replayed, err := tx.ReplayTotals(ctx, userID)
		if err != nil {
			return err
		}

		profile, err := tx.GetProfile(ctx, userID)
		if err != nil {
			return err
		}
		if profile == nil && replayed.AdsWatched == 0 && replayed.WatchTime == 0 {
			return config.NewNotFoundError(config.ErrorUserNotFound, "user %s not found", userID)
		}
		if profile == nil {
			if profile, err = tx.GetOrCreateProfile(ctx, userID, "", at); err != nil {
				return err
			}
		}

		report = &models.DriftReport{UserID: userID, Stored: profile.Totals(), Ledger: replayed}
		if report.Stored.Equal(replayed) {
			return nil
		}

		if err := tx.ReplaceAggregate(ctx, userID, replayed, at); err != nil {
			return err
		}
		return audit(ctx, tx, actorID, config.AuditRebuild, userID, map[string]interface{}{
			"storedEarnings": report.Stored.Earnings.String(),
			"ledgerEarnings": replayed.Earnings.String(),
		}, at)
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// RebuildAll replays every user's ledger and returns the number of profiles
// that changed.
func (r *Reconciler) RebuildAll(ctx context.Context, actorID string) (int, error) {
	ids, err := r.db.ListProfileIDs(ctx)
	if err != nil {
		return 0, err
	}

	changed := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return changed, err
		}
		report, err := r.Rebuild(ctx, actorID, id)
		if err != nil {
			return changed, err
		}
		if !report.Stored.Equal(report.Ledger) {
			changed++
		}
	}

	slog.Info("aggregate rebuild finished", "profiles", len(ids), "changed", changed)
	return changed, nil
}

// CheckDrift compares each stored aggregate with a ledger replay without
// changing anything.
func (r *Reconciler) CheckDrift(ctx context.Context) ([]models.DriftReport, error) {
	ids, err := r.db.ListProfileIDs(ctx)
	if err != nil {
		return nil, err
	}

	var drift []models.DriftReport
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return drift, err
		}

		report, err := r.driftFor(ctx, id)
		if err != nil {
			return drift, err
		}
		if !report.Stored.Equal(report.Ledger) {
			drift = append(drift, report)
		}
	}

	slog.Debug("drift check finished", "profiles", len(ids), "drifting", len(drift))
	return drift, nil
}

func (r *Reconciler) driftFor(ctx context.Context, userID string) (models.DriftReport, error) {
	unlock := r.lockUser(userID)
	defer unlock()

	report := models.DriftReport{UserID: userID}
	replayed, err := r.db.ReplayTotals(ctx, userID)
	if err != nil {
		return report, err
	}
	profile, err := r.db.GetProfile(ctx, userID)
	if err != nil {
		return report, err
	}

	report.Ledger = replayed
	if profile != nil {
		report.Stored = profile.Totals()
	}
	return report, nil
}
