// Package jobs runs the periodic maintenance work: pruning rate limit
// bookkeeping and checking stored aggregates against the ledger.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/kirito3009/ad-time-cash/internal/config"
	"github.com/kirito3009/ad-time-cash/internal/ledger"
	"github.com/kirito3009/ad-time-cash/internal/store"
)

// Sweeper drops idle in-memory limiter state.
type Sweeper interface {
	Sweep(idle time.Duration) int
}

// Scheduler owns the cron runner and the jobs registered on it.
type Scheduler struct {
	cron    *cron.Cron
	db      *store.DB
	ledger  *ledger.Reconciler
	sweeper Sweeper
	now     func() time.Time
}

// New registers the maintenance and drift check jobs. sweeper may be nil
// when the edge limiter keeps no local state.
func New(db *store.DB, l *ledger.Reconciler, sweeper Sweeper, cfg *config.Config) (*Scheduler, error) {
	logger := slogAdapter{}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(cfg.Location()),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		db:      db,
		ledger:  l,
		sweeper: sweeper,
		now:     time.Now,
	}

	if _, err := s.cron.AddFunc(cfg.MaintenanceSchedule, s.job("maintenance", s.runMaintenance)); err != nil {
		return nil, fmt.Errorf("failed to schedule maintenance %q: %w", cfg.MaintenanceSchedule, err)
	}
	if _, err := s.cron.AddFunc(cfg.DriftCheckSchedule, s.job("driftCheck", s.runDriftCheck)); err != nil {
		return nil, fmt.Errorf("failed to schedule drift check %q: %w", cfg.DriftCheckSchedule, err)
	}

	slog.Info("job scheduler initialized",
		"maintenance", cfg.MaintenanceSchedule,
		"driftCheck", cfg.DriftCheckSchedule,
		"timezone", cfg.Timezone,
	)
	return s, nil
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	slog.Info("job scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop stops scheduling and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		slog.Info("job scheduler stopped")
	case <-ctx.Done():
		slog.Warn("job scheduler stop timed out with jobs still running")
	}
}

// job wraps fn with a timeout and records failures in system_errors.
func (s *Scheduler) job(name string, fn func(context.Context) error) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), config.JobTimeout)
		defer cancel()

		start := time.Now()
		if err := fn(ctx); err != nil {
			slog.Error("job failed", "job", name, "duration", time.Since(start).String(), "error", err)
			s.recordError(ctx, config.ErrorSeverityError, config.ErrorCategoryJobs,
				fmt.Sprintf("job %s failed", name), map[string]interface{}{"error": err.Error()})
			return
		}
		slog.Info("job completed", "job", name, "duration", time.Since(start).String())
	}
}

func (s *Scheduler) runMaintenance(ctx context.Context) error {
	_, err := s.PruneRateLimits(ctx)
	return err
}

func (s *Scheduler) runDriftCheck(ctx context.Context) error {
	_, err := s.CheckDrift(ctx)
	return err
}

// PruneRateLimits deletes rate limit rows past retention and sweeps idle
// edge limiter buckets. Returns the number of rows deleted.
func (s *Scheduler) PruneRateLimits(ctx context.Context) (int64, error) {
	cutoff := store.FormatTime(s.now().Add(-config.RateRetention))
	removed, err := s.db.PruneActions(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	if s.sweeper != nil {
		if swept := s.sweeper.Sweep(config.EdgeLimiterIdle); swept > 0 {
			slog.Debug("edge limiter buckets swept", "swept", swept)
		}
	}
	return removed, nil
}

// CheckDrift records one ledger error for every profile whose stored totals
// differ from a replay of its watch history. Aggregates are left as they
// are; repairing them is an explicit admin rebuild.
func (s *Scheduler) CheckDrift(ctx context.Context) (int, error) {
	drift, err := s.ledger.CheckDrift(ctx)
	if err != nil {
		return 0, err
	}

	for _, d := range drift {
		slog.Warn("profile aggregate drift detected",
			"userID", d.UserID,
			"storedEarnings", d.Stored.Earnings.String(),
			"ledgerEarnings", d.Ledger.Earnings.String(),
		)
		s.recordError(ctx, config.ErrorSeverityCritical, config.ErrorCategoryLedger,
			fmt.Sprintf("%v: %s", config.ErrProfileDrift, d.UserID), d)
	}
	return len(drift), nil
}

func (s *Scheduler) recordError(ctx context.Context, severity, category, message string, details interface{}) {
	raw, err := json.Marshal(details)
	if err != nil {
		raw = []byte("{}")
	}
	if _, err := s.db.InsertError(ctx, severity, category, message, string(raw), store.FormatTime(s.now())); err != nil {
		slog.Error("failed to record system error", "category", category, "error", err)
	}
}

// slogAdapter routes cron's own logging through slog.
type slogAdapter struct{}

func (slogAdapter) Info(msg string, keysAndValues ...interface{}) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (slogAdapter) Error(err error, msg string, keysAndValues ...interface{}) {
	slog.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
