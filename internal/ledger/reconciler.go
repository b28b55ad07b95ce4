// Package ledger is the trust boundary for money. It turns reported watch time
// into credited earnings, keeps the profile aggregate in step with the append
// only ledger, and guards withdrawals.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kirito3009/ad-time-cash/internal/config"
	"github.com/kirito3009/ad-time-cash/internal/models"
	"github.com/kirito3009/ad-time-cash/internal/store"
	"github.com/kirito3009/ad-time-cash/internal/vault"
)

// Limits are the per-user submission caps and the watch time tolerance.
type Limits struct {
	WatchPerMinute        int
	WatchPerDay           int
	WithdrawalsPerDay     int
	WatchTimeGraceSeconds int
}

// LimitsFromConfig copies the ledger limits out of cfg.
func LimitsFromConfig(cfg *config.Config) Limits {
	return Limits{
		WatchPerMinute:        cfg.WatchPerMinute,
		WatchPerDay:           cfg.WatchPerDay,
		WithdrawalsPerDay:     cfg.WithdrawalsPerDay,
		WatchTimeGraceSeconds: cfg.WatchTimeGraceSeconds,
	}
}

// Reconciler serializes every money-moving operation of one user behind a
// per-user lock and runs it in a single store transaction.
type Reconciler struct {
	db     *store.DB
	vault  *vault.Vault
	limits Limits
	loc    *time.Location
	now    func() time.Time

	mu    sync.Mutex
	users map[string]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

// New creates a Reconciler. loc is the platform calendar used for streak
// days and "today" totals.
func New(db *store.DB, v *vault.Vault, limits Limits, loc *time.Location) *Reconciler {
	if loc == nil {
		loc = time.UTC
	}
	r := &Reconciler{
		db:     db,
		vault:  v,
		limits: limits,
		loc:    loc,
		now:    time.Now,
		users:  make(map[string]*userLock),
	}

	slog.Info("ledger reconciler initialized",
		"watchPerMinute", limits.WatchPerMinute,
		"watchPerDay", limits.WatchPerDay,
		"withdrawalsPerDay", limits.WithdrawalsPerDay,
		"graceSeconds", limits.WatchTimeGraceSeconds,
		"timezone", loc.String(),
	)
	return r
}

// lockUser blocks until the caller holds userID's lock and returns the
// release func. Entries are dropped once nobody holds or waits on them.
func (r *Reconciler) lockUser(userID string) func() {
	r.mu.Lock()
	l, ok := r.users[userID]
	if !ok {
		l = &userLock{}
		r.users[userID] = l
	}
	l.refs++
	r.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		r.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(r.users, userID)
		}
		r.mu.Unlock()
	}
}

// clock returns the current instant in UTC and its stored form.
func (r *Reconciler) clock() (time.Time, string) {
	now := r.now().UTC()
	return now, store.FormatTime(now)
}

// rateWindow caps the number of accepted actions inside a rolling span.
type rateWindow struct {
	span  time.Duration
	limit int
}

// checkRate rejects when any window already holds its limit of accepted
// actions. The retry hint is when the oldest counted action leaves the window.
func checkRate(ctx context.Context, tx *store.Tx, userID, action string, now time.Time, windows ...rateWindow) error {
	for _, w := range windows {
		since := store.FormatTime(now.Add(-w.span))
		n, err := tx.CountActionsSince(ctx, userID, action, since)
		if err != nil {
			return err
		}
		if n < w.limit {
			continue
		}

		retryAfter := w.span
		oldest, err := tx.OldestActionSince(ctx, userID, action, since)
		if err != nil {
			return err
		}
		if oldest != "" {
			if t, err := store.ParseTime(oldest); err == nil {
				retryAfter = t.Add(w.span).Sub(now)
			}
		}
		if retryAfter < time.Second {
			retryAfter = time.Second
		}

		slog.Warn("ledger rate limit hit",
			"userID", userID,
			"action", action,
			"window", w.span,
			"count", n,
			"limit", w.limit,
			"retryAfter", retryAfter,
		)
		return &config.RateLimitError{Action: action, RetryAfter: retryAfter}
	}
	return nil
}

// requireAdmin fails with an AuthorizationError unless actorID holds the
// admin role.
func requireAdmin(ctx context.Context, tx *store.Tx, actorID string) error {
	if actorID == "" {
		return &config.AuthorizationError{Message: "admin identity required"}
	}
	ok, err := tx.HasRole(ctx, actorID, config.RoleAdmin)
	if err != nil {
		return err
	}
	if !ok {
		slog.Warn("admin operation denied", "actorID", actorID)
		return &config.AuthorizationError{Message: fmt.Sprintf("user %s is not an admin", actorID)}
	}
	return nil
}

// audit writes one audit_log row inside tx.
func audit(ctx context.Context, tx *store.Tx, actorID, action, targetID string, details map[string]interface{}, at string) error {
	entry := &models.AuditEntry{
		ActorID:   actorID,
		Action:    action,
		TargetID:  targetID,
		CreatedAt: at,
	}
	if len(details) > 0 {
		b, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("failed to encode audit details: %w", err)
		}
		entry.Details = string(b)
	}
	_, err := tx.InsertAudit(ctx, entry)
	return err
}

// IsAdmin reports whether userID holds the admin role.
func (r *Reconciler) IsAdmin(ctx context.Context, userID string) (bool, error) {
	return r.db.HasRole(ctx, userID, config.RoleAdmin)
}

// EnsureAdmins grants the admin role to every listed user.
func (r *Reconciler) EnsureAdmins(ctx context.Context, userIDs []string) error {
	_, at := r.clock()
	for _, id := range userIDs {
		if id == "" {
			continue
		}
		if err := r.db.GrantRole(ctx, id, config.RoleAdmin, at); err != nil {
			return err
		}
	}
	return nil
}

// TouchProfile makes sure userID has a profile, refreshing its email when
// one is given.
func (r *Reconciler) TouchProfile(ctx context.Context, userID, email string) (*models.Profile, error) {
	if userID == "" {
		return nil, config.NewValidationError(config.ErrorInvalidRequest, "user id is required")
	}
	_, at := r.clock()
	return r.db.GetOrCreateProfile(ctx, userID, email, at)
}
