// Package session measures foreground engagement with one ad and reports the
// finished session to the ledger.
package session

import (
	"github.com/shopspring/decimal"

	"github.com/kirito3009/ad-time-cash/internal/config"
	"github.com/kirito3009/ad-time-cash/internal/earnings"
)

// State is the lifecycle position of a Timer.
type State int

const (
	StateIdle State = iota
	StateRunning
	StatePaused
	StateCompleted
	StateCollected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateCompleted:
		return "completed"
	case StateCollected:
		return "collected"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateCollected
}

// Summary is the outcome of a finished session as seen by the client.
// DisplayedEarned is advisory; the ledger recomputes the credited amount.
type Summary struct {
	AdID             string          `json:"ad_id"`
	WatchTimeSeconds int             `json:"watch_time"`
	DisplayedEarned  decimal.Decimal `json:"displayed_earned"`
	Completed        bool            `json:"completed"`
}

// Timer is the countdown for one ad. It is not safe for concurrent use; a
// Handle owns it from a single goroutine.
type Timer struct {
	adID      string
	duration  int
	maxReward decimal.Decimal
	state     State
	elapsed   int
}

// NewTimer creates an idle timer for an ad of the given duration and reward.
func NewTimer(adID string, duration int, maxReward decimal.Decimal) (*Timer, error) {
	if duration <= 0 {
		return nil, config.NewValidationError(config.ErrorInvalidAd, "ad duration must be positive, got %d", duration)
	}
	if maxReward.IsNegative() {
		return nil, config.NewValidationError(config.ErrorInvalidAd, "ad reward must not be negative")
	}
	return &Timer{adID: adID, duration: duration, maxReward: maxReward}, nil
}

// Start begins or resumes counting. It is a no-op unless the timer is idle or
// paused and the page is foreground active. Starting from idle resets elapsed.
func (t *Timer) Start(active bool) bool {
	if !active {
		return false
	}
	switch t.state {
	case StateIdle:
		t.elapsed = 0
	case StatePaused:
	default:
		return false
	}
	t.state = StateRunning
	return true
}

// Tick advances one second while running. It returns true exactly once, on the
// tick that reaches the duration.
func (t *Timer) Tick() bool {
	if t.state != StateRunning {
		return false
	}
	t.elapsed++
	if earnings.Completed(t.elapsed, t.duration) {
		t.state = StateCompleted
		return true
	}
	return false
}

// Pause stops counting. Only a running timer changes; pausing twice is the
// same as pausing once.
func (t *Timer) Pause() bool {
	if t.state != StateRunning {
		return false
	}
	t.state = StatePaused
	return true
}

// Collect ends a running or paused session early. With nothing accrued it
// returns config.ErrNothingToCollect and leaves the timer untouched.
func (t *Timer) Collect() (Summary, error) {
	if t.state != StateRunning && t.state != StatePaused {
		return Summary{}, config.NewStateConflictError(config.ErrorSessionState,
			"cannot collect a session that is %s", t.state)
	}
	if t.elapsed == 0 {
		return Summary{}, config.ErrNothingToCollect
	}
	t.state = StateCollected
	return t.Summary(), nil
}

// Summary describes the session at its current elapsed time.
func (t *Timer) Summary() Summary {
	return Summary{
		AdID:             t.adID,
		WatchTimeSeconds: t.elapsed,
		DisplayedEarned:  t.Reward(),
		Completed:        earnings.Completed(t.elapsed, t.duration),
	}
}

// Reward returns the running reward for display.
func (t *Timer) Reward() decimal.Decimal {
	return earnings.Reward(t.elapsed, t.duration, t.maxReward)
}

// State returns the current lifecycle position.
func (t *Timer) State() State { return t.state }

// Elapsed returns the engaged seconds counted so far.
func (t *Timer) Elapsed() int { return t.elapsed }

// Duration returns the target duration in seconds.
func (t *Timer) Duration() int { return t.duration }

// AdID returns the id of the ad being watched; empty for earning sessions.
func (t *Timer) AdID() string { return t.adID }
