package models

import "github.com/shopspring/decimal"

// WithdrawalStatus represents the review state of a withdrawal request.
type WithdrawalStatus string

const (
	WithdrawalPending  WithdrawalStatus = "pending"
	WithdrawalApproved WithdrawalStatus = "approved"
	WithdrawalRejected WithdrawalStatus = "rejected"
)

// Valid reports whether s is one of the known statuses.
func (s WithdrawalStatus) Valid() bool {
	switch s {
	case WithdrawalPending, WithdrawalApproved, WithdrawalRejected:
		return true
	}
	return false
}

// Ad is one piece of ad inventory. The server copy is authoritative for crediting.
type Ad struct {
	ID              string          `json:"id"`
	Title           string          `json:"title"`
	Description     string          `json:"description,omitempty"`
	AdType          string          `json:"ad_type"`
	VideoURL        string          `json:"video_url,omitempty"`
	ImageURL        string          `json:"image_url,omitempty"`
	LinkURL         string          `json:"link_url,omitempty"`
	DurationSeconds int             `json:"duration"`
	RewardAmount    decimal.Decimal `json:"reward_amount"`
	IsActive        bool            `json:"is_active"`
	Placements      []string        `json:"placements"`
	Priority        int             `json:"priority"`
	CreatedAt       string          `json:"created_at"`
	UpdatedAt       string          `json:"updated_at"`
}

// AdInput carries the admin-editable fields of an ad.
type AdInput struct {
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	AdType          string          `json:"ad_type"`
	VideoURL        string          `json:"video_url"`
	ImageURL        string          `json:"image_url"`
	LinkURL         string          `json:"link_url"`
	DurationSeconds int             `json:"duration"`
	RewardAmount    decimal.Decimal `json:"reward_amount"`
	IsActive        bool            `json:"is_active"`
	Placements      []string        `json:"placements"`
	Priority        int             `json:"priority"`
}

// WatchEvent is one append-only ledger entry. AdID is nil for earning sessions
// that are not bound to an inventory ad.
type WatchEvent struct {
	ID               string          `json:"id"`
	UserID           string          `json:"user_id"`
	AdID             *string         `json:"ad_id"`
	SessionID        *string         `json:"session_id,omitempty"`
	WatchTimeSeconds int             `json:"watch_time"`
	EarnedAmount     decimal.Decimal `json:"earned_amount"`
	Completed        bool            `json:"completed"`
	CreatedAt        string          `json:"created_at"`
}

// WatchSubmission is what a client reports when a session ends. The earned
// amount is never part of it. SessionID is generated by the client once per
// session; a resubmission with the same id returns the original result.
type WatchSubmission struct {
	UserID           string `json:"-"`
	SessionID        string `json:"session_id,omitempty"`
	AdID             string `json:"ad_id"`
	WatchTimeSeconds int    `json:"watch_time"`
	Completed        bool   `json:"completed"`
}

// WithdrawalRequest is a user's cash-out request before validation.
type WithdrawalRequest struct {
	UserID         string          `json:"-"`
	Amount         decimal.Decimal `json:"amount"`
	PaymentMethod  string          `json:"payment_method"`
	PaymentDetails string          `json:"payment_details"`
}

// Profile is the cached aggregate of a user's ledger plus streak state.
type Profile struct {
	UserID         string          `json:"user_id"`
	Email          string          `json:"email,omitempty"`
	TotalEarnings  decimal.Decimal `json:"total_earnings"`
	TotalWatchTime int             `json:"total_watch_time"`
	AdsWatched     int             `json:"ads_watched"`
	CurrentStreak  int             `json:"current_streak"`
	LongestStreak  int             `json:"longest_streak"`
	LastStreakDate *string         `json:"last_streak_date"`
	CreatedAt      string          `json:"created_at"`
	UpdatedAt      string          `json:"updated_at"`
}

// Totals holds the three ledger-derived counters of a profile.
type Totals struct {
	Earnings   decimal.Decimal `json:"earnings"`
	WatchTime  int             `json:"watch_time"`
	AdsWatched int             `json:"ads_watched"`
}

// Equal reports whether two totals match exactly.
func (t Totals) Equal(o Totals) bool {
	return t.Earnings.Equal(o.Earnings) && t.WatchTime == o.WatchTime && t.AdsWatched == o.AdsWatched
}

// Totals returns the aggregate counters stored on the profile.
func (p *Profile) Totals() Totals {
	return Totals{Earnings: p.TotalEarnings, WatchTime: p.TotalWatchTime, AdsWatched: p.AdsWatched}
}

// Withdrawal is a cash-out request. PaymentDetails holds the sealed value and is
// never serialized.
type Withdrawal struct {
	ID             string           `json:"id"`
	UserID         string           `json:"user_id"`
	Amount         decimal.Decimal  `json:"amount"`
	Status         WithdrawalStatus `json:"status"`
	PaymentMethod  string           `json:"payment_method"`
	PaymentDetails string           `json:"-"`
	AdminNotes     *string          `json:"admin_notes,omitempty"`
	ProcessedBy    *string          `json:"processed_by,omitempty"`
	ProcessedAt    *string          `json:"processed_at,omitempty"`
	CreatedAt      string           `json:"created_at"`
}

// WalletSummary is the balance view shown on the wallet page.
type WalletSummary struct {
	TotalEarnings    decimal.Decimal `json:"total_earnings"`
	AvailableBalance decimal.Decimal `json:"available_balance"`
	PendingAmount    decimal.Decimal `json:"pending_amount"`
	ApprovedAmount   decimal.Decimal `json:"approved_amount"`
	TodayEarnings    decimal.Decimal `json:"today_earnings"`
	TodayWatchTime   int             `json:"today_watch_time"`
	MinWithdrawal    decimal.Decimal `json:"min_withdrawal"`
}

// StreakSummary is the streak view including milestone lookups.
type StreakSummary struct {
	CurrentStreak  int              `json:"current_streak"`
	LongestStreak  int              `json:"longest_streak"`
	LastStreakDate *string          `json:"last_streak_date"`
	ActiveToday    bool             `json:"active_today"`
	NextMilestone  int              `json:"next_milestone,omitempty"`
	DaysToNext     int              `json:"days_to_next,omitempty"`
	NextBonus      *decimal.Decimal `json:"next_bonus,omitempty"`
}

// WatchResult is returned for an accepted watch event.
type WatchResult struct {
	Accepted         bool            `json:"accepted"`
	EventID          string          `json:"event_id"`
	WatchTimeSeconds int             `json:"watch_time"`
	EarnedAmount     decimal.Decimal `json:"earned_amount"`
	Completed        bool            `json:"completed"`
	NewBalance       decimal.Decimal `json:"new_balance"`
	CurrentStreak    int             `json:"current_streak"`
	Duplicate        bool            `json:"duplicate,omitempty"`
}

// WithdrawalResult is returned for an accepted withdrawal request.
type WithdrawalResult struct {
	Accepted     bool             `json:"accepted"`
	WithdrawalID string           `json:"withdrawal_id"`
	Status       WithdrawalStatus `json:"status"`
}

// AuditEntry records a privileged action.
type AuditEntry struct {
	ID        int    `json:"id"`
	ActorID   string `json:"actor_id"`
	Action    string `json:"action"`
	TargetID  string `json:"target_id"`
	Details   string `json:"details,omitempty"`
	CreatedAt string `json:"created_at"`
}

// SystemError represents an operational error recorded for admin review.
type SystemError struct {
	ID        int    `json:"id"`
	Severity  string `json:"severity"`
	Category  string `json:"category"`
	Message   string `json:"message"`
	Details   string `json:"details,omitempty"`
	Resolved  bool   `json:"resolved"`
	CreatedAt string `json:"created_at"`
}

// DriftReport describes a profile whose stored aggregate differs from its ledger.
type DriftReport struct {
	UserID string `json:"user_id"`
	Stored Totals `json:"stored"`
	Ledger Totals `json:"ledger"`
}

// WithdrawalFilters contains filter parameters for listing withdrawals.
type WithdrawalFilters struct {
	UserID *string
	Status *WithdrawalStatus
}

// Pagination contains pagination parameters.
type Pagination struct {
	Page     int
	PageSize int
}

// Offset returns the row offset of the page.
func (p Pagination) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.PageSize
}
