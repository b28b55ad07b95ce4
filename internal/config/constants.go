package config

import "time"

// Money
const (
	MoneyScale = 8 // decimal places kept for earned amounts
)

// Ad Validation
const (
	MinAdDurationSeconds = 1
	MaxAdDurationSeconds = 300
	MaxAdReward          = 1000
	MaxAdTitleLength     = 200
)

// Ad Types
const (
	AdTypeVideo  = "video"
	AdTypeImage  = "image"
	AdTypeBanner = "banner"
	AdTypeLink   = "link"
)

// Placements
const (
	PlacementHome      = "home"
	PlacementDashboard = "dashboard"
	PlacementWatchPage = "watch_page"
	PlacementWallet    = "wallet"
	PlacementSidebar   = "sidebar"
	PlacementPopup     = "popup"
)

// Placements lists every page location an ad may be shown in.
var Placements = []string{
	PlacementHome,
	PlacementDashboard,
	PlacementWatchPage,
	PlacementWallet,
	PlacementSidebar,
	PlacementPopup,
}

// Watch Events
const (
	MaxWatchTimeGraceSeconds = 60
	MaxWatchHistoryPage      = 200
	DefaultWatchHistoryPage  = 50
)

// Rate Limit Actions (rate_limits.action_type)
const (
	ActionWatchEvent = "watch_event"
	ActionWithdrawal = "withdrawal"
)

// Rate Limit Windows
const (
	RateWindowMinute = time.Minute
	RateWindowDay    = 24 * time.Hour
	RateRetention    = 48 * time.Hour // rows older than this are pruned
	EdgeLimiterIdle  = 10 * time.Minute
)

// Withdrawals
const (
	MaxPaymentMethodLength  = 50
	MaxPaymentDetailsLength = 500
	MaxAdminNotesLength     = 1000
)

// Payment Methods
var PaymentMethods = []string{"upi", "bank_transfer", "paytm", "paypal"}

// Settings Keys (app_settings.key)
const (
	SettingMinWithdrawal       = "min_withdrawal"
	SettingRevenueSharePercent = "revenue_share_percent"
	SettingLandingText         = "landing_text"
	SettingHowItWorks          = "how_it_works_content"
	SettingGlobalHeadScript    = "global_head_script"
	SettingGlobalBodyScript    = "global_body_script"
	SettingHomePageScript      = "home_page_script"
	SettingDashboardPageScript = "dashboard_page_script"
	SettingWatchPageScript     = "watch_page_script"
	SettingExternalAdReward    = "external_ad_reward"
	SettingExternalAdDuration  = "external_ad_duration"
)

// PlacementSlots maps a markup slot name to the setting holding its fragment.
var PlacementSlots = map[string]string{
	"head":       SettingGlobalHeadScript,
	"body":       SettingGlobalBodyScript,
	"home":       SettingHomePageScript,
	"dashboard":  SettingDashboardPageScript,
	"watch_page": SettingWatchPageScript,
}

// Streak Milestones (days) and their display bonuses.
var (
	StreakMilestones     = []int{7, 14, 30, 100}
	StreakMilestoneBonus = map[int]string{7: "0.50", 14: "1.00", 30: "3.00", 100: "10.00"}
)

// Roles
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// Audit Actions
const (
	AuditDecryptPayment   = "decrypt_payment_details"
	AuditWithdrawalStatus = "withdrawal_status"
	AuditAdChange         = "ad_change"
	AuditSettingsChange   = "settings_change"
	AuditRebuild          = "aggregate_rebuild"
)

// Session
const (
	TickInterval         = 1 * time.Second
	SessionSubmitTimeout = 15 * time.Second
)

// Auth
const (
	MinJWTSecretLength = 32
	PaymentKeyBytes    = 32
)

// Database
const (
	DBBusyTimeout = 5000 // milliseconds
	TimeLayout    = "2006-01-02T15:04:05.000000Z07:00" // fixed width so TEXT comparison orders correctly
	DateLayout    = "2006-01-02"
)

// Logging
const (
	LogFilePrefix = "adcash-"
	LogMaxAgeDays = 30
)

// Pagination
const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// Server
const (
	ServerReadTimeout    = 30 * time.Second
	ServerWriteTimeout   = 60 * time.Second
	ServerIdleTimeout    = 120 * time.Second
	ServerMaxHeaderBytes = 1 << 20
	ShutdownTimeout      = 10 * time.Second
	APITimeout           = 30 * time.Second
	MaxRequestBodySize   = 64 << 10
)

// Jobs
const (
	JobTimeout = 5 * time.Minute
)

// Error Categories (system_errors table)
const (
	ErrorCategoryLedger = "ledger"
	ErrorCategoryJobs   = "jobs"
)

// Error Severities
const (
	ErrorSeverityWarn     = "warn"
	ErrorSeverityError    = "error"
	ErrorSeverityCritical = "critical"
)
