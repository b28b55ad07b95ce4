// Package earnings converts engaged watch time into a reward amount. The same
// functions drive the live display on the client and the authoritative credit
// on the server.
package earnings

import (
	"github.com/shopspring/decimal"

	"github.com/kirito3009/ad-time-cash/internal/config"
)

// Reward returns maxReward * min(elapsed/duration, 1), rounded to
// config.MoneyScale places. Negative elapsed counts as zero. A non-positive
// duration yields zero; such ads are rejected at validation.
func Reward(elapsed, duration int, maxReward decimal.Decimal) decimal.Decimal {
	if duration <= 0 || elapsed <= 0 {
		return decimal.Zero
	}
	if elapsed >= duration {
		return maxReward.Round(config.MoneyScale)
	}

	return maxReward.
		Mul(decimal.NewFromInt(int64(elapsed))).
		DivRound(decimal.NewFromInt(int64(duration)), config.MoneyScale)
}

// Completed reports whether elapsed has reached the target duration.
func Completed(elapsed, duration int) bool {
	return duration > 0 && elapsed >= duration
}

// Progress returns the watched fraction in [0, 1] for progress bars.
func Progress(elapsed, duration int) float64 {
	if duration <= 0 || elapsed <= 0 {
		return 0
	}
	if elapsed >= duration {
		return 1
	}
	return float64(elapsed) / float64(duration)
}

// Remaining returns the seconds left until completion.
func Remaining(elapsed, duration int) int {
	if elapsed >= duration {
		return 0
	}
	if elapsed < 0 {
		return duration
	}
	return duration - elapsed
}
