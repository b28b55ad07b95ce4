// Package streak advances a user's consecutive-day watch streak.
package streak

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/kirito3009/ad-time-cash/internal/config"
)

// State is the streak portion of a profile. LastStreakDate is a
// config.DateLayout date or nil when the user has never qualified.
type State struct {
	CurrentStreak  int
	LongestStreak  int
	LastStreakDate *string
}

// Today returns the calendar date of now in loc.
func Today(now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return now.In(loc).Format(config.DateLayout)
}

// Advance applies one qualifying watch event landing on today. The returned
// bool is false when the streak was already counted today.
func Advance(s State, today string) (State, bool) {
	if s.LastStreakDate != nil && *s.LastStreakDate == today {
		return s, false
	}

	next := s
	if s.LastStreakDate != nil && isDayBefore(*s.LastStreakDate, today) {
		next.CurrentStreak = s.CurrentStreak + 1
	} else {
		next.CurrentStreak = 1
	}
	if next.CurrentStreak > next.LongestStreak {
		next.LongestStreak = next.CurrentStreak
	}
	d := today
	next.LastStreakDate = &d

	return next, true
}

// ActiveToday reports whether the streak was already counted on today.
func ActiveToday(s State, today string) bool {
	return s.LastStreakDate != nil && *s.LastStreakDate == today
}

// Current returns the streak as it stands on today. A streak whose last
// qualifying day is before yesterday is already broken and reads as zero.
func Current(s State, today string) int {
	if s.LastStreakDate == nil {
		return 0
	}
	if *s.LastStreakDate == today || isDayBefore(*s.LastStreakDate, today) {
		return s.CurrentStreak
	}
	return 0
}

// NextMilestone returns the first milestone strictly above current, or 0 once
// every milestone has been passed.
func NextMilestone(current int) int {
	for _, m := range config.StreakMilestones {
		if current < m {
			return m
		}
	}
	return 0
}

// MilestoneBonus returns the display bonus of a milestone.
func MilestoneBonus(milestone int) (decimal.Decimal, bool) {
	s, ok := config.StreakMilestoneBonus[milestone]
	if !ok {
		return decimal.Zero, false
	}
	return decimal.RequireFromString(s), true
}

// isDayBefore reports whether prev is exactly one calendar day before today.
// Unparseable dates never continue a streak.
func isDayBefore(prev, today string) bool {
	p, err := time.Parse(config.DateLayout, prev)
	if err != nil {
		return false
	}
	t, err := time.Parse(config.DateLayout, today)
	if err != nil {
		return false
	}
	return p.AddDate(0, 0, 1).Equal(t)
}
