package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kirito3009/ad-time-cash/internal/config"
	"github.com/kirito3009/ad-time-cash/internal/models"
)

func TestRecordWatchEvent_PartialWatch(t *testing.T) {
	f := newFixture(t, defaultTestLimits)
	f.seedAd(t, "ad-30", 30, "0.01", true)

	res := f.watch(t, testUser, "ad-30", 15, false)

	if !res.EarnedAmount.Equal(dec("0.005")) {
		t.Errorf("EarnedAmount = %s, want 0.005", res.EarnedAmount)
	}
	if res.Completed {
		t.Error("Completed = true for a half watch")
	}

	p := f.profile(t, testUser)
	if !p.TotalEarnings.Equal(dec("0.005")) {
		t.Errorf("TotalEarnings = %s, want 0.005", p.TotalEarnings)
	}
	if p.AdsWatched != 0 {
		t.Errorf("AdsWatched = %d, want 0", p.AdsWatched)
	}
	if p.TotalWatchTime != 15 {
		t.Errorf("TotalWatchTime = %d, want 15", p.TotalWatchTime)
	}
}

func TestRecordWatchEvent_FullWatch(t *testing.T) {
	f := newFixture(t, defaultTestLimits)
	f.seedAd(t, "ad-30", 30, "0.01", true)

	res := f.watch(t, testUser, "ad-30", 30, true)

	if !res.EarnedAmount.Equal(dec("0.01")) {
		t.Errorf("EarnedAmount = %s, want 0.01", res.EarnedAmount)
	}
	if !res.Completed || res.CurrentStreak != 1 {
		t.Errorf("result = %+v", res)
	}
	if p := f.profile(t, testUser); p.AdsWatched != 1 {
		t.Errorf("AdsWatched = %d, want 1", p.AdsWatched)
	}
}

func TestRecordWatchEvent_GraceClampsToDuration(t *testing.T) {
	f := newFixture(t, defaultTestLimits)
	f.seedAd(t, "ad-30", 30, "0.01", true)

	res := f.watch(t, testUser, "ad-30", 33, true)

	if res.WatchTimeSeconds != 30 || !res.EarnedAmount.Equal(dec("0.01")) {
		t.Errorf("result = %+v, want 30s and 0.01", res)
	}
}

func TestRecordWatchEvent_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		adID     string
		seconds  int
		complete bool
		check    func(error) bool
	}{
		{"far beyond duration", "ad-30", 1000, false, isValidation(config.ErrorWatchTimeOutOfRange)},
		{"just past grace", "ad-30", 36, false, isValidation(config.ErrorWatchTimeOutOfRange)},
		{"zero seconds", "ad-30", 0, false, isValidation(config.ErrorWatchTimeOutOfRange)},
		{"negative seconds", "ad-30", -4, false, isValidation(config.ErrorWatchTimeOutOfRange)},
		{"completion claimed early", "ad-30", 15, true, isValidation(config.ErrorCompletionMismatch)},
		{"unknown ad", "missing", 10, false, func(err error) bool {
			var ne *config.NotFoundError
			return errors.As(err, &ne) && ne.Code == config.ErrorAdNotFound
		}},
		{"inactive ad", "ad-off", 10, false, func(err error) bool {
			var se *config.StateConflictError
			return errors.As(err, &se) && se.Code == config.ErrorAdInactive
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, defaultTestLimits)
			f.seedAd(t, "ad-30", 30, "0.01", true)
			f.seedAd(t, "ad-off", 30, "0.01", false)

			res, err := f.r.RecordWatchEvent(context.Background(), models.WatchSubmission{
				UserID:           testUser,
				AdID:             tt.adID,
				WatchTimeSeconds: tt.seconds,
				Completed:        tt.complete,
			})
			if res != nil || !tt.check(err) {
				t.Fatalf("RecordWatchEvent() = %+v, %v", res, err)
			}

			if p := f.profile(t, testUser); p != nil {
				t.Errorf("profile created by a rejected event: %+v", p)
			}
			events, _ := f.db.ListWatchEvents(context.Background(), testUser, 10)
			if len(events) != 0 {
				t.Errorf("ledger has %d entries after rejection", len(events))
			}
		})
	}
}

func isValidation(code string) func(error) bool {
	return func(err error) bool {
		var ve *config.ValidationError
		return errors.As(err, &ve) && ve.Code == code
	}
}

func TestRecordWatchEvent_EarningSession(t *testing.T) {
	f := newFixture(t, defaultTestLimits)

	res := f.watch(t, testUser, "", 30, true)
	if !res.EarnedAmount.Equal(dec("0.05")) {
		t.Errorf("EarnedAmount = %s, want the 0.05 setting default", res.EarnedAmount)
	}

	events, err := f.db.ListWatchEvents(context.Background(), testUser, 10)
	if err != nil || len(events) != 1 {
		t.Fatalf("ListWatchEvents() = %d, %v", len(events), err)
	}
	if events[0].AdID != nil {
		t.Errorf("AdID = %v, want nil", *events[0].AdID)
	}
}

func TestRecordWatchEvent_RateLimited(t *testing.T) {
	f := newFixture(t, defaultTestLimits)
	f.seedAd(t, "ad-30", 30, "0.01", true)
	ctx := context.Background()

	for i := 0; i < defaultTestLimits.WatchPerMinute; i++ {
		f.watch(t, testUser, "ad-30", 30, true)
		f.clock.Advance(time.Second)
	}
	before := f.profile(t, testUser)

	_, err := f.r.RecordWatchEvent(ctx, models.WatchSubmission{UserID: testUser, AdID: "ad-30", WatchTimeSeconds: 30})
	var rl *config.RateLimitError
	if !errors.As(err, &rl) {
		t.Fatalf("error = %v, want RateLimitError", err)
	}
	if rl.RetryAfter != 54*time.Second {
		t.Errorf("RetryAfter = %v, want 54s", rl.RetryAfter)
	}
	if after := f.profile(t, testUser); !after.Totals().Equal(before.Totals()) {
		t.Errorf("profile changed on rate limit: %+v -> %+v", before.Totals(), after.Totals())
	}

	// Another user is unaffected.
	f.watch(t, "user-2", "ad-30", 30, true)

	// The oldest submission leaves the window.
	f.clock.Advance(55 * time.Second)
	f.watch(t, testUser, "ad-30", 30, true)
}

func TestRecordWatchEvent_StreakSkipsGap(t *testing.T) {
	f := newFixture(t, defaultTestLimits)
	f.seedAd(t, "ad-30", 30, "0.01", true)

	if res := f.watch(t, testUser, "ad-30", 10, false); res.CurrentStreak != 1 {
		t.Fatalf("day 1 streak = %d, want 1", res.CurrentStreak)
	}
	f.clock.Advance(2 * 24 * time.Hour)
	if res := f.watch(t, testUser, "ad-30", 10, false); res.CurrentStreak != 1 {
		t.Errorf("day 3 streak = %d, want 1", res.CurrentStreak)
	}
	if p := f.profile(t, testUser); p.LongestStreak != 1 {
		t.Errorf("LongestStreak = %d, want 1", p.LongestStreak)
	}
}

func TestRecordWatchEvent_StreakConsecutiveAndSameDay(t *testing.T) {
	f := newFixture(t, defaultTestLimits)
	f.seedAd(t, "ad-30", 30, "0.01", true)

	f.watch(t, testUser, "ad-30", 10, false)
	f.clock.Advance(time.Minute)
	if res := f.watch(t, testUser, "ad-30", 10, false); res.CurrentStreak != 1 {
		t.Errorf("same day streak = %d, want 1", res.CurrentStreak)
	}
	f.clock.Advance(24 * time.Hour)
	if res := f.watch(t, testUser, "ad-30", 10, false); res.CurrentStreak != 2 {
		t.Errorf("next day streak = %d, want 2", res.CurrentStreak)
	}
}

func TestRecordWatchEvent_ConcurrentSubmissions(t *testing.T) {
	const n = 20
	f := newFixture(t, Limits{WatchPerMinute: n, WatchPerDay: n, WithdrawalsPerDay: 1})
	f.seedAd(t, "ad-30", 30, "0.01", true)

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.r.RecordWatchEvent(context.Background(), models.WatchSubmission{
				UserID: testUser, AdID: "ad-30", WatchTimeSeconds: 15,
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent submission failed: %v", err)
		}
	}

	p := f.profile(t, testUser)
	want := dec("0.005").Mul(decimal.NewFromInt(n))
	if !p.TotalEarnings.Equal(want) {
		t.Errorf("TotalEarnings = %s, want %s", p.TotalEarnings, want)
	}
	if p.TotalWatchTime != 15*n {
		t.Errorf("TotalWatchTime = %d, want %d", p.TotalWatchTime, 15*n)
	}
}

func TestRecordWatchEvent_AggregateMatchesLedger(t *testing.T) {
	f := newFixture(t, Limits{WatchPerMinute: 100, WatchPerDay: 100, WithdrawalsPerDay: 1, WatchTimeGraceSeconds: 5})
	f.seedAd(t, "ad-7", 7, "0.03", true)
	ctx := context.Background()

	for i := 1; i <= 12; i++ {
		f.watch(t, testUser, "ad-7", i%9+1, false)
		f.clock.Advance(time.Second)
	}

	events, err := f.db.ListWatchEvents(ctx, testUser, 100)
	if err != nil {
		t.Fatalf("ListWatchEvents() error = %v", err)
	}
	sum := decimal.Zero
	for _, e := range events {
		sum = sum.Add(e.EarnedAmount)
	}

	p := f.profile(t, testUser)
	if !p.TotalEarnings.Equal(sum) {
		t.Errorf("TotalEarnings = %s, ledger sum = %s", p.TotalEarnings, sum)
	}
	replayed, _ := f.db.ReplayTotals(ctx, testUser)
	if !replayed.Equal(p.Totals()) {
		t.Errorf("replay %+v != aggregate %+v", replayed, p.Totals())
	}
}

func TestWatchHistory_LimitBounds(t *testing.T) {
	f := newFixture(t, defaultTestLimits)
	f.seedAd(t, "ad-30", 30, "0.01", true)
	for i := 0; i < 3; i++ {
		f.watch(t, testUser, "ad-30", 10, false)
		f.clock.Advance(time.Second)
	}

	for _, tt := range []struct{ limit, want int }{{0, 3}, {2, 2}, {10000, 3}} {
		t.Run(fmt.Sprint(tt.limit), func(t *testing.T) {
			events, err := f.r.WatchHistory(context.Background(), testUser, tt.limit)
			if err != nil || len(events) != tt.want {
				t.Errorf("WatchHistory(%d) = %d, %v; want %d", tt.limit, len(events), err, tt.want)
			}
		})
	}
}

func TestRecordWatchEvent_SameSessionCreditedOnce(t *testing.T) {
	f := newFixture(t, defaultTestLimits)
	f.seedAd(t, "ad-30", 30, "0.01", true)
	ctx := context.Background()

	sub := models.WatchSubmission{
		UserID:           testUser,
		SessionID:        "4d1b6f3e-8a0c-4c5e-9f8e-2b7d9a1c3e55",
		AdID:             "ad-30",
		WatchTimeSeconds: 30,
		Completed:        true,
	}
	first, err := f.r.RecordWatchEvent(ctx, sub)
	if err != nil {
		t.Fatalf("first RecordWatchEvent() error = %v", err)
	}
	if first.Duplicate {
		t.Error("first submission flagged as duplicate")
	}

	f.clock.Advance(time.Second)
	again, err := f.r.RecordWatchEvent(ctx, sub)
	if err != nil {
		t.Fatalf("repeated RecordWatchEvent() error = %v", err)
	}
	if !again.Duplicate || again.EventID != first.EventID {
		t.Errorf("repeat = %+v, want duplicate of %s", again, first.EventID)
	}
	if !again.EarnedAmount.Equal(dec("0.01")) || !again.NewBalance.Equal(dec("0.01")) {
		t.Errorf("repeat earned %s balance %s, want 0.01 and 0.01", again.EarnedAmount, again.NewBalance)
	}

	p := f.profile(t, testUser)
	if !p.TotalEarnings.Equal(dec("0.01")) || p.AdsWatched != 1 || p.TotalWatchTime != 30 {
		t.Errorf("profile = %+v, want a single credit", p.Totals())
	}
	events, err := f.db.ListWatchEvents(ctx, testUser, 10)
	if err != nil || len(events) != 1 {
		t.Fatalf("ListWatchEvents() = %d, %v, want 1 entry", len(events), err)
	}
	if events[0].SessionID == nil || *events[0].SessionID != sub.SessionID {
		t.Errorf("SessionID = %v, want %s", events[0].SessionID, sub.SessionID)
	}

	// The repeat did not count against the rate limit.
	for i := 1; i < defaultTestLimits.WatchPerMinute; i++ {
		f.watch(t, testUser, "ad-30", 30, true)
	}
}

func TestRecordWatchEvent_SessionIDChecks(t *testing.T) {
	f := newFixture(t, defaultTestLimits)
	f.seedAd(t, "ad-30", 30, "0.01", true)
	ctx := context.Background()
	session := "9c2e7a44-1f0b-4d83-a6c1-5e0f2b8d7a19"

	_, err := f.r.RecordWatchEvent(ctx, models.WatchSubmission{
		UserID: testUser, SessionID: "not-a-uuid", AdID: "ad-30", WatchTimeSeconds: 10,
	})
	if !isValidation(config.ErrorInvalidSession)(err) {
		t.Errorf("malformed session error = %v, want %s", err, config.ErrorInvalidSession)
	}

	if _, err := f.r.RecordWatchEvent(ctx, models.WatchSubmission{
		UserID: testUser, SessionID: session, AdID: "ad-30", WatchTimeSeconds: 10,
	}); err != nil {
		t.Fatalf("RecordWatchEvent() error = %v", err)
	}

	_, err = f.r.RecordWatchEvent(ctx, models.WatchSubmission{
		UserID: "user-2", SessionID: session, AdID: "ad-30", WatchTimeSeconds: 10,
	})
	var se *config.StateConflictError
	if !errors.As(err, &se) || se.Code != config.ErrorDuplicateSession {
		t.Errorf("other user's session error = %v, want %s", err, config.ErrorDuplicateSession)
	}
	if p := f.profile(t, "user-2"); p != nil {
		t.Errorf("user-2 profile created: %+v", p.Totals())
	}
}
