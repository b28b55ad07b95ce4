package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kirito3009/ad-time-cash/internal/config"
	"github.com/kirito3009/ad-time-cash/internal/earnings"
	"github.com/kirito3009/ad-time-cash/internal/models"
)

type fakeTicker struct {
	ch chan time.Time
}

func (f *fakeTicker) C() <-chan time.Time { return f.ch }
func (f *fakeTicker) Stop()               {}

type fakeClock struct {
	mu      sync.Mutex
	tickers []*fakeTicker
}

func (c *fakeClock) newTicker(time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	ft := &fakeTicker{ch: make(chan time.Time)}
	c.tickers = append(c.tickers, ft)
	return ft
}

func (c *fakeClock) current() *fakeTicker {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.tickers) == 0 {
		return nil
	}
	return c.tickers[len(c.tickers)-1]
}

func (c *fakeClock) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tickers)
}

// tick delivers n ticks to the most recently created ticker.
func (c *fakeClock) tick(t *testing.T, n int) {
	t.Helper()
	ft := c.current()
	if ft == nil {
		t.Fatal("no ticker created")
	}
	for i := 0; i < n; i++ {
		select {
		case ft.ch <- time.Now():
		case <-time.After(2 * time.Second):
			t.Fatalf("tick %d not consumed", i+1)
		}
	}
}

type fakeReporter struct {
	mu    sync.Mutex
	calls []models.WatchSubmission
	err   error
}

func (r *fakeReporter) SubmitWatchEvent(_ context.Context, sub models.WatchSubmission) (*models.WatchResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, sub)
	if r.err != nil {
		return nil, r.err
	}
	return &models.WatchResult{
		Accepted:         true,
		WatchTimeSeconds: sub.WatchTimeSeconds,
		EarnedAmount:     earnings.Reward(sub.WatchTimeSeconds, 30, decimal.RequireFromString("0.01")),
		Completed:        sub.Completed,
	}, nil
}

func (r *fakeReporter) setErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

func (r *fakeReporter) submissions() []models.WatchSubmission {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.WatchSubmission(nil), r.calls...)
}

func testAd(duration int) models.Ad {
	return models.Ad{
		ID:              "ad-1",
		Title:           "Test",
		DurationSeconds: duration,
		RewardAmount:    decimal.RequireFromString("0.01"),
		IsActive:        true,
	}
}

func newTestHandle(t *testing.T, duration int) (*Handle, *fakeClock, *fakeReporter) {
	t.Helper()
	clock := &fakeClock{}
	rep := &fakeReporter{}
	h, err := StartSession(context.Background(), testAd(duration), rep, WithTicker(clock.newTicker))
	if err != nil {
		t.Fatalf("StartSession() error = %v", err)
	}
	t.Cleanup(h.Close)
	return h, clock, rep
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestStartSession_InvalidAd(t *testing.T) {
	if _, err := StartSession(context.Background(), testAd(0), &fakeReporter{}); err == nil {
		t.Fatal("expected error for zero-duration ad")
	}
}

func TestHandle_TicksAccrue(t *testing.T) {
	h, clock, _ := newTestHandle(t, 30)

	if !h.Start() {
		t.Fatal("Start() = false")
	}
	clock.tick(t, 15)

	snap := h.Snapshot()
	if snap.State != StateRunning || snap.Elapsed != 15 {
		t.Errorf("snapshot = %+v, want running at 15s", snap)
	}
	if !snap.Reward.Equal(decimal.RequireFromString("0.005")) {
		t.Errorf("reward = %s, want 0.005", snap.Reward)
	}
}

func TestHandle_BackgroundPausesWithoutAutoResume(t *testing.T) {
	h, clock, _ := newTestHandle(t, 30)
	h.Start()
	clock.tick(t, 4)

	h.SetVisible(false)
	if snap := h.Snapshot(); snap.State != StatePaused || snap.Elapsed != 4 {
		t.Fatalf("after hide snapshot = %+v, want paused at 4s", snap)
	}

	h.SetVisible(true)
	if snap := h.Snapshot(); snap.State != StatePaused {
		t.Errorf("regaining visibility resumed the session: %+v", snap)
	}

	h.SetFocused(false)
	if h.Resume() {
		t.Error("Resume() while unfocused should be a no-op")
	}
	h.SetFocused(true)
	if !h.Resume() {
		t.Fatal("Resume() = false with foreground active")
	}
	if clock.count() != 2 {
		t.Errorf("tickers created = %d, want 2", clock.count())
	}
	clock.tick(t, 1)
	if snap := h.Snapshot(); snap.Elapsed != 5 {
		t.Errorf("elapsed after resume = %d, want 5", snap.Elapsed)
	}
}

func TestHandle_CompletionSubmitsOnce(t *testing.T) {
	h, clock, rep := newTestHandle(t, 3)
	h.Start()
	clock.tick(t, 3)

	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session not finished after completion")
	}

	subs := rep.submissions()
	if len(subs) != 1 {
		t.Fatalf("submissions = %d, want 1", len(subs))
	}
	if subs[0].WatchTimeSeconds != 3 || !subs[0].Completed || subs[0].AdID != "ad-1" {
		t.Errorf("submission = %+v", subs[0])
	}

	sum, res, err := h.Result()
	if err != nil {
		t.Fatalf("Result() error = %v", err)
	}
	if !sum.Completed || res == nil || !res.Accepted {
		t.Errorf("Result() = %+v, %+v", sum, res)
	}

	if h.Start() {
		t.Error("completed session must not restart")
	}
	if _, _, err := h.Collect(context.Background()); err == nil {
		t.Error("collect after completion should fail")
	}
	if got := len(rep.submissions()); got != 1 {
		t.Errorf("submissions after extra calls = %d, want 1", got)
	}
}

func TestHandle_CollectPartial(t *testing.T) {
	h, clock, rep := newTestHandle(t, 30)
	h.Start()
	clock.tick(t, 15)
	h.Pause()

	sum, res, err := h.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if sum.WatchTimeSeconds != 15 || sum.Completed {
		t.Errorf("summary = %+v", sum)
	}
	if !res.EarnedAmount.Equal(decimal.RequireFromString("0.005")) {
		t.Errorf("earned = %s, want 0.005", res.EarnedAmount)
	}
	if got := rep.submissions(); len(got) != 1 || got[0].Completed {
		t.Errorf("submissions = %+v", got)
	}

	select {
	case <-h.Done():
	default:
		t.Error("Done() should be closed after collect")
	}
}

func TestHandle_CollectNothing(t *testing.T) {
	h, _, rep := newTestHandle(t, 30)
	h.Start()

	if _, _, err := h.Collect(context.Background()); !errors.Is(err, config.ErrNothingToCollect) {
		t.Errorf("Collect() error = %v, want ErrNothingToCollect", err)
	}
	if snap := h.Snapshot(); snap.State != StateRunning {
		t.Errorf("state = %s, want running", snap.State)
	}
	if len(rep.submissions()) != 0 {
		t.Error("nothing should have been submitted")
	}
}

func TestHandle_TickerFailureKeepsReward(t *testing.T) {
	h, clock, rep := newTestHandle(t, 30)
	h.Start()
	clock.tick(t, 6)

	close(clock.current().ch)
	waitFor(t, "pause after tick failure", func() bool {
		return h.Snapshot().State == StatePaused
	})

	snap := h.Snapshot()
	if !errors.Is(snap.Err, config.ErrTickerStopped) {
		t.Errorf("snapshot error = %v, want ErrTickerStopped", snap.Err)
	}
	if snap.Elapsed != 6 {
		t.Errorf("elapsed = %d, want 6", snap.Elapsed)
	}

	if !h.Resume() {
		t.Fatal("Resume() after tick failure = false")
	}
	if h.Snapshot().Err != nil {
		t.Error("resume should clear the tick error")
	}
	clock.tick(t, 1)

	sum, _, err := h.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if sum.WatchTimeSeconds != 7 {
		t.Errorf("collected %d seconds, want 7", sum.WatchTimeSeconds)
	}
	if len(rep.submissions()) != 1 {
		t.Error("expected one submission")
	}
}

func TestHandle_CloseAbandons(t *testing.T) {
	h, clock, rep := newTestHandle(t, 30)
	h.Start()
	clock.tick(t, 10)

	h.Close()

	_, res, err := h.Result()
	if !errors.Is(err, config.ErrSessionClosed) || res != nil {
		t.Errorf("Result() = %v, %v; want ErrSessionClosed", res, err)
	}
	if len(rep.submissions()) != 0 {
		t.Error("abandoned session must not submit")
	}
	if h.Start() {
		t.Error("Start() after Close should be false")
	}
	if _, _, err := h.Collect(context.Background()); !errors.Is(err, config.ErrSessionClosed) {
		t.Errorf("Collect() after Close error = %v", err)
	}
	if !errors.Is(h.Snapshot().Err, config.ErrSessionClosed) {
		t.Error("snapshot after Close should carry ErrSessionClosed")
	}
}

func TestHandle_RateLimitedCollectResubmits(t *testing.T) {
	h, clock, rep := newTestHandle(t, 30)
	rep.setErr(&config.RateLimitError{Action: config.ActionWatchEvent, RetryAfter: time.Minute})
	h.Start()
	clock.tick(t, 10)

	_, _, err := h.Collect(context.Background())
	if config.GetRetryAfter(err) != time.Minute {
		t.Fatalf("Collect() error = %v, want rate limit with 1m retry", err)
	}
	select {
	case <-h.Done():
		t.Fatal("Done closed while the summary is still pending")
	default:
	}
	snap := h.Snapshot()
	if !snap.Pending || config.GetRetryAfter(snap.Err) != time.Minute {
		t.Errorf("snapshot = %+v, want pending with the rate limit error", snap)
	}

	rep.setErr(nil)
	summary, res, err := h.Collect(context.Background())
	if err != nil {
		t.Fatalf("second Collect() error = %v", err)
	}
	if summary.WatchTimeSeconds != 10 || res == nil || res.WatchTimeSeconds != 10 {
		t.Errorf("second Collect() = %+v, %+v", summary, res)
	}
	if _, final, err := h.Result(); err != nil || final != res {
		t.Errorf("Result() = %+v, %v", final, err)
	}
	if h.Snapshot().Pending {
		t.Error("snapshot still pending after acceptance")
	}

	subs := rep.submissions()
	if len(subs) != 2 {
		t.Fatalf("submissions = %d, want 2", len(subs))
	}
	if subs[0].SessionID != h.ID() || subs[1].SessionID != h.ID() || subs[1].WatchTimeSeconds != 10 {
		t.Errorf("submissions = %+v, want both under session %s", subs, h.ID())
	}
}

func TestHandle_CompletionResubmittedAfterTransportError(t *testing.T) {
	h, clock, rep := newTestHandle(t, 3)
	rep.setErr(errors.New("connection reset"))
	h.Start()
	clock.tick(t, 3)

	waitFor(t, "deferred submission", func() bool {
		s := h.Snapshot()
		return s.Pending && s.Err != nil
	})
	if h.Snapshot().State != StateCompleted {
		t.Errorf("state = %s, want completed", h.Snapshot().State)
	}

	rep.setErr(nil)
	summary, res, err := h.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect() after completion error = %v", err)
	}
	if !summary.Completed || res == nil || !res.Completed {
		t.Errorf("Collect() = %+v, %+v, want the completed session", summary, res)
	}
	<-h.Done()
	if n := len(rep.submissions()); n != 2 {
		t.Errorf("submissions = %d, want 2", n)
	}
}

func TestHandle_FinalRejectionResolves(t *testing.T) {
	h, clock, rep := newTestHandle(t, 30)
	rep.setErr(config.NewValidationError(config.ErrorWatchTimeOutOfRange, "too long"))
	h.Start()
	clock.tick(t, 2)

	if _, _, err := h.Collect(context.Background()); err == nil {
		t.Fatal("Collect() error = nil, want the rejection")
	}
	_, _, err := h.Result()
	var ve *config.ValidationError
	if !errors.As(err, &ve) {
		t.Errorf("Result() error = %v, want ValidationError", err)
	}

	var se *config.StateConflictError
	if _, _, err := h.Collect(context.Background()); !errors.As(err, &se) {
		t.Errorf("Collect() after rejection error = %v, want StateConflictError", err)
	}
	if n := len(rep.submissions()); n != 1 {
		t.Errorf("submissions = %d, want 1", n)
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"rate limit", &config.RateLimitError{RetryAfter: time.Second}, true},
		{"transport", errors.New("dial tcp: connection refused"), true},
		{"validation", config.NewValidationError(config.ErrorCompletionMismatch, "no"), false},
		{"inactive ad", config.NewStateConflictError(config.ErrorAdInactive, "no"), false},
		{"token", config.ErrInvalidToken, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := retryable(tt.err); got != tt.want {
				t.Errorf("retryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
