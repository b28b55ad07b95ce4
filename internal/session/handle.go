package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kirito3009/ad-time-cash/internal/config"
	"github.com/kirito3009/ad-time-cash/internal/models"
)

// Reporter hands a finished session to the ledger.
type Reporter interface {
	SubmitWatchEvent(ctx context.Context, sub models.WatchSubmission) (*models.WatchResult, error)
}

// Ticker delivers one tick per interval. A closed channel means the tick
// source failed.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type clockTicker struct{ t *time.Ticker }

func (c clockTicker) C() <-chan time.Time { return c.t.C }
func (c clockTicker) Stop()               { c.t.Stop() }

// NewClockTicker wraps time.Ticker.
func NewClockTicker(d time.Duration) Ticker {
	return clockTicker{t: time.NewTicker(d)}
}

// Option configures a Handle.
type Option func(*Handle)

// WithTicker replaces the wall-clock tick source.
func WithTicker(newTicker func(time.Duration) Ticker) Option {
	return func(h *Handle) { h.newTicker = newTicker }
}

// WithSubmitTimeout bounds the automatic submission on completion.
func WithSubmitTimeout(d time.Duration) Option {
	return func(h *Handle) { h.submitTimeout = d }
}

// Snapshot is a point-in-time view of a session for display.
type Snapshot struct {
	State    State
	Elapsed  int
	Duration int
	Reward   decimal.Decimal
	Active   bool
	Pending  bool  // finished but not yet accepted; Collect resubmits
	Err      error // last tick or retryable submit failure
}

// Handle runs one session on its own goroutine. Every method is safe for
// concurrent use. Closing a handle abandons the session without submitting.
//
// A finished session keeps its summary until the ledger gives a final
// answer. Rate limits and transport failures leave it pending, and Collect
// sends it again under the same session id.
type Handle struct {
	id       string
	timer    *Timer
	monitor  *Monitor
	reporter Reporter

	newTicker     func(time.Duration) Ticker
	submitTimeout time.Duration

	cmds    chan func()
	stopped chan struct{}
	cancel  context.CancelFunc

	// Owned by the run goroutine.
	ticker    Ticker
	tickErr   error
	pending   *Summary
	inFlight  bool
	submitErr error

	done    chan struct{}
	once    sync.Once
	result  *models.WatchResult
	summary Summary
	err     error
}

// StartSession binds a new idle session to ad. Call Start on the handle once
// the viewer presses play.
func StartSession(ctx context.Context, ad models.Ad, reporter Reporter, opts ...Option) (*Handle, error) {
	timer, err := NewTimer(ad.ID, ad.DurationSeconds, ad.RewardAmount)
	if err != nil {
		return nil, err
	}

	h := &Handle{
		id:            uuid.New().String(),
		timer:         timer,
		reporter:      reporter,
		newTicker:     NewClockTicker,
		submitTimeout: config.SessionSubmitTimeout,
		cmds:          make(chan func()),
		stopped:       make(chan struct{}),
		done:          make(chan struct{}),
	}
	h.monitor = NewMonitor(h.pauseLocked)
	for _, opt := range opts {
		opt(h)
	}

	runCtx, cancel := context.WithCancel(ctx)
	h.cancel = cancel
	go h.run(runCtx)

	slog.Debug("session started",
		"sessionID", h.id,
		"adID", ad.ID,
		"duration", ad.DurationSeconds,
		"reward", ad.RewardAmount.String(),
	)
	return h, nil
}

func (h *Handle) run(ctx context.Context) {
	defer close(h.stopped)
	defer h.stopTicker()

	for {
		var tickC <-chan time.Time
		if h.ticker != nil {
			tickC = h.ticker.C()
		}

		select {
		case <-ctx.Done():
			switch {
			case h.inFlight:
				// The submission resolves the handle.
			case h.pending != nil:
				h.resolve(*h.pending, nil, config.ErrSessionClosed)
			default:
				h.resolve(Summary{}, nil, config.ErrSessionClosed)
			}
			slog.Debug("session closed", "adID", h.timer.AdID(), "elapsed", h.timer.Elapsed())
			return

		case cmd := <-h.cmds:
			cmd()

		case _, ok := <-tickC:
			if !ok {
				h.ticker = nil
				h.tickErr = config.ErrTickerStopped
				h.timer.Pause()
				slog.Warn("session tick source stopped, paused",
					"adID", h.timer.AdID(),
					"elapsed", h.timer.Elapsed(),
				)
				continue
			}
			if h.timer.Tick() {
				h.stopTicker()
				summary := h.timer.Summary()
				h.pending = &summary
				h.inFlight = true
				go h.autoSubmit(summary)
			}
		}
	}
}

// do runs fn on the session goroutine and waits for it.
func (h *Handle) do(fn func()) error {
	finished := make(chan struct{})
	select {
	case h.cmds <- func() { fn(); close(finished) }:
		<-finished
		return nil
	case <-h.stopped:
		return config.ErrSessionClosed
	}
}

func (h *Handle) startLocked() bool {
	if !h.timer.Start(h.monitor.Active()) {
		return false
	}
	h.tickErr = nil
	h.ticker = h.newTicker(config.TickInterval)
	return true
}

func (h *Handle) pauseLocked() {
	if h.timer.Pause() {
		h.stopTicker()
	}
}

func (h *Handle) stopTicker() {
	if h.ticker != nil {
		h.ticker.Stop()
		h.ticker = nil
	}
}

// Start begins counting. It reports false when the session is not idle or
// paused, or when the page is not foreground active.
func (h *Handle) Start() bool {
	var ok bool
	h.do(func() { ok = h.startLocked() })
	return ok
}

// Resume continues a paused session. It needs the same explicit gesture and
// foreground state as Start.
func (h *Handle) Resume() bool {
	return h.Start()
}

// Pause stops counting; accrued reward is kept.
func (h *Handle) Pause() {
	h.do(h.pauseLocked)
}

// SetVisible forwards a document visibility change to the monitor.
func (h *Handle) SetVisible(visible bool) {
	h.do(func() { h.monitor.SetVisible(visible) })
}

// SetFocused forwards a window focus change to the monitor.
func (h *Handle) SetFocused(focused bool) {
	h.do(func() { h.monitor.SetFocused(focused) })
}

// Snapshot returns the current session view.
func (h *Handle) Snapshot() Snapshot {
	var s Snapshot
	err := h.do(func() {
		s = Snapshot{
			State:    h.timer.State(),
			Elapsed:  h.timer.Elapsed(),
			Duration: h.timer.Duration(),
			Reward:   h.timer.Reward(),
			Active:   h.monitor.Active(),
			Pending:  h.pending != nil,
			Err:      h.tickErr,
		}
		if h.submitErr != nil {
			s.Err = h.submitErr
		}
	})
	if err != nil {
		s.Err = err
	}
	return s
}

// ID is the session id sent with every submission of this session.
func (h *Handle) ID() string { return h.id }

// Collect ends the session early and submits what was accrued. With nothing
// accrued it returns config.ErrNothingToCollect and the session stays usable.
// On a pending session it resubmits the kept summary instead.
func (h *Handle) Collect(ctx context.Context) (Summary, *models.WatchResult, error) {
	var (
		summary Summary
		err     error
	)
	if doErr := h.do(func() {
		switch {
		case h.inFlight:
			err = config.NewStateConflictError(config.ErrorSessionState, "session submission in progress")
		case h.pending != nil:
			summary = *h.pending
			h.inFlight = true
		default:
			summary, err = h.timer.Collect()
			if err == nil {
				h.stopTicker()
				h.pending = &summary
				h.inFlight = true
			}
		}
	}); doErr != nil {
		return Summary{}, nil, doErr
	}
	if err != nil {
		return Summary{}, nil, err
	}

	res, err := h.submit(ctx, summary)
	return summary, res, err
}

// Done is closed once the ledger accepted or finally rejected the session,
// or the session was abandoned.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Result returns the submission outcome after Done is closed.
func (h *Handle) Result() (Summary, *models.WatchResult, error) {
	<-h.done
	return h.summary, h.result, h.err
}

// Close abandons the session. An in-flight submission is not cancelled.
func (h *Handle) Close() {
	h.cancel()
	<-h.stopped
}

func (h *Handle) autoSubmit(summary Summary) {
	ctx, cancel := context.WithTimeout(context.Background(), h.submitTimeout)
	defer cancel()

	if _, err := h.submit(ctx, summary); err != nil {
		slog.Error("automatic session submission failed", "adID", summary.AdID, "error", err)
	}
}

func (h *Handle) submit(ctx context.Context, summary Summary) (*models.WatchResult, error) {
	res, err := h.reporter.SubmitWatchEvent(ctx, models.WatchSubmission{
		SessionID:        h.id,
		AdID:             summary.AdID,
		WatchTimeSeconds: summary.WatchTimeSeconds,
		Completed:        summary.Completed,
	})
	retry := err != nil && retryable(err)
	switch {
	case err == nil:
		slog.Info("session submitted",
			"sessionID", h.id,
			"adID", summary.AdID,
			"watchTime", summary.WatchTimeSeconds,
			"earned", res.EarnedAmount.String(),
		)
	case retry:
		slog.Warn("session submission deferred",
			"sessionID", h.id,
			"adID", summary.AdID,
			"retryAfter", config.GetRetryAfter(err),
			"error", err,
		)
	}

	if doErr := h.do(func() {
		h.inFlight = false
		if retry {
			h.submitErr = err
		} else {
			h.pending = nil
			h.submitErr = nil
		}
	}); doErr != nil {
		// Closed while submitting; nothing can resubmit now.
		h.resolve(summary, res, err)
		return res, err
	}

	if !retry {
		h.resolve(summary, res, err)
	}
	return res, err
}

// retryable reports whether a failed submission may be sent again: rate
// limits and anything outside the rejection taxonomy, such as transport
// failures and server errors.
func retryable(err error) bool {
	var rl *config.RateLimitError
	if errors.As(err, &rl) {
		return true
	}
	if errors.Is(err, config.ErrInvalidToken) {
		return false
	}
	return !config.IsRejection(err)
}

func (h *Handle) resolve(summary Summary, res *models.WatchResult, err error) {
	h.once.Do(func() {
		h.summary = summary
		h.result = res
		h.err = err
		close(h.done)
	})
}
