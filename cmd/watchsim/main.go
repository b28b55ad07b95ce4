package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirito3009/ad-time-cash/internal/client"
	"github.com/kirito3009/ad-time-cash/internal/config"
	"github.com/kirito3009/ad-time-cash/internal/models"
	"github.com/kirito3009/ad-time-cash/internal/session"
)

// A deferred submission is retried this many times, as long as the server
// asks for no more than maxResubmitWait.
const (
	maxResubmits     = 3
	maxResubmitWait  = time.Minute
	minResubmitDelay = time.Second
)

func main() {
	if err := run(); err != nil {
		slog.Error("watchsim error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	fs := flag.NewFlagSet("watchsim", flag.ExitOnError)
	server := fs.String("server", "http://localhost:8080", "API base URL")
	token := fs.String("token", os.Getenv("ADCASH_TOKEN"), "Bearer token (default: from ADCASH_TOKEN)")
	placement := fs.String("placement", config.PlacementWatchPage, "Placement to pick an ad from")
	adID := fs.String("ad", "", "Ad id to play (default: highest priority in the placement)")
	fs.Parse(os.Args[1:])

	if *token == "" {
		return fmt.Errorf("--token is required (or set ADCASH_TOKEN)")
	}

	ctx := context.Background()
	api := client.New(*server, *token, client.WithRetries(2, time.Second))

	ads, err := api.ListAds(ctx, *placement)
	if err != nil {
		return fmt.Errorf("list ads: %w", err)
	}
	ad, err := pickAd(ads, *adID)
	if err != nil {
		return err
	}

	h, err := session.StartSession(ctx, ad, api)
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer h.Close()

	fmt.Printf("Playing %q: %ds for up to %s. Ctrl-C to stop and collect.\n",
		ad.Title, ad.DurationSeconds, ad.RewardAmount.String())
	if !h.Start() {
		return fmt.Errorf("session could not start")
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupt)

	progress := time.NewTicker(config.TickInterval)
	defer progress.Stop()

	var (
		summary session.Summary
		res     *models.WatchResult
	)
loop:
	for {
		select {
		case <-progress.C:
			s := h.Snapshot()
			fmt.Printf("\r%3d/%ds  %-9s", s.Elapsed, s.Duration, s.State)
			if s.Pending && s.Err != nil {
				// The automatic submission on completion was deferred.
				fmt.Println()
				err = s.Err
				break loop
			}

		case <-interrupt:
			fmt.Println()
			summary, res, err = h.Collect(ctx)
			if errors.Is(err, config.ErrNothingToCollect) {
				fmt.Println("Stopped before any time was watched; nothing to collect.")
				return nil
			}
			break loop

		case <-h.Done():
			fmt.Println()
			summary, res, err = h.Result()
			break loop
		}
	}

	for attempt := 1; err != nil && h.Snapshot().Pending && attempt <= maxResubmits; attempt++ {
		wait := config.GetRetryAfter(err)
		if wait > maxResubmitWait {
			break
		}
		if wait < minResubmitDelay {
			wait = minResubmitDelay
		}
		fmt.Printf("Submission deferred (%v), retrying in %s.\n", err, wait.Round(time.Second))
		time.Sleep(wait)
		summary, res, err = h.Collect(ctx)
	}

	if err != nil {
		if retry := config.GetRetryAfter(err); retry > 0 {
			return fmt.Errorf("rate limited, try again in %s: %w", retry.Round(time.Second), err)
		}
		return fmt.Errorf("submit watch event: %w", err)
	}

	fmt.Printf("Watched %ds (completed: %t). Earned %s, balance %s, streak %d.\n",
		summary.WatchTimeSeconds, res.Completed, res.EarnedAmount.String(),
		res.NewBalance.String(), res.CurrentStreak)

	if wallet, err := api.WalletSummary(ctx); err == nil {
		fmt.Printf("Available %s, pending %s, today %s.\n",
			wallet.AvailableBalance.String(), wallet.PendingAmount.String(), wallet.TodayEarnings.String())
	}
	return nil
}

func pickAd(ads []models.Ad, id string) (models.Ad, error) {
	if len(ads) == 0 {
		return models.Ad{}, fmt.Errorf("no active ads in this placement")
	}
	if id == "" {
		return ads[0], nil
	}
	for _, ad := range ads {
		if ad.ID == id {
			return ad, nil
		}
	}
	return models.Ad{}, fmt.Errorf("ad %s is not active in this placement", id)
}
