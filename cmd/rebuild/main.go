package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kirito3009/ad-time-cash/internal/config"
	"github.com/kirito3009/ad-time-cash/internal/ledger"
	"github.com/kirito3009/ad-time-cash/internal/logging"
	"github.com/kirito3009/ad-time-cash/internal/store"
	"github.com/kirito3009/ad-time-cash/internal/vault"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		slog.Error("rebuild error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	fs := flag.NewFlagSet("rebuild", flag.ExitOnError)
	dbPath := fs.String("db", "", "Database path (default: from ADCASH_DB_PATH)")
	userID := fs.String("user", "", "Rebuild a single user instead of everyone")
	checkOnly := fs.Bool("check", false, "Report drift without changing anything")
	fs.Parse(os.Args[1:])

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}

	logCloser, err := logging.Setup(logging.Options{
		Level:    cfg.LogLevel,
		Dir:      cfg.LogDir,
		Service:  "adcash-rebuild",
		Version:  version,
		Location: cfg.Location(),
	})
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer logCloser.Close()

	database, err := store.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer database.Close()

	if err := database.RunMigrations(); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	v, err := vault.New(cfg.PaymentKey)
	if err != nil {
		return fmt.Errorf("setup payment vault: %w", err)
	}
	recon := ledger.New(database, v, ledger.LimitsFromConfig(cfg), cfg.Location())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("starting aggregate reconciliation",
		"dbPath", cfg.DBPath,
		"user", *userID,
		"checkOnly", *checkOnly,
	)

	switch {
	case *checkOnly:
		drift, err := recon.CheckDrift(ctx)
		if err != nil {
			return fmt.Errorf("check drift: %w", err)
		}
		for _, d := range drift {
			fmt.Printf("%s\tstored=%s/%ds/%d\tledger=%s/%ds/%d\n", d.UserID,
				d.Stored.Earnings, d.Stored.WatchTime, d.Stored.AdsWatched,
				d.Ledger.Earnings, d.Ledger.WatchTime, d.Ledger.AdsWatched)
		}
		fmt.Printf("%d profile(s) drifting\n", len(drift))

	case *userID != "":
		report, err := recon.Rebuild(ctx, ledger.SystemActor, *userID)
		if err != nil {
			return fmt.Errorf("rebuild %s: %w", *userID, err)
		}
		fmt.Printf("%s\tearnings %s -> %s\n", report.UserID, report.Stored.Earnings, report.Ledger.Earnings)

	default:
		changed, err := recon.RebuildAll(ctx, ledger.SystemActor)
		if err != nil {
			return fmt.Errorf("rebuild all: %w", err)
		}
		fmt.Printf("%d profile(s) rebuilt\n", changed)
	}

	return nil
}
