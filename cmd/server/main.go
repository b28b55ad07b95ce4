package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirito3009/ad-time-cash/internal/api"
	"github.com/kirito3009/ad-time-cash/internal/api/middleware"
	"github.com/kirito3009/ad-time-cash/internal/config"
	"github.com/kirito3009/ad-time-cash/internal/jobs"
	"github.com/kirito3009/ad-time-cash/internal/ledger"
	"github.com/kirito3009/ad-time-cash/internal/logging"
	"github.com/kirito3009/ad-time-cash/internal/ratelimit"
	"github.com/kirito3009/ad-time-cash/internal/store"
	"github.com/kirito3009/ad-time-cash/internal/vault"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		if err := runServe(); err != nil {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	case "token":
		if err := runToken(); err != nil {
			slog.Error("token error", "error", err)
			os.Exit(1)
		}
	case "version":
		fmt.Printf("adcash %s\n", version)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage: adcash <command>

Commands:
  serve     Start the HTTP server and background jobs
  token     Issue a development access token signed with ADCASH_JWT_SECRET
  version   Print version information
`)
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logCloser, err := logging.Setup(logging.Options{
		Level:    cfg.LogLevel,
		Dir:      cfg.LogDir,
		Service:  "adcash",
		Version:  version,
		Location: cfg.Location(),
	})
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer logCloser.Close()

	slog.Info("starting adcash",
		"version", version,
		"port", cfg.Port,
		"dbPath", cfg.DBPath,
		"logLevel", cfg.LogLevel,
		"timezone", cfg.Timezone,
	)

	database, err := store.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	if err := database.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	slog.Info("database migrations applied")

	v, err := vault.New(cfg.PaymentKey)
	if err != nil {
		return fmt.Errorf("failed to setup payment vault: %w", err)
	}

	recon := ledger.New(database, v, ledger.LimitsFromConfig(cfg), cfg.Location())
	if err := recon.EnsureAdmins(context.Background(), cfg.AdminUserIDs); err != nil {
		return fmt.Errorf("failed to seed admin roles: %w", err)
	}

	adminIPs, err := middleware.NewIPAllowlist(cfg.AdminAllowedIPs)
	if err != nil {
		return fmt.Errorf("failed to parse admin allowlist: %w", err)
	}

	limiter, sweeper, closeLimiter, err := setupLimiter(cfg)
	if err != nil {
		return err
	}
	defer closeLimiter()

	scheduler, err := jobs.New(database, recon, sweeper, cfg)
	if err != nil {
		return fmt.Errorf("failed to setup jobs: %w", err)
	}
	scheduler.Start()

	api.Version = version
	router := api.NewRouter(api.Dependencies{
		DB:          database,
		Ledger:      recon,
		Auth:        middleware.NewAuthenticator(cfg.JWTSecret),
		AdminIPs:    adminIPs,
		Limiter:     limiter,
		CORSOrigins: cfg.CORSOrigins,
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:           addr,
		Handler:        router,
		ReadTimeout:    config.ServerReadTimeout,
		WriteTimeout:   config.ServerWriteTimeout,
		IdleTimeout:    config.ServerIdleTimeout,
		MaxHeaderBytes: config.ServerMaxHeaderBytes,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	listenErr := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			listenErr <- err
		}
	}()

	select {
	case <-done:
	case err := <-listenErr:
		return fmt.Errorf("server listen error: %w", err)
	}

	slog.Info("initiating graceful shutdown", "timeout", config.ShutdownTimeout)

	ctx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()

	// 1. Stop accepting requests and drain in-flight ones.
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	// 2. Let a running job finish before the database closes.
	scheduler.Stop(ctx)

	slog.Info("server stopped gracefully")
	return nil
}

// setupLimiter picks the shared Redis limiter when ADCASH_REDIS_URL is set,
// otherwise a per-process token bucket.
func setupLimiter(cfg *config.Config) (ratelimit.Limiter, jobs.Sweeper, func(), error) {
	if cfg.RedisURL == "" {
		mem := ratelimit.NewMemory(cfg.EdgeRPS, cfg.EdgeBurst)
		slog.Info("edge rate limiter configured", "backend", "memory", "rps", cfg.EdgeRPS, "burst", cfg.EdgeBurst)
		return mem, mem, func() {}, nil
	}

	client, err := ratelimit.Open(context.Background(), cfg.RedisURL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to connect rate limit store: %w", err)
	}

	// A burst-sized window refilled at the configured rate.
	window := time.Duration(float64(cfg.EdgeBurst) / cfg.EdgeRPS * float64(time.Second))
	if window < time.Second {
		window = time.Second
	}
	slog.Info("edge rate limiter configured", "backend", "redis", "limit", cfg.EdgeBurst, "window", window)

	return ratelimit.NewRedis(client, cfg.EdgeBurst, window, ""), nil, func() {
		if err := client.Close(); err != nil {
			slog.Warn("failed to close redis client", "error", err)
		}
	}, nil
}

func runToken() error {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	userID := fs.String("user", "", "Subject (user id) of the token (required)")
	email := fs.String("email", "", "Email claim")
	ttl := fs.Duration("ttl", time.Hour, "Token lifetime")
	fs.Parse(os.Args[2:])

	if *userID == "" {
		return fmt.Errorf("--user is required")
	}

	secret := os.Getenv("ADCASH_JWT_SECRET")
	if len(secret) < config.MinJWTSecretLength {
		return fmt.Errorf("ADCASH_JWT_SECRET must be at least %d characters", config.MinJWTSecretLength)
	}

	token, err := middleware.NewAuthenticator(secret).Sign(*userID, *email, *ttl)
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}
	fmt.Println(token)
	return nil
}
