package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	githubadapter "github.com/kernelkit/test-system-status/internal/adapter/driven/github"
	sqliteadapter "github.com/kernelkit/test-system-status/internal/adapter/driven/sqlite"
	httphandler "github.com/kernelkit/test-system-status/internal/adapter/driving/http"
	webhandler "github.com/kernelkit/test-system-status/internal/adapter/driving/web"
	"github.com/kernelkit/test-system-status/internal/application"
	"github.com/kernelkit/test-system-status/internal/config"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on a missing or malformed repository file).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel})))
	slog.Info("config loaded",
		"config_file", cfg.ConfigFile,
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"poll_interval", cfg.PollInterval,
		"repositories", len(cfg.Repositories),
		"enabled", len(cfg.EnabledTargets()),
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "path", cfg.DBPath)

	// 4. Run migrations on writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	slog.Info("migrations complete")

	// 5. Wire adapters.
	snapshotStore := sqliteadapter.NewSnapshotRepo(db)
	ghClient := githubadapter.NewClient(cfg.GitHubToken)

	// 6. Create and start poll service.
	builder := application.NewReportBuilder(ghClient, cfg.Settings.RecentRuns, cfg.Settings.TestJobPatterns)
	pollSvc := application.NewPollService(
		builder,
		snapshotStore,
		cfg.Repositories,
		cfg.PollInterval,
		cfg.MaxConcurrent,
	)
	go pollSvc.Start(ctx)

	// 7. Create HTTP handler and register API routes.
	apiHandler := httphandler.NewHandler(pollSvc, cfg, slog.Default())
	mux := http.NewServeMux()
	httphandler.RegisterAPIRoutes(mux, apiHandler)

	// 7b. Create web handler and register dashboard routes.
	webHandler := webhandler.NewHandler(pollSvc, cfg.Settings.DisplayJobPatterns, cfg.Settings.RefreshIntervalSeconds, slog.Default())
	webhandler.RegisterRoutes(mux, webHandler)

	// Apply middleware.
	handler := httphandler.ApplyMiddleware(mux, slog.Default())

	// Manual refreshes hold the request open for a full batch build.
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
		}
	}()

	// 8. Log startup complete.
	slog.Info("teststatus started",
		"listen_addr", cfg.ListenAddr,
		"poll_interval", cfg.PollInterval,
		"max_concurrent_repos", cfg.MaxConcurrent,
	)

	// 9. Wait for shutdown signal.
	<-ctx.Done()
	slog.Info("shutting down")

	// 10. Graceful shutdown with 10s timeout for in-flight requests.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	// 11. Log shutdown complete.
	slog.Info("shutdown complete")
	return nil
}
