package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/erpload/internal/backend"
	"github.com/JonMunkholm/erpload/internal/config"
	"github.com/JonMunkholm/erpload/internal/core"
	"github.com/JonMunkholm/erpload/internal/logging"
	"github.com/JonMunkholm/erpload/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logFile := logging.Setup(logging.Options{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	defer logFile.Close()

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"backend_url", cfg.Backend.URL,
		"upload_max_concurrent", cfg.Upload.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	if err := run(cfg); err != nil {
		slog.Error("server stopped", "error", err)
		logFile.Close()
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	client, err := backend.New(backend.Options{
		BaseURL:     cfg.Backend.URL,
		Timeout:     cfg.Backend.Timeout,
		SubmitPath:  cfg.Backend.SubmitPath,
		SubmitField: cfg.Backend.SubmitField,
	})
	if err != nil {
		return err
	}

	// One limiter for all sessions bounds submissions to the backend.
	limiter := core.NewCallLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime)

	sessions := core.NewSessionStore(client, core.SessionOptions{
		TTL: cfg.Session.TTL,
		Intake: core.IntakeOptions{
			Accepted: core.AcceptedType{
				Extension:  cfg.Upload.AcceptedExtension,
				MediaTypes: cfg.Upload.AcceptedMediaTypes,
			},
			MaxFileSize: cfg.Upload.MaxFileSize,
			Limiter:     limiter,
		},
	})

	server := web.NewServer(cfg, sessions, limiter)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("server starting", "addr", cfg.Server.Addr(), "backend", client.BaseURL())
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		sessions.RunSweeper(gctx, cfg.Session.SweepInterval)
		return nil
	})

	g.Go(func() error {
		server.RunMaintenance(gctx, cfg.Session.SweepInterval)
		return nil
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Wait for in-flight submissions to reach the backend (with timeout)
		if st := limiter.Status(); st.Active > 0 {
			slog.Info("waiting for submissions to complete", "active", st.Active)
			if err := limiter.WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("submissions did not complete in time", "error", err)
			}
		}

		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
