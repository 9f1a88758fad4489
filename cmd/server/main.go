// Package main is the entry point for the sellerpilot API server.
//
// It loads configuration, opens the store config file, wires the scheduler
// with per-store automation workers, starts the daily triggers for every
// persisted store and serves the HTTP API until SIGINT/SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"sellerpilot/internal/config"
	"sellerpilot/internal/core"
	"sellerpilot/internal/scheduler"
	"sellerpilot/internal/store"

	authsvc "sellerpilot/internal/auth"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)
	logger.Info("sellerpilot starting",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.Server.Port),
		slog.Bool("mock_mode", cfg.Ozon.MockMode),
	)

	stores, err := store.NewFileStore(store.Config{
		Path:          cfg.Store.ConfigPath,
		SnapshotsKeep: cfg.Store.SnapshotsKeep,
		Logger:        logger,
	})
	if err != nil {
		return fmt.Errorf("opening store config: %w", err)
	}

	runners := newRunnerFactory(cfg.Ozon, logger)

	sched, err := scheduler.New(scheduler.Config{
		Timezone:           cfg.Scheduler.Timezone,
		Logger:             logger,
		NewUnarchiveRunner: runners.NewUnarchiveRunner,
		NewPromotionRunner: runners.NewPromotionRunner,
	})
	if err != nil {
		return fmt.Errorf("creating scheduler: %w", err)
	}

	auth, err := authsvc.NewService(authsvc.Config{
		BotToken:   cfg.Auth.TelegramBotToken,
		AdminToken: cfg.Auth.AdminToken,
		SessionTTL: cfg.Auth.SessionTTL,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("creating auth service: %w", err)
	}

	srv, err := core.NewServer(cfg, core.Deps{
		Stores:    stores,
		Auth:      auth,
		Scheduler: sched,
		Runners:   runners,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	srv.MountRoutes()

	// Register triggers for everything already on disk, then start firing.
	sched.Start()
	for _, s := range stores.List() {
		sched.ReloadStoreSchedule(s)
	}
	logger.Info("schedules loaded", slog.Int("stores", stores.Count()))

	return serve(cfg, srv, sched, logger)
}

// serve runs the HTTP server until a shutdown signal arrives, then drains
// in-flight requests and stops the scheduler.
func serve(cfg *config.Config, srv *core.Server, sched *scheduler.Scheduler, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      5 * time.Minute, // one-off runs drain whole archives
		IdleTimeout:       120 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("HTTP server listening", slog.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("initiating graceful shutdown")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		sched.Stop()
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped cleanly")
	return nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	})
	return slog.New(handler)
}
