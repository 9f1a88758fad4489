// Package main implements the run-once CLI tool for invoking a single
// automation job directly, bypassing the HTTP API and the scheduler.
//
// This tool is intended for local development, manual backfilling and
// operational debugging. It loads the same configuration and store config
// file as the server, builds a worker for one named store and prints the
// result as JSON.
//
// Usage:
//
//	go run ./cmd/tools/run-once --store=myshop --job=unarchive
//	go run ./cmd/tools/run-once --store=myshop --job=promotion
//	go run ./cmd/tools/run-once --store=myshop --job=test-connection
//	go run ./cmd/tools/run-once --list
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"sellerpilot/internal/archive"
	"sellerpilot/internal/config"
	"sellerpilot/internal/ozon"
	"sellerpilot/internal/promotions"
	"sellerpilot/internal/ratelimit"
	"sellerpilot/internal/store"
)

func main() {
	storeName := flag.String("store", "", "store name from the config file")
	job := flag.String("job", "", "job to run: unarchive, promotion or test-connection")
	list := flag.Bool("list", false, "list configured stores and exit")
	flag.Parse()

	if err := run(*storeName, *job, *list); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(storeName, job string, list bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	stores, err := store.NewFileStore(store.Config{
		Path:          cfg.Store.ConfigPath,
		SnapshotsKeep: cfg.Store.SnapshotsKeep,
		Logger:        logger,
	})
	if err != nil {
		return fmt.Errorf("opening store config: %w", err)
	}

	if list {
		return printStores(stores)
	}
	if storeName == "" || job == "" {
		return fmt.Errorf("both --store and --job are required (or use --list)")
	}

	sc, err := stores.Get(storeName)
	if err != nil {
		return err
	}

	client, err := ozon.NewClient(ozon.ClientConfig{
		ClientID: sc.ClientID,
		APIKey:   sc.APIKey,
		BaseURL:  cfg.Ozon.BaseURL,
		Timeout:  cfg.Ozon.Timeout,
		Limiter:  ratelimit.New(cfg.Ozon.RateLimitPerSecond, ratelimit.DefaultWindow, logger),
		MockMode: cfg.Ozon.MockMode,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch job {
	case "unarchive":
		worker := archive.New(archive.Config{Client: client, StoreName: sc.Name, Logger: logger})
		return printJSON(worker.Run(ctx))
	case "promotion":
		worker := promotions.New(promotions.Config{Client: client, StoreName: sc.Name, Logger: logger})
		return printJSON(worker.Run(ctx))
	case "test-connection":
		if err := client.TestConnection(ctx); err != nil {
			return printJSON(map[string]any{"connected": false, "error": err.Error()})
		}
		return printJSON(map[string]bool{"connected": true})
	default:
		return fmt.Errorf("unknown job %q: want unarchive, promotion or test-connection", job)
	}
}

func printStores(stores *store.FileStore) error {
	type row struct {
		Name                 string `json:"name"`
		Active               bool   `json:"active"`
		UnarchiveTime        string `json:"unarchive_time,omitempty"`
		PromotionCleanupTime string `json:"promotion_cleanup_time,omitempty"`
	}
	rows := make([]row, 0)
	for _, s := range stores.List() {
		rows = append(rows, row{
			Name:                 s.Name,
			Active:               s.IsActive,
			UnarchiveTime:        scheduleOrOff(s.UnarchiveEnabled, s.UnarchiveTime),
			PromotionCleanupTime: scheduleOrOff(s.PromotionCleanupEnabled, s.PromotionCleanupTime),
		})
	}
	return printJSON(rows)
}

func scheduleOrOff(enabled bool, at string) string {
	if !enabled || at == "" {
		return ""
	}
	return at
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
