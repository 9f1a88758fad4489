package main

import (
	"context"
	"log/slog"

	"sellerpilot/internal/archive"
	"sellerpilot/internal/config"
	"sellerpilot/internal/ozon"
	"sellerpilot/internal/promotions"
	"sellerpilot/internal/ratelimit"
	"sellerpilot/internal/scheduler"
	"sellerpilot/internal/types"
)

// runnerFactory builds per-store automation workers. One rate limiter is
// shared across every client it creates so all requests for a store count
// against the same per-store window, while each worker run still gets a
// fresh client whose quota-error memory starts empty.
type runnerFactory struct {
	cfg     config.OzonConfig
	limiter *ratelimit.Limiter
	logger  *slog.Logger
}

func newRunnerFactory(cfg config.OzonConfig, logger *slog.Logger) *runnerFactory {
	return &runnerFactory{
		cfg:     cfg,
		limiter: ratelimit.New(cfg.RateLimitPerSecond, ratelimit.DefaultWindow, logger),
		logger:  logger,
	}
}

func (f *runnerFactory) newClient(s types.StoreConfig) (*ozon.Client, error) {
	return ozon.NewClient(ozon.ClientConfig{
		ClientID: s.ClientID,
		APIKey:   s.APIKey,
		BaseURL:  f.cfg.BaseURL,
		Timeout:  f.cfg.Timeout,
		Limiter:  f.limiter,
		MockMode: f.cfg.MockMode,
		Logger:   f.logger,
	})
}

func (f *runnerFactory) NewUnarchiveRunner(s types.StoreConfig) (scheduler.UnarchiveRunner, error) {
	client, err := f.newClient(s)
	if err != nil {
		return nil, err
	}
	return archive.New(archive.Config{
		Client:    client,
		StoreName: s.Name,
		Logger:    f.logger,
	}), nil
}

func (f *runnerFactory) NewPromotionRunner(s types.StoreConfig) (scheduler.PromotionRunner, error) {
	client, err := f.newClient(s)
	if err != nil {
		return nil, err
	}
	return promotions.New(promotions.Config{
		Client:    client,
		StoreName: s.Name,
		Logger:    f.logger,
	}), nil
}

func (f *runnerFactory) TestConnection(ctx context.Context, s types.StoreConfig) error {
	client, err := f.newClient(s)
	if err != nil {
		return err
	}
	return client.TestConnection(ctx)
}
